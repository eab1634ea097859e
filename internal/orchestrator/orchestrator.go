// Package orchestrator drives the verification pipeline across the contacts
// of a batch: claim, iterate, count, finalize.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contact-verifier/internal/model"
	"github.com/sells-group/contact-verifier/internal/store"
)

// ContactVerifier decides the fate of one contact. Implemented by
// verify.Verifier; stubbed in tests.
type ContactVerifier interface {
	VerifyContact(ctx context.Context, contact *model.ContactRecord) (*model.Verdict, error)
}

// Options tunes a batch run.
type Options struct {
	// ContactDelay is the pause between contacts, the coarse pacing knob on
	// top of the per-collaborator rate limiters.
	ContactDelay time.Duration
	// Workers enables bounded intra-batch parallelism. The default of 1
	// processes contacts sequentially; external rate limits, not CPU, are
	// the bottleneck.
	Workers int
}

// Orchestrator owns a batch's counters while the batch is processing. It is
// the only writer of batch-level state during a run.
type Orchestrator struct {
	store    store.Store
	verifier ContactVerifier
	opts     Options
}

// New creates an orchestrator over the given store and verifier.
func New(st store.Store, verifier ContactVerifier, opts Options) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Orchestrator{store: st, verifier: verifier, opts: opts}
}

// counters serializes batch progress updates so that pollers always observe
// processed == verified + failed, also under concurrent workers.
type counters struct {
	mu        sync.Mutex
	processed int
	verified  int
	failed    int
}

// Run verifies every contact of the batch and finalizes its status. A batch
// not in uploaded state is left untouched and its current summary returned,
// which makes concurrent double-invocation a no-op. Individual contact
// failures never fail the batch; only an orchestration-level error does.
func (o *Orchestrator) Run(ctx context.Context, batchID string) (*model.BatchSummary, error) {
	log := zap.L().With(zap.String("batch_id", batchID))

	contacts, err := o.store.ListContactsByBatch(ctx, batchID)
	if err != nil {
		return nil, o.failBatch(ctx, batchID, eris.Wrap(err, "orchestrator: list contacts"))
	}

	claimed, err := o.store.ClaimBatch(ctx, batchID, len(contacts))
	if err != nil {
		return nil, o.failBatch(ctx, batchID, eris.Wrap(err, "orchestrator: claim batch"))
	}
	if !claimed {
		log.Info("orchestrator: batch not claimable, skipping")
		return o.summary(ctx, batchID)
	}

	log.Info("orchestrator: starting batch", zap.Int("total_contacts", len(contacts)))

	var tally counters
	var runErr error
	if o.opts.Workers > 1 {
		runErr = o.runParallel(ctx, batchID, contacts, &tally)
	} else {
		runErr = o.runSequential(ctx, batchID, contacts, &tally)
	}

	// Finalization writes must land even when the run context is cancelled.
	finalCtx := context.WithoutCancel(ctx)

	switch {
	case runErr != nil:
		return nil, o.failBatch(finalCtx, batchID, runErr)
	case ctx.Err() != nil:
		// The last fully evaluated contact is already durably recorded;
		// cancellation is a clean stop, not a failure.
		log.Info("orchestrator: batch cancelled",
			zap.Int("processed", tally.processed))
		if err := o.store.SetBatchStatus(finalCtx, batchID, model.BatchCancelled, ""); err != nil {
			log.Warn("orchestrator: failed to mark batch cancelled", zap.Error(err))
		}
	default:
		log.Info("orchestrator: batch completed",
			zap.Int("verified", tally.verified),
			zap.Int("failed", tally.failed))
		if err := o.store.SetBatchStatus(finalCtx, batchID, model.BatchCompleted, ""); err != nil {
			return nil, eris.Wrap(err, "orchestrator: mark batch completed")
		}
	}

	return o.summary(finalCtx, batchID)
}

// runSequential is the default path: one contact at a time in stable
// insertion order, with the cancellation check between contacts.
func (o *Orchestrator) runSequential(ctx context.Context, batchID string, contacts []model.ContactRecord, tally *counters) error {
	for i := range contacts {
		if ctx.Err() != nil {
			return nil
		}
		if err := o.processOne(ctx, batchID, &contacts[i], tally); err != nil {
			return err
		}
		o.pause(ctx)
	}
	return nil
}

// runParallel fans contacts out to a bounded worker group. Counter updates
// stay serialized inside processOne.
func (o *Orchestrator) runParallel(ctx context.Context, batchID string, contacts []model.ContactRecord, tally *counters) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)

	for i := range contacts {
		if gctx.Err() != nil {
			break
		}
		contact := &contacts[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			err := o.processOne(gctx, batchID, contact, tally)
			o.pause(gctx)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// A parent cancellation surfaces through ctx.Err in Run.
	return nil
}

// processOne runs the pipeline for a single contact and advances the batch
// counters in one consistent step.
func (o *Orchestrator) processOne(ctx context.Context, batchID string, contact *model.ContactRecord, tally *counters) error {
	verdict, err := o.verifier.VerifyContact(ctx, contact)
	if err != nil {
		// Store write failures are orchestration-level: the loop cannot
		// make durable progress without the store.
		return eris.Wrap(err, "orchestrator: persist contact verdict")
	}

	tally.mu.Lock()
	defer tally.mu.Unlock()
	tally.processed++
	if verdict.ShouldInclude {
		tally.verified++
	} else {
		tally.failed++
	}
	if err := o.store.UpdateBatchCounters(ctx, batchID, tally.processed, tally.verified, tally.failed); err != nil {
		return eris.Wrap(err, "orchestrator: update batch counters")
	}
	return nil
}

func (o *Orchestrator) pause(ctx context.Context) {
	if o.opts.ContactDelay <= 0 {
		return
	}
	select {
	case <-time.After(o.opts.ContactDelay):
	case <-ctx.Done():
	}
}

// failBatch records an orchestration-level error on the batch and returns it.
// Contacts already processed keep their individual verdicts.
func (o *Orchestrator) failBatch(ctx context.Context, batchID string, cause error) error {
	zap.L().Error("orchestrator: batch failed",
		zap.String("batch_id", batchID),
		zap.Error(cause))
	if err := o.store.SetBatchStatus(ctx, batchID, model.BatchFailed, cause.Error()); err != nil {
		zap.L().Error("orchestrator: failed to record batch failure",
			zap.String("batch_id", batchID),
			zap.Error(err))
	}
	return cause
}

func (o *Orchestrator) summary(ctx context.Context, batchID string) (*model.BatchSummary, error) {
	batch, err := o.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: load batch summary")
	}
	summary := &model.BatchSummary{
		BatchID:  batch.ID,
		Total:    batch.TotalContacts,
		Verified: batch.VerifiedContacts,
		Failed:   batch.FailedContacts,
	}
	if batch.TotalContacts > 0 {
		summary.SuccessRate = float64(batch.VerifiedContacts) / float64(batch.TotalContacts) * 100
	}
	return summary, nil
}

// GetBatchProgress returns the read-only poll snapshot for external callers.
func (o *Orchestrator) GetBatchProgress(ctx context.Context, batchID string) (*model.BatchProgress, error) {
	batch, err := o.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: load batch progress")
	}
	return &model.BatchProgress{
		BatchID:    batch.ID,
		Processed:  batch.ProcessedContacts,
		Total:      batch.TotalContacts,
		Percentage: batch.ProgressPercentage,
		Status:     batch.Status,
	}, nil
}
