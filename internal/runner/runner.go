// Package runner executes batch verification runs asynchronously. Status is
// observable only through the batch record, so it survives process restarts
// and concurrent pollers.
package runner

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contact-verifier/internal/model"
	"github.com/sells-group/contact-verifier/internal/store"
)

// BatchVerifier runs one full batch. Implemented by orchestrator.Orchestrator.
type BatchVerifier interface {
	Run(ctx context.Context, batchID string) (*model.BatchSummary, error)
}

// InsightGenerator writes a short narrative about a finished batch. It is
// best-effort and never affects batch status or counters.
type InsightGenerator interface {
	BatchInsight(ctx context.Context, batch *model.Batch, contacts []model.ContactRecord) (string, error)
}

// Runner is a bounded pool of concurrently executing batch runs.
type Runner struct {
	store    store.Store
	verifier BatchVerifier
	insight  InsightGenerator // nil disables insights
	base     context.Context
	group    *errgroup.Group
	pending  sync.WaitGroup
}

// New creates a runner. base is the lifetime context for all runs;
// maxConcurrent bounds how many batches execute at once.
func New(base context.Context, st store.Store, verifier BatchVerifier, insight InsightGenerator, maxConcurrent int) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	g := &errgroup.Group{}
	g.SetLimit(maxConcurrent)
	return &Runner{store: st, verifier: verifier, insight: insight, base: base, group: g}
}

// Start schedules a batch run and returns immediately. Runs beyond the
// concurrency limit queue until a slot frees.
func (r *Runner) Start(batchID string) {
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		r.group.Go(func() error {
			r.run(batchID)
			return nil
		})
	}()
}

// Wait blocks until every scheduled run has finished. Used by the CLI and
// during shutdown.
func (r *Runner) Wait() {
	r.pending.Wait()
	_ = r.group.Wait()
}

func (r *Runner) run(batchID string) {
	log := zap.L().With(zap.String("batch_id", batchID))

	// Last-resort safety net: anything not already caught by the
	// orchestrator still lands on the batch record as failed.
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("runner: panic during batch run", zap.Any("panic", rec))
			r.ensureFailed(batchID, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	summary, err := r.verifier.Run(r.base, batchID)
	if err != nil {
		log.Error("runner: batch run failed", zap.Error(err))
		r.ensureFailed(batchID, err.Error())
		return
	}

	log.Info("runner: batch run finished",
		zap.Int("total", summary.Total),
		zap.Int("verified", summary.Verified),
		zap.Int("failed", summary.Failed))

	r.generateInsight(batchID)
}

// ensureFailed marks the batch failed unless it already reached a terminal
// state through the orchestrator.
func (r *Runner) ensureFailed(batchID, reason string) {
	ctx := context.WithoutCancel(r.base)
	batch, err := r.store.GetBatch(ctx, batchID)
	if err == nil && batch.Status.Terminal() {
		return
	}
	if err := r.store.SetBatchStatus(ctx, batchID, model.BatchFailed, reason); err != nil {
		zap.L().Error("runner: failed to record batch failure",
			zap.String("batch_id", batchID),
			zap.Error(err))
	}
}

// generateInsight asks for a narrative summary of a completed batch and
// stores it. Failures are logged and dropped.
func (r *Runner) generateInsight(batchID string) {
	if r.insight == nil {
		return
	}
	ctx := context.WithoutCancel(r.base)

	batch, err := r.store.GetBatch(ctx, batchID)
	if err != nil || batch.Status != model.BatchCompleted {
		return
	}
	contacts, err := r.store.ListContactsByBatch(ctx, batchID)
	if err != nil {
		zap.L().Warn("runner: insight skipped, cannot list contacts",
			zap.String("batch_id", batchID), zap.Error(err))
		return
	}

	text, err := r.insight.BatchInsight(ctx, batch, contacts)
	if err != nil {
		zap.L().Warn("runner: insight generation failed",
			zap.String("batch_id", batchID), zap.Error(err))
		return
	}
	if text == "" {
		return
	}
	if err := r.store.SetBatchInsight(ctx, batchID, text); err != nil {
		zap.L().Warn("runner: failed to store insight",
			zap.String("batch_id", batchID), zap.Error(err))
	}
}
