package store

import (
	"context"

	"github.com/sells-group/contact-verifier/internal/model"
)

// Store defines the persistence interface for contacts and batches. It is the
// single writer-of-record for terminal contact state; the orchestrator never
// caches contact state across iterations.
type Store interface {
	// Contacts
	CreateContact(ctx context.Context, contact *model.ContactRecord) error
	GetContact(ctx context.Context, id string) (*model.ContactRecord, error)
	ListContactsByBatch(ctx context.Context, batchID string) ([]model.ContactRecord, error)
	UpdateContact(ctx context.Context, contact *model.ContactRecord) error

	// Batches
	CreateBatch(ctx context.Context, batch *model.Batch) error
	GetBatch(ctx context.Context, id string) (*model.Batch, error)

	// ClaimBatch atomically moves an uploaded batch to processing and sets
	// total_contacts. Returns false without error when the batch is not in
	// uploaded state, which makes concurrent double-invocation a no-op.
	ClaimBatch(ctx context.Context, id string, total int) (bool, error)

	// UpdateBatchCounters writes processed/verified/failed and the recomputed
	// progress percentage in a single statement so pollers never observe a
	// partially advanced state.
	UpdateBatchCounters(ctx context.Context, id string, processed, verified, failed int) error

	SetBatchStatus(ctx context.Context, id string, status model.BatchStatus, processingErrors string) error
	SetBatchInsight(ctx context.Context, id string, insight string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
