package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-verifier/internal/model"
)

// MemStore is an in-memory Store used by tests and throwaway local runs.
// All methods are safe for concurrent use.
type MemStore struct {
	mu       sync.Mutex
	contacts map[string]model.ContactRecord
	batches  map[string]model.Batch
}

var _ Store = (*MemStore)(nil)

// NewMem returns an empty in-memory store.
func NewMem() *MemStore {
	return &MemStore{
		contacts: make(map[string]model.ContactRecord),
		batches:  make(map[string]model.Batch),
	}
}

func (s *MemStore) CreateContact(_ context.Context, contact *model.ContactRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}
	contact.UpdatedAt = now
	s.contacts[contact.ID] = *contact
	return nil
}

func (s *MemStore) GetContact(_ context.Context, id string) (*model.ContactRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contact, ok := s.contacts[id]
	if !ok {
		return nil, eris.Errorf("store: contact %s not found", id)
	}
	return &contact, nil
}

func (s *MemStore) ListContactsByBatch(_ context.Context, batchID string) ([]model.ContactRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ContactRecord
	for _, c := range s.contacts {
		if c.BatchID == batchID {
			out = append(out, c)
		}
	}
	// Insertion order approximated by creation time, then id for stability.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemStore) UpdateContact(_ context.Context, contact *model.ContactRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contacts[contact.ID]; !ok {
		return eris.Errorf("store: contact %s not found", contact.ID)
	}
	contact.UpdatedAt = time.Now()
	s.contacts[contact.ID] = *contact
	return nil
}

func (s *MemStore) CreateBatch(_ context.Context, batch *model.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch.CreatedAt = time.Now()
	s.batches[batch.ID] = *batch
	return nil
}

func (s *MemStore) GetBatch(_ context.Context, id string) (*model.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return nil, eris.Errorf("store: batch %s not found", id)
	}
	return &batch, nil
}

func (s *MemStore) ClaimBatch(_ context.Context, id string, total int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return false, eris.Errorf("store: batch %s not found", id)
	}
	if batch.Status != model.BatchUploaded {
		return false, nil
	}
	batch.Status = model.BatchProcessing
	batch.TotalContacts = total
	s.batches[id] = batch
	return true, nil
}

func (s *MemStore) UpdateBatchCounters(_ context.Context, id string, processed, verified, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return eris.Errorf("store: batch %s not found", id)
	}
	batch.ProcessedContacts = processed
	batch.VerifiedContacts = verified
	batch.FailedContacts = failed
	batch.ProgressPercentage = model.Progress(processed, batch.TotalContacts)
	s.batches[id] = batch
	return nil
}

func (s *MemStore) SetBatchStatus(_ context.Context, id string, status model.BatchStatus, processingErrors string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return eris.Errorf("store: batch %s not found", id)
	}
	batch.Status = status
	if processingErrors != "" {
		batch.ProcessingErrors = processingErrors
	}
	if status.Terminal() {
		now := time.Now()
		batch.CompletedAt = &now
	}
	s.batches[id] = batch
	return nil
}

func (s *MemStore) SetBatchInsight(_ context.Context, id string, insight string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return eris.Errorf("store: batch %s not found", id)
	}
	batch.Insight = insight
	s.batches[id] = batch
	return nil
}

func (s *MemStore) Migrate(context.Context) error { return nil }

func (s *MemStore) Close() error { return nil }
