package model

import "time"

// BatchStatus tracks a batch through its lifecycle. A batch is created
// uploaded by the ingestion path, claimed into processing by the orchestrator,
// and ends completed, failed, or cancelled. Individual contact failures never
// fail the batch; only an orchestration-level error does.
type BatchStatus string

const (
	BatchUploaded   BatchStatus = "uploaded"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
	BatchCancelled  BatchStatus = "cancelled"
)

// Terminal reports whether the batch has reached a final state.
func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchCompleted, BatchFailed, BatchCancelled:
		return true
	}
	return false
}

// Batch aggregates the verification progress of its child contacts.
// Invariant: ProcessedContacts == VerifiedContacts + FailedContacts and
// ProcessedContacts <= TotalContacts at every externally observable point.
type Batch struct {
	ID       string      `json:"id"`
	Filename string      `json:"filename,omitempty"`
	Status   BatchStatus `json:"status"`

	TotalContacts     int `json:"total_contacts"`
	ProcessedContacts int `json:"processed_contacts"`
	VerifiedContacts  int `json:"verified_contacts"`
	FailedContacts    int `json:"failed_contacts"`

	ProgressPercentage float64 `json:"progress_percentage"`
	ProcessingErrors   string  `json:"processing_errors,omitempty"`
	Insight            string  `json:"insight,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Progress computes the percentage of processed contacts, 0 when the batch is
// empty.
func Progress(processed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(processed) / float64(total) * 100
}

// SuccessRate is the share of processed contacts that were verified as new,
// in percent.
func (b *Batch) SuccessRate() float64 {
	if b.ProcessedContacts == 0 {
		return 0
	}
	return float64(b.VerifiedContacts) / float64(b.ProcessedContacts) * 100
}

// BatchSummary is the caller-facing result of a full batch run.
type BatchSummary struct {
	BatchID     string  `json:"batch_id"`
	Total       int     `json:"total"`
	Verified    int     `json:"verified"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// BatchProgress is the read-only poll snapshot exposed to external callers.
type BatchProgress struct {
	BatchID    string      `json:"batch_id"`
	Processed  int         `json:"processed"`
	Total      int         `json:"total"`
	Percentage float64     `json:"percentage"`
	Status     BatchStatus `json:"status"`
}
