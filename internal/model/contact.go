package model

import (
	"strings"
	"time"
)

// VerificationStatus tracks a contact through the pipeline state machine.
// pending and processing are the only non-terminal states.
type VerificationStatus string

const (
	StatusPending    VerificationStatus = "pending"
	StatusProcessing VerificationStatus = "processing"
	StatusVerified   VerificationStatus = "verified"
	StatusDuplicate  VerificationStatus = "duplicate"
	StatusFailed     VerificationStatus = "failed"
)

// Terminal reports whether the status is a final verdict.
func (s VerificationStatus) Terminal() bool {
	switch s {
	case StatusVerified, StatusDuplicate, StatusFailed:
		return true
	}
	return false
}

// StageOutcome is the ordinal result of a single verification stage.
type StageOutcome string

const (
	OutcomePass         StageOutcome = "pass"
	OutcomeFail         StageOutcome = "fail"
	OutcomeInconclusive StageOutcome = "inconclusive"
)

// StageResult records the outcome of one atomic check. External errors are
// captured in Error and never propagate past the channel aggregator.
type StageResult struct {
	Stage   string       `json:"stage"`
	Outcome StageOutcome `json:"outcome"`
	Weight  float64      `json:"weight"`
	Detail  string       `json:"detail,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// SuggestedEmail is a pattern-generated alternative address offered when the
// original address's domain has no MX records.
type SuggestedEmail struct {
	Email      string  `json:"email"`
	Confidence float64 `json:"confidence"`
}

// ContactRecord is a raw contact under verification. The pipeline owns the
// mutable verification fields while the contact is processing; once a terminal
// status is reached the evidence list and score are immutable. Re-verification
// resets them wholesale, never edits history in place.
type ContactRecord struct {
	ID      string `json:"id"`
	BatchID string `json:"batch_id"`

	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Company    string `json:"company,omitempty"`
	JobTitle   string `json:"job_title,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`

	Status          VerificationStatus `json:"verification_status"`
	ConfidenceScore float64            `json:"confidence_score"`
	IsVerified      bool               `json:"is_verified"`
	IsDuplicate     bool               `json:"is_duplicate"`
	FailureReason   string             `json:"failure_reason,omitempty"`
	Evidence        []StageResult      `json:"evidence,omitempty"`
	SuggestedEmails []SuggestedEmail   `json:"suggested_emails,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins the non-empty name parts.
func (c *ContactRecord) FullName() string {
	parts := make([]string, 0, 2)
	if c.FirstName != "" {
		parts = append(parts, c.FirstName)
	}
	if c.LastName != "" {
		parts = append(parts, c.LastName)
	}
	return strings.Join(parts, " ")
}

// HasRequiredData reports whether the contact carries at least one of the two
// channels the pipeline can verify.
func (c *ContactRecord) HasRequiredData() bool {
	return c.Email != "" || c.Phone != ""
}

// ResetVerification clears all pipeline-owned fields ahead of re-verification.
func (c *ContactRecord) ResetVerification() {
	c.Status = StatusPending
	c.ConfidenceScore = 0
	c.IsVerified = false
	c.IsDuplicate = false
	c.FailureReason = ""
	c.Evidence = nil
	c.SuggestedEmails = nil
}
