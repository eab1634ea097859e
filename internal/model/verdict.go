package model

// Decision is the pipeline's final call for a single contact.
type Decision string

const (
	DecisionVerified  Decision = "verified"
	DecisionDuplicate Decision = "duplicate"
	DecisionFailed    Decision = "failed"
)

// RegistryMatch is a normalized record returned by the Identity Registry when
// a contact already exists in the external system. The yaml tags support
// file-loaded registry fixtures.
type RegistryMatch struct {
	Source     string `json:"source" yaml:"source"` // "contact", "lead"
	ExternalID string `json:"external_id" yaml:"external_id"`
	FirstName  string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	Email      string `json:"email,omitempty" yaml:"email,omitempty"`
	Phone      string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Company    string `json:"company,omitempty" yaml:"company,omitempty"`
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	MatchedBy  string `json:"matched_by,omitempty" yaml:"matched_by,omitempty"`
}

// Verdict is the outcome of verifying one contact. ShouldInclude is true only
// for brand-new contacts: duplicates are authoritative exclusions and count
// toward the batch's failed tally.
type Verdict struct {
	ContactID     string         `json:"contact_id"`
	Decision      Decision       `json:"decision"`
	Reason        string         `json:"reason,omitempty"`
	ShouldInclude bool           `json:"should_include"`
	IsDuplicate   bool           `json:"is_duplicate"`
	Match         *RegistryMatch `json:"match,omitempty"`

	EmailResult *ChannelResult `json:"email_result,omitempty"`
	PhoneResult *ChannelResult `json:"phone_result,omitempty"`
	Evidence    []StageResult  `json:"evidence,omitempty"`
}

// ChannelResult is the aggregated outcome of one channel (email or phone).
type ChannelResult struct {
	Channel         string           `json:"channel"`
	Input           string           `json:"input"`
	IsValid         bool             `json:"is_valid"`
	Confidence      float64          `json:"confidence"`
	Stages          []StageResult    `json:"stages,omitempty"`
	SuggestedEmails []SuggestedEmail `json:"suggested_emails,omitempty"`
}
