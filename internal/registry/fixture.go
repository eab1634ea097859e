package registry

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/contact-verifier/internal/model"
)

// FixtureRegistry is an in-memory IdentityRegistry used when no live
// credentials are configured. Lookups are deterministic, which the batch
// idempotency tests depend on.
type FixtureRegistry struct {
	Contacts []model.RegistryMatch `yaml:"contacts"`
	Leads    []model.RegistryMatch `yaml:"leads"`
}

var _ IdentityRegistry = (*FixtureRegistry)(nil)

// NewFixture returns a registry seeded with a small set of known records.
func NewFixture() *FixtureRegistry {
	return &FixtureRegistry{
		Contacts: []model.RegistryMatch{
			{Source: "contact", ExternalID: "CONTACT_001", FirstName: "John", LastName: "Smith", Email: "john.smith@techcorp.com", Phone: "+1-555-0123", Company: "TechCorp Inc", Title: "Software Engineer"},
			{Source: "contact", ExternalID: "CONTACT_002", FirstName: "Sarah", LastName: "Johnson", Email: "sarah.johnson@innovate.com", Phone: "+1-555-0124", Company: "Innovate Solutions", Title: "Product Manager"},
			{Source: "contact", ExternalID: "CONTACT_003", FirstName: "Mike", LastName: "Davis", Email: "mike.davis@startupco.com", Phone: "+1-555-0125", Company: "StartupCo", Title: "CTO"},
		},
		Leads: []model.RegistryMatch{
			{Source: "lead", ExternalID: "LEAD_001", FirstName: "Emily", LastName: "Chen", Email: "emily.chen@growthlabs.com", Phone: "+1-555-0200", Company: "Growth Labs", Title: "VP Marketing"},
		},
	}
}

// NewFixtureFromFile loads fixture records from a YAML file.
func NewFixtureFromFile(path string) (*FixtureRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read fixture %s", path)
	}

	var f FixtureRegistry
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "registry: parse fixture %s", path)
	}
	return &f, nil
}

func (f *FixtureRegistry) FindContactByEmail(_ context.Context, email string) (*model.RegistryMatch, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for i := range f.Contacts {
		if strings.ToLower(f.Contacts[i].Email) == email {
			match := f.Contacts[i]
			match.MatchedBy = "email"
			return &match, nil
		}
	}
	return nil, nil
}

func (f *FixtureRegistry) FindContactByPhone(_ context.Context, phone string) (*model.RegistryMatch, error) {
	suffix := lastDigits(phone, 10)
	if suffix == "" {
		return nil, nil
	}
	for i := range f.Contacts {
		if lastDigits(f.Contacts[i].Phone, 10) == suffix {
			match := f.Contacts[i]
			match.MatchedBy = "phone"
			return &match, nil
		}
	}
	return nil, nil
}

func (f *FixtureRegistry) FindLeadByEmail(_ context.Context, email string) (*model.RegistryMatch, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for i := range f.Leads {
		if strings.ToLower(f.Leads[i].Email) == email {
			match := f.Leads[i]
			match.MatchedBy = "email"
			return &match, nil
		}
	}
	return nil, nil
}

// lastDigits extracts up to n trailing digits. Fewer than n digits means the
// number cannot be matched reliably and yields "".
func lastDigits(phone string, n int) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < n {
		return ""
	}
	return digits[len(digits)-n:]
}
