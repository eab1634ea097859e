package registry

import (
	"context"
	"time"

	"github.com/sells-group/contact-verifier/internal/model"
	"github.com/sells-group/contact-verifier/internal/resilience"
	"github.com/sells-group/contact-verifier/pkg/salesforce"
)

// SalesforceRegistry implements IdentityRegistry over the Salesforce REST
// API. Queries retry on transient failures and a circuit breaker keeps a
// flapping org from stalling every contact in a batch.
type SalesforceRegistry struct {
	client  salesforce.Client
	retry   resilience.Policy
	breaker *resilience.Breaker
}

var _ IdentityRegistry = (*SalesforceRegistry)(nil)

// NewSalesforce builds a registry over an authenticated Salesforce client.
func NewSalesforce(client salesforce.Client) *SalesforceRegistry {
	return &SalesforceRegistry{
		client:  client,
		retry:   resilience.DefaultPolicy(),
		breaker: resilience.NewBreaker(5, 30*time.Second),
	}
}

func (r *SalesforceRegistry) FindContactByEmail(ctx context.Context, email string) (*model.RegistryMatch, error) {
	return r.find(ctx, "registry: contact by email", func(ctx context.Context) (*model.RegistryMatch, error) {
		contact, err := salesforce.FindContactByEmail(ctx, r.client, email)
		if err != nil || contact == nil {
			return nil, err
		}
		return contactMatch(contact, "email"), nil
	})
}

func (r *SalesforceRegistry) FindContactByPhone(ctx context.Context, phone string) (*model.RegistryMatch, error) {
	return r.find(ctx, "registry: contact by phone", func(ctx context.Context) (*model.RegistryMatch, error) {
		contact, err := salesforce.FindContactByPhone(ctx, r.client, phone)
		if err != nil || contact == nil {
			return nil, err
		}
		return contactMatch(contact, "phone"), nil
	})
}

func (r *SalesforceRegistry) FindLeadByEmail(ctx context.Context, email string) (*model.RegistryMatch, error) {
	return r.find(ctx, "registry: lead by email", func(ctx context.Context) (*model.RegistryMatch, error) {
		lead, err := salesforce.FindLeadByEmail(ctx, r.client, email)
		if err != nil || lead == nil {
			return nil, err
		}
		return &model.RegistryMatch{
			Source:     "lead",
			ExternalID: lead.ID,
			FirstName:  lead.FirstName,
			LastName:   lead.LastName,
			Email:      lead.Email,
			Phone:      lead.Phone,
			Company:    lead.Company,
			Title:      lead.Title,
			MatchedBy:  "email",
		}, nil
	})
}

func (r *SalesforceRegistry) find(ctx context.Context, op string, fn func(ctx context.Context) (*model.RegistryMatch, error)) (*model.RegistryMatch, error) {
	return resilience.Do(ctx, r.breaker, func(ctx context.Context) (*model.RegistryMatch, error) {
		return resilience.Retry(ctx, r.retry, op, fn)
	})
}

func contactMatch(c *salesforce.Contact, matchedBy string) *model.RegistryMatch {
	return &model.RegistryMatch{
		Source:     "contact",
		ExternalID: c.ID,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Email:      c.Email,
		Phone:      c.Phone,
		Company:    c.Account.Name,
		Title:      c.Title,
		MatchedBy:  matchedBy,
	}
}
