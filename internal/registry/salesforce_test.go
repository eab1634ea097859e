package registry

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-verifier/pkg/salesforce"
)

// stubSFClient answers SOQL queries with canned records keyed by a substring
// of the query text.
type stubSFClient struct {
	contacts []salesforce.Contact
	leads    []salesforce.Lead
	err      error
	queries  []string
}

var _ salesforce.Client = (*stubSFClient)(nil)

func (s *stubSFClient) Query(_ context.Context, soql string, out any) error {
	s.queries = append(s.queries, soql)
	if s.err != nil {
		return s.err
	}
	switch dst := out.(type) {
	case *[]salesforce.Contact:
		*dst = s.contacts
	case *[]salesforce.Lead:
		*dst = s.leads
	}
	return nil
}

func TestSalesforceRegistry_ContactByEmail(t *testing.T) {
	client := &stubSFClient{contacts: []salesforce.Contact{{
		ID: "003xx", FirstName: "John", LastName: "Smith", Email: "john@techcorp.com",
	}}}
	reg := NewSalesforce(client)

	match, err := reg.FindContactByEmail(context.Background(), "john@techcorp.com")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "contact", match.Source)
	assert.Equal(t, "003xx", match.ExternalID)
	assert.Equal(t, "email", match.MatchedBy)

	require.Len(t, client.queries, 1)
	assert.Contains(t, client.queries[0], "FROM Contact WHERE Email = 'john@techcorp.com'")
}

func TestSalesforceRegistry_ContactByPhone_Last10Digits(t *testing.T) {
	client := &stubSFClient{contacts: []salesforce.Contact{{ID: "003yy"}}}
	reg := NewSalesforce(client)

	match, err := reg.FindContactByPhone(context.Background(), "+1 (555) 012-3456")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "phone", match.MatchedBy)

	require.Len(t, client.queries, 1)
	assert.Contains(t, client.queries[0], "LIKE '%5550123456%'")
}

func TestSalesforceRegistry_ShortPhoneSkipsQuery(t *testing.T) {
	client := &stubSFClient{}
	reg := NewSalesforce(client)

	match, err := reg.FindContactByPhone(context.Background(), "555-0123")
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Empty(t, client.queries)
}

func TestSalesforceRegistry_LeadByEmail(t *testing.T) {
	client := &stubSFClient{leads: []salesforce.Lead{{
		ID: "00Qxx", Company: "Growth Labs",
	}}}
	reg := NewSalesforce(client)

	match, err := reg.FindLeadByEmail(context.Background(), "emily@growthlabs.com")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "lead", match.Source)
	assert.Equal(t, "Growth Labs", match.Company)

	require.Len(t, client.queries, 1)
	assert.True(t, strings.Contains(client.queries[0], "FROM Lead"))
}

func TestSalesforceRegistry_NoMatch(t *testing.T) {
	reg := NewSalesforce(&stubSFClient{})

	match, err := reg.FindContactByEmail(context.Background(), "nobody@nowhere.com")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestSalesforceRegistry_ErrorSurfaces(t *testing.T) {
	reg := NewSalesforce(&stubSFClient{err: eris.New("org unreachable")})

	_, err := reg.FindContactByEmail(context.Background(), "a@b.com")
	assert.Error(t, err)
}

func TestLookup_Order(t *testing.T) {
	fixture := NewFixture()
	fixture.Contacts[0].Phone = "+1 555 012 3456"

	// Email matches a contact: phone and lead lookups never run.
	match, err := Lookup(context.Background(), fixture, "john.smith@techcorp.com", "+1 555 012 3456")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "email", match.MatchedBy)

	// No email match: phone is consulted next.
	match, err = Lookup(context.Background(), fixture, "new@nowhere.com", "+1 555 012 3456")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "phone", match.MatchedBy)

	// Leads are the final fallback.
	match, err = Lookup(context.Background(), fixture, "emily.chen@growthlabs.com", "")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "lead", match.Source)

	// Nothing anywhere.
	match, err = Lookup(context.Background(), fixture, "new@nowhere.com", "")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestLookup_EmptyInputsSkip(t *testing.T) {
	client := &stubSFClient{}
	reg := NewSalesforce(client)

	match, err := Lookup(context.Background(), reg, "", "")
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Empty(t, client.queries)
}
