package verify

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanNamePart(t *testing.T) {
	assert.Equal(t, "jose", cleanNamePart("José"))
	assert.Equal(t, "oconnor", cleanNamePart("O'Connor"))
	assert.Equal(t, "mullerlud", cleanNamePart(" Müller-Lüd "))
	assert.Equal(t, "", cleanNamePart("123"))
}

func TestExtractDomain(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"acme.com", "acme.com"},
		{"https://www.acme.com/about", "acme.com"},
		{"WWW.ACME.COM", "acme.com"},
		{"Acme Inc", "acme.com"},
		{"Growth Labs LLC", "growthlabs.com"},
		{"Ltd", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, extractDomain(tc.in), "input %q", tc.in)
	}
}

func TestSuggestEmails_PatternOrderAndCap(t *testing.T) {
	resolver := acmeResolver()
	v := newTestEmailVerifier(resolver, &stubProber{realCode: 250, canaryCode: 550})

	got := v.suggestEmails(context.Background(), "Jane", "Doe", "Acme Inc")

	// 8 distinct patterns, capped at the first 5.
	require.Len(t, got, 5)
	assert.Equal(t, "jane.doe@acme.com", got[0].Email)
	assert.Equal(t, "janedoe@acme.com", got[1].Email)
	assert.Equal(t, "jdoe@acme.com", got[2].Email)
	assert.Equal(t, "janed@acme.com", got[3].Email)
	assert.Equal(t, "j.doe@acme.com", got[4].Email)
}

func TestSuggestEmails_RequiresBothNames(t *testing.T) {
	v := newTestEmailVerifier(acmeResolver(), &stubProber{})
	assert.Nil(t, v.suggestEmails(context.Background(), "Jane", "", "Acme Inc"))
	assert.Nil(t, v.suggestEmails(context.Background(), "", "Doe", "Acme Inc"))
	assert.Nil(t, v.suggestEmails(context.Background(), "Jane", "Doe", ""))
}

func TestSuggestEmails_DepthBounded(t *testing.T) {
	// Suggestion domain also lacks MX: the depth-1 re-verification must not
	// recurse into another round of suggestions.
	resolver := &stubResolver{
		hosts: map[string][]string{"acme.com": {"1.2.3.4"}},
		mxs:   map[string][]*net.MX{},
	}
	v := newTestEmailVerifier(resolver, &stubProber{})

	got := v.suggestEmails(context.Background(), "Jane", "Doe", "Acme Inc")

	require.Len(t, got, 5)
	for _, s := range got {
		// syntax 0.2 + filter 0.2 + A 0.1 = 0.5, no MX.
		assert.InDelta(t, 0.5, s.Confidence, 0.0001)
	}
}
