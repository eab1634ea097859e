package verify

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-verifier/internal/model"
	"github.com/sells-group/contact-verifier/internal/resilience"
)

func acmeResolver() *stubResolver {
	return &stubResolver{
		hosts: map[string][]string{"acme.com": {"93.184.216.34"}},
		mxs: map[string][]*net.MX{
			"acme.com": {
				{Host: "mx2.acme.com.", Pref: 20},
				{Host: "mx1.acme.com.", Pref: 10},
			},
		},
	}
}

func TestEmailVerify_FullPass(t *testing.T) {
	v := newTestEmailVerifier(acmeResolver(), &stubProber{realCode: 250, canaryCode: 550})

	res := v.Verify(context.Background(), "jane.doe@acme.com", "Jane", "Doe", "Acme Inc")

	// 0.2 syntax + 0.2 filter + 0.1 A + 0.2 MX + 0.3 smtp = 1.0
	assert.Equal(t, 1.0, res.Confidence)
	assert.True(t, res.IsValid)
	assert.Len(t, res.Stages, 5)
}

func TestEmailVerify_CatchAll(t *testing.T) {
	v := newTestEmailVerifier(acmeResolver(), &stubProber{realCode: 250, canaryCode: 250})

	res := v.Verify(context.Background(), "jane.doe@acme.com", "", "", "")

	// 0.2 + 0.2 + 0.1 + 0.2 + 0.15 catch-all = 0.85
	assert.InDelta(t, 0.85, res.Confidence, 0.0001)
	assert.True(t, res.IsValid)

	smtp := res.Stages[len(res.Stages)-1]
	assert.Equal(t, "smtp", smtp.Stage)
	assert.Equal(t, weightSMTPCatchAll, smtp.Weight)
	assert.Contains(t, smtp.Detail, "catch-all")
}

func TestEmailVerify_SyntaxFail_ShortCircuits(t *testing.T) {
	resolver := acmeResolver()
	prober := &stubProber{realCode: 250, canaryCode: 550}
	v := newTestEmailVerifier(resolver, prober)

	res := v.Verify(context.Background(), "not-an-email", "", "", "")

	assert.Equal(t, 0.0, res.Confidence)
	assert.False(t, res.IsValid)
	require.Len(t, res.Stages, 1)
	assert.Equal(t, model.OutcomeFail, res.Stages[0].Outcome)
	assert.Zero(t, resolver.hostCalls)
	assert.Zero(t, resolver.mxCalls)
	assert.Zero(t, prober.calls)
}

func TestEmailVerify_EmptyEmail(t *testing.T) {
	v := newTestEmailVerifier(acmeResolver(), &stubProber{})
	res := v.Verify(context.Background(), "", "", "", "")
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, "email is empty", res.Stages[0].Detail)
}

func TestEmailVerify_LocalPartTooLong(t *testing.T) {
	v := newTestEmailVerifier(acmeResolver(), &stubProber{})
	addr := strings.Repeat("a", 65) + "@acme.com"
	res := v.Verify(context.Background(), addr, "", "", "")
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Stages[0].Detail, "local part too long")
}

func TestEmailVerify_DisposableCeiling(t *testing.T) {
	resolver := acmeResolver()
	resolver.hosts["mailinator.com"] = []string{"1.2.3.4"}
	resolver.mxs["mailinator.com"] = []*net.MX{{Host: "mx.mailinator.com.", Pref: 10}}
	v := newTestEmailVerifier(resolver, &stubProber{realCode: 250, canaryCode: 550})

	res := v.Verify(context.Background(), "jane@mailinator.com", "", "", "")

	// Every stage after the filter still runs, but the hit caps the channel.
	assert.Len(t, res.Stages, 5)
	assert.Equal(t, filterCeiling, res.Confidence)
	assert.False(t, res.IsValid)
	assert.Equal(t, model.OutcomeInconclusive, res.Stages[1].Outcome)
}

func TestEmailVerify_RoleAccountCeiling(t *testing.T) {
	v := newTestEmailVerifier(acmeResolver(), &stubProber{realCode: 250, canaryCode: 550})

	res := v.Verify(context.Background(), "admin@acme.com", "", "", "")

	assert.Equal(t, filterCeiling, res.Confidence)
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Stages[1].Detail, "role-based")
}

func TestEmailVerify_HardReject(t *testing.T) {
	v := newTestEmailVerifier(acmeResolver(), &stubProber{realCode: 550, canaryCode: 550})

	res := v.Verify(context.Background(), "gone@acme.com", "", "", "")

	// 0.2 + 0.2 + 0.1 + 0.2 = 0.7, the smtp stage contributes nothing.
	assert.InDelta(t, 0.7, res.Confidence, 0.0001)
	assert.True(t, res.IsValid)
	smtp := res.Stages[len(res.Stages)-1]
	assert.Equal(t, model.OutcomeFail, smtp.Outcome)
	assert.Contains(t, smtp.Detail, "rejected")
}

func TestEmailVerify_SoftFailInconclusive(t *testing.T) {
	v := newTestEmailVerifier(acmeResolver(), &stubProber{realCode: 451, canaryCode: 550})

	res := v.Verify(context.Background(), "busy@acme.com", "", "", "")

	smtp := res.Stages[len(res.Stages)-1]
	assert.Equal(t, model.OutcomeInconclusive, smtp.Outcome)
	assert.Contains(t, smtp.Detail, "temporary")
}

func TestEmailVerify_ProbeErrorInconclusive(t *testing.T) {
	v := newTestEmailVerifier(acmeResolver(), &stubProber{err: errUnparseable})

	res := v.Verify(context.Background(), "jane@acme.com", "", "", "")

	smtp := res.Stages[len(res.Stages)-1]
	assert.Equal(t, model.OutcomeInconclusive, smtp.Outcome)
	assert.NotEmpty(t, smtp.Error)
}

func TestEmailVerify_NoMX_Suggestions(t *testing.T) {
	resolver := acmeResolver()
	resolver.hosts["deadco.com"] = []string{"5.6.7.8"}
	prober := &stubProber{realCode: 250, canaryCode: 550}
	v := newTestEmailVerifier(resolver, prober)

	res := v.Verify(context.Background(), "jane.doe@deadco.com", "Jane", "Doe", "Acme Inc")

	assert.False(t, res.IsValid)
	require.NotEmpty(t, res.SuggestedEmails)
	assert.LessOrEqual(t, len(res.SuggestedEmails), 5)
	assert.Equal(t, "jane.doe@acme.com", res.SuggestedEmails[0].Email)
	for _, s := range res.SuggestedEmails {
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	}
}

func TestEmailVerify_NoMX_EmptyCompanyFallsBackToOwnDomain(t *testing.T) {
	resolver := acmeResolver()
	resolver.hosts["deadco.com"] = []string{"5.6.7.8"}
	v := newTestEmailVerifier(resolver, &stubProber{realCode: 250, canaryCode: 550})

	res := v.Verify(context.Background(), "jane.doe@deadco.com", "Jane", "Doe", "")

	assert.False(t, res.IsValid)
	require.NotEmpty(t, res.SuggestedEmails)
	for _, s := range res.SuggestedEmails {
		assert.True(t, strings.HasSuffix(s.Email, "@deadco.com"), s.Email)
	}
}

func TestEmailVerify_NoMX_NoNameNoSuggestions(t *testing.T) {
	resolver := acmeResolver()
	resolver.hosts["deadco.com"] = []string{"5.6.7.8"}
	v := newTestEmailVerifier(resolver, &stubProber{})

	res := v.Verify(context.Background(), "jane@deadco.com", "", "", "Acme Inc")

	assert.False(t, res.IsValid)
	assert.Empty(t, res.SuggestedEmails)
}

func TestEmailVerify_TransientDNSInconclusive(t *testing.T) {
	resolver := &stubResolver{
		hostErr: resilience.MarkTransient(&net.DNSError{Err: "timeout", IsTimeout: true}),
		mxErr:   resilience.MarkTransient(&net.DNSError{Err: "timeout", IsTimeout: true}),
	}
	v := newTestEmailVerifier(resolver, &stubProber{})

	res := v.Verify(context.Background(), "jane@acme.com", "", "", "")

	// syntax 0.2 + filter 0.2, both DNS stages inconclusive.
	assert.InDelta(t, 0.4, res.Confidence, 0.0001)
	assert.Equal(t, model.OutcomeInconclusive, res.Stages[2].Outcome)
	assert.Equal(t, model.OutcomeInconclusive, res.Stages[3].Outcome)
}

func TestFinalize_ThresholdBoundary(t *testing.T) {
	v := newTestEmailVerifier(&stubResolver{}, &stubProber{})

	exact := &model.ChannelResult{Stages: []model.StageResult{
		{Outcome: model.OutcomePass, Weight: 0.70},
	}}
	v.finalize(exact, false)
	assert.True(t, exact.IsValid)

	below := &model.ChannelResult{Stages: []model.StageResult{
		{Outcome: model.OutcomePass, Weight: 0.699999},
	}}
	v.finalize(below, false)
	assert.False(t, below.IsValid)
}

func TestEmailVerify_MostPreferredMXProbed(t *testing.T) {
	type call struct{ host string }
	var probed []call
	prober := &recordingProber{onProbe: func(mxHost string) {
		probed = append(probed, call{host: mxHost})
	}}
	v := newTestEmailVerifier(acmeResolver(), prober)

	v.Verify(context.Background(), "jane@acme.com", "", "", "")

	require.Len(t, probed, 1)
	assert.Equal(t, "mx1.acme.com", probed[0].host)
}

// recordingProber accepts everything and reports which MX host was dialed.
type recordingProber struct {
	onProbe func(mxHost string)
}

func (r *recordingProber) Probe(_ context.Context, mxHost, _ string, addrs []string) ([]RCPTResult, error) {
	r.onProbe(mxHost)
	results := make([]RCPTResult, len(addrs))
	for i, addr := range addrs {
		results[i] = RCPTResult{Addr: addr, Code: 550}
	}
	return results, nil
}
