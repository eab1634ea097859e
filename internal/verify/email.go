package verify

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/contact-verifier/internal/model"
	"github.com/sells-group/contact-verifier/internal/resilience"
)

// Fixed evidence weights for the email channel. These must not drift: the
// 0.7 validity threshold is calibrated against them.
const (
	weightSyntax       = 0.20
	weightFilter       = 0.20
	weightARecord      = 0.10
	weightMX           = 0.20
	weightSMTP         = 0.30
	weightSMTPCatchAll = 0.15

	// Ceiling applied to the whole channel when the address hits the
	// disposable or role filter.
	filterCeiling = 0.2

	maxEmailLength = 254
	maxLocalLength = 64
)

var emailRegex = regexp.MustCompile(
	`^[a-zA-Z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+(?:\.[a-zA-Z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+)*@` +
		`(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?\.)+[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

// EmailOptions tunes the email channel. Zero values fall back to safe
// defaults in NewEmailVerifier.
type EmailOptions struct {
	DNSTimeout     time.Duration
	SMTPTimeout    time.Duration
	HelloDomain    string
	MaxSuggestions int
	ValidThreshold float64
	DNSLimiter     *rate.Limiter
	SMTPLimiter    *rate.Limiter
}

// EmailVerifier runs the staged email channel: syntax, disposable/role
// filter, domain DNS, SMTP probe. Stages short-circuit on disqualifying
// outcomes; external errors degrade to inconclusive evidence.
type EmailVerifier struct {
	resolver Resolver
	prober   SMTPProber
	lists    *FilterLists
	opts     EmailOptions
}

// NewEmailVerifier builds the email channel over the given collaborators.
func NewEmailVerifier(resolver Resolver, prober SMTPProber, lists *FilterLists, opts EmailOptions) *EmailVerifier {
	if opts.DNSTimeout <= 0 {
		opts.DNSTimeout = 10 * time.Second
	}
	if opts.SMTPTimeout <= 0 {
		opts.SMTPTimeout = 10 * time.Second
	}
	if opts.HelloDomain == "" {
		opts.HelloDomain = "verification.test"
	}
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = 5
	}
	if opts.ValidThreshold <= 0 {
		opts.ValidThreshold = 0.7
	}
	return &EmailVerifier{resolver: resolver, prober: prober, lists: lists, opts: opts}
}

// Verify runs the full email channel for one address. firstName, lastName
// and companyOrDomain feed suggestion generation when the domain has no MX.
func (v *EmailVerifier) Verify(ctx context.Context, email, firstName, lastName, companyOrDomain string) *model.ChannelResult {
	return v.verify(ctx, email, firstName, lastName, companyOrDomain, 0)
}

// depth bounds suggestion recursion: candidates generated at depth 0 are
// re-verified at depth 1 and generate no suggestions of their own.
func (v *EmailVerifier) verify(ctx context.Context, email, firstName, lastName, companyOrDomain string, depth int) *model.ChannelResult {
	result := &model.ChannelResult{Channel: "email", Input: email}
	email = strings.ToLower(strings.TrimSpace(email))

	// Stage 1: syntax. A malformed address never proceeds.
	syntax := v.checkSyntax(email)
	result.Stages = append(result.Stages, syntax)
	if syntax.Outcome != model.OutcomePass {
		v.finalize(result, false)
		return result
	}

	localPart, domain, _ := strings.Cut(email, "@")

	// Stage 2: disposable/role filter. A hit caps the channel but the
	// remaining stages still run so the evidence list stays complete.
	filter := v.checkFilter(localPart, domain)
	result.Stages = append(result.Stages, filter)
	filtered := filter.Outcome != model.OutcomePass

	// Stage 3: domain DNS.
	aResult, mxResult, mxHosts := v.checkDNS(ctx, domain)
	result.Stages = append(result.Stages, aResult, mxResult)

	if mxResult.Outcome != model.OutcomePass {
		// No MX means undeliverable. Offer pattern-generated alternates
		// when we have a name to build them from. When the company yields
		// no usable domain, fall back to the address's own domain.
		if depth == 0 && firstName != "" && lastName != "" {
			source := companyOrDomain
			if extractDomain(source) == "" {
				source = domain
			}
			result.SuggestedEmails = v.suggestEmails(ctx, firstName, lastName, source)
		}
		v.finalize(result, filtered)
		return result
	}

	// Stage 4: SMTP probe against the most preferred MX host.
	smtp := v.checkSMTP(ctx, email, domain, mxHosts)
	result.Stages = append(result.Stages, smtp)

	v.finalize(result, filtered)
	return result
}

func (v *EmailVerifier) finalize(result *model.ChannelResult, filtered bool) {
	score := 0.0
	for _, s := range result.Stages {
		if s.Outcome == model.OutcomePass {
			score += s.Weight
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	if filtered && score > filterCeiling {
		score = filterCeiling
	}
	result.Confidence = score
	result.IsValid = score >= v.opts.ValidThreshold
}

func (v *EmailVerifier) checkSyntax(email string) model.StageResult {
	res := model.StageResult{Stage: "syntax", Weight: weightSyntax, Outcome: model.OutcomeFail}
	switch {
	case email == "":
		res.Detail = "email is empty"
	case len(email) > maxEmailLength:
		res.Detail = fmt.Sprintf("email too long (>%d characters)", maxEmailLength)
	case !emailRegex.MatchString(email):
		res.Detail = "email format invalid"
	case len(strings.SplitN(email, "@", 2)[0]) > maxLocalLength:
		res.Detail = fmt.Sprintf("local part too long (>%d characters)", maxLocalLength)
	default:
		res.Outcome = model.OutcomePass
	}
	return res
}

func (v *EmailVerifier) checkFilter(localPart, domain string) model.StageResult {
	res := model.StageResult{Stage: "filter", Weight: weightFilter, Outcome: model.OutcomePass}
	if v.lists.IsDisposableDomain(domain) {
		res.Outcome = model.OutcomeInconclusive
		res.Detail = "disposable email domain: " + domain
	}
	if v.lists.IsRoleAccount(localPart) {
		res.Outcome = model.OutcomeInconclusive
		if res.Detail != "" {
			res.Detail += "; "
		}
		res.Detail += "role-based address: " + localPart
	}
	return res
}

// checkDNS resolves A and MX for the domain. MX hosts come back ordered by
// preference, most preferred first.
func (v *EmailVerifier) checkDNS(ctx context.Context, domain string) (model.StageResult, model.StageResult, []string) {
	aRes := model.StageResult{Stage: "dns_a", Weight: weightARecord}
	mxRes := model.StageResult{Stage: "dns_mx", Weight: weightMX}

	dnsCtx, cancel := context.WithTimeout(ctx, v.opts.DNSTimeout)
	defer cancel()

	if err := v.waitDNS(dnsCtx); err != nil {
		aRes.Outcome, aRes.Error = model.OutcomeInconclusive, err.Error()
		mxRes.Outcome, mxRes.Error = model.OutcomeInconclusive, err.Error()
		return aRes, mxRes, nil
	}

	hosts, err := v.resolver.LookupHost(dnsCtx, domain)
	switch {
	case err == nil && len(hosts) > 0:
		aRes.Outcome = model.OutcomePass
	case err != nil && resilience.IsTransient(err):
		aRes.Outcome, aRes.Error = model.OutcomeInconclusive, err.Error()
	default:
		aRes.Outcome, aRes.Detail = model.OutcomeFail, "no A record found"
	}

	mxs, err := v.resolver.LookupMX(dnsCtx, domain)
	switch {
	case err == nil && len(mxs) > 0:
		mxRes.Outcome = model.OutcomePass
		mxRes.Detail = fmt.Sprintf("%d MX records", len(mxs))
	case err != nil && resilience.IsTransient(err):
		mxRes.Outcome, mxRes.Error = model.OutcomeInconclusive, err.Error()
		return aRes, mxRes, nil
	default:
		mxRes.Outcome, mxRes.Detail = model.OutcomeFail, "no MX record found"
		return aRes, mxRes, nil
	}

	sort.SliceStable(mxs, func(i, j int) bool { return mxs[i].Pref < mxs[j].Pref })
	mxHosts := make([]string, 0, len(mxs))
	for _, mx := range mxs {
		mxHosts = append(mxHosts, strings.TrimSuffix(mx.Host, "."))
	}
	return aRes, mxRes, mxHosts
}

// checkSMTP probes the address and a synthetic catch-all canary in one
// session. 250 is deliverable, 550/551/553 a hard reject, 450/451/452 a
// temporary condition, anything else inconclusive.
func (v *EmailVerifier) checkSMTP(ctx context.Context, email, domain string, mxHosts []string) model.StageResult {
	res := model.StageResult{Stage: "smtp", Weight: weightSMTP}
	if len(mxHosts) == 0 {
		res.Outcome, res.Detail = model.OutcomeInconclusive, "no MX host to probe"
		return res
	}

	smtpCtx, cancel := context.WithTimeout(ctx, v.opts.SMTPTimeout)
	defer cancel()

	if err := v.waitSMTP(smtpCtx); err != nil {
		res.Outcome, res.Error = model.OutcomeInconclusive, err.Error()
		return res
	}

	canary := fmt.Sprintf("nonexistent-%d@%s", time.Now().UnixNano(), domain)
	probes, err := v.prober.Probe(smtpCtx, mxHosts[0], v.opts.HelloDomain, []string{email, canary})
	if err != nil && len(probes) == 0 {
		res.Outcome, res.Error = model.OutcomeInconclusive, err.Error()
		zap.L().Debug("verify: smtp probe failed",
			zap.String("mx_host", mxHosts[0]),
			zap.Error(err))
		return res
	}

	code, msg := probes[0].Code, probes[0].Message
	catchAll := len(probes) > 1 && probes[1].Code == 250

	switch {
	case code == 250 && catchAll:
		res.Outcome = model.OutcomePass
		res.Weight = weightSMTPCatchAll
		res.Detail = "accepted, but domain is catch-all"
	case code == 250:
		res.Outcome = model.OutcomePass
		res.Detail = "deliverable"
	case code == 550 || code == 551 || code == 553:
		res.Outcome = model.OutcomeFail
		res.Detail = fmt.Sprintf("rejected by server: %d %s", code, msg)
	case code == 450 || code == 451 || code == 452:
		res.Outcome = model.OutcomeInconclusive
		res.Detail = fmt.Sprintf("temporary delivery issue: %d %s", code, msg)
	default:
		res.Outcome = model.OutcomeInconclusive
		res.Detail = fmt.Sprintf("uncertain response: %d %s", code, msg)
	}
	return res
}

func (v *EmailVerifier) waitDNS(ctx context.Context) error {
	if v.opts.DNSLimiter == nil {
		return nil
	}
	return v.opts.DNSLimiter.Wait(ctx)
}

func (v *EmailVerifier) waitSMTP(ctx context.Context) error {
	if v.opts.SMTPLimiter == nil {
		return nil
	}
	return v.opts.SMTPLimiter.Wait(ctx)
}

// ValidateSyntax reports whether an address passes the syntax stage alone.
// Used by callers that need a cheap pre-check without network stages.
func (v *EmailVerifier) ValidateSyntax(email string) bool {
	return v.checkSyntax(strings.ToLower(strings.TrimSpace(email))).Outcome == model.OutcomePass
}
