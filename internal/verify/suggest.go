package verify

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/contact-verifier/internal/model"
)

// Naming patterns tried when generating alternate addresses, in order of
// how common they are in the wild.
var suggestionPatterns = []func(first, last, fi, li string) string{
	func(f, l, fi, li string) string { return f + "." + l },
	func(f, l, fi, li string) string { return f + l },
	func(f, l, fi, li string) string { return fi + l },
	func(f, l, fi, li string) string { return f + li },
	func(f, l, fi, li string) string { return fi + "." + l },
	func(f, l, fi, li string) string { return f + "." + li },
	func(f, l, fi, li string) string { return l + "." + f },
	func(f, l, fi, li string) string { return l + f },
}

var (
	nonLetter      = regexp.MustCompile(`[^a-z]`)
	nonAlnumSpace  = regexp.MustCompile(`[^a-z0-9\s]`)
	corpSuffixes   = regexp.MustCompile(`\b(inc|llc|corp|company|ltd|limited)\b`)
	urlScheme      = regexp.MustCompile(`^https?://`)
	diacriticStrip = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// suggestEmails builds up to MaxSuggestions candidate addresses from the
// contact's name and company, each re-verified one level deep so that every
// suggestion carries its own confidence.
func (v *EmailVerifier) suggestEmails(ctx context.Context, firstName, lastName, companyOrDomain string) []model.SuggestedEmail {
	first := cleanNamePart(firstName)
	last := cleanNamePart(lastName)
	if first == "" || last == "" {
		return nil
	}

	domain := extractDomain(companyOrDomain)
	if domain == "" {
		return nil
	}

	seen := make(map[string]struct{})
	candidates := make([]string, 0, len(suggestionPatterns))
	for _, pattern := range suggestionPatterns {
		email := pattern(first, last, first[:1], last[:1]) + "@" + domain
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		candidates = append(candidates, email)
	}

	if len(candidates) > v.opts.MaxSuggestions {
		candidates = candidates[:v.opts.MaxSuggestions]
	}

	suggestions := make([]model.SuggestedEmail, 0, len(candidates))
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		chRes := v.verify(ctx, candidate, "", "", "", 1)
		suggestions = append(suggestions, model.SuggestedEmail{
			Email:      candidate,
			Confidence: chRes.Confidence,
		})
	}
	return suggestions
}

// cleanNamePart lowercases, folds diacritics, and strips everything that is
// not an ASCII letter.
func cleanNamePart(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	if folded, _, err := transform.String(diacriticStrip, lowered); err == nil {
		lowered = folded
	}
	return nonLetter.ReplaceAllString(lowered, "")
}

// extractDomain turns a company name or URL into a mail domain. Inputs that
// already look like a domain are cleaned; bare company names are collapsed
// into a .com guess.
func extractDomain(companyOrDomain string) string {
	s := strings.ToLower(strings.TrimSpace(companyOrDomain))
	if s == "" {
		return ""
	}

	if strings.Contains(s, ".") && !strings.Contains(s, " ") {
		s = urlScheme.ReplaceAllString(s, "")
		s = strings.TrimPrefix(s, "www.")
		s, _, _ = strings.Cut(s, "/")
		return s
	}

	if folded, _, err := transform.String(diacriticStrip, s); err == nil {
		s = folded
	}
	s = nonAlnumSpace.ReplaceAllString(s, "")
	s = corpSuffixes.ReplaceAllString(s, "")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return ""
	}
	return s + ".com"
}
