package verify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/contact-verifier/internal/model"
)

// Fixed evidence weights for the phone channel.
const (
	weightPhoneFormat   = 0.25
	weightPhonePossible = 0.10
	weightPhoneLength   = 0.05
	weightLineFixed     = 0.20 // landline, toll-free
	weightLineMobile    = 0.15 // mobile, voip
	weightLineOther     = 0.10 // any other known type
	weightPhoneRegion   = 0.10
	weightPhoneCarrier  = 0.05
	weightBusiness      = 0.15
	weightNonMobile     = 0.10
	weightE164          = 0.10

	minNationalDigits = 7
	maxNationalDigits = 15
)

var nonDigit = regexp.MustCompile(`[^\d]`)

// PhoneOptions tunes the phone channel.
type PhoneOptions struct {
	DefaultRegion  string
	ValidThreshold float64
}

// PhoneVerifier scores a raw phone string from parsed metadata. The channel
// has no network stages; everything derives from the metadata tables.
type PhoneVerifier struct {
	meta  PhoneMetadata
	lists *FilterLists
	opts  PhoneOptions
}

// NewPhoneVerifier builds the phone channel over a metadata provider.
func NewPhoneVerifier(meta PhoneMetadata, lists *FilterLists, opts PhoneOptions) *PhoneVerifier {
	if opts.DefaultRegion == "" {
		opts.DefaultRegion = "US"
	}
	if opts.ValidThreshold <= 0 {
		opts.ValidThreshold = 0.7
	}
	return &PhoneVerifier{meta: meta, lists: lists, opts: opts}
}

// Verify scores one phone number. company feeds the business-line heuristic.
func (v *PhoneVerifier) Verify(raw, company string) *model.ChannelResult {
	result := &model.ChannelResult{Channel: "phone", Input: raw}

	if strings.TrimSpace(raw) == "" {
		result.Stages = append(result.Stages, model.StageResult{
			Stage:   "phone_parse",
			Outcome: model.OutcomeFail,
			Detail:  "phone number is empty",
		})
		return result
	}

	info, err := v.meta.Parse(raw, v.opts.DefaultRegion)
	if err != nil {
		result.Stages = append(result.Stages, model.StageResult{
			Stage:   "phone_parse",
			Outcome: model.OutcomeFail,
			Detail:  "unparseable phone number",
			Error:   err.Error(),
		})
		return result
	}

	// Not possible or not valid terminates the channel with zero score.
	if !info.Possible || !info.Valid {
		detail := "phone number is not possible"
		if info.Possible {
			detail = "phone number format is invalid"
		}
		result.Stages = append(result.Stages, model.StageResult{
			Stage:   "phone_parse",
			Outcome: model.OutcomeFail,
			Detail:  detail,
		})
		return result
	}

	result.Stages = append(result.Stages,
		model.StageResult{Stage: "phone_format", Outcome: model.OutcomePass, Weight: weightPhoneFormat, Detail: info.National},
		model.StageResult{Stage: "phone_possible", Outcome: model.OutcomePass, Weight: weightPhonePossible},
	)

	result.Stages = append(result.Stages, v.checkLength(info))
	result.Stages = append(result.Stages, v.checkLineType(info))
	result.Stages = append(result.Stages, v.checkMetadata(info)...)
	result.Stages = append(result.Stages, v.checkBusiness(info, company))
	result.Stages = append(result.Stages, v.checkE164(info))

	score := 0.0
	for _, s := range result.Stages {
		if s.Outcome == model.OutcomePass {
			score += s.Weight
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	result.Confidence = score
	result.IsValid = score >= v.opts.ValidThreshold
	return result
}

func (v *PhoneVerifier) checkLength(info *PhoneInfo) model.StageResult {
	res := model.StageResult{Stage: "phone_length", Weight: weightPhoneLength}
	if info.NationalDigits >= minNationalDigits && info.NationalDigits <= maxNationalDigits {
		res.Outcome = model.OutcomePass
	} else {
		res.Outcome = model.OutcomeFail
		res.Detail = fmt.Sprintf("%d national digits", info.NationalDigits)
	}
	return res
}

func (v *PhoneVerifier) checkLineType(info *PhoneInfo) model.StageResult {
	res := model.StageResult{Stage: "phone_line_type", Detail: string(info.LineType)}
	switch info.LineType {
	case LineLandline, LineTollFree:
		res.Outcome, res.Weight = model.OutcomePass, weightLineFixed
	case LineMobile, LineVoIP:
		res.Outcome, res.Weight = model.OutcomePass, weightLineMobile
	case LineUnknown:
		res.Outcome = model.OutcomeInconclusive
	default:
		res.Outcome, res.Weight = model.OutcomePass, weightLineOther
	}
	return res
}

func (v *PhoneVerifier) checkMetadata(info *PhoneInfo) []model.StageResult {
	region := model.StageResult{Stage: "phone_region", Weight: weightPhoneRegion, Detail: info.RegionCode}
	if info.RegionCode != "" {
		region.Outcome = model.OutcomePass
	} else {
		region.Outcome = model.OutcomeInconclusive
	}

	carrier := model.StageResult{Stage: "phone_carrier", Weight: weightPhoneCarrier, Detail: info.Carrier}
	if info.Carrier != "" {
		carrier.Outcome = model.OutcomePass
	} else {
		carrier.Outcome = model.OutcomeInconclusive
	}
	return []model.StageResult{region, carrier}
}

func (v *PhoneVerifier) checkBusiness(info *PhoneInfo, company string) model.StageResult {
	res := model.StageResult{Stage: "phone_business"}
	if v.BusinessLikely(info, company) {
		res.Outcome, res.Weight = model.OutcomePass, weightBusiness
		res.Detail = "likely business line"
	} else if info.LineType != LineMobile {
		res.Outcome, res.Weight = model.OutcomePass, weightNonMobile
		res.Detail = "non-mobile line"
	} else {
		res.Outcome = model.OutcomeInconclusive
		res.Detail = "personal mobile line"
	}
	return res
}

func (v *PhoneVerifier) checkE164(info *PhoneInfo) model.StageResult {
	res := model.StageResult{Stage: "phone_e164", Weight: weightE164, Detail: info.E164}
	if info.E164 != "" {
		res.Outcome = model.OutcomePass
	} else {
		res.Outcome = model.OutcomeFail
	}
	return res
}

// BusinessLikely scores business-line indicators against a fixed rubric:
// +3 landline, +5 toll-free, +2 voip, -2 mobile, carrier token sets +2/-1,
// +1 for a common-business country code. Likely iff the score reaches 3.
func (v *PhoneVerifier) BusinessLikely(info *PhoneInfo, company string) bool {
	score := 0

	switch info.LineType {
	case LineLandline:
		score += 3
	case LineTollFree:
		score += 5
	case LineVoIP:
		score += 2
	case LineMobile:
		score -= 2
	}

	carrier := strings.ToLower(info.Carrier)
	if carrier != "" {
		if containsAny(carrier, v.lists.BusinessCarrierTokens) {
			score += 2
		} else if containsAny(carrier, v.lists.MobileCarrierTokens) {
			score -= 1
		}
	}

	if v.lists.IsBusinessCountryCode(info.CountryCode) {
		score++
	}

	return score >= 3
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// Normalize returns the E.164 form of a valid number, or "" when the input
// cannot be parsed into a valid number.
func (v *PhoneVerifier) Normalize(raw string) string {
	info, err := v.meta.Parse(raw, v.opts.DefaultRegion)
	if err != nil || !info.Valid {
		return ""
	}
	return info.E164
}

// DedupedPhone is one surviving number from a Deduplicate pass.
type DedupedPhone struct {
	Original   string   `json:"original"`
	Normalized string   `json:"normalized"`
	IsValid    bool     `json:"is_valid"`
	Confidence float64  `json:"confidence"`
	LineType   LineType `json:"line_type"`
}

// Deduplicate normalizes a collection of phone strings to E.164 and drops
// exact duplicates after normalization, keeping first occurrence order.
func (v *PhoneVerifier) Deduplicate(phones []string) []DedupedPhone {
	seen := make(map[string]struct{})
	out := make([]DedupedPhone, 0, len(phones))

	for _, raw := range phones {
		normalized := v.Normalize(raw)
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}

		chRes := v.Verify(raw, "")
		lineType := LineUnknown
		if info, err := v.meta.Parse(raw, v.opts.DefaultRegion); err == nil {
			lineType = info.LineType
		}
		out = append(out, DedupedPhone{
			Original:   raw,
			Normalized: normalized,
			IsValid:    chRes.IsValid,
			Confidence: chRes.Confidence,
			LineType:   lineType,
		})
	}
	return out
}

// SuggestCorrections tries a fixed set of re-formatting patterns against an
// unparseable or invalid number and returns up to 3 valid E.164 candidates.
func (v *PhoneVerifier) SuggestCorrections(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	digits := nonDigit.ReplaceAllString(raw, "")
	if digits == "" {
		return nil
	}

	attempts := []string{"+1" + digits, digits}
	if len(digits) >= 10 {
		attempts = append(attempts, "+1"+digits[len(digits)-10:])
	}
	if strings.HasPrefix(digits, "1") && len(digits) == 11 {
		attempts = append(attempts, digits[1:])
	}

	suggestions := make([]string, 0, 3)
	seen := make(map[string]struct{})
	for _, attempt := range attempts {
		info, err := v.meta.Parse(attempt, v.opts.DefaultRegion)
		if err != nil || !info.Valid {
			continue
		}
		if _, dup := seen[info.E164]; dup {
			continue
		}
		seen[info.E164] = struct{}{}
		suggestions = append(suggestions, info.E164)
		if len(suggestions) == 3 {
			break
		}
	}
	return suggestions
}
