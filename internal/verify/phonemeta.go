package verify

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/rotisserie/eris"
)

// LineType classifies a parsed number.
type LineType string

const (
	LineLandline LineType = "landline"
	LineMobile   LineType = "mobile"
	LineTollFree LineType = "toll_free"
	LineVoIP     LineType = "voip"
	LinePremium  LineType = "premium_rate"
	LineShared   LineType = "shared_cost"
	LinePager    LineType = "pager"
	LineUnknown  LineType = "unknown"
)

// PhoneInfo is everything the phone verifier needs about one parsed number.
type PhoneInfo struct {
	E164           string
	International  string
	National       string
	CountryCode    int
	RegionCode     string
	Carrier        string
	LineType       LineType
	Possible       bool
	Valid          bool
	NationalDigits int
}

// PhoneMetadata parses raw phone input into structured metadata. regionHint
// is an ISO 3166-1 alpha-2 code used when the input has no country prefix.
type PhoneMetadata interface {
	Parse(raw, regionHint string) (*PhoneInfo, error)
}

// LibPhoneMetadata implements PhoneMetadata on top of the libphonenumber
// metadata tables.
type LibPhoneMetadata struct{}

func NewLibPhoneMetadata() *LibPhoneMetadata { return &LibPhoneMetadata{} }

func (m *LibPhoneMetadata) Parse(raw, regionHint string) (*PhoneInfo, error) {
	num, err := phonenumbers.Parse(raw, strings.ToUpper(regionHint))
	if err != nil {
		return nil, eris.Wrapf(err, "phone: parse %q", raw)
	}

	info := &PhoneInfo{
		E164:          phonenumbers.Format(num, phonenumbers.E164),
		International: phonenumbers.Format(num, phonenumbers.INTERNATIONAL),
		National:      phonenumbers.Format(num, phonenumbers.NATIONAL),
		CountryCode:   int(num.GetCountryCode()),
		RegionCode:    phonenumbers.GetRegionCodeForNumber(num),
		Carrier:       carrierName(num),
		LineType:      lineType(phonenumbers.GetNumberType(num)),
		Possible:      phonenumbers.IsPossibleNumber(num),
		Valid:         phonenumbers.IsValidNumber(num),
	}
	info.NationalDigits = len(phonenumbers.GetNationalSignificantNumber(num))
	return info, nil
}

func carrierName(num *phonenumbers.PhoneNumber) string {
	name, err := phonenumbers.GetCarrierForNumber(num, "en")
	if err != nil {
		return ""
	}
	return name
}

func lineType(t phonenumbers.PhoneNumberType) LineType {
	switch t {
	case phonenumbers.FIXED_LINE:
		return LineLandline
	case phonenumbers.MOBILE, phonenumbers.FIXED_LINE_OR_MOBILE:
		return LineMobile
	case phonenumbers.TOLL_FREE:
		return LineTollFree
	case phonenumbers.VOIP:
		return LineVoIP
	case phonenumbers.PREMIUM_RATE:
		return LinePremium
	case phonenumbers.SHARED_COST:
		return LineShared
	case phonenumbers.PAGER:
		return LinePager
	default:
		return LineUnknown
	}
}
