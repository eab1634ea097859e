package verify

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed data/lists.yaml
var listsYAML []byte

// FilterLists holds the curated sets used by the filter stage and the
// business-line heuristic.
type FilterLists struct {
	DisposableDomains     []string `yaml:"disposable_domains"`
	RoleAccounts          []string `yaml:"role_accounts"`
	BusinessCarrierTokens []string `yaml:"business_carrier_tokens"`
	MobileCarrierTokens   []string `yaml:"mobile_carrier_tokens"`
	BusinessCountryCodes  []int    `yaml:"business_country_codes"`

	disposable map[string]struct{}
	role       map[string]struct{}
	bizCodes   map[int]struct{}
}

// LoadFilterLists parses the embedded list data. It only fails if the
// embedded file is malformed, which a test catches at build time.
func LoadFilterLists() (*FilterLists, error) {
	var l FilterLists
	if err := yaml.Unmarshal(listsYAML, &l); err != nil {
		return nil, eris.Wrap(err, "verify: parse embedded lists")
	}
	l.disposable = toSet(l.DisposableDomains)
	l.role = toSet(l.RoleAccounts)
	l.bizCodes = make(map[int]struct{}, len(l.BusinessCountryCodes))
	for _, c := range l.BusinessCountryCodes {
		l.bizCodes[c] = struct{}{}
	}
	return &l, nil
}

func (l *FilterLists) IsDisposableDomain(domain string) bool {
	_, ok := l.disposable[domain]
	return ok
}

func (l *FilterLists) IsRoleAccount(localPart string) bool {
	_, ok := l.role[localPart]
	return ok
}

func (l *FilterLists) IsBusinessCountryCode(code int) bool {
	_, ok := l.bizCodes[code]
	return ok
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
