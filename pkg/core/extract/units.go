package extract

import (
	"regexp"
	"strings"
)

// Unit is a Korean monetary magnitude tier. Multiplier converts a figure in
// that unit to base KRW.
type Unit struct {
	Label      string
	Multiplier int64
}

// Magnitude tiers, largest first so 조원 is not shadowed by 원.
var unitTiers = []Unit{
	{"조원", 1_000_000_000_000},
	{"억원", 100_000_000},
	{"백만원", 1_000_000},
	{"천원", 1_000},
	{"원", 1},
}

var declaredUnitRe = map[string]*regexp.Regexp{}

func init() {
	for _, u := range unitTiers {
		declaredUnitRe[u.Label] = regexp.MustCompile(`단위\s*[:：]?\s*` + u.Label)
	}
}

// DetectDeclaredUnit finds an explicit unit declaration such as "(단위: 억원)"
// in the document text. Returns nil when the document declares nothing.
func DetectDeclaredUnit(text string) *Unit {
	for _, u := range unitTiers {
		if declaredUnitRe[u.Label].MatchString(text) {
			unit := u
			return &unit
		}
	}
	return nil
}

// MultiplierFromLabel resolves a free-form unit label to its multiplier.
// Returns 0 for an unrecognized label.
func MultiplierFromLabel(label string) int64 {
	s := strings.ToLower(label)
	for _, u := range unitTiers {
		if strings.Contains(s, u.Label) {
			return u.Multiplier
		}
	}
	return 0
}
