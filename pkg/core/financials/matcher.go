package financials

import (
	"log"
	"strings"

	"github.com/realonep/dart-openapi/pkg/core/dart"
)

// Rule is one step of a priority-ordered account matcher chain. Match
// receives the lower-cased standard account id and account name.
type Rule struct {
	Name  string
	Match func(id, nm string) bool
}

// idExact matches the standard account identifier exactly.
func idExact(want string) Rule {
	return Rule{Name: "id_exact_" + want, Match: func(id, _ string) bool { return id == want }}
}

// idContains matches a substring of the account identifier.
func idContains(frag string) Rule {
	return Rule{Name: "id_contains_" + frag, Match: func(id, _ string) bool { return strings.Contains(id, frag) }}
}

// nmContainsAny matches when the account name contains any of the fragments.
func nmContainsAny(name string, frags ...string) Rule {
	return Rule{Name: name, Match: func(_, nm string) bool {
		for _, f := range frags {
			if strings.Contains(nm, f) {
				return true
			}
		}
		return false
	}}
}

// nmContainsAll matches when the account name contains every fragment.
func nmContainsAll(name string, frags ...string) Rule {
	return Rule{Name: name, Match: func(_, nm string) bool {
		for _, f := range frags {
			if !strings.Contains(nm, f) {
				return false
			}
		}
		return true
	}}
}

// FindByPriority walks the rules in order and returns the first account the
// first satisfied rule matches. Multiple matches under one rule are logged
// but the first in list order still wins; the tie-break is deterministic and
// downstream figures depend on it.
func FindByPriority(list []dart.Account, rules []Rule, logLabel string) *dart.Account {
	for _, rule := range rules {
		var matched []*dart.Account
		for i := range list {
			id := strings.ToLower(list[i].AccountID)
			nm := strings.ToLower(list[i].AccountNm)
			if rule.Match(id, nm) {
				matched = append(matched, &list[i])
			}
		}
		if len(matched) > 1 && logLabel != "" {
			names := make([]string, 0, 3)
			for i := 0; i < len(matched) && i < 3; i++ {
				names = append(names, matched[i].AccountNm)
			}
			log.Printf("  [Financials/MATCH] %s: multiple(%d) by %s. pick=%s candidates=%s",
				logLabel, len(matched), rule.Name, matched[0].AccountNm, strings.Join(names, " | "))
		}
		if len(matched) > 0 {
			return matched[0]
		}
	}
	return nil
}

// preferIncomeStatement narrows to IS/CIS rows when any exist; income
// concepts must not be picked up from other statements when a proper income
// statement is present.
func preferIncomeStatement(list []dart.Account) []dart.Account {
	var out []dart.Account
	for _, a := range list {
		div := strings.ToUpper(a.SjDiv)
		if div == "IS" || div == "CIS" {
			out = append(out, a)
		}
	}
	if len(out) > 0 {
		return out
	}
	return list
}

// preferCashflowStatement narrows to CF rows when any exist.
func preferCashflowStatement(list []dart.Account) []dart.Account {
	var out []dart.Account
	for _, a := range list {
		if strings.ToUpper(a.SjDiv) == "CF" {
			out = append(out, a)
		}
	}
	if len(out) > 0 {
		return out
	}
	return list
}

// filterByScope keeps the rows of the preferred statement scope; when none
// carry it, the scope of the first row is used instead.
func filterByScope(list []dart.Account, preferred string) []dart.Account {
	if len(list) == 0 {
		return list
	}
	want := strings.ToLower(preferred)
	has := false
	for _, a := range list {
		if strings.ToLower(a.FsDiv) == want {
			has = true
			break
		}
	}
	if !has {
		want = strings.ToLower(list[0].FsDiv)
	}
	var out []dart.Account
	for _, a := range list {
		if strings.ToLower(a.FsDiv) == want {
			out = append(out, a)
		}
	}
	return out
}
