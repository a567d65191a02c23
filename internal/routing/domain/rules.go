package domain

import (
	"slices"
	"sort"
	"strings"
)

// SortRules orders rules by priority descending, then creation ascending.
func SortRules(rules []RoutingRule) []RoutingRule {
	sorted := slices.Clone(rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}

// FindMatch returns the first active rule that matches the lead, evaluating
// rules in precedence order. Nothing after the first match is inspected.
func FindMatch(lead Lead, rules []RoutingRule) (RoutingRule, bool) {
	for _, rule := range SortRules(rules) {
		if !rule.IsActive {
			continue
		}
		if RuleMatches(lead, rule) {
			return rule, true
		}
	}
	return RoutingRule{}, false
}

// RuleMatches reports whether every populated match set on the rule is
// satisfied by the lead. Empty sets are wildcards; a populated set never
// matches a missing lead attribute.
func RuleMatches(lead Lead, rule RoutingRule) bool {
	return matchScalar(rule.MatchLanguage, lead.Language) &&
		matchScalar(rule.MatchPageType, lead.PageType) &&
		matchScalar(rule.MatchPageSlug, lead.PageSlug) &&
		matchScalar(rule.MatchLeadSource, lead.Source) &&
		matchScalar(rule.MatchLeadSegment, string(lead.Segment)) &&
		matchContains(rule.MatchBudgetRange, lead.BudgetRange) &&
		matchOverlap(rule.MatchPropertyType, lead.PropertyTypes) &&
		matchScalar(rule.MatchTimeframe, lead.Timeframe)
}

func matchScalar(set []string, value string) bool {
	if len(set) == 0 {
		return true
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	return slices.ContainsFunc(set, func(candidate string) bool {
		return strings.EqualFold(strings.TrimSpace(candidate), value)
	})
}

// Budget labels are free text ("€500,000 - €1,000,000"), so rule tokens match
// as case-insensitive substrings.
func matchContains(set []string, value string) bool {
	if len(set) == 0 {
		return true
	}
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return false
	}
	return slices.ContainsFunc(set, func(token string) bool {
		token = strings.ToLower(strings.TrimSpace(token))
		return token != "" && strings.Contains(value, token)
	})
}

func matchOverlap(set, values []string) bool {
	if len(set) == 0 {
		return true
	}
	return slices.ContainsFunc(values, func(v string) bool {
		return matchScalar(set, v)
	})
}
