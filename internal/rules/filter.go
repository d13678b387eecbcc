package rules

import (
	"slices"
	"sort"
	"strings"
)

// Filter narrows already-fetched rules by query filters that can be checked
// locally. Profile-related filters need activation data and are ignored.
func Filter(rules []Rule, q Query) []Rule {
	var filtered []Rule

	for _, rule := range rules {
		if len(q.Languages) > 0 && !containsFold(q.Languages, rule.Lang) {
			continue
		}
		if len(q.Types) > 0 && !slices.Contains(q.Types, rule.Type) {
			continue
		}
		if len(q.Severities) > 0 && !slices.Contains(q.Severities, rule.Severity) {
			continue
		}
		if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, rule.Status) {
			continue
		}
		if len(q.Repositories) > 0 && !containsFold(q.Repositories, rule.Repo) {
			continue
		}
		if len(q.Tags) > 0 && !hasAnyTag(rule, q.Tags) {
			continue
		}
		if q.Template != nil && rule.IsTemplate != *q.Template {
			continue
		}
		if q.TemplateKey != "" && rule.TemplateKey != q.TemplateKey {
			continue
		}
		if q.SearchQuery != "" && !matchesText(rule, q.SearchQuery) {
			continue
		}

		filtered = append(filtered, rule)
	}

	return filtered
}

// BySeverity returns rules at or above the given severity.
func BySeverity(rules []Rule, minSeverity Severity) []Rule {
	minRank := minSeverity.Rank()
	var filtered []Rule

	for _, rule := range rules {
		if rule.Severity.Rank() >= minRank {
			filtered = append(filtered, rule)
		}
	}

	return filtered
}

// SortByName orders rules by name, then key, in place.
func SortByName(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Name != rules[j].Name {
			return rules[i].Name < rules[j].Name
		}
		return rules[i].Key < rules[j].Key
	})
}

// IndexOf returns the position of the rule with the given key, or -1.
func IndexOf(rules []Rule, key string) int {
	return slices.IndexFunc(rules, func(r Rule) bool { return r.Key == key })
}

func hasAnyTag(rule Rule, tags []string) bool {
	for _, t := range rule.AllTags() {
		if containsFold(tags, t) {
			return true
		}
	}
	return false
}

func matchesText(rule Rule, text string) bool {
	text = strings.ToLower(text)
	return strings.Contains(strings.ToLower(rule.Name), text) ||
		strings.Contains(strings.ToLower(rule.Key), text)
}
