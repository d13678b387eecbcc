package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JNZader/codingrules/internal/activation"
	"github.com/JNZader/codingrules/internal/rules"
)

func severityCell(row activation.Row) string {
	if row.SeverityOverridden {
		return fmt.Sprintf("%s (original: %s)", row.Severity, row.SeverityOriginal)
	}
	return string(row.Severity)
}

func paramCell(p activation.ParamDiff) string {
	s := p.Key + ": " + p.Value
	if !p.Overridden {
		return s
	}
	if p.Original == nil {
		return s + " (original: none)"
	}
	return s + fmt.Sprintf(" (original: %s)", *p.Original)
}

func issuesLine(ic *rules.IssueCount) string {
	if ic.Total == 0 {
		return "no open issues"
	}
	s := fmt.Sprintf("%d open", ic.Total)
	if len(ic.Projects) == 0 {
		return s
	}
	cells := make([]string, len(ic.Projects))
	for i, p := range ic.Projects {
		cells[i] = fmt.Sprintf("%s %d", p.Name, p.Count)
	}
	return s + " (" + strings.Join(cells, ", ") + ")"
}

func paramsCell(row activation.Row) string {
	cells := make([]string, len(row.Params))
	for i, p := range row.Params {
		cells[i] = paramCell(p)
	}
	return strings.Join(cells, ", ")
}

func actionsCell(a activation.Actions) string {
	var out []string
	if a.CanChange {
		out = append(out, "change")
	}
	if a.CanRevert {
		out = append(out, "revert")
	}
	if a.CanDeactivate {
		out = append(out, "deactivate")
	}
	return strings.Join(out, ", ")
}

func profileLabel(row activation.Row) string {
	if row.BuiltIn {
		return row.ProfileName + " (built-in)"
	}
	return row.ProfileName
}

func canActivate(rows []activation.Row) bool {
	for _, r := range rows {
		if r.Actions.CanActivate {
			return true
		}
	}
	return false
}

func defaultParams(params []rules.Param) string {
	cells := make([]string, 0, len(params))
	for _, p := range params {
		cells = append(cells, p.Key+": "+p.DefaultValue)
	}
	return strings.Join(cells, ", ")
}

func language(r rules.Rule) string {
	if r.LangName != "" {
		return r.LangName
	}
	return r.Lang
}

func ruleKind(r rules.Rule) string {
	switch {
	case r.IsTemplate:
		return "template"
	case r.IsCustom():
		return "custom of " + r.TemplateKey
	}
	return ""
}

func activeCell(v RulesView, key string) string {
	s, ok := v.Actives.Lookup(key, v.Profile)
	if !ok {
		return ""
	}
	if s.Inherit.FromParent() {
		return fmt.Sprintf("active %s, %s", s.Severity, strings.ToLower(string(s.Inherit)))
	}
	return "active " + string(s.Severity)
}

func facetLine(v RulesView, key rules.FacetKey) string {
	values := v.Facets.Sorted(key)
	cells := make([]string, len(values))
	for i, fv := range values {
		cells[i] = fmt.Sprintf("%s (%d)", fv.Value, fv.Count)
	}
	return strings.Join(cells, ", ")
}

// facetKeys returns the facets to render: the open ones when given,
// otherwise every facet with counts, in display order.
func facetKeys(v RulesView) []rules.FacetKey {
	if len(v.OpenFacets) > 0 {
		return v.OpenFacets
	}
	var keys []rules.FacetKey
	for _, k := range rules.FacetKeys() {
		if len(v.Facets[k]) > 0 {
			keys = append(keys, k)
		}
	}
	return keys
}

func pagingLine(v RulesView) string {
	if v.Paging == nil {
		return fmt.Sprintf("%d rules", len(v.Rules))
	}
	return fmt.Sprintf("%d of %d rules", len(v.Rules), v.Paging.Total)
}

func sortedTags(tags []string) []string {
	out := append([]string(nil), tags...)
	sort.Strings(out)
	return out
}
