package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/JNZader/codingrules/internal/history"
	"github.com/JNZader/codingrules/internal/profiles"
	"github.com/JNZader/codingrules/internal/rules"
)

// MarkdownReporter generates Markdown reports.
type MarkdownReporter struct{}

func (r *MarkdownReporter) Format() string { return "markdown" }

func (r *MarkdownReporter) Rules(w io.Writer, v RulesView) error {
	fmt.Fprintf(w, "# Coding Rules\n\n")
	fmt.Fprintf(w, "- **Rules:** %s\n", pagingLine(v))
	if v.Profile != "" {
		fmt.Fprintf(w, "- **Profile:** %s\n", v.Profile)
	}
	fmt.Fprintf(w, "\n")

	if len(v.Rules) == 0 {
		fmt.Fprintf(w, "No rules found.\n")
		return nil
	}

	fmt.Fprintf(w, "| Key | Severity | Language | Name | |\n")
	fmt.Fprintf(w, "|---|---|---|---|---|\n")
	for _, rule := range v.Rules {
		var extra []string
		if kind := ruleKind(rule); kind != "" {
			extra = append(extra, kind)
		}
		if active := activeCell(v, rule.Key); active != "" {
			extra = append(extra, active)
		}
		fmt.Fprintf(w, "| `%s` | %s | %s | %s | %s |\n",
			rule.Key, r.severityLabel(rule.Severity), language(rule), cell(rule.Name), strings.Join(extra, "; "))
	}

	if keys := facetKeys(v); len(keys) > 0 {
		fmt.Fprintf(w, "\n## Facets\n\n")
		for _, key := range keys {
			fmt.Fprintf(w, "- **%s:** %s\n", key, facetLine(v, key))
		}
	}
	return nil
}

func (r *MarkdownReporter) Rule(w io.Writer, v RuleView) error {
	d := v.Details
	if d == nil {
		return nil
	}
	rule := d.Rule

	title := rule.Name
	if u := ruleURL(v.Links, rule.Key); u != "" {
		title = fmt.Sprintf("[%s](%s)", rule.Name, u)
	}
	fmt.Fprintf(w, "# %s\n\n", title)
	fmt.Fprintf(w, "- **Key:** `%s`\n", rule.Key)
	fmt.Fprintf(w, "- **Language:** %s\n", language(rule.Rule))
	fmt.Fprintf(w, "- **Type:** %s\n", rule.Type)
	fmt.Fprintf(w, "- **Severity:** %s\n", r.severityLabel(rule.Severity))
	if rule.Status != "" {
		fmt.Fprintf(w, "- **Status:** %s\n", rule.Status)
	}
	if tags := rule.AllTags(); len(tags) > 0 {
		fmt.Fprintf(w, "- **Tags:** %s\n", strings.Join(tags, ", "))
	}
	if kind := ruleKind(rule.Rule); kind != "" {
		fmt.Fprintf(w, "- **Kind:** %s\n", kind)
	}
	if d.Issues != nil {
		fmt.Fprintf(w, "- **Issues:** %s\n", cell(issuesLine(d.Issues)))
	}
	fmt.Fprintf(w, "\n")

	if desc := HTMLToText(rule.HTMLDesc); desc != "" {
		fmt.Fprintf(w, "## Description\n\n%s\n\n", desc)
	}
	if note := HTMLToText(rule.HTMLNote); note != "" {
		fmt.Fprintf(w, "## Note\n\n%s\n\n", note)
	}

	if len(rule.Params) > 0 {
		fmt.Fprintf(w, "## Parameters\n\n| Key | Default | Description |\n|---|---|---|\n")
		for _, p := range rule.Params {
			fmt.Fprintf(w, "| `%s` | %s | %s |\n", p.Key, cell(p.DefaultValue), cell(HTMLToText(p.HTMLDesc)))
		}
		fmt.Fprintf(w, "\n")
	}

	if rule.IsTemplate {
		r.customRules(w, v)
		return nil
	}
	r.profileRows(w, v)
	return nil
}

func (r *MarkdownReporter) profileRows(w io.Writer, v RuleView) {
	d := v.Details
	fmt.Fprintf(w, "## Quality Profiles\n\n")
	if len(d.Profiles) == 0 {
		fmt.Fprintf(w, "Not active in any profile.\n")
		return
	}

	if d.ShowParams {
		fmt.Fprintf(w, "| Profile | Severity | Parameters | Actions |\n|---|---|---|---|\n")
	} else {
		fmt.Fprintf(w, "| Profile | Severity | Actions |\n|---|---|---|\n")
	}
	for _, row := range d.Profiles {
		name := cell(profileLabel(row))
		if row.ParentLink != nil {
			parent := row.ParentLink.Name
			if u := profileURL(v.Links, row.ParentLink.Name, row.ParentLink.Language); u != "" {
				parent = fmt.Sprintf("[%s](%s)", parent, u)
			}
			name += "<br>inherits from " + parent
		}
		if d.ShowParams {
			fmt.Fprintf(w, "| %s | %s | %s | %s |\n", name, severityCell(row), cell(paramsCell(row)), actionsCell(row.Actions))
		} else {
			fmt.Fprintf(w, "| %s | %s | %s |\n", name, severityCell(row), actionsCell(row.Actions))
		}
	}
	if canActivate(d.Profiles) {
		fmt.Fprintf(w, "\n_Can be activated in another profile._\n")
	}
}

func (r *MarkdownReporter) customRules(w io.Writer, v RuleView) {
	d := v.Details
	fmt.Fprintf(w, "## Custom Rules\n\n")
	if len(d.CustomRules) == 0 {
		fmt.Fprintf(w, "None.\n")
		return
	}
	fmt.Fprintf(w, "| Name | Severity | Parameters |\n|---|---|---|\n")
	for _, cr := range d.CustomRules {
		name := cell(cr.Name)
		if u := ruleURL(v.Links, cr.Key); u != "" {
			name = fmt.Sprintf("[%s](%s)", name, u)
		}
		fmt.Fprintf(w, "| %s | %s | %s |\n", name, cr.Severity, cell(defaultParams(cr.Params)))
	}
}

func (r *MarkdownReporter) Profiles(w io.Writer, v ProfilesView) error {
	fmt.Fprintf(w, "# Quality Profiles\n\n")
	profiles.Walk(v.Tree, func(n profiles.Node, depth int) {
		p := n.Profile
		name := p.Name
		if u := profileURL(v.Links, p.Name, p.Language); u != "" {
			name = fmt.Sprintf("[%s](%s)", p.Name, u)
		}
		fmt.Fprintf(w, "%s- %s (%s, %d rules)\n", strings.Repeat("  ", depth), name, p.Language, p.ActiveRuleCount)
	})
	return nil
}

func (r *MarkdownReporter) Tags(w io.Writer, tags []string) error {
	for _, t := range sortedTags(tags) {
		fmt.Fprintf(w, "- `%s`\n", t)
	}
	return nil
}

func (r *MarkdownReporter) Recent(w io.Writer, views []*history.View) error {
	fmt.Fprintf(w, "# Recently Viewed Rules\n\n")
	if len(views) == 0 {
		fmt.Fprintf(w, "None.\n")
		return nil
	}
	fmt.Fprintf(w, "| Viewed | Key | Name | Profiles | Overridden |\n|---|---|---|---|---|\n")
	for _, v := range views {
		fmt.Fprintf(w, "| %s | `%s` | %s | %d | %d |\n",
			v.ViewedAt.Format("2006-01-02 15:04"), v.RuleKey, cell(v.RuleName), v.Profiles, v.Overridden)
	}
	return nil
}

// severityLabel highlights the two highest severities.
func (r *MarkdownReporter) severityLabel(severity rules.Severity) string {
	switch severity {
	case rules.SeverityBlocker, rules.SeverityCritical:
		return "**" + string(severity) + "**"
	default:
		return string(severity)
	}
}

// cell escapes text for a table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
