package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/JNZader/codingrules/internal/history"
	"github.com/JNZader/codingrules/internal/profiles"
)

// TextReporter writes aligned plain text for terminals.
type TextReporter struct{}

func (r *TextReporter) Format() string { return "text" }

func (r *TextReporter) Rules(w io.Writer, v RulesView) error {
	if len(v.Rules) == 0 {
		_, err := fmt.Fprintln(w, "No rules found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, rule := range v.Rules {
		extra := []string{}
		if kind := ruleKind(rule); kind != "" {
			extra = append(extra, kind)
		}
		if active := activeCell(v, rule.Key); active != "" {
			extra = append(extra, active)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			rule.Key, rule.Severity, language(rule), rule.Name, strings.Join(extra, "; "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%s\n", pagingLine(v))
	for _, key := range facetKeys(v) {
		fmt.Fprintf(w, "%s: %s\n", key, facetLine(v, key))
	}
	return nil
}

func (r *TextReporter) Rule(w io.Writer, v RuleView) error {
	d := v.Details
	if d == nil {
		_, err := fmt.Fprintln(w, "No rule.")
		return err
	}
	rule := d.Rule

	fmt.Fprintf(w, "%s  %s\n", rule.Key, rule.Name)
	fmt.Fprintf(w, "Language: %s  Type: %s  Severity: %s  Status: %s\n",
		language(rule.Rule), rule.Type, rule.Severity, rule.Status)
	if tags := rule.AllTags(); len(tags) > 0 {
		fmt.Fprintf(w, "Tags: %s\n", strings.Join(tags, ", "))
	}
	if kind := ruleKind(rule.Rule); kind != "" {
		fmt.Fprintf(w, "Kind: %s\n", kind)
	}
	if u := ruleURL(v.Links, rule.Key); u != "" {
		fmt.Fprintf(w, "URL: %s\n", u)
	}
	if d.Issues != nil {
		fmt.Fprintf(w, "Issues: %s\n", issuesLine(d.Issues))
	}

	if desc := HTMLToText(rule.HTMLDesc); desc != "" {
		fmt.Fprintf(w, "\n%s\n", desc)
	}
	if note := HTMLToText(rule.HTMLNote); note != "" {
		fmt.Fprintf(w, "\nNote:\n%s\n", note)
	}

	if len(rule.Params) > 0 {
		fmt.Fprintln(w, "\nParameters:")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, p := range rule.Params {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", p.Key, p.DefaultValue, HTMLToText(p.HTMLDesc))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if d.IsEditable {
		fmt.Fprintln(w, "\nThis custom rule can be edited and deleted.")
	}

	if rule.IsTemplate {
		return r.customRules(w, v)
	}
	return r.profileRows(w, v)
}

func (r *TextReporter) profileRows(w io.Writer, v RuleView) error {
	d := v.Details
	fmt.Fprintln(w, "\nQuality profiles:")
	if len(d.Profiles) == 0 {
		fmt.Fprintln(w, "  not active in any profile")
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		if d.ShowParams {
			fmt.Fprintln(tw, "  PROFILE\tSEVERITY\tPARAMETERS\tACTIONS")
		} else {
			fmt.Fprintln(tw, "  PROFILE\tSEVERITY\tACTIONS")
		}
		for _, row := range d.Profiles {
			if d.ShowParams {
				fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", profileLabel(row), severityCell(row), paramsCell(row), actionsCell(row.Actions))
			} else {
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", profileLabel(row), severityCell(row), actionsCell(row.Actions))
			}
			if row.ParentLink != nil {
				parent := "    inherits from " + row.ParentLink.Name
				if u := profileURL(v.Links, row.ParentLink.Name, row.ParentLink.Language); u != "" {
					parent += " " + u
				}
				fmt.Fprintln(tw, parent)
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if canActivate(d.Profiles) {
		fmt.Fprintln(w, "  can be activated in another profile")
	}
	return nil
}

func (r *TextReporter) customRules(w io.Writer, v RuleView) error {
	d := v.Details
	fmt.Fprintln(w, "\nCustom rules:")
	if len(d.CustomRules) == 0 {
		fmt.Fprintln(w, "  none")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, cr := range d.CustomRules {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", cr.Key, cr.Name, cr.Severity, defaultParams(cr.Params))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if d.CanChangeCustom {
		fmt.Fprintln(w, "  custom rules can be created and deleted")
	}
	return nil
}

func (r *TextReporter) Profiles(w io.Writer, v ProfilesView) error {
	if len(v.Tree) == 0 {
		_, err := fmt.Fprintln(w, "No quality profiles.")
		return err
	}
	profiles.Walk(v.Tree, func(n profiles.Node, depth int) {
		p := n.Profile
		var flags []string
		if p.IsBuiltIn {
			flags = append(flags, "built-in")
		}
		if p.IsDefault {
			flags = append(flags, "default")
		}
		line := fmt.Sprintf("%s%s [%s] %d rules", strings.Repeat("  ", depth), p.Name, p.Language, p.ActiveRuleCount)
		if len(flags) > 0 {
			line += " (" + strings.Join(flags, ", ") + ")"
		}
		fmt.Fprintln(w, line)
	})
	return nil
}

func (r *TextReporter) Tags(w io.Writer, tags []string) error {
	for _, t := range sortedTags(tags) {
		if _, err := fmt.Fprintln(w, t); err != nil {
			return err
		}
	}
	return nil
}

func (r *TextReporter) Recent(w io.Writer, views []*history.View) error {
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "No rules viewed yet.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d profiles, %d overridden\t%s\n",
			v.ViewedAt.Format("2006-01-02 15:04"), v.RuleKey, v.RuleName, v.Profiles, v.Overridden, viewsLabel(v.ViewCount))
	}
	return tw.Flush()
}

func viewsLabel(n int) string {
	if n == 1 {
		return "1 view"
	}
	return fmt.Sprintf("%d views", n)
}
