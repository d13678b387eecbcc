package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JNZader/codingrules/internal/activation"
	"github.com/JNZader/codingrules/internal/browse"
	"github.com/JNZader/codingrules/internal/history"
	"github.com/JNZader/codingrules/internal/profiles"
	"github.com/JNZader/codingrules/internal/rules"
)

type fakeLinker struct{}

func (fakeLinker) RuleURL(key string) string { return "https://sq/coding_rules?open=" + key }
func (fakeLinker) ProfileURL(name, language string) string {
	return "https://sq/profiles/show?name=" + name + "&language=" + language
}

func str(s string) *string { return &s }

func details() *browse.Details {
	return &browse.Details{
		Rule: rules.Details{
			Rule: rules.Rule{
				Key: "go:S100", Name: "Function names should comply", Lang: "go", LangName: "Go",
				Severity: rules.SeverityMinor, Type: rules.TypeCodeSmell, Status: rules.StatusReady,
				SysTags: []string{"convention"},
				Params:  []rules.Param{{Key: "format", DefaultValue: "^[a-z]+$", HTMLDesc: "<p>Regular expression</p>"}},
			},
			HTMLDesc: "<p>Shared naming conventions <b>help</b> teams.</p>",
		},
		ShowParams: true,
		Profiles: []activation.Row{
			{
				ProfileKey: "root", ProfileName: "Sonar way", Language: "go", BuiltIn: true,
				Severity: rules.SeverityMinor, Inherit: rules.InheritNone,
				Params:  []activation.ParamDiff{{Key: "format", Value: "^[a-z]+$"}},
				Actions: activation.Actions{CanActivate: true},
			},
			{
				ProfileKey: "team", ProfileName: "Team", Language: "go",
				Severity: rules.SeverityMajor, Inherit: rules.InheritOverrides,
				SeverityOverridden: true, SeverityOriginal: rules.SeverityMinor,
				Params:     []activation.ParamDiff{{Key: "format", Value: "^x$", Overridden: true, Original: str("^[a-z]+$")}},
				ParentLink: &activation.ProfileLink{Name: "Sonar way", Language: "go"},
				Actions:    activation.Actions{CanChange: true, CanRevert: true, CanActivate: true},
			},
		},
	}
}

func TestNewReporter(t *testing.T) {
	for _, format := range AvailableFormats() {
		r, err := NewReporter(format)
		require.NoError(t, err)
		assert.Equal(t, format, r.Format())
	}

	r, err := NewReporter("md")
	require.NoError(t, err)
	assert.Equal(t, "markdown", r.Format())

	_, err = NewReporter("sarif")
	assert.Error(t, err)
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "  ", ""},
		{"inline elements", "<p>Avoid <code>goto</code>.</p>", "Avoid goto."},
		{"list", "<ul>\n<li>one</li>\n<li>two</li>\n</ul>", "- one\n- two"},
		{"pre keeps layout", "<p>Example:</p><pre>if x {\n  y()\n}</pre>", "Example:\n\nif x {\n  y()\n}"},
		{"drops scripts", "<p>a</p><script>alert(1)</script><p>b</p>", "a\n\nb"},
		{"plain text", "just text", "just text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToText(tt.in))
		})
	}
}

func TestTextRule(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TextReporter{}).Rule(&buf, RuleView{Details: details(), Links: fakeLinker{}}))
	out := buf.String()

	assert.Contains(t, out, "go:S100  Function names should comply")
	assert.Contains(t, out, "Language: Go")
	assert.Contains(t, out, "URL: https://sq/coding_rules?open=go:S100")
	assert.Contains(t, out, "Shared naming conventions help teams.")
	assert.Contains(t, out, "PARAMETERS")
	assert.Contains(t, out, "Sonar way (built-in)")
	assert.Contains(t, out, "MAJOR (original: MINOR)")
	assert.Contains(t, out, "format: ^x$ (original: ^[a-z]+$)")
	assert.Contains(t, out, "change, revert")
	assert.Contains(t, out, "inherits from Sonar way https://sq/profiles/show?name=Sonar way&language=go")
	assert.Contains(t, out, "can be activated in another profile")
}

func TestTextRuleCustomHidesParams(t *testing.T) {
	d := details()
	d.Rule.TemplateKey = "go:tpl"
	d.IsCustom = true
	d.IsEditable = true
	d.ShowParams = false

	var buf bytes.Buffer
	require.NoError(t, (&TextReporter{}).Rule(&buf, RuleView{Details: d}))
	out := buf.String()

	assert.NotContains(t, out, "PARAMETERS")
	assert.NotContains(t, out, "original: ^[a-z]+$")
	assert.Contains(t, out, "Kind: custom of go:tpl")
	assert.Contains(t, out, "can be edited and deleted")
	assert.NotContains(t, out, "URL:")
}

func TestTextRuleTemplate(t *testing.T) {
	d := &browse.Details{
		Rule: rules.Details{Rule: rules.Rule{Key: "go:tpl", Name: "Template", IsTemplate: true}},
		CustomRules: []browse.CustomRule{
			{Key: "go:mine", Name: "Mine", Severity: rules.SeverityMajor, Params: []rules.Param{{Key: "regex", DefaultValue: "^x"}}},
		},
		CanChangeCustom: true,
	}

	var buf bytes.Buffer
	require.NoError(t, (&TextReporter{}).Rule(&buf, RuleView{Details: d}))
	out := buf.String()

	assert.Contains(t, out, "Custom rules:")
	assert.Contains(t, out, "go:mine")
	assert.Contains(t, out, "regex: ^x")
	assert.Contains(t, out, "can be created and deleted")
	assert.NotContains(t, out, "Quality profiles:")
}

func TestTextRules(t *testing.T) {
	v := RulesView{
		Rules: []rules.Rule{
			{Key: "go:S1", Name: "One", Lang: "go", Severity: rules.SeverityMajor},
			{Key: "go:S2", Name: "Two", Lang: "go", Severity: rules.SeverityMinor, IsTemplate: true},
		},
		Paging:  &rules.Paging{PageIndex: 1, PageSize: 2, Total: 10},
		Facets:  rules.Facets{rules.FacetTags: {"style": 3, "bug": 5}},
		Actives: rules.Actives{"go:S1": {"team": {Inherit: rules.InheritInherited, Severity: rules.SeverityMajor}}},
		Profile: "team",
	}

	var buf bytes.Buffer
	require.NoError(t, (&TextReporter{}).Rules(&buf, v))
	out := buf.String()

	assert.Contains(t, out, "active MAJOR, inherited")
	assert.Contains(t, out, "template")
	assert.Contains(t, out, "2 of 10 rules")
	assert.Contains(t, out, "tags: bug (5), style (3)")

	buf.Reset()
	require.NoError(t, (&TextReporter{}).Rules(&buf, RulesView{}))
	assert.Equal(t, "No rules found.\n", buf.String())
}

func TestTextProfilesTree(t *testing.T) {
	idx := profiles.KeyBy([]profiles.Profile{
		{Key: "root", Name: "Sonar way", Language: "go", IsBuiltIn: true, ActiveRuleCount: 50},
		{Key: "team", Name: "Team", Language: "go", ParentKey: "root", ActiveRuleCount: 52},
	})

	var buf bytes.Buffer
	require.NoError(t, (&TextReporter{}).Profiles(&buf, ProfilesView{Tree: idx.Tree()}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Sonar way [go] 50 rules (built-in)", lines[0])
	assert.Equal(t, "  Team [go] 52 rules", lines[1])
}

func TestTextRecent(t *testing.T) {
	views := []*history.View{{
		RuleKey: "go:S1", RuleName: "One", Profiles: 2, Overridden: 1, ViewCount: 3,
		ViewedAt: time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC),
	}}

	var buf bytes.Buffer
	require.NoError(t, (&TextReporter{}).Recent(&buf, views))
	assert.Contains(t, buf.String(), "2026-10-01 09:30")
	assert.Contains(t, buf.String(), "2 profiles, 1 overridden")
	assert.Contains(t, buf.String(), "3 views")
}

func TestMarkdownRule(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownReporter{}).Rule(&buf, RuleView{Details: details(), Links: fakeLinker{}}))
	out := buf.String()

	assert.Contains(t, out, "# [Function names should comply](https://sq/coding_rules?open=go:S100)")
	assert.Contains(t, out, "| Profile | Severity | Parameters | Actions |")
	assert.Contains(t, out, "inherits from [Sonar way](https://sq/profiles/show?name=Sonar way&language=go)")
	assert.Contains(t, out, "| `format` | ^[a-z]+$ | Regular expression |")
}

func TestParamCell(t *testing.T) {
	tests := []struct {
		name string
		in   activation.ParamDiff
		want string
	}{
		{"unchanged", activation.ParamDiff{Key: "max", Value: "10"}, "max: 10"},
		{"overridden", activation.ParamDiff{Key: "max", Value: "10", Overridden: true, Original: str("5")}, "max: 10 (original: 5)"},
		{"parent lacks the key", activation.ParamDiff{Key: "max", Value: "10", Overridden: true}, "max: 10 (original: none)"},
		{"parent value empty", activation.ParamDiff{Key: "max", Value: "10", Overridden: true, Original: str("")}, "max: 10 (original: )"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paramCell(tt.in))
		})
	}
}

func TestMarkdownRuleParamMissingInParent(t *testing.T) {
	d := details()
	d.Profiles[1].Params = append(d.Profiles[1].Params, activation.ParamDiff{Key: "max", Value: "10", Overridden: true})

	var buf bytes.Buffer
	require.NoError(t, (&MarkdownReporter{}).Rule(&buf, RuleView{Details: d}))
	assert.Contains(t, buf.String(), "max: 10 (original: none)")

	buf.Reset()
	require.NoError(t, (&TextReporter{}).Rule(&buf, RuleView{Details: d}))
	assert.Contains(t, buf.String(), "max: 10 (original: none)")
}

func TestRuleIssues(t *testing.T) {
	d := details()
	d.Issues = &rules.IssueCount{Total: 5, Projects: []rules.ProjectIssues{{Key: "shop", Name: "Shop", Count: 3}, {Key: "api", Name: "API", Count: 2}}}

	var buf bytes.Buffer
	require.NoError(t, (&TextReporter{}).Rule(&buf, RuleView{Details: d}))
	assert.Contains(t, buf.String(), "Issues: 5 open (Shop 3, API 2)")

	buf.Reset()
	require.NoError(t, (&MarkdownReporter{}).Rule(&buf, RuleView{Details: d}))
	assert.Contains(t, buf.String(), "- **Issues:** 5 open (Shop 3, API 2)")

	assert.Equal(t, "no open issues", issuesLine(&rules.IssueCount{}))
}

func TestMarkdownEscapesCells(t *testing.T) {
	v := RulesView{Rules: []rules.Rule{{Key: "go:S1", Name: "a | b", Severity: rules.SeverityBlocker}}}

	var buf bytes.Buffer
	require.NoError(t, (&MarkdownReporter{}).Rules(&buf, v))
	assert.Contains(t, buf.String(), `a \| b`)
	assert.Contains(t, buf.String(), "**BLOCKER**")
}

func TestJSONRule(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONReporter{}).Rule(&buf, RuleView{Details: details(), Links: fakeLinker{}}))

	var got struct {
		Rule     rules.Details    `json:"rule"`
		Profiles []activation.Row `json:"profiles"`
		URL      string           `json:"url"`
		Parents  []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"parents"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, "go:S100", got.Rule.Key)
	require.Len(t, got.Profiles, 2)
	assert.True(t, got.Profiles[1].SeverityOverridden)
	assert.Equal(t, "https://sq/coding_rules?open=go:S100", got.URL)
	require.Len(t, got.Parents, 1)
	assert.Equal(t, "Sonar way", got.Parents[0].Name)
}

func TestJSONEmptyCollections(t *testing.T) {
	r := &JSONReporter{}

	var buf bytes.Buffer
	require.NoError(t, r.Tags(&buf, nil))
	assert.JSONEq(t, `{"tags":[]}`, buf.String())

	buf.Reset()
	require.NoError(t, r.Profiles(&buf, ProfilesView{}))
	assert.JSONEq(t, `{"tree":[]}`, buf.String())

	buf.Reset()
	require.NoError(t, r.Recent(&buf, nil))
	assert.JSONEq(t, `{"views":[]}`, buf.String())
}
