// Package rules defines the coding rule model returned by the rules API
// together with search queries, facets and activation summaries.
package rules

import "strings"

// Rule is a static-analysis rule definition.
type Rule struct {
	Key         string   `json:"key" yaml:"key"`
	Repo        string   `json:"repo,omitempty" yaml:"repo,omitempty"`
	Name        string   `json:"name" yaml:"name"`
	Lang        string   `json:"lang,omitempty" yaml:"lang,omitempty"`
	LangName    string   `json:"langName,omitempty" yaml:"lang_name,omitempty"`
	Severity    Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
	Type        Type     `json:"type,omitempty" yaml:"type,omitempty"`
	Status      Status   `json:"status,omitempty" yaml:"status,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	SysTags     []string `json:"sysTags,omitempty" yaml:"sys_tags,omitempty"`
	IsTemplate  bool     `json:"isTemplate,omitempty" yaml:"is_template,omitempty"`
	TemplateKey string   `json:"templateKey,omitempty" yaml:"template_key,omitempty"`
	Params      []Param  `json:"params,omitempty" yaml:"params,omitempty"`
}

// IsCustom reports whether the rule was instantiated from a template.
func (r Rule) IsCustom() bool {
	return r.TemplateKey != ""
}

// AllTags returns system tags followed by user tags.
func (r Rule) AllTags() []string {
	all := make([]string, 0, len(r.SysTags)+len(r.Tags))
	all = append(all, r.SysTags...)
	return append(all, r.Tags...)
}

// Details is the full rule metadata returned by the show endpoint.
type Details struct {
	Rule
	HTMLDesc   string `json:"htmlDesc,omitempty"`
	MDDesc     string `json:"mdDesc,omitempty"`
	HTMLNote   string `json:"htmlNote,omitempty"`
	MDNote     string `json:"mdNote,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
	IsExternal bool   `json:"isExternal,omitempty"`
}

// Param is a rule parameter definition.
type Param struct {
	Key          string `json:"key" yaml:"key"`
	HTMLDesc     string `json:"htmlDesc,omitempty" yaml:"html_desc,omitempty"`
	DefaultValue string `json:"defaultValue,omitempty" yaml:"default_value,omitempty"`
	Type         string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Repository is a rule repository as listed by the rules app endpoint.
type Repository struct {
	Key      string `json:"key"`
	Language string `json:"language"`
	Name     string `json:"name"`
}

// Activation binds a rule to a quality profile.
type Activation struct {
	QProfile  string            `json:"qProfile"`
	Inherit   Inherit           `json:"inherit"`
	Severity  Severity          `json:"severity"`
	Params    []ActivationParam `json:"params"`
	CreatedAt string            `json:"createdAt,omitempty"`
}

// Param returns the value of the named parameter.
func (a Activation) Param(key string) (string, bool) {
	for _, p := range a.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// ActivationParam is a parameter value set by an activation.
type ActivationParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Inherit tells where an activation's values come from.
type Inherit string

const (
	InheritNone      Inherit = "NONE"
	InheritInherited Inherit = "INHERITED"
	InheritOverrides Inherit = "OVERRIDES"
)

// FromParent reports whether the activation is inherited or overrides a parent.
func (i Inherit) FromParent() bool {
	return i == InheritInherited || i == InheritOverrides
}

// Severity indicates rule importance.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityMinor    Severity = "MINOR"
	SeverityMajor    Severity = "MAJOR"
	SeverityCritical Severity = "CRITICAL"
	SeverityBlocker  Severity = "BLOCKER"
)

var severityOrder = map[Severity]int{
	SeverityInfo:     0,
	SeverityMinor:    1,
	SeverityMajor:    2,
	SeverityCritical: 3,
	SeverityBlocker:  4,
}

// Severities returns all severities from lowest to highest.
func Severities() []Severity {
	return []Severity{SeverityInfo, SeverityMinor, SeverityMajor, SeverityCritical, SeverityBlocker}
}

// ParseSeverity normalizes s and reports whether it is a known severity.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := severityOrder[sev]
	return sev, ok
}

// Rank returns the ordering of the severity, -1 when unknown.
func (s Severity) Rank() int {
	if r, ok := severityOrder[s]; ok {
		return r
	}
	return -1
}

// Type is the rule type.
type Type string

const (
	TypeCodeSmell     Type = "CODE_SMELL"
	TypeBug           Type = "BUG"
	TypeVulnerability Type = "VULNERABILITY"
	TypeHotspot       Type = "SECURITY_HOTSPOT"
)

// ParseType normalizes s and reports whether it is a known rule type.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TypeCodeSmell, TypeBug, TypeVulnerability, TypeHotspot:
		return t, true
	}
	return t, false
}

// Status is the rule lifecycle status.
type Status string

const (
	StatusReady      Status = "READY"
	StatusBeta       Status = "BETA"
	StatusDeprecated Status = "DEPRECATED"
	StatusRemoved    Status = "REMOVED"
)

// ParseStatus normalizes s and reports whether it is a known status.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusReady, StatusBeta, StatusDeprecated, StatusRemoved:
		return st, true
	}
	return st, false
}

// Paging describes one page of a search.
type Paging struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
	Total     int `json:"total"`
}

// HasMore reports whether there are rules beyond count already loaded.
func (p Paging) HasMore(count int) bool {
	return count < p.Total
}

// SearchResponse is the raw response of the search endpoint.
type SearchResponse struct {
	Actives map[string][]Activation `json:"actives,omitempty"`
	Facets  []RawFacet              `json:"facets,omitempty"`
	P       int                     `json:"p"`
	PS      int                     `json:"ps"`
	Rules   []Rule                  `json:"rules"`
	Total   int                     `json:"total"`
}

// Paging returns the paging block of the response.
func (r SearchResponse) Paging() Paging {
	return Paging{PageIndex: r.P, PageSize: r.PS, Total: r.Total}
}

// ShowResponse is the raw response of the show endpoint.
type ShowResponse struct {
	Actives []Activation `json:"actives,omitempty"`
	Rule    Details      `json:"rule"`
}

// AppResponse is the raw response of the rules app endpoint.
type AppResponse struct {
	CanWrite     bool         `json:"canWrite,omitempty"`
	Repositories []Repository `json:"repositories"`
}
