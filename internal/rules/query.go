package rules

import (
	"net/url"
	"slices"
	"sort"
	"strings"
)

// Query holds the rule filters of a search.
type Query struct {
	SearchQuery          string     `yaml:"q,omitempty" json:"q,omitempty"`
	Languages            []string   `yaml:"languages,omitempty" json:"languages,omitempty"`
	Types                []Type     `yaml:"types,omitempty" json:"types,omitempty"`
	Severities           []Severity `yaml:"severities,omitempty" json:"severities,omitempty"`
	Statuses             []Status   `yaml:"statuses,omitempty" json:"statuses,omitempty"`
	Tags                 []string   `yaml:"tags,omitempty" json:"tags,omitempty"`
	Repositories         []string   `yaml:"repositories,omitempty" json:"repositories,omitempty"`
	Profile              string     `yaml:"profile,omitempty" json:"profile,omitempty"`
	Activation           *bool      `yaml:"activation,omitempty" json:"activation,omitempty"`
	ActivationSeverities []Severity `yaml:"activation_severities,omitempty" json:"activation_severities,omitempty"`
	Inheritance          Inherit    `yaml:"inheritance,omitempty" json:"inheritance,omitempty"`
	AvailableSince       string     `yaml:"available_since,omitempty" json:"available_since,omitempty"`
	Template             *bool      `yaml:"template,omitempty" json:"template,omitempty"`
	TemplateKey          string     `yaml:"template_key,omitempty" json:"template_key,omitempty"`
	RuleKey              string     `yaml:"rule_key,omitempty" json:"rule_key,omitempty"`
	CompareToProfile     string     `yaml:"compare_to_profile,omitempty" json:"compare_to_profile,omitempty"`
}

// Request parameter names understood by the search endpoint.
const (
	paramQuery                = "q"
	paramLanguages            = "languages"
	paramTypes                = "types"
	paramSeverities           = "severities"
	paramStatuses             = "statuses"
	paramTags                 = "tags"
	paramRepositories         = "repositories"
	paramProfile              = "qprofile"
	paramActivation           = "activation"
	paramActivationSeverities = "active_severities"
	paramInheritance          = "inheritance"
	paramAvailableSince       = "available_since"
	paramTemplate             = "is_template"
	paramTemplateKey          = "template_key"
	paramRuleKey              = "rule_key"
	paramCompareToProfile     = "compareToProfile"
)

// ParseQuery builds a Query from request parameters. Unknown values are kept
// as-is so the server stays the judge of their validity.
func ParseQuery(v url.Values) Query {
	return Query{
		SearchQuery:          v.Get(paramQuery),
		Languages:            parseList(v.Get(paramLanguages)),
		Types:                toTypes(parseList(v.Get(paramTypes))),
		Severities:           toSeverities(parseList(v.Get(paramSeverities))),
		Statuses:             toStatuses(parseList(v.Get(paramStatuses))),
		Tags:                 parseList(v.Get(paramTags)),
		Repositories:         parseList(v.Get(paramRepositories)),
		Profile:              v.Get(paramProfile),
		Activation:           parseBool(v.Get(paramActivation)),
		ActivationSeverities: toSeverities(parseList(v.Get(paramActivationSeverities))),
		Inheritance:          Inherit(v.Get(paramInheritance)),
		AvailableSince:       v.Get(paramAvailableSince),
		Template:             parseBool(v.Get(paramTemplate)),
		TemplateKey:          v.Get(paramTemplateKey),
		RuleKey:              v.Get(paramRuleKey),
		CompareToProfile:     v.Get(paramCompareToProfile),
	}
}

// Serialize encodes the query as request parameters, omitting empty filters.
func (q Query) Serialize() url.Values {
	v := url.Values{}
	setString(v, paramQuery, q.SearchQuery)
	setList(v, paramLanguages, q.Languages)
	setList(v, paramTypes, fromTypes(q.Types))
	setList(v, paramSeverities, fromSeverities(q.Severities))
	setList(v, paramStatuses, fromStatuses(q.Statuses))
	setList(v, paramTags, q.Tags)
	setList(v, paramRepositories, q.Repositories)
	setString(v, paramProfile, q.Profile)
	setBool(v, paramActivation, q.Activation)
	setList(v, paramActivationSeverities, fromSeverities(q.ActivationSeverities))
	setString(v, paramInheritance, string(q.Inheritance))
	setString(v, paramAvailableSince, q.AvailableSince)
	setBool(v, paramTemplate, q.Template)
	setString(v, paramTemplateKey, q.TemplateKey)
	setString(v, paramRuleKey, q.RuleKey)
	setString(v, paramCompareToProfile, q.CompareToProfile)
	return v
}

// IsFiltered reports whether any filter is set.
func (q Query) IsFiltered() bool {
	return len(q.Serialize()) > 0
}

// Equal compares two queries by their serialized form, ignoring list order.
func (q Query) Equal(other Query) bool {
	a, b := q.Serialize(), other.Serialize()
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if normalizeList(a.Get(k)) != normalizeList(b.Get(k)) {
			return false
		}
	}
	return true
}

// Merge returns a copy of q with the non-empty filters of changes applied.
func (q Query) Merge(changes Query) Query {
	out := q
	if changes.SearchQuery != "" {
		out.SearchQuery = changes.SearchQuery
	}
	if changes.Languages != nil {
		out.Languages = changes.Languages
	}
	if changes.Types != nil {
		out.Types = changes.Types
	}
	if changes.Severities != nil {
		out.Severities = changes.Severities
	}
	if changes.Statuses != nil {
		out.Statuses = changes.Statuses
	}
	if changes.Tags != nil {
		out.Tags = changes.Tags
	}
	if changes.Repositories != nil {
		out.Repositories = changes.Repositories
	}
	if changes.Profile != "" {
		out.Profile = changes.Profile
	}
	if changes.Activation != nil {
		out.Activation = changes.Activation
	}
	if changes.ActivationSeverities != nil {
		out.ActivationSeverities = changes.ActivationSeverities
	}
	if changes.Inheritance != "" {
		out.Inheritance = changes.Inheritance
	}
	if changes.AvailableSince != "" {
		out.AvailableSince = changes.AvailableSince
	}
	if changes.Template != nil {
		out.Template = changes.Template
	}
	if changes.TemplateKey != "" {
		out.TemplateKey = changes.TemplateKey
	}
	if changes.RuleKey != "" {
		out.RuleKey = changes.RuleKey
	}
	if changes.CompareToProfile != "" {
		out.CompareToProfile = changes.CompareToProfile
	}
	return out
}

// SearchFields returns the rule fields requested from the search endpoint.
// Activation details are only needed when a profile is selected.
func SearchFields(withProfile bool) []string {
	fields := []string{
		"isTemplate",
		"name",
		"lang",
		"langName",
		"severity",
		"status",
		"sysTags",
		"tags",
		"templateKey",
	}
	if withProfile {
		fields = append(fields, "actives", "params")
	}
	return fields
}

func parseList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseBool(s string) *bool {
	switch strings.ToLower(s) {
	case "true":
		b := true
		return &b
	case "false":
		b := false
		return &b
	}
	return nil
}

func normalizeList(s string) string {
	parts := strings.Split(s, ",")
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func setString(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func setList(v url.Values, key string, values []string) {
	if len(values) > 0 {
		v.Set(key, strings.Join(values, ","))
	}
}

func setBool(v url.Values, key string, value *bool) {
	if value == nil {
		return
	}
	if *value {
		v.Set(key, "true")
	} else {
		v.Set(key, "false")
	}
}

func toTypes(in []string) []Type {
	if in == nil {
		return nil
	}
	out := make([]Type, len(in))
	for i, s := range in {
		out[i] = Type(s)
	}
	return out
}

func fromTypes(in []Type) []string {
	out := make([]string, len(in))
	for i, t := range in {
		out[i] = string(t)
	}
	return out
}

func toSeverities(in []string) []Severity {
	if in == nil {
		return nil
	}
	out := make([]Severity, len(in))
	for i, s := range in {
		out[i] = Severity(s)
	}
	return out
}

func fromSeverities(in []Severity) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func toStatuses(in []string) []Status {
	if in == nil {
		return nil
	}
	out := make([]Status, len(in))
	for i, s := range in {
		out[i] = Status(s)
	}
	return out
}

func fromStatuses(in []Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func containsFold(values []string, s string) bool {
	return slices.ContainsFunc(values, func(v string) bool {
		return strings.EqualFold(v, s)
	})
}
