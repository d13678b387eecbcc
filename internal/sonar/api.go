package sonar

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/JNZader/codingrules/internal/profiles"
	"github.com/JNZader/codingrules/internal/rules"
)

// API paths.
const (
	pathRulesApp       = "/api/rules/app"
	pathRulesSearch    = "/api/rules/search"
	pathRulesShow      = "/api/rules/show"
	pathRulesTags      = "/api/rules/tags"
	pathRulesCreate    = "/api/rules/create"
	pathRulesUpdate    = "/api/rules/update"
	pathRulesDelete    = "/api/rules/delete"
	pathProfilesSearch = "/api/qualityprofiles/search"
	pathActivateRule   = "/api/qualityprofiles/activate_rule"
	pathDeactivateRule = "/api/qualityprofiles/deactivate_rule"
)

// MaxPageSize is the largest page the search endpoint serves.
const MaxPageSize = 500

// GetRulesApp returns the write capability and rule repositories.
func (c *Client) GetRulesApp(ctx context.Context) (rules.AppResponse, error) {
	var resp rules.AppResponse
	err := c.get(ctx, pathRulesApp, nil, &resp)
	return resp, err
}

// SearchParams are the parameters of a rule search.
type SearchParams struct {
	Query    rules.Query
	Fields   []string
	Facets   []rules.FacetKey
	Page     int
	PageSize int
	Sort     string
	Asc      *bool
}

func (p SearchParams) values() url.Values {
	v := p.Query.Serialize()
	if len(p.Fields) > 0 {
		v.Set("f", strings.Join(p.Fields, ","))
	}
	if len(p.Facets) > 0 {
		names := make([]string, len(p.Facets))
		for i, f := range p.Facets {
			names[i] = rules.ServerFacet(f)
		}
		v.Set("facets", strings.Join(names, ","))
	}
	if p.Page > 0 {
		v.Set("p", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		v.Set("ps", strconv.Itoa(p.PageSize))
	}
	if p.Sort != "" {
		v.Set("s", p.Sort)
	}
	if p.Asc != nil {
		v.Set("asc", strconv.FormatBool(*p.Asc))
	}
	return v
}

// SearchRules runs one page of a rule search.
func (c *Client) SearchRules(ctx context.Context, params SearchParams) (rules.SearchResponse, error) {
	var resp rules.SearchResponse
	err := c.get(ctx, pathRulesSearch, params.values(), &resp)
	return resp, err
}

// SearchAllRules pages through a search until limit rules are loaded or the
// result set is exhausted. A limit of 0 loads everything. Facets are only
// requested with the first page.
func (c *Client) SearchAllRules(ctx context.Context, params SearchParams, limit int) (rules.SearchResponse, error) {
	if params.PageSize <= 0 {
		params.PageSize = MaxPageSize
	}
	params.Page = 1

	first, err := c.SearchRules(ctx, params)
	if err != nil {
		return first, err
	}

	all := first
	if all.Actives == nil {
		all.Actives = map[string][]rules.Activation{}
	}
	params.Facets = nil

	for all.Paging().HasMore(len(all.Rules)) && (limit == 0 || len(all.Rules) < limit) {
		params.Page++
		page, err := c.SearchRules(ctx, params)
		if err != nil {
			return all, err
		}
		if len(page.Rules) == 0 {
			break
		}
		all.Rules = append(all.Rules, page.Rules...)
		for rule, list := range page.Actives {
			all.Actives[rule] = list
		}
	}

	if limit > 0 && len(all.Rules) > limit {
		all.Rules = all.Rules[:limit]
	}
	c.log.Debug("loaded %d of %d rules (%d with activations)", len(all.Rules), all.Total, len(all.Actives))
	return all, nil
}

// GetRuleDetails returns a rule with its activations across all profiles.
func (c *Client) GetRuleDetails(ctx context.Context, key string) (rules.ShowResponse, error) {
	var resp rules.ShowResponse
	err := c.get(ctx, pathRulesShow, url.Values{"key": {key}, "actives": {"true"}}, &resp)
	return resp, err
}

// GetRuleTags returns tags starting with q, at most ps of them.
func (c *Client) GetRuleTags(ctx context.Context, q string, ps int) ([]string, error) {
	v := url.Values{"q": {q}}
	if ps > 0 {
		v.Set("ps", strconv.Itoa(ps))
	}

	var resp struct {
		Tags []string `json:"tags"`
	}
	err := c.get(ctx, pathRulesTags, v, &resp)
	return resp.Tags, err
}

// SearchProfiles returns quality profiles, optionally for one language.
func (c *Client) SearchProfiles(ctx context.Context, language string) ([]profiles.Profile, error) {
	v := url.Values{}
	if language != "" {
		v.Set("language", language)
	}

	var resp profiles.SearchResponse
	err := c.get(ctx, pathProfilesSearch, v, &resp)
	return resp.Profiles, err
}

// UpdateRuleRequest changes a rule. Nil fields are left untouched.
type UpdateRuleRequest struct {
	Key                 string
	Name                *string
	MarkdownDescription *string
	MarkdownNote        *string
	Severity            *rules.Severity
	Status              *rules.Status
	Tags                *[]string
	Params              map[string]string
}

func (r UpdateRuleRequest) values() url.Values {
	v := url.Values{"key": {r.Key}}
	setOptional(v, "name", r.Name)
	setOptional(v, "markdown_description", r.MarkdownDescription)
	setOptional(v, "markdown_note", r.MarkdownNote)
	if r.Severity != nil {
		v.Set("severity", string(*r.Severity))
	}
	if r.Status != nil {
		v.Set("status", string(*r.Status))
	}
	if r.Tags != nil {
		v.Set("tags", strings.Join(*r.Tags, ","))
	}
	if len(r.Params) > 0 {
		v.Set("params", EncodeParams(r.Params))
	}
	return v
}

// UpdateRule applies the request and returns the updated rule.
func (c *Client) UpdateRule(ctx context.Context, req UpdateRuleRequest) (rules.Details, error) {
	if req.Key == "" {
		return rules.Details{}, errors.New("rule key is required")
	}

	var resp struct {
		Rule rules.Details `json:"rule"`
	}
	err := c.post(ctx, pathRulesUpdate, req.values(), &resp)
	return resp.Rule, err
}

// DeleteRule deletes a custom rule.
func (c *Client) DeleteRule(ctx context.Context, key string) error {
	return c.post(ctx, pathRulesDelete, url.Values{"key": {key}}, nil)
}

// CreateRuleRequest instantiates a custom rule from a template.
type CreateRuleRequest struct {
	CustomKey           string
	TemplateKey         string
	Name                string
	MarkdownDescription string
	Severity            rules.Severity
	Status              rules.Status
	Type                rules.Type
	Params              map[string]string
	PreventReactivation bool
}

// Validate checks the required fields.
func (r CreateRuleRequest) Validate() error {
	switch {
	case r.CustomKey == "":
		return errors.New("custom key is required")
	case r.TemplateKey == "":
		return errors.New("template key is required")
	case r.Name == "":
		return errors.New("name is required")
	case r.MarkdownDescription == "":
		return errors.New("description is required")
	}
	return nil
}

func (r CreateRuleRequest) values() url.Values {
	v := url.Values{
		"custom_key":           {r.CustomKey},
		"template_key":         {r.TemplateKey},
		"name":                 {r.Name},
		"markdown_description": {r.MarkdownDescription},
	}
	if r.Severity != "" {
		v.Set("severity", string(r.Severity))
	}
	if r.Status != "" {
		v.Set("status", string(r.Status))
	}
	if r.Type != "" {
		v.Set("type", string(r.Type))
	}
	if len(r.Params) > 0 {
		v.Set("params", EncodeParams(r.Params))
	}
	if r.PreventReactivation {
		v.Set("prevent_reactivation", "true")
	}
	return v
}

// CreateRule creates a custom rule and returns it.
func (c *Client) CreateRule(ctx context.Context, req CreateRuleRequest) (rules.Details, error) {
	if err := req.Validate(); err != nil {
		return rules.Details{}, err
	}

	var resp struct {
		Rule rules.Details `json:"rule"`
	}
	err := c.post(ctx, pathRulesCreate, req.values(), &resp)
	return resp.Rule, err
}

// ActivateRequest activates a rule in a profile or changes its activation.
type ActivateRequest struct {
	Profile  string
	Rule     string
	Severity rules.Severity
	Params   map[string]string
	// Reset restores the parent profile's definition.
	Reset bool
}

func (r ActivateRequest) values() url.Values {
	v := url.Values{"key": {r.Profile}, "rule": {r.Rule}}
	if r.Reset {
		v.Set("reset", "true")
		return v
	}
	if r.Severity != "" {
		v.Set("severity", string(r.Severity))
	}
	if len(r.Params) > 0 {
		v.Set("params", EncodeParams(r.Params))
	}
	return v
}

// ActivateRule activates or updates a rule in a profile.
func (c *Client) ActivateRule(ctx context.Context, req ActivateRequest) error {
	if req.Profile == "" || req.Rule == "" {
		return errors.New("profile and rule are required")
	}
	return c.post(ctx, pathActivateRule, req.values(), nil)
}

// DeactivateRule removes a rule from a profile.
func (c *Client) DeactivateRule(ctx context.Context, profile, rule string) error {
	return c.post(ctx, pathDeactivateRule, url.Values{"key": {profile}, "rule": {rule}}, nil)
}

// RevertRule resets an overriding activation to the parent's definition.
func (c *Client) RevertRule(ctx context.Context, profile, rule string) error {
	return c.ActivateRule(ctx, ActivateRequest{Profile: profile, Rule: rule, Reset: true})
}

// EncodeParams encodes parameters as "k1=v1;k2=v2", sorted by key.
func EncodeParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return strings.Join(parts, ";")
}

// ParseParams is the inverse of EncodeParams. Entries without "=" are skipped.
func ParseParams(s string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		out[strings.TrimSpace(k)] = v
	}
	return out
}

func setOptional(v url.Values, key string, value *string) {
	if value != nil {
		v.Set(key, *value)
	}
}
