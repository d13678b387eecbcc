package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/JNZader/codingrules/internal/browse"
	"github.com/JNZader/codingrules/internal/profiles"
	"github.com/JNZader/codingrules/internal/rules"
	"github.com/JNZader/codingrules/internal/sonar"
)

const defaultSearchLimit = 20

// searchArgs maps tool arguments to search request parameters.
var searchArgs = map[string]string{
	"q":            "q",
	"languages":    "languages",
	"types":        "types",
	"severities":   "severities",
	"tags":         "tags",
	"repositories": "repositories",
	"profile":      "qprofile",
	"activation":   "activation",
}

func registerSearchRulesTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"search_rules",
		mcp.WithDescription(
			"Search coding rules by text and facets. "+
				"List filters take comma separated values. "+
				"When profile is set, each rule reports its activation in that profile. "+
				"Example: search_rules(q='naming', languages='go', severities='MAJOR,CRITICAL')",
		),
		mcp.WithString("q", mcp.Description("Optional - text matched against rule names and descriptions")),
		mcp.WithString("languages", mcp.Description("Optional - language keys, e.g. 'go,java'")),
		mcp.WithString("types", mcp.Description("Optional - CODE_SMELL, BUG, VULNERABILITY or SECURITY_HOTSPOT")),
		mcp.WithString("severities", mcp.Description("Optional - INFO, MINOR, MAJOR, CRITICAL or BLOCKER")),
		mcp.WithString("tags", mcp.Description("Optional - rule tags")),
		mcp.WithString("repositories", mcp.Description("Optional - rule repository keys")),
		mcp.WithString("profile", mcp.Description("Optional - quality profile key")),
		mcp.WithString("activation", mcp.Description("Optional - 'true' or 'false', requires profile")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of rules to return (default 20, max 500)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		values := url.Values{}
		for arg, param := range searchArgs {
			if v := strings.TrimSpace(req.GetString(arg, "")); v != "" {
				values.Set(param, v)
			}
		}
		query := rules.ParseQuery(values)
		if query.Activation != nil && query.Profile == "" {
			return newErrorResult("invalid_parameters", "activation requires profile"), nil
		}

		limit := req.GetInt("limit", defaultSearchLimit)
		if limit <= 0 {
			limit = defaultSearchLimit
		}
		if limit > sonar.MaxPageSize {
			limit = sonar.MaxPageSize
		}

		resp, err := deps.API.SearchRules(ctx, sonar.SearchParams{
			Query:    query,
			Fields:   rules.SearchFields(query.Profile != ""),
			PageSize: limit,
			Sort:     "name",
		})
		if err != nil {
			return apiErrorResult(err)
		}

		actives := rules.ParseActives(resp.Actives)
		out := searchRulesResponse{Total: resp.Total, Rules: make([]ruleMatch, 0, len(resp.Rules))}
		for _, r := range resp.Rules {
			m := ruleMatch{
				Key:        r.Key,
				Name:       r.Name,
				Severity:   r.Severity,
				Language:   r.Lang,
				Type:       r.Type,
				IsTemplate: r.IsTemplate,
				Template:   r.TemplateKey,
			}
			if a, ok := actives.Lookup(r.Key, query.Profile); ok {
				m.Activation = &a
			}
			out.Rules = append(out.Rules, m)
		}
		deps.Logger.Debug("search_rules returned %d of %d rules", len(out.Rules), out.Total)
		return jsonResult(out)
	})
}

type searchRulesResponse struct {
	Total int         `json:"total"`
	Rules []ruleMatch `json:"rules"`
}

type ruleMatch struct {
	Key        string               `json:"key"`
	Name       string               `json:"name"`
	Severity   rules.Severity       `json:"severity,omitempty"`
	Language   string               `json:"language,omitempty"`
	Type       rules.Type           `json:"type,omitempty"`
	IsTemplate bool                 `json:"is_template,omitempty"`
	Template   string               `json:"template,omitempty"`
	Activation *rules.ActiveSummary `json:"activation,omitempty"`
}

func registerShowRuleTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"show_rule",
		mcp.WithDescription(
			"Show a coding rule with its activations in every quality profile. "+
				"Each activation is compared with the parent profile: severity_original and param originals are set when the child overrides them. "+
				"Template rules list their custom rules instead. "+
				"Example: show_rule(key='go:S100')",
		),
		mcp.WithString("key", mcp.Required(), mcp.Description("Rule key, e.g. 'go:S100'")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return nil, err
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return newErrorResult("invalid_parameters", "parameter 'key' cannot be empty"), nil
		}

		session := browse.New(deps.API, browse.Options{
			PageSize:         deps.PageSize,
			AllowCustomRules: deps.AllowCustomRules,
			Logger:           deps.Logger,
			Metrics:          deps.Metrics,
		})
		defer session.Close()

		if err := session.LoadContext(ctx); err != nil {
			return apiErrorResult(err)
		}
		details, err := session.LoadDetails(ctx, key)
		if err != nil {
			return apiErrorResult(err)
		}

		if deps.History != nil {
			if err := deps.History.Record(ctx, details.HistoryView()); err != nil {
				deps.Logger.Warn("recording view of %s: %v", key, err)
			}
		}

		out := showRuleResponse{Details: details}
		if deps.Links != nil {
			out.URL = deps.Links.RuleURL(key)
		}
		return jsonResult(out)
	})
}

type showRuleResponse struct {
	*browse.Details
	URL string `json:"url,omitempty"`
}

func registerListProfilesTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"list_profiles",
		mcp.WithDescription(
			"List quality profiles as an inheritance tree. "+
				"Example: list_profiles(language='go')",
		),
		mcp.WithString("language", mcp.Description("Optional - only profiles of this language")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		language := strings.TrimSpace(req.GetString("language", ""))

		list, err := deps.API.SearchProfiles(ctx, language)
		if err != nil {
			return apiErrorResult(err)
		}
		tree := profiles.KeyBy(list).Tree()
		if tree == nil {
			tree = []profiles.Node{}
		}
		return jsonResult(struct {
			Tree []profiles.Node `json:"tree"`
		}{tree})
	})
}

// apiErrorResult turns API failures into tool errors. Missing rules and
// access problems are reported to the client; anything else fails the call.
func apiErrorResult(err error) (*mcp.CallToolResult, error) {
	switch {
	case sonar.IsNotFound(err):
		return newErrorResult("not_found", err.Error()), nil
	case sonar.IsUnauthorized(err):
		return newErrorResult("unauthorized", err.Error()), nil
	case errors.Is(err, context.Canceled):
		return newErrorResult("cancelled", err.Error()), nil
	}
	return nil, fmt.Errorf("rules API: %w", err)
}
