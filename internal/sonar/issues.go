package sonar

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/JNZader/codingrules/internal/rules"
)

const (
	pathIssuesSearch  = "/api/issues/search"
	pathServerVersion = "/api/server/version"
)

// Issue facets that group by project. Older servers only know projectUuids.
var projectFacets = []string{"projects", "projectUuids"}

type issuesSearchResponse struct {
	Total      int              `json:"total"`
	Facets     []rules.RawFacet `json:"facets"`
	Components []struct {
		Key  string `json:"key"`
		UUID string `json:"uuid"`
		Name string `json:"name"`
	} `json:"components"`
}

// CountRuleIssues returns the unresolved issues raised by the rule, grouped
// by project.
func (c *Client) CountRuleIssues(ctx context.Context, key string) (rules.IssueCount, error) {
	if key == "" {
		return rules.IssueCount{}, errors.New("rule key is required")
	}

	v := url.Values{
		"rules":    {key},
		"resolved": {"false"},
		"ps":       {"1"},
		"facets":   {strings.Join(projectFacets, ",")},
	}
	var resp issuesSearchResponse
	if err := c.get(ctx, pathIssuesSearch, v, &resp); err != nil {
		return rules.IssueCount{}, err
	}

	names := make(map[string][2]string, len(resp.Components))
	for _, comp := range resp.Components {
		names[comp.Key] = [2]string{comp.Key, comp.Name}
		if comp.UUID != "" {
			names[comp.UUID] = [2]string{comp.Key, comp.Name}
		}
	}

	count := rules.IssueCount{Total: resp.Total}
	for _, facet := range projectFacets {
		values := rules.TakeFacet(resp.Facets, facet)
		if len(values) == 0 {
			continue
		}
		for _, fv := range values {
			p := rules.ProjectIssues{Key: fv.Val, Name: fv.Val, Count: fv.Count}
			if n, ok := names[fv.Val]; ok {
				p.Key, p.Name = n[0], n[1]
			}
			count.Projects = append(count.Projects, p)
		}
		break
	}
	return count, nil
}

// ServerVersion returns the version the server reports. The response is
// plain text and never cached.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	data, err := c.send(ctx, http.MethodGet, pathServerVersion, "")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
