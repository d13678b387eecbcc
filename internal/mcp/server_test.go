package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JNZader/codingrules/internal/history"
	"github.com/JNZader/codingrules/internal/logger"
	"github.com/JNZader/codingrules/internal/metrics"
	"github.com/JNZader/codingrules/internal/profiles"
	"github.com/JNZader/codingrules/internal/rules"
	"github.com/JNZader/codingrules/internal/sonar"
)

type fakeAPI struct {
	mu       sync.Mutex
	searches []sonar.SearchParams
	language string
}

func (f *fakeAPI) GetRulesApp(context.Context) (rules.AppResponse, error) {
	return rules.AppResponse{CanWrite: true}, nil
}

func (f *fakeAPI) SearchProfiles(_ context.Context, language string) ([]profiles.Profile, error) {
	f.mu.Lock()
	f.language = language
	f.mu.Unlock()
	return []profiles.Profile{
		{Key: "root", Name: "Sonar way", Language: "go", IsBuiltIn: true},
		{Key: "team", Name: "Team", Language: "go", ParentKey: "root", ParentName: "Sonar way", Actions: profiles.Actions{Edit: true}},
	}, nil
}

func (f *fakeAPI) SearchRules(_ context.Context, params sonar.SearchParams) (rules.SearchResponse, error) {
	f.mu.Lock()
	f.searches = append(f.searches, params)
	f.mu.Unlock()
	return rules.SearchResponse{
		Total: 7,
		Rules: []rules.Rule{{Key: "go:S1", Name: "One", Lang: "go", Severity: rules.SeverityMajor}},
		Actives: map[string][]rules.Activation{
			"go:S1": {{QProfile: "team", Inherit: rules.InheritInherited, Severity: rules.SeverityMajor}},
		},
	}, nil
}

func (f *fakeAPI) GetRuleDetails(_ context.Context, key string) (rules.ShowResponse, error) {
	if key != "go:S1" {
		return rules.ShowResponse{}, &sonar.APIError{Method: "GET", Path: "/api/rules/show", Status: http.StatusNotFound}
	}
	return rules.ShowResponse{
		Rule: rules.Details{Rule: rules.Rule{Key: "go:S1", Name: "One", Lang: "go"}},
		Actives: []rules.Activation{
			{QProfile: "root", Inherit: rules.InheritNone, Severity: rules.SeverityMinor},
			{QProfile: "team", Inherit: rules.InheritOverrides, Severity: rules.SeverityMajor},
		},
	}, nil
}

type fakeRecorder struct {
	views []*history.View
}

func (r *fakeRecorder) Record(_ context.Context, v *history.View) error {
	r.views = append(r.views, v)
	return nil
}

type fakeLinker struct{}

func (fakeLinker) RuleURL(key string) string            { return "https://sq/rules?open=" + key }
func (fakeLinker) ProfileURL(name, language string) string { return "https://sq/profiles/" + name }

func newTestServer(api *fakeAPI, rec *fakeRecorder) *server.MCPServer {
	return NewServer(&Deps{
		API:              api,
		Links:            fakeLinker{},
		Logger:           logger.New(logger.LevelError, io.Discard),
		Metrics:          metrics.NewCollector(),
		History:          rec,
		AllowCustomRules: true,
	}, "test")
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	req, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"id":      1,
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(s.HandleMessage(context.Background(), req))
	require.NoError(t, err)

	var response struct {
		Result *mcp.CallToolResult `json:"result,omitempty"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	require.NoError(t, json.Unmarshal(raw, &response))
	require.Nil(t, response.Error)
	require.NotNil(t, response.Result)
	return response.Result
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, r.Content)
	text, ok := r.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestRegisterTools(t *testing.T) {
	s := newTestServer(&fakeAPI{}, nil)

	raw, err := json.Marshal(s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`)))
	require.NoError(t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name        string `json:"name"`
				InputSchema struct {
					Required []string `json:"required"`
				} `json:"inputSchema"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &response))

	found := map[string][]string{}
	for _, tool := range response.Result.Tools {
		found[tool.Name] = tool.InputSchema.Required
	}
	assert.Contains(t, found, "search_rules")
	assert.Contains(t, found, "list_profiles")
	require.Contains(t, found, "show_rule")
	assert.Equal(t, []string{"key"}, found["show_rule"])
}

func TestSearchRulesTool(t *testing.T) {
	api := &fakeAPI{}
	s := newTestServer(api, nil)

	result := callTool(t, s, "search_rules", map[string]any{
		"q": "naming", "languages": "go", "severities": "MAJOR,CRITICAL", "profile": "team", "limit": 5,
	})
	require.False(t, result.IsError)

	require.Len(t, api.searches, 1)
	params := api.searches[0]
	assert.Equal(t, "naming", params.Query.SearchQuery)
	assert.Equal(t, []string{"go"}, params.Query.Languages)
	assert.Equal(t, []rules.Severity{rules.SeverityMajor, rules.SeverityCritical}, params.Query.Severities)
	assert.Equal(t, "team", params.Query.Profile)
	assert.Equal(t, 5, params.PageSize)
	assert.Contains(t, params.Fields, "actives")

	var out searchRulesResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, 7, out.Total)
	require.Len(t, out.Rules, 1)
	require.NotNil(t, out.Rules[0].Activation)
	assert.Equal(t, rules.InheritInherited, out.Rules[0].Activation.Inherit)
}

func TestSearchRulesToolLimits(t *testing.T) {
	api := &fakeAPI{}
	s := newTestServer(api, nil)

	callTool(t, s, "search_rules", map[string]any{"limit": 10000})
	callTool(t, s, "search_rules", map[string]any{})
	callTool(t, s, "search_rules", map[string]any{"limit": "7"})
	callTool(t, s, "search_rules", map[string]any{"limit": -3})

	require.Len(t, api.searches, 4)
	assert.Equal(t, sonar.MaxPageSize, api.searches[0].PageSize)
	assert.Equal(t, defaultSearchLimit, api.searches[1].PageSize)
	assert.NotContains(t, api.searches[1].Fields, "actives")
	assert.Equal(t, 7, api.searches[2].PageSize)
	assert.Equal(t, defaultSearchLimit, api.searches[3].PageSize)
}

func TestSearchRulesToolActivationNeedsProfile(t *testing.T) {
	api := &fakeAPI{}
	result := callTool(t, newTestServer(api, nil), "search_rules", map[string]any{"activation": "true"})

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid_parameters")
	assert.Empty(t, api.searches)
}

func TestShowRuleTool(t *testing.T) {
	rec := &fakeRecorder{}
	result := callTool(t, newTestServer(&fakeAPI{}, rec), "show_rule", map[string]any{"key": "go:S1"})
	require.False(t, result.IsError)

	var out struct {
		URL      string `json:"url"`
		Profiles []struct {
			ProfileKey         string         `json:"profileKey"`
			SeverityOverridden bool           `json:"severityOverridden"`
			SeverityOriginal   rules.Severity `json:"severityOriginal"`
		} `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))

	assert.Equal(t, "https://sq/rules?open=go:S1", out.URL)
	require.Len(t, out.Profiles, 2)
	assert.Equal(t, "team", out.Profiles[1].ProfileKey)
	assert.True(t, out.Profiles[1].SeverityOverridden)
	assert.Equal(t, rules.SeverityMinor, out.Profiles[1].SeverityOriginal)

	require.Len(t, rec.views, 1)
	assert.Equal(t, "go:S1", rec.views[0].RuleKey)
	assert.Equal(t, 1, rec.views[0].Overridden)
}

func TestShowRuleToolNotFound(t *testing.T) {
	rec := &fakeRecorder{}
	result := callTool(t, newTestServer(&fakeAPI{}, rec), "show_rule", map[string]any{"key": "go:missing"})

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not_found")
	assert.Empty(t, rec.views)
}

func TestShowRuleToolEmptyKey(t *testing.T) {
	result := callTool(t, newTestServer(&fakeAPI{}, nil), "show_rule", map[string]any{"key": "  "})
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "cannot be empty")
}

func TestListProfilesTool(t *testing.T) {
	api := &fakeAPI{}
	result := callTool(t, newTestServer(api, nil), "list_profiles", map[string]any{"language": "go"})
	require.False(t, result.IsError)
	assert.Equal(t, "go", api.language)

	var out struct {
		Tree []profiles.Node `json:"tree"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	require.Len(t, out.Tree, 1)
	assert.Equal(t, "root", out.Tree[0].Profile.Key)
	require.Len(t, out.Tree[0].Children, 1)
	assert.Equal(t, "team", out.Tree[0].Children[0].Profile.Key)
}
