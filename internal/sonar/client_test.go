package sonar

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JNZader/codingrules/internal/cache"
	"github.com/JNZader/codingrules/internal/config"
	"github.com/JNZader/codingrules/internal/logger"
	"github.com/JNZader/codingrules/internal/metrics"
	"github.com/JNZader/codingrules/internal/rules"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Client, *metrics.Collector) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m := metrics.NewCollector()
	base := []Option{
		WithLogger(logger.New(logger.LevelError, io.Discard)),
		WithMetrics(m),
		WithRetryConfig(fastRetry()),
	}
	c, err := NewClient(config.ServerConfig{URL: srv.URL + "/", Token: "squ_test", Organization: "acme"}, append(base, opts...)...)
	require.NoError(t, err)
	return c, m
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(config.ServerConfig{URL: "not a url"})
	assert.Error(t, err)
}

func TestRequestHeadersAndOrganization(t *testing.T) {
	c, m := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "squ_test", user)
		assert.Empty(t, pass)
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		assert.Equal(t, "acme", r.URL.Query().Get("organization"))
		assert.Equal(t, "/api/rules/app", r.URL.Path)
		writeJSON(w, map[string]any{"canWrite": true, "repositories": []map[string]string{{"key": "java", "language": "java", "name": "SonarJava"}}})
	}))

	app, err := c.GetRulesApp(context.Background())
	require.NoError(t, err)
	assert.True(t, app.CanWrite)
	require.Len(t, app.Repositories, 1)
	assert.Equal(t, "SonarJava", app.Repositories[0].Name)
	assert.Equal(t, int64(1), m.Counter(metrics.MetricAPIRequests).Value())
}

func TestSearchRulesParams(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "go,java", q.Get("languages"))
		assert.Equal(t, "p1", q.Get("qprofile"))
		assert.Equal(t, "name,lang", q.Get("f"))
		assert.Equal(t, "languages,active_severities", q.Get("facets"))
		assert.Equal(t, "2", q.Get("p"))
		assert.Equal(t, "100", q.Get("ps"))
		assert.Equal(t, "name", q.Get("s"))
		writeJSON(w, map[string]any{
			"p": 2, "ps": 100, "total": 101,
			"rules":   []map[string]any{{"key": "go:S1", "name": "One"}},
			"actives": map[string]any{"go:S1": []map[string]any{{"qProfile": "p1", "inherit": "NONE", "severity": "MAJOR"}}},
			"facets":  []map[string]any{{"property": "languages", "values": []map[string]any{{"val": "go", "count": 1}}}},
		})
	}))

	resp, err := c.SearchRules(context.Background(), SearchParams{
		Query:    rules.Query{Languages: []string{"go", "java"}, Profile: "p1"},
		Fields:   []string{"name", "lang"},
		Facets:   []rules.FacetKey{rules.FacetLanguages, rules.FacetActivationSeverities},
		Page:     2,
		PageSize: 100,
		Sort:     "name",
	})
	require.NoError(t, err)
	assert.Equal(t, 101, resp.Paging().Total)
	require.Len(t, resp.Rules, 1)
	assert.Equal(t, rules.SeverityMajor, resp.Actives["go:S1"][0].Severity)
	assert.Equal(t, 1, rules.ParseFacets(resp.Facets)[rules.FacetLanguages]["go"])
}

func TestAPIErrorParsing(t *testing.T) {
	c, m := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"errors":[{"msg":"Rule not found: go:S9"}]}`)
	}))

	_, err := c.GetRuleDetails(context.Background(), "go:S9")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "Rule not found: go:S9")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "/api/rules/show", apiErr.Path)
	assert.Equal(t, int64(1), m.Counter(metrics.MetricAPIErrors).Value())
}

func TestRetriesServerErrors(t *testing.T) {
	var calls int32
	c, m := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{"tags": []string{"cwe", "cert"}})
	}))

	tags, err := c.GetRuleTags(context.Background(), "c", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"cwe", "cert"}, tags)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, int64(2), m.Counter(metrics.MetricAPIRetries).Value())
}

func TestRetriesExhausted(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.GetRulesApp(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries (2) exceeded")
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
}

func TestNoRetryOnClientErrors(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.SearchProfiles(context.Background(), "")
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWritesAreNotRetried(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	err := c.DeleteRule(context.Background(), "go:custom")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.NotContains(t, err.Error(), "max retries")
}

func TestCacheAndInvalidation(t *testing.T) {
	var gets int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rules/show", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&gets, 1)
		writeJSON(w, map[string]any{"rule": map[string]any{"key": r.URL.Query().Get("key"), "name": "Rule"}})
	})
	mux.HandleFunc("/api/rules/update", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "go:S1", r.PostForm.Get("key"))
		assert.Equal(t, "cwe,security", r.PostForm.Get("tags"))
		assert.Equal(t, "acme", r.PostForm.Get("organization"))
		_, hasNote := r.PostForm["markdown_note"]
		assert.False(t, hasNote)
		writeJSON(w, map[string]any{"rule": map[string]any{"key": "go:S1", "tags": []string{"cwe", "security"}}})
	})

	c, m := newTestClient(t, mux, WithCache(cache.NewLRUCache(10, time.Minute)))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, err := c.GetRuleDetails(ctx, "go:S1")
		require.NoError(t, err)
		assert.Equal(t, "go:S1", resp.Rule.Key)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&gets))
	assert.Equal(t, int64(1), m.Counter(metrics.MetricCacheHits).Value())

	tags := []string{"cwe", "security"}
	updated, err := c.UpdateRule(ctx, UpdateRuleRequest{Key: "go:S1", Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, tags, updated.Tags)

	_, err = c.GetRuleDetails(ctx, "go:S1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&gets))
}

func TestSearchAllRules(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := q.Get("p")
		if page == "1" {
			assert.Equal(t, "tags", q.Get("facets"))
		} else {
			assert.Empty(t, q.Get("facets"))
		}
		key := "go:P" + page
		writeJSON(w, map[string]any{
			"p": 1, "ps": 2, "total": 5,
			"rules":   []map[string]any{{"key": key + "a"}, {"key": key + "b"}},
			"actives": map[string]any{key + "a": []map[string]any{{"qProfile": "p1"}}},
		})
	}))

	resp, err := c.SearchAllRules(context.Background(), SearchParams{PageSize: 2, Facets: []rules.FacetKey{rules.FacetTags}}, 0)
	require.NoError(t, err)
	assert.Len(t, resp.Rules, 6)
	assert.Len(t, resp.Actives, 3)

	limited, err := c.SearchAllRules(context.Background(), SearchParams{PageSize: 2, Facets: []rules.FacetKey{rules.FacetTags}}, 3)
	require.NoError(t, err)
	assert.Len(t, limited.Rules, 3)
}

func TestActivationWrites(t *testing.T) {
	var mu sync.Mutex
	forms := map[string]map[string]string{}
	form := func(path, key string) string {
		mu.Lock()
		defer mu.Unlock()
		return forms[path][key]
	}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		got := map[string]string{}
		for k := range r.PostForm {
			got[k] = r.PostForm.Get(k)
		}
		mu.Lock()
		forms[r.URL.Path] = got
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	ctx := context.Background()

	require.NoError(t, c.ActivateRule(ctx, ActivateRequest{
		Profile: "p1", Rule: "go:S1", Severity: rules.SeverityBlocker,
		Params: map[string]string{"max": "10", "format": "^x$"},
	}))
	assert.Equal(t, "format=^x$;max=10", form(pathActivateRule, "params"))
	assert.Equal(t, "BLOCKER", form(pathActivateRule, "severity"))

	require.NoError(t, c.RevertRule(ctx, "p2", "go:S1"))
	assert.Equal(t, "true", form(pathActivateRule, "reset"))
	assert.Empty(t, form(pathActivateRule, "severity"))

	require.NoError(t, c.DeactivateRule(ctx, "p1", "go:S1"))
	assert.Equal(t, "p1", form(pathDeactivateRule, "key"))

	assert.Error(t, c.ActivateRule(ctx, ActivateRequest{Rule: "go:S1"}))
}

func TestCreateRule(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "go:Template", r.PostForm.Get("template_key"))
		assert.Equal(t, "pattern=TODO", r.PostForm.Get("params"))
		writeJSON(w, map[string]any{"rule": map[string]any{"key": "go:my_rule", "templateKey": "go:Template"}})
	}))

	req := CreateRuleRequest{
		CustomKey: "my_rule", TemplateKey: "go:Template", Name: "My rule",
		MarkdownDescription: "desc", Params: map[string]string{"pattern": "TODO"},
	}
	rule, err := c.CreateRule(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, rule.IsCustom())

	req.Name = ""
	_, err = c.CreateRule(context.Background(), req)
	assert.EqualError(t, err, "name is required")
}

func TestParams(t *testing.T) {
	assert.Equal(t, "", EncodeParams(nil))
	assert.Equal(t, "a=1;b=x=y", EncodeParams(map[string]string{"b": "x=y", "a": "1"}))
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y"}, ParseParams("a=1;b=x=y;junk; =2"))
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.False(t, IsRetryableError(errors.New("boom")))
	assert.True(t, IsRetryableError(&APIError{Status: http.StatusTooManyRequests}))
	assert.False(t, IsRetryableError(&APIError{Status: http.StatusBadRequest}))
	assert.True(t, IsRetryableError(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
}

func TestWithRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}
	err := withRetry(ctx, cfg, nil, func() error {
		return &APIError{Status: http.StatusServiceUnavailable}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1)
	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx))

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rl.Wait(short), context.DeadlineExceeded)
}

func TestURLs(t *testing.T) {
	assert.Equal(t, "https://sq.local/profiles/show?language=java&name=Sonar+way",
		ProfileURL("https://sq.local", "", "Sonar way", "java"))
	assert.Equal(t, "https://sc.io/organizations/acme/quality_profiles/show?language=go&name=Team",
		ProfileURL("https://sc.io", "acme", "Team", "go"))
	assert.Equal(t, "https://sq.local/coding_rules?open=go%3AS1&rule_key=go%3AS1",
		RuleURL("https://sq.local", "", "go:S1"))

	c, err := NewClient(config.ServerConfig{URL: "https://sc.io/", Organization: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "https://sc.io/organizations/acme/rules?open=go%3AS1&rule_key=go%3AS1", c.RuleURL("go:S1"))
}
