// Package sonar is a client for the rules and quality profile web API.
package sonar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JNZader/codingrules/internal/cache"
	"github.com/JNZader/codingrules/internal/config"
	"github.com/JNZader/codingrules/internal/logger"
	"github.com/JNZader/codingrules/internal/metrics"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 32 << 20

// Client talks to the server API. It is safe for concurrent use.
type Client struct {
	baseURL      string
	token        string
	organization string
	http         *http.Client
	limiter      *RateLimiter
	retry        RetryConfig
	cache        cache.Cache
	log          *logger.Logger
	metrics      *metrics.Collector
}

// Option customizes a Client.
type Option func(*Client)

// WithCache caches GET responses. Any successful POST clears the cache.
func WithCache(c cache.Cache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(cl *Client) { cl.http = h }
}

// WithLogger sets the client logger.
func WithLogger(l *logger.Logger) Option {
	return func(cl *Client) { cl.log = l }
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(r RetryConfig) Option {
	return func(cl *Client) { cl.retry = r }
}

// WithMetrics records into m instead of the global collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(cl *Client) { cl.metrics = m }
}

// NewClient creates a client for the configured server.
func NewClient(cfg config.ServerConfig, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", cfg.URL)
	}

	retry := DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:      strings.TrimRight(u.String(), "/"),
		token:        cfg.Token,
		organization: cfg.Organization,
		http:         &http.Client{Timeout: timeout},
		retry:        retry,
		log:          logger.Default().WithPrefix("sonar"),
		metrics:      metrics.Global(),
	}
	if cfg.RateLimitRPS > 0 {
		c.limiter = NewRateLimiter(cfg.RateLimitRPS)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server URL without trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Organization returns the organization requests are scoped to.
func (c *Client) Organization() string { return c.organization }

// InvalidateCache drops every cached response.
func (c *Client) InvalidateCache() error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Clear()
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	encoded := c.withOrganization(params).Encode()

	var key string
	if c.cache != nil {
		key = cache.ComputeKey(c.baseURL, c.token, path, encoded)
		data, found, err := c.cache.Get(key)
		switch {
		case err != nil:
			c.log.Warn("cache read failed: %v", err)
		case found:
			c.metrics.Counter(metrics.MetricCacheHits).Inc()
			return decode(path, data, out)
		}
		c.metrics.Counter(metrics.MetricCacheMisses).Inc()
	}

	data, err := c.send(ctx, http.MethodGet, path, encoded)
	if err != nil {
		return err
	}

	if c.cache != nil {
		if err := c.cache.Set(key, data); err != nil {
			c.log.Warn("cache write failed: %v", err)
		}
	}
	return decode(path, data, out)
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	data, err := c.send(ctx, http.MethodPost, path, c.withOrganization(form).Encode())
	if err != nil {
		return err
	}

	c.metrics.Counter(metrics.MetricRulesChanged).Inc()
	if err := c.InvalidateCache(); err != nil {
		c.log.Warn("cache invalidation failed: %v", err)
	}
	return decode(path, data, out)
}

// send performs the request with retries. Only reads are retried since a
// write may have been applied before the failure.
func (c *Client) send(ctx context.Context, method, path, encoded string) ([]byte, error) {
	retry := c.retry
	if method != http.MethodGet {
		retry.MaxRetries = 0
	}

	onRetry := func(attempt int, err error) {
		c.metrics.Counter(metrics.MetricAPIRetries).Inc()
		c.log.Warn("retrying %s %s (attempt %d): %v", method, path, attempt, err)
	}

	var body []byte
	err := withRetry(ctx, retry, onRetry, func() error {
		var err error
		body, err = c.do(ctx, method, path, encoded)
		return err
	})
	return body, err
}

func (c *Client) do(ctx context.Context, method, path, encoded string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	target := c.baseURL + path
	var reqBody io.Reader
	if method == http.MethodGet {
		if encoded != "" {
			target += "?" + encoded
		}
	} else {
		reqBody = strings.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	requestID := uuid.New().String()
	req.Header.Set("X-Request-Id", requestID)
	if c.token != "" {
		req.SetBasicAuth(c.token, "")
	}

	timer := c.metrics.Timer(metrics.MetricAPILatency).Start()
	resp, err := c.http.Do(req)
	elapsed := timer.Stop()
	c.metrics.Counter(metrics.MetricAPIRequests).Inc()

	log := c.log.WithFields(map[string]interface{}{
		"request_id": requestID,
		"duration":   elapsed.Round(time.Millisecond).String(),
	})

	if err != nil {
		c.metrics.Counter(metrics.MetricAPIErrors).Inc()
		log.Debug("%s %s failed: %v", method, path, err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", path, err)
	}

	log.WithField("status", resp.StatusCode).Debug("%s %s", method, path)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.Counter(metrics.MetricAPIErrors).Inc()
		return nil, newAPIError(method, path, resp.StatusCode, data)
	}
	return data, nil
}

func (c *Client) withOrganization(v url.Values) url.Values {
	out := url.Values{}
	for k, vals := range v {
		out[k] = vals
	}
	if c.organization != "" {
		out.Set("organization", c.organization)
	}
	return out
}

func decode(path string, data []byte, out any) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
