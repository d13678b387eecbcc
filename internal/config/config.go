// Package config handles all configuration management for codingrules.
//
// Configuration is loaded from multiple sources in order of precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables (CODINGRULES_*)
// 3. Configuration file (.codingrules.yaml)
// 4. Default values (lowest priority)
package config

import (
	"net/url"
	"strings"
	"time"
)

// Config is the main configuration structure for codingrules.
type Config struct {
	// Server configures the rules API connection
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Search configures rule searches
	Search SearchConfig `mapstructure:"search" yaml:"search"`

	// Output configures output formatting
	Output OutputConfig `mapstructure:"output" yaml:"output"`

	// Cache configures response caching
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// History configures the viewed-rules history
	History HistoryConfig `mapstructure:"history" yaml:"history"`
}

// ServerConfig configures the rules API connection.
type ServerConfig struct {
	// URL is the server base URL
	URL string `mapstructure:"url" yaml:"url"`

	// Token is the user token sent as basic auth username.
	// This should be set via environment variable, not config file
	Token string `mapstructure:"token" yaml:"token"`

	// Organization scopes every request on multi-tenant servers
	Organization string `mapstructure:"organization" yaml:"organization"`

	// Timeout is the request timeout
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// RateLimitRPS is requests per second limit (0 = unlimited)
	RateLimitRPS int `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`

	// MaxRetries is the number of retries for retryable failures
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// AllowCustomRules enables custom rule management
	AllowCustomRules bool `mapstructure:"allow_custom_rules" yaml:"allow_custom_rules"`
}

// SearchConfig configures rule searches.
type SearchConfig struct {
	// PageSize is the number of rules per page (max 500)
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// Sort is the sort field
	Sort string `mapstructure:"sort" yaml:"sort"`

	// PresetsDir holds additional search preset files
	PresetsDir string `mapstructure:"presets_dir" yaml:"presets_dir"`
}

// OutputConfig configures output formatting.
type OutputConfig struct {
	// Format is the output format: "text", "markdown", "json"
	Format string `mapstructure:"format" yaml:"format"`

	// Color enables colored output (for terminal)
	Color bool `mapstructure:"color" yaml:"color"`

	// Verbose enables verbose output
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`

	// Quiet suppresses all output except errors
	Quiet bool `mapstructure:"quiet" yaml:"quiet"`
}

// CacheConfig configures response caching.
type CacheConfig struct {
	// Enabled enables caching
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Backend is "memory", "file" or "badger"
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Dir is the cache directory for persistent backends
	Dir string `mapstructure:"dir" yaml:"dir"`

	// TTL is the cache entry time-to-live
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// MaxEntries is the maximum number of cache entries (for memory)
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
}

// HistoryConfig configures the viewed-rules history.
type HistoryConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxEntries int    `mapstructure:"max_entries" yaml:"max_entries"`
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return &ValidationError{Field: "server.url", Message: "server URL is required"}
	}

	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "server.url", Message: "must be an absolute http(s) URL"}
	}

	if c.Server.MaxRetries < 0 {
		return &ValidationError{Field: "server.max_retries", Message: "must not be negative"}
	}

	if c.Search.PageSize < 1 || c.Search.PageSize > 500 {
		return &ValidationError{Field: "search.page_size", Message: "must be between 1 and 500"}
	}

	validFormats := map[string]bool{"text": true, "markdown": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &ValidationError{Field: "output.format", Message: "invalid format, must be one of: text, markdown, json"}
	}

	if c.Output.Verbose && c.Output.Quiet {
		return &ValidationError{Field: "output.quiet", Message: "cannot be combined with verbose"}
	}

	if c.Cache.Enabled {
		validBackends := map[string]bool{"memory": true, "file": true, "badger": true}
		if !validBackends[strings.ToLower(c.Cache.Backend)] {
			return &ValidationError{Field: "cache.backend", Message: "invalid backend, must be one of: memory, file, badger"}
		}
		if c.Cache.Backend != "memory" && c.Cache.Dir == "" {
			return &ValidationError{Field: "cache.dir", Message: "cache directory is required for persistent backends"}
		}
	}

	if c.History.Enabled && c.History.Path == "" {
		return &ValidationError{Field: "history.path", Message: "history path is required when history is enabled"}
	}

	return nil
}

// Masked returns a copy safe to print, with the token hidden.
func (c *Config) Masked() Config {
	out := *c
	if out.Server.Token != "" {
		out.Server.Token = maskSecret(out.Server.Token)
	}
	return out
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "config validation error: " + e.Field + ": " + e.Message
}
