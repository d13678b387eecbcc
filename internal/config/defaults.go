package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig returns a Config with sensible default values.
// These defaults target a local server on its standard port.
func DefaultConfig() *Config {
	dataDir := defaultDataDir()

	return &Config{
		Server: ServerConfig{
			URL:              "http://localhost:9000",
			Timeout:          30 * time.Second,
			RateLimitRPS:     0,
			MaxRetries:       3,
			AllowCustomRules: true,
		},
		Search: SearchConfig{
			PageSize: 100,
			Sort:     "name",
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    "memory",
			Dir:        filepath.Join(dataDir, "cache"),
			TTL:        10 * time.Minute,
			MaxEntries: 500,
		},
		History: HistoryConfig{
			Enabled:    true,
			Path:       filepath.Join(dataDir, "history.db"),
			MaxEntries: 200,
		},
	}
}

// defaultDataDir returns the default data directory path.
func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".cache", "codingrules")
}
