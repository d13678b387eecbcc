package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configName = ".codingrules"
	envPrefix  = "CODINGRULES"
)

// scannerEnv lists the environment variables the analysis scanners read.
// They are honoured after the CODINGRULES_* variable of the same key.
var scannerEnv = map[string]string{
	"server.url":          "SONAR_HOST_URL",
	"server.token":        "SONAR_TOKEN",
	"server.organization": "SONAR_ORGANIZATION",
}

// Loader reads the configuration from flags, environment, file and defaults.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader searching ., $HOME and /etc/codingrules for
// .codingrules.yaml.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	v.AddConfigPath("/etc/codingrules")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// SetConfigFile replaces the search paths with a single file.
func (l *Loader) SetConfigFile(path string) {
	l.v.SetConfigFile(path)
}

// BindFlag makes an explicitly set flag win over every other source.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for config key %s", key)
	}
	return l.v.BindPFlag(key, flag)
}

// ConfigFileUsed returns the path of the config file read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load merges, in order of precedence, bound flags, CODINGRULES_*
// variables, scanner variables, the config file and DefaultConfig, then
// validates the result. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(l.v, cfg)

	for key, env := range scannerEnv {
		if err := l.v.BindEnv(key, envName(key), env); err != nil {
			return nil, err
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Cache.Dir = expandHome(cfg.Cache.Dir)
	cfg.History.Path = expandHome(cfg.History.Path)
	cfg.Search.PresetsDir = expandHome(cfg.Search.PresetsDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads the configuration with path as the config file.
func LoadFromFile(path string) (*Config, error) {
	l := NewLoader()
	l.SetConfigFile(path)
	return l.Load()
}

// setDefaults registers every key so env-only values reach Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.url", cfg.Server.URL)
	v.SetDefault("server.token", cfg.Server.Token)
	v.SetDefault("server.organization", cfg.Server.Organization)
	v.SetDefault("server.timeout", cfg.Server.Timeout)
	v.SetDefault("server.rate_limit_rps", cfg.Server.RateLimitRPS)
	v.SetDefault("server.max_retries", cfg.Server.MaxRetries)
	v.SetDefault("server.allow_custom_rules", cfg.Server.AllowCustomRules)

	v.SetDefault("search.page_size", cfg.Search.PageSize)
	v.SetDefault("search.sort", cfg.Search.Sort)
	v.SetDefault("search.presets_dir", cfg.Search.PresetsDir)

	v.SetDefault("output.format", cfg.Output.Format)
	v.SetDefault("output.color", cfg.Output.Color)
	v.SetDefault("output.verbose", cfg.Output.Verbose)
	v.SetDefault("output.quiet", cfg.Output.Quiet)

	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.backend", cfg.Cache.Backend)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.max_entries", cfg.Cache.MaxEntries)

	v.SetDefault("history.enabled", cfg.History.Enabled)
	v.SetDefault("history.path", cfg.History.Path)
	v.SetDefault("history.max_entries", cfg.History.MaxEntries)
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
