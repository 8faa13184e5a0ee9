// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultTimeoutSeconds = 10
	DefaultBackoffBaseMS  = 1000
	DefaultAlpha          = 0.7
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RECRUITMATE_"

// Config holds the resolved configuration.
type Config struct {
	// API settings
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	BackoffBaseMS  int    `json:"backoff_base_ms"`

	// State settings
	CacheDir string `json:"cache_dir"`

	// Output settings
	Format string `json:"format"`

	// Match defaults
	Alpha float64 `json:"alpha"`

	// Behavior preferences (overridable by flags)
	Verbose *int  `json:"verbose,omitempty"`
	Stats   *bool `json:"stats,omitempty"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
	SourceGlobal  Source = "global"
	SourceDotEnv  Source = "dotenv"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// Keys lists the configuration keys in display order.
var Keys = []string{"base_url", "timeout_seconds", "backoff_base_ms", "cache_dir", "format", "alpha", "verbose", "stats"}

// FlagOverrides holds command-line flag values. Zero values are unset.
type FlagOverrides struct {
	BaseURL  string
	CacheDir string
	Format   string
	Timeout  int
	Verbose  int
	Stats    bool
}

// Default returns the default configuration.
func Default() *Config {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}

	cfg := &Config{
		BaseURL:        DefaultBaseURL,
		TimeoutSeconds: DefaultTimeoutSeconds,
		BackoffBaseMS:  DefaultBackoffBaseMS,
		CacheDir:       filepath.Join(cacheDir, "recruitmate"),
		Format:         "auto",
		Alpha:          DefaultAlpha,
		Sources:        make(map[string]string),
	}
	for _, k := range Keys {
		cfg.Sources[k] = string(SourceDefault)
	}
	return cfg
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > .env > global > system > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, systemConfigPath(), SourceSystem)
	loadFromFile(cfg, GlobalConfigPath(), SourceGlobal)
	LoadFromDotEnv(cfg, ".env")
	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	cfg.BaseURL = NormalizeBaseURL(cfg.BaseURL)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return // File doesn't exist, skip
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	if v, ok := fileCfg["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
		cfg.Sources["base_url"] = string(source)
	}
	if v, ok := wholeNumber(fileCfg["timeout_seconds"]); ok && v > 0 {
		cfg.TimeoutSeconds = v
		cfg.Sources["timeout_seconds"] = string(source)
	}
	if v, ok := wholeNumber(fileCfg["backoff_base_ms"]); ok && v > 0 {
		cfg.BackoffBaseMS = v
		cfg.Sources["backoff_base_ms"] = string(source)
	}
	if v, ok := fileCfg["cache_dir"].(string); ok && v != "" {
		cfg.CacheDir = v
		cfg.Sources["cache_dir"] = string(source)
	}
	if v, ok := fileCfg["format"].(string); ok && v != "" {
		cfg.Format = v
		cfg.Sources["format"] = string(source)
	}
	if v, ok := fileCfg["alpha"].(float64); ok {
		cfg.Alpha = v
		cfg.Sources["alpha"] = string(source)
	}
	if v, ok := wholeNumber(fileCfg["verbose"]); ok && v >= 0 && v <= 2 {
		cfg.Verbose = &v
		cfg.Sources["verbose"] = string(source)
	}
	if v, ok := fileCfg["stats"].(bool); ok {
		cfg.Stats = &v
		cfg.Sources["stats"] = string(source)
	}
}

// wholeNumber accepts JSON numbers without a fractional part.
func wholeNumber(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// LoadFromDotEnv applies RECRUITMATE_* values from a .env file. Variables
// already present in the process environment win, so the file never
// overrides them.
func LoadFromDotEnv(cfg *Config, path string) {
	values, err := godotenv.Read(path)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "warning: skipping malformed %s: %v\n", path, err)
		}
		return
	}
	applyEnv(cfg, SourceDotEnv, func(k string) (string, bool) {
		if _, set := os.LookupEnv(k); set {
			return "", false
		}
		v, ok := values[k]
		return v, ok
	})
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	applyEnv(cfg, SourceEnv, os.LookupEnv)
}

func applyEnv(cfg *Config, source Source, lookup func(string) (string, bool)) {
	get := func(name string) string {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return ""
		}
		return strings.TrimSpace(v)
	}

	if v := get("BASE_URL"); v != "" {
		cfg.BaseURL = v
		cfg.Sources["base_url"] = string(source)
	}
	if v := get("TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TimeoutSeconds = n
			cfg.Sources["timeout_seconds"] = string(source)
		}
	}
	if v := get("BACKOFF_BASE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BackoffBaseMS = n
			cfg.Sources["backoff_base_ms"] = string(source)
		}
	}
	if v := get("CACHE_DIR"); v != "" {
		cfg.CacheDir = v
		cfg.Sources["cache_dir"] = string(source)
	}
	if v := get("FORMAT"); v != "" {
		cfg.Format = v
		cfg.Sources["format"] = string(source)
	}
	if v := get("ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Alpha = f
			cfg.Sources["alpha"] = string(source)
		}
	}
	if v := get("STATS"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.Stats = &b
			cfg.Sources["stats"] = string(source)
		}
	}
}

// parseEnvBool parses a boolean environment variable strictly.
// Returns (value, true) for recognized values, (false, false) for unrecognized.
func parseEnvBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	default:
		return false, false
	}
}

// ApplyOverrides applies non-zero flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
		cfg.Sources["base_url"] = string(SourceFlag)
	}
	if o.CacheDir != "" {
		cfg.CacheDir = o.CacheDir
		cfg.Sources["cache_dir"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
	if o.Timeout > 0 {
		cfg.TimeoutSeconds = o.Timeout
		cfg.Sources["timeout_seconds"] = string(SourceFlag)
	}
	if o.Verbose > 0 {
		v := min(o.Verbose, 2)
		cfg.Verbose = &v
		cfg.Sources["verbose"] = string(SourceFlag)
	}
	if o.Stats {
		cfg.Stats = &o.Stats
		cfg.Sources["stats"] = string(SourceFlag)
	}
}

// Validate rejects values the client cannot run with.
func (cfg *Config) Validate() error {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid base_url %q (from %s): must be an http(s) URL", cfg.BaseURL, cfg.Sources["base_url"])
	}
	if cfg.TimeoutSeconds <= 0 {
		return fmt.Errorf("invalid timeout_seconds %d: must be positive", cfg.TimeoutSeconds)
	}
	if cfg.Alpha < 0 || cfg.Alpha > 1 {
		return fmt.Errorf("invalid alpha %g (from %s): must be between 0 and 1", cfg.Alpha, cfg.Sources["alpha"])
	}
	return nil
}

// Timeout returns the per-call deadline.
func (cfg *Config) Timeout() time.Duration {
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}

// BackoffBase returns the base delay for rate-limit backoff.
func (cfg *Config) BackoffBase() time.Duration {
	return time.Duration(cfg.BackoffBaseMS) * time.Millisecond
}

// VerboseLevel returns the verbosity, 0 when unset.
func (cfg *Config) VerboseLevel() int {
	if cfg.Verbose == nil {
		return 0
	}
	return *cfg.Verbose
}

// StatsEnabled reports whether session stats should be shown.
func (cfg *Config) StatsEnabled() bool {
	return cfg.Stats != nil && *cfg.Stats
}

// Entry is one resolved key for display.
type Entry struct {
	Key    string `json:"key"`
	Value  any    `json:"value"`
	Source string `json:"source"`
}

// Entries returns every key with its resolved value and source.
func (cfg *Config) Entries() []Entry {
	values := map[string]any{
		"base_url":        cfg.BaseURL,
		"timeout_seconds": cfg.TimeoutSeconds,
		"backoff_base_ms": cfg.BackoffBaseMS,
		"cache_dir":       cfg.CacheDir,
		"format":          cfg.Format,
		"alpha":           cfg.Alpha,
		"verbose":         cfg.VerboseLevel(),
		"stats":           cfg.StatsEnabled(),
	}
	entries := make([]Entry, 0, len(Keys))
	for _, k := range Keys {
		entries = append(entries, Entry{Key: k, Value: values[k], Source: cfg.Sources[k]})
	}
	return entries
}

// Path helpers

func systemConfigPath() string {
	return "/etc/recruitmate/config.json"
}

// GlobalConfigPath returns the path of the global config file.
func GlobalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "recruitmate")
}

// NormalizeBaseURL ensures consistent URL format: a scheme is added to bare
// hosts (http for loopback, https otherwise) and trailing slashes dropped.
func NormalizeBaseURL(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	if IsLocalhost(host) {
		return "http://" + host
	}
	return "https://" + host
}

// IsLocalhost returns true if host is localhost, a .localhost subdomain,
// 127.0.0.1, or [::1] (with optional port).
func IsLocalhost(host string) bool {
	hostWithoutPort := host
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		// Bracketed IPv6 keeps its colons unless a port follows.
		if !strings.HasPrefix(host, "[") || strings.HasPrefix(host, "[::1]:") {
			hostWithoutPort = host[:idx]
		}
	}

	switch {
	case hostWithoutPort == "localhost", strings.HasSuffix(hostWithoutPort, ".localhost"):
		return true
	case hostWithoutPort == "127.0.0.1", hostWithoutPort == "[::1]":
		return true
	}
	return false
}
