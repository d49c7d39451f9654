package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// EventDurationMinutes is the length of a projected timed event
	EventDurationMinutes int `json:"event_duration_minutes"`

	// Timezone is the IANA name of the display timezone. It decides calendar
	// dates for density and where all-day events end. Timestamps crossing the
	// engine boundary stay UTC.
	Timezone string `json:"timezone"`

	// ContentMaxChars bounds post content on create/update.
	ContentMaxChars int `json:"content_max_chars"`

	// StoreURL points at a remote post store. Empty means the local sqlite store.
	StoreURL string `json:"store_url,omitempty"`

	// StoreToken is the bearer token sent to the remote store.
	StoreToken string `json:"store_token,omitempty"`

	// RequestTimeoutSeconds bounds each remote store call.
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`

	// RetryMax is the number of retries for idempotent remote reads.
	// Negative disables retries.
	RetryMax int `json:"retry_max"`

	// RedisAddr enables the Redis snapshot store for degraded reads.
	// Empty keeps snapshots in memory.
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`

	// SnapshotTTLMinutes bounds how long a last-known-good snapshot is kept.
	SnapshotTTLMinutes int `json:"snapshot_ttl_minutes"`

	// CacheMaxAgeSeconds bounds how long a derived read result is served
	// without refetching. Writes from other processes become visible after
	// at most this long. Negative keeps results until invalidated.
	CacheMaxAgeSeconds int `json:"cache_max_age_seconds"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// LogLevel is a zerolog level name.
	LogLevel string `json:"log_level"`

	// HTTPBind / HTTPPort are where `cadence serve` listens.
	HTTPBind string `json:"http_bind"`
	HTTPPort int    `json:"http_port"`

	// APIToken, when set, is required as a bearer token by the HTTP API.
	APIToken string `json:"api_token,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool types ("calendar", "post") to disable entirely.
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		EventDurationMinutes:  30,
		Timezone:              "UTC",
		ContentMaxChars:       5000,
		RequestTimeoutSeconds: 10,
		RetryMax:              2,
		SnapshotTTLMinutes:    60,
		CacheMaxAgeSeconds:    30,
		LogLevel:              "info",
		HTTPBind:              "127.0.0.1",
		HTTPPort:              8731,
	}
}

// Location resolves Timezone. An empty name is UTC.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// EventDuration returns the projected event length.
func (c *Config) EventDuration() time.Duration {
	return time.Duration(c.EventDurationMinutes) * time.Minute
}

// RequestTimeout returns the per-call timeout for remote store requests.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// SnapshotTTL returns how long degraded-read snapshots are kept.
func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLMinutes) * time.Minute
}

// CacheMaxAge returns the derived cache lifetime; zero means no limit.
func (c *Config) CacheMaxAge() time.Duration {
	if c.CacheMaxAgeSeconds <= 0 {
		return 0
	}
	return time.Duration(c.CacheMaxAgeSeconds) * time.Second
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.cadence) and repo (.cadence) directories.
// Repo config is found by walking upward from startDir to find the nearest .cadence/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .cadence/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".cadence", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.EventDurationMinutes = pickInt(overlay.EventDurationMinutes, base.EventDurationMinutes)
	result.ContentMaxChars = pickInt(overlay.ContentMaxChars, base.ContentMaxChars)
	result.RequestTimeoutSeconds = pickInt(overlay.RequestTimeoutSeconds, base.RequestTimeoutSeconds)
	result.RetryMax = pickInt(overlay.RetryMax, base.RetryMax)
	result.SnapshotTTLMinutes = pickInt(overlay.SnapshotTTLMinutes, base.SnapshotTTLMinutes)
	result.CacheMaxAgeSeconds = pickInt(overlay.CacheMaxAgeSeconds, base.CacheMaxAgeSeconds)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.HTTPPort = pickInt(overlay.HTTPPort, base.HTTPPort)

	result.Timezone = pickString(overlay.Timezone, base.Timezone)
	result.StoreURL = pickString(overlay.StoreURL, base.StoreURL)
	result.StoreToken = pickString(overlay.StoreToken, base.StoreToken)
	result.RedisAddr = pickString(overlay.RedisAddr, base.RedisAddr)
	result.RedisPassword = pickString(overlay.RedisPassword, base.RedisPassword)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)
	result.HTTPBind = pickString(overlay.HTTPBind, base.HTTPBind)
	result.APIToken = pickString(overlay.APIToken, base.APIToken)

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

// envPrefix namespaces environment overrides.
const envPrefix = "CADENCE_"

// ApplyEnv overlays CADENCE_* variables read through getenv onto cfg.
// Unset or empty variables leave the field unchanged; malformed numbers are
// reported with the variable name.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	ints := map[string]*int{
		"EVENT_DURATION_MINUTES":  &cfg.EventDurationMinutes,
		"CONTENT_MAX_CHARS":       &cfg.ContentMaxChars,
		"REQUEST_TIMEOUT_SECONDS": &cfg.RequestTimeoutSeconds,
		"RETRY_MAX":               &cfg.RetryMax,
		"SNAPSHOT_TTL_MINUTES":    &cfg.SnapshotTTLMinutes,
		"CACHE_MAX_AGE_SECONDS":   &cfg.CacheMaxAgeSeconds,
		"HTTP_PORT":               &cfg.HTTPPort,
	}
	for name, dst := range ints {
		v := strings.TrimSpace(getenv(envPrefix + name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = n
	}

	strs := map[string]*string{
		"TIMEZONE":       &cfg.Timezone,
		"STORE_URL":      &cfg.StoreURL,
		"STORE_TOKEN":    &cfg.StoreToken,
		"REDIS_ADDR":     &cfg.RedisAddr,
		"REDIS_PASSWORD": &cfg.RedisPassword,
		"LOG_LEVEL":      &cfg.LogLevel,
		"HTTP_BIND":      &cfg.HTTPBind,
		"API_TOKEN":      &cfg.APIToken,
	}
	for name, dst := range strs {
		if v := strings.TrimSpace(getenv(envPrefix + name)); v != "" {
			*dst = v
		}
	}
	return nil
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
