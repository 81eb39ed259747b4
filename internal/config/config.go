// Package config loads the daemon configuration from per-environment YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
)

// Auto-link bounds.
const (
	MaxAutoLinkProducts = 20
	MaxMinSpacing       = 1000
)

// Config holds the affilink daemon configuration.
type Config struct {
	HTTP     HTTPConfig              `yaml:"http"`
	Database DatabaseConfig          `yaml:"database"`
	Auth     AuthConfig              `yaml:"auth"`
	Storage  StorageConfig           `yaml:"storage"`
	Logging  LoggingConfig           `yaml:"logging"`
	AutoLink AutoLinkConfig          `yaml:"autolink"`
	Queue    QueueConfig             `yaml:"queue"`
	Refresh  RefreshConfig           `yaml:"refresh"`
	Catalog  CatalogConfig           `yaml:"catalog"`
	Sources  map[string]SourceConfig `yaml:"sources"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis, valkey (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// AutoLinkConfig holds the eligibility and density settings of auto-linking.
type AutoLinkConfig struct {
	Enabled     *bool    `yaml:"enabled"` // default: true
	PostTypes   []string `yaml:"post_types"`
	Categories  []int    `yaml:"categories"` // empty = all
	MaxProducts int      `yaml:"max_products"`
	MinSpacing  int      `yaml:"min_spacing"`
}

// IsEnabled reports whether auto-linking is on.
func (c AutoLinkConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// QueueConfig holds the drain loop settings.
type QueueConfig struct {
	BatchSize        int `yaml:"batch_size"`
	LeaseTTLSec      int `yaml:"lease_ttl_sec"`
	TaskTimeoutSec   int `yaml:"task_timeout_sec"`
	FollowUpSec      int `yaml:"follow_up_sec"`
	DrainIntervalSec int `yaml:"drain_interval_sec"`
	MarkerTTLHours   int `yaml:"marker_ttl_hours"`
}

// RefreshConfig holds the stale-placement sweep settings.
type RefreshConfig struct {
	Enabled         *bool `yaml:"enabled"` // default: true
	StaleAfterHours int   `yaml:"stale_after_hours"`
	IntervalMin     int   `yaml:"interval_min"`
	SweepLimit      int   `yaml:"sweep_limit"`
}

// IsEnabled reports whether the refresh sweep runs.
func (c RefreshConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// CatalogConfig holds aggregation and caching settings shared by all sources.
type CatalogConfig struct {
	CallTimeoutSec   int    `yaml:"call_timeout_sec"`
	Country          string `yaml:"country"`
	CacheHours       int    `yaml:"cache_hours"`
	SearchCacheHours int    `yaml:"search_cache_hours"`
}

// SourceConfig holds one product feed source.
type SourceConfig struct {
	Enabled           *bool   `yaml:"enabled"` // default: true
	BaseURL           string  `yaml:"base_url"`
	Token             string  `yaml:"token"`
	Country           string  `yaml:"country"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	RateLimit         float64 `yaml:"rate_limit"` // requests per second
	Burst             int     `yaml:"burst"`
	BreakerFailures   uint32  `yaml:"breaker_failures"`
	BreakerTimeoutSec int     `yaml:"breaker_timeout_sec"`
}

// IsEnabled reports whether the source takes part in aggregation.
func (c SourceConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// Seconds converts a whole-second setting to a duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// EnabledSources returns the IDs of enabled sources in lexical order.
func (c *Config) EnabledSources() []string {
	ids := make([]string, 0, len(c.Sources))
	for id, s := range c.Sources {
		if s.IsEnabled() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR} references and applying defaults.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverValkey
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "affilink:"
	}

	if len(c.AutoLink.PostTypes) == 0 {
		c.AutoLink.PostTypes = []string{"post"}
	}
	if c.AutoLink.MaxProducts <= 0 {
		c.AutoLink.MaxProducts = 5
	}
	if c.AutoLink.MinSpacing <= 0 {
		c.AutoLink.MinSpacing = 3
	}

	if c.Queue.BatchSize <= 0 {
		c.Queue.BatchSize = 5
	}
	if c.Queue.LeaseTTLSec <= 0 {
		c.Queue.LeaseTTLSec = 300
	}
	if c.Queue.TaskTimeoutSec <= 0 {
		c.Queue.TaskTimeoutSec = 60
	}
	if c.Queue.FollowUpSec <= 0 {
		c.Queue.FollowUpSec = 60
	}
	if c.Queue.DrainIntervalSec <= 0 {
		c.Queue.DrainIntervalSec = 300
	}
	if c.Queue.MarkerTTLHours <= 0 {
		c.Queue.MarkerTTLHours = 24
	}

	if c.Refresh.StaleAfterHours <= 0 {
		c.Refresh.StaleAfterHours = 24
	}
	if c.Refresh.IntervalMin <= 0 {
		c.Refresh.IntervalMin = 60
	}
	if c.Refresh.SweepLimit <= 0 {
		c.Refresh.SweepLimit = 50
	}

	if c.Catalog.CallTimeoutSec <= 0 {
		c.Catalog.CallTimeoutSec = 10
	}
	if c.Catalog.CacheHours <= 0 {
		c.Catalog.CacheHours = 24
	}
	if c.Catalog.SearchCacheHours <= 0 {
		c.Catalog.SearchCacheHours = 12
	}
	for id, s := range c.Sources {
		if s.Country == "" {
			s.Country = c.Catalog.Country
		}
		if s.TimeoutSec <= 0 {
			s.TimeoutSec = c.Catalog.CallTimeoutSec
		}
		c.Sources[id] = s
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	default:
		return fmt.Errorf("database.driver must be %q, %q or %q, got %q",
			DriverMemory, DriverRedis, DriverValkey, c.Database.Driver)
	}
	if c.AutoLink.MaxProducts > MaxAutoLinkProducts {
		return fmt.Errorf("autolink.max_products must be at most %d, got %d",
			MaxAutoLinkProducts, c.AutoLink.MaxProducts)
	}
	if c.AutoLink.MinSpacing > MaxMinSpacing {
		return fmt.Errorf("autolink.min_spacing must be at most %d, got %d",
			MaxMinSpacing, c.AutoLink.MinSpacing)
	}
	if c.Queue.LeaseTTLSec > 0 && c.Queue.TaskTimeoutSec >= c.Queue.LeaseTTLSec {
		return fmt.Errorf("queue.task_timeout_sec (%d) must be shorter than queue.lease_ttl_sec (%d)",
			c.Queue.TaskTimeoutSec, c.Queue.LeaseTTLSec)
	}
	for id, s := range c.Sources {
		if !s.IsEnabled() {
			continue
		}
		if s.BaseURL == "" {
			return fmt.Errorf("sources.%s.base_url is required", id)
		}
		if s.RateLimit < 0 {
			return fmt.Errorf("sources.%s.rate_limit must not be negative", id)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
