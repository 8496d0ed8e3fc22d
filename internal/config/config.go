package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all switchfacts configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Source discovery, parsing and case extraction
	Extraction ExtractionConfig `yaml:"extraction"`

	// Mangle query engine
	Mangle MangleConfig `yaml:"mangle"`

	// SQLite fact persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Prometheus endpoint used by `watch`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StoreConfig configures fact persistence.
type StoreConfig struct {
	// DatabasePath is relative to the workspace unless absolute. Empty
	// disables persistence.
	DatabasePath string `yaml:"database_path"`
}

// MetricsConfig configures the metrics listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:       "switchfacts",
		Version:    "0.3.0",
		Extraction: DefaultExtractionConfig(),
		Mangle: MangleConfig{
			FactLimit:    500000,
			QueryTimeout: "30s",
			AutoEval:     true,
		},
		Store: StoreConfig{
			DatabasePath: ".switchfacts/facts.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("SWITCHFACTS_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if v := os.Getenv("SWITCHFACTS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Extraction.Workers = n
		}
	}
	if level := os.Getenv("SWITCHFACTS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetQueryTimeout returns the Mangle query timeout as a duration.
func (c *Config) GetQueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Mangle.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetWatchDebounce returns the watcher debounce interval as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Extraction.WatchDebounce)
	if err != nil || d <= 0 {
		return 200 * time.Millisecond
	}
	return d
}

// DatabasePath resolves the store path against workspace. Returns "" when
// persistence is disabled.
func (c *Config) DatabasePath(workspace string) string {
	p := c.Store.DatabasePath
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Extraction.Workers < 1 {
		return fmt.Errorf("extraction.workers must be >= 1, got %d", c.Extraction.Workers)
	}
	if len(c.Extraction.Extensions) == 0 {
		return fmt.Errorf("extraction.extensions must not be empty")
	}
	if c.Mangle.FactLimit < 0 {
		return fmt.Errorf("mangle.fact_limit must be >= 0, got %d", c.Mangle.FactLimit)
	}
	if _, err := time.ParseDuration(c.Mangle.QueryTimeout); err != nil {
		return fmt.Errorf("invalid mangle.query_timeout %q: %w", c.Mangle.QueryTimeout, err)
	}

	validLevel := false
	for _, l := range ValidLogLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid logging level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen required when metrics are enabled")
	}
	return nil
}
