package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "switchfacts", cfg.Name)
	assert.GreaterOrEqual(t, cfg.Extraction.Workers, 2)
	assert.Equal(t, []string{".cs"}, cfg.Extraction.Extensions)
	assert.True(t, cfg.Mangle.AutoEval)
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("SWITCHFACTS_DB", "")
	t.Setenv("SWITCHFACTS_WORKERS", "")
	t.Setenv("SWITCHFACTS_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "nested", "switchfacts.yaml")

	cfg := DefaultConfig()
	cfg.Extraction.Workers = 3
	cfg.Extraction.FailFast = true
	cfg.Mangle.FactLimit = 42
	cfg.Logging.Categories = map[string]bool{"watch": false}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("SWITCHFACTS_DB", "")
	t.Setenv("SWITCHFACTS_WORKERS", "")
	t.Setenv("SWITCHFACTS_LOG_LEVEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	t.Setenv("SWITCHFACTS_DB", "")
	t.Setenv("SWITCHFACTS_WORKERS", "")
	t.Setenv("SWITCHFACTS_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "switchfacts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mangle:\n  fact_limit: 10\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Mangle.FactLimit)
	assert.Equal(t, "30s", cfg.Mangle.QueryTimeout)
	assert.Equal(t, DefaultExtractionConfig(), cfg.Extraction)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "switchfacts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extraction: [oops"), 0644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SWITCHFACTS_DB", "/tmp/other.db")
	t.Setenv("SWITCHFACTS_WORKERS", "7")
	t.Setenv("SWITCHFACTS_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/tmp/other.db", cfg.Store.DatabasePath)
	assert.Equal(t, 7, cfg.Extraction.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)

	t.Run("invalid worker count is ignored", func(t *testing.T) {
		t.Setenv("SWITCHFACTS_WORKERS", "zero")
		cfg := DefaultConfig()
		want := cfg.Extraction.Workers
		cfg.applyEnvOverrides()
		assert.Equal(t, want, cfg.Extraction.Workers)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no workers", func(c *Config) { c.Extraction.Workers = 0 }},
		{"no extensions", func(c *Config) { c.Extraction.Extensions = nil }},
		{"negative fact limit", func(c *Config) { c.Mangle.FactLimit = -1 }},
		{"bad timeout", func(c *Config) { c.Mangle.QueryTimeout = "soon" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"metrics without listener", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationsAndPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mangle.QueryTimeout = "bogus"
	cfg.Extraction.WatchDebounce = ""
	assert.Equal(t, "30s", cfg.GetQueryTimeout().String())
	assert.Equal(t, "200ms", cfg.GetWatchDebounce().String())

	assert.Equal(t, filepath.Join("/ws", ".switchfacts", "facts.db"), cfg.DatabasePath("/ws"))
	cfg.Store.DatabasePath = ""
	assert.Equal(t, "", cfg.DatabasePath("/ws"))
	cfg.Store.DatabasePath = "/abs/facts.db"
	assert.Equal(t, "/abs/facts.db", cfg.DatabasePath("/ws"))
}

func TestLoggingOptions(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "json", DebugMode: true, Categories: map[string]bool{"store": false}}
	opts := lc.Options()
	assert.True(t, opts.JSONFormat)
	assert.True(t, opts.DebugMode)
	assert.False(t, lc.IsCategoryEnabled("store"))
	assert.True(t, lc.IsCategoryEnabled("extract"))

	lc.DebugMode = false
	assert.False(t, lc.IsCategoryEnabled("extract"))
}
