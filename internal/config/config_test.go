package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "equity-screener/internal/errors"
)

func TestLoad_CreatesTemplateAndUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "config.toml"))
	assert.NoError(t, statErr, "template should be written on first load")

	assert.Equal(t, 5, cfg.Signals.ExpiryDays)
	assert.Equal(t, 30.0, cfg.Signals.RSIOversold)
	assert.Equal(t, 2.0, cfg.Signals.VolumeBreakoutThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Patterns.CacheMaxAge)
	assert.Equal(t, 7, cfg.Patterns.TechnicalWindowDays)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, filepath.Join(dir, "screener.db"), cfg.Database.Path)
}

func TestLoad_ReadsFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
[signals]
expiry_days = 9
rsi_oversold = 25.0
rsi_overbought = 75.0

[patterns]
cache_max_age = "2h"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))
	t.Setenv("SCREENER_LISTEN_ADDR", ":9999")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Signals.ExpiryDays)
	assert.Equal(t, 25.0, cfg.Signals.RSIOversold)
	assert.Equal(t, 2*time.Hour, cfg.Patterns.CacheMaxAge)
	assert.Equal(t, ":9999", cfg.API.ListenAddr)
	// untouched keys keep their defaults
	assert.Equal(t, 1.5, cfg.Signals.VolumeConfirmRatio)
}

func TestValidate(t *testing.T) {
	base := Default(t.TempDir())
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"inverted rsi thresholds", func(c *Config) { c.Signals.RSIOversold = 80 }},
		{"zero expiry", func(c *Config) { c.Signals.ExpiryDays = 0 }},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"redis without address", func(c *Config) { c.Cache.Backend = "redis"; c.Cache.RedisAddr = "" }},
		{"bad market open", func(c *Config) { c.Scheduler.MarketOpen = "9am" }},
		{"non-positive cache age", func(c *Config) { c.Patterns.CacheMaxAge = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !apperrors.Is(err, apperrors.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}
