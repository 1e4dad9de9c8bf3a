// Package config provides configuration management for the screening application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/logging"
)

// Config holds all application configuration. It is passed by value into
// constructors; nothing in the module keeps a global copy.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Signals   SignalsConfig   `mapstructure:"signals"`
	Patterns  PatternsConfig  `mapstructure:"patterns"`
	Cache     CacheConfig     `mapstructure:"cache"`
	API       APIConfig       `mapstructure:"api"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SignalsConfig holds signal detection configuration.
type SignalsConfig struct {
	ExpiryDays               int     `mapstructure:"expiry_days"`
	RSIOversold              float64 `mapstructure:"rsi_oversold"`
	RSIOverbought            float64 `mapstructure:"rsi_overbought"`
	VolumeBreakoutThreshold  float64 `mapstructure:"volume_breakout_threshold"`
	VolumeConfirmRatio       float64 `mapstructure:"volume_confirm_ratio"`
	ADXTrendThreshold        float64 `mapstructure:"adx_trend_threshold"`
	ComputeMissingIndicators bool    `mapstructure:"compute_missing_indicators"`
	HistoryDays              int     `mapstructure:"history_days"`
	Workers                  int     `mapstructure:"workers"`
	SkipExisting             bool    `mapstructure:"skip_existing"`
}

// PatternsConfig holds pattern engine configuration.
type PatternsConfig struct {
	CacheMaxAge         time.Duration `mapstructure:"cache_max_age"`
	DefaultLimit        int           `mapstructure:"default_limit"`
	TechnicalWindowDays int           `mapstructure:"technical_window_days"`
	SeedPresets         bool          `mapstructure:"seed_presets"`
}

// CacheConfig selects the results cache backend.
type CacheConfig struct {
	Backend       string `mapstructure:"backend"` // sqlite, redis
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	KeyPrefix     string `mapstructure:"key_prefix"`
}

// APIConfig holds HTTP server configuration.
type APIConfig struct {
	ListenAddr     string   `mapstructure:"listen_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReleaseMode    bool     `mapstructure:"release_mode"`
}

// SchedulerConfig holds periodic refresh configuration.
type SchedulerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	IntradaySpec string `mapstructure:"intraday_spec"`
	EODSpec      string `mapstructure:"eod_spec"`
	ExpirySpec   string `mapstructure:"expiry_spec"`
	Timezone     string `mapstructure:"timezone"`
	MarketOpen   string `mapstructure:"market_open"`  // HH:MM
	MarketClose  string `mapstructure:"market_close"` // HH:MM
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/equity-screener"
	}
	return filepath.Join(home, ".config", "equity-screener")
}

// Default returns the built-in configuration rooted at configDir.
func Default(configDir string) Config {
	v := viper.New()
	setDefaults(v, configDir)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// A missing .env file is not an error.
	_ = godotenv.Load(filepath.Join(configDir, ".env"), ".env")

	cfg, err := loadConfigFile(configDir, "config")
	if err != nil {
		return Config{}, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string) (Config, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
		// First run: write a template and continue on defaults.
		if err := createTemplateConfig(configDir, name); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("database.path", filepath.Join(configDir, "screener.db"))

	v.SetDefault("signals.expiry_days", 5)
	v.SetDefault("signals.rsi_oversold", 30.0)
	v.SetDefault("signals.rsi_overbought", 70.0)
	v.SetDefault("signals.volume_breakout_threshold", 2.0)
	v.SetDefault("signals.volume_confirm_ratio", 1.5)
	v.SetDefault("signals.adx_trend_threshold", 25.0)
	v.SetDefault("signals.compute_missing_indicators", true)
	v.SetDefault("signals.history_days", 400)
	v.SetDefault("signals.workers", 4)
	v.SetDefault("signals.skip_existing", true)

	v.SetDefault("patterns.cache_max_age", 24*time.Hour)
	v.SetDefault("patterns.default_limit", 100)
	v.SetDefault("patterns.technical_window_days", 7)
	v.SetDefault("patterns.seed_presets", true)

	v.SetDefault("cache.backend", "sqlite")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.key_prefix", "screener")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("api.release_mode", false)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.intraday_spec", "0 */15 9-15 * * MON-FRI")
	v.SetDefault("scheduler.eod_spec", "0 30 16 * * MON-FRI")
	v.SetDefault("scheduler.expiry_spec", "0 0 6 * * *")
	v.SetDefault("scheduler.timezone", "Asia/Jakarta")
	v.SetDefault("scheduler.market_open", "09:00")
	v.SetDefault("scheduler.market_close", "16:00")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "screener.log"))
	v.SetDefault("logging.max_size", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 14)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCREENER_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SCREENER_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("SCREENER_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("SCREENER_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("SCREENER_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.RedisDB = db
		}
	}
	if v := os.Getenv("SCREENER_LISTEN_ADDR"); v != "" {
		cfg.API.ListenAddr = v
	}
	if v := os.Getenv("SCREENER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", apperrors.ErrConfigInvalid)
	}

	s := c.Signals
	if s.ExpiryDays <= 0 {
		return fmt.Errorf("%w: signals.expiry_days must be positive", apperrors.ErrConfigInvalid)
	}
	if s.RSIOversold <= 0 || s.RSIOverbought >= 100 || s.RSIOversold >= s.RSIOverbought {
		return fmt.Errorf("%w: rsi thresholds must satisfy 0 < oversold < overbought < 100", apperrors.ErrConfigInvalid)
	}
	if s.VolumeBreakoutThreshold <= 0 || s.VolumeConfirmRatio <= 0 {
		return fmt.Errorf("%w: volume ratios must be positive", apperrors.ErrConfigInvalid)
	}
	if s.ADXTrendThreshold < 0 || s.ADXTrendThreshold > 100 {
		return fmt.Errorf("%w: signals.adx_trend_threshold must be between 0 and 100", apperrors.ErrConfigInvalid)
	}

	p := c.Patterns
	if p.CacheMaxAge <= 0 {
		return fmt.Errorf("%w: patterns.cache_max_age must be positive", apperrors.ErrConfigInvalid)
	}
	if p.DefaultLimit <= 0 {
		return fmt.Errorf("%w: patterns.default_limit must be positive", apperrors.ErrConfigInvalid)
	}
	if p.TechnicalWindowDays <= 0 {
		return fmt.Errorf("%w: patterns.technical_window_days must be positive", apperrors.ErrConfigInvalid)
	}

	switch c.Cache.Backend {
	case "sqlite":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("%w: cache.redis_addr is required for the redis backend", apperrors.ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q (must be 'sqlite' or 'redis')", apperrors.ErrConfigInvalid, c.Cache.Backend)
	}

	if _, err := time.Parse("15:04", c.Scheduler.MarketOpen); err != nil {
		return fmt.Errorf("%w: scheduler.market_open: %v", apperrors.ErrConfigInvalid, err)
	}
	if _, err := time.Parse("15:04", c.Scheduler.MarketClose); err != nil {
		return fmt.Errorf("%w: scheduler.market_close: %v", apperrors.ErrConfigInvalid, err)
	}

	return nil
}

// LogConfig converts the logging section for the logging package.
func (c Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}
