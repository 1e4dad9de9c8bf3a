// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	NoColor    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "equity-screener", "logs", "screener.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     14,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

var levelLabels = map[string]string{
	"debug": "\033[36mDBG\033[0m",
	"info":  "\033[32mINF\033[0m",
	"warn":  "\033[33mWRN\033[0m",
	"error": "\033[31mERR\033[0m",
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
// Console output goes to stderr so that --json command output stays parseable.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339,
		}
		if !cfg.NoColor {
			consoleWriter.FormatLevel = func(i interface{}) string {
				ll, ok := i.(string)
				if !ok {
					return "???"
				}
				if label, ok := levelLabels[ll]; ok {
					return label
				}
				return ll
			}
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File && cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// ContextKey is the type for context keys.
type ContextKey string

const (
	// LoggerKey is the context key for the logger.
	LoggerKey ContextKey = "logger"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithStock adds a stock ID to the logger context.
func WithStock(logger zerolog.Logger, stockID string) zerolog.Logger {
	return logger.With().Str("stock_id", stockID).Logger()
}

// WithPattern adds a pattern ID to the logger context.
func WithPattern(logger zerolog.Logger, patternID string) zerolog.Logger {
	return logger.With().Str("pattern_id", patternID).Logger()
}

// WithRunID adds a batch run ID to the logger context.
func WithRunID(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogSignal logs a detected signal.
func LogSignal(logger zerolog.Logger, stockID, name, direction string, strength float64) {
	logger.Debug().
		Str("event", "signal").
		Str("stock_id", stockID).
		Str("signal", name).
		Str("direction", direction).
		Float64("strength", strength).
		Msg("Signal detected")
}

// LogPatternRun logs the outcome of a pattern run.
func LogPatternRun(logger zerolog.Logger, patternID string, matches int, cached bool, duration time.Duration) {
	logger.Info().
		Str("event", "pattern_run").
		Str("pattern_id", patternID).
		Int("matches", matches).
		Bool("cached", cached).
		Dur("duration", duration).
		Msg("Pattern run completed")
}

// LogBatch logs the summary of a batch detection run.
func LogBatch(logger zerolog.Logger, runID string, total, successful, failed, skipped, signals int, duration time.Duration) {
	logger.Info().
		Str("event", "batch").
		Str("run_id", runID).
		Int("total", total).
		Int("successful", successful).
		Int("failed", failed).
		Int("skipped", skipped).
		Int("signals", signals).
		Dur("duration", duration).
		Msg("Signal detection completed")
}
