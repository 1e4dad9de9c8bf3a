// Package scoring runs screening patterns: fundamental and technical
// screening, merge, composite scoring and ranking, with an optional
// results cache.
package scoring

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"equity-screener/internal/config"
	"equity-screener/internal/logging"
	"equity-screener/internal/models"
)

// PatternSource resolves pattern definitions.
type PatternSource interface {
	GetPattern(ctx context.Context, patternID string) (*models.Pattern, error)
}

// SignalSource reads stored signals.
type SignalSource interface {
	QuerySignals(ctx context.Context, filter models.SignalFilter) ([]models.SignalRecord, error)
}

// FundamentalEvaluator returns the stocks whose latest snapshot satisfies
// every bound.
type FundamentalEvaluator interface {
	EvaluateFundamentals(ctx context.Context, criteria models.FundamentalCriteria) ([]models.FundamentalMatch, error)
}

// ResultCache stores ranked results per pattern.
type ResultCache interface {
	GetCached(ctx context.Context, patternID string, maxAge time.Duration) ([]models.MatchResult, bool, error)
	PutCached(ctx context.Context, patternID string, results []models.MatchResult) error
}

// EngineConfig holds the matching engine settings.
type EngineConfig struct {
	CacheMaxAge         time.Duration
	DefaultLimit        int
	TechnicalWindowDays int
}

// DefaultEngineConfig returns the default matching engine settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CacheMaxAge:         24 * time.Hour,
		DefaultLimit:        100,
		TechnicalWindowDays: 7,
	}
}

// EngineConfigFrom maps the patterns section of the application config.
func EngineConfigFrom(cfg config.PatternsConfig) EngineConfig {
	out := DefaultEngineConfig()
	if cfg.CacheMaxAge > 0 {
		out.CacheMaxAge = cfg.CacheMaxAge
	}
	if cfg.DefaultLimit > 0 {
		out.DefaultLimit = cfg.DefaultLimit
	}
	if cfg.TechnicalWindowDays > 0 {
		out.TechnicalWindowDays = cfg.TechnicalWindowDays
	}
	return out
}

// RunOptions controls a single pattern run. Zero CacheMaxAge and Limit
// fall back to the engine defaults.
type RunOptions struct {
	PatternID   string
	UseCache    bool
	CacheMaxAge time.Duration
	Limit       int
}

// Engine is the pattern matching engine.
type Engine struct {
	patterns     PatternSource
	signals      SignalSource
	fundamentals FundamentalEvaluator
	cache        ResultCache
	cfg          EngineConfig
	logger       zerolog.Logger
	now          func() time.Time
}

// NewEngine creates a matching engine. cache may be nil.
func NewEngine(cfg EngineConfig, patterns PatternSource, signals SignalSource,
	fundamentals FundamentalEvaluator, cache ResultCache, logger zerolog.Logger) *Engine {
	return &Engine{
		patterns:     patterns,
		signals:      signals,
		fundamentals: fundamentals,
		cache:        cache,
		cfg:          cfg,
		logger:       logger.With().Str("component", "scoring").Logger(),
		now:          time.Now,
	}
}

// RunPattern returns the ranked matches of a pattern, truncated to the limit.
// A fresh cache entry short-circuits evaluation, including the pattern lookup.
func (e *Engine) RunPattern(ctx context.Context, opts RunOptions) ([]models.MatchResult, error) {
	start := time.Now()
	log := logging.WithPattern(e.logger, opts.PatternID)

	maxAge := opts.CacheMaxAge
	if maxAge <= 0 {
		maxAge = e.cfg.CacheMaxAge
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}

	if opts.UseCache {
		cached, ok, err := e.GetCached(ctx, opts.PatternID, maxAge)
		if err != nil {
			log.Warn().Err(err).Msg("Cache read failed, recomputing")
		} else if ok {
			cached = truncate(cached, limit)
			logging.LogPatternRun(log, opts.PatternID, len(cached), true, time.Since(start))
			return cached, nil
		}
	}

	pattern, err := e.patterns.GetPattern(ctx, opts.PatternID)
	if err != nil {
		return nil, err
	}

	results, err := e.Execute(ctx, *pattern)
	if err != nil {
		return nil, err
	}

	if err := e.PutCached(ctx, opts.PatternID, results); err != nil {
		log.Error().Err(err).Int("results", len(results)).Msg("Failed to cache pattern results")
	}

	results = truncate(results, limit)
	logging.LogPatternRun(log, opts.PatternID, len(results), false, time.Since(start))
	return results, nil
}

// Execute screens, merges, scores and sorts without touching the cache.
func (e *Engine) Execute(ctx context.Context, pattern models.Pattern) ([]models.MatchResult, error) {
	var fundamentals []models.FundamentalMatch
	if pattern.HasFundamental() {
		var err error
		fundamentals, err = e.fundamentals.EvaluateFundamentals(ctx, pattern.FundamentalCriteria)
		if err != nil {
			return nil, err
		}
	}

	var technical map[string]technicalMatch
	if pattern.HasTechnical() {
		var err error
		technical, err = e.screenTechnical(ctx, pattern.TechnicalCriteria)
		if err != nil {
			return nil, err
		}
	}

	results := merge(pattern, fundamentals, technical)
	SortResults(results, pattern.SortBy)
	return results, nil
}

// GetCached reads the cached results of a pattern. It reports a miss when
// no cache is configured.
func (e *Engine) GetCached(ctx context.Context, patternID string, maxAge time.Duration) ([]models.MatchResult, bool, error) {
	if e.cache == nil {
		return nil, false, nil
	}
	return e.cache.GetCached(ctx, patternID, maxAge)
}

// PutCached replaces the cached results of a pattern.
func (e *Engine) PutCached(ctx context.Context, patternID string, results []models.MatchResult) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.PutCached(ctx, patternID, results)
}

func truncate(results []models.MatchResult, limit int) []models.MatchResult {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
