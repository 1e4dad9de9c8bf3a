// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"equity-screener/internal/models"
)

// MarketDataStore holds the stock universe, prices, indicators and fundamentals.
type MarketDataStore interface {
	UpsertStocks(ctx context.Context, stocks []models.Stock) error
	GetActiveStocks(ctx context.Context) ([]models.Stock, error)
	GetStock(ctx context.Context, stockID string) (*models.Stock, error)

	SavePrices(ctx context.Context, stockID string, candles []models.Candle) error
	GetPriceHistory(ctx context.Context, stockID string, since time.Time) ([]models.Candle, error)

	SaveIndicators(ctx context.Context, stockID string, values []models.IndicatorValue) error
	GetIndicators(ctx context.Context, stockID string, since time.Time) ([]models.IndicatorValue, error)

	SaveFundamentals(ctx context.Context, snap models.FundamentalSnapshot) error
	EvaluateFundamentals(ctx context.Context, criteria models.FundamentalCriteria) ([]models.FundamentalMatch, error)
}

// SignalStore persists detected signals.
type SignalStore interface {
	InsertSignals(ctx context.Context, stockID string, signals []models.Signal) (int, error)
	QuerySignals(ctx context.Context, filter models.SignalFilter) ([]models.SignalRecord, error)
	DeactivateOlderThan(ctx context.Context, days int, asOf time.Time) (int64, error)
	HasActiveSignals(ctx context.Context, stockID string) (bool, error)
	TopOpportunities(ctx context.Context, limit int) ([]models.SignalRecord, error)
}

// PatternStore persists screening patterns.
type PatternStore interface {
	CreatePattern(ctx context.Context, p models.Pattern) error
	GetPattern(ctx context.Context, patternID string) (*models.Pattern, error)
	UpdatePattern(ctx context.Context, patternID string, update models.PatternUpdate) (*models.Pattern, error)
	DeletePattern(ctx context.Context, patternID string) error
	ListPatterns(ctx context.Context, includeCustom bool) ([]models.Pattern, error)
	ListPatternsByCategory(ctx context.Context, category string) ([]models.Pattern, error)
	PatternCounts(ctx context.Context) (models.PatternCounts, error)
	UpsertPreset(ctx context.Context, p models.Pattern) error
}

// ResultCache stores ranked pattern results.
type ResultCache interface {
	GetCached(ctx context.Context, patternID string, maxAge time.Duration) ([]models.MatchResult, bool, error)
	PutCached(ctx context.Context, patternID string, results []models.MatchResult) error
	ClearCache(ctx context.Context, patternID string) (int64, error)
}

// Store is the full persistence surface.
type Store interface {
	MarketDataStore
	SignalStore
	PatternStore
	ResultCache
	Close() error
}
