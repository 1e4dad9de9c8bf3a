package series

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"equity-screener/internal/analysis/indicators"
	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/models"
)

// Source reads stored price history and indicator values.
type Source interface {
	GetPriceHistory(ctx context.Context, stockID string, since time.Time) ([]models.Candle, error)
	GetIndicators(ctx context.Context, stockID string, since time.Time) ([]models.IndicatorValue, error)
}

// ProviderConfig controls how much history is loaded and whether absent
// indicator columns are computed from the candles.
type ProviderConfig struct {
	HistoryDays    int
	ComputeMissing bool
}

// Provider assembles a Series for one stock.
type Provider struct {
	source Source
	engine *indicators.Engine
	cfg    ProviderConfig
	logger zerolog.Logger
	now    func() time.Time
}

// NewProvider creates a series provider. A nil engine disables computing
// missing indicators.
func NewProvider(source Source, engine *indicators.Engine, cfg ProviderConfig, logger zerolog.Logger) *Provider {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 400
	}
	return &Provider{
		source: source,
		engine: engine,
		cfg:    cfg,
		logger: logger.With().Str("component", "series").Logger(),
		now:    time.Now,
	}
}

// Load reads the stock's recent prices and indicators into a Series.
func (p *Provider) Load(ctx context.Context, stockID string) (*Series, error) {
	since := p.now().AddDate(0, 0, -p.cfg.HistoryDays)

	candles, err := p.source.GetPriceHistory(ctx, stockID, since)
	if err != nil {
		return nil, apperrors.NewDataError("price", stockID, "loading price history", err)
	}
	if len(candles) == 0 {
		return nil, apperrors.NewDataError("price", stockID, "no price history", apperrors.ErrNoData)
	}

	candles = SortCandles(candles)
	s := FromCandles(stockID, candles)

	values, err := p.source.GetIndicators(ctx, stockID, since)
	if err != nil {
		return nil, apperrors.NewDataError("indicator", stockID, "loading indicators", err)
	}
	s.MergeIndicators(values)

	if p.cfg.ComputeMissing && p.engine != nil {
		p.fillMissing(ctx, s, candles)
	}

	return s, nil
}

func (p *Provider) fillMissing(ctx context.Context, s *Series, candles []models.Candle) {
	var missing []string
	for _, col := range p.engine.Columns() {
		if !s.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return
	}

	computed, err := p.engine.CalculateColumns(ctx, candles, missing)
	if err != nil {
		p.logger.Warn().Err(err).Str("stock_id", s.StockID).Msg("Some indicators could not be computed")
	}
	for _, col := range missing {
		if values, ok := computed[col]; ok {
			s.SetColumn(col, values)
		}
	}
	p.logger.Debug().Str("stock_id", s.StockID).Int("computed", len(computed)).Msg("Filled missing indicator columns")
}
