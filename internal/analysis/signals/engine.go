package signals

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"equity-screener/internal/analysis/series"
	"equity-screener/internal/config"
	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/logging"
	"equity-screener/internal/models"
)

// SeriesLoader assembles the series for one stock.
type SeriesLoader interface {
	Load(ctx context.Context, stockID string) (*series.Series, error)
}

// Repository persists and queries detected signals.
type Repository interface {
	GetActiveStocks(ctx context.Context) ([]models.Stock, error)
	InsertSignals(ctx context.Context, stockID string, signals []models.Signal) (int, error)
	QuerySignals(ctx context.Context, filter models.SignalFilter) ([]models.SignalRecord, error)
	DeactivateOlderThan(ctx context.Context, days int, asOf time.Time) (int64, error)
	HasActiveSignals(ctx context.Context, stockID string) (bool, error)
	TopOpportunities(ctx context.Context, limit int) ([]models.SignalRecord, error)
}

// EngineConfig controls batch detection.
type EngineConfig struct {
	Detector     Config
	ExpiryDays   int
	Workers      int
	SkipExisting bool
}

// EngineConfigFrom maps the signals section of the application config.
func EngineConfigFrom(c config.SignalsConfig) EngineConfig {
	return EngineConfig{
		Detector:     ConfigFrom(c),
		ExpiryDays:   c.ExpiryDays,
		Workers:      c.Workers,
		SkipExisting: c.SkipExisting,
	}
}

// DetectOptions tunes a single DetectAll run.
type DetectOptions struct {
	Limit        int
	SkipExisting bool
}

// BatchStats summarises a DetectAll run.
type BatchStats struct {
	RunID        string        `json:"run_id"`
	TotalStocks  int           `json:"total_stocks"`
	Successful   int           `json:"successful"`
	Failed       int           `json:"failed"`
	Skipped      int           `json:"skipped"`
	TotalSignals int           `json:"total_signals"`
	Deactivated  int64         `json:"deactivated"`
	Duration     time.Duration `json:"duration"`
}

// Engine runs every category detector over stock series and stores the results.
type Engine struct {
	detectors []Detector
	loader    SeriesLoader
	repo      Repository
	cfg       EngineConfig
	logger    zerolog.Logger
	now       func() time.Time
}

// NewEngine creates a detection engine with the default detectors.
func NewEngine(loader SeriesLoader, repo Repository, cfg EngineConfig, logger zerolog.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ExpiryDays <= 0 {
		cfg.ExpiryDays = 5
	}
	return &Engine{
		detectors: DefaultDetectors(cfg.Detector),
		loader:    loader,
		repo:      repo,
		cfg:       cfg,
		logger:    logger.With().Str("component", "signals").Logger(),
		now:       time.Now,
	}
}

// Detect runs all detectors on the latest observation of s. It never fails:
// a series shorter than two rows yields no signals, and detectors whose
// required columns are absent are skipped.
func (e *Engine) Detect(s *series.Series) []models.Signal {
	return Detect(e.detectors, s)
}

// Detect runs the given detectors on the latest observation of s.
func Detect(detectors []Detector, s *series.Series) []models.Signal {
	if s.Len() < 2 {
		return nil
	}
	i := s.Last()
	caps := s.Capabilities()

	var out []models.Signal
	for _, d := range detectors {
		if !d.Requirements().Satisfied(caps) {
			continue
		}
		out = append(out, d.Detect(s, i)...)
	}
	return out
}

// DetectForStock loads a stock's series and detects its signals, storing
// them when store is true.
func (e *Engine) DetectForStock(ctx context.Context, stockID string, store bool) ([]models.Signal, error) {
	logger := logging.WithStock(e.logger, stockID)

	s, err := e.loader.Load(ctx, stockID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoData) {
			logger.Warn().Msg("No data available")
			return nil, nil
		}
		return nil, apperrors.NewDetectionError(stockID, err)
	}

	detected := e.Detect(s)
	for i := range detected {
		detected[i].Metadata = sanitizeMetadata(detected[i])
		logging.LogSignal(logger, stockID, detected[i].Name, string(detected[i].Direction), detected[i].Strength)
	}

	if store && len(detected) > 0 {
		n, err := e.repo.InsertSignals(ctx, stockID, detected)
		if err != nil {
			return detected, apperrors.NewDetectionError(stockID, fmt.Errorf("storing signals: %w", err))
		}
		logger.Debug().Int("stored", n).Msg("Stored signals")
	}

	return detected, nil
}

type stockResult struct {
	stockID string
	signals int
	skipped bool
	err     error
}

// DetectAll deactivates expired signals and then detects signals for every
// active stock on a bounded worker pool. Per-stock failures are logged and
// counted; the batch always runs to completion unless ctx is cancelled.
func (e *Engine) DetectAll(ctx context.Context, opts DetectOptions) (BatchStats, error) {
	start := e.now()
	stats := BatchStats{RunID: uuid.NewString()}
	logger := logging.WithRunID(e.logger, stats.RunID)

	deactivated, err := e.repo.DeactivateOlderThan(ctx, e.cfg.ExpiryDays, start)
	if err != nil {
		return stats, fmt.Errorf("deactivating expired signals: %w", err)
	}
	stats.Deactivated = deactivated
	logger.Info().Int64("deactivated", deactivated).Msg("Deactivated expired signals")

	stocks, err := e.repo.GetActiveStocks(ctx)
	if err != nil {
		return stats, fmt.Errorf("listing active stocks: %w", err)
	}
	if opts.Limit > 0 && opts.Limit < len(stocks) {
		stocks = stocks[:opts.Limit]
	}
	stats.TotalStocks = len(stocks)

	workChan := make(chan string, len(stocks))
	resultChan := make(chan stockResult, len(stocks))
	var wg sync.WaitGroup

	for w := 0; w < e.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stockID := range workChan {
				select {
				case <-ctx.Done():
					resultChan <- stockResult{stockID: stockID, err: ctx.Err()}
				default:
					resultChan <- e.processStock(ctx, stockID, opts.SkipExisting)
				}
			}
		}()
	}

	for _, st := range stocks {
		workChan <- st.StockID
	}
	close(workChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for res := range resultChan {
		switch {
		case res.err != nil:
			stats.Failed++
			log := logging.WithStock(logger, res.stockID)
			log.Error().Err(res.err).Msg("Signal detection failed")
		case res.skipped:
			stats.Skipped++
		default:
			stats.Successful++
			stats.TotalSignals += res.signals
		}
	}

	stats.Duration = time.Since(start)
	logging.LogBatch(logger, stats.RunID, stats.TotalStocks, stats.Successful, stats.Failed, stats.Skipped, stats.TotalSignals, stats.Duration)

	return stats, ctx.Err()
}

// processStock detects one stock, converting a panic into a failure.
func (e *Engine) processStock(ctx context.Context, stockID string, skipExisting bool) (res stockResult) {
	res.stockID = stockID
	defer func() {
		if r := recover(); r != nil {
			res.err = apperrors.NewDetectionError(stockID, fmt.Errorf("panic: %v", r))
		}
	}()

	if skipExisting {
		exists, err := e.repo.HasActiveSignals(ctx, stockID)
		if err != nil {
			res.err = err
			return res
		}
		if exists {
			res.skipped = true
			return res
		}
	}

	detected, err := e.DetectForStock(ctx, stockID, true)
	res.signals = len(detected)
	res.err = err
	return res
}

// Query returns stored signals matching filter.
func (e *Engine) Query(ctx context.Context, filter models.SignalFilter) ([]models.SignalRecord, error) {
	return e.repo.QuerySignals(ctx, filter)
}

// SignalsByType returns active signals of a category at or above minStrength.
func (e *Engine) SignalsByType(ctx context.Context, category models.SignalCategory, minStrength float64, limit int) ([]models.SignalRecord, error) {
	return e.repo.QuerySignals(ctx, models.SignalFilter{
		Category:    category,
		MinStrength: minStrength,
		ActiveOnly:  true,
		Limit:       limit,
	})
}

// SignalsForStock returns the stored signals of one stock.
func (e *Engine) SignalsForStock(ctx context.Context, stockID string, activeOnly bool) ([]models.SignalRecord, error) {
	return e.repo.QuerySignals(ctx, models.SignalFilter{StockID: stockID, ActiveOnly: activeOnly})
}

// TopOpportunities returns the strongest active signals across all stocks.
func (e *Engine) TopOpportunities(ctx context.Context, limit int) ([]models.SignalRecord, error) {
	return e.repo.TopOpportunities(ctx, limit)
}

// ExpireSignals deactivates signals older than the configured expiry window.
func (e *Engine) ExpireSignals(ctx context.Context) (int64, error) {
	return e.repo.DeactivateOlderThan(ctx, e.cfg.ExpiryDays, e.now())
}

// sanitizeMetadata returns the persisted metadata: direction and price
// first, then the detector's values with non-finite floats dropped.
func sanitizeMetadata(sig models.Signal) map[string]interface{} {
	out := map[string]interface{}{"direction": string(sig.Direction)}
	if sig.Price != nil && isFinite(*sig.Price) {
		out["price"] = *sig.Price
	}
	for k, v := range sig.Metadata {
		if f, ok := v.(float64); ok && !isFinite(f) {
			continue
		}
		out[k] = v
	}
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// DefaultOptions returns the run options implied by configuration.
func (e *Engine) DefaultOptions() DetectOptions {
	return DetectOptions{SkipExisting: e.cfg.SkipExisting}
}
