package signals

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-screener/internal/analysis/indicators"
	"equity-screener/internal/analysis/series"
	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/models"
)

type fakeLoader struct {
	series map[string]*series.Series
	errs   map[string]error
	panics map[string]bool
}

func (f *fakeLoader) Load(_ context.Context, stockID string) (*series.Series, error) {
	if f.panics[stockID] {
		panic("corrupt series")
	}
	if err := f.errs[stockID]; err != nil {
		return nil, err
	}
	return f.series[stockID], nil
}

type fakeRepo struct {
	mu       sync.Mutex
	stocks   []models.Stock
	inserted map[string][]models.Signal
	active   map[string]bool
	expired  int64
	asOf     time.Time
	filters  []models.SignalFilter
}

func (r *fakeRepo) GetActiveStocks(context.Context) ([]models.Stock, error) {
	return r.stocks, nil
}

func (r *fakeRepo) InsertSignals(_ context.Context, stockID string, signals []models.Signal) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserted[stockID] = append(r.inserted[stockID], signals...)
	return len(signals), nil
}

func (r *fakeRepo) QuerySignals(_ context.Context, filter models.SignalFilter) ([]models.SignalRecord, error) {
	r.filters = append(r.filters, filter)
	return nil, nil
}

func (r *fakeRepo) DeactivateOlderThan(_ context.Context, _ int, asOf time.Time) (int64, error) {
	r.asOf = asOf
	return r.expired, nil
}

func (r *fakeRepo) HasActiveSignals(_ context.Context, stockID string) (bool, error) {
	return r.active[stockID], nil
}

func (r *fakeRepo) TopOpportunities(context.Context, int) ([]models.SignalRecord, error) {
	return nil, nil
}

func goldenCrossSeries() *series.Series {
	return build(3, map[string][]float64{
		indicators.ColSMA50:  {1, 1, 3},
		indicators.ColSMA200: {2, 2, 2},
	})
}

func TestDetectAll_CountsFailuresAndContinues(t *testing.T) {
	loader := &fakeLoader{
		series: map[string]*series.Series{"AAAA": goldenCrossSeries(), "DDDD": goldenCrossSeries()},
		errs:   map[string]error{"BBBB": errors.New("disk on fire")},
		panics: map[string]bool{"CCCC": true},
	}
	repo := &fakeRepo{
		stocks: []models.Stock{
			{StockID: "AAAA"}, {StockID: "BBBB"}, {StockID: "CCCC"}, {StockID: "DDDD"}, {StockID: "EEEE"},
		},
		inserted: map[string][]models.Signal{},
		active:   map[string]bool{"DDDD": true},
		expired:  3,
	}
	loader.errs["EEEE"] = apperrors.NewDataError("price", "EEEE", "no price history", apperrors.ErrNoData)

	var logs bytes.Buffer
	engine := NewEngine(loader, repo, EngineConfig{Detector: DefaultConfig(), Workers: 3}, zerolog.New(zerolog.SyncWriter(&logs)))
	stats, err := engine.DetectAll(context.Background(), DetectOptions{SkipExisting: true})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"stock_id":"BBBB"`)
	assert.Contains(t, logs.String(), "Signal detection failed")

	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 5, stats.TotalStocks)
	assert.Equal(t, 2, stats.Successful, "AAAA detects, EEEE has no data")
	assert.Equal(t, 2, stats.Failed, "BBBB errors, CCCC panics")
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.TotalSignals)
	assert.Equal(t, int64(3), stats.Deactivated)
	assert.False(t, repo.asOf.IsZero())

	require.Len(t, repo.inserted["AAAA"], 1)
	stored := repo.inserted["AAAA"][0]
	assert.Equal(t, "Golden Cross", stored.Name)
	assert.Equal(t, "bullish", stored.Metadata["direction"])
	assert.Equal(t, 100.0, stored.Metadata["price"])
}

func TestDetectAll_Limit(t *testing.T) {
	loader := &fakeLoader{series: map[string]*series.Series{
		"AAAA": goldenCrossSeries(), "BBBB": goldenCrossSeries(),
	}}
	repo := &fakeRepo{
		stocks:   []models.Stock{{StockID: "AAAA"}, {StockID: "BBBB"}},
		inserted: map[string][]models.Signal{},
	}

	engine := NewEngine(loader, repo, EngineConfig{Detector: DefaultConfig()}, zerolog.Nop())
	stats, err := engine.DetectAll(context.Background(), DetectOptions{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalStocks)
	assert.Len(t, repo.inserted, 1)
}

func TestDetectForStock_NoStore(t *testing.T) {
	loader := &fakeLoader{series: map[string]*series.Series{"AAAA": goldenCrossSeries()}}
	repo := &fakeRepo{inserted: map[string][]models.Signal{}}

	engine := NewEngine(loader, repo, EngineConfig{Detector: DefaultConfig()}, zerolog.Nop())
	got, err := engine.DetectForStock(context.Background(), "AAAA", false)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Empty(t, repo.inserted)
}

func TestQueryHelpers_BuildFilters(t *testing.T) {
	repo := &fakeRepo{}
	engine := NewEngine(&fakeLoader{}, repo, EngineConfig{Detector: DefaultConfig()}, zerolog.Nop())
	ctx := context.Background()

	_, err := engine.SignalsByType(ctx, models.CategoryVolume, 60, 10)
	require.NoError(t, err)
	_, err = engine.SignalsForStock(ctx, "BBCA", false)
	require.NoError(t, err)

	require.Len(t, repo.filters, 2)
	assert.Equal(t, models.SignalFilter{Category: models.CategoryVolume, MinStrength: 60, ActiveOnly: true, Limit: 10}, repo.filters[0])
	assert.Equal(t, models.SignalFilter{StockID: "BBCA"}, repo.filters[1])
}
