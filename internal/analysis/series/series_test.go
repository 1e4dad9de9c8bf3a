package series

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-screener/internal/analysis/indicators"
	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/models"
)

func day(i int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func TestFromCandles_SortsAscending(t *testing.T) {
	s := FromCandles("BBCA", []models.Candle{
		{Timestamp: day(2), Close: 3},
		{Timestamp: day(0), Close: 1},
		{Timestamp: day(1), Close: 2},
	})

	require.Equal(t, 3, s.Len())
	for i := 0; i < 3; i++ {
		v, ok := s.Value(ColClose, i)
		require.True(t, ok)
		assert.Equal(t, float64(i+1), v)
	}
}

func TestValue_MissingAndNaN(t *testing.T) {
	s := New("X", []time.Time{day(0), day(1)})
	s.SetColumn("rsi", []float64{math.NaN(), 40})

	_, ok := s.Value("rsi", 0)
	assert.False(t, ok, "NaN reads as missing")
	_, ok = s.Value("rsi", 5)
	assert.False(t, ok, "out of range reads as missing")
	_, ok = s.Value("macd_line", 1)
	assert.False(t, ok, "absent column reads as missing")

	v, ok := s.Value("rsi", 1)
	assert.True(t, ok)
	assert.Equal(t, 40.0, v)
}

func TestMergeIndicators_PivotsLongFormat(t *testing.T) {
	s := New("X", []time.Time{day(0), day(1), day(2)})
	s.MergeIndicators([]models.IndicatorValue{
		{Date: day(0), Name: "rsi", Value: 30},
		{Date: day(2), Name: "rsi", Value: 35},
		{Date: day(9), Name: "rsi", Value: 99},
		{Date: day(1), Name: "adx", Value: 20},
	})

	assert.True(t, s.Capabilities().Has("rsi"))
	assert.True(t, s.Capabilities().Has("adx"))
	_, ok := s.Value("rsi", 1)
	assert.False(t, ok)
	v, _ := s.Value("rsi", 2)
	assert.Equal(t, 35.0, v)
}

func TestRequirements(t *testing.T) {
	caps := NewCapabilities("sma_50", "close")
	req := Requirements{Required: []string{"sma_50", "sma_200"}, Optional: []string{"adx"}}

	assert.False(t, req.Satisfied(caps))
	assert.Equal(t, []string{"sma_200"}, req.Missing(caps))

	caps.add("sma_200")
	assert.True(t, req.Satisfied(caps))
	assert.ElementsMatch(t, []string{"sma_50", "sma_200", "adx"}, req.All())
}

type fakeSource struct {
	candles []models.Candle
	values  []models.IndicatorValue
	err     error
}

func (f *fakeSource) GetPriceHistory(context.Context, string, time.Time) ([]models.Candle, error) {
	return f.candles, f.err
}

func (f *fakeSource) GetIndicators(context.Context, string, time.Time) ([]models.IndicatorValue, error) {
	return f.values, nil
}

func TestProvider_Load(t *testing.T) {
	candles := make([]models.Candle, 30)
	for i := range candles {
		p := 100 + float64(i)
		candles[i] = models.Candle{Timestamp: day(i), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1000}
	}
	src := &fakeSource{
		candles: candles,
		values:  []models.IndicatorValue{{Date: day(29), Name: "rsi", Value: 12}},
	}

	t.Run("stored values win over computed", func(t *testing.T) {
		p := NewProvider(src, indicators.NewDefaultEngine(2), ProviderConfig{ComputeMissing: true}, zerolog.Nop())
		s, err := p.Load(context.Background(), "X")
		require.NoError(t, err)

		v, ok := s.Value("rsi", 29)
		require.True(t, ok)
		assert.Equal(t, 12.0, v)
		assert.True(t, s.Has(indicators.ColSMA20))
		assert.True(t, s.Has(indicators.ColVolumeSMA))
	})

	t.Run("no computation when disabled", func(t *testing.T) {
		p := NewProvider(src, indicators.NewDefaultEngine(2), ProviderConfig{}, zerolog.Nop())
		s, err := p.Load(context.Background(), "X")
		require.NoError(t, err)
		assert.False(t, s.Has(indicators.ColSMA20))
	})

	t.Run("empty history is ErrNoData", func(t *testing.T) {
		p := NewProvider(&fakeSource{}, nil, ProviderConfig{}, zerolog.Nop())
		_, err := p.Load(context.Background(), "X")
		assert.True(t, errors.Is(err, apperrors.ErrNoData))
	})
}
