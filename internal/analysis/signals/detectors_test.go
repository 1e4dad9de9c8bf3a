package signals

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-screener/internal/analysis/indicators"
	"equity-screener/internal/analysis/series"
	"equity-screener/internal/models"
)

var nan = math.NaN()

// build creates an n-row series with the given columns.
func build(n int, cols map[string][]float64) *series.Series {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	s := series.New("TEST", dates)
	if _, ok := cols[series.ColClose]; !ok {
		closes := make([]float64, n)
		for i := range closes {
			closes[i] = 100
		}
		s.SetColumn(series.ColClose, closes)
	}
	if _, ok := cols[series.ColVolume]; !ok {
		vols := make([]float64, n)
		for i := range vols {
			vols[i] = 1000
		}
		s.SetColumn(series.ColVolume, vols)
	}
	for name, values := range cols {
		s.SetColumn(name, values)
	}
	return s
}

func find(signals []models.Signal, name string) (models.Signal, bool) {
	for _, sig := range signals {
		if sig.Name == name {
			return sig, true
		}
	}
	return models.Signal{}, false
}

func TestCrossover(t *testing.T) {
	a := []float64{1, 3, 2}
	b := []float64{2, 2, 2}

	assert.False(t, Crossover(a, b, 0), "index 0 has no predecessor")
	assert.True(t, Crossover(a, b, 1))
	assert.False(t, Crossunder(a, b, 1))
	assert.False(t, Crossover(a, b, 2), "equal values are not a cross")
	assert.False(t, Crossover(a, b, 3))
}

func TestComposeStrength(t *testing.T) {
	tests := []struct {
		base   float64
		vol    bool
		trend  bool
		extra  int
		expect float64
	}{
		{60, false, false, 0, 60},
		{60, true, true, 0, 95},
		{60, true, true, 1, 100},
		{45, false, false, 5, 75},
		{55, true, false, 1, 85},
	}
	for _, tt := range tests {
		got := ComposeStrength(tt.base, tt.vol, tt.trend, tt.extra)
		if got != tt.expect {
			t.Errorf("ComposeStrength(%v, %v, %v, %d) = %v, want %v", tt.base, tt.vol, tt.trend, tt.extra, got, tt.expect)
		}
	}
}

func TestGoldenCross(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("fires on the latest bar", func(t *testing.T) {
		s := build(3, map[string][]float64{
			indicators.ColSMA50:  {1, 1, 3},
			indicators.ColSMA200: {2, 2, 2},
		})
		sig, ok := find(NewTrendDetector(cfg).Detect(s, s.Last()), "Golden Cross")
		require.True(t, ok)
		assert.Equal(t, models.DirectionBullish, sig.Direction)
		assert.Equal(t, models.CategoryTrend, sig.Category)
		assert.Equal(t, 60.0, sig.Strength)
		assert.Equal(t, false, sig.Metadata["trend_strong"])
		require.NotNil(t, sig.Price)
		assert.Equal(t, 100.0, *sig.Price)
	})

	t.Run("adx and volume confirm", func(t *testing.T) {
		s := build(3, map[string][]float64{
			indicators.ColSMA50:     {1, 1, 3},
			indicators.ColSMA200:    {2, 2, 2},
			indicators.ColADX:       {30, 30, 30},
			series.ColVolume:        {100, 100, 200},
			indicators.ColVolumeSMA: {100, 100, 100},
		})
		sig, ok := find(NewTrendDetector(cfg).Detect(s, s.Last()), "Golden Cross")
		require.True(t, ok)
		assert.Equal(t, 95.0, sig.Strength)
		assert.Equal(t, true, sig.Metadata["volume_confirmed"])
	})

	t.Run("not re-emitted for an earlier cross", func(t *testing.T) {
		s := build(4, map[string][]float64{
			indicators.ColSMA50:  {1, 3, 4, 5},
			indicators.ColSMA200: {2, 2, 2, 2},
		})
		_, ok := find(NewTrendDetector(cfg).Detect(s, s.Last()), "Golden Cross")
		assert.False(t, ok)
	})

	t.Run("death cross", func(t *testing.T) {
		s := build(2, map[string][]float64{
			indicators.ColSMA50:  {3, 1},
			indicators.ColSMA200: {2, 2},
		})
		sig, ok := find(NewTrendDetector(cfg).Detect(s, s.Last()), "Death Cross")
		require.True(t, ok)
		assert.Equal(t, models.DirectionBearish, sig.Direction)
	})
}

func TestMACDCrossover_SameSideBonus(t *testing.T) {
	s := build(2, map[string][]float64{
		indicators.ColMACDLine:   {0.5, 1.5},
		indicators.ColMACDSignal: {1, 1},
	})
	sig, ok := find(NewTrendDetector(DefaultConfig()).Detect(s, 1), "MACD Bullish Crossover")
	require.True(t, ok)
	assert.Equal(t, 65.0, sig.Strength)
	assert.Equal(t, true, sig.Metadata["above_zero"])
}

func TestHistogramReversal(t *testing.T) {
	s := build(3, map[string][]float64{indicators.ColMACDHistogram: {-1, -2, -1.5}})
	sig, ok := find(NewTrendDetector(DefaultConfig()).Detect(s, 2), "MACD Histogram Bullish Reversal")
	require.True(t, ok)
	assert.Equal(t, 45.0, sig.Strength)
}

func TestMAAcceleration(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("uptrend accelerates", func(t *testing.T) {
		s := build(8, map[string][]float64{indicators.ColSMA50: {10, 10.1, 10.2, 10.3, 10.4, 10.5, 11, 12}})
		sig, ok := find(NewTrendDetector(cfg).Detect(s, s.Last()), "MA Uptrend Acceleration")
		require.True(t, ok)
		assert.Equal(t, 40.0, sig.Strength)
	})

	t.Run("sign flip is not acceleration", func(t *testing.T) {
		s := build(8, map[string][]float64{indicators.ColSMA50: {12, 11, 10, 9, 8, 7, 9, 12}})
		_, up := find(NewTrendDetector(cfg).Detect(s, s.Last()), "MA Uptrend Acceleration")
		_, down := find(NewTrendDetector(cfg).Detect(s, s.Last()), "MA Downtrend Acceleration")
		assert.False(t, up)
		assert.False(t, down)
	})

	t.Run("needs seven rows", func(t *testing.T) {
		s := build(6, map[string][]float64{indicators.ColSMA50: {1, 2, 3, 5, 8, 13}})
		_, ok := find(NewTrendDetector(cfg).Detect(s, s.Last()), "MA Uptrend Acceleration")
		assert.False(t, ok)
	})
}

func TestRSIOversold(t *testing.T) {
	cfg := DefaultConfig()

	bouncing := build(2, map[string][]float64{indicators.ColRSI: {20, 25}})
	sig, ok := find(NewMomentumDetector(cfg).Detect(bouncing, 1), "RSI Oversold")
	require.True(t, ok)
	assert.Equal(t, 65.0, sig.Strength)
	assert.Equal(t, true, sig.Metadata["bouncing"])

	falling := build(2, map[string][]float64{indicators.ColRSI: {25, 20}})
	sig, ok = find(NewMomentumDetector(cfg).Detect(falling, 1), "RSI Oversold")
	require.True(t, ok)
	assert.Equal(t, 45.0, sig.Strength)
}

func TestMomentumExtremes(t *testing.T) {
	s := build(2, map[string][]float64{
		indicators.ColCCI:       {0, 150},
		indicators.ColWilliamsR: {-50, -90},
		indicators.ColStochK:    {10, 18},
		indicators.ColStochD:    {15, 15},
	})
	got := NewMomentumDetector(DefaultConfig()).Detect(s, 1)

	cci, ok := find(got, "CCI Overbought")
	require.True(t, ok)
	assert.Equal(t, models.DirectionBearish, cci.Direction)

	wr, ok := find(got, "Williams %R Oversold")
	require.True(t, ok)
	assert.Equal(t, models.DirectionBullish, wr.Direction)

	stoch, ok := find(got, "Stochastic Bullish Crossover")
	require.True(t, ok)
	assert.Equal(t, 60.0, stoch.Strength)
}

func TestDivergence(t *testing.T) {
	n := 21
	closes := make([]float64, n)
	rsi := make([]float64, n)
	for i := range closes {
		closes[i] = 100
		rsi[i] = 50
	}
	// earlier low at 5, lower low at 15 with a higher RSI reading
	closes[5], rsi[5] = 90, 25
	closes[15], rsi[15] = 85, 35

	s := build(n, map[string][]float64{series.ColClose: closes, indicators.ColRSI: rsi})
	dir, ok := findDivergence(s, indicators.ColRSI, s.Last())
	require.True(t, ok)
	assert.Equal(t, models.DirectionBullish, dir)

	sig, ok := find(NewMomentumDetector(DefaultConfig()).Detect(s, s.Last()), "Bullish Divergence")
	require.True(t, ok)
	assert.Equal(t, 65.0, sig.Strength)
	assert.Equal(t, "bullish", sig.Metadata["divergence_type"])

	t.Run("no prior extreme", func(t *testing.T) {
		flat := make([]float64, n)
		for i := range flat {
			flat[i] = float64(100 + i)
		}
		s := build(n, map[string][]float64{series.ColClose: flat, indicators.ColRSI: rsi})
		_, ok := findDivergence(s, indicators.ColRSI, s.Last())
		assert.False(t, ok)
	})
}

func TestVolatility(t *testing.T) {
	n := 22
	width := make([]float64, n)
	pb := make([]float64, n)
	upper := make([]float64, n)
	lower := make([]float64, n)
	for i := 0; i < n; i++ {
		width[i], pb[i], upper[i], lower[i] = 0.2, 0.5, 110, 90
	}
	width[n-1] = 0.05
	pb[n-1] = 0.95

	s := build(n, map[string][]float64{
		indicators.ColBBWidth:  width,
		indicators.ColPercentB: pb,
		indicators.ColBBUpper:  upper,
		indicators.ColBBLower:  lower,
	})
	got := NewVolatilityDetector(DefaultConfig()).Detect(s, s.Last())

	sq, ok := find(got, "Bollinger Band Squeeze")
	require.True(t, ok)
	assert.Equal(t, models.DirectionNeutral, sq.Direction)
	assert.InDelta(t, 0.2, sq.Metadata["avg_width"], 1e-9)

	_, ok = find(got, "Walking Upper Band")
	assert.True(t, ok)
}

func TestVolumeBreakout(t *testing.T) {
	s := build(2, map[string][]float64{
		series.ColClose:         {100, 105},
		series.ColVolume:        {1000, 3000},
		indicators.ColVolumeSMA: {1000, 1000},
	})
	sig, ok := find(NewVolumeDetector(DefaultConfig()).Detect(s, 1), "Volume Breakout Bullish")
	require.True(t, ok)
	assert.Equal(t, 70.0, sig.Strength)
	assert.Equal(t, int64(3000), sig.Metadata["volume"])
	assert.InDelta(t, 3.0, sig.Metadata["volume_ratio"], 1e-9)

	t.Run("zero average skips", func(t *testing.T) {
		s := build(2, map[string][]float64{indicators.ColVolumeSMA: {0, 0}})
		assert.Empty(t, NewVolumeDetector(DefaultConfig()).Detect(s, 1))
	})
}

func TestMissingColumnsAndValuesAreSkipped(t *testing.T) {
	s := build(3, map[string][]float64{
		indicators.ColSMA50: {1, 1, 3},
		indicators.ColRSI:   {nan, nan, nan},
	})
	got := Detect(DefaultDetectors(DefaultConfig()), s)
	assert.Empty(t, got)
}

func TestSanitizeMetadata(t *testing.T) {
	price := 123.0
	sig := models.Signal{
		Direction: models.DirectionBearish,
		Price:     &price,
		Metadata:  map[string]interface{}{"ok": 1.5, "bad": math.Inf(1), "nan": nan, "flag": true},
	}
	got := sanitizeMetadata(sig)
	assert.Equal(t, map[string]interface{}{
		"direction": "bearish",
		"price":     123.0,
		"ok":        1.5,
		"flag":      true,
	}, got)
}

// divergenceSeries places two price extremes at bars 5 and 15 of a 21-bar
// window, with the oscillator reading at each.
func divergenceSeries(osc string, price5, osc5, price15, osc15 float64) *series.Series {
	n := 21
	closes := make([]float64, n)
	values := make([]float64, n)
	for i := range closes {
		closes[i] = 100
		values[i] = 50
	}
	closes[5], values[5] = price5, osc5
	closes[15], values[15] = price15, osc15
	return build(n, map[string][]float64{series.ColClose: closes, osc: values})
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestDetectorTriggers(t *testing.T) {
	cfg := DefaultConfig()
	atr := constant(22, 1)
	atr[21] = 2

	tests := []struct {
		name      string
		detector  Detector
		series    *series.Series
		signal    string
		direction models.SignalDirection
		strength  float64
	}{
		{
			name:     "fast cross bullish",
			detector: NewTrendDetector(cfg),
			series: build(3, map[string][]float64{
				indicators.ColSMA20: {1, 1, 3},
				indicators.ColSMA50: {2, 2, 2},
			}),
			signal: "Fast Cross Bullish", direction: models.DirectionBullish, strength: 50,
		},
		{
			name:     "fast cross bullish with trend alignment",
			detector: NewTrendDetector(cfg),
			series: build(3, map[string][]float64{
				indicators.ColSMA20:  {1, 1, 3},
				indicators.ColSMA50:  {2, 2, 2},
				indicators.ColSMA200: {1, 1, 1},
			}),
			signal: "Fast Cross Bullish", direction: models.DirectionBullish, strength: 65,
		},
		{
			name:     "fast cross bearish",
			detector: NewTrendDetector(cfg),
			series: build(3, map[string][]float64{
				indicators.ColSMA20: {3, 3, 1},
				indicators.ColSMA50: {2, 2, 2},
			}),
			signal: "Fast Cross Bearish", direction: models.DirectionBearish, strength: 50,
		},
		{
			name:     "rsi bullish midline cross",
			detector: NewMomentumDetector(cfg),
			series:   build(2, map[string][]float64{indicators.ColRSI: {45, 55}}),
			signal:   "RSI Bullish Midline Cross", direction: models.DirectionBullish, strength: 50,
		},
		{
			name:     "rsi bullish midline cross with trend alignment",
			detector: NewMomentumDetector(cfg),
			series: build(2, map[string][]float64{
				indicators.ColRSI:    {45, 55},
				indicators.ColSMA50:  {2, 2},
				indicators.ColSMA200: {1, 1},
			}),
			signal: "RSI Bullish Midline Cross", direction: models.DirectionBullish, strength: 65,
		},
		{
			name:     "rsi bearish midline cross",
			detector: NewMomentumDetector(cfg),
			series:   build(2, map[string][]float64{indicators.ColRSI: {55, 45}}),
			signal:   "RSI Bearish Midline Cross", direction: models.DirectionBearish, strength: 50,
		},
		{
			name:     "stochastic bearish crossover",
			detector: NewMomentumDetector(cfg),
			series: build(2, map[string][]float64{
				indicators.ColStochK: {90, 85},
				indicators.ColStochD: {85, 88},
			}),
			signal: "Stochastic Bearish Crossover", direction: models.DirectionBearish, strength: 60,
		},
		{
			name:     "rsi bearish divergence",
			detector: NewMomentumDetector(cfg),
			series:   divergenceSeries(indicators.ColRSI, 110, 75, 115, 65),
			signal:   "Bearish Divergence", direction: models.DirectionBearish, strength: 65,
		},
		{
			name:     "obv bullish divergence",
			detector: NewVolumeDetector(cfg),
			series:   divergenceSeries(indicators.ColOBV, 90, 500, 85, 700),
			signal:   "OBV Bullish Divergence", direction: models.DirectionBullish, strength: 60,
		},
		{
			name:     "obv bearish divergence",
			detector: NewVolumeDetector(cfg),
			series:   divergenceSeries(indicators.ColOBV, 110, 900, 115, 800),
			signal:   "OBV Bearish Divergence", direction: models.DirectionBearish, strength: 60,
		},
		{
			name:     "band bullish breakout",
			detector: NewVolatilityDetector(cfg),
			series: build(3, map[string][]float64{
				series.ColClose:        {100, 100, 115},
				indicators.ColBBUpper:  {110, 110, 110},
				indicators.ColBBLower:  {90, 90, 90},
				indicators.ColBBWidth:  {0.2, 0.2, 0.2},
				indicators.ColPercentB: {0.5, 0.5, 0.5},
			}),
			signal: "Bollinger Band Bullish Breakout", direction: models.DirectionBullish, strength: 60,
		},
		{
			name:     "band bearish breakout with volume",
			detector: NewVolatilityDetector(cfg),
			series: build(3, map[string][]float64{
				series.ColClose:         {100, 100, 85},
				series.ColVolume:        {1000, 1000, 2000},
				indicators.ColVolumeSMA: {1000, 1000, 1000},
				indicators.ColBBUpper:   {110, 110, 110},
				indicators.ColBBLower:   {90, 90, 90},
				indicators.ColBBWidth:   {0.2, 0.2, 0.2},
				indicators.ColPercentB:  {0.5, 0.5, 0.5},
			}),
			signal: "Bollinger Band Bearish Breakout", direction: models.DirectionBearish, strength: 80,
		},
		{
			name:     "atr expansion",
			detector: NewVolatilityDetector(cfg),
			series:   build(22, map[string][]float64{indicators.ColATR: atr}),
			signal:   "ATR Expansion", direction: models.DirectionNeutral, strength: 45,
		},
		{
			name:     "strong buying pressure",
			detector: NewVolumeDetector(cfg),
			series:   build(2, map[string][]float64{indicators.ColCMF: {0, 0.3}}),
			signal:   "Strong Buying Pressure", direction: models.DirectionBullish, strength: 55,
		},
		{
			name:     "strong selling pressure",
			detector: NewVolumeDetector(cfg),
			series:   build(2, map[string][]float64{indicators.ColCMF: {0, -0.3}}),
			signal:   "Strong Selling Pressure", direction: models.DirectionBearish, strength: 55,
		},
		{
			name:     "mfi oversold",
			detector: NewVolumeDetector(cfg),
			series:   build(2, map[string][]float64{indicators.ColMFI: {50, 15}}),
			signal:   "MFI Oversold", direction: models.DirectionBullish, strength: 50,
		},
		{
			name:     "mfi overbought",
			detector: NewVolumeDetector(cfg),
			series:   build(2, map[string][]float64{indicators.ColMFI: {50, 85}}),
			signal:   "MFI Overbought", direction: models.DirectionBearish, strength: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, ok := find(tt.detector.Detect(tt.series, tt.series.Last()), tt.signal)
			if !ok {
				t.Fatalf("%s not detected", tt.signal)
			}
			if sig.Direction != tt.direction {
				t.Errorf("direction = %s, want %s", sig.Direction, tt.direction)
			}
			if sig.Category != tt.detector.Category() {
				t.Errorf("category = %s, want %s", sig.Category, tt.detector.Category())
			}
			if sig.Strength != tt.strength {
				t.Errorf("strength = %v, want %v", sig.Strength, tt.strength)
			}
		})
	}
}

func TestDetectorThresholdsHold(t *testing.T) {
	cfg := DefaultConfig()
	atr := constant(22, 1)
	atr[21] = 1.4

	tests := []struct {
		name     string
		detector Detector
		series   *series.Series
		signal   string
	}{
		{
			name:     "stochastic cross outside the overbought zone",
			detector: NewMomentumDetector(cfg),
			series: build(2, map[string][]float64{
				indicators.ColStochK: {70, 65},
				indicators.ColStochD: {65, 68},
			}),
			signal: "Stochastic Bearish Crossover",
		},
		{
			name:     "rsi stays above the midline",
			detector: NewMomentumDetector(cfg),
			series:   build(2, map[string][]float64{indicators.ColRSI: {55, 60}}),
			signal:   "RSI Bullish Midline Cross",
		},
		{
			name:     "close already outside the band",
			detector: NewVolatilityDetector(cfg),
			series: build(3, map[string][]float64{
				series.ColClose:        {100, 115, 120},
				indicators.ColBBUpper:  {110, 110, 110},
				indicators.ColBBLower:  {90, 90, 90},
				indicators.ColBBWidth:  {0.2, 0.2, 0.2},
				indicators.ColPercentB: {0.5, 0.5, 0.5},
			}),
			signal: "Bollinger Band Bullish Breakout",
		},
		{
			name:     "atr below expansion ratio",
			detector: NewVolatilityDetector(cfg),
			series:   build(22, map[string][]float64{indicators.ColATR: atr}),
			signal:   "ATR Expansion",
		},
		{
			name:     "cmf inside the band",
			detector: NewVolumeDetector(cfg),
			series:   build(2, map[string][]float64{indicators.ColCMF: {0, 0.1}}),
			signal:   "Strong Buying Pressure",
		},
		{
			name:     "mfi in the neutral zone",
			detector: NewVolumeDetector(cfg),
			series:   build(2, map[string][]float64{indicators.ColMFI: {50, 50}}),
			signal:   "MFI Oversold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if sig, ok := find(tt.detector.Detect(tt.series, tt.series.Last()), tt.signal); ok {
				t.Errorf("unexpected %s with strength %v", sig.Name, sig.Strength)
			}
		})
	}
}
