package signals

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"equity-screener/internal/analysis/indicators"
	"equity-screener/internal/analysis/series"
	"equity-screener/internal/models"
)

func newProperties() *gopter.Properties {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	return gopter.NewProperties(parameters)
}

// randomSeries builds a fully indicated series from random closes.
func randomSeries(closes []float64, vols []int64) *series.Series {
	candles := make([]models.Candle, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		candles[i] = models.Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c * 1.02,
			Low:       c * 0.98,
			Close:     c,
			Volume:    vols[i%len(vols)],
		}
	}
	s := series.FromCandles("PROP", candles)
	cols, _ := indicators.NewDefaultEngine(2).CalculateAll(context.Background(), candles)
	for name, values := range cols {
		s.SetColumn(name, values)
	}
	return s
}

func TestProperty_ShortSeriesYieldsNoSignals(t *testing.T) {
	properties := newProperties()
	detectors := DefaultDetectors(DefaultConfig())

	properties.Property("fewer than 2 rows never produce signals", prop.ForAll(
		func(closes []float64) bool {
			s := randomSeries(closes, []int64{1000})
			return len(Detect(detectors, s)) == 0
		},
		gen.SliceOfN(1, gen.Float64Range(1, 1000)),
	))

	properties.Property("empty series never produces signals", prop.ForAll(
		func(_ int) bool {
			return len(Detect(detectors, series.New("X", nil))) == 0
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}

func TestProperty_CrossoverAndCrossunderExclusive(t *testing.T) {
	properties := newProperties()

	properties.Property("crossover and crossunder never hold together", prop.ForAll(
		func(a, b []float64, i int) bool {
			return !(Crossover(a, b, i) && Crossunder(a, b, i))
		},
		gen.SliceOfN(5, gen.Float64Range(-100, 100)),
		gen.SliceOfN(5, gen.Float64Range(-100, 100)),
		gen.IntRange(-1, 6),
	))

	properties.TestingRun(t)
}

func TestProperty_StrengthWithinBounds(t *testing.T) {
	properties := newProperties()

	properties.Property("composed strength stays in [0,100]", prop.ForAll(
		func(base float64, vol, trend bool, extra int) bool {
			s := ComposeStrength(base, vol, trend, extra)
			return s >= 0 && s <= 100
		},
		gen.Float64Range(-50, 150),
		gen.Bool(),
		gen.Bool(),
		gen.IntRange(0, 10),
	))

	properties.Property("every detected signal has strength in [0,100] and finite metadata", prop.ForAll(
		func(closes []float64, vols []int64) bool {
			s := randomSeries(closes, vols)
			for _, sig := range Detect(DefaultDetectors(DefaultConfig()), s) {
				if sig.Strength < 0 || sig.Strength > 100 {
					return false
				}
				for _, v := range sanitizeMetadata(sig) {
					if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(80, gen.Float64Range(50, 150)),
		gen.SliceOfN(7, gen.Int64Range(100, 1000000)),
	))

	properties.TestingRun(t)
}
