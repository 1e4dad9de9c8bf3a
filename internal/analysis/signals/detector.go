// Package signals detects discrete, scored trading signals on the latest
// observation of a stock's series.
package signals

import (
	"math"

	"equity-screener/internal/analysis/indicators"
	"equity-screener/internal/analysis/series"
	"equity-screener/internal/config"
	"equity-screener/internal/models"
)

// Detector inspects one category of signals at index i of a series.
type Detector interface {
	Category() models.SignalCategory
	Requirements() series.Requirements
	Detect(s *series.Series, i int) []models.Signal
}

// Config holds detector thresholds.
type Config struct {
	RSIOversold             float64
	RSIOverbought           float64
	VolumeBreakoutThreshold float64
	VolumeConfirmRatio      float64
	ADXTrendThreshold       float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		RSIOversold:             30,
		RSIOverbought:           70,
		VolumeBreakoutThreshold: 2.0,
		VolumeConfirmRatio:      1.5,
		ADXTrendThreshold:       25,
	}
}

// ConfigFrom maps application configuration onto detector thresholds.
func ConfigFrom(c config.SignalsConfig) Config {
	return Config{
		RSIOversold:             c.RSIOversold,
		RSIOverbought:           c.RSIOverbought,
		VolumeBreakoutThreshold: c.VolumeBreakoutThreshold,
		VolumeConfirmRatio:      c.VolumeConfirmRatio,
		ADXTrendThreshold:       c.ADXTrendThreshold,
	}
}

// DefaultDetectors returns one detector per implemented category.
func DefaultDetectors(cfg Config) []Detector {
	return []Detector{
		NewTrendDetector(cfg),
		NewMomentumDetector(cfg),
		NewVolatilityDetector(cfg),
		NewVolumeDetector(cfg),
	}
}

// Crossover reports whether a crosses above b at index i.
func Crossover(a, b []float64, i int) bool {
	if i < 1 || i >= len(a) || i >= len(b) {
		return false
	}
	return a[i-1] < b[i-1] && a[i] > b[i]
}

// Crossunder reports whether a crosses below b at index i.
func Crossunder(a, b []float64, i int) bool {
	if i < 1 || i >= len(a) || i >= len(b) {
		return false
	}
	return a[i-1] > b[i-1] && a[i] < b[i]
}

// ComposeStrength adds confirmation bonuses to a base strength and caps at 100.
func ComposeStrength(base float64, volumeConfirmed, trendAligned bool, extra int) float64 {
	strength := base
	if volumeConfirmed {
		strength += 20
	}
	if trendAligned {
		strength += 15
	}
	strength += math.Min(30, 10*float64(extra))
	return clamp(strength)
}

func clamp(strength float64) float64 {
	if math.IsNaN(strength) {
		return 0
	}
	return math.Max(0, math.Min(100, strength))
}

// volumeConfirmed reports whether volume exceeds ratio times its rolling average.
// False when either value is unavailable.
func volumeConfirmed(s *series.Series, i int, ratio float64) bool {
	vol, ok := s.Value(series.ColVolume, i)
	if !ok {
		return false
	}
	avg, ok := s.Value(indicators.ColVolumeSMA, i)
	if !ok {
		return false
	}
	return vol > ratio*avg
}

// trendAligned compares the 50 and 200 period averages in the given direction.
func trendAligned(s *series.Series, i int, dir models.SignalDirection) bool {
	sma50, ok1 := s.Value(indicators.ColSMA50, i)
	sma200, ok2 := s.Value(indicators.ColSMA200, i)
	if !ok1 || !ok2 {
		return false
	}
	if dir == models.DirectionBullish {
		return sma50 > sma200
	}
	return sma50 < sma200
}

// pair returns both columns if they exist and are non-NaN at i-1 and i.
func pair(s *series.Series, a, b string, i int) ([]float64, []float64, bool) {
	if i < 1 {
		return nil, nil, false
	}
	colA, okA := s.Column(a)
	colB, okB := s.Column(b)
	if !okA || !okB {
		return nil, nil, false
	}
	for _, v := range []float64{colA[i-1], colA[i], colB[i-1], colB[i]} {
		if math.IsNaN(v) {
			return nil, nil, false
		}
	}
	return colA, colB, true
}

// newSignal builds a signal at index i, stamping date and close price.
func newSignal(s *series.Series, i int, name string, cat models.SignalCategory, dir models.SignalDirection, strength float64, meta map[string]interface{}) models.Signal {
	sig := models.Signal{
		Name:      name,
		Category:  cat,
		Direction: dir,
		Strength:  clamp(strength),
		Metadata:  meta,
	}
	if i >= 0 && i < len(s.Dates) {
		sig.Date = s.Dates[i]
	}
	if price, ok := s.Value(series.ColClose, i); ok {
		sig.Price = &price
	}
	return sig
}

// meanFinite averages the non-NaN values, reporting false if there are none.
func meanFinite(values []float64) (float64, bool) {
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// regressionSlope returns the least-squares slope of values against 0..n-1.
func regressionSlope(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// check is one trigger inside a category detector, gated on the columns it needs.
type check struct {
	requires []string
	run      func(s *series.Series, i int) []models.Signal
}

type checkSet []check

// run executes every check whose columns are all present.
func (cs checkSet) run(s *series.Series, i int) []models.Signal {
	caps := s.Capabilities()
	var out []models.Signal
	for _, c := range cs {
		if !(series.Requirements{Required: c.requires}).Satisfied(caps) {
			continue
		}
		out = append(out, c.run(s, i)...)
	}
	return out
}

// requirements reports the price columns as required and every check
// column plus confirmations as optional.
func (cs checkSet) requirements(confirmations ...string) series.Requirements {
	seen := make(map[string]bool)
	var optional []string
	add := func(col string) {
		if !seen[col] {
			seen[col] = true
			optional = append(optional, col)
		}
	}
	for _, c := range cs {
		for _, col := range c.requires {
			add(col)
		}
	}
	for _, col := range confirmations {
		add(col)
	}
	return series.Requirements{
		Required: []string{series.ColClose, series.ColVolume},
		Optional: optional,
	}
}
