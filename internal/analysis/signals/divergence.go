package signals

import (
	"equity-screener/internal/analysis/series"
	"equity-screener/internal/models"
)

const (
	divergenceMinIndex = 10
	divergenceLookback = 20
)

// findDivergence compares price extremes with an oscillator over the
// trailing window ending at i. Bullish is checked first: the window's lowest
// close is below the lowest close before it while the oscillator reads
// higher. Bearish mirrors it on highs. No prior extreme means no divergence.
func findDivergence(s *series.Series, oscCol string, i int) (models.SignalDirection, bool) {
	if i < divergenceMinIndex {
		return "", false
	}
	lookback := divergenceLookback
	if i < lookback {
		lookback = i
	}
	from := i - lookback

	closes, ok := s.Window(series.ColClose, from, i)
	if !ok {
		return "", false
	}
	osc, ok := s.Window(oscCol, from, i)
	if !ok {
		return "", false
	}

	less := func(a, b float64) bool { return a < b }
	greater := func(a, b float64) bool { return a > b }

	if cur, prev, ok := extremes(closes, less); ok {
		if closes[cur] < closes[prev] && osc[cur] > osc[prev] {
			return models.DirectionBullish, true
		}
	}
	if cur, prev, ok := extremes(closes, greater); ok {
		if closes[cur] > closes[prev] && osc[cur] < osc[prev] {
			return models.DirectionBearish, true
		}
	}
	return "", false
}

// extremes returns the first index of the window's extreme under better, and
// the first index of the extreme among values strictly before it.
func extremes(values []float64, better func(a, b float64) bool) (int, int, bool) {
	cur := argExtreme(values, better)
	if cur <= 0 {
		return 0, 0, false
	}
	return cur, argExtreme(values[:cur], better), true
}

func argExtreme(values []float64, better func(a, b float64) bool) int {
	if len(values) == 0 {
		return -1
	}
	best := 0
	for j := 1; j < len(values); j++ {
		if better(values[j], values[best]) {
			best = j
		}
	}
	return best
}
