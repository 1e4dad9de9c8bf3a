package indicators

import (
	"errors"
	"math"

	"equity-screener/internal/models"
)

// ErrInvalidPeriod is returned when the period is invalid.
var ErrInvalidPeriod = errors.New("invalid period")

// nanSlice returns a slice of n NaNs. Warm-up rows of every indicator stay NaN
// so that downstream consumers treat them as missing rather than zero.
func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// mean calculates the arithmetic mean of a slice of float64.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// stdDev calculates the sample standard deviation (ddof=1).
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	m := mean(values)
	var variance float64
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

// rolling applies fn over each full window of the given period.
// A window containing NaN yields NaN.
func rolling(values []float64, period int, fn func(window []float64) float64) []float64 {
	out := nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		if hasNaN(window) {
			continue
		}
		out[i] = fn(window)
	}
	return out
}

func rollingMean(values []float64, period int) []float64 {
	return rolling(values, period, mean)
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func highest(values []float64) float64 {
	h := math.Inf(-1)
	for _, v := range values {
		h = math.Max(h, v)
	}
	return h
}

func lowest(values []float64) float64 {
	l := math.Inf(1)
	for _, v := range values {
		l = math.Min(l, v)
	}
	return l
}

// safeDiv returns NaN instead of ±Inf on a zero denominator.
func safeDiv(a, b float64) float64 {
	if b == 0 || math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return a / b
}

// trueRange calculates the true range for a candle.
func trueRange(current, previous models.Candle) float64 {
	return math.Max(current.High-current.Low,
		math.Max(math.Abs(current.High-previous.Close), math.Abs(current.Low-previous.Close)))
}

// typicalPrice calculates the typical price (HLC/3) for a candle.
func typicalPrice(c models.Candle) float64 {
	return (c.High + c.Low + c.Close) / 3
}

func closePrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}

func highPrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.High
	}
	return prices
}

func lowPrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Low
	}
	return prices
}

func volumes(candles []models.Candle) []float64 {
	vols := make([]float64, len(candles))
	for i, c := range candles {
		vols[i] = float64(c.Volume)
	}
	return vols
}

// ema computes an exponential moving average seeded with the SMA of the
// first full window; leading NaNs in values are skipped.
func ema(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	if period <= 0 || len(values)-start < period {
		return out
	}
	multiplier := 2.0 / float64(period+1)
	seed := start + period - 1
	out[seed] = mean(values[start : seed+1])
	for i := seed + 1; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*multiplier + out[i-1]
	}
	return out
}
