package indicators

import (
	"equity-screener/internal/models"
)

// Bollinger calculates Bollinger Bands plus band width and %B.
type Bollinger struct {
	period int
	stdDev float64
}

// NewBollinger creates a new Bollinger Bands indicator.
func NewBollinger(period int, stdDev float64) *Bollinger {
	return &Bollinger{period: period, stdDev: stdDev}
}

func (b *Bollinger) Name() string { return "bollinger" }
func (b *Bollinger) Columns() []string {
	return []string{ColBBUpper, ColBBMiddle, ColBBLower, ColBBWidth, ColPercentB}
}

func (b *Bollinger) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if b.period <= 1 {
		return nil, ErrInvalidPeriod
	}
	closes := closePrices(candles)
	middle := rollingMean(closes, b.period)
	sd := rolling(closes, b.period, stdDev)

	n := len(candles)
	upper, lower := nanSlice(n), nanSlice(n)
	width, percentB := nanSlice(n), nanSlice(n)
	for i := 0; i < n; i++ {
		upper[i] = middle[i] + b.stdDev*sd[i]
		lower[i] = middle[i] - b.stdDev*sd[i]
		width[i] = safeDiv(upper[i]-lower[i], middle[i])
		percentB[i] = safeDiv(closes[i]-lower[i], upper[i]-lower[i])
	}

	return map[string][]float64{
		ColBBUpper:  upper,
		ColBBMiddle: middle,
		ColBBLower:  lower,
		ColBBWidth:  width,
		ColPercentB: percentB,
	}, nil
}

// ATR calculates the Average True Range with a simple rolling mean.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string      { return ColATR }
func (a *ATR) Columns() []string { return []string{ColATR} }

func (a *ATR) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if a.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	tr := nanSlice(len(candles))
	for i := 1; i < len(candles); i++ {
		tr[i] = trueRange(candles[i], candles[i-1])
	}
	return map[string][]float64{ColATR: rollingMean(tr, a.period)}, nil
}
