package indicators

import (
	"fmt"
	"math"

	"equity-screener/internal/models"
)

// SMA calculates a simple moving average of closes.
type SMA struct {
	period int
	column string
}

// NewSMA creates an SMA writing to column "sma_<period>".
func NewSMA(period int) *SMA {
	return &SMA{period: period, column: fmt.Sprintf("sma_%d", period)}
}

func (s *SMA) Name() string      { return s.column }
func (s *SMA) Columns() []string { return []string{s.column} }

func (s *SMA) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if s.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return map[string][]float64{s.column: rollingMean(closePrices(candles), s.period)}, nil
}

// MACD calculates the MACD line, its signal line and the histogram.
type MACD struct {
	fast, slow, signal int
}

// NewMACD creates a new MACD indicator.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{fast: fast, slow: slow, signal: signal}
}

func (m *MACD) Name() string { return "macd" }
func (m *MACD) Columns() []string {
	return []string{ColMACDLine, ColMACDSignal, ColMACDHistogram}
}

func (m *MACD) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if m.fast <= 0 || m.slow <= m.fast || m.signal <= 0 {
		return nil, ErrInvalidPeriod
	}
	closes := closePrices(candles)
	fast := ema(closes, m.fast)
	slow := ema(closes, m.slow)

	line := nanSlice(len(candles))
	for i := range candles {
		if !math.IsNaN(fast[i]) && !math.IsNaN(slow[i]) {
			line[i] = fast[i] - slow[i]
		}
	}
	signal := ema(line, m.signal)
	hist := nanSlice(len(candles))
	for i := range candles {
		if !math.IsNaN(line[i]) && !math.IsNaN(signal[i]) {
			hist[i] = line[i] - signal[i]
		}
	}

	return map[string][]float64{
		ColMACDLine:      line,
		ColMACDSignal:    signal,
		ColMACDHistogram: hist,
	}, nil
}

// ADX calculates the Average Directional Index with simple rolling means.
type ADX struct {
	period int
}

// NewADX creates a new ADX indicator.
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

func (a *ADX) Name() string      { return ColADX }
func (a *ADX) Columns() []string { return []string{ColADX} }

func (a *ADX) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if a.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	n := len(candles)
	tr := nanSlice(n)
	plusDM := nanSlice(n)
	minusDM := nanSlice(n)
	for i := 1; i < n; i++ {
		tr[i] = trueRange(candles[i], candles[i-1])
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		plusDM[i], minusDM[i] = 0, 0
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	atr := rollingMean(tr, a.period)
	plusAvg := rollingMean(plusDM, a.period)
	minusAvg := rollingMean(minusDM, a.period)

	dx := nanSlice(n)
	for i := 0; i < n; i++ {
		plusDI := 100 * safeDiv(plusAvg[i], atr[i])
		minusDI := 100 * safeDiv(minusAvg[i], atr[i])
		dx[i] = 100 * safeDiv(math.Abs(plusDI-minusDI), plusDI+minusDI)
	}

	return map[string][]float64{ColADX: rollingMean(dx, a.period)}, nil
}
