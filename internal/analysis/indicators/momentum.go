package indicators

import (
	"math"

	"equity-screener/internal/models"
)

// RSI calculates the Relative Strength Index using simple rolling averages.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string      { return ColRSI }
func (r *RSI) Columns() []string { return []string{ColRSI} }

func (r *RSI) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	n := len(candles)
	gains := nanSlice(n)
	losses := nanSlice(n)
	for i := 1; i < n; i++ {
		change := candles[i].Close - candles[i-1].Close
		gains[i] = math.Max(change, 0)
		losses[i] = math.Max(-change, 0)
	}

	avgGain := rollingMean(gains, r.period)
	avgLoss := rollingMean(losses, r.period)

	rsi := nanSlice(n)
	for i := range rsi {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) {
			continue
		}
		switch {
		case avgLoss[i] == 0 && avgGain[i] == 0:
			rsi[i] = 50
		case avgLoss[i] == 0:
			rsi[i] = 100
		default:
			rs := avgGain[i] / avgLoss[i]
			rsi[i] = 100 - 100/(1+rs)
		}
	}
	return map[string][]float64{ColRSI: rsi}, nil
}

// Stochastic calculates the %K and %D lines.
type Stochastic struct {
	kPeriod, smoothK, dPeriod int
}

// NewStochastic creates a new stochastic oscillator.
func NewStochastic(kPeriod, smoothK, dPeriod int) *Stochastic {
	return &Stochastic{kPeriod: kPeriod, smoothK: smoothK, dPeriod: dPeriod}
}

func (s *Stochastic) Name() string      { return "stochastic" }
func (s *Stochastic) Columns() []string { return []string{ColStochK, ColStochD} }

func (s *Stochastic) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if s.kPeriod <= 0 || s.smoothK <= 0 || s.dPeriod <= 0 {
		return nil, ErrInvalidPeriod
	}
	highs, lows := highPrices(candles), lowPrices(candles)
	hh := rolling(highs, s.kPeriod, highest)
	ll := rolling(lows, s.kPeriod, lowest)

	raw := nanSlice(len(candles))
	for i, c := range candles {
		raw[i] = 100 * safeDiv(c.Close-ll[i], hh[i]-ll[i])
	}
	k := rollingMean(raw, s.smoothK)
	d := rollingMean(k, s.dPeriod)
	return map[string][]float64{ColStochK: k, ColStochD: d}, nil
}

// CCI calculates the Commodity Channel Index.
type CCI struct {
	period int
}

// NewCCI creates a new CCI indicator.
func NewCCI(period int) *CCI {
	return &CCI{period: period}
}

func (c *CCI) Name() string      { return ColCCI }
func (c *CCI) Columns() []string { return []string{ColCCI} }

func (c *CCI) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if c.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	tp := make([]float64, len(candles))
	for i, candle := range candles {
		tp[i] = typicalPrice(candle)
	}
	sma := rollingMean(tp, c.period)
	meanDev := rolling(tp, c.period, func(w []float64) float64 {
		m := mean(w)
		var dev float64
		for _, v := range w {
			dev += math.Abs(v - m)
		}
		return dev / float64(len(w))
	})

	cci := nanSlice(len(candles))
	for i := range cci {
		cci[i] = safeDiv(tp[i]-sma[i], 0.015*meanDev[i])
	}
	return map[string][]float64{ColCCI: cci}, nil
}

// WilliamsR calculates Williams %R in [-100, 0].
type WilliamsR struct {
	period int
}

// NewWilliamsR creates a new Williams %R indicator.
func NewWilliamsR(period int) *WilliamsR {
	return &WilliamsR{period: period}
}

func (w *WilliamsR) Name() string      { return ColWilliamsR }
func (w *WilliamsR) Columns() []string { return []string{ColWilliamsR} }

func (w *WilliamsR) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if w.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	hh := rolling(highPrices(candles), w.period, highest)
	ll := rolling(lowPrices(candles), w.period, lowest)
	out := nanSlice(len(candles))
	for i, c := range candles {
		out[i] = -100 * safeDiv(hh[i]-c.Close, hh[i]-ll[i])
	}
	return map[string][]float64{ColWilliamsR: out}, nil
}
