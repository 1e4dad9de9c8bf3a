package indicators

import (
	"math"

	"equity-screener/internal/models"
)

// OBV calculates On-Balance Volume.
type OBV struct{}

// NewOBV creates a new OBV indicator.
func NewOBV() *OBV {
	return &OBV{}
}

func (o *OBV) Name() string      { return ColOBV }
func (o *OBV) Columns() []string { return []string{ColOBV} }

func (o *OBV) Calculate(candles []models.Candle) (map[string][]float64, error) {
	out := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		vol := float64(candles[i].Volume)
		switch {
		case candles[i].Close > candles[i-1].Close:
			out[i] = out[i-1] + vol
		case candles[i].Close < candles[i-1].Close:
			out[i] = out[i-1] - vol
		default:
			out[i] = out[i-1]
		}
	}
	return map[string][]float64{ColOBV: out}, nil
}

// CMF calculates Chaikin Money Flow.
type CMF struct {
	period int
}

// NewCMF creates a new CMF indicator.
func NewCMF(period int) *CMF {
	return &CMF{period: period}
}

func (c *CMF) Name() string      { return ColCMF }
func (c *CMF) Columns() []string { return []string{ColCMF} }

func (c *CMF) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if c.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	mfv := make([]float64, len(candles))
	vols := volumes(candles)
	for i, candle := range candles {
		multiplier := 0.0
		if rng := candle.High - candle.Low; rng != 0 {
			multiplier = ((candle.Close - candle.Low) - (candle.High - candle.Close)) / rng
		}
		mfv[i] = multiplier * vols[i]
	}

	sumMFV := rolling(mfv, c.period, sumOf)
	sumVol := rolling(vols, c.period, sumOf)
	out := nanSlice(len(candles))
	for i := range out {
		out[i] = safeDiv(sumMFV[i], sumVol[i])
	}
	return map[string][]float64{ColCMF: out}, nil
}

// MFI calculates the Money Flow Index.
type MFI struct {
	period int
}

// NewMFI creates a new MFI indicator.
func NewMFI(period int) *MFI {
	return &MFI{period: period}
}

func (m *MFI) Name() string      { return ColMFI }
func (m *MFI) Columns() []string { return []string{ColMFI} }

func (m *MFI) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if m.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	n := len(candles)
	pos, neg := nanSlice(n), nanSlice(n)
	for i := 1; i < n; i++ {
		tp, prevTP := typicalPrice(candles[i]), typicalPrice(candles[i-1])
		flow := tp * float64(candles[i].Volume)
		pos[i], neg[i] = 0, 0
		if tp > prevTP {
			pos[i] = flow
		} else if tp < prevTP {
			neg[i] = flow
		}
	}

	posSum := rolling(pos, m.period, sumOf)
	negSum := rolling(neg, m.period, sumOf)
	out := nanSlice(n)
	for i := range out {
		if math.IsNaN(posSum[i]) || math.IsNaN(negSum[i]) {
			continue
		}
		if negSum[i] == 0 {
			out[i] = 100
			if posSum[i] == 0 {
				out[i] = 50
			}
			continue
		}
		out[i] = 100 - 100/(1+posSum[i]/negSum[i])
	}
	return map[string][]float64{ColMFI: out}, nil
}

// VolumeSMA calculates the rolling average volume.
type VolumeSMA struct {
	period int
}

// NewVolumeSMA creates a new volume moving average.
func NewVolumeSMA(period int) *VolumeSMA {
	return &VolumeSMA{period: period}
}

func (v *VolumeSMA) Name() string      { return ColVolumeSMA }
func (v *VolumeSMA) Columns() []string { return []string{ColVolumeSMA} }

func (v *VolumeSMA) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if v.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return map[string][]float64{ColVolumeSMA: rollingMean(volumes(candles), v.period)}, nil
}

func sumOf(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
