package signals

import (
	"equity-screener/internal/analysis/indicators"
	"equity-screener/internal/analysis/series"
	"equity-screener/internal/models"
)

// TrendDetector finds moving-average and MACD signals.
type TrendDetector struct {
	cfg    Config
	checks checkSet
}

// NewTrendDetector creates a trend detector.
func NewTrendDetector(cfg Config) *TrendDetector {
	d := &TrendDetector{cfg: cfg}
	d.checks = checkSet{
		{requires: []string{indicators.ColSMA50, indicators.ColSMA200}, run: d.majorCross},
		{requires: []string{indicators.ColSMA20, indicators.ColSMA50}, run: d.fastCross},
		{requires: []string{indicators.ColMACDLine, indicators.ColMACDSignal}, run: d.macdCross},
		{requires: []string{indicators.ColMACDHistogram}, run: d.histogramReversal},
		{requires: []string{indicators.ColSMA50}, run: d.acceleration},
	}
	return d
}

func (d *TrendDetector) Category() models.SignalCategory { return models.CategoryTrend }

func (d *TrendDetector) Requirements() series.Requirements {
	return d.checks.requirements(indicators.ColADX, indicators.ColVolumeSMA)
}

func (d *TrendDetector) Detect(s *series.Series, i int) []models.Signal {
	return d.checks.run(s, i)
}

// majorCross detects the 50/200 Golden and Death Cross.
func (d *TrendDetector) majorCross(s *series.Series, i int) []models.Signal {
	sma50, sma200, ok := pair(s, indicators.ColSMA50, indicators.ColSMA200, i)
	if !ok {
		return nil
	}

	var name string
	var dir models.SignalDirection
	switch {
	case Crossover(sma50, sma200, i):
		name, dir = "Golden Cross", models.DirectionBullish
	case Crossunder(sma50, sma200, i):
		name, dir = "Death Cross", models.DirectionBearish
	default:
		return nil
	}

	volConf := volumeConfirmed(s, i, d.cfg.VolumeConfirmRatio)
	trendStrong := false
	if adx, ok := s.Value(indicators.ColADX, i); ok {
		trendStrong = adx > d.cfg.ADXTrendThreshold
	}

	return []models.Signal{newSignal(s, i, name, models.CategoryTrend, dir,
		ComposeStrength(60, volConf, trendStrong, 0),
		map[string]interface{}{
			"sma_50":           sma50[i],
			"sma_200":          sma200[i],
			"volume_confirmed": volConf,
			"trend_strong":     trendStrong,
		})}
}

func (d *TrendDetector) fastCross(s *series.Series, i int) []models.Signal {
	sma20, sma50, ok := pair(s, indicators.ColSMA20, indicators.ColSMA50, i)
	if !ok {
		return nil
	}

	var name string
	var dir models.SignalDirection
	switch {
	case Crossover(sma20, sma50, i):
		name, dir = "Fast Cross Bullish", models.DirectionBullish
	case Crossunder(sma20, sma50, i):
		name, dir = "Fast Cross Bearish", models.DirectionBearish
	default:
		return nil
	}

	strength := ComposeStrength(50, volumeConfirmed(s, i, d.cfg.VolumeConfirmRatio), trendAligned(s, i, dir), 0)
	return []models.Signal{newSignal(s, i, name, models.CategoryTrend, dir, strength,
		map[string]interface{}{"sma_20": sma20[i], "sma_50": sma50[i]})}
}

func (d *TrendDetector) macdCross(s *series.Series, i int) []models.Signal {
	line, signal, ok := pair(s, indicators.ColMACDLine, indicators.ColMACDSignal, i)
	if !ok {
		return nil
	}

	meta := map[string]interface{}{"macd_line": line[i], "macd_signal": signal[i]}
	var name string
	var dir models.SignalDirection
	var sameSide bool
	switch {
	case Crossover(line, signal, i):
		name, dir = "MACD Bullish Crossover", models.DirectionBullish
		sameSide = line[i] > 0
		meta["above_zero"] = sameSide
	case Crossunder(line, signal, i):
		name, dir = "MACD Bearish Crossover", models.DirectionBearish
		sameSide = line[i] < 0
		meta["below_zero"] = sameSide
	default:
		return nil
	}

	extra := 0
	if sameSide {
		extra = 1
	}
	strength := ComposeStrength(55, volumeConfirmed(s, i, d.cfg.VolumeConfirmRatio), trendAligned(s, i, dir), extra)
	return []models.Signal{newSignal(s, i, name, models.CategoryTrend, dir, strength, meta)}
}

// histogramReversal looks for a three-bar turn in the MACD histogram.
func (d *TrendDetector) histogramReversal(s *series.Series, i int) []models.Signal {
	if i < 2 {
		return nil
	}
	cur, ok1 := s.Value(indicators.ColMACDHistogram, i)
	prev, ok2 := s.Value(indicators.ColMACDHistogram, i-1)
	before, ok3 := s.Value(indicators.ColMACDHistogram, i-2)
	if !ok1 || !ok2 || !ok3 {
		return nil
	}

	var name string
	var dir models.SignalDirection
	switch {
	case before > prev && prev < 0 && cur > prev:
		name, dir = "MACD Histogram Bullish Reversal", models.DirectionBullish
	case before < prev && prev > 0 && cur < prev:
		name, dir = "MACD Histogram Bearish Reversal", models.DirectionBearish
	default:
		return nil
	}

	strength := ComposeStrength(45, volumeConfirmed(s, i, d.cfg.VolumeConfirmRatio), false, 0)
	return []models.Signal{newSignal(s, i, name, models.CategoryTrend, dir, strength,
		map[string]interface{}{"histogram": cur})}
}

// acceleration compares the 6-point regression slope of the 50-period
// average with the slope one bar earlier.
func (d *TrendDetector) acceleration(s *series.Series, i int) []models.Signal {
	if i < 6 {
		return nil
	}
	current, ok1 := s.Window(indicators.ColSMA50, i-5, i)
	previous, ok2 := s.Window(indicators.ColSMA50, i-6, i-1)
	if !ok1 || !ok2 || hasNaN(current) || hasNaN(previous) {
		return nil
	}

	slope := regressionSlope(current)
	slopePrev := regressionSlope(previous)
	meta := map[string]interface{}{"slope": slope, "slope_prev": slopePrev}

	switch {
	case slope > 0 && slopePrev > 0 && slope > slopePrev*1.5:
		return []models.Signal{newSignal(s, i, "MA Uptrend Acceleration", models.CategoryTrend, models.DirectionBullish, 40, meta)}
	case slope < 0 && slopePrev < 0 && slope < slopePrev*1.5:
		return []models.Signal{newSignal(s, i, "MA Downtrend Acceleration", models.CategoryTrend, models.DirectionBearish, 40, meta)}
	}
	return nil
}
