package signals

import (
	"equity-screener/internal/analysis/indicators"
	"equity-screener/internal/analysis/series"
	"equity-screener/internal/models"
)

const volatilityAvgWindow = 20

// VolatilityDetector finds Bollinger Band and ATR signals.
type VolatilityDetector struct {
	cfg    Config
	checks checkSet
}

// NewVolatilityDetector creates a volatility detector.
func NewVolatilityDetector(cfg Config) *VolatilityDetector {
	d := &VolatilityDetector{cfg: cfg}
	bands := []string{indicators.ColBBUpper, indicators.ColBBLower, indicators.ColBBWidth, indicators.ColPercentB}
	d.checks = checkSet{
		{requires: bands, run: d.squeeze},
		{requires: bands, run: d.breakout},
		{requires: bands, run: d.walking},
		{requires: []string{indicators.ColATR}, run: d.atrExpansion},
	}
	return d
}

func (d *VolatilityDetector) Category() models.SignalCategory { return models.CategoryVolatility }

func (d *VolatilityDetector) Requirements() series.Requirements {
	return d.checks.requirements(indicators.ColVolumeSMA)
}

func (d *VolatilityDetector) Detect(s *series.Series, i int) []models.Signal {
	return d.checks.run(s, i)
}

func (d *VolatilityDetector) squeeze(s *series.Series, i int) []models.Signal {
	if i < volatilityAvgWindow {
		return nil
	}
	width, ok := s.Value(indicators.ColBBWidth, i)
	if !ok {
		return nil
	}
	history, _ := s.Window(indicators.ColBBWidth, i-volatilityAvgWindow, i-1)
	avg, ok := meanFinite(history)
	if !ok || width >= avg*0.5 {
		return nil
	}
	return []models.Signal{newSignal(s, i, "Bollinger Band Squeeze", models.CategoryVolatility, models.DirectionNeutral, 55,
		map[string]interface{}{"bb_width": width, "avg_width": avg})}
}

func (d *VolatilityDetector) breakout(s *series.Series, i int) []models.Signal {
	cl, ok1 := s.Value(series.ColClose, i)
	prevClose, ok2 := s.Value(series.ColClose, i-1)
	if !ok1 || !ok2 {
		return nil
	}
	meta := map[string]interface{}{}
	if pb, ok := s.Value(indicators.ColPercentB, i); ok {
		meta["percent_b"] = pb
	}

	upper, okU := s.Value(indicators.ColBBUpper, i)
	prevUpper, okPU := s.Value(indicators.ColBBUpper, i-1)
	if okU && okPU && prevClose < prevUpper && cl > upper {
		return []models.Signal{newSignal(s, i, "Bollinger Band Bullish Breakout", models.CategoryVolatility, models.DirectionBullish,
			ComposeStrength(60, volumeConfirmed(s, i, d.cfg.VolumeConfirmRatio), false, 0), meta)}
	}

	lower, okL := s.Value(indicators.ColBBLower, i)
	prevLower, okPL := s.Value(indicators.ColBBLower, i-1)
	if okL && okPL && prevClose > prevLower && cl < lower {
		return []models.Signal{newSignal(s, i, "Bollinger Band Bearish Breakout", models.CategoryVolatility, models.DirectionBearish,
			ComposeStrength(60, volumeConfirmed(s, i, d.cfg.VolumeConfirmRatio), false, 0), meta)}
	}
	return nil
}

func (d *VolatilityDetector) walking(s *series.Series, i int) []models.Signal {
	pb, ok := s.Value(indicators.ColPercentB, i)
	if !ok {
		return nil
	}
	meta := map[string]interface{}{"percent_b": pb}
	switch {
	case pb > 0.9:
		return []models.Signal{newSignal(s, i, "Walking Upper Band", models.CategoryVolatility, models.DirectionBullish, 50, meta)}
	case pb < 0.1:
		return []models.Signal{newSignal(s, i, "Walking Lower Band", models.CategoryVolatility, models.DirectionBearish, 50, meta)}
	}
	return nil
}

func (d *VolatilityDetector) atrExpansion(s *series.Series, i int) []models.Signal {
	if s.Len() < volatilityAvgWindow || i < volatilityAvgWindow {
		return nil
	}
	atr, ok := s.Value(indicators.ColATR, i)
	if !ok {
		return nil
	}
	history, _ := s.Window(indicators.ColATR, i-volatilityAvgWindow, i-1)
	avg, ok := meanFinite(history)
	if !ok || atr <= avg*1.5 {
		return nil
	}
	return []models.Signal{newSignal(s, i, "ATR Expansion", models.CategoryVolatility, models.DirectionNeutral, 45,
		map[string]interface{}{"atr": atr, "avg_atr": avg})}
}
