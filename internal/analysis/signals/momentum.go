package signals

import (
	"equity-screener/internal/analysis/indicators"
	"equity-screener/internal/analysis/series"
	"equity-screener/internal/models"
)

// MomentumDetector finds oscillator extremes, crossovers and RSI divergence.
type MomentumDetector struct {
	cfg    Config
	checks checkSet
}

// NewMomentumDetector creates a momentum detector.
func NewMomentumDetector(cfg Config) *MomentumDetector {
	d := &MomentumDetector{cfg: cfg}
	d.checks = checkSet{
		{requires: []string{indicators.ColRSI}, run: d.rsiExtreme},
		{requires: []string{indicators.ColRSI}, run: d.rsiMidline},
		{requires: []string{indicators.ColStochK, indicators.ColStochD}, run: d.stochastic},
		{requires: []string{indicators.ColCCI}, run: d.cci},
		{requires: []string{indicators.ColWilliamsR}, run: d.williams},
		{requires: []string{indicators.ColRSI}, run: d.rsiDivergence},
	}
	return d
}

func (d *MomentumDetector) Category() models.SignalCategory { return models.CategoryMomentum }

func (d *MomentumDetector) Requirements() series.Requirements {
	return d.checks.requirements(indicators.ColSMA50, indicators.ColSMA200, indicators.ColVolumeSMA)
}

func (d *MomentumDetector) Detect(s *series.Series, i int) []models.Signal {
	return d.checks.run(s, i)
}

func (d *MomentumDetector) rsiExtreme(s *series.Series, i int) []models.Signal {
	rsi, ok := s.Value(indicators.ColRSI, i)
	if !ok || i < 1 {
		return nil
	}
	prev, ok := s.Value(indicators.ColRSI, i-1)
	if !ok {
		return nil
	}

	volConf := volumeConfirmed(s, i, d.cfg.VolumeConfirmRatio)
	switch {
	case rsi < d.cfg.RSIOversold:
		bouncing := rsi > prev
		return []models.Signal{newSignal(s, i, "RSI Oversold", models.CategoryMomentum, models.DirectionBullish,
			reversalStrength(bouncing, volConf),
			map[string]interface{}{"rsi": rsi, "bouncing": bouncing, "threshold": d.cfg.RSIOversold})}
	case rsi > d.cfg.RSIOverbought:
		rollingOver := rsi < prev
		return []models.Signal{newSignal(s, i, "RSI Overbought", models.CategoryMomentum, models.DirectionBearish,
			reversalStrength(rollingOver, volConf),
			map[string]interface{}{"rsi": rsi, "rolling_over": rollingOver, "threshold": d.cfg.RSIOverbought})}
	}
	return nil
}

// reversalStrength scores an RSI extreme: 55 and one extra confirmation when
// the oscillator is already turning, 45 otherwise.
func reversalStrength(reversing, volConf bool) float64 {
	if reversing {
		return ComposeStrength(55, volConf, false, 1)
	}
	return ComposeStrength(45, volConf, false, 0)
}

func (d *MomentumDetector) rsiMidline(s *series.Series, i int) []models.Signal {
	rsi, ok1 := s.Value(indicators.ColRSI, i)
	prev, ok2 := s.Value(indicators.ColRSI, i-1)
	if !ok1 || !ok2 {
		return nil
	}

	var name string
	var dir models.SignalDirection
	switch {
	case prev < 50 && rsi > 50:
		name, dir = "RSI Bullish Midline Cross", models.DirectionBullish
	case prev > 50 && rsi < 50:
		name, dir = "RSI Bearish Midline Cross", models.DirectionBearish
	default:
		return nil
	}
	return []models.Signal{newSignal(s, i, name, models.CategoryMomentum, dir,
		ComposeStrength(50, false, trendAligned(s, i, dir), 0),
		map[string]interface{}{"rsi": rsi})}
}

func (d *MomentumDetector) stochastic(s *series.Series, i int) []models.Signal {
	k, dl, ok := pair(s, indicators.ColStochK, indicators.ColStochD, i)
	if !ok {
		return nil
	}

	volConf := volumeConfirmed(s, i, d.cfg.VolumeConfirmRatio)
	switch {
	case Crossover(k, dl, i) && k[i] < 20:
		return []models.Signal{newSignal(s, i, "Stochastic Bullish Crossover", models.CategoryMomentum, models.DirectionBullish,
			ComposeStrength(60, volConf, false, 0),
			map[string]interface{}{"stoch_k": k[i], "stoch_d": dl[i], "in_oversold": true})}
	case Crossunder(k, dl, i) && k[i] > 80:
		return []models.Signal{newSignal(s, i, "Stochastic Bearish Crossover", models.CategoryMomentum, models.DirectionBearish,
			ComposeStrength(60, volConf, false, 0),
			map[string]interface{}{"stoch_k": k[i], "stoch_d": dl[i], "in_overbought": true})}
	}
	return nil
}

func (d *MomentumDetector) cci(s *series.Series, i int) []models.Signal {
	cci, ok := s.Value(indicators.ColCCI, i)
	if !ok {
		return nil
	}
	meta := map[string]interface{}{"cci": cci}
	switch {
	case cci > 100:
		return []models.Signal{newSignal(s, i, "CCI Overbought", models.CategoryMomentum, models.DirectionBearish, 50, meta)}
	case cci < -100:
		return []models.Signal{newSignal(s, i, "CCI Oversold", models.CategoryMomentum, models.DirectionBullish, 50, meta)}
	}
	return nil
}

func (d *MomentumDetector) williams(s *series.Series, i int) []models.Signal {
	wr, ok := s.Value(indicators.ColWilliamsR, i)
	if !ok {
		return nil
	}
	meta := map[string]interface{}{"williams_r": wr}
	switch {
	case wr > -20:
		return []models.Signal{newSignal(s, i, "Williams %R Overbought", models.CategoryMomentum, models.DirectionBearish, 45, meta)}
	case wr < -80:
		return []models.Signal{newSignal(s, i, "Williams %R Oversold", models.CategoryMomentum, models.DirectionBullish, 45, meta)}
	}
	return nil
}

func (d *MomentumDetector) rsiDivergence(s *series.Series, i int) []models.Signal {
	if s.Len() < 20 {
		return nil
	}
	div, ok := findDivergence(s, indicators.ColRSI, i)
	if !ok {
		return nil
	}

	meta := map[string]interface{}{"divergence_type": string(div)}
	if rsi, ok := s.Value(indicators.ColRSI, i); ok {
		meta["current_rsi"] = rsi
	}
	if div == models.DirectionBullish {
		return []models.Signal{newSignal(s, i, "Bullish Divergence", models.CategoryMomentum, div, 65, meta)}
	}
	return []models.Signal{newSignal(s, i, "Bearish Divergence", models.CategoryMomentum, div, 65, meta)}
}
