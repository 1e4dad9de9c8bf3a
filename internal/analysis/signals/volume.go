package signals

import (
	"math"

	"equity-screener/internal/analysis/indicators"
	"equity-screener/internal/analysis/series"
	"equity-screener/internal/models"
)

// VolumeDetector finds volume spikes, OBV divergence and money-flow extremes.
type VolumeDetector struct {
	cfg    Config
	checks checkSet
}

// NewVolumeDetector creates a volume detector.
func NewVolumeDetector(cfg Config) *VolumeDetector {
	d := &VolumeDetector{cfg: cfg}
	d.checks = checkSet{
		{requires: []string{indicators.ColVolumeSMA}, run: d.breakout},
		{requires: []string{indicators.ColOBV}, run: d.obvDivergence},
		{requires: []string{indicators.ColCMF}, run: d.cmf},
		{requires: []string{indicators.ColMFI}, run: d.mfi},
	}
	return d
}

func (d *VolumeDetector) Category() models.SignalCategory { return models.CategoryVolume }

func (d *VolumeDetector) Requirements() series.Requirements {
	return d.checks.requirements()
}

func (d *VolumeDetector) Detect(s *series.Series, i int) []models.Signal {
	return d.checks.run(s, i)
}

func (d *VolumeDetector) breakout(s *series.Series, i int) []models.Signal {
	vol, ok1 := s.Value(series.ColVolume, i)
	avg, ok2 := s.Value(indicators.ColVolumeSMA, i)
	if !ok1 || !ok2 || avg == 0 {
		return nil
	}
	ratio := vol / avg
	if ratio <= d.cfg.VolumeBreakoutThreshold {
		return nil
	}
	cl, ok1 := s.Value(series.ColClose, i)
	prev, ok2 := s.Value(series.ColClose, i-1)
	if !ok1 || !ok2 {
		return nil
	}

	name, dir := "Volume Breakout Bearish", models.DirectionBearish
	if cl > prev {
		name, dir = "Volume Breakout Bullish", models.DirectionBullish
	}
	bonus := math.Min((ratio-d.cfg.VolumeBreakoutThreshold)*5, 20)
	return []models.Signal{newSignal(s, i, name, models.CategoryVolume, dir, math.Min(65+bonus, 100),
		map[string]interface{}{
			"volume":       int64(vol),
			"avg_volume":   int64(avg),
			"volume_ratio": ratio,
		})}
}

func (d *VolumeDetector) obvDivergence(s *series.Series, i int) []models.Signal {
	if s.Len() < 20 {
		return nil
	}
	div, ok := findDivergence(s, indicators.ColOBV, i)
	if !ok {
		return nil
	}
	name := "OBV Bearish Divergence"
	if div == models.DirectionBullish {
		name = "OBV Bullish Divergence"
	}
	return []models.Signal{newSignal(s, i, name, models.CategoryVolume, div, 60,
		map[string]interface{}{"divergence_type": string(div)})}
}

func (d *VolumeDetector) cmf(s *series.Series, i int) []models.Signal {
	cmf, ok := s.Value(indicators.ColCMF, i)
	if !ok {
		return nil
	}
	meta := map[string]interface{}{"cmf": cmf}
	switch {
	case cmf > 0.2:
		return []models.Signal{newSignal(s, i, "Strong Buying Pressure", models.CategoryVolume, models.DirectionBullish, 55, meta)}
	case cmf < -0.2:
		return []models.Signal{newSignal(s, i, "Strong Selling Pressure", models.CategoryVolume, models.DirectionBearish, 55, meta)}
	}
	return nil
}

func (d *VolumeDetector) mfi(s *series.Series, i int) []models.Signal {
	mfi, ok := s.Value(indicators.ColMFI, i)
	if !ok {
		return nil
	}
	meta := map[string]interface{}{"mfi": mfi}
	switch {
	case mfi < 20:
		return []models.Signal{newSignal(s, i, "MFI Oversold", models.CategoryVolume, models.DirectionBullish, 50, meta)}
	case mfi > 80:
		return []models.Signal{newSignal(s, i, "MFI Overbought", models.CategoryVolume, models.DirectionBearish, 50, meta)}
	}
	return nil
}
