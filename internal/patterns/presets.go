package patterns

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"equity-screener/internal/models"
)

//go:embed presets.yaml
var presetsYAML []byte

// PresetSortSignalStrength is accepted as a sort key on presets only.
// No result field carries it, so it sorts every match as 0.
const PresetSortSignalStrength = "signal_strength"

type presetCatalogue struct {
	Presets []models.Pattern `yaml:"presets"`
}

// Presets decodes the built-in preset catalogue.
func Presets() ([]models.Pattern, error) {
	var cat presetCatalogue
	if err := yaml.Unmarshal(presetsYAML, &cat); err != nil {
		return nil, fmt.Errorf("failed to decode preset catalogue: %w", err)
	}
	for i := range cat.Presets {
		cat.Presets[i].IsPreset = true
		cat.Presets[i].CreatedBy = "system"
	}
	return cat.Presets, nil
}
