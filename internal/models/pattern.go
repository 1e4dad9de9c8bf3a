package models

import (
	"time"
)

// SortByMatchScore is the sort key that orders results by composite score.
const SortByMatchScore = "match_score"

// Bound is an inclusive {min, max} range on a fundamental metric.
// A nil side is unbounded.
type Bound struct {
	Min *float64 `json:"min" yaml:"min"`
	Max *float64 `json:"max" yaml:"max"`
}

// FundamentalCriteria maps a metric name to its bound.
type FundamentalCriteria map[string]Bound

// TechnicalCriteria lists the signal-name fragments a pattern looks for.
type TechnicalCriteria struct {
	Signals           []string `json:"signals" yaml:"signals" validate:"dive,required"`
	MinSignalStrength float64  `json:"min_signal_strength" yaml:"min_signal_strength" validate:"gte=0,lte=100"`
}

// IsEmpty reports whether the criteria block declares nothing.
func (t *TechnicalCriteria) IsEmpty() bool {
	return t == nil || (len(t.Signals) == 0 && t.MinSignalStrength == 0)
}

// Pattern is a named, reusable screening definition.
type Pattern struct {
	ID                  string              `json:"pattern_id" yaml:"pattern_id" validate:"required,max=64,pattern_id"`
	Name                string              `json:"pattern_name" yaml:"name" validate:"required,max=128"`
	Category            string              `json:"category" yaml:"category" validate:"required,max=64"`
	Description         string              `json:"description" yaml:"description"`
	TechnicalCriteria   *TechnicalCriteria  `json:"technical_criteria,omitempty" yaml:"technical_criteria"`
	FundamentalCriteria FundamentalCriteria `json:"fundamental_criteria,omitempty" yaml:"fundamental_criteria"`
	SortBy              string              `json:"sort_by" yaml:"sort_by"`
	CreatedBy           string              `json:"created_by" yaml:"-"`
	IsPreset            bool                `json:"is_preset" yaml:"-"`
	CreatedAt           time.Time           `json:"created_at" yaml:"-"`
	UpdatedAt           time.Time           `json:"updated_at" yaml:"-"`
}

// HasTechnical reports whether the pattern declares a technical block.
func (p *Pattern) HasTechnical() bool {
	return !p.TechnicalCriteria.IsEmpty()
}

// HasFundamental reports whether the pattern declares a fundamental block.
func (p *Pattern) HasFundamental() bool {
	return len(p.FundamentalCriteria) > 0
}

// PatternUpdate carries the fields of a partial update. Nil fields are left untouched.
type PatternUpdate struct {
	Name                *string              `json:"pattern_name,omitempty" yaml:"name"`
	Description         *string              `json:"description,omitempty" yaml:"description"`
	Category            *string              `json:"category,omitempty" yaml:"category"`
	TechnicalCriteria   *TechnicalCriteria   `json:"technical_criteria,omitempty" yaml:"technical_criteria"`
	FundamentalCriteria *FundamentalCriteria `json:"fundamental_criteria,omitempty" yaml:"fundamental_criteria"`
	SortBy              *string              `json:"sort_by,omitempty" yaml:"sort_by"`
}

// IsEmpty reports whether the update touches no field.
func (u PatternUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Category == nil &&
		u.TechnicalCriteria == nil && u.FundamentalCriteria == nil && u.SortBy == nil
}

// Apply returns a copy of p with the update's fields applied.
func (u PatternUpdate) Apply(p Pattern) Pattern {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.TechnicalCriteria != nil {
		tc := *u.TechnicalCriteria
		p.TechnicalCriteria = &tc
	}
	if u.FundamentalCriteria != nil {
		p.FundamentalCriteria = *u.FundamentalCriteria
	}
	if u.SortBy != nil {
		p.SortBy = *u.SortBy
	}
	return p
}

// PatternCounts summarises the stored patterns.
type PatternCounts struct {
	Preset int `json:"preset"`
	Custom int `json:"custom"`
	Total  int `json:"total"`
}
