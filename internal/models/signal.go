package models

import (
	"time"
)

// SignalCategory groups signals by the indicator family that produced them.
type SignalCategory string

const (
	CategoryTrend      SignalCategory = "trend"
	CategoryMomentum   SignalCategory = "momentum"
	CategoryVolatility SignalCategory = "volatility"
	CategoryVolume     SignalCategory = "volume"
	CategoryPattern    SignalCategory = "pattern"
)

// IsValid reports whether c is a known category.
func (c SignalCategory) IsValid() bool {
	switch c {
	case CategoryTrend, CategoryMomentum, CategoryVolatility, CategoryVolume, CategoryPattern:
		return true
	}
	return false
}

// SignalDirection is the directional bias of a signal.
type SignalDirection string

const (
	DirectionBullish SignalDirection = "bullish"
	DirectionBearish SignalDirection = "bearish"
	DirectionNeutral SignalDirection = "neutral"
)

// Signal is one detected event for one instrument at one observation date.
type Signal struct {
	Name      string                 `json:"signal_name"`
	Category  SignalCategory         `json:"signal_type"`
	Direction SignalDirection        `json:"direction"`
	Strength  float64                `json:"strength"`
	Date      time.Time              `json:"date"`
	Price     *float64               `json:"price,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// SignalRecord is a persisted signal.
type SignalRecord struct {
	ID        int64     `json:"id"`
	StockID   string    `json:"stock_id"`
	StockName string    `json:"stock_name,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	Signal
}

// SignalFilter selects stored signals. Zero values disable a filter.
type SignalFilter struct {
	StockID     string
	Category    SignalCategory
	MinStrength float64
	ActiveOnly  bool
	After       time.Time // detected strictly after this date
	Limit       int
}
