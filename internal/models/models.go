// Package models provides domain models for the screening application.
package models

import (
	"time"
)

// DateLayout is the storage and wire format for observation dates.
const DateLayout = "2006-01-02"

// MarketStatus represents the current market status.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "OPEN"
	MarketPreOpen MarketStatus = "PRE_OPEN"
	MarketClosed  MarketStatus = "CLOSED"
)

// Candle represents daily OHLCV data for one instrument.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Stock is one listed instrument of the screening universe.
type Stock struct {
	StockID   string `json:"stock_id"`
	StockName string `json:"stock_name"`
	Sector    string `json:"sector,omitempty"`
	IsActive  bool   `json:"is_active"`
}

// IndicatorValue is one stored indicator reading in long format.
type IndicatorValue struct {
	Date  time.Time
	Name  string
	Value float64
}

// FundamentalSnapshot is one quarterly set of fundamental metrics.
// A nil metric means the value is not reported.
type FundamentalSnapshot struct {
	StockID string
	Year    int
	Quarter int
	Metrics map[string]*float64
}
