package models

import (
	"time"
)

// SignalSummary is the compact form of a signal attached to a match.
type SignalSummary struct {
	Category SignalCategory `json:"signal_type"`
	Name     string         `json:"signal_name"`
	Strength float64        `json:"strength"`
	Date     time.Time      `json:"detected_date"`
}

// MatchResult is the outcome of running a pattern for one instrument.
type MatchResult struct {
	StockID             string             `json:"stock_id"`
	MatchedFundamentals map[string]float64 `json:"matched_fundamentals"`
	MatchedSignals      []SignalSummary    `json:"matched_signals"`
	FundamentalScore    float64            `json:"fundamental_score"`
	TechnicalScore      float64            `json:"technical_score"`
	MatchScore          float64            `json:"match_score"`
}

// FundamentalMatch is one instrument whose latest snapshot satisfied every bound.
type FundamentalMatch struct {
	StockID string             `json:"stock_id"`
	Metrics map[string]float64 `json:"metrics"`
}
