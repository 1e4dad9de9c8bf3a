// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"math"
)

var compactUnits = []struct {
	threshold float64
	suffix    string
}{
	{1e12, "T"},
	{1e9, "B"},
	{1e6, "M"},
	{1e3, "K"},
}

// FormatCompact formats a large number with a K/M/B/T suffix.
func FormatCompact(value float64) string {
	abs := math.Abs(value)
	for _, u := range compactUnits {
		if abs >= u.threshold {
			return fmt.Sprintf("%.2f%s", value/u.threshold, u.suffix)
		}
	}
	return fmt.Sprintf("%.2f", value)
}

// FormatScore formats a 0-100 score.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.1f", score)
}

// FormatMetric formats a fundamental metric value. Large magnitudes
// (market cap, cash flow) are compacted, ratios keep two decimals.
func FormatMetric(value float64) string {
	if math.Abs(value) >= 1e6 {
		return FormatCompact(value)
	}
	return fmt.Sprintf("%.2f", value)
}

// TruncateString truncates a string to maxLen characters with ellipsis.
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
