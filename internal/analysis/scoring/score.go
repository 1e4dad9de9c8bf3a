package scoring

import (
	"math"
	"sort"

	"equity-screener/internal/models"
)

// FundamentalPassScore is awarded to every stock that satisfies all
// fundamental bounds. The bound check is pass/fail.
// TODO: grade by distance to the bounds once a scoring curve is agreed.
const FundamentalPassScore = 80.0

// Composite weights when a pattern declares both criteria blocks.
const (
	FundamentalWeight = 0.6
	TechnicalWeight   = 0.4
)

// MatchScore combines the two block scores according to which blocks the
// pattern declares.
func MatchScore(hasFundamental, hasTechnical bool, fundamental, technical float64) float64 {
	switch {
	case hasFundamental && hasTechnical:
		return math.Round(FundamentalWeight*fundamental + TechnicalWeight*technical)
	case hasFundamental:
		return fundamental
	case hasTechnical:
		return technical
	}
	return 0
}

// SortResults orders results descending by match_score or by the named
// fundamental field. A missing field sorts as 0. Ties keep stock_id order.
func SortResults(results []models.MatchResult, sortBy string) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].StockID < results[j].StockID
	})

	key := func(r models.MatchResult) float64 {
		if sortBy == "" || sortBy == models.SortByMatchScore {
			return r.MatchScore
		}
		return r.MatchedFundamentals[sortBy]
	}

	sort.SliceStable(results, func(i, j int) bool {
		return key(results[i]) > key(results[j])
	})
}
