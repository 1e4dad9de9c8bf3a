package scoring

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"equity-screener/internal/models"
)

type technicalMatch struct {
	signals []models.SignalSummary
	score   float64
}

// screenTechnical groups recent qualifying signals per stock. When signal
// names are requested, only stocks whose signal names contain one of them
// are kept; otherwise every stock with a qualifying signal is.
func (e *Engine) screenTechnical(ctx context.Context, tc *models.TechnicalCriteria) (map[string]technicalMatch, error) {
	matches := make(map[string]technicalMatch)

	after := e.now().AddDate(0, 0, -e.cfg.TechnicalWindowDays)
	records, err := e.signals.QuerySignals(ctx, models.SignalFilter{
		ActiveOnly:  true,
		MinStrength: tc.MinSignalStrength,
		After:       after,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load recent signals: %w", err)
	}

	byStock := make(map[string][]models.SignalRecord)
	for _, r := range records {
		if r.Strength < tc.MinSignalStrength {
			continue
		}
		byStock[r.StockID] = append(byStock[r.StockID], r)
	}

	for stockID, recs := range byStock {
		if len(tc.Signals) > 0 && !matchesFragments(recs, tc.Signals) {
			continue
		}

		m := technicalMatch{signals: make([]models.SignalSummary, 0, len(recs))}
		var total float64
		for _, r := range recs {
			total += r.Strength
			m.signals = append(m.signals, models.SignalSummary{
				Category: r.Category,
				Name:     r.Name,
				Strength: r.Strength,
				Date:     r.Date,
			})
		}
		m.score = total / float64(len(recs))
		matches[stockID] = m
	}
	return matches, nil
}

// matchesFragments reports whether any fragment, with underscores read as
// spaces, occurs in the stock's lowercased signal names.
func matchesFragments(recs []models.SignalRecord, fragments []string) bool {
	names := make([]string, len(recs))
	for i, r := range recs {
		names[i] = strings.ToLower(r.Name)
	}
	haystack := strings.Join(names, " ")

	for _, f := range fragments {
		needle := strings.ToLower(strings.ReplaceAll(f, "_", " "))
		if needle != "" && strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func merge(p models.Pattern, fundamentals []models.FundamentalMatch, technical map[string]technicalMatch) []models.MatchResult {
	hasFund, hasTech := p.HasFundamental(), p.HasTechnical()
	requireTech := hasTech && len(p.TechnicalCriteria.Signals) > 0

	var results []models.MatchResult
	switch {
	case hasFund:
		results = make([]models.MatchResult, 0, len(fundamentals))
		for _, f := range fundamentals {
			tm, ok := technical[f.StockID]
			if requireTech && !ok {
				continue
			}
			r := models.MatchResult{
				StockID:             f.StockID,
				MatchedFundamentals: f.Metrics,
				FundamentalScore:    FundamentalPassScore,
			}
			if ok {
				r.MatchedSignals = tm.signals
				r.TechnicalScore = tm.score
			}
			results = append(results, r)
		}
	case hasTech:
		results = make([]models.MatchResult, 0, len(technical))
		for stockID, tm := range technical {
			results = append(results, models.MatchResult{
				StockID:        stockID,
				MatchedSignals: tm.signals,
				TechnicalScore: tm.score,
			})
		}
	}

	for i := range results {
		results[i].MatchScore = MatchScore(hasFund, hasTech, results[i].FundamentalScore, results[i].TechnicalScore)
		sortSignals(results[i].MatchedSignals)
	}
	return results
}

func sortSignals(signals []models.SignalSummary) {
	sort.SliceStable(signals, func(i, j int) bool {
		if signals[i].Strength != signals[j].Strength {
			return signals[i].Strength > signals[j].Strength
		}
		if !signals[i].Date.Equal(signals[j].Date) {
			return signals[i].Date.After(signals[j].Date)
		}
		return signals[i].Name < signals[j].Name
	})
}
