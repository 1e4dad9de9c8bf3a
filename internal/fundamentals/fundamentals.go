// Package fundamentals evaluates declarative metric bounds against the
// latest fundamental snapshot of each stock.
package fundamentals

import (
	"fmt"
	"sort"
	"strings"

	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/models"
)

// NoLimit is the legacy "unbounded" sentinel for a max bound.
const NoLimit = 999.0

// Metrics is the allow-list of screenable columns of fundamental_data.
var Metrics = []string{
	"pe_ratio", "pb_ratio", "ps_ratio", "peg_ratio", "ev_ebitda",
	"roe_percent", "roa_percent", "roic", "npm_percent", "opm_percent",
	"revenue_growth_yoy", "eps_growth_yoy",
	"debt_to_assets", "debt_to_equity", "current_ratio",
	"piotroski_score", "altman_z_score", "cf_operating",
	"market_cap", "dividend_yield", "close_price",
}

var known = func() map[string]bool {
	m := make(map[string]bool, len(Metrics))
	for _, name := range Metrics {
		m[name] = true
	}
	return m
}()

// IsMetric reports whether name is a screenable metric.
func IsMetric(name string) bool {
	return known[name]
}

// EffectiveMax returns the upper bound, treating nil and the sentinel as unbounded.
func EffectiveMax(b models.Bound) (float64, bool) {
	if b.Max == nil || *b.Max == NoLimit {
		return 0, false
	}
	return *b.Max, true
}

// Satisfies reports whether v lies within b. A nil value never satisfies.
func Satisfies(b models.Bound, v *float64) bool {
	if v == nil {
		return false
	}
	if b.Min != nil && *v < *b.Min {
		return false
	}
	if max, ok := EffectiveMax(b); ok && *v > max {
		return false
	}
	return true
}

// CheckBound reports an inverted bound.
func CheckBound(metric string, b models.Bound) error {
	if b.Min == nil {
		return nil
	}
	if max, ok := EffectiveMax(b); ok && *b.Min > max {
		return apperrors.NewValidationError("fundamental_criteria."+metric,
			fmt.Sprintf("min=%v max=%v", *b.Min, max), "min must not exceed max")
	}
	return nil
}

// Query is a parameterised SELECT over the latest snapshot of every stock.
type Query struct {
	SQL     string
	Args    []interface{}
	Columns []string
}

// BuildQuery renders criteria into SQL. Metric names come from the
// allow-list only; values are always bound parameters.
func BuildQuery(criteria models.FundamentalCriteria) (Query, error) {
	if len(criteria) == 0 {
		return Query{}, fmt.Errorf("%w: no fundamental criteria", apperrors.ErrInvalidPattern)
	}

	metrics := make([]string, 0, len(criteria))
	for name := range criteria {
		if !IsMetric(name) {
			return Query{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownMetric, name)
		}
		metrics = append(metrics, name)
	}
	sort.Strings(metrics)

	var where []string
	var args []interface{}
	for _, name := range metrics {
		b := criteria[name]
		where = append(where, fmt.Sprintf("f.%s IS NOT NULL", name))
		if b.Min != nil {
			where = append(where, fmt.Sprintf("f.%s >= ?", name))
			args = append(args, *b.Min)
		}
		if max, ok := EffectiveMax(b); ok {
			where = append(where, fmt.Sprintf("f.%s <= ?", name))
			args = append(args, max)
		}
	}

	cols := make([]string, len(metrics))
	for i, name := range metrics {
		cols[i] = "f." + name
	}

	sql := `
		SELECT f.stock_id, ` + strings.Join(cols, ", ") + `
		FROM fundamental_data f
		INNER JOIN (
			SELECT stock_id, MAX(year * 10 + quarter) AS latest
			FROM fundamental_data
			GROUP BY stock_id
		) latest ON f.stock_id = latest.stock_id
			AND (f.year * 10 + f.quarter) = latest.latest
		WHERE ` + strings.Join(where, "\n\t\t\tAND ") + `
		ORDER BY f.stock_id`

	return Query{SQL: sql, Args: args, Columns: metrics}, nil
}

// Match filters in-memory snapshots, mirroring BuildQuery for callers that
// already hold the data.
func Match(criteria models.FundamentalCriteria, snapshots []models.FundamentalSnapshot) ([]models.FundamentalMatch, error) {
	for name := range criteria {
		if !IsMetric(name) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownMetric, name)
		}
	}

	latest := make(map[string]models.FundamentalSnapshot)
	for _, snap := range snapshots {
		cur, ok := latest[snap.StockID]
		if !ok || snap.Year*10+snap.Quarter > cur.Year*10+cur.Quarter {
			latest[snap.StockID] = snap
		}
	}

	var out []models.FundamentalMatch
	for stockID, snap := range latest {
		metrics := make(map[string]float64, len(criteria))
		pass := true
		for name, b := range criteria {
			v := snap.Metrics[name]
			if !Satisfies(b, v) {
				pass = false
				break
			}
			metrics[name] = *v
		}
		if pass {
			out = append(out, models.FundamentalMatch{StockID: stockID, Metrics: metrics})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockID < out[j].StockID })
	return out, nil
}
