package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"equity-screener/internal/models"
)

// ============================================================================
// Result Cache Methods
// ============================================================================

// GetCached returns the cached results of a pattern in rank order. The
// boolean is false when the pattern was never cached or the entry is older
// than maxAge. A pattern cached with no matches is a hit with no results.
func (s *SQLiteStore) GetCached(ctx context.Context, patternID string, maxAge time.Duration) ([]models.MatchResult, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var updated time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT last_updated FROM pattern_cache_runs WHERE pattern_id = ?
	`, patternID).Scan(&updated)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cache: %w", err)
	}
	if !updated.After(s.now().UTC().Add(-maxAge)) {
		return nil, false, nil
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT stock_id, match_score, fundamental_score, technical_score,
			matched_signals, matched_fundamentals
		FROM pattern_results_cache
		WHERE pattern_id = ?
		ORDER BY rank
	`, patternID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cache: %w", err)
	}
	defer rows.Close()

	results := []models.MatchResult{}
	for rows.Next() {
		var r models.MatchResult
		var signalsJSON, fundamentalsJSON sql.NullString

		if err := rows.Scan(&r.StockID, &r.MatchScore, &r.FundamentalScore, &r.TechnicalScore,
			&signalsJSON, &fundamentalsJSON); err != nil {
			return nil, false, fmt.Errorf("failed to scan cached result: %w", err)
		}

		if signalsJSON.Valid && signalsJSON.String != "" {
			if err := json.Unmarshal([]byte(signalsJSON.String), &r.MatchedSignals); err != nil {
				return nil, false, fmt.Errorf("failed to decode cached signals: %w", err)
			}
		}
		if fundamentalsJSON.Valid && fundamentalsJSON.String != "" {
			if err := json.Unmarshal([]byte(fundamentalsJSON.String), &r.MatchedFundamentals); err != nil {
				return nil, false, fmt.Errorf("failed to decode cached fundamentals: %w", err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return results, true, nil
}

// PutCached replaces the cached results of a pattern. Rank follows the
// order of results.
func (s *SQLiteStore) PutCached(ctx context.Context, patternID string, results []models.MatchResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pattern_results_cache WHERE pattern_id = ?`, patternID); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pattern_results_cache
			(pattern_id, stock_id, rank, match_score, fundamental_score, technical_score,
			 matched_signals, matched_fundamentals, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	for i, r := range results {
		signalsJSON, err := json.Marshal(r.MatchedSignals)
		if err != nil {
			return fmt.Errorf("failed to encode signals for %s: %w", r.StockID, err)
		}
		fundamentalsJSON, err := json.Marshal(r.MatchedFundamentals)
		if err != nil {
			return fmt.Errorf("failed to encode fundamentals for %s: %w", r.StockID, err)
		}

		_, err = stmt.ExecContext(ctx, patternID, r.StockID, i+1, r.MatchScore, r.FundamentalScore,
			r.TechnicalScore, string(signalsJSON), string(fundamentalsJSON), now)
		if err != nil {
			return fmt.Errorf("failed to cache result for %s: %w", r.StockID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pattern_cache_runs (pattern_id, result_count, last_updated)
		VALUES (?, ?, ?)
		ON CONFLICT(pattern_id) DO UPDATE SET
			result_count = excluded.result_count,
			last_updated = excluded.last_updated
	`, patternID, len(results), now)
	if err != nil {
		return fmt.Errorf("failed to record cache run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ClearCache removes cached results for one pattern, or for all patterns
// when patternID is empty. The count is the number of result rows removed.
func (s *SQLiteStore) ClearCache(ctx context.Context, patternID string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	where, args := "", []interface{}{}
	if patternID != "" {
		where, args = " WHERE pattern_id = ?", append(args, patternID)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM pattern_results_cache`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pattern_cache_runs`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to clear cache runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return n, nil
}
