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
// Signals Methods
// ============================================================================

// InsertSignals stores detected signals as active rows and returns the count written.
// A signal already stored for the same stock, name and date is overwritten.
func (s *SQLiteStore) InsertSignals(ctx context.Context, stockID string, signals []models.Signal) (int, error) {
	if len(signals) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO signals
			(stock_id, signal_type, signal_name, direction, detected_date, strength, price, metadata, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(stock_id, signal_name, detected_date) DO UPDATE SET
			signal_type = excluded.signal_type,
			direction = excluded.direction,
			strength = excluded.strength,
			price = excluded.price,
			metadata = excluded.metadata,
			is_active = 1
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, sig := range signals {
		var metadata []byte
		if len(sig.Metadata) > 0 {
			if metadata, err = json.Marshal(sig.Metadata); err != nil {
				return 0, fmt.Errorf("failed to marshal metadata for %s: %w", sig.Name, err)
			}
		}
		_, err := stmt.ExecContext(ctx,
			stockID,
			string(sig.Category),
			sig.Name,
			string(sig.Direction),
			sig.Date.Format(models.DateLayout),
			sig.Strength,
			sig.Price,
			nullableString(metadata),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert signal: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(signals), nil
}

// QuerySignals returns signals matching filter, newest and strongest first.
func (s *SQLiteStore) QuerySignals(ctx context.Context, filter models.SignalFilter) ([]models.SignalRecord, error) {
	query := `
		SELECT s.id, s.stock_id, COALESCE(st.stock_name, ''), s.signal_type, s.signal_name, s.direction,
			s.detected_date, s.strength, s.price, s.metadata, s.is_active, s.created_at
		FROM signals s
		LEFT JOIN stocks st ON st.stock_id = s.stock_id
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.StockID != "" {
		query += " AND s.stock_id = ?"
		args = append(args, filter.StockID)
	}
	if filter.Category != "" {
		query += " AND s.signal_type = ?"
		args = append(args, string(filter.Category))
	}
	if filter.ActiveOnly {
		query += " AND s.is_active = 1"
	}
	if filter.MinStrength > 0 {
		query += " AND s.strength >= ?"
		args = append(args, filter.MinStrength)
	}
	if !filter.After.IsZero() {
		query += " AND s.detected_date > ?"
		args = append(args, filter.After.Format(models.DateLayout))
	}

	query += " ORDER BY s.detected_date DESC, s.strength DESC, s.id ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.querySignalRecords(ctx, query, args...)
}

// DeactivateOlderThan marks active signals detected more than days before asOf inactive.
func (s *SQLiteStore) DeactivateOlderThan(ctx context.Context, days int, asOf time.Time) (int64, error) {
	cutoff := asOf.AddDate(0, 0, -days).Format(models.DateLayout)
	res, err := s.db.ExecContext(ctx, `
		UPDATE signals SET is_active = 0
		WHERE is_active = 1 AND detected_date < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate signals: %w", err)
	}
	return res.RowsAffected()
}

// HasActiveSignals reports whether the stock holds any active signal.
func (s *SQLiteStore) HasActiveSignals(ctx context.Context, stockID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM signals WHERE stock_id = ? AND is_active = 1)
	`, stockID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check signals: %w", err)
	}
	return exists, nil
}

// TopOpportunities returns the strongest active signals joined with stock names.
func (s *SQLiteStore) TopOpportunities(ctx context.Context, limit int) ([]models.SignalRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.querySignalRecords(ctx, `
		SELECT s.id, s.stock_id, st.stock_name, s.signal_type, s.signal_name, s.direction,
			s.detected_date, s.strength, s.price, s.metadata, s.is_active, s.created_at
		FROM signals s
		JOIN stocks st ON s.stock_id = st.stock_id
		WHERE s.is_active = 1
		ORDER BY s.strength DESC, s.detected_date DESC
		LIMIT ?
	`, limit)
}

func (s *SQLiteStore) querySignalRecords(ctx context.Context, query string, args ...interface{}) ([]models.SignalRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var records []models.SignalRecord
	for rows.Next() {
		var r models.SignalRecord
		var category, direction, date string
		var price sql.NullFloat64
		var metadata sql.NullString
		var createdAt sql.NullTime

		if err := rows.Scan(&r.ID, &r.StockID, &r.StockName, &category, &r.Name, &direction,
			&date, &r.Strength, &price, &metadata, &r.IsActive, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}

		r.Category = models.SignalCategory(category)
		r.Direction = models.SignalDirection(direction)
		if r.Date, err = time.Parse(models.DateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid signal date %q: %w", date, err)
		}
		if price.Valid {
			p := price.Float64
			r.Price = &p
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &r.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal signal metadata: %w", err)
			}
		}
		if createdAt.Valid {
			r.CreatedAt = createdAt.Time
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signals: %w", err)
	}
	return records, nil
}

func nullableString(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}
