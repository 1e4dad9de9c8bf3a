package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/fundamentals"
	"equity-screener/internal/models"
)

// ============================================================================
// Stocks Methods
// ============================================================================

// UpsertStocks inserts or updates stocks.
func (s *SQLiteStore) UpsertStocks(ctx context.Context, stocks []models.Stock) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stocks (stock_id, stock_name, sector, is_active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(stock_id) DO UPDATE SET
			stock_name = excluded.stock_name,
			sector = excluded.sector,
			is_active = excluded.is_active
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, st := range stocks {
		if _, err := stmt.ExecContext(ctx, st.StockID, st.StockName, st.Sector, st.IsActive); err != nil {
			return fmt.Errorf("failed to upsert stock %s: %w", st.StockID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetActiveStocks returns active stocks ordered by id.
func (s *SQLiteStore) GetActiveStocks(ctx context.Context) ([]models.Stock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stock_id, stock_name, COALESCE(sector, ''), is_active
		FROM stocks
		WHERE is_active = 1
		ORDER BY stock_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	defer rows.Close()

	var stocks []models.Stock
	for rows.Next() {
		var st models.Stock
		if err := rows.Scan(&st.StockID, &st.StockName, &st.Sector, &st.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, st)
	}
	return stocks, rows.Err()
}

// GetStock returns one stock or ErrStockNotFound.
func (s *SQLiteStore) GetStock(ctx context.Context, stockID string) (*models.Stock, error) {
	var st models.Stock
	err := s.db.QueryRowContext(ctx, `
		SELECT stock_id, stock_name, COALESCE(sector, ''), is_active
		FROM stocks WHERE stock_id = ?
	`, stockID).Scan(&st.StockID, &st.StockName, &st.Sector, &st.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrStockNotFound, stockID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	return &st, nil
}

// ============================================================================
// Price Methods
// ============================================================================

// SavePrices upserts daily candles for a stock.
func (s *SQLiteStore) SavePrices(ctx context.Context, stockID string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO price_data (stock_id, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, stockID, c.Timestamp.Format(models.DateLayout), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert price: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetPriceHistory returns candles on or after since, ascending.
func (s *SQLiteStore) GetPriceHistory(ctx context.Context, stockID string, since time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM price_data
		WHERE stock_id = ? AND date >= ?
		ORDER BY date ASC
	`, stockID, since.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		var date string
		if err := rows.Scan(&date, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		if c.Timestamp, err = time.Parse(models.DateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid price date %q: %w", date, err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}
	return candles, nil
}

// ============================================================================
// Indicator Methods
// ============================================================================

// SaveIndicators upserts indicator readings. NaN readings are skipped.
func (s *SQLiteStore) SaveIndicators(ctx context.Context, stockID string, values []models.IndicatorValue) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO indicators (stock_id, date, indicator_name, value)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, v := range values {
		if math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
			continue
		}
		if _, err := stmt.ExecContext(ctx, stockID, v.Date.Format(models.DateLayout), v.Name, v.Value); err != nil {
			return fmt.Errorf("failed to insert indicator: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetIndicators returns indicator readings on or after since.
func (s *SQLiteStore) GetIndicators(ctx context.Context, stockID string, since time.Time) ([]models.IndicatorValue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, indicator_name, value
		FROM indicators
		WHERE stock_id = ? AND date >= ? AND value IS NOT NULL
		ORDER BY date ASC
	`, stockID, since.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query indicators: %w", err)
	}
	defer rows.Close()

	var values []models.IndicatorValue
	for rows.Next() {
		var v models.IndicatorValue
		var date string
		if err := rows.Scan(&date, &v.Name, &v.Value); err != nil {
			return nil, fmt.Errorf("failed to scan indicator: %w", err)
		}
		if v.Date, err = time.Parse(models.DateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid indicator date %q: %w", date, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// ============================================================================
// Fundamentals Methods
// ============================================================================

// SaveFundamentals upserts one quarterly snapshot. Only catalogue metrics are written.
func (s *SQLiteStore) SaveFundamentals(ctx context.Context, snap models.FundamentalSnapshot) error {
	for name := range snap.Metrics {
		if !fundamentals.IsMetric(name) {
			return fmt.Errorf("%w: %s", apperrors.ErrUnknownMetric, name)
		}
	}

	cols := []string{"stock_id", "year", "quarter"}
	args := []interface{}{snap.StockID, snap.Year, snap.Quarter}
	for _, name := range fundamentals.Metrics {
		v, ok := snap.Metrics[name]
		if !ok {
			continue
		}
		cols = append(cols, name)
		if v == nil {
			args = append(args, nil)
		} else {
			args = append(args, *v)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT OR REPLACE INTO fundamental_data (%s) VALUES (%s)", strings.Join(cols, ", "), placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save fundamentals: %w", err)
	}
	return nil
}

// EvaluateFundamentals returns every stock whose latest snapshot satisfies all bounds.
func (s *SQLiteStore) EvaluateFundamentals(ctx context.Context, criteria models.FundamentalCriteria) ([]models.FundamentalMatch, error) {
	q, err := fundamentals.BuildQuery(criteria)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate fundamentals: %w", err)
	}
	defer rows.Close()

	var matches []models.FundamentalMatch
	for rows.Next() {
		var stockID string
		values := make([]float64, len(q.Columns))
		dest := make([]interface{}, 0, len(values)+1)
		dest = append(dest, &stockID)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan fundamentals: %w", err)
		}

		m := models.FundamentalMatch{StockID: stockID, Metrics: make(map[string]float64, len(values))}
		for i, name := range q.Columns {
			m.Metrics[name] = values[i]
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
