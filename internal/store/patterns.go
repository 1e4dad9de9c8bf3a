package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/models"
)

// ============================================================================
// Pattern Methods
// ============================================================================

const patternColumns = `pattern_id, pattern_name, COALESCE(description, ''), COALESCE(category, ''),
	technical_criteria, fundamental_criteria, COALESCE(sort_by, ''), COALESCE(created_by, ''),
	is_preset, created_at, updated_at`

// CreatePattern inserts a custom pattern. The stored row is never a preset.
func (s *SQLiteStore) CreatePattern(ctx context.Context, p models.Pattern) error {
	p.IsPreset = false
	if p.SortBy == "" {
		p.SortBy = models.SortByMatchScore
	}
	if p.CreatedBy == "" {
		p.CreatedBy = "user"
	}
	now := s.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	tech, fund, err := encodeCriteria(p)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM screening_patterns WHERE pattern_id = ?)`, p.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check pattern: %w", err)
	}
	if exists {
		return apperrors.NewPatternError(p.ID, "create", apperrors.ErrDuplicateID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO screening_patterns
			(pattern_id, pattern_name, description, category, technical_criteria, fundamental_criteria,
			 sort_by, created_by, is_preset, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, p.ID, p.Name, p.Description, p.Category, tech, fund, p.SortBy, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert pattern: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetPattern returns one pattern or ErrPatternNotFound.
func (s *SQLiteStore) GetPattern(ctx context.Context, patternID string) (*models.Pattern, error) {
	return getPattern(ctx, s.db, patternID)
}

// UpdatePattern applies a partial update to a custom pattern, refreshes
// updated_at and drops its cached results.
func (s *SQLiteStore) UpdatePattern(ctx context.Context, patternID string, update models.PatternUpdate) (*models.Pattern, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getPattern(ctx, tx, patternID)
	if err != nil {
		return nil, err
	}
	if current.IsPreset {
		return nil, apperrors.NewPatternError(patternID, "update", apperrors.ErrPresetImmutable)
	}

	updated := update.Apply(*current)
	updated.UpdatedAt = s.now().UTC()

	tech, fund, err := encodeCriteria(updated)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE screening_patterns
		SET pattern_name = ?, description = ?, category = ?, technical_criteria = ?,
			fundamental_criteria = ?, sort_by = ?, updated_at = ?
		WHERE pattern_id = ?
	`, updated.Name, updated.Description, updated.Category, tech, fund, updated.SortBy, updated.UpdatedAt, patternID)
	if err != nil {
		return nil, fmt.Errorf("failed to update pattern: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pattern_results_cache WHERE pattern_id = ?`, patternID); err != nil {
		return nil, fmt.Errorf("failed to invalidate cache: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &updated, nil
}

// DeletePattern removes a custom pattern and its cached results.
func (s *SQLiteStore) DeletePattern(ctx context.Context, patternID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getPattern(ctx, tx, patternID)
	if err != nil {
		return err
	}
	if current.IsPreset {
		return apperrors.NewPatternError(patternID, "delete", apperrors.ErrPresetImmutable)
	}

	// The foreign key cascades as well; the explicit delete covers databases
	// opened without foreign key enforcement.
	if _, err := tx.ExecContext(ctx, `DELETE FROM pattern_results_cache WHERE pattern_id = ?`, patternID); err != nil {
		return fmt.Errorf("failed to delete cached results: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM screening_patterns WHERE pattern_id = ?`, patternID); err != nil {
		return fmt.Errorf("failed to delete pattern: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListPatterns returns presets and, optionally, custom patterns ordered
// preset first, then category, then name.
func (s *SQLiteStore) ListPatterns(ctx context.Context, includeCustom bool) ([]models.Pattern, error) {
	query := `SELECT ` + patternColumns + ` FROM screening_patterns WHERE 1=1`
	if !includeCustom {
		query += " AND is_preset = 1"
	}
	query += " ORDER BY is_preset DESC, category, pattern_name"
	return s.queryPatterns(ctx, query)
}

// ListPatternsByCategory returns the patterns of one category.
func (s *SQLiteStore) ListPatternsByCategory(ctx context.Context, category string) ([]models.Pattern, error) {
	return s.queryPatterns(ctx, `SELECT `+patternColumns+` FROM screening_patterns
		WHERE category = ?
		ORDER BY is_preset DESC, pattern_name`, category)
}

// PatternCounts counts preset and custom patterns.
func (s *SQLiteStore) PatternCounts(ctx context.Context) (models.PatternCounts, error) {
	var c models.PatternCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN is_preset = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_preset = 1 THEN 0 ELSE 1 END), 0)
		FROM screening_patterns
	`).Scan(&c.Preset, &c.Custom)
	if err != nil {
		return c, fmt.Errorf("failed to count patterns: %w", err)
	}
	c.Total = c.Preset + c.Custom
	return c, nil
}

// UpsertPreset writes a preset definition, keeping its original created_at.
func (s *SQLiteStore) UpsertPreset(ctx context.Context, p models.Pattern) error {
	tech, fund, err := encodeCriteria(p)
	if err != nil {
		return err
	}
	now := s.now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO screening_patterns
			(pattern_id, pattern_name, description, category, technical_criteria, fundamental_criteria,
			 sort_by, created_by, is_preset, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'system', 1, ?, ?)
		ON CONFLICT(pattern_id) DO UPDATE SET
			pattern_name = excluded.pattern_name,
			description = excluded.description,
			category = excluded.category,
			technical_criteria = excluded.technical_criteria,
			fundamental_criteria = excluded.fundamental_criteria,
			sort_by = excluded.sort_by,
			created_by = 'system',
			is_preset = 1,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.Description, p.Category, tech, fund, p.SortBy, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert preset %s: %w", p.ID, err)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getPattern(ctx context.Context, q queryRower, patternID string) (*models.Pattern, error) {
	row := q.QueryRowContext(ctx, `SELECT `+patternColumns+` FROM screening_patterns WHERE pattern_id = ?`, patternID)
	p, err := scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewPatternError(patternID, "get", apperrors.ErrPatternNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pattern: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) queryPatterns(ctx context.Context, query string, args ...interface{}) ([]models.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var patterns []models.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		patterns = append(patterns, *p)
	}
	return patterns, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPattern(row scanner) (*models.Pattern, error) {
	var p models.Pattern
	var tech, fund sql.NullString
	var createdAt, updatedAt sql.NullTime

	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &tech, &fund,
		&p.SortBy, &p.CreatedBy, &p.IsPreset, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if tech.Valid && strings.TrimSpace(tech.String) != "" && tech.String != "null" {
		var tc models.TechnicalCriteria
		if err := json.Unmarshal([]byte(tech.String), &tc); err != nil {
			return nil, fmt.Errorf("invalid technical criteria for %s: %w", p.ID, err)
		}
		p.TechnicalCriteria = &tc
	}
	if fund.Valid && strings.TrimSpace(fund.String) != "" && fund.String != "null" {
		if err := json.Unmarshal([]byte(fund.String), &p.FundamentalCriteria); err != nil {
			return nil, fmt.Errorf("invalid fundamental criteria for %s: %w", p.ID, err)
		}
	}
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}
	return &p, nil
}

func encodeCriteria(p models.Pattern) (tech, fund interface{}, err error) {
	if p.TechnicalCriteria != nil {
		b, err := json.Marshal(p.TechnicalCriteria)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal technical criteria: %w", err)
		}
		tech = string(b)
	}
	if len(p.FundamentalCriteria) > 0 {
		b, err := json.Marshal(p.FundamentalCriteria)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal fundamental criteria: %w", err)
		}
		fund = string(b)
	}
	return tech, fund, nil
}
