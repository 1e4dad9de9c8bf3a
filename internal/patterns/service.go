// Package patterns manages screening pattern definitions: validation,
// preset seeding and CRUD with cache invalidation.
package patterns

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/logging"
	"equity-screener/internal/models"
	"equity-screener/internal/store"
)

// Service is the pattern definition store used by the CLI, the API and
// the scheduler.
type Service struct {
	store   store.PatternStore
	results store.ResultCache
	logger  zerolog.Logger
}

// NewService creates a pattern service. results is the cache backend that
// RunPattern writes to; it is cleared whenever a pattern changes.
func NewService(st store.PatternStore, results store.ResultCache, logger zerolog.Logger) *Service {
	return &Service{
		store:   st,
		results: results,
		logger:  logger.With().Str("component", "patterns").Logger(),
	}
}

// Get returns one pattern.
func (s *Service) Get(ctx context.Context, patternID string) (*models.Pattern, error) {
	return s.store.GetPattern(ctx, patternID)
}

// Create validates and stores a custom pattern.
func (s *Service) Create(ctx context.Context, p models.Pattern) (*models.Pattern, error) {
	p.IsPreset = false
	if p.SortBy == "" {
		p.SortBy = models.SortByMatchScore
	}
	if p.CreatedBy == "" {
		p.CreatedBy = "user"
	}
	if err := Validate(p); err != nil {
		return nil, err
	}

	if err := s.store.CreatePattern(ctx, p); err != nil {
		return nil, err
	}
	log := logging.WithPattern(s.logger, p.ID)
	log.Info().Str("category", p.Category).Msg("Pattern created")
	return s.store.GetPattern(ctx, p.ID)
}

// Update applies a partial update to a custom pattern.
func (s *Service) Update(ctx context.Context, patternID string, update models.PatternUpdate) (*models.Pattern, error) {
	current, err := s.store.GetPattern(ctx, patternID)
	if err != nil {
		return nil, err
	}
	if current.IsPreset {
		return nil, apperrors.NewPatternError(patternID, "update", apperrors.ErrPresetImmutable)
	}
	if err := Validate(update.Apply(*current)); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdatePattern(ctx, patternID, update)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, patternID)
	log := logging.WithPattern(s.logger, patternID)
	log.Info().Msg("Pattern updated")
	return updated, nil
}

// Delete removes a custom pattern and its cached results.
func (s *Service) Delete(ctx context.Context, patternID string) error {
	if err := s.store.DeletePattern(ctx, patternID); err != nil {
		return err
	}
	s.invalidate(ctx, patternID)
	log := logging.WithPattern(s.logger, patternID)
	log.Info().Msg("Pattern deleted")
	return nil
}

// List returns presets and, when includeCustom is set, custom patterns.
func (s *Service) List(ctx context.Context, includeCustom bool) ([]models.Pattern, error) {
	return s.store.ListPatterns(ctx, includeCustom)
}

// ListByCategory returns the patterns of one category.
func (s *Service) ListByCategory(ctx context.Context, category string) ([]models.Pattern, error) {
	return s.store.ListPatternsByCategory(ctx, category)
}

// Counts returns the preset, custom and total pattern counts.
func (s *Service) Counts(ctx context.Context) (models.PatternCounts, error) {
	return s.store.PatternCounts(ctx)
}

// SeedPresets upserts the built-in presets. Running it twice is harmless.
func (s *Service) SeedPresets(ctx context.Context) (int, error) {
	presets, err := Presets()
	if err != nil {
		return 0, err
	}

	for _, p := range presets {
		if err := Validate(p); err != nil {
			return 0, fmt.Errorf("preset %s: %w", p.ID, err)
		}
		if err := s.store.UpsertPreset(ctx, p); err != nil {
			return 0, err
		}
		s.invalidate(ctx, p.ID)
	}

	s.logger.Info().Int("presets", len(presets)).Msg("Preset patterns seeded")
	return len(presets), nil
}

// ClearCache drops cached results for one pattern, or all when patternID is empty.
func (s *Service) ClearCache(ctx context.Context, patternID string) (int64, error) {
	if s.results == nil {
		return 0, nil
	}
	n, err := s.results.ClearCache(ctx, patternID)
	if err != nil {
		return 0, apperrors.Wrap(err, "clear cache")
	}
	return n, nil
}

func (s *Service) invalidate(ctx context.Context, patternID string) {
	if s.results == nil {
		return
	}
	if _, err := s.results.ClearCache(ctx, patternID); err != nil {
		log := logging.WithPattern(s.logger, patternID)
		log.Warn().Err(err).Msg("Failed to invalidate cached results")
	}
}
