package patterns

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/models"
	"equity-screener/internal/store"
)

type recordingCache struct {
	cleared  []string
	clearErr error
}

func (c *recordingCache) GetCached(ctx context.Context, patternID string, maxAge time.Duration) ([]models.MatchResult, bool, error) {
	return nil, false, nil
}

func (c *recordingCache) PutCached(ctx context.Context, patternID string, results []models.MatchResult) error {
	return nil
}

func (c *recordingCache) ClearCache(ctx context.Context, patternID string) (int64, error) {
	c.cleared = append(c.cleared, patternID)
	return 1, c.clearErr
}

func newTestService(t *testing.T) (*Service, *recordingCache) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "patterns.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cache := &recordingCache{}
	return NewService(st, cache, zerolog.Nop()), cache
}

func ptr(v float64) *float64 { return &v }

func validCustom(id string) models.Pattern {
	return models.Pattern{
		ID:       id,
		Name:     "Quality Compounders",
		Category: "quality",
		FundamentalCriteria: models.FundamentalCriteria{
			"roe_percent": {Min: ptr(20)},
			"pe_ratio":    {Min: ptr(0), Max: ptr(30)},
		},
	}
}

func TestPresets_CatalogueIsValid(t *testing.T) {
	presets, err := Presets()
	require.NoError(t, err)
	require.Len(t, presets, 10)

	byID := make(map[string]models.Pattern)
	for _, p := range presets {
		assert.True(t, p.IsPreset, p.ID)
		assert.NoError(t, Validate(p), p.ID)
		byID[p.ID] = p
	}

	cqr := byID["cheap_quality_reversal"]
	require.NotNil(t, cqr.TechnicalCriteria)
	assert.Equal(t, []string{"golden_cross", "rsi_oversold", "bullish_macd"}, cqr.TechnicalCriteria.Signals)
	assert.Equal(t, 70.0, cqr.TechnicalCriteria.MinSignalStrength)
	assert.Equal(t, 0.4, *cqr.FundamentalCriteria["debt_to_assets"].Max)
	assert.Equal(t, PresetSortSignalStrength, cqr.SortBy)

	garp := byID["garp"]
	assert.False(t, garp.HasTechnical())
	assert.Len(t, garp.FundamentalCriteria, 4)

	blue := byID["blue_chip_quality"]
	assert.Nil(t, blue.FundamentalCriteria["market_cap"].Max)
	assert.Equal(t, 1e10, *blue.FundamentalCriteria["market_cap"].Min)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *models.Pattern)
	}{
		{"uppercase id", func(p *models.Pattern) { p.ID = "Bad-ID" }},
		{"missing name", func(p *models.Pattern) { p.Name = "" }},
		{"missing category", func(p *models.Pattern) { p.Category = "" }},
		{"unknown metric", func(p *models.Pattern) { p.FundamentalCriteria["roe"] = models.Bound{Min: ptr(1)} }},
		{"inverted bound", func(p *models.Pattern) { p.FundamentalCriteria["pe_ratio"] = models.Bound{Min: ptr(40), Max: ptr(10)} }},
		{"strength above 100", func(p *models.Pattern) {
			p.TechnicalCriteria = &models.TechnicalCriteria{Signals: []string{"golden_cross"}, MinSignalStrength: 120}
		}},
		{"empty signal fragment", func(p *models.Pattern) {
			p.TechnicalCriteria = &models.TechnicalCriteria{Signals: []string{""}}
		}},
		{"unknown sort key", func(p *models.Pattern) { p.SortBy = "volume" }},
		{"signal_strength on custom", func(p *models.Pattern) { p.SortBy = PresetSortSignalStrength }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validCustom("valid_id")
			tt.mutate(&p)
			err := Validate(p)
			if !apperrors.Is(err, apperrors.ErrInvalidPattern) {
				t.Errorf("Validate() error = %v, want ErrInvalidPattern", err)
			}
		})
	}
}

func TestValidate_SentinelMaxIsUnbounded(t *testing.T) {
	p := validCustom("sentinel")
	p.FundamentalCriteria["roe_percent"] = models.Bound{Min: ptr(1500), Max: ptr(999)}
	assert.NoError(t, Validate(p))
}

func TestService_CreateAppliesDefaults(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	p := validCustom("my_quality")
	p.IsPreset = true
	created, err := svc.Create(ctx, p)
	require.NoError(t, err)
	assert.False(t, created.IsPreset)
	assert.Equal(t, models.SortByMatchScore, created.SortBy)
	assert.Equal(t, "user", created.CreatedBy)

	_, err = svc.Create(ctx, p)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateID)

	counts, err := svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PatternCounts{Preset: 0, Custom: 1, Total: 1}, counts)
}

func TestService_SeedPresetsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	n, err := svc.SeedPresets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	_, err = svc.SeedPresets(ctx)
	require.NoError(t, err)

	counts, err := svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, counts.Preset)
	assert.Equal(t, 10, counts.Total)

	growth, err := svc.ListByCategory(ctx, "growth")
	require.NoError(t, err)
	assert.Len(t, growth, 3)

	name := "Renamed"
	_, err = svc.Update(ctx, "garp", models.PatternUpdate{Name: &name})
	assert.ErrorIs(t, err, apperrors.ErrPresetImmutable)
	assert.ErrorIs(t, svc.Delete(ctx, "garp"), apperrors.ErrPresetImmutable)
}

func TestService_UpdateAndDeleteInvalidateCache(t *testing.T) {
	ctx := context.Background()
	svc, cache := newTestService(t)

	_, err := svc.Create(ctx, validCustom("mine"))
	require.NoError(t, err)

	bad := "not_a_metric"
	_, err = svc.Update(ctx, "mine", models.PatternUpdate{SortBy: &bad})
	assert.ErrorIs(t, err, apperrors.ErrInvalidPattern)
	assert.Empty(t, cache.cleared)

	sortBy := "roe_percent"
	updated, err := svc.Update(ctx, "mine", models.PatternUpdate{SortBy: &sortBy})
	require.NoError(t, err)
	assert.Equal(t, "roe_percent", updated.SortBy)
	assert.Equal(t, "Quality Compounders", updated.Name)
	assert.Equal(t, []string{"mine"}, cache.cleared)

	require.NoError(t, svc.Delete(ctx, "mine"))
	assert.Equal(t, []string{"mine", "mine"}, cache.cleared)

	_, err = svc.Get(ctx, "mine")
	assert.ErrorIs(t, err, apperrors.ErrPatternNotFound)
}

func TestService_ListKeepsPresetsFirst(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.SeedPresets(ctx)
	require.NoError(t, err)
	_, err = svc.Create(ctx, validCustom("aaa_first_alphabetically"))
	require.NoError(t, err)

	all, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 11)
	assert.False(t, all[10].IsPreset)
	assert.Equal(t, "aaa_first_alphabetically", all[10].ID)

	presets, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, presets, 10)
}

func TestService_LogsCarryPatternID(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "patterns.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	var logs bytes.Buffer
	cache := &recordingCache{}
	svc := NewService(st, cache, zerolog.New(&logs))

	_, err = svc.Create(ctx, validCustom("logged"))
	require.NoError(t, err)
	name := "Logged"
	_, err = svc.Update(ctx, "logged", models.PatternUpdate{Name: &name})
	require.NoError(t, err)

	cache.clearErr = errors.New("redis down")
	require.NoError(t, svc.Delete(ctx, "logged"))

	out := logs.String()
	for _, msg := range []string{"Pattern created", "Pattern updated", "Pattern deleted", "Failed to invalidate cached results"} {
		assert.Contains(t, out, msg)
	}
	assert.Equal(t, 4, bytes.Count(logs.Bytes(), []byte(`"pattern_id":"logged"`)))
}
