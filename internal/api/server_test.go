package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-screener/internal/analysis/scoring"
	"equity-screener/internal/config"
	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/models"
	"equity-screener/internal/patterns"
	"equity-screener/internal/store"
)

type fakeSignals struct {
	lastFilter models.SignalFilter
	records    []models.SignalRecord
}

func (f *fakeSignals) Query(ctx context.Context, filter models.SignalFilter) ([]models.SignalRecord, error) {
	f.lastFilter = filter
	return f.records, nil
}

func (f *fakeSignals) TopOpportunities(ctx context.Context, limit int) ([]models.SignalRecord, error) {
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeSignals) SignalsByType(ctx context.Context, category models.SignalCategory, minStrength float64, limit int) ([]models.SignalRecord, error) {
	return f.Query(ctx, models.SignalFilter{Category: category, MinStrength: minStrength, ActiveOnly: true, Limit: limit})
}

func (f *fakeSignals) SignalsForStock(ctx context.Context, stockID string, activeOnly bool) ([]models.SignalRecord, error) {
	return f.Query(ctx, models.SignalFilter{StockID: stockID, ActiveOnly: activeOnly})
}

func (f *fakeSignals) DetectForStock(ctx context.Context, stockID string, persist bool) ([]models.Signal, error) {
	if stockID == "MISSING" {
		return nil, apperrors.ErrStockNotFound
	}
	if stockID == "BROKEN" {
		return nil, errors.New("corrupt series")
	}
	return []models.Signal{{Name: "Golden Cross", Category: models.CategoryTrend, Strength: 60}}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   bool            `json:"error"`
	Message string          `json:"message"`
}

type testEnv struct {
	server  *Server
	store   *store.SQLiteStore
	signals *fakeSignals
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := patterns.NewService(st, st, zerolog.Nop())
	_, err = svc.SeedPresets(context.Background())
	require.NoError(t, err)

	engine := scoring.NewEngine(scoring.DefaultEngineConfig(), st, st, st, st, zerolog.Nop())
	sig := &fakeSignals{}
	srv := NewServer(config.APIConfig{ListenAddr: ":0"}, svc, engine, sig, st, zerolog.Nop())
	return &testEnv{server: srv, store: st, signals: sig}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestPatterns_ListAndCounts(t *testing.T) {
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodGet, "/api/patterns?include_custom=false", nil)
	require.Equal(t, http.StatusOK, code)
	var list []models.Pattern
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Len(t, list, 10)

	code, resp = env.do(t, http.MethodGet, "/api/patterns?category=value", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Len(t, list, 2)

	code, resp = env.do(t, http.MethodGet, "/api/patterns/counts", nil)
	require.Equal(t, http.StatusOK, code)
	var counts models.PatternCounts
	require.NoError(t, json.Unmarshal(resp.Data, &counts))
	assert.Equal(t, models.PatternCounts{Preset: 10, Custom: 0, Total: 10}, counts)

	code, _ = env.do(t, http.MethodGet, "/api/patterns?include_custom=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPatterns_CRUDStatusCodes(t *testing.T) {
	env := newTestEnv(t)
	minROE := 20.0
	body := models.Pattern{
		ID:                  "my_quality",
		Name:                "My Quality",
		Category:            "quality",
		FundamentalCriteria: models.FundamentalCriteria{"roe_percent": {Min: &minROE}},
	}

	code, resp := env.do(t, http.MethodPost, "/api/patterns", body)
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var created models.Pattern
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, models.SortByMatchScore, created.SortBy)
	assert.False(t, created.IsPreset)

	code, _ = env.do(t, http.MethodPost, "/api/patterns", body)
	assert.Equal(t, http.StatusConflict, code)

	bad := body
	bad.ID = "Bad ID"
	code, _ = env.do(t, http.MethodPost, "/api/patterns", bad)
	assert.Equal(t, http.StatusBadRequest, code)

	name := "Renamed"
	code, resp = env.do(t, http.MethodPut, "/api/patterns/my_quality", models.PatternUpdate{Name: &name})
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, _ = env.do(t, http.MethodPut, "/api/patterns/garp", models.PatternUpdate{Name: &name})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = env.do(t, http.MethodPut, "/api/patterns/my_quality", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodDelete, "/api/patterns/garp", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = env.do(t, http.MethodDelete, "/api/patterns/my_quality", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodGet, "/api/patterns/my_quality", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPatterns_RunAndClearCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	roe, pe := 18.0, 12.0
	require.NoError(t, env.store.SaveFundamentals(ctx, models.FundamentalSnapshot{
		StockID: "AAA", Year: 2024, Quarter: 1,
		Metrics: map[string]*float64{"roe_percent": &roe, "pe_ratio": &pe},
	}))

	minROE := 15.0
	code, _ := env.do(t, http.MethodPost, "/api/patterns", models.Pattern{
		ID: "quality_run", Name: "Quality", Category: "quality",
		FundamentalCriteria: models.FundamentalCriteria{"roe_percent": {Min: &minROE}},
	})
	require.Equal(t, http.StatusCreated, code)

	code, resp := env.do(t, http.MethodPost, "/api/patterns/quality_run/run", map[string]interface{}{"use_cache": false})
	require.Equal(t, http.StatusOK, code, resp.Message)
	var run struct {
		Count   int                  `json:"count"`
		Results []models.MatchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &run))
	require.Equal(t, 1, run.Count)
	assert.Equal(t, "AAA", run.Results[0].StockID)
	assert.Equal(t, 80.0, run.Results[0].MatchScore)

	cached, hit, err := env.store.GetCached(ctx, "quality_run", time.Hour)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Len(t, cached, 1)

	code, resp = env.do(t, http.MethodDelete, "/api/patterns/quality_run/cache", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"cleared":1`)

	code, _ = env.do(t, http.MethodPost, "/api/patterns/nope/run", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSignals_QueryParams(t *testing.T) {
	env := newTestEnv(t)
	env.signals.records = []models.SignalRecord{
		{StockID: "AAA", Signal: models.Signal{Name: "RSI Oversold", Strength: 65}},
		{StockID: "BBB", Signal: models.Signal{Name: "Golden Cross", Strength: 60}},
	}

	code, resp := env.do(t, http.MethodGet, "/api/signals?stock_id=AAA&category=momentum&min_strength=50&active_only=false&limit=5", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.Equal(t, models.SignalFilter{
		StockID: "AAA", Category: models.CategoryMomentum, MinStrength: 50, ActiveOnly: false, Limit: 5,
	}, env.signals.lastFilter)

	code, _ = env.do(t, http.MethodGet, "/api/signals?category=astrology", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodGet, "/api/signals?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = env.do(t, http.MethodGet, "/api/signals/top?limit=1", nil)
	require.Equal(t, http.StatusOK, code)
	var top []models.SignalRecord
	require.NoError(t, json.Unmarshal(resp.Data, &top))
	assert.Len(t, top, 1)

	code, _ = env.do(t, http.MethodGet, "/api/signals/types/volume?min_strength=70&limit=3", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.SignalFilter{
		Category: models.CategoryVolume, MinStrength: 70, ActiveOnly: true, Limit: 3,
	}, env.signals.lastFilter)

	code, _ = env.do(t, http.MethodGet, "/api/signals/types/astrology", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodGet, "/api/stocks/BBCA/signals?active_only=false", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.SignalFilter{StockID: "BBCA"}, env.signals.lastFilter)
}

func TestSignals_DetectStock(t *testing.T) {
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/stocks/AAA/signals/detect", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), "Golden Cross")

	code, _ = env.do(t, http.MethodPost, "/api/stocks/MISSING/signals/detect", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRequestLogger_FailuresCarryRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	srv := NewServer(config.APIConfig{ListenAddr: ":0"}, nil, nil, &fakeSignals{}, nil, zerolog.New(&logs))

	req := httptest.NewRequest(http.MethodPost, "/api/stocks/BROKEN/signals/detect", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var failed map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["message"] == "Request failed" {
			failed = entry
		}
	}
	require.NotNil(t, failed, logs.String())
	assert.Equal(t, "POST /api/stocks/:id/signals/detect", failed["operation"])
	assert.NotEmpty(t, failed["request_id"])
	assert.Equal(t, "corrupt series", failed["error"])
}
