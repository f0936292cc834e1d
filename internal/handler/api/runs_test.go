package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"FinForecast/internal/domain/models"
	"FinForecast/internal/repository"
	"FinForecast/internal/service/ratelimit"
	"FinForecast/pkg/cache"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func sampleReport() *models.RunReport {
	cfg := models.ModelConfig{HiddenWidth: 8, Depth: 1, LearningRate: 0.01, BatchSize: 4}
	trial := func(v models.Variant, idx int, loss float64) models.TrialResult {
		c := cfg
		c.Variant = v
		return models.TrialResult{Index: idx, Config: c, ValidationLoss: loss, Status: models.TrialOK}
	}
	failed := models.TrialResult{Index: 2, Config: cfg, Status: models.TrialFailed, Error: "non-finite loss"}

	simple := []models.TrialResult{trial(models.VariantSimple, 0, 0.3), trial(models.VariantSimple, 1, 0.1), failed}
	gru := []models.TrialResult{trial(models.VariantGRU, 0, 0.2), trial(models.VariantGRU, 1, 0.4)}
	return &models.RunReport{
		RunID:  "run-1",
		Symbol: "TEST",
		Variants: []models.VariantReport{
			{Variant: models.VariantSimple, Trials: simple, Ranked: []models.TrialResult{simple[1], simple[0]}, Best: simple[1]},
			{Variant: models.VariantGRU, Trials: gru, Ranked: gru, Best: gru[0],
				Metrics: models.Metrics{MSE: 1, MAE: 1, R2: models.UndefinedR2()}},
		},
	}
}

func newTestServer(t *testing.T, limiter *ratelimit.Limiter, checks map[string]HealthCheck) (*echo.Echo, *repository.CacheReportStore) {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	store := repository.NewCacheReportStore(mc, time.Hour)

	e := echo.New()
	NewRunsHandler(nil, store, limiter, checks).RegisterRoutes(e)
	return e, store
}

func do(e *echo.Echo, target string) (*httptest.ResponseRecorder, envelope) {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestLatestAndGet(t *testing.T) {
	e, store := newTestServer(t, nil, nil)

	rec, _ := do(e, "/api/runs/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, store.Write(context.Background(), sampleReport()))

	rec, env := do(e, "/api/runs/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.RunReport
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "run-1", got.RunID)
	gru, ok := got.Variant(models.VariantGRU)
	require.True(t, ok)
	assert.False(t, gru.Metrics.R2.Defined)

	rec, _ = do(e, "/api/runs/run-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderCacheControl), "max-age")

	rec, _ = do(e, "/api/runs/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrials(t *testing.T) {
	e, store := newTestServer(t, nil, nil)
	require.NoError(t, store.Write(context.Background(), sampleReport()))

	var list struct {
		Rows  []models.TrialRow `json:"rows"`
		Total int64             `json:"total"`
	}

	rec, env := do(e, "/api/runs/run-1/trials")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 5, list.Total)
	require.Len(t, list.Rows, 5)
	assert.Equal(t, 1, list.Rows[0].Rank)
	assert.Equal(t, 0.1, list.Rows[0].ValidationLoss)
	assert.Equal(t, models.TrialFailed, list.Rows[2].Status)
	assert.Equal(t, 0, list.Rows[2].Rank)

	rec, env = do(e, "/api/runs/run-1/trials?variant=gru&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 2, list.Total)
	require.Len(t, list.Rows, 1)
	assert.Equal(t, models.VariantGRU, list.Rows[0].Variant)

	rec, _ = do(e, "/api/runs/run-1/trials?variant=transformer")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(e, "/api/runs/run-1/trials?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	e, store := newTestServer(t, ratelimit.New(1, 0.001), nil)
	require.NoError(t, store.Write(context.Background(), sampleReport()))

	rec, _ := do(e, "/api/runs/run-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(e, "/api/runs/run-1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// health is outside the limited group
	rec, _ = do(e, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t, nil, map[string]HealthCheck{
		"cache":      func(context.Context) error { return nil },
		"clickhouse": func(context.Context) error { return errors.New("connection refused") },
	})

	rec, env := do(e, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "ok", status["cache"])
	assert.Equal(t, "connection refused", status["clickhouse"])
}
