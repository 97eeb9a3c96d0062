package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-scoring/internal/dto"
	"github.com/noah-isme/sma-adp-scoring/internal/models"
	"github.com/noah-isme/sma-adp-scoring/internal/repository"
	"github.com/noah-isme/sma-adp-scoring/internal/service"
	"github.com/noah-isme/sma-adp-scoring/pkg/config"
)

func newMiniredisCache(t *testing.T) (*service.CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return service.NewCacheService(repository.NewCacheRepository(client, nil), nil, nil, service.CacheOptions{Enabled: true}), mr
}

type evictorMock struct{ err error }

func (m evictorMock) EvictTier(context.Context, service.CacheTier) (int, error) { return 3, m.err }

func TestCacheHandlerInvalidate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cache, mr := newMiniredisCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, service.TierScores, service.CalculationKey("S1", "abc"), 1))
	require.NoError(t, cache.Set(ctx, service.TierScores, service.CalculationKey("S2", "abc"), 1))

	r := NewRouter(RouterConfig{Cache: NewCacheHandler(service.NewCacheInvalidator(cache, nil), cache)})
	w := doJSON(t, r, http.MethodPost, "/api/v1/cache/invalidate", dto.InvalidateCacheRequest{
		Event:        service.EventStudentUpdated,
		StudentCodes: []string{"S1"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.InvalidateCacheResponse
	decodeData(t, w, &resp)
	assert.Equal(t, 1, resp.Removed)
	assert.False(t, mr.Exists(cache.Key(service.TierScores, service.CalculationKey("S1", "abc"))))
	assert.True(t, mr.Exists(cache.Key(service.TierScores, service.CalculationKey("S2", "abc"))))

	w = doJSON(t, r, http.MethodPost, "/api/v1/cache/invalidate", dto.InvalidateCacheRequest{Event: "table_dropped"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/v1/cache/tiers/scores", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, mr.Exists(cache.Key(service.TierScores, service.CalculationKey("S2", "abc"))))
}

func TestCacheHandlerEvictTierErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{Cache: NewCacheHandler(nil, evictorMock{err: errors.New("READONLY")})})

	w := doJSON(t, r, http.MethodDelete, "/api/v1/cache/tiers/bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/v1/cache/tiers/live", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAccessCodeHandlerLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cache, _ := newMiniredisCache(t)
	store := service.NewAccessCodeStore(cache, 2, nil)
	r := NewRouter(RouterConfig{AccessCodes: NewAccessCodeHandler(store)})

	w := doJSON(t, r, http.MethodPut, "/api/v1/access-codes/S1", dto.StoreAccessCodeRequest{Code: "X1Y2"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/access-codes/S1/validate", dto.ValidateAccessCodeRequest{Code: "X1Y2"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ValidateAccessCodeResponse
	decodeData(t, w, &resp)
	assert.True(t, resp.Valid)

	for i := 0; i < 2; i++ {
		w = doJSON(t, r, http.MethodPost, "/api/v1/access-codes/S1/validate", dto.ValidateAccessCodeRequest{Code: "nope"})
		require.Equal(t, http.StatusOK, w.Code)
	}
	decodeData(t, w, &resp)
	assert.False(t, resp.Valid)
	assert.True(t, resp.Cleared)

	w = doJSON(t, r, http.MethodPost, "/api/v1/access-codes/S1/validate", dto.ValidateAccessCodeRequest{Code: "X1Y2"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/v1/access-codes/S1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestPerformanceHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	monitor := service.NewPerformanceMonitor(config.MonitorConfig{}, metrics, nil)
	monitor.Record(models.OperationBatch, "process_students", 0, models.OperationMeta{StudentCount: 10, CacheHits: 4, CacheMisses: 6})
	r := NewRouter(RouterConfig{Performance: NewPerformanceHandler(monitor, metrics)})

	w := doJSON(t, r, http.MethodGet, "/api/v1/performance?recent=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Summary models.PerformanceSummary `json:"summary"`
		Recent  []models.OperationRecord  `json:"recent"`
	}
	decodeData(t, w, &data)
	assert.Equal(t, 1, data.Summary.TotalRecords)
	assert.Equal(t, 0.4, data.Summary.CacheHitRate)
	assert.Len(t, data.Recent, 1)

	w = doJSON(t, r, http.MethodPost, "/api/v1/performance/reset", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, monitor.Summary().TotalRecords)
}

func TestMetricsHandlerHealthAndPrometheus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	checks := map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"cache":    func(context.Context) error { return errors.New("connection refused") },
	}
	r := NewRouter(RouterConfig{Metrics: metrics, Observe: NewMetricsHandler(metrics, checks)})

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)

	w = doJSON(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sma_http_requests_total")
	assert.Contains(t, w.Body.String(), "sma_goroutines")

	checks["database"] = func(context.Context) error { return errors.New("timeout") }
	w = doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
