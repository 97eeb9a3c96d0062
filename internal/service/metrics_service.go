package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
)

const metricsNamespace = "sma"

var operationBuckets = []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// MetricsService owns the Prometheus registry and keeps running totals for the
// JSON snapshot served next to the performance summary. A nil *MetricsService
// is valid and records nothing.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec

	cacheLookups   *prometheus.CounterVec
	cacheLatency   prometheus.Histogram
	cacheWrites    prometheus.Histogram
	cacheHitRatio  prometheus.Gauge
	cacheErrors    *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec
	cacheDisabled  prometheus.Gauge

	queryDuration     *prometheus.HistogramVec
	operationDuration *prometheus.HistogramVec
	slowOperations    *prometheus.CounterVec
	calculations      *prometheus.CounterVec
	batchStudents     prometheus.Counter
	syncRecords       *prometheus.CounterVec

	hits, misses, cacheErrs atomic.Uint64
	requests, requestNanos  atomic.Uint64
	queries, queryNanos     atomic.Uint64
	calcTotal, calcFailed   atomic.Uint64
}

// NewMetricsService builds a service on a private registry.
func NewMetricsService() *MetricsService {
	m := &MetricsService{registry: prometheus.NewRegistry()}

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Subsystem: "http", Name: "request_duration_seconds",
		Help: "Duration of HTTP requests in seconds", Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "http", Name: "requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "cache", Name: "lookups_total",
		Help: "Cache lookups by tier and result",
	}, []string{"tier", "result"})
	m.cacheLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Subsystem: "cache", Name: "read_seconds",
		Help: "Latency of cache reads", Buckets: prometheus.DefBuckets,
	})
	m.cacheWrites = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Subsystem: "cache", Name: "write_seconds",
		Help: "Latency of cache writes", Buckets: prometheus.DefBuckets,
	})
	m.cacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace, Subsystem: "cache", Name: "hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})
	m.cacheErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "cache", Name: "errors_total",
		Help: "Cache backend failures by operation",
	}, []string{"operation"})
	m.cacheEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "cache", Name: "evicted_keys_total",
		Help: "Keys removed by invalidation or quota eviction, by tier",
	}, []string{"tier"})
	m.cacheDisabled = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace, Subsystem: "cache", Name: "disabled",
		Help: "1 while the cache is in its failure cooldown",
	})

	m.queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Subsystem: "db", Name: "query_duration_seconds",
		Help: "Duration of data-source queries", Buckets: prometheus.DefBuckets,
	}, []string{"query"})
	m.operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Subsystem: "scoring", Name: "operation_duration_seconds",
		Help: "Duration of monitored scoring operations", Buckets: operationBuckets,
	}, []string{"category", "name"})
	m.slowOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "scoring", Name: "slow_operations_total",
		Help: "Operations exceeding their category threshold",
	}, []string{"category"})
	m.calculations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "scoring", Name: "calculations_total",
		Help: "Score calculations by outcome",
	}, []string{"outcome"})
	m.batchStudents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "scoring", Name: "batch_students_total",
		Help: "Students processed by the batch processor",
	})
	m.syncRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "sync", Name: "records_total",
		Help: "Extra-score records written by the sync engine",
	}, []string{"category", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace, Name: "goroutines",
		Help: "Number of live goroutines",
	}, func() float64 { return float64(runtime.NumGoroutine()) })

	m.registry.MustRegister(
		m.httpDuration, m.httpRequests,
		m.cacheLookups, m.cacheLatency, m.cacheWrites, m.cacheHitRatio, m.cacheErrors, m.cacheEvictions, m.cacheDisabled,
		m.queryDuration, m.operationDuration, m.slowOperations, m.calculations, m.batchStudents, m.syncRecords,
		goroutines,
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.httpRequests.WithLabelValues(method, path, code).Inc()
	m.requests.Add(1)
	m.requestNanos.Add(uint64(duration))
}

// RecordCacheOperation records a lookup against tier and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(tier CacheTier, hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
	m.cacheLookups.WithLabelValues(string(tier), result).Inc()
	if ratio, ok := hitRatio(m.hits.Load(), m.misses.Load()); ok {
		m.cacheHitRatio.Set(ratio)
	}
}

// ObserveCacheWrite tracks the duration of a cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrites.Observe(duration.Seconds())
}

// RecordCacheError counts a backend failure for the operation.
func (m *MetricsService) RecordCacheError(operation string) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(operation).Inc()
	m.cacheErrs.Add(1)
}

// RecordCacheEviction counts keys removed from a tier.
func (m *MetricsService) RecordCacheEviction(tier string, keys int) {
	if m == nil || keys <= 0 {
		return
	}
	m.cacheEvictions.WithLabelValues(tier).Add(float64(keys))
}

// SetCacheDisabled flags whether the cache is in cooldown.
func (m *MetricsService) SetCacheDisabled(disabled bool) {
	if m == nil {
		return
	}
	var v float64
	if disabled {
		v = 1
	}
	m.cacheDisabled.Set(v)
}

// ObserveDBQuery records data-source query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(label).Observe(duration.Seconds())
	m.queries.Add(1)
	m.queryNanos.Add(uint64(duration))
}

// ObserveOperation mirrors a performance monitor record.
func (m *MetricsService) ObserveOperation(record models.OperationRecord) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(string(record.Category), record.Name).Observe(record.Duration.Seconds())
	if record.Slow {
		m.slowOperations.WithLabelValues(string(record.Category)).Inc()
	}
	switch record.Category {
	case models.OperationQuery:
		m.ObserveDBQuery(record.Name, record.Duration)
	case models.OperationBatch:
		if record.Meta.StudentCount > 0 {
			m.batchStudents.Add(float64(record.Meta.StudentCount))
		}
	}
}

// RecordCalculation counts a calculation outcome, labelled by error code on failure.
func (m *MetricsService) RecordCalculation(result models.CalculationResult) {
	if m == nil {
		return
	}
	m.calcTotal.Add(1)
	outcome := "passed"
	switch {
	case !result.Success:
		outcome = result.Error
		m.calcFailed.Add(1)
	case !result.Passed:
		outcome = "failed"
	}
	m.calculations.WithLabelValues(outcome).Inc()
}

// RecordSync counts written and failed records for a sync run.
func (m *MetricsService) RecordSync(result models.SyncResult) {
	if m == nil {
		return
	}
	category := string(result.Category)
	if result.UpdatedCount > 0 {
		m.syncRecords.WithLabelValues(category, "updated").Add(float64(result.UpdatedCount))
	}
	if result.FailedCount > 0 {
		m.syncRecords.WithLabelValues(category, "failed").Add(float64(result.FailedCount))
	}
}

// Snapshot returns the running totals.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	hits, misses := m.hits.Load(), m.misses.Load()
	ratio, _ := hitRatio(hits, misses)
	requests, queries := m.requests.Load(), m.queries.Load()
	return models.MetricsSnapshot{
		CacheHitRatio:            ratio,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheErrors:              m.cacheErrs.Load(),
		RequestsTotal:            requests,
		AverageRequestDurationMs: averageMillis(m.requestNanos.Load(), requests),
		DBQueryCount:             queries,
		AverageDBQueryDurationMs: averageMillis(m.queryNanos.Load(), queries),
		CalculationsTotal:        m.calcTotal.Load(),
		CalculationsFailed:       m.calcFailed.Load(),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func hitRatio(hits, misses uint64) (float64, bool) {
	total := hits + misses
	if total == 0 {
		return 0, false
	}
	return float64(hits) / float64(total), true
}

func averageMillis(totalNanos, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(totalNanos) / float64(count) / float64(time.Millisecond)
}
