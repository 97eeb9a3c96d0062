package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
	"github.com/noah-isme/sma-adp-scoring/pkg/config"
)

const defaultMonitorEntries = 1000

// PerformanceMonitor keeps a bounded ring of operation timings and flags
// operations slower than their category threshold. All methods are safe on a
// nil receiver so callers may run without monitoring.
type PerformanceMonitor struct {
	mu         sync.Mutex
	records    []models.OperationRecord
	next       int
	size       int
	thresholds map[models.OperationCategory]time.Duration
	metrics    *MetricsService
	logger     *zap.Logger
	closed     bool
	now        func() time.Time
}

// NewPerformanceMonitor constructs a monitor from configuration.
func NewPerformanceMonitor(cfg config.MonitorConfig, metrics *MetricsService, logger *zap.Logger) *PerformanceMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	capacity := cfg.MaxEntries
	if capacity <= 0 {
		capacity = defaultMonitorEntries
	}
	thresholds := map[models.OperationCategory]time.Duration{
		models.OperationCalculation: orDefault(cfg.SlowCalculation, time.Second),
		models.OperationQuery:       orDefault(cfg.SlowQuery, 500*time.Millisecond),
		models.OperationBatch:       orDefault(cfg.SlowBatch, 5*time.Second),
		models.OperationSync:        orDefault(cfg.SlowSync, 10*time.Second),
	}
	return &PerformanceMonitor{
		records:    make([]models.OperationRecord, capacity),
		thresholds: thresholds,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Threshold returns the slow threshold for a category.
func (m *PerformanceMonitor) Threshold(category models.OperationCategory) time.Duration {
	if m == nil {
		return 0
	}
	return m.thresholds[category]
}

// Record appends an operation record, dropping the oldest when full.
func (m *PerformanceMonitor) Record(category models.OperationCategory, name string, duration time.Duration, meta models.OperationMeta) models.OperationRecord {
	if m == nil {
		return models.OperationRecord{}
	}
	threshold := m.thresholds[category]
	record := models.OperationRecord{
		ID:         uuid.NewString(),
		Category:   category,
		Name:       name,
		Duration:   duration,
		Slow:       threshold > 0 && duration > threshold,
		RecordedAt: m.now().UTC(),
		Meta:       meta,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return record
	}
	m.records[m.next] = record
	m.next = (m.next + 1) % len(m.records)
	if m.size < len(m.records) {
		m.size++
	}
	m.mu.Unlock()

	if record.Slow {
		m.logger.Warn("slow operation",
			zap.String("category", string(category)),
			zap.String("name", name),
			zap.Duration("duration", duration),
			zap.Duration("threshold", threshold),
		)
	}
	m.metrics.ObserveOperation(record)
	return record
}

// Start begins timing an operation. The returned function records it.
func (m *PerformanceMonitor) Start(category models.OperationCategory, name string) func(models.OperationMeta) models.OperationRecord {
	started := time.Now()
	return func(meta models.OperationMeta) models.OperationRecord {
		return m.Record(category, name, time.Since(started), meta)
	}
}

// Recent returns up to n records, newest first. n <= 0 returns all.
func (m *PerformanceMonitor) Recent(n int) []models.OperationRecord {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > m.size {
		n = m.size
	}
	out := make([]models.OperationRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (m.next - i + len(m.records)) % len(m.records)
		out = append(out, m.records[idx])
	}
	return out
}

// Summary aggregates the retained records.
func (m *PerformanceMonitor) Summary() models.PerformanceSummary {
	summary := models.PerformanceSummary{
		Categories:  make(map[models.OperationCategory]models.CategorySummary, len(models.OperationCategories)),
		GeneratedAt: time.Now().UTC(),
	}
	if m == nil {
		return summary
	}

	for _, category := range models.OperationCategories {
		summary.Categories[category] = models.CategorySummary{ThresholdMs: millis(m.thresholds[category])}
	}

	var batchDuration time.Duration
	for _, record := range m.Recent(0) {
		cat := summary.Categories[record.Category]
		ms := millis(record.Duration)
		cat.Count++
		cat.TotalDuration += ms
		if ms > cat.MaxMs {
			cat.MaxMs = ms
		}
		if record.Slow {
			cat.SlowCount++
			summary.SlowOperations++
		}
		if record.Meta.Failed {
			cat.FailedCount++
		}
		summary.Categories[record.Category] = cat
		summary.TotalRecords++

		if record.Category == models.OperationBatch {
			summary.BatchStudentsProcessed += record.Meta.StudentCount
			summary.CacheHits += record.Meta.CacheHits
			summary.CacheMisses += record.Meta.CacheMisses
			batchDuration += record.Duration
		}
	}

	for category, cat := range summary.Categories {
		if cat.Count > 0 {
			cat.AverageMs = round2ms(cat.TotalDuration / float64(cat.Count))
			cat.TotalDuration = round2ms(cat.TotalDuration)
			cat.MaxMs = round2ms(cat.MaxMs)
			summary.Categories[category] = cat
		}
	}
	if batchDuration > 0 {
		summary.BatchThroughputPerSecond = round2ms(float64(summary.BatchStudentsProcessed) / batchDuration.Seconds())
	}
	if lookups := summary.CacheHits + summary.CacheMisses; lookups > 0 {
		summary.CacheHitRate = round2ms(float64(summary.CacheHits) / float64(lookups))
	}
	return summary
}

// Reset drops every retained record.
func (m *PerformanceMonitor) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		m.records[i] = models.OperationRecord{}
	}
	m.next = 0
	m.size = 0
}

// Close stops accepting records. Retained records stay readable.
func (m *PerformanceMonitor) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func round2ms(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
