package models

import "time"

// OperationCategory classifies monitored operations.
type OperationCategory string

const (
	OperationCalculation OperationCategory = "calculation"
	OperationBatch       OperationCategory = "batch"
	OperationQuery       OperationCategory = "query"
	OperationSync        OperationCategory = "sync"
)

// OperationCategories lists every monitored category.
var OperationCategories = []OperationCategory{OperationCalculation, OperationBatch, OperationQuery, OperationSync}

// OperationMeta carries optional counters attached to a record.
type OperationMeta struct {
	StudentCount int  `json:"student_count,omitempty"`
	CacheHits    int  `json:"cache_hits,omitempty"`
	CacheMisses  int  `json:"cache_misses,omitempty"`
	Failed       bool `json:"failed,omitempty"`
}

// OperationRecord is a single timestamped monitor entry.
type OperationRecord struct {
	ID         string            `json:"id"`
	Category   OperationCategory `json:"category"`
	Name       string            `json:"name"`
	Duration   time.Duration     `json:"duration_ns"`
	Slow       bool              `json:"slow"`
	RecordedAt time.Time         `json:"recorded_at"`
	Meta       OperationMeta     `json:"meta"`
}

// CategorySummary aggregates records for one category.
type CategorySummary struct {
	Count         int     `json:"count"`
	AverageMs     float64 `json:"average_ms"`
	MaxMs         float64 `json:"max_ms"`
	SlowCount     int     `json:"slow_count"`
	FailedCount   int     `json:"failed_count"`
	ThresholdMs   float64 `json:"threshold_ms"`
	TotalDuration float64 `json:"total_duration_ms"`
}

// PerformanceSummary is the aggregate view exposed by the monitor.
type PerformanceSummary struct {
	TotalRecords             int                                   `json:"total_records"`
	Categories               map[OperationCategory]CategorySummary `json:"categories"`
	SlowOperations           int                                   `json:"slow_operations"`
	BatchStudentsProcessed   int                                   `json:"batch_students_processed"`
	BatchThroughputPerSecond float64                               `json:"batch_throughput_per_second"`
	CacheHits                int                                   `json:"cache_hits"`
	CacheMisses              int                                   `json:"cache_misses"`
	CacheHitRate             float64                               `json:"cache_hit_rate"`
	GeneratedAt              time.Time                             `json:"generated_at"`
}

// MetricsSnapshot is a lightweight view of process-wide counters.
type MetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheErrors              uint64    `json:"cache_errors"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	CalculationsTotal        uint64    `json:"calculations_total"`
	CalculationsFailed       uint64    `json:"calculations_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
