package models

import "time"

// CohortQuery carries optional overrides for pass-rate reports.
type CohortQuery struct {
	Threshold  *float64
	Comparison string
	Detail     bool
}

// SystemMetrics is a point-in-time snapshot of service instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"avg_db_query_duration_ms"`
	AggregationsTotal        uint64    `json:"aggregations_total"`
	RecordsAggregated        uint64    `json:"records_aggregated"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
