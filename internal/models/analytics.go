package models

import "time"

// RequestAnalytics summarises workflow demand for the analytics endpoints.
type RequestAnalytics struct {
	TotalRequests    int                     `json:"total_requests"`
	ByStatus         map[RequestStatus]int   `json:"by_status"`
	ByPriority       map[RequestPriority]int `json:"by_priority"`
	DatasetDemand    []DatasetDemand         `json:"dataset_demand"`
	CriteriaFlagUse  map[string]int          `json:"criteria_flag_use"`
	AutoApprovedRate float64                 `json:"auto_approved_rate"`
	GeneratedAt      time.Time               `json:"generated_at"`
}

// DatasetDemand counts requests per dataset.
type DatasetDemand struct {
	DatasetID    string `db:"dataset_id" json:"dataset_id"`
	DatasetName  string `db:"dataset_name" json:"dataset_name"`
	RequestCount int    `db:"request_count" json:"request_count"`
}

// SystemMetrics is the lightweight runtime snapshot served alongside analytics.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
