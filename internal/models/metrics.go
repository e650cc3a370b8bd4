package models

import "time"

// MetricsSnapshot summarises in-process counters for the metrics endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	TransactionsTotal        uint64            `json:"transactions_total"`
	AverageTransactionMs     float64           `json:"average_transaction_ms"`
	Admissions               map[string]uint64 `json:"admissions"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
