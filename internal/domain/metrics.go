package domain

// AssistantMetrics is a point-in-time usage snapshot served by the
// GET /v1/metrics/assistant endpoint.
type AssistantMetrics struct {
	TotalRequests        int64   `json:"total_requests"`
	ErrorRate            float64 `json:"error_rate"`
	FallbackRate         float64 `json:"fallback_rate"`
	AvgTokensPerRequest  float64 `json:"avg_tokens_per_request"`
	EstimatedCostUsd     float64 `json:"estimated_cost_usd"`
	CacheHitRate         float64 `json:"cache_hit_rate"`
	DuplicatesSuppressed int64   `json:"duplicates_suppressed"`
	Period               string  `json:"period"`
}
