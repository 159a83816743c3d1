package observability

import (
	"time"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the assistant.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration      *prometheus.HistogramVec
	externalErrors       *prometheus.CounterVec
	cacheHits            *prometheus.CounterVec
	cacheMisses          *prometheus.CounterVec
	tokensUsed           *prometheus.CounterVec
	requestsTotal        *prometheus.CounterVec
	intentsDispatched    *prometheus.CounterVec
	classifierFallbacks  prometheus.Counter
	duplicatesSuppressed prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vita_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vita_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vita_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vita_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vita_llm_tokens_total",
				Help: "Total model tokens consumed.",
			},
			[]string{"type"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vita_requests_total",
				Help: "Total chat requests processed.",
			},
			[]string{"status"},
		),
		intentsDispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vita_intents_dispatched_total",
				Help: "Total intents dispatched by tool.",
			},
			[]string{"tool"},
		),
		classifierFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "vita_classifier_fallbacks_total",
				Help: "Total category classifications that needed the model fallback.",
			},
		),
		duplicatesSuppressed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "vita_duplicates_suppressed_total",
				Help: "Total food log entries suppressed as duplicates.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrIntentDispatched increments the per-tool dispatch counter.
func (m *Metrics) IncrIntentDispatched(tool string) {
	m.intentsDispatched.WithLabelValues(tool).Inc()
}

// IncrClassifierFallback increments the classifier fallback counter.
func (m *Metrics) IncrClassifierFallback() {
	m.classifierFallbacks.Inc()
}

// IncrDuplicateSuppressed increments the duplicate suppression counter.
func (m *Metrics) IncrDuplicateSuppressed() {
	m.duplicatesSuppressed.Inc()
}

// GetAssistantSnapshot returns a snapshot of usage metrics suitable for the
// GET /v1/metrics/assistant endpoint.
func (m *Metrics) GetAssistantSnapshot() *domain.AssistantMetrics {
	// Prometheus counters expose cumulative values.
	promptTokens := getCounterValue(m.tokensUsed, "prompt")
	completionTokens := getCounterValue(m.tokensUsed, "completion")
	totalRequests := getCounterValue(m.requestsTotal, "success") +
		getCounterValue(m.requestsTotal, "error")
	errorCount := getCounterValue(m.requestsTotal, "error")
	cacheHits := getCounterValue(m.cacheHits, "nutrition")
	cacheMisses := getCounterValue(m.cacheMisses, "nutrition")
	fallbacks := getCounterValueNoLabels(m.classifierFallbacks)
	duplicates := getCounterValueNoLabels(m.duplicatesSuppressed)

	totalTokens := promptTokens + completionTokens
	avgTokens := float64(0)
	errorRate := float64(0)
	fallbackRate := float64(0)
	cacheHitRate := float64(0)

	if totalRequests > 0 {
		avgTokens = totalTokens / totalRequests
		errorRate = errorCount / totalRequests
		fallbackRate = fallbacks / totalRequests
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	// Estimated cost: ~$3/1M prompt tokens, ~$15/1M completion tokens.
	estimatedCost := (promptTokens/1_000_000)*3.0 + (completionTokens/1_000_000)*15.0

	return &domain.AssistantMetrics{
		TotalRequests:        int64(totalRequests),
		ErrorRate:            errorRate,
		FallbackRate:         fallbackRate,
		AvgTokensPerRequest:  avgTokens,
		EstimatedCostUsd:     estimatedCost,
		CacheHitRate:         cacheHitRate,
		DuplicatesSuppressed: int64(duplicates),
		Period:               "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getCounterValueNoLabels(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
