package metrics

import "github.com/prometheus/client_golang/prometheus"

// AI provider and ranking pipeline Prometheus metrics.
var (
	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aisearch",
			Name:      "ai_requests_total",
			Help:      "Total number of AI provider requests",
		},
		[]string{"provider", "model", "operation", "status"},
	)

	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aisearch",
			Name:      "ai_request_duration_seconds",
			Help:      "AI provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model", "operation"},
	)

	AITokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aisearch",
			Name:      "ai_tokens_total",
			Help:      "Total AI provider tokens consumed",
		},
		[]string{"provider", "model", "operation", "type"},
	)

	RerankTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aisearch",
			Name:      "rerank_total",
			Help:      "Rerank outcomes per search computation",
		},
		[]string{"outcome"}, // applied / disabled / skipped_high_confidence / failed
	)

	ResultCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aisearch",
			Name:      "result_cache_total",
			Help:      "Result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aisearch",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"},
	)

	RewriteCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aisearch",
			Name:      "rewrite_cache_total",
			Help:      "Rewrite cache hits and misses",
		},
		[]string{"result"},
	)
)

var aiMetricsRegistered bool

// RegisterAIMetrics registers AI and pipeline metrics. Must be called once from main.
func RegisterAIMetrics() {
	if aiMetricsRegistered {
		return
	}
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(AITokensTotal)
	prometheus.MustRegister(RerankTotal)
	prometheus.MustRegister(ResultCacheTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(RewriteCacheTotal)
	aiMetricsRegistered = true
}
