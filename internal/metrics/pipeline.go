package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	NormalizationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "normalization_total",
			Help:      "Phrase normalization outcomes",
		},
		[]string{"segment", "outcome"}, // "exact" / "fuzzy" / "unknown"
	)

	MergeResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "merge_resets_total",
			Help:      "Full session resets triggered by the query edit heuristic",
		},
	)

	ExplanationTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "explanation_timeouts_total",
			Help:      "Explanation calls that timed out and degraded to null",
		},
	)

	InferenceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "inference_requests_total",
			Help:      "Language inference requests",
		},
		[]string{"operation", "status"}, // extract/rewrite/explain, success/error
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scout",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

// RegisterPipelineMetrics registers pipeline metrics explicitly (no init()).
func RegisterPipelineMetrics() {
	prometheus.MustRegister(
		NormalizationTotal,
		MergeResetsTotal,
		ExplanationTimeoutsTotal,
		InferenceRequestsTotal,
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingCacheTotal,
	)
}
