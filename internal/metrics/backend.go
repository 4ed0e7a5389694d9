package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search backend, cache and embedding collectors.
var (
	SearchBackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_backend_requests_total",
			Help:      "Calls to the search backend by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	SearchBackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_backend_request_duration_seconds",
			Help:      "Search backend call duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"op"},
	)

	CacheBackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_backend_requests_total",
			Help:      "Redis commands by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	CacheBackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_backend_request_duration_seconds",
			Help:      "Redis command duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"op"},
	)

	SearchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_total",
			Help:      "Search result cache lookups",
		},
		[]string{"result"}, // "hit" / "miss" / "error"
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"model"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			httpRequestsInFlight,
			SearchBackendRequestsTotal,
			SearchBackendRequestDuration,
			CacheBackendRequestsTotal,
			CacheBackendRequestDuration,
			SearchCacheTotal,
			EmbeddingCacheTotal,
			EmbeddingRequestsTotal,
			EmbeddingTokensTotal,
		)
	})
}
