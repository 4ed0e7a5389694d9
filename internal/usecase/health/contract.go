package health

import "context"

// Pinger is a backend answering a cheap liveness probe: Meilisearch /health or Redis PING.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks the embedding provider used for hybrid search.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
