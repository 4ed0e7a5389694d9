package movie

import (
	"context"
	"time"

	"github.com/kailas-cloud/moviedex/internal/db/meili"
	"github.com/kailas-cloud/moviedex/internal/domain"
	"github.com/kailas-cloud/moviedex/internal/domain/search/result"
	"github.com/kailas-cloud/moviedex/internal/repository/searchcache"
)

// Gateway is the search backend contract.
type Gateway interface {
	Search(ctx context.Context, index, query string, opts meili.SearchOptions) (result.Envelope, error)
	AddDocuments(ctx context.Context, index string, docs []domain.Document, primaryKey string) (domain.Ack, error)
	GetTask(ctx context.Context, uid int64) (domain.Ack, error)
	WaitForTask(ctx context.Context, uid int64, interval time.Duration) (domain.Ack, error)
	UpdateEmbedder(ctx context.Context, index, name string, dimensions int) (domain.Ack, error)
}

// Cache caches search responses per index.
type Cache interface {
	Search(ctx context.Context, index, query string, load searchcache.LoadFunc) (result.Response, error)
	Invalidate(ctx context.Context, index string)
}

// Embedder vectorizes text for hybrid search.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
