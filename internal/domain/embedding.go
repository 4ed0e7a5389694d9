package domain

import (
	"context"
	"fmt"
)

// Embedder vectorizes query text and movie documents for hybrid search.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
	// BatchEmbed returns one vector per text, in input order.
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker is implemented by embedders that can probe their provider.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is a single vector and the tokens it cost.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds vectors aligned with the input texts.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// Check reports a provider answer that is not aligned with n inputs.
func (r BatchEmbeddingResult) Check(n int) error {
	if len(r.Embeddings) != n {
		return fmt.Errorf("got %d vectors for %d texts: %w", len(r.Embeddings), n, ErrEmbeddingProviderError)
	}
	return nil
}
