package moviedex

import "github.com/kailas-cloud/moviedex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidDocuments       = domain.ErrInvalidDocuments
	ErrUpstreamUnavailable    = domain.ErrUpstreamUnavailable
	ErrUpstreamAuth           = domain.ErrUpstreamAuth
	ErrUpstreamFailure        = domain.ErrUpstreamFailure
	ErrUpstreamResponse       = domain.ErrUpstreamResponse
	ErrIndexingFailed         = domain.ErrIndexingFailed
	ErrTaskNotFound           = domain.ErrTaskNotFound
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
