// Package result maps search backend envelopes to the HTTP response shape.
package result

import "github.com/kailas-cloud/moviedex/internal/domain"

// Envelope is what the search backend returned, in relevance order.
type Envelope struct {
	Hits               []domain.Movie
	EstimatedTotalHits int64
	ProcessingTimeMs   int64
}

// Response is the HTTP-facing search result.
type Response struct {
	Movies []domain.Movie `json:"movies"`
}

// ToResponse keeps hit order and drops backend metadata.
// The returned slice is never nil so an empty result encodes as [].
func ToResponse(env Envelope) Response {
	movies := make([]domain.Movie, len(env.Hits))
	copy(movies, env.Hits)
	return Response{Movies: movies}
}
