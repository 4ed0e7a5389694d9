package chi

import "github.com/kailas-cloud/moviedex/internal/domain"

// ErrorCode is a machine-readable error identifier in error responses.
type ErrorCode string

// Error codes returned to clients.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodeUnauthorized           ErrorCode = "unauthorized"
	ErrorCodeNotFound               ErrorCode = "not_found"
	ErrorCodeMethodNotAllowed       ErrorCode = "method_not_allowed"
	ErrorCodeTaskNotFound           ErrorCode = "task_not_found"
	ErrorCodeUpstreamUnavailable    ErrorCode = "upstream_unavailable"
	ErrorCodeUpstreamError          ErrorCode = "upstream_error"
	ErrorCodeIndexingFailed         ErrorCode = "indexing_failed"
	ErrorCodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// moviesAddedMessage is the /add acknowledgment text.
const moviesAddedMessage = "Movies have been added."

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// MessageResponse is a plain status message.
type MessageResponse struct {
	Message string `json:"message"`
}

// CreateMoviesRequest is the POST /movies body.
type CreateMoviesRequest struct {
	Movies []domain.Movie `json:"movies" validate:"required,min=1,max=1000,dive"`
}

// AcceptedResponse acknowledges an upsert.
type AcceptedResponse struct {
	Message string `json:"message"`
	TaskUID int64  `json:"taskUid"`
	Status  string `json:"status"`
}

// TaskResponse reports an indexing task.
type TaskResponse struct {
	TaskUID int64  `json:"taskUid"`
	Status  string `json:"status"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
