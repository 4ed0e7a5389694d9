package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery signals a missing or undecodable search query string.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidDocuments signals a rejected document batch.
	ErrInvalidDocuments = errors.New("invalid documents")

	// ErrUpstreamUnavailable signals the search backend could not be reached in time.
	ErrUpstreamUnavailable = errors.New("search backend unavailable")
	// ErrUpstreamAuth signals the backend rejected the configured credential.
	ErrUpstreamAuth = errors.New("search backend rejected credentials")
	// ErrUpstreamFailure signals a backend-side error response.
	ErrUpstreamFailure = errors.New("search backend error")
	// ErrUpstreamResponse signals a response the facade could not decode.
	ErrUpstreamResponse = errors.New("malformed search backend response")
	// ErrIndexingFailed signals a finished indexing task that did not succeed.
	ErrIndexingFailed = errors.New("indexing failed")
	// ErrTaskNotFound signals an unknown task uid.
	ErrTaskNotFound = errors.New("task not found")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// IndexingError wraps ErrIndexingFailed with the backend's task details.
type IndexingError struct {
	TaskUID int64
	Status  TaskStatus
	Reason  string
}

func (e *IndexingError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: task %d %s", ErrIndexingFailed.Error(), e.TaskUID, e.Status)
	}
	return fmt.Sprintf("%s: task %d %s: %s", ErrIndexingFailed.Error(), e.TaskUID, e.Status, e.Reason)
}

func (e *IndexingError) Unwrap() error { return ErrIndexingFailed }
