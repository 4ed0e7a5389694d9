package db

import "errors"

// ErrKeyNotFound is returned by KVStore.Get for a missing key.
var ErrKeyNotFound = errors.New("db: key not found")

// Op names used for error context. Cache ops map to Redis commands,
// search ops to Meilisearch API calls.
const (
	OpPing         = "PING"
	OpGet          = "GET"
	OpSet          = "SET"
	OpIncr         = "INCR"
	OpSearch       = "search"
	OpAddDocuments = "add_documents"
	OpGetTask      = "get_task"
	OpWaitTask     = "wait_task"
	OpEmbedders    = "update_embedders"
	OpHealth       = "health"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
