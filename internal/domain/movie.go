package domain

import "strings"

// Index defaults.
const (
	DefaultIndex      = "movies"
	DefaultPrimaryKey = "id"
	// MaxBatchSize bounds a single POST /movies upload.
	MaxBatchSize = 1000
)

// Movie is the searchable document. Field names match the index schema.
type Movie struct {
	ID     uint64   `json:"id"`
	Title  string   `json:"title" validate:"required"`
	Genres []string `json:"genres"`
}

// EmbeddingText is the text used to vectorize a movie for hybrid search.
func (m Movie) EmbeddingText() string {
	if len(m.Genres) == 0 {
		return m.Title
	}
	return m.Title + ". " + strings.Join(m.Genres, ", ")
}

// SeedMovies returns the fixed demo set indexed by GET /add.
// A fresh slice is returned on every call.
func SeedMovies() []Movie {
	return []Movie{
		{ID: 1, Title: "Carol", Genres: []string{"Romance", "Drama"}},
		{ID: 2, Title: "Wonder Woman", Genres: []string{"Action", "Adventure"}},
		{ID: 3, Title: "Life of Pi", Genres: []string{"Adventure", "Drama"}},
		{ID: 4, Title: "Mad Max", Genres: []string{"Adventure", "Science Fiction"}},
		{ID: 5, Title: "Moana", Genres: []string{"Fantasy", "Action"}},
		{ID: 6, Title: "Philadelphia", Genres: []string{"Drama"}},
	}
}

// TaskStatus mirrors the lifecycle of an asynchronous indexing task.
type TaskStatus string

// Task statuses reported by the search backend.
const (
	TaskEnqueued   TaskStatus = "enqueued"
	TaskProcessing TaskStatus = "processing"
	TaskSucceeded  TaskStatus = "succeeded"
	TaskFailed     TaskStatus = "failed"
	TaskCanceled   TaskStatus = "canceled"
)

// Finished reports whether the task reached a terminal state.
func (s TaskStatus) Finished() bool {
	return s == TaskSucceeded || s == TaskFailed || s == TaskCanceled
}

// Ack acknowledges an accepted upsert.
type Ack struct {
	TaskUID int64
	Status  TaskStatus
}

// Document is a Movie as sent to the index, with optional user-provided
// vectors keyed by embedder name.
type Document struct {
	Movie
	Vectors map[string][]float32 `json:"_vectors,omitempty"`
}
