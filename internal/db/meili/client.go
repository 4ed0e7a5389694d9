// Package meili is the search gateway: it owns the Meilisearch connection and
// maps SDK calls and failures into domain terms.
package meili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/meilisearch/meilisearch-go"

	"github.com/kailas-cloud/moviedex/internal/db"
	"github.com/kailas-cloud/moviedex/internal/domain"
	"github.com/kailas-cloud/moviedex/internal/domain/search/result"
	"github.com/kailas-cloud/moviedex/internal/metrics"
)

const (
	// searchLimit is Meilisearch's own default page size, sent explicitly.
	searchLimit = 20
	// userProvidedSource marks an embedder whose vectors are computed by moviedex.
	userProvidedSource = "userProvided"
)

// Config holds connection parameters for the search backend.
type Config struct {
	Address string
	APIKey  string
	// Timeout bounds each backend call. Zero leaves only the caller's context.
	Timeout time.Duration
	// HTTPClient overrides the SDK's default client.
	HTTPClient *http.Client
}

// SearchOptions carry the optional hybrid-search parameters.
type SearchOptions struct {
	Vector        []float32
	Embedder      string
	SemanticRatio float64
}

// Client is the search gateway. It is safe for concurrent use.
type Client struct {
	sm      meilisearch.ServiceManager
	timeout time.Duration
}

// New creates a gateway. No request is sent until the first call.
func New(cfg Config) (*Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("address is required")
	}

	opts := []meilisearch.Option{
		meilisearch.WithAPIKey(cfg.APIKey),
		meilisearch.DisableRetries(),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, meilisearch.WithCustomClient(cfg.HTTPClient))
	}

	return &Client{
		sm:      meilisearch.New(cfg.Address, opts...),
		timeout: cfg.Timeout,
	}, nil
}

// Search runs a full-text (or hybrid) search against index and returns hits in backend order.
func (c *Client) Search(ctx context.Context, index, query string, opts SearchOptions) (result.Envelope, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req := &meilisearch.SearchRequest{Limit: searchLimit}
	if len(opts.Vector) > 0 {
		req.Vector = opts.Vector
		req.Hybrid = &meilisearch.SearchRequestHybrid{
			Embedder:      opts.Embedder,
			SemanticRatio: opts.SemanticRatio,
		}
	}

	start := time.Now()
	resp, err := c.sm.Index(index).SearchWithContext(ctx, query, req)
	observe(db.OpSearch, start, err)
	if err != nil {
		return result.Envelope{}, classify(db.OpSearch, err)
	}

	hits, err := decodeHits(resp.Hits)
	if err != nil {
		return result.Envelope{}, &db.Error{Op: db.OpSearch, Err: err}
	}

	return result.Envelope{
		Hits:               hits,
		EstimatedTotalHits: resp.EstimatedTotalHits,
		ProcessingTimeMs:   resp.ProcessingTimeMs,
	}, nil
}

// AddDocuments upserts docs keyed by primaryKey. It returns once the backend accepted the task.
func (c *Client) AddDocuments(
	ctx context.Context, index string, docs []domain.Document, primaryKey string,
) (domain.Ack, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	info, err := c.sm.Index(index).AddDocumentsWithContext(ctx, docs, primaryKey)
	observe(db.OpAddDocuments, start, err)
	if err != nil {
		return domain.Ack{}, classify(db.OpAddDocuments, err)
	}

	return domain.Ack{TaskUID: info.TaskUID, Status: domain.TaskStatus(info.Status)}, nil
}

// UpdateEmbedder declares a userProvided embedder on index so hybrid searches and
// document _vectors can reference it. The index is created if missing.
func (c *Client) UpdateEmbedder(ctx context.Context, index, name string, dimensions int) (domain.Ack, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	info, err := c.sm.Index(index).UpdateEmbeddersWithContext(ctx, map[string]meilisearch.Embedder{
		name: {Source: userProvidedSource, Dimensions: dimensions},
	})
	observe(db.OpEmbedders, start, err)
	if err != nil {
		return domain.Ack{}, classify(db.OpEmbedders, err)
	}

	return domain.Ack{TaskUID: info.TaskUID, Status: domain.TaskStatus(info.Status)}, nil
}

// GetTask returns the current state of an indexing task.
func (c *Client) GetTask(ctx context.Context, uid int64) (domain.Ack, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	task, err := c.sm.GetTaskWithContext(ctx, uid)
	observe(db.OpGetTask, start, err)
	if err != nil {
		return domain.Ack{}, classify(db.OpGetTask, err)
	}
	return domain.Ack{TaskUID: task.UID, Status: domain.TaskStatus(task.Status)}, nil
}

// WaitForTask polls until the task finishes or ctx ends. It is bounded by ctx only:
// the per-call timeout does not apply to the whole wait.
// A failed or canceled task is returned as *domain.IndexingError.
func (c *Client) WaitForTask(ctx context.Context, uid int64, interval time.Duration) (domain.Ack, error) {
	start := time.Now()
	task, err := c.sm.WaitForTaskWithContext(ctx, uid, interval)
	observe(db.OpWaitTask, start, err)
	if err != nil {
		return domain.Ack{}, classify(db.OpWaitTask, err)
	}

	status := domain.TaskStatus(task.Status)
	if status != domain.TaskSucceeded {
		return domain.Ack{}, &domain.IndexingError{
			TaskUID: uid,
			Status:  status,
			Reason:  task.Error.Message,
		}
	}
	return domain.Ack{TaskUID: uid, Status: status}, nil
}

// Ping checks that the backend reports itself available.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	h, err := c.sm.HealthWithContext(ctx)
	observe(db.OpHealth, start, err)
	if err != nil {
		return classify(db.OpHealth, err)
	}
	if h.Status != "available" {
		return &db.Error{Op: db.OpHealth, Err: fmt.Errorf("%w: status %q", domain.ErrUpstreamUnavailable, h.Status)}
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// decodeHits re-decodes the SDK's generic hits into movies.
// Ranking metadata (_rankingScore, _formatted, ...) is ignored.
func decodeHits(raw any) ([]domain.Movie, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamResponse, err)
	}
	var hits []domain.Movie
	if err := json.Unmarshal(data, &hits); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamResponse, err)
	}
	if hits == nil {
		hits = []domain.Movie{}
	}
	return hits, nil
}

// classify maps an SDK error onto the upstream sentinels.
// Anything without an HTTP status (refused, reset, deadline) counts as unavailable.
func classify(op string, err error) error {
	sentinel := domain.ErrUpstreamUnavailable

	var apiErr *meilisearch.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		switch code := apiErr.StatusCode; {
		case code == http.StatusUnauthorized, code == http.StatusForbidden:
			sentinel = domain.ErrUpstreamAuth
		case code == http.StatusNotFound && op == db.OpGetTask:
			sentinel = domain.ErrTaskNotFound
		case code == http.StatusServiceUnavailable, code == http.StatusGatewayTimeout:
			sentinel = domain.ErrUpstreamUnavailable
		case code < http.StatusMultipleChoices:
			// expected status, undecodable body
			sentinel = domain.ErrUpstreamResponse
		default:
			sentinel = domain.ErrUpstreamFailure
		}
	}

	return &db.Error{Op: op, Err: fmt.Errorf("%w: %w", sentinel, err)}
}

func observe(op string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.SearchBackendRequestsTotal.WithLabelValues(op, outcome).Inc()
	metrics.SearchBackendRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
