package moviedex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/db/meili"
	dbRedis "github.com/kailas-cloud/moviedex/internal/db/redis"
	"github.com/kailas-cloud/moviedex/internal/domain"
	"github.com/kailas-cloud/moviedex/internal/domain/search/request"
	"github.com/kailas-cloud/moviedex/internal/repository/searchcache"
	healthuc "github.com/kailas-cloud/moviedex/internal/usecase/health"
	movieuc "github.com/kailas-cloud/moviedex/internal/usecase/movie"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultCacheTTL         = time.Minute
)

// Movie is a searchable movie document.
type Movie struct {
	ID     uint64
	Title  string
	Genres []string
}

// Task is the state of an asynchronous indexing task.
type Task struct {
	UID    int64
	Status string
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded"
	Checks map[string]string // component → "ok"/"error"
}

// Client is the moviedex SDK entry point. It is safe for concurrent use.
type Client struct {
	gateway *meili.Client
	store   *dbRedis.Store
	movies  *movieuc.Service
	health  *healthuc.Service
	obs     *observer
}

// New creates a Client. With a cache configured, ctx bounds the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{cacheTTL: defaultCacheTTL}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.address == "" {
		return nil, errors.New("moviedex: search address required (use WithMeilisearch)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	gateway, err := meili.New(meili.Config{Address: cfg.address, APIKey: cfg.apiKey, Timeout: cfg.timeout})
	if err != nil {
		return nil, fmt.Errorf("moviedex: %w", err)
	}

	c := &Client{gateway: gateway, obs: obs}

	// Pass nil interfaces (not typed nil pointers) for disabled components.
	var cache movieuc.Cache
	var cachePinger healthuc.Pinger
	if len(cfg.cacheAddrs) > 0 {
		store, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.cacheAddrs, Password: cfg.cachePassword})
		if err != nil {
			return nil, fmt.Errorf("moviedex: create cache store: %w", err)
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("moviedex: cache not ready: %w", err)
		}
		c.store = store
		cache = searchcache.New(store, cfg.cacheTTL, "", nil, zap.NewNop())
		cachePinger = store
	}

	var embedder movieuc.Embedder
	var embChecker healthuc.EmbeddingChecker
	if cfg.embedder != nil {
		adapter := &embedderAdapter{inner: cfg.embedder}
		embedder = adapter
		if _, ok := cfg.embedder.(HealthChecker); ok {
			embChecker = adapter
		}
	}

	c.movies = movieuc.New(gateway, cache, embedder, movieuc.Options{
		Index:         cfg.index,
		PrimaryKey:    cfg.primaryKey,
		WaitForTasks:  cfg.waitForTasks,
		Embedder:      cfg.embedderName,
		SemanticRatio: cfg.semanticRatio,
	})
	c.health = healthuc.New(gateway, cachePinger, embChecker)

	if err := c.movies.PrepareHybrid(ctx, cfg.embeddingDims); err != nil {
		c.Close()
		return nil, fmt.Errorf("moviedex: %w", err)
	}

	return c, nil
}

// Close releases all resources.
func (c *Client) Close() {
	c.movies.Close()
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks search backend availability.
func (c *Client) Ping(ctx context.Context) (err error) {
	defer c.obs.track("ping")(&err)

	if err = c.gateway.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Search returns movies matching query, in backend relevance order.
func (c *Client) Search(ctx context.Context, query string) (_ []Movie, err error) {
	defer c.obs.track("search")(&err)

	resp, err := c.movies.Search(ctx, request.New(query))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out := make([]Movie, len(resp.Movies))
	for i, m := range resp.Movies {
		out[i] = Movie{ID: m.ID, Title: m.Title, Genres: m.Genres}
	}
	return out, nil
}

// Add upserts movies keyed by ID.
func (c *Client) Add(ctx context.Context, movies []Movie) (_ Task, err error) {
	defer c.obs.track("add")(&err)

	docs := make([]domain.Movie, len(movies))
	for i, m := range movies {
		if m.Title == "" {
			return Task{}, fmt.Errorf("add: movie %d: %w: title is required", m.ID, ErrInvalidDocuments)
		}
		docs[i] = domain.Movie{ID: m.ID, Title: m.Title, Genres: m.Genres}
	}

	ack, err := c.movies.Add(ctx, docs)
	if err != nil {
		return Task{}, fmt.Errorf("add: %w", err)
	}
	return Task{UID: ack.TaskUID, Status: string(ack.Status)}, nil
}

// Seed upserts the six demo movies.
func (c *Client) Seed(ctx context.Context) (_ Task, err error) {
	defer c.obs.track("seed")(&err)

	ack, err := c.movies.Seed(ctx)
	if err != nil {
		return Task{}, fmt.Errorf("seed: %w", err)
	}
	return Task{UID: ack.TaskUID, Status: string(ack.Status)}, nil
}

// Task returns the state of an indexing task.
func (c *Client) Task(ctx context.Context, uid int64) (_ Task, err error) {
	defer c.obs.track("task")(&err)

	ack, err := c.movies.Task(ctx, uid)
	if err != nil {
		return Task{}, fmt.Errorf("task: %w", err)
	}
	return Task{UID: ack.TaskUID, Status: string(ack.Status)}, nil
}

// Health checks the health of all configured components.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.health.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}
