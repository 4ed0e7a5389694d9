// Package movie orchestrates search and indexing of movies.
package movie

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/db/meili"
	"github.com/kailas-cloud/moviedex/internal/domain"
	"github.com/kailas-cloud/moviedex/internal/domain/search/request"
	"github.com/kailas-cloud/moviedex/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/moviedex/internal/logger"
)

const (
	defaultPollInterval  = 50 * time.Millisecond
	defaultSettleTimeout = 5 * time.Minute
	defaultEmbedder      = "default"

	// sampleText is embedded once to learn the provider's vector size.
	sampleText = "movie"
)

// Options tune the service. Zero values give the plain facade behavior.
type Options struct {
	Index      string
	PrimaryKey string
	// WaitForTasks makes Add block until the backend finished indexing.
	WaitForTasks bool
	PollInterval time.Duration
	// SettleTimeout bounds how long an unawaited write is watched before the
	// cache is invalidated a second time.
	SettleTimeout time.Duration
	// Embedder is the backend's userProvided embedder name; used only with an Embedder.
	Embedder      string
	SemanticRatio float64
}

// Service handles movie search and upserts.
type Service struct {
	gateway  Gateway
	cache    Cache
	embedder Embedder
	opts     Options

	// hybrid is set once the embedder is declared on the index.
	hybrid atomic.Bool

	watchCtx  context.Context
	stopWatch context.CancelFunc
	watchers  sync.WaitGroup
}

// New creates a movie service. cache and embedder are optional (nil).
func New(gateway Gateway, cache Cache, embedder Embedder, opts Options) *Service {
	if opts.Index == "" {
		opts.Index = domain.DefaultIndex
	}
	if opts.PrimaryKey == "" {
		opts.PrimaryKey = domain.DefaultPrimaryKey
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = defaultSettleTimeout
	}
	if opts.Embedder == "" {
		opts.Embedder = defaultEmbedder
	}
	watchCtx, stop := context.WithCancel(context.Background())
	return &Service{
		gateway:   gateway,
		cache:     cache,
		embedder:  embedder,
		opts:      opts,
		watchCtx:  watchCtx,
		stopWatch: stop,
	}
}

// Close stops watching pending writes and waits for the watchers to exit.
func (s *Service) Close() {
	s.stopWatch()
	s.watchers.Wait()
}

// PrepareHybrid declares the userProvided embedder on the index, then enables
// query and document vectors. dimensions <= 0 asks the provider once.
// Without a successful call the service searches by keyword only.
func (s *Service) PrepareHybrid(ctx context.Context, dimensions int) error {
	if s.embedder == nil {
		return nil
	}
	if dimensions <= 0 {
		res, err := s.embedder.Embed(ctx, sampleText)
		if err != nil {
			return fmt.Errorf("detect embedding dimensions: %w", err)
		}
		if dimensions = len(res.Embedding); dimensions == 0 {
			return fmt.Errorf("detect embedding dimensions: empty vector: %w", domain.ErrEmbeddingProviderError)
		}
	}

	ack, err := s.gateway.UpdateEmbedder(ctx, s.opts.Index, s.opts.Embedder, dimensions)
	if err != nil {
		return fmt.Errorf("declare embedder %s: %w", s.opts.Embedder, err)
	}
	if !ack.Status.Finished() {
		if _, err := s.gateway.WaitForTask(ctx, ack.TaskUID, s.opts.PollInterval); err != nil {
			return fmt.Errorf("declare embedder %s: %w", s.opts.Embedder, err)
		}
	}

	s.hybrid.Store(true)
	logpkg.FromContext(ctx).Info("Embedder declared",
		zap.String("index", s.opts.Index),
		zap.String("embedder", s.opts.Embedder),
		zap.Int("dimensions", dimensions),
	)
	return nil
}

// Hybrid reports whether searches and writes carry vectors.
func (s *Service) Hybrid() bool { return s.hybrid.Load() }

// Index returns the target index name.
func (s *Service) Index() string { return s.opts.Index }

// Search runs req against the index and maps the result, preserving backend order.
func (s *Service) Search(ctx context.Context, req request.Request) (result.Response, error) {
	load := func(ctx context.Context) (result.Response, error) {
		env, err := s.gateway.Search(ctx, s.opts.Index, req.Query(), s.searchOptions(ctx, req.Query()))
		if err != nil {
			return result.Response{}, fmt.Errorf("search %s: %w", s.opts.Index, err)
		}
		return result.ToResponse(env), nil
	}

	if s.cache == nil {
		return load(ctx)
	}
	resp, err := s.cache.Search(ctx, s.opts.Index, req.Query(), load)
	if err != nil {
		return result.Response{}, fmt.Errorf("cached search: %w", err)
	}
	return resp, nil
}

// Add upserts movies keyed by the primary key.
func (s *Service) Add(ctx context.Context, movies []domain.Movie) (domain.Ack, error) {
	if len(movies) == 0 {
		return domain.Ack{}, fmt.Errorf("%w: empty batch", domain.ErrInvalidDocuments)
	}
	ctx = logpkg.With(ctx, zap.String("index", s.opts.Index))

	docs, err := s.documents(ctx, movies)
	if err != nil {
		return domain.Ack{}, err
	}

	ack, err := s.gateway.AddDocuments(ctx, s.opts.Index, docs, s.opts.PrimaryKey)
	if err != nil {
		return domain.Ack{}, fmt.Errorf("add documents to %s: %w", s.opts.Index, err)
	}
	logpkg.FromContext(ctx).Info("Documents submitted",
		zap.Int("count", len(docs)),
		zap.Int64("task_uid", ack.TaskUID),
	)

	if s.opts.WaitForTasks {
		ack, err = s.gateway.WaitForTask(ctx, ack.TaskUID, s.opts.PollInterval)
		if err != nil {
			s.invalidate(ctx)
			return domain.Ack{}, fmt.Errorf("wait for task: %w", err)
		}
	} else if !ack.Status.Finished() {
		s.watch(ctx, ack.TaskUID)
	}

	s.invalidate(ctx)
	return ack, nil
}

// watch invalidates the cache again once task uid is terminal. Searches served
// while the backend was still indexing may have cached the pre-write answer
// under the new generation.
func (s *Service) watch(ctx context.Context, uid int64) {
	if s.cache == nil {
		return
	}
	log := logpkg.FromContext(ctx).With(zap.Int64("task_uid", uid))

	s.watchers.Add(1)
	go func() {
		defer s.watchers.Done()

		wctx, cancel := context.WithTimeout(s.watchCtx, s.opts.SettleTimeout)
		defer cancel()
		wctx = logpkg.ContextWithLogger(wctx, log)

		if _, err := s.gateway.WaitForTask(wctx, uid, s.opts.PollInterval); err != nil {
			if s.watchCtx.Err() != nil {
				return
			}
			if !errors.Is(err, domain.ErrIndexingFailed) {
				log.Warn("Task did not settle in time, cached answers may lag until TTL", zap.Error(err))
			}
		}
		s.invalidate(context.WithoutCancel(wctx))
	}()
}

// Seed upserts the fixed demo set.
func (s *Service) Seed(ctx context.Context) (domain.Ack, error) {
	return s.Add(ctx, domain.SeedMovies())
}

// Task reports an indexing task's status.
func (s *Service) Task(ctx context.Context, uid int64) (domain.Ack, error) {
	ack, err := s.gateway.GetTask(ctx, uid)
	if err != nil {
		return domain.Ack{}, fmt.Errorf("get task %d: %w", uid, err)
	}
	return ack, nil
}

// searchOptions embeds the query for hybrid search. Embedding failures degrade to keyword search.
func (s *Service) searchOptions(ctx context.Context, query string) meili.SearchOptions {
	if !s.Hybrid() || query == "" {
		return meili.SearchOptions{}
	}
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		logpkg.FromContext(ctx).Warn("Query embedding failed, falling back to keyword search", zap.Error(err))
		return meili.SearchOptions{}
	}
	return meili.SearchOptions{
		Vector:        emb.Embedding,
		Embedder:      s.opts.Embedder,
		SemanticRatio: s.opts.SemanticRatio,
	}
}

func (s *Service) documents(ctx context.Context, movies []domain.Movie) ([]domain.Document, error) {
	docs := make([]domain.Document, len(movies))
	for i, m := range movies {
		docs[i] = domain.Document{Movie: m}
	}
	if !s.Hybrid() {
		return docs, nil
	}

	texts := make([]string, len(movies))
	for i, m := range movies {
		texts[i] = m.EmbeddingText()
	}
	res, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingProviderError) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
		}
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if err := res.Check(len(docs)); err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	for i := range docs {
		docs[i].Vectors = map[string][]float32{s.opts.Embedder: res.Embeddings[i]}
	}
	return docs, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, s.opts.Index)
	}
}
