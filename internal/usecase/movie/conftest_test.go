package movie

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/moviedex/internal/db/meili"
	"github.com/kailas-cloud/moviedex/internal/domain"
	"github.com/kailas-cloud/moviedex/internal/domain/search/result"
	"github.com/kailas-cloud/moviedex/internal/repository/searchcache"
)

type searchCall struct {
	index string
	query string
	opts  meili.SearchOptions
}

type addCall struct {
	index      string
	docs       []domain.Document
	primaryKey string
}

type mockGateway struct {
	mu sync.Mutex

	hits      []domain.Movie
	searchErr error
	addErr    error
	waitErr   error
	taskErr   error
	embedErr  error
	nextUID   int64

	// release, when set, holds WaitForTask until closed.
	release chan struct{}

	searches []searchCall
	adds     []addCall
	waits    []int64
	embeds   map[string]int
}

func (m *mockGateway) Search(_ context.Context, index, query string, opts meili.SearchOptions) (result.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, searchCall{index: index, query: query, opts: opts})
	if m.searchErr != nil {
		return result.Envelope{}, m.searchErr
	}
	return result.Envelope{Hits: m.hits, EstimatedTotalHits: int64(len(m.hits))}, nil
}

func (m *mockGateway) AddDocuments(
	_ context.Context, index string, docs []domain.Document, primaryKey string,
) (domain.Ack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adds = append(m.adds, addCall{index: index, docs: docs, primaryKey: primaryKey})
	if m.addErr != nil {
		return domain.Ack{}, m.addErr
	}
	m.nextUID++
	return domain.Ack{TaskUID: m.nextUID, Status: domain.TaskEnqueued}, nil
}

func (m *mockGateway) GetTask(_ context.Context, uid int64) (domain.Ack, error) {
	if m.taskErr != nil {
		return domain.Ack{}, m.taskErr
	}
	return domain.Ack{TaskUID: uid, Status: domain.TaskProcessing}, nil
}

func (m *mockGateway) WaitForTask(ctx context.Context, uid int64, _ time.Duration) (domain.Ack, error) {
	m.mu.Lock()
	m.waits = append(m.waits, uid)
	release := m.release
	m.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return domain.Ack{}, ctx.Err()
		}
	}
	if m.waitErr != nil {
		return domain.Ack{}, m.waitErr
	}
	return domain.Ack{TaskUID: uid, Status: domain.TaskSucceeded}, nil
}

func (m *mockGateway) UpdateEmbedder(_ context.Context, index, name string, dimensions int) (domain.Ack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.embedErr != nil {
		return domain.Ack{}, m.embedErr
	}
	if m.embeds == nil {
		m.embeds = make(map[string]int)
	}
	m.embeds[index+"|"+name] = dimensions
	return domain.Ack{TaskUID: 100, Status: domain.TaskSucceeded}, nil
}

func (m *mockGateway) setHits(hits []domain.Movie) {
	m.mu.Lock()
	m.hits = hits
	m.mu.Unlock()
}

func (m *mockGateway) waitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waits)
}

// mockCache caches in a map; it bypasses singleflight and TTLs.
type mockCache struct {
	mu          sync.Mutex
	entries     map[string]result.Response
	invalidated int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]result.Response)}
}

func (m *mockCache) Search(
	ctx context.Context, index, query string, load searchcache.LoadFunc,
) (result.Response, error) {
	key := index + "|" + query
	m.mu.Lock()
	resp, ok := m.entries[key]
	m.mu.Unlock()
	if ok {
		return resp, nil
	}
	resp, err := load(ctx)
	if err != nil {
		return result.Response{}, err
	}
	m.mu.Lock()
	m.entries[key] = resp
	m.mu.Unlock()
	return resp, nil
}

func (m *mockCache) Invalidate(_ context.Context, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated++
	m.entries = make(map[string]result.Response)
}

func (m *mockCache) invalidations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidated
}

// newHybridService builds a service whose embedder is already declared on the index.
func newHybridService(t *testing.T, gw *mockGateway, emb *mockEmbedder, opts Options) *Service {
	t.Helper()
	svc := New(gw, nil, emb, opts)
	if err := svc.PrepareHybrid(context.Background(), 2); err != nil {
		t.Fatalf("prepare hybrid: %v", err)
	}
	return svc
}

type mockEmbedder struct {
	vec      []float32
	err      error
	batchErr error
	short    bool
	texts    []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.texts = append(m.texts, text)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 1}, nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.texts = append(m.texts, texts...)
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	n := len(texts)
	if m.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = m.vec
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}
