package moviedex

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	address string
	apiKey  string
	timeout time.Duration

	index        string
	primaryKey   string
	waitForTasks bool

	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration

	embedder      Embedder
	embedderName  string
	embeddingDims int
	semanticRatio float64

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithMeilisearch sets the search backend address and API key. Required.
func WithMeilisearch(address, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.address = address
		c.apiKey = apiKey
	})
}

// WithTimeout bounds every backend call. Zero (default) relies on the caller's context.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithIndex sets the target index. Default: "movies".
func WithIndex(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.index = name
	})
}

// WithPrimaryKey sets the document primary key. Default: "id".
func WithPrimaryKey(key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.primaryKey = key
	})
}

// WithWaitForTasks makes Add and Seed return only after indexing finished.
func WithWaitForTasks() Option {
	return optionFunc(func(c *clientConfig) {
		c.waitForTasks = true
	})
}

// WithRedisCache enables the search result cache on a Redis or Valkey instance.
func WithRedisCache(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
	})
}

// WithCacheTTL sets the cached search result lifetime. Default: 1 minute.
func WithCacheTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheTTL = ttl
	})
}

// WithEmbedder enables hybrid search. name is the backend's userProvided embedder,
// ratio the semantic weight in [0,1].
func WithEmbedder(e Embedder, name string, ratio float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.embedderName = name
		c.semanticRatio = ratio
	})
}

// WithEmbeddingDimensions sets the vector size declared for the embedder.
// Zero (default) detects it by embedding a sample text in New.
func WithEmbeddingDimensions(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingDims = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
