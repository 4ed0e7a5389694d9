// Package redis is the rueidis-backed cache store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/moviedex/internal/db"
	"github.com/kailas-cloud/moviedex/internal/metrics"
)

const (
	clientName    = "moviedex"
	readyInterval = 100 * time.Millisecond
)

var _ db.CacheStore = (*Store)(nil)

// Config holds connection parameters for a Redis/Valkey store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// WriteTimeout bounds a stuck connection; zero keeps the rueidis default.
	WriteTimeout time.Duration
}

// Store caches search answers and embeddings. Client-side caching is off:
// generations are bumped by other replicas.
type Store struct {
	client rueidis.Client
}

// NewStore connects to the first reachable address.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("cache addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:      cfg.Addrs,
		Username:         cfg.Username,
		Password:         cfg.Password,
		SelectDB:         cfg.DB,
		ClientName:       clientName,
		ConnWriteTimeout: cfg.WriteTimeout,
		DisableCache:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect cache %v: %w", cfg.Addrs, err)
	}

	return &Store{client: client}, nil
}

// NewStoreForTest wraps an existing client, typically rueidis/mock.
func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c}
}

// Ping checks connectivity. It backs the "cache" health check.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, db.OpPing, s.client.B().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings until the store answers or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if s.Ping(ctx) == nil {
		return nil
	}

	ticker := time.NewTicker(readyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for cache: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// do runs cmd and records it under op. A redis nil reply is a successful miss.
func (s *Store) do(ctx context.Context, op string, cmd rueidis.Completed) rueidis.RedisResult {
	start := time.Now()
	res := s.client.Do(ctx, cmd)

	outcome := "success"
	if err := res.Error(); err != nil && !rueidis.IsRedisNil(err) {
		outcome = "error"
	}
	metrics.CacheBackendRequestsTotal.WithLabelValues(op, outcome).Inc()
	metrics.CacheBackendRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	return res
}
