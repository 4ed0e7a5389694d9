// Package db holds the backend contracts shared by the search gateway and the
// cache store, plus their error wrapping.
package db

import (
	"context"
	"time"
)

// CacheStore is the Redis/Valkey contract behind the search and embedding caches.
// Values are opaque bytes; counters back the per-index cache generation.
type CacheStore interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	// SetWithTTL stores value; ttl <= 0 keeps it until evicted.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Close()
}
