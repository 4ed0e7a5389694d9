// Package searchcache is a read-through cache of search responses in Redis/Valkey.
package searchcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/moviedex/internal/db"
	"github.com/kailas-cloud/moviedex/internal/domain/search/result"
)

const (
	// DefaultKeyPrefix namespaces every cache key.
	DefaultKeyPrefix = "moviedex:"

	// sharedLoadTimeout bounds a load that outlives the caller who started it.
	sharedLoadTimeout = 30 * time.Second
)

// store is the consumer interface for the cache backend (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// LoadFunc fetches a fresh response on a cache miss.
type LoadFunc func(ctx context.Context) (result.Response, error)

// Cache stores search responses keyed by index generation and query.
// Every Invalidate bumps the index generation, so entries written before
// a write are never served after it.
type Cache struct {
	store      store
	ttl        time.Duration
	prefix     string
	group      singleflight.Group
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a cache. cacheTotal is a counter vec with label "result", may be nil.
func New(s store, ttl time.Duration, prefix string, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Cache{
		store:      s,
		ttl:        ttl,
		prefix:     prefix,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Search returns a cached response or calls load and caches its result.
// Concurrent misses for the same key share one load, detached from any single
// caller: a caller that gives up gets its own ctx error while the others still
// receive the answer. Cache errors are logged and bypassed; only load and ctx
// errors are returned.
func (c *Cache) Search(ctx context.Context, index, query string, load LoadFunc) (result.Response, error) {
	gen, err := c.generation(ctx, index)
	if err != nil {
		c.inc("error")
		c.logger.Warn("Search cache unavailable, bypassing", zap.String("index", index), zap.Error(err))
		return load(ctx)
	}

	key := c.entryKey(index, gen, query)

	if resp, ok := c.get(ctx, key); ok {
		c.inc("hit")
		return resp, nil
	}
	c.inc("miss")

	ch := c.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()

		resp, err := load(lctx)
		if err != nil {
			return result.Response{}, err
		}
		c.put(lctx, key, resp)
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return result.Response{}, fmt.Errorf("load search: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return result.Response{}, fmt.Errorf("load search: %w", res.Err)
		}
		return res.Val.(result.Response), nil
	}
}

// Invalidate drops every cached response for index by bumping its generation.
func (c *Cache) Invalidate(ctx context.Context, index string) {
	if _, err := c.store.Incr(ctx, c.generationKey(index)); err != nil {
		c.logger.Warn("Failed to invalidate search cache", zap.String("index", index), zap.Error(err))
	}
}

func (c *Cache) generation(ctx context.Context, index string) (int64, error) {
	data, err := c.store.Get(ctx, c.generationKey(index))
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get generation: %w", err)
	}
	gen, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse generation %q: %w", data, err)
	}
	return gen, nil
}

func (c *Cache) get(ctx context.Context, key string) (result.Response, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached search", zap.String("key", key), zap.Error(err))
		}
		return result.Response{}, false
	}

	var resp result.Response
	if err := json.Unmarshal(data, &resp); err != nil || resp.Movies == nil {
		c.logger.Warn("Failed to parse cached search", zap.String("key", key), zap.Error(err))
		return result.Response{}, false
	}
	return resp, true
}

func (c *Cache) put(ctx context.Context, key string, resp result.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache search", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) inc(outcome string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(outcome).Inc()
	}
}

func (c *Cache) generationKey(index string) string {
	return c.prefix + "gen:" + index
}

func (c *Cache) entryKey(index string, gen int64, query string) string {
	h := sha256.Sum256([]byte(query))
	return c.prefix + "search:" + index + ":" + strconv.FormatInt(gen, 10) + ":" + hex.EncodeToString(h[:])
}
