// Package app is the composition root shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/config"
	"github.com/kailas-cloud/moviedex/internal/db/meili"
	dbRedis "github.com/kailas-cloud/moviedex/internal/db/redis"
	"github.com/kailas-cloud/moviedex/internal/domain"
	"github.com/kailas-cloud/moviedex/internal/metrics"
	"github.com/kailas-cloud/moviedex/internal/repository/embcache"
	"github.com/kailas-cloud/moviedex/internal/repository/searchcache"
	openaiEmb "github.com/kailas-cloud/moviedex/internal/transport/openai"
	healthuc "github.com/kailas-cloud/moviedex/internal/usecase/health"
	movieuc "github.com/kailas-cloud/moviedex/internal/usecase/movie"
)

// hybridSetupTimeout bounds declaring the embedder on the index at startup.
const hybridSetupTimeout = 30 * time.Second

// App holds the wired services.
type App struct {
	Gateway *meili.Client
	Movies  *movieuc.Service
	Health  *healthuc.Service

	store *dbRedis.Store
}

// Build wires gateway, optional cache and optional embedder into the use cases.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Register()

	gateway, err := meili.New(meili.Config{
		Address: cfg.Search.Address,
		APIKey:  cfg.Search.APIKey,
		Timeout: cfg.Search.Timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("search gateway: %w", err)
	}

	a := &App{Gateway: gateway}

	// Pass nil interfaces (not typed nil pointers) for disabled components.
	var cache movieuc.Cache
	var cachePinger healthuc.Pinger
	if cfg.Cache.Enabled() {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:        cfg.Cache.Addrs,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			WriteTimeout: cfg.Cache.WriteTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("cache store: %w", err)
		}
		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			store.Close()
			return nil, fmt.Errorf("cache not ready: %w", err)
		}
		a.store = store
		cache = searchcache.New(store, cfg.Cache.TTL(), cfg.Cache.KeyPrefix, metrics.SearchCacheTotal, logger)
		cachePinger = store
		logger.Info("Search cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	var embedder movieuc.Embedder
	var embChecker healthuc.EmbeddingChecker
	if cfg.Embedding.Enabled() {
		var e domain.Embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     logger,
		})
		if a.store != nil {
			e = embcache.New(e, a.store, embcache.Config{
				KeyPrefix: cfg.Cache.KeyPrefix,
				Model:     cfg.Embedding.Model,
				TTL:       cfg.Cache.EmbeddingTTL(),
			}, metrics.EmbeddingCacheTotal, logger)
		}
		embedder = e
		if hc, ok := e.(domain.HealthChecker); ok {
			embChecker = hc
		}
		logger.Info("Hybrid search enabled",
			zap.String("model", cfg.Embedding.Model),
			zap.String("embedder", cfg.Embedding.Embedder),
			zap.Float64("semantic_ratio", cfg.Embedding.SemanticRatio),
		)
	}

	a.Movies = movieuc.New(gateway, cache, embedder, movieuc.Options{
		Index:         cfg.Search.Index,
		PrimaryKey:    cfg.Search.PrimaryKey,
		WaitForTasks:  cfg.Search.WaitForTasks,
		PollInterval:  cfg.Search.PollInterval(),
		SettleTimeout: cfg.Search.SettleTimeout(),
		Embedder:      cfg.Embedding.Embedder,
		SemanticRatio: cfg.Embedding.SemanticRatio,
	})
	a.Health = healthuc.New(gateway, cachePinger, embChecker)

	if embedder != nil {
		hctx, cancel := context.WithTimeout(ctx, hybridSetupTimeout)
		err := a.Movies.PrepareHybrid(hctx, cfg.Embedding.Dimensions)
		cancel()
		if err != nil {
			logger.Warn("Hybrid search disabled, searching by keyword", zap.Error(err))
		}
	}

	return a, nil
}

// Close stops background task watchers, then releases the cache connection.
func (a *App) Close() {
	a.Movies.Close()
	if a.store != nil {
		a.store.Close()
	}
}
