// Package main implements moviectl, a command line client for the moviedex search backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kailas-cloud/moviedex/internal/app"
	"github.com/kailas-cloud/moviedex/internal/config"
	logpkg "github.com/kailas-cloud/moviedex/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(buildFromEnv)
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// buildFromEnv wires the services from config/{env}.yaml.
func buildFromEnv(ctx context.Context, env string) (*app.App, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("wire services: %w", err)
	}
	return a, nil
}
