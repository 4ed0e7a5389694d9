// Package health aggregates dependency checks for the /health endpoint.
package health

import (
	"context"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/moviedex/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentSearch    = "search"
	ComponentCache     = "cache"
	ComponentEmbedding = "embedding"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	search    Pinger
	cache     Pinger
	embedding EmbeddingChecker
}

// New creates a Service. cache and embedding can be nil.
func New(search Pinger, cache Pinger, embedding EmbeddingChecker) *Service {
	return &Service{search: search, cache: cache, embedding: embedding}
}

// Check runs health checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	log := logpkg.FromContext(ctx)
	checks := make(map[string]CheckResult)

	record := func(name string, err error) {
		if err != nil {
			log.Warn("Health check failed", zap.String("component", name), zap.Error(err))
			checks[name] = CheckError
			return
		}
		checks[name] = CheckOK
	}

	record(ComponentSearch, s.search.Ping(ctx))
	if s.cache != nil {
		record(ComponentCache, s.cache.Ping(ctx))
	}
	if s.embedding != nil {
		record(ComponentEmbedding, s.embedding.HealthCheck(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
