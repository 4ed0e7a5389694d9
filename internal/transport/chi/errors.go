package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/domain"
	logpkg "github.com/kailas-cloud/moviedex/internal/logger"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// defaultErrorHandlers maps domain sentinels to HTTP statuses. Order matters: first match wins.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeBadRequest),
		sentinelHandler(domain.ErrInvalidDocuments, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrTaskNotFound, http.StatusNotFound, ErrorCodeTaskNotFound),
		sentinelHandler(domain.ErrIndexingFailed, http.StatusBadGateway, ErrorCodeIndexingFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, ErrorCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrUpstreamUnavailable,
			http.StatusServiceUnavailable, ErrorCodeUpstreamUnavailable),
		sentinelHandler(domain.ErrUpstreamAuth, http.StatusBadGateway, ErrorCodeUpstreamError),
		sentinelHandler(domain.ErrUpstreamFailure, http.StatusBadGateway, ErrorCodeUpstreamError),
		sentinelHandler(domain.ErrUpstreamResponse, http.StatusBadGateway, ErrorCodeUpstreamError),
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrInvalidDocuments,
		domain.ErrTaskNotFound,
		domain.ErrIndexingFailed,
		domain.ErrEmbeddingProviderError,
		domain.ErrUpstreamUnavailable,
		domain.ErrUpstreamAuth,
		domain.ErrUpstreamFailure,
		domain.ErrUpstreamResponse,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
