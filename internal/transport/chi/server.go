// Package chi is the HTTP transport: routes, handlers and middleware on go-chi.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/domain"
	"github.com/kailas-cloud/moviedex/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/moviedex/internal/usecase/health"
	movieuc "github.com/kailas-cloud/moviedex/internal/usecase/movie"
)

// maxBodyBytes caps POST /movies payloads.
const maxBodyBytes = 8 << 20

// Server holds the HTTP handlers.
type Server struct {
	movies        *movieuc.Service
	health        *healthuc.Service
	validate      *validator.Validate
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(movies *movieuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	return &Server{
		movies:        movies,
		health:        health,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Hello handles GET /.
func (s *Server) Hello(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Hello world!"))
}

// SearchMovies handles GET /movies?q=.
func (s *Server) SearchMovies(w http.ResponseWriter, r *http.Request) {
	req, err := request.Parse(r.URL.RawQuery)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp, err := s.movies.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddMovies handles GET /add: upserts the fixed demo set.
func (s *Server) AddMovies(w http.ResponseWriter, r *http.Request) {
	if _, err := s.movies.Seed(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: moviesAddedMessage})
}

// CreateMovies handles POST /movies.
func (s *Server) CreateMovies(w http.ResponseWriter, r *http.Request) {
	var req CreateMoviesRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, validationMessage(err))
		return
	}

	ack, err := s.movies.Add(r.Context(), req.Movies)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, AcceptedResponse{
		Message: moviesAddedMessage,
		TaskUID: ack.TaskUID,
		Status:  string(ack.Status),
	})
}

// GetTask handles GET /tasks/{uid}.
func (s *Server) GetTask(w http.ResponseWriter, r *http.Request) {
	uid, err := strconv.ParseInt(chi.URLParam(r, "uid"), 10, 64)
	if err != nil || uid < 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "task uid must be a non-negative integer")
		return
	}

	ack, err := s.movies.Task(r.Context(), uid)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TaskResponse{TaskUID: ack.TaskUID, Status: string(ack.Status)})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// validationMessage renders the first failed rule as field path and tag.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "min", "max":
		return fmt.Sprintf("%s must contain between 1 and %d movies", fe.Namespace(), domain.MaxBatchSize)
	default:
		return fmt.Sprintf("%s failed %q validation", fe.Namespace(), fe.Tag())
	}
}
