// Package chi is the HTTP front end of the search engine.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfsearch/internal/domain"
	healthuc "github.com/kailas-cloud/shelfsearch/internal/usecase/health"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeInvalidQuery           ErrorCode = "invalid_query"
	CodeInvalidPagination      ErrorCode = "invalid_pagination"
	CodeInvalidFilter          ErrorCode = "invalid_filter"
	CodeRecordNotFound         ErrorCode = "record_not_found"
	CodeEmbeddingUnavailable   ErrorCode = "embedding_unavailable"
	CodeVectorIndexUnavailable ErrorCode = "vector_index_unavailable"
	CodeRecordStoreUnavailable ErrorCode = "record_store_unavailable"
	CodeSyncFailed             ErrorCode = "sync_failed"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the search, sync and reporting endpoints.
type Server struct {
	search        Searcher
	sync          Syncer
	responder     Responder
	health        HealthChecker
	stats         StatsReporter
	cfg           domain.EngineConfig
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. cfg supplies the page, limit and
// distance defaults applied to search requests.
func NewServer(
	search Searcher,
	sync Syncer,
	responder Responder,
	health HealthChecker,
	stats StatsReporter,
	cfg domain.EngineConfig,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:    search,
		sync:      sync,
		responder: responder,
		health:    health,
		stats:     stats,
		cfg:       cfg,
		logger:    logger,
	}
	// Order matters: a sync failure wraps its collaborator sentinel too.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrInvalidPagination, http.StatusBadRequest, CodeInvalidPagination),
		sentinelHandler(domain.ErrInvalidFilter, http.StatusBadRequest, CodeInvalidFilter),
		sentinelHandler(domain.ErrRecordNotFound, http.StatusNotFound, CodeRecordNotFound),
		sentinelHandler(domain.ErrSyncFailed, http.StatusServiceUnavailable, CodeSyncFailed),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, CodeEmbeddingUnavailable),
		sentinelHandler(domain.ErrVectorIndexUnavailable,
			http.StatusServiceUnavailable, CodeVectorIndexUnavailable),
		sentinelHandler(domain.ErrRecordStoreUnavailable,
			http.StatusServiceUnavailable, CodeRecordStoreUnavailable),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/search", s.Search)
	r.Post("/sync", s.FullSync)
	r.Post("/sync-product", s.SyncProduct)
	r.Post("/delete-product", s.DeleteProduct)
	r.Post("/debug", s.Debug)
	r.Get("/stats", s.Stats)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
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

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
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

// clientError reports whether err is the caller's fault; its message is safe to return verbatim.
func clientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidQuery) ||
		errors.Is(err, domain.ErrInvalidPagination) ||
		errors.Is(err, domain.ErrInvalidFilter)
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	if clientError(err) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrRecordNotFound,
		domain.ErrSyncFailed,
		domain.ErrEmbeddingUnavailable,
		domain.ErrVectorIndexUnavailable,
		domain.ErrRecordStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
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

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	if clientError(err) {
		s.logger.Debug("rejected request", zap.Error(err))
	} else {
		s.logger.Warn("domain error", zap.Error(err))
	}
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
