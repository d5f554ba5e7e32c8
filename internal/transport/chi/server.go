// Package chi exposes the coaching API over HTTP using the chi router.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mindfit/coachd/internal/domain"
	"github.com/mindfit/coachd/internal/logger"
	answeruc "github.com/mindfit/coachd/internal/usecase/answer"
	healthuc "github.com/mindfit/coachd/internal/usecase/health"
)

// ErrorCode identifies an API error category for clients.
type ErrorCode string

const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeNotReady         ErrorCode = "not_ready"
	CodeAnswerFailed     ErrorCode = "answer_failed"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// AskRequest is the body of POST /api/coach.
type AskRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id,omitempty"`
}

// AskResponse is the body of a successful POST /api/coach.
type AskResponse struct {
	Answer string `json:"answer"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers for the coaching API.
type Server struct {
	answer        *answeruc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(answer *answeruc.Service, health *healthuc.Service, log *zap.Logger) *Server {
	s := &Server{
		answer: answer,
		health: health,
		logger: log,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(answeruc.ErrEmptyQuery, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, CodeNotReady),
		sentinelHandler(domain.ErrNoPassagesAvailable, http.StatusServiceUnavailable, CodeNotReady),
		sentinelHandler(domain.ErrSegmentationEmpty, http.StatusServiceUnavailable, CodeNotReady),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, CodeAnswerFailed),
		sentinelHandler(domain.ErrCompletionUnavailable, http.StatusBadGateway, CodeAnswerFailed),
	}
	return s
}

// Routes mounts the API endpoints on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/api/coach", s.AskCoach)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// AskCoach handles POST /api/coach.
func (s *Server) AskCoach(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Query == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query is required")
		return
	}

	log := logger.FromContext(r.Context())
	if req.UserID != "" {
		log = log.With(zap.String("user_id", req.UserID))
	}

	ans, err := s.answer.Ask(r.Context(), req.Query)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	log.Info("answer composed",
		zap.Int("sources", len(ans.Sources)),
		zap.Int("answer_chars", len(ans.Text)),
	)

	writeJSON(w, http.StatusOK, AskResponse{Answer: ans.Text})
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

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		answeruc.ErrEmptyQuery,
		domain.ErrStoreUnavailable,
		domain.ErrNoPassagesAvailable,
		domain.ErrSegmentationEmpty,
		domain.ErrEmbeddingUnavailable,
		domain.ErrCompletionUnavailable,
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
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
