// Package httpapi exposes the QA chain over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/metrics"
)

const maxBodyBytes = 1 << 20

// Answerer is the HTTP-facing subset of the QA use case.
type Answerer interface {
	Answer(ctx context.Context, question string) (*domain.QAResult, error)
}

// Server serves the QA endpoints.
type Server struct {
	qa     Answerer
	logger *zap.Logger
}

func NewServer(qa Answerer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{qa: qa, logger: logger}
}

type queryRequest struct {
	Query string `json:"query"`
}

type sourceDocument struct {
	Content  string            `json:"content"`
	Source   string            `json:"source,omitempty"`
	Page     string            `json:"page,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type queryResponse struct {
	Query      string           `json:"query"`
	Answer     string           `json:"answer"`
	Sources    []sourceDocument `json:"sources"`
	DurationMS int64            `json:"duration_ms"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Router returns the chi router with metrics and recovery middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Post("/v1/query", s.Query)
	r.Get("/healthz", s.Health)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Query handles POST /v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	res, err := s.qa.Answer(r.Context(), req.Query)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	sources := make([]sourceDocument, len(res.Sources))
	for i, d := range res.Sources {
		sources[i] = sourceDocument{
			Content:  d.Content,
			Source:   d.Source(),
			Page:     d.Page(),
			Metadata: d.Metadata,
		}
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Query:      res.Query,
		Answer:     res.Answer,
		Sources:    sources,
		DurationMS: res.Duration.Milliseconds(),
	})
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("query failed",
		zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request cancelled")
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, domain.ErrUnavailable.Error())
	case errors.Is(err, domain.ErrEmbedding):
		writeError(w, http.StatusBadGateway, domain.ErrEmbedding.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}
