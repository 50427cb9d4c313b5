// Package chi exposes the QA engine over HTTP: ask, retrieve, ingest,
// health and metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/marysss1/QiAIchemy-backend/internal/domain"
	dompas "github.com/marysss1/QiAIchemy-backend/internal/domain/passage"
	answeruc "github.com/marysss1/QiAIchemy-backend/internal/usecase/answer"
	healthuc "github.com/marysss1/QiAIchemy-backend/internal/usecase/health"
	ingestuc "github.com/marysss1/QiAIchemy-backend/internal/usecase/ingest"
)

const maxIngestSources = 100

// Consumer interfaces over the usecase services (ISP).
type AskService interface {
	Ask(ctx context.Context, question, conversation string, topK int) (answeruc.Result, error)
}

type RetrieveService interface {
	Retrieve(ctx context.Context, query, conversation string, topK int) ([]dompas.Ranked, error)
}

type IngestService interface {
	IngestSource(ctx context.Context, src ingestuc.Source) (ingestuc.Result, error)
}

type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers for the QA API.
type Server struct {
	answers       AskService
	retrieval     RetrieveService
	ingest        IngestService
	health        HealthService
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. answers and ingest may be nil when
// the deployment is retrieval-only.
func NewServer(
	answers AskService,
	retrieval RetrieveService,
	ingest IngestService,
	health HealthService,
	logger *zap.Logger,
) *Server {
	s := &Server{
		answers:   answers,
		retrieval: retrieval,
		ingest:    ingest,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrProviderAuth, http.StatusUnauthorized, codeProviderAuth),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrCompletionProviderError, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// Mount registers all routes on the router.
func (s *Server) Mount(r chi.Router) {
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/ask", s.Ask)
		r.Post("/retrieve", s.Retrieve)
		r.Put("/passages", s.UpsertPassages)
	})
}

// Ask handles POST /v1/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	if s.answers == nil {
		writeError(w, http.StatusNotImplemented, codeNotConfigured, "answer generation is not configured")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "question is required")
		return
	}

	result, err := s.answers.Ask(r.Context(), req.Question, req.Context, req.TopK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:      result.Text,
		Passages:    rankedToResults(result.Passages),
		TotalTokens: result.TotalTokens,
	})
}

// Retrieve handles POST /v1/retrieve. Exposes all four score components so
// ranking behavior stays observable without the LLM in the loop.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}

	ranked, err := s.retrieval.Retrieve(r.Context(), req.Query, req.Context, req.TopK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, retrieveResponse{Passages: rankedToResults(ranked)})
}

// UpsertPassages handles PUT /v1/passages: bulk source ingestion.
func (s *Server) UpsertPassages(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		writeError(w, http.StatusNotImplemented, codeNotConfigured, "ingestion is not configured")
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Sources) == 0 || len(req.Sources) > maxIngestSources {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"sources count must be between 1 and 100")
		return
	}

	results := make([]ingestResultItem, 0, len(req.Sources))
	for _, src := range req.Sources {
		res, err := s.ingest.IngestSource(r.Context(), sourceFromRequest(src))
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		results = append(results, ingestResultItem{
			SourceID:    res.SourceID,
			Chunks:      res.Chunks,
			Deleted:     res.Deleted,
			TotalTokens: res.TotalTokens,
		})
	}

	writeJSON(w, http.StatusOK, ingestResponse{Results: results})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
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

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrProviderAuth,
		domain.ErrRateLimited,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
		domain.ErrCompletionProviderError,
		domain.ErrPassageStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}
