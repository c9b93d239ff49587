// Package api exposes the agent over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finance-agent/internal/agent/entity"
	apperrors "finance-agent/internal/common/errors"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/common/validation"
	"finance-agent/internal/models"
)

const (
	maxBodyBytes    = 1 << 20
	callerHeader    = "X-Caller-ID"
	requestIDHeader = "X-Request-ID"
)

type Agent interface {
	Ask(ctx context.Context, req models.AskRequest) (models.AskResponse, error)
}

type Batches interface {
	Start(ctx context.Context, req models.BatchRequest) (models.BatchStartResponse, error)
	Status(jobID string) (models.BatchJob, error)
}

type CacheAdmin interface {
	InvalidateEntity(ctx context.Context, ticker string) (int, error)
	Stats(ctx context.Context) (models.CacheStats, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	agent          Agent
	batches        Batches
	cache          CacheAdmin
	checks         map[string]ReadinessCheck
	errors         *apperrors.ErrorHandler
	logger         logger.Logger
	requestTimeout time.Duration
}

func NewServer(agent Agent, batches Batches, cache CacheAdmin, log logger.Logger) *Server {
	return &Server{
		agent:   agent,
		batches: batches,
		cache:   cache,
		checks:  make(map[string]ReadinessCheck),
		errors:  apperrors.NewErrorHandler(log),
		logger:  log.With(map[string]interface{}{"component": "api"}),
	}
}

func (s *Server) WithReadinessCheck(name string, check ReadinessCheck) *Server {
	s.checks[name] = check
	return s
}

// WithRequestTimeout bounds the handling time of ask and batch-start calls.
func (s *Server) WithRequestTimeout(d time.Duration) *Server {
	s.requestTimeout = d
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/ask", s.handleAsk)
	mux.HandleFunc("POST /v1/batch", s.handleBatchStart)
	mux.HandleFunc("GET /v1/batch/{jobId}", s.handleBatchStatus)
	mux.HandleFunc("DELETE /v1/cache/{ticker}", s.handleCacheInvalidate)
	mux.HandleFunc("GET /v1/cache/stats", s.handleCacheStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	return s.middleware(mux)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := decode(r, validation.AskRequestSchema, &req); err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	if req.CallerID == "" {
		req.CallerID = r.Header.Get(callerHeader)
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	resp, err := s.agent.Ask(ctx, req)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	resp.RequestID = r.Header.Get(requestIDHeader)
	apperrors.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBatchStart(w http.ResponseWriter, r *http.Request) {
	var req models.BatchRequest
	if err := decode(r, validation.BatchRequestSchema, &req); err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	if req.CallerID == "" {
		req.CallerID = r.Header.Get(callerHeader)
	}

	started, err := s.batches.Start(r.Context(), req)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/batch/"+started.JobID)
	apperrors.WriteJSON(w, http.StatusAccepted, started)
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.batches.Status(r.PathValue("jobId"))
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, job)
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	ticker := entity.Normalize(r.PathValue("ticker"))
	if !entity.IsValidTicker(ticker) {
		s.errors.HandleHTTPError(w, r, apperrors.NewValidationError(fmt.Sprintf("invalid ticker %q", ticker)))
		return
	}
	removed, err := s.cache.InvalidateEntity(r.Context(), ticker)
	if err != nil {
		s.errors.HandleHTTPError(w, r, apperrors.NewInternalError(err))
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":  ticker,
		"removed": removed,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		s.errors.HandleHTTPError(w, r, apperrors.NewInternalError(err))
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failures := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		s.logger.Warn("Readiness check failed", map[string]interface{}{"checks": failures})
		apperrors.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
			"checks": failures,
		})
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.requestTimeout)
}

// decode validates the body against schema before unmarshalling it into out.
func decode(r *http.Request, schema *validation.Schema, out interface{}) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apperrors.NewValidationError("unreadable request body")
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return apperrors.NewValidationError("malformed JSON: " + err.Error())
	}
	result, err := schema.Validate(doc)
	if err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if !result.Valid {
		return apperrors.NewValidationError(result.Summary())
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.NewValidationError("malformed JSON: " + err.Error())
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			r.Header.Set(requestIDHeader, requestID)
		}
		w.Header().Set(requestIDHeader, requestID)

		if caller := r.Header.Get(callerHeader); caller != "" {
			r = r.WithContext(models.WithCaller(r.Context(), caller))
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				s.errors.HandleHTTPError(rec, r, apperrors.NewInternalError(fmt.Errorf("panic: %v", p)))
			}
			s.logger.Debug("Request served", map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"requestId":  requestID,
				"durationMs": time.Since(start).Milliseconds(),
			})
		}()
		next.ServeHTTP(rec, r)
	})
}
