// Package api exposes the operator HTTP interface for the pipeline.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"leadwatch/internal/config"
	"leadwatch/internal/metrics"
	"leadwatch/internal/scheduler"
)

// Server wires HTTP handlers to the scheduler.
type Server struct {
	router chi.Router
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(sched *scheduler.Scheduler, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		sched:  sched,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.listJobs)
			r.Route("/{job}", func(r chi.Router) {
				r.Post("/run", s.runJob)
				r.Post("/enable", s.enableJob)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listJobs(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": s.sched.Jobs()})
}

// runJob triggers one cycle now. A cycle already in flight and a disabled
// job both map to 409 so callers can tell polling retries from operator
// intervention by the error body.
func (s *Server) runJob(w http.ResponseWriter, r *http.Request) {
	job := chi.URLParam(r, "job")
	err := s.sched.Trigger(job)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusAccepted, map[string]string{"job": job, "status": "triggered"})
	case errors.Is(err, scheduler.ErrJobUnknown):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scheduler.ErrJobBusy):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scheduler.ErrJobDisabled):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) enableJob(w http.ResponseWriter, r *http.Request) {
	job := chi.URLParam(r, "job")
	if err := s.sched.Enable(job); err != nil {
		if errors.Is(err, scheduler.ErrJobUnknown) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"job": job, "status": "enabled"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key != expected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
