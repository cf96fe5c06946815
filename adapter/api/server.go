// Package api provides the HTTP API for pricing, credits and family plans.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/felixgeelhaar/perks/internal/app"
	"github.com/felixgeelhaar/perks/pkg/observability"
)

// Server is the perks HTTP API server.
type Server struct {
	mux     *http.ServeMux
	server  *http.Server
	logger  *slog.Logger
	metrics observability.Metrics
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates the API server over the container's handlers.
func NewServer(cfg ServerConfig, c *app.Container) *Server {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		metrics: c.Metrics,
	}

	family := NewFamilyHandler(c.Family, logger)
	billing := NewBillingHandler(c.Billing, c.Clock, logger)

	s.mux.Handle("GET /health", c.Health.Handler())
	s.mux.Handle("GET /metrics", c.Metrics.Handler())

	s.mux.HandleFunc("POST /family-plan", family.Command)
	s.mux.HandleFunc("GET /family-plan", family.Get)

	s.mux.HandleFunc("POST /pricing/service", billing.PriceService)
	s.mux.HandleFunc("POST /pricing/bundle", billing.PriceBundle)
	s.mux.HandleFunc("GET /credits", billing.Balance)
	s.mux.HandleFunc("POST /credits/consume", billing.Consume)
	s.mux.HandleFunc("POST /credits/refresh", billing.Refresh)
	s.mux.HandleFunc("POST /subscriptions", billing.Subscribe)
	s.mux.HandleFunc("GET /subscriptions", billing.GetSubscription)
	s.mux.HandleFunc("POST /subscriptions/cancel", billing.CancelSubscription)
	s.mux.HandleFunc("POST /upgrade-advice", billing.Advise)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.instrument(s.mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument attaches request and correlation ids and records every request.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := observability.NewRequestContext(r.Context(), r.Header.Get("X-Correlation-ID"))
		w.Header().Set("X-Request-ID", observability.RequestIDFromContext(ctx))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		req := r.WithContext(ctx)
		next.ServeHTTP(rec, req)

		route := req.Pattern
		if route == "" {
			route = "unmatched"
		}
		tags := []observability.Tag{
			observability.T("route", route),
			observability.T("status", strconv.Itoa(rec.status)),
		}
		s.metrics.Counter(observability.MetricHTTPRequests, 1, tags...)
		s.metrics.Timing(observability.MetricHTTPRequestDuration, time.Since(start), tags[:1]...)
		s.logger.DebugContext(ctx, "request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// decodeJSON reads a JSON body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errBadBody.Wrap(err)
	}
	return nil
}
