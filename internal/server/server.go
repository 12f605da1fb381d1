// Package server exposes the read-only dashboard API over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/j-veylop/claude-meter/internal/aggregator"
	"github.com/j-veylop/claude-meter/internal/db"
	"github.com/j-veylop/claude-meter/internal/logger"
	"github.com/j-veylop/claude-meter/internal/metrics"
	"github.com/j-veylop/claude-meter/internal/predictor"
)

// Server serves the dashboard query surface. Every endpoint is read-only
// and side-effect free; absent data renders as empty results, never as an
// error status.
type Server struct {
	database   *db.DB
	aggregator *aggregator.Aggregator
	predictor  *predictor.Predictor
	httpServer *http.Server
}

// New creates a server bound to addr.
func New(addr string, database *db.DB, agg *aggregator.Aggregator, pred *predictor.Predictor) *Server {
	s := &Server{
		database:   database,
		aggregator: agg,
		predictor:  pred,
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/current", s.handleCurrent)
		r.Get("/history", s.handleHistory)
		r.Get("/aggregate", s.handleAggregate)
		r.Get("/prediction", s.handlePrediction)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// ListenAndServe blocks serving HTTP until the server is shut down.
func (s *Server) ListenAndServe() error {
	logger.Info("dashboard API listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
