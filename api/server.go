// Package api provides the HTTP surface for askdoc.
//
// Endpoints:
//   - GET  /       → liveness message
//   - POST /query  → answer a question with retrieved context
//   - GET  /eval   → retrieval quality report
//   - GET  /health → liveness probe
//   - GET  /ready  → readiness probe (database ping)
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - ratelimit.go: per-IP rate limiting
//   - health.go: probes and the root liveness message
//   - query.go: POST /query handler
//   - eval.go: GET /eval handler
//   - response.go: JSON response helpers
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askdoc/askdoc/internal/rag"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// A query makes several model calls in sequence, so this is generous.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Answerer runs the question-answering pipeline.
type Answerer interface {
	Answer(ctx context.Context, question string, conversationID uuid.UUID) (rag.Result, error)
}

// EvalRunner produces a retrieval quality report.
type EvalRunner interface {
	Evaluate(ctx context.Context) (rag.Report, error)
}

// ServerConfig contains configuration for creating the HTTP server.
type ServerConfig struct {
	Logger    *slog.Logger
	Engine    Answerer      // Required
	Evaluator EvalRunner    // Required
	Pool      *pgxpool.Pool // Optional: nil makes /ready always report not ready
	RateBurst int           // Rate limiter burst size per IP (0 = default 30)
}

// Server is the askdoc HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger

	limiter *rateLimiter
}

// NewServer creates a server with all routes registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if cfg.Evaluator == nil {
		return nil, errors.New("evaluator is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 30
	}

	mux := http.NewServeMux()

	health := newHealthHandler(cfg.Pool, logger)
	health.registerRoutes(mux)

	query := newQueryHandler(cfg.Engine, logger)
	query.registerRoutes(mux)

	eval := newEvalHandler(cfg.Evaluator, logger)
	eval.registerRoutes(mux)

	return &Server{
		mux:     mux,
		logger:  logger,
		limiter: newRateLimiter(1.0, burst),
	}, nil
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → rate limit → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		rateLimitMiddleware(s.limiter, s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
