package api

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// healthHandler serves the root liveness message and probe endpoints.
type healthHandler struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func newHealthHandler(pool *pgxpool.Pool, logger *slog.Logger) *healthHandler {
	return &healthHandler{pool: pool, logger: logger}
}

func (h *healthHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.root)
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// root confirms the API is up. No side effects.
func (h *healthHandler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "askdoc API is running",
	})
}

// liveness is a liveness probe endpoint.
// Returns 200 OK if the process is alive.
func (h *healthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness is a readiness probe endpoint.
// Performs an actual health check by pinging the database.
func (h *healthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		http.Error(w, "database pool not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.pool.Ping(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
