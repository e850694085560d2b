package api

import (
	"log/slog"
	"net/http"
)

// evalHandler serves the retrieval quality report.
type evalHandler struct {
	evaluator EvalRunner
	logger    *slog.Logger
}

func newEvalHandler(evaluator EvalRunner, logger *slog.Logger) *evalHandler {
	return &evalHandler{evaluator: evaluator, logger: logger}
}

func (h *evalHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /eval", h.eval)
}

// eval runs the full evaluation query set and returns the report.
// The run embeds and retrieves per query, so it is not instant.
func (h *evalHandler) eval(w http.ResponseWriter, r *http.Request) {
	report, err := h.evaluator.Evaluate(r.Context())
	if err != nil {
		h.logger.Error("evaluation failed", "error", err)
		writeError(w, http.StatusBadGateway, "evaluation_error", "failed to run evaluation")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
