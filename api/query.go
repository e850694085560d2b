package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/askdoc/askdoc/internal/rag"
)

// MaxQuestionLength bounds the request body's question field.
const MaxQuestionLength = 10000

// queryHandler handles the question-answering endpoint.
type queryHandler struct {
	engine Answerer
	logger *slog.Logger
}

func newQueryHandler(engine Answerer, logger *slog.Logger) *queryHandler {
	return &queryHandler{engine: engine, logger: logger}
}

func (h *queryHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /query", h.query)
}

// QueryRequest is the request body for POST /query.
type QueryRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// QueryResponse is the response body for POST /query.
type QueryResponse struct {
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources"`
	ConversationID string   `json:"conversation_id"`
}

// query answers one question. A missing conversation_id starts a fresh
// conversation; the resolved id is echoed in the response.
func (h *queryHandler) query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "empty_question", "question must not be empty")
		return
	}
	if len(req.Question) > MaxQuestionLength {
		writeError(w, http.StatusBadRequest, "question_too_long", "question exceeds maximum length")
		return
	}

	conversationID := uuid.Nil
	if req.ConversationID != "" {
		id, err := uuid.Parse(req.ConversationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_conversation_id", "conversation_id must be a UUID")
			return
		}
		conversationID = id
	}

	result, err := h.engine.Answer(r.Context(), req.Question, conversationID)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuestion) {
			writeError(w, http.StatusBadRequest, "empty_question", "question must not be empty")
			return
		}
		h.logger.Error("query failed",
			"error", err,
			"conversation_id", req.ConversationID)
		writeError(w, http.StatusBadGateway, "pipeline_error", "failed to answer question")
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Answer:         result.Answer,
		Sources:        result.Sources,
		ConversationID: result.ConversationID.String(),
	})
}
