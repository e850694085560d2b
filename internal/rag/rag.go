package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// VectorDimension is the embedding dimensionality used across the system.
// Every stored document chunk and history entry carries a vector of exactly
// this size; the pgvector schema in db/migrations pins the same value.
// gemini-embedding-001 truncates to this via OutputDimensionality.
const VectorDimension int32 = 768

// UnknownSource is substituted when a retrieved chunk has no source metadata.
const UnknownSource = "Unknown"

const (
	// DefaultHistoryK is how many prior turns are recalled per question.
	DefaultHistoryK = 4

	// DefaultDocumentK is how many document chunks are retrieved per question.
	DefaultDocumentK = 5
)

// ErrEmptyQuestion indicates the caller submitted a blank question.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
)

// Message is one turn in a prompt sent to the Completer.
type Message struct {
	Role    Role
	Content string
}

// Chunk is one retrieved document chunk, ranked by similarity.
type Chunk struct {
	Content    string
	Metadata   map[string]string
	Similarity float32
}

// Turn is one recalled history entry, ranked by similarity.
type Turn struct {
	Role       Role
	Content    string
	Similarity float32
}

// Result is the outcome of one answered question.
type Result struct {
	Answer         string
	Sources        []string
	ConversationID uuid.UUID
}

// Embedder converts text into a fixed-length vector.
// The pipeline treats vectors as opaque; it never inspects their contents.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocumentMatcher retrieves the k document chunks most similar to a vector,
// in the store's ranked order.
type DocumentMatcher interface {
	MatchDocuments(ctx context.Context, embedding []float32, k int) ([]Chunk, error)
}

// HistoryStore recalls and appends conversation turns.
// Append is fire-and-confirm: an error means the turn was not persisted and
// must fail the request, since a silently lost turn breaks future recall.
type HistoryStore interface {
	MatchHistory(ctx context.Context, embedding []float32, conversationID uuid.UUID, k int) ([]Turn, error)
	Append(ctx context.Context, conversationID uuid.UUID, role Role, content string, embedding []float32) error
}

// Completer sends a message list to the language model and returns its text.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Config contains all required parameters for the Engine.
type Config struct {
	Embedder  Embedder
	Documents DocumentMatcher
	History   HistoryStore
	LLM       Completer
	Logger    *slog.Logger

	// HistoryK and DocumentK override the recall/retrieval match counts.
	// Zero means the default.
	HistoryK  int
	DocumentK int
}

// Engine coordinates one conversational RAG request end to end.
//
// Engine is stateless apart from its injected ports and is safe for
// concurrent use; per-conversation consistency is the history store's
// concern.
type Engine struct {
	embedder  Embedder
	documents DocumentMatcher
	history   HistoryStore
	llm       Completer
	logger    *slog.Logger
	historyK  int
	documentK int
}

// New creates an Engine. All four ports are required.
func New(cfg Config) (*Engine, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.Documents == nil {
		return nil, errors.New("document matcher is required")
	}
	if cfg.History == nil {
		return nil, errors.New("history store is required")
	}
	if cfg.LLM == nil {
		return nil, errors.New("completer is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	historyK := cfg.HistoryK
	if historyK == 0 {
		historyK = DefaultHistoryK
	}
	documentK := cfg.DocumentK
	if documentK == 0 {
		documentK = DefaultDocumentK
	}

	return &Engine{
		embedder:  cfg.Embedder,
		documents: cfg.Documents,
		history:   cfg.History,
		llm:       cfg.LLM,
		logger:    logger,
		historyK:  historyK,
		documentK: documentK,
	}, nil
}

// Answer runs the full pipeline for one question.
//
// conversationID may be uuid.Nil, in which case a fresh conversation is
// started; the resolved id is echoed in the Result and used for every
// history operation within this call.
//
// Any port failure aborts the request; no partial answer is returned.
func (e *Engine) Answer(ctx context.Context, question string, conversationID uuid.UUID) (Result, error) {
	if strings.TrimSpace(question) == "" {
		return Result{}, ErrEmptyQuestion
	}

	convID := conversationID
	if convID == uuid.Nil {
		convID = uuid.New()
	}

	// Recall prior turns ranked by similarity to the question, not recency.
	questionVec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return Result{}, fmt.Errorf("embedding question: %w", err)
	}

	turns, err := e.history.MatchHistory(ctx, questionVec, convID, e.historyK)
	if err != nil {
		return Result{}, fmt.Errorf("recalling history: %w", err)
	}
	history := historyMessages(turns)

	standalone, err := e.reformulate(ctx, history, question)
	if err != nil {
		return Result{}, fmt.Errorf("reformulating question: %w", err)
	}

	// Retrieve supporting context for the standalone question.
	standaloneVec, err := e.embedder.Embed(ctx, standalone)
	if err != nil {
		return Result{}, fmt.Errorf("embedding standalone question: %w", err)
	}
	chunks, err := e.documents.MatchDocuments(ctx, standaloneVec, e.documentK)
	if err != nil {
		return Result{}, fmt.Errorf("retrieving documents: %w", err)
	}

	// The final human turn carries the original question; the reformulated
	// one exists only to sharpen retrieval.
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{
		Role:    RoleSystem,
		Content: answerSystemPrompt + "\n\n" + joinChunkContents(chunks),
	})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleHuman, Content: question})

	answer, err := e.llm.Complete(ctx, messages)
	if err != nil {
		return Result{}, fmt.Errorf("generating answer: %w", err)
	}

	// Persist both sides of the turn, each embedded independently at write
	// time so recall never depends on the vectors computed above.
	if err := e.appendTurn(ctx, convID, RoleHuman, question); err != nil {
		return Result{}, err
	}
	if err := e.appendTurn(ctx, convID, RoleAI, answer); err != nil {
		return Result{}, err
	}

	// Sources come from a second retrieval on the original question. The
	// asymmetry with the context retrieval above is inherited reference
	// behavior, kept on purpose.
	sources, err := e.sources(ctx, question)
	if err != nil {
		return Result{}, err
	}

	e.logger.Debug("answered question",
		"conversation_id", convID,
		"recalled_turns", len(turns),
		"context_chunks", len(chunks),
		"sources", len(sources))

	return Result{
		Answer:         answer,
		Sources:        sources,
		ConversationID: convID,
	}, nil
}

// reformulate turns a follow-up question into a standalone one using the
// recalled history. With no history the question already stands alone, so
// the model call is skipped and the question passes through unchanged.
func (e *Engine) reformulate(ctx context.Context, history []Message, question string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: contextualizePrompt})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleHuman, Content: question})

	standalone, err := e.llm.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(standalone), nil
}

// appendTurn embeds content and appends it to the conversation history.
func (e *Engine) appendTurn(ctx context.Context, conversationID uuid.UUID, role Role, content string) error {
	vec, err := e.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embedding %s turn: %w", role, err)
	}
	if err := e.history.Append(ctx, conversationID, role, content, vec); err != nil {
		return fmt.Errorf("persisting %s turn: %w", role, err)
	}
	return nil
}

// sources retrieves documents for the original question and returns their
// distinct source names in first-seen order.
func (e *Engine) sources(ctx context.Context, question string) ([]string, error) {
	vec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question for sources: %w", err)
	}
	chunks, err := e.documents.MatchDocuments(ctx, vec, e.documentK)
	if err != nil {
		return nil, fmt.Errorf("retrieving sources: %w", err)
	}

	seen := make(map[string]struct{}, len(chunks))
	sources := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		source := chunk.Metadata["source"]
		if source == "" {
			source = UnknownSource
		}
		if _, dup := seen[source]; dup {
			continue
		}
		seen[source] = struct{}{}
		sources = append(sources, source)
	}
	return sources, nil
}

// historyMessages maps recalled turns into prompt messages, preserving the
// store's ranked order. Turns with unexpected roles are dropped.
func historyMessages(turns []Turn) []Message {
	messages := make([]Message, 0, len(turns))
	for _, turn := range turns {
		if turn.Role != RoleHuman && turn.Role != RoleAI {
			continue
		}
		messages = append(messages, Message{Role: turn.Role, Content: turn.Content})
	}
	return messages
}

// joinChunkContents concatenates chunk contents with blank-line separators,
// in ranked order. Chunks with no content are skipped rather than failing
// the request.
func joinChunkContents(chunks []Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Content == "" {
			continue
		}
		parts = append(parts, chunk.Content)
	}
	return strings.Join(parts, "\n\n")
}
