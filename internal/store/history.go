package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/askdoc/askdoc/internal/rag"
)

// HistoryStore manages per-conversation chat turns with vector recall.
type HistoryStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewHistoryStore creates a HistoryStore. A nil logger falls back to
// slog.Default.
func NewHistoryStore(pool *pgxpool.Pool, logger *slog.Logger) *HistoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStore{pool: pool, logger: logger}
}

// MatchHistory returns the k turns of the given conversation nearest to the
// query embedding by cosine distance, most similar first. Turns from other
// conversations are never visible.
func (s *HistoryStore) MatchHistory(ctx context.Context, embedding []float32, conversationID uuid.UUID, k int) ([]rag.Turn, error) {
	const query = `
		SELECT message_type, content, 1 - (embedding <=> $1) AS similarity
		FROM chat_history
		WHERE conversation_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(embedding), conversationID, k)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	turns := make([]rag.Turn, 0, k)
	for rows.Next() {
		var (
			messageType string
			content     string
			similarity  float32
		)
		if err := rows.Scan(&messageType, &content, &similarity); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		turns = append(turns, rag.Turn{
			Role:       rag.Role(messageType),
			Content:    content,
			Similarity: similarity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history rows: %w", err)
	}

	s.logger.Debug("matched history",
		"conversation_id", conversationID,
		"requested", k,
		"returned", len(turns))
	return turns, nil
}

// Append persists one conversation turn with its embedding.
func (s *HistoryStore) Append(ctx context.Context, conversationID uuid.UUID, role rag.Role, content string, embedding []float32) error {
	const query = `
		INSERT INTO chat_history (conversation_id, message_type, content, embedding)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.pool.Exec(ctx, query, conversationID, string(role), content, pgvector.NewVector(embedding)); err != nil {
		return fmt.Errorf("appending %s turn: %w", role, err)
	}

	s.logger.Debug("appended turn", "conversation_id", conversationID, "role", role)
	return nil
}

// CountTurns returns the number of stored turns for a conversation.
func (s *HistoryStore) CountTurns(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM chat_history WHERE conversation_id = $1`,
		conversationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting turns: %w", err)
	}
	return count, nil
}
