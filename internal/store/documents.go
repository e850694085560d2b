// Package store implements PostgreSQL persistence for document chunks and
// conversation history, using pgvector for similarity search.
//
// Both stores are safe for concurrent use; the underlying pgxpool.Pool
// handles connection management.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/askdoc/askdoc/internal/rag"
)

// DocumentStore manages ingested document chunks with vector search.
type DocumentStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewDocumentStore creates a DocumentStore. A nil logger falls back to
// slog.Default.
func NewDocumentStore(pool *pgxpool.Pool, logger *slog.Logger) *DocumentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentStore{pool: pool, logger: logger}
}

// MatchDocuments returns the k chunks nearest to the query embedding by
// cosine distance, most similar first.
func (s *DocumentStore) MatchDocuments(ctx context.Context, embedding []float32, k int) ([]rag.Chunk, error) {
	const query = `
		SELECT content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM documents
		ORDER BY embedding <=> $1
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	chunks := make([]rag.Chunk, 0, k)
	for rows.Next() {
		var (
			content      string
			metadataJSON []byte
			similarity   float32
		)
		if err := rows.Scan(&content, &metadataJSON, &similarity); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}

		metadata := make(map[string]string)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
				// A malformed metadata blob degrades one chunk, not the query.
				s.logger.Warn("failed to parse document metadata", "error", err)
				metadata = make(map[string]string)
			}
		}

		chunks = append(chunks, rag.Chunk{
			Content:    content,
			Metadata:   metadata,
			Similarity: similarity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading document rows: %w", err)
	}

	s.logger.Debug("matched documents", "requested", k, "returned", len(chunks))
	return chunks, nil
}

// InsertChunk is one document chunk ready for persistence.
type InsertChunk struct {
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// InsertChunks persists a batch of chunks in one transaction. Either every
// chunk lands or none do.
func (s *DocumentStore) InsertChunks(ctx context.Context, chunks []InsertChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			s.logger.Debug("insert rollback", "error", err)
		}
	}()

	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for chunk %d: %w", i, err)
		}
		batch.Queue(
			`INSERT INTO documents (content, metadata, embedding) VALUES ($1, $2, $3)`,
			chunk.Content, metadataJSON, pgvector.NewVector(chunk.Embedding),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range chunks {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing insert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing insert transaction: %w", err)
	}

	s.logger.Debug("inserted chunks", "count", len(chunks))
	return nil
}

// Count returns the number of stored document chunks.
func (s *DocumentStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}
