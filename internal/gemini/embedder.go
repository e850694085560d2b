// Package gemini adapts Genkit's Google AI bindings to the embedding and
// completion ports used by the rag package.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"

	"github.com/askdoc/askdoc/internal/rag"
)

// Embedder wraps an ai.Embedder and truncates output to the schema's
// vector dimensionality.
type Embedder struct {
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewEmbedder creates an Embedder.
func NewEmbedder(embedder ai.Embedder, logger *slog.Logger) (*Embedder, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{embedder: embedder, logger: logger}, nil
}

// Embed generates a vector embedding for the given text.
//
// gemini-embedding-001 natively emits 3072 dimensions; OutputDimensionality
// requests truncation to rag.VectorDimension so stored vectors match the
// pgvector column width.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := rag.VectorDimension
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding response")
	}

	embedding := resp.Embeddings[0].Embedding
	if len(embedding) != int(rag.VectorDimension) {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(embedding), rag.VectorDimension)
	}
	return embedding, nil
}
