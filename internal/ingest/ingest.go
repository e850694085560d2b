package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/askdoc/askdoc/internal/rag"
	"github.com/askdoc/askdoc/internal/store"
)

// ErrNoDocuments indicates the source directory contains no PDF files.
var ErrNoDocuments = errors.New("no PDF documents found")

// ChunkInserter persists a batch of embedded chunks.
type ChunkInserter interface {
	InsertChunks(ctx context.Context, chunks []store.InsertChunk) error
}

// Stats summarizes one ingestion run.
type Stats struct {
	Files  int
	Pages  int
	Chunks int
}

// Ingestor loads a directory of PDFs into the document store.
type Ingestor struct {
	embedder  rag.Embedder
	documents ChunkInserter
	splitter  *Splitter
	logger    *slog.Logger
}

// Config contains parameters for the Ingestor.
type Config struct {
	Embedder  rag.Embedder
	Documents ChunkInserter
	Logger    *slog.Logger

	// ChunkSize and ChunkOverlap override the splitter defaults.
	// Zero means the default.
	ChunkSize    int
	ChunkOverlap int
}

// New creates an Ingestor.
func New(cfg Config) (*Ingestor, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.Documents == nil {
		return nil, errors.New("chunk inserter is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Ingestor{
		embedder:  cfg.Embedder,
		documents: cfg.Documents,
		splitter:  NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		logger:    logger,
	}, nil
}

// IngestDir loads every *.pdf file directly inside dir, splits each page
// into overlapping chunks, embeds them and persists them per file. Files
// are processed in name order so repeated runs behave identically.
func (ing *Ingestor) IngestDir(ctx context.Context, dir string) (Stats, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return Stats{}, fmt.Errorf("listing %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return Stats{}, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}
	sort.Strings(paths)

	var stats Stats
	for _, path := range paths {
		pages, chunks, err := ing.ingestFile(ctx, path)
		if err != nil {
			return stats, fmt.Errorf("ingesting %s: %w", filepath.Base(path), err)
		}
		stats.Files++
		stats.Pages += pages
		stats.Chunks += chunks
	}

	ing.logger.Info("ingestion completed",
		"files", stats.Files,
		"pages", stats.Pages,
		"chunks", stats.Chunks)
	return stats, nil
}

// ingestFile processes one PDF, committing its chunks as a single batch.
func (ing *Ingestor) ingestFile(ctx context.Context, path string) (pages, chunks int, err error) {
	content, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator's ingest directory
	if err != nil {
		return 0, 0, fmt.Errorf("reading file: %w", err)
	}

	pageTexts, err := extractPages(content)
	if err != nil {
		return 0, 0, err
	}

	source := filepath.Base(path)
	var inserts []store.InsertChunk
	for pageNum, text := range pageTexts {
		for _, chunk := range ing.splitter.Split(text) {
			vec, err := ing.embedder.Embed(ctx, chunk)
			if err != nil {
				return 0, 0, fmt.Errorf("embedding chunk from page %d: %w", pageNum+1, err)
			}
			inserts = append(inserts, store.InsertChunk{
				Content: chunk,
				Metadata: map[string]string{
					"source": source,
					"page":   strconv.Itoa(pageNum),
				},
				Embedding: vec,
			})
		}
	}

	if len(inserts) == 0 {
		ing.logger.Warn("no extractable text", "file", source, "pages", len(pageTexts))
		return len(pageTexts), 0, nil
	}

	if err := ing.documents.InsertChunks(ctx, inserts); err != nil {
		return 0, 0, err
	}

	ing.logger.Debug("ingested file",
		"file", source,
		"pages", len(pageTexts),
		"chunks", len(inserts))
	return len(pageTexts), len(inserts), nil
}
