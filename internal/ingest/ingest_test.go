package ingest_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/askdoc/askdoc/internal/ingest"
	"github.com/askdoc/askdoc/internal/log"
	"github.com/askdoc/askdoc/internal/store"
	"github.com/askdoc/askdoc/internal/testutil"
)

type recordingInserter struct {
	mu      sync.Mutex
	batches [][]store.InsertChunk
}

func (r *recordingInserter) InsertChunks(_ context.Context, chunks []store.InsertChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, chunks)
	return nil
}

func TestNewValidation(t *testing.T) {
	emb := testutil.NewMockEmbedder(8)

	if _, err := ingest.New(ingest.Config{Documents: &recordingInserter{}}); err == nil {
		t.Error("New() accepted missing embedder")
	}
	if _, err := ingest.New(ingest.Config{Embedder: emb}); err == nil {
		t.Error("New() accepted missing chunk inserter")
	}
	if _, err := ingest.New(ingest.Config{Embedder: emb, Documents: &recordingInserter{}, Logger: log.NewNop()}); err != nil {
		t.Errorf("New() = %v", err)
	}
}

func TestIngestDirEmptyDirectory(t *testing.T) {
	ing, err := ingest.New(ingest.Config{
		Embedder:  testutil.NewMockEmbedder(8),
		Documents: &recordingInserter{},
		Logger:    log.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	_, err = ing.IngestDir(context.Background(), t.TempDir())
	if !errors.Is(err, ingest.ErrNoDocuments) {
		t.Fatalf("IngestDir() = %v, want ErrNoDocuments", err)
	}
}
