package store_test

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/askdoc/askdoc/internal/log"
	"github.com/askdoc/askdoc/internal/rag"
	"github.com/askdoc/askdoc/internal/store"
	"github.com/askdoc/askdoc/internal/testutil"
)

// unitVec returns a vector of the schema's dimensionality with a single
// nonzero axis. Distinct axes are orthogonal, so cosine similarity between
// them is exactly 0 and recall ordering is fully predictable.
func unitVec(axis int) []float32 {
	v := make([]float32, rag.VectorDimension)
	v[axis] = 1
	return v
}

// blendVec returns a normalized blend of two axes, closer to a than b.
func blendVec(a, b int) []float32 {
	v := make([]float32, rag.VectorDimension)
	norm := float32(math.Sqrt(0.9*0.9 + 0.4*0.4))
	v[a] = 0.9 / norm
	v[b] = 0.4 / norm
	return v
}

func TestDocumentStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	docs := store.NewDocumentStore(tdb.Pool, log.NewNop())

	err := docs.InsertChunks(ctx, []store.InsertChunk{
		{Content: "chunk about storage", Metadata: map[string]string{"source": "Storage_Management.pdf", "page": "1"}, Embedding: unitVec(0)},
		{Content: "chunk about auth", Metadata: map[string]string{"source": "Authentication_Methods.pdf", "page": "3"}, Embedding: unitVec(1)},
		{Content: "chunk about both", Metadata: map[string]string{"source": "Storage_Management.pdf", "page": "2"}, Embedding: blendVec(0, 1)},
	})
	if err != nil {
		t.Fatalf("InsertChunks() = %v", err)
	}

	count, err := docs.Count(ctx)
	if err != nil {
		t.Fatalf("Count() = %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	chunks, err := docs.MatchDocuments(ctx, unitVec(0), 2)
	if err != nil {
		t.Fatalf("MatchDocuments() = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("returned %d chunks, want 2", len(chunks))
	}
	if chunks[0].Content != "chunk about storage" {
		t.Errorf("top chunk = %q, want the exact-match chunk", chunks[0].Content)
	}
	if chunks[1].Content != "chunk about both" {
		t.Errorf("second chunk = %q, want the blended chunk", chunks[1].Content)
	}
	if chunks[0].Similarity < chunks[1].Similarity {
		t.Errorf("similarity not descending: %v then %v", chunks[0].Similarity, chunks[1].Similarity)
	}
	if got := chunks[0].Metadata["source"]; got != "Storage_Management.pdf" {
		t.Errorf("metadata source = %q, want Storage_Management.pdf", got)
	}
	if got := chunks[0].Metadata["page"]; got != "1" {
		t.Errorf("metadata page = %q, want 1", got)
	}
}

func TestDocumentStore_EmptyTable_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	docs := store.NewDocumentStore(tdb.Pool, log.NewNop())

	chunks, err := docs.MatchDocuments(ctx, unitVec(0), 5)
	if err != nil {
		t.Fatalf("MatchDocuments() = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("returned %d chunks from empty table, want 0", len(chunks))
	}
}

func TestHistoryStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	history := store.NewHistoryStore(tdb.Pool, log.NewNop())

	convA := uuid.New()
	convB := uuid.New()

	appends := []struct {
		conv uuid.UUID
		role rag.Role
		text string
		vec  []float32
	}{
		{convA, rag.RoleHuman, "What is pgvector?", unitVec(0)},
		{convA, rag.RoleAI, "An extension for vector search.", unitVec(1)},
		{convB, rag.RoleHuman, "Unrelated conversation.", unitVec(0)},
	}
	for _, a := range appends {
		if err := history.Append(ctx, a.conv, a.role, a.text, a.vec); err != nil {
			t.Fatalf("Append(%q) = %v", a.text, err)
		}
	}

	turns, err := history.MatchHistory(ctx, unitVec(0), convA, 4)
	if err != nil {
		t.Fatalf("MatchHistory() = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("recalled %d turns, want 2", len(turns))
	}
	// Conversation B's turn shares the query vector exactly but must not leak.
	for _, turn := range turns {
		if turn.Content == "Unrelated conversation." {
			t.Fatalf("recalled a turn from another conversation")
		}
	}
	if turns[0].Content != "What is pgvector?" {
		t.Errorf("top turn = %q, want the exact-match turn", turns[0].Content)
	}
	if turns[0].Role != rag.RoleHuman || turns[1].Role != rag.RoleAI {
		t.Errorf("roles = %v, %v, want human then ai", turns[0].Role, turns[1].Role)
	}

	count, err := history.CountTurns(ctx, convA)
	if err != nil {
		t.Fatalf("CountTurns() = %v", err)
	}
	if count != 2 {
		t.Errorf("turn count = %d, want 2", count)
	}
}

func TestHistoryStore_RejectsInvalidRole_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	history := store.NewHistoryStore(tdb.Pool, log.NewNop())

	// The schema constrains message_type to human or ai.
	if err := history.Append(ctx, uuid.New(), rag.RoleSystem, "should fail", unitVec(0)); err == nil {
		t.Fatal("Append() with system role succeeded, want constraint violation")
	}
}
