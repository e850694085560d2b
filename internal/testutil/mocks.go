// Package testutil provides shared testing utilities for the askdoc project.
//
// It contains deterministic fakes for the rag ports (embedder, completer,
// document and history stores) plus a PostgreSQL container helper for
// integration tests.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/askdoc/askdoc/internal/rag"
)

// MockEmbedder provides deterministic embedding vectors for testing.
//
// By default it derives a vector from the text using SHA-256, so the same
// text always embeds identically. Explicit mappings can be added when a test
// needs precise control. Thread-safe.
type MockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   []string
	dim     int
	err     error
}

// NewMockEmbedder creates a mock embedder producing vectors of the given size.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{
		vectors: make(map[string][]float32),
		dim:     dim,
	}
}

// SetVector registers an explicit vector for a text.
func (m *MockEmbedder) SetVector(text string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[text] = vec
}

// FailWith makes every subsequent Embed call return err.
func (m *MockEmbedder) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of all embedded texts, in call order.
func (m *MockEmbedder) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Embed implements rag.Embedder.
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	m.calls = append(m.calls, text)

	if vec, ok := m.vectors[text]; ok {
		return vec, nil
	}

	// Deterministic pseudo-vector from the text hash.
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, m.dim)
	for i := range vec {
		word := binary.BigEndian.Uint32(sum[(i*4)%28 : (i*4)%28+4])
		vec[i] = float32(word%1000)/1000 - 0.5
	}
	// Normalize so cosine math stays sane if a store fake uses it.
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// MockCompleter provides deterministic LLM responses for testing.
//
// It matches the full prompt text (all message contents, joined) against
// registered substrings, first match wins; the fallback is returned
// otherwise. Matching on the whole prompt lets tests key responses off the
// system instruction, distinguishing reformulation calls from generation
// calls. Thread-safe.
type MockCompleter struct {
	mu       sync.Mutex
	rules    []completerRule
	fallback string
	calls    [][]rag.Message
	err      error
}

type completerRule struct {
	pattern  string
	response string
}

// NewMockCompleter creates a mock completer with the given fallback response.
func NewMockCompleter(fallback string) *MockCompleter {
	return &MockCompleter{fallback: fallback}
}

// AddResponse registers a pattern-response pair. The response is returned
// when the prompt text contains pattern (case-insensitive).
func (m *MockCompleter) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, completerRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// FailWith makes every subsequent Complete call return err.
func (m *MockCompleter) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of every message list the completer received.
func (m *MockCompleter) Calls() [][]rag.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([][]rag.Message, len(m.calls))
	for i, msgs := range m.calls {
		cp[i] = append([]rag.Message(nil), msgs...)
	}
	return cp
}

// Complete implements rag.Completer.
func (m *MockCompleter) Complete(_ context.Context, messages []rag.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	m.calls = append(m.calls, append([]rag.Message(nil), messages...))

	var prompt strings.Builder
	for _, msg := range messages {
		prompt.WriteString(msg.Content)
		prompt.WriteByte('\n')
	}

	lower := strings.ToLower(prompt.String())
	for _, rule := range m.rules {
		if strings.Contains(lower, rule.pattern) {
			return rule.response, nil
		}
	}
	return m.fallback, nil
}

// FakeDocumentStore returns a fixed chunk list for every match call.
// Thread-safe.
type FakeDocumentStore struct {
	mu     sync.Mutex
	chunks []rag.Chunk
	calls  []int // requested k values, in call order
	err    error
}

// NewFakeDocumentStore creates a store that always returns chunks.
func NewFakeDocumentStore(chunks []rag.Chunk) *FakeDocumentStore {
	return &FakeDocumentStore{chunks: chunks}
}

// FailWith makes every subsequent MatchDocuments call return err.
func (f *FakeDocumentStore) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls returns the requested k of every match call.
func (f *FakeDocumentStore) Calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]int, len(f.calls))
	copy(cp, f.calls)
	return cp
}

// MatchDocuments implements rag.DocumentMatcher.
func (f *FakeDocumentStore) MatchDocuments(_ context.Context, _ []float32, k int) ([]rag.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, k)

	if len(f.chunks) > k {
		return append([]rag.Chunk(nil), f.chunks[:k]...), nil
	}
	return append([]rag.Chunk(nil), f.chunks...), nil
}

// AppendedTurn records one FakeHistoryStore.Append call.
type AppendedTurn struct {
	ConversationID uuid.UUID
	Role           rag.Role
	Content        string
	Embedding      []float32
}

// FakeHistoryStore returns fixed turns on recall and records appends.
// Thread-safe.
type FakeHistoryStore struct {
	mu        sync.Mutex
	turns     []rag.Turn
	appends   []AppendedTurn
	matchErr  error
	appendErr error
}

// NewFakeHistoryStore creates a history store recalling the given turns.
func NewFakeHistoryStore(turns []rag.Turn) *FakeHistoryStore {
	return &FakeHistoryStore{turns: turns}
}

// FailMatchWith makes MatchHistory return err.
func (f *FakeHistoryStore) FailMatchWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchErr = err
}

// FailAppendWith makes Append return err.
func (f *FakeHistoryStore) FailAppendWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendErr = err
}

// Appends returns a copy of every recorded append, in call order.
func (f *FakeHistoryStore) Appends() []AppendedTurn {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]AppendedTurn, len(f.appends))
	copy(cp, f.appends)
	return cp
}

// MatchHistory implements rag.HistoryStore.
func (f *FakeHistoryStore) MatchHistory(_ context.Context, _ []float32, _ uuid.UUID, k int) ([]rag.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.matchErr != nil {
		return nil, f.matchErr
	}
	if len(f.turns) > k {
		return append([]rag.Turn(nil), f.turns[:k]...), nil
	}
	return append([]rag.Turn(nil), f.turns...), nil
}

// Append implements rag.HistoryStore.
func (f *FakeHistoryStore) Append(_ context.Context, conversationID uuid.UUID, role rag.Role, content string, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.appendErr != nil {
		return f.appendErr
	}
	f.appends = append(f.appends, AppendedTurn{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Embedding:      append([]float32(nil), embedding...),
	})
	return nil
}
