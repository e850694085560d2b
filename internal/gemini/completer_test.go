package gemini

import (
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/askdoc/askdoc/internal/rag"
)

func TestToAIMessages(t *testing.T) {
	messages := []rag.Message{
		{Role: rag.RoleSystem, Content: "You answer questions."},
		{Role: rag.RoleHuman, Content: "What is pgvector?"},
		{Role: rag.RoleAI, Content: "A PostgreSQL extension."},
	}

	out, err := toAIMessages(messages)
	if err != nil {
		t.Fatalf("toAIMessages() = %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d messages, want 3", len(out))
	}

	wantRoles := []ai.Role{ai.RoleSystem, ai.RoleUser, ai.RoleModel}
	for i, msg := range out {
		if msg.Role != wantRoles[i] {
			t.Errorf("message %d role = %q, want %q", i, msg.Role, wantRoles[i])
		}
		if got := msg.Text(); got != messages[i].Content {
			t.Errorf("message %d text = %q, want %q", i, got, messages[i].Content)
		}
	}
}

func TestToAIMessagesRejectsUnknownRole(t *testing.T) {
	_, err := toAIMessages([]rag.Message{{Role: "tool", Content: "x"}})
	if err == nil {
		t.Fatal("toAIMessages() accepted an unknown role")
	}
}

func TestNewCompleterValidation(t *testing.T) {
	if _, err := NewCompleter(nil, "gemini-2.5-flash", nil); err == nil {
		t.Error("NewCompleter() accepted nil genkit instance")
	}
}
