package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/askdoc/askdoc/internal/rag"
)

// Completer sends prompt message lists to a Gemini model through Genkit.
type Completer struct {
	genkit    *genkit.Genkit
	modelName string
	logger    *slog.Logger
}

// NewCompleter creates a Completer. modelName is the bare model id
// (e.g. "gemini-2.5-flash"); the googleai provider prefix is added here.
func NewCompleter(g *genkit.Genkit, modelName string, logger *slog.Logger) (*Completer, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if modelName == "" {
		return nil, errors.New("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Completer{
		genkit:    g,
		modelName: "googleai/" + modelName,
		logger:    logger,
	}, nil
}

// Complete implements rag.Completer.
func (c *Completer) Complete(ctx context.Context, messages []rag.Message) (string, error) {
	aiMessages, err := toAIMessages(messages)
	if err != nil {
		return "", err
	}

	resp, err := genkit.Generate(ctx, c.genkit,
		ai.WithModelName(c.modelName),
		ai.WithMessages(aiMessages...),
	)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("model returned an empty completion")
	}

	c.logger.Debug("completion generated",
		"model", c.modelName,
		"messages", len(messages),
		"response_length", len(text))
	return text, nil
}

// toAIMessages maps prompt messages onto Genkit message constructors.
func toAIMessages(messages []rag.Message) ([]*ai.Message, error) {
	out := make([]*ai.Message, 0, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case rag.RoleSystem:
			out = append(out, ai.NewSystemTextMessage(msg.Content))
		case rag.RoleHuman:
			out = append(out, ai.NewUserTextMessage(msg.Content))
		case rag.RoleAI:
			out = append(out, ai.NewModelTextMessage(msg.Content))
		default:
			return nil, fmt.Errorf("message %d has unsupported role %q", i, msg.Role)
		}
	}
	return out, nil
}
