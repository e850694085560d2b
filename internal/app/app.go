// Package app wires configuration, storage, AI providers and the query
// pipeline into a runnable application.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askdoc/askdoc/internal/config"
	"github.com/askdoc/askdoc/internal/ingest"
	"github.com/askdoc/askdoc/internal/rag"
	"github.com/askdoc/askdoc/internal/store"
)

// App holds all initialized application components.
// Create with Setup; release with Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DBPool   *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	Documents *store.DocumentStore
	History   *store.HistoryStore

	Engine    *rag.Engine
	Evaluator *rag.Evaluator
	Ingestor  *ingest.Ingestor

	otelCleanup func()
	dbCleanup   func()
}

// Close releases application resources in reverse initialization order.
// Safe to call on a partially initialized App.
func (a *App) Close() error {
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}
	return nil
}
