package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/askdoc/askdoc/db"
	"github.com/askdoc/askdoc/internal/config"
	"github.com/askdoc/askdoc/internal/gemini"
	"github.com/askdoc/askdoc/internal/ingest"
	"github.com/askdoc/askdoc/internal/rag"
	"github.com/askdoc/askdoc/internal/store"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if a.Embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	embedder, err := gemini.NewEmbedder(a.Embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedder adapter: %w", err)
	}
	completer, err := gemini.NewCompleter(g, cfg.ModelName, logger)
	if err != nil {
		return nil, fmt.Errorf("creating completer adapter: %w", err)
	}

	a.Documents = store.NewDocumentStore(pool, logger)
	a.History = store.NewHistoryStore(pool, logger)

	a.Engine, err = rag.New(rag.Config{
		Embedder:  embedder,
		Documents: a.Documents,
		History:   a.History,
		LLM:       completer,
		Logger:    logger,
		HistoryK:  cfg.HistoryMatchCount,
		DocumentK: cfg.DocumentMatchCount,
	})
	if err != nil {
		return nil, fmt.Errorf("creating query engine: %w", err)
	}

	a.Evaluator, err = rag.NewEvaluator(rag.EvaluatorConfig{
		Embedder:   embedder,
		Documents:  a.Documents,
		Logger:     logger,
		RetrieveK:  cfg.EvalRetrieveCount,
		PrecisionK: cfg.EvalPrecisionK,
	})
	if err != nil {
		return nil, fmt.Errorf("creating evaluator: %w", err)
	}

	a.Ingestor, err = ingest.New(ingest.Config{
		Embedder:  embedder,
		Documents: a.Documents,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating ingestor: %w", err)
	}

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit initialization.
// An empty endpoint disables tracing; the returned cleanup is then a no-op.
//
// Traces go to a local OTLP HTTP collector which handles authentication,
// buffering, and forwarding.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	tc := cfg.Tracing
	if tc.Endpoint == "" {
		return func() {}
	}

	// Set OTEL env vars for Genkit's TracerProvider to pick up.
	// SAFETY: os.Setenv is not concurrent-safe, but this function is called
	// exactly once during startup in Setup, before goroutines are spawned.
	if tc.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", tc.ServiceName)
	}
	if tc.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+tc.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(tc.Endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", tc.Endpoint,
		"service", tc.ServiceName,
		"environment", tc.Environment)

	shutdown := tracing.TracerProvider().Shutdown

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the Google AI plugin.
// Call ordering in Setup ensures tracing is set up first.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}
	return g, nil
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
// Pool is configured with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}
