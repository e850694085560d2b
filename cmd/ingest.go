package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/askdoc/askdoc/internal/app"
	"github.com/askdoc/askdoc/internal/config"
)

// runIngest loads every PDF in the given directory into the vector store.
func runIngest(logger *slog.Logger, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: askdoc ingest <dir>")
		return fmt.Errorf("ingest requires exactly one directory argument")
	}
	dir := args[0]

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("checking ingest directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	stats, err := a.Ingestor.IngestDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}

	fmt.Printf("Ingested %d files (%d pages, %d chunks) from %s\n",
		stats.Files, stats.Pages, stats.Chunks, dir)
	return nil
}
