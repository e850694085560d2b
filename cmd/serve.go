package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/askdoc/askdoc/api"
	"github.com/askdoc/askdoc/internal/app"
	"github.com/askdoc/askdoc/internal/config"
)

// parseRateBurst reads ASKDOC_RATE_BURST from the environment.
// Returns 0 (use default) if unset or invalid.
func parseRateBurst() int {
	v := os.Getenv("ASKDOC_RATE_BURST")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// runServe initializes the application and starts the HTTP API server.
func runServe(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting askdoc", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	srv, err := api.NewServer(api.ServerConfig{
		Logger:    logger,
		Engine:    a.Engine,
		Evaluator: a.Evaluator,
		Pool:      a.DBPool,
		RateBurst: parseRateBurst(),
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	logger.Info("HTTP server ready",
		"addr", cfg.Addr,
		"endpoints", "/query, /eval",
		"health", "/health, /ready")

	return srv.Run(ctx, cfg.Addr)
}
