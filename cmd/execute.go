// Package cmd contains the askdoc command-line entry points.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/askdoc/askdoc/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the askdoc CLI.
// It handles flag parsing and command routing; main() stays minimal.
func Execute() error {
	// Handle special flags before full initialization so --version and
	// --help work even when config or the environment is invalid.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			printVersionInfo()
			return nil
		case "help", "--help", "-h":
			printHelp()
			return nil
		}
	}

	logger := initLogger()
	slog.SetDefault(logger)

	if err := checkRequiredEnv(); err != nil {
		return err
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			return runServe(logger)
		case "ingest":
			return runIngest(logger, os.Args[2:])
		default:
			printHelp()
			return fmt.Errorf("unknown command: %s", os.Args[1])
		}
	}

	// Serving is the default behavior.
	return runServe(logger)
}

// initLogger initializes the structured logger.
//
// Log level is controlled by the DEBUG environment variable:
//   - DEBUG set (any value): debug level logging
//   - DEBUG not set: info level logging
//
// Logs go to stderr; stdout is reserved for command output.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.NewWithWriter(os.Stderr, log.Config{Level: level})
}

// checkRequiredEnv verifies that all required environment variables are set.
//
// Currently checks:
//   - GEMINI_API_KEY: Required for embedding and generation
func checkRequiredEnv() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "askdoc requires a Gemini API key for embeddings and generation.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "To set your API key:")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Get your API key at: https://ai.google.dev/")

		return fmt.Errorf("GEMINI_API_KEY not set")
	}
	return nil
}

// printVersionInfo displays version information.
func printVersionInfo() {
	fmt.Printf("askdoc v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
}

// printHelp displays the help message.
func printHelp() {
	fmt.Println("askdoc - Document question answering over your PDF library")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  askdoc               Start the HTTP API server (default)")
	fmt.Println("  askdoc serve         Start the HTTP API server")
	fmt.Println("  askdoc ingest <dir>  Ingest every PDF in a directory")
	fmt.Println("  askdoc version       Show version information")
	fmt.Println("  askdoc help          Show this help")
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Println("  POST /query          Answer a question with retrieved context")
	fmt.Println("  GET  /eval           Retrieval quality report")
	fmt.Println("  GET  /health, /ready Probes")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY       Required: Gemini API key")
	fmt.Println("  DATABASE_URL         Optional: overrides postgres_* settings")
	fmt.Println("  ASKDOC_ADDR          Optional: server listen address")
	fmt.Println("  DEBUG                Optional: enable debug logging")
}
