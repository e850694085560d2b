// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.askdoc/config.yaml or ./config.yaml)
//  3. Default values
//
// Categories:
//   - AI: generation model and embedder model
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: match counts for documents and chat history
//   - Eval: retrieval breadth and precision divisor for GET /eval
//   - Tracing: optional OTLP trace export
//
// Validation is fail-fast: Load returns an error for any invalid value and
// the process must not start serving (ConfigurationError semantics).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates GEMINI_API_KEY is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the generation model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model name is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidMatchCount indicates a retrieval match count is out of range.
	ErrInvalidMatchCount = errors.New("invalid match count")

	// ErrInvalidEvalK indicates an evaluation k value is out of range.
	ErrInvalidEvalK = errors.New("invalid eval k")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultModelName is the default Gemini generation model.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default but supports
	// truncation via OutputDimensionality; the schema uses rag.VectorDimension.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultHistoryMatchCount is how many prior turns are recalled per query.
	DefaultHistoryMatchCount = 4

	// DefaultDocumentMatchCount is how many chunks are retrieved per query.
	DefaultDocumentMatchCount = 5

	// DefaultEvalRetrieveCount is the retrieval breadth of the eval harness.
	DefaultEvalRetrieveCount = 5

	// DefaultEvalPrecisionK is the precision@k divisor of the eval harness.
	// Deliberately smaller than DefaultEvalRetrieveCount; the mismatch is
	// part of the reference scoring and must stay the default.
	DefaultEvalPrecisionK = 3

	// MaxMatchCount caps retrieval counts to keep prompt sizes bounded.
	MaxMatchCount = 50
)

// TracingConfig configures optional OTLP trace export.
// An empty Endpoint disables tracing entirely.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
type Config struct {
	// AI model configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Retrieval configuration
	HistoryMatchCount  int `mapstructure:"history_match_count" json:"history_match_count"`
	DocumentMatchCount int `mapstructure:"document_match_count" json:"document_match_count"`

	// Evaluation harness configuration
	EvalRetrieveCount int `mapstructure:"eval_retrieve_count" json:"eval_retrieve_count"`
	EvalPrecisionK    int `mapstructure:"eval_precision_k" json:"eval_precision_k"`

	// HTTP server configuration
	Addr string `mapstructure:"addr" json:"addr"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"` // SENSITIVE: never serialized
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Observability configuration
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".askdoc")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("history_match_count", DefaultHistoryMatchCount)
	v.SetDefault("document_match_count", DefaultDocumentMatchCount)
	v.SetDefault("eval_retrieve_count", DefaultEvalRetrieveCount)
	v.SetDefault("eval_precision_k", DefaultEvalPrecisionK)

	v.SetDefault("addr", "127.0.0.1:8000")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "askdoc")
	v.SetDefault("postgres_password", "askdoc_dev_password")
	v.SetDefault("postgres_db_name", "askdoc")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "askdoc")
	v.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via viper; Validate only
// checks its presence.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "ASKDOC_MODEL_NAME")
	mustBind("embedder_model", "ASKDOC_EMBEDDER_MODEL")
	mustBind("addr", "ASKDOC_ADDR")
	mustBind("tracing.endpoint", "ASKDOC_OTLP_ENDPOINT")
}
