package config

import (
	"fmt"
	"os"
	"strings"
)

// validSSLModes are the SSL modes accepted by the pgx driver.
var validSSLModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

// Validate checks the configuration for startup.
// Any error here is fatal: the process must not begin serving.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY must be set", ErrMissingAPIKey)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model_name must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidEmbedderModel)
	}

	if c.HistoryMatchCount < 1 || c.HistoryMatchCount > MaxMatchCount {
		return fmt.Errorf("%w: history_match_count must be in [1, %d], got %d",
			ErrInvalidMatchCount, MaxMatchCount, c.HistoryMatchCount)
	}
	if c.DocumentMatchCount < 1 || c.DocumentMatchCount > MaxMatchCount {
		return fmt.Errorf("%w: document_match_count must be in [1, %d], got %d",
			ErrInvalidMatchCount, MaxMatchCount, c.DocumentMatchCount)
	}

	if c.EvalRetrieveCount < 1 || c.EvalRetrieveCount > MaxMatchCount {
		return fmt.Errorf("%w: eval_retrieve_count must be in [1, %d], got %d",
			ErrInvalidEvalK, MaxMatchCount, c.EvalRetrieveCount)
	}
	if c.EvalPrecisionK < 1 {
		return fmt.Errorf("%w: eval_precision_k must be >= 1, got %d",
			ErrInvalidEvalK, c.EvalPrecisionK)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: postgres_host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: postgres_port must be in [1, 65535], got %d",
			ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: postgres_db_name must not be empty", ErrInvalidPostgresDBName)
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: postgres_ssl_mode %q is not supported",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}
