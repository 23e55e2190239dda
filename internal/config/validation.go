package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// Validate checks structural configuration values.
// Mode-specific requirements (API keys, docs folder) live in ValidateServe
// and ValidateIngest so commands needing neither can run without them.
// Returns sentinel errors checkable with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider and model configuration
	if c.Provider != ProviderGemini && c.Provider != ProviderOllama {
		return fmt.Errorf("%w: %q (supported: %q, %q)",
			ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOllama)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// Temperature range per the Gemini API: 0.0 (deterministic) to 2.0
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if c.Provider == ProviderOllama {
		if !strings.HasPrefix(c.OllamaHost, "http://") && !strings.HasPrefix(c.OllamaHost, "https://") {
			return fmt.Errorf("%w: %q must be an http(s) URL", ErrInvalidOllamaHost, c.OllamaHost)
		}
	}

	// 2. Pipeline configuration
	if c.MaxRounds < 1 || c.MaxRounds > 10 {
		return fmt.Errorf("%w: must be between 1 and 10, got %d", ErrInvalidRounds, c.MaxRounds)
	}

	if c.SearchLimit < 1 || c.SearchLimit > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidSearchLimit, c.SearchLimit)
	}

	// 3. Chunking configuration
	if c.ChunkSize < 100 || c.ChunkSize > 10000 {
		return fmt.Errorf("%w: chunk_size must be between 100 and 10,000, got %d",
			ErrInvalidChunking, c.ChunkSize)
	}

	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be non-negative and smaller than chunk_size (%d), got %d",
			ErrInvalidChunking, c.ChunkSize, c.ChunkOverlap)
	}

	// 4. PostgreSQL configuration
	if c.PostgresHost == "" || c.PostgresUser == "" || c.PostgresDB == "" {
		return fmt.Errorf("%w: postgres host, user, and database must all be set", ErrDatabaseRequired)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrDatabaseRequired)
	}

	if c.PostgresPassword == "lectern_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"warning", "change postgres_password in config.yaml for production deployments")
	}

	// Modern SSL modes only; allow/prefer are deprecated
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}

// ValidateServe validates configuration for the HTTP API and MCP servers.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return c.requireProviderCredentials()
}

// ValidateIngest validates configuration for document ingestion.
func (c *Config) ValidateIngest() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.DocsDir) == "" {
		return fmt.Errorf("%w: set docs_dir in config.yaml or LECTERN_DOCS_DIR", ErrDocsDirRequired)
	}
	return c.requireProviderCredentials()
}

// requireProviderCredentials checks provider-specific secrets.
// Gemini needs GEMINI_API_KEY (read directly by genkit, never stored in
// config); Ollama runs locally without credentials.
func (c *Config) requireProviderCredentials() error {
	if c.Provider == ProviderGemini && os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrAPIKeyRequired)
	}
	return nil
}
