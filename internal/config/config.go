// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (LECTERN_* overrides, DATABASE_URL)
//  2. Config file (~/.lectern/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Model: provider, model name, embedder, generation knobs
//   - Storage: PostgreSQL connection (see storage.go)
//   - Pipeline: rounds, search limit, history limit
//   - Ingestion: docs folder, chunking
//   - Server: CORS, proxy trust, rate limiting
//   - Tracing: OTLP collector endpoint (see observability.go)
//
// Sensitive values (the database password) are masked in MarshalJSON and
// String. Validation uses sentinel errors so callers can errors.Is() them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrAPIKeyRequired indicates the provider needs an API key that is not set.
	ErrAPIKeyRequired = errors.New("API key required")

	// ErrInvalidProvider indicates the model provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidRounds indicates the max rounds value is out of range.
	ErrInvalidRounds = errors.New("invalid max rounds")

	// ErrInvalidSearchLimit indicates the search limit is out of range.
	ErrInvalidSearchLimit = errors.New("invalid search limit")

	// ErrInvalidChunking indicates chunk size/overlap are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking")

	// ErrDatabaseRequired indicates PostgreSQL settings are incomplete.
	ErrDatabaseRequired = errors.New("database configuration required")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrDocsDirRequired indicates ingestion has no docs folder configured.
	ErrDocsDirRequired = errors.New("docs directory required")
)

// Model provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"

	// providerGoogleAI is the genkit plugin prefix for Gemini models.
	providerGoogleAI = "googleai"
)

// DefaultGeminiEmbedderModel is the default embedder.
// gemini-embedding-001 outputs 3072 dimensions natively and supports
// truncation via OutputDimensionality; the pgvector schema stores 768
// (knowledge.VectorDim).
const DefaultGeminiEmbedderModel = "gemini-embedding-001"

// Config stores application configuration.
// Sensitive fields are explicitly masked in MarshalJSON; when adding new
// secrets, update that method.
type Config struct {
	// Model provider and generation configuration
	Provider      string  `mapstructure:"provider" json:"provider"`             // "gemini" (default) or "ollama"
	ModelName     string  `mapstructure:"model_name" json:"model_name"`         // e.g. "gemini-2.5-flash", "llama3.3"
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"` // e.g. "gemini-embedding-001"
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens" json:"max_tokens"`
	OllamaHost    string  `mapstructure:"ollama_host" json:"ollama_host"` // Only used when provider is "ollama"

	// Query pipeline configuration
	MaxRounds    int `mapstructure:"max_rounds" json:"max_rounds"`       // Tool rounds per query
	SearchLimit  int `mapstructure:"search_limit" json:"search_limit"`   // Chunks returned per search
	HistoryLimit int `mapstructure:"history_limit" json:"history_limit"` // Exchanges folded into the prompt

	// Ingestion configuration
	DocsDir      string `mapstructure:"docs_dir" json:"docs_dir"`
	ChunkSize    int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDB       string `mapstructure:"postgres_db" json:"postgres_db"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration (serve mode only)
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For behind a reverse proxy
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`   // Per-IP burst (0 = server default)

	// Tracing configuration (see observability.go)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Dir returns the lectern configuration directory (~/.lectern), creating it
// if needed. The directory also holds CLI state such as the current session.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting user home directory: %w", err)
	}

	dir := filepath.Join(home, ".lectern")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
// Structural validation runs immediately; mode-specific checks
// (ValidateServe, ValidateIngest) are the caller's job.
func Load() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Model defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("temperature", 0.0)
	viper.SetDefault("max_tokens", 800)
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Pipeline defaults
	viper.SetDefault("max_rounds", 2)
	viper.SetDefault("search_limit", 5)
	viper.SetDefault("history_limit", 2)

	// Ingestion defaults
	viper.SetDefault("docs_dir", "./docs")
	viper.SetDefault("chunk_size", 800)
	viper.SetDefault("chunk_overlap", 100)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "lectern")
	viper.SetDefault("postgres_password", "lectern_dev_password")
	viper.SetDefault("postgres_db", "lectern")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults (Vite dev server origin)
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 0)

	// Tracing defaults (empty endpoint disables export)
	viper.SetDefault("tracing.endpoint", "")
	viper.SetDefault("tracing.service", "lectern")
	viper.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by genkit, not via viper; its presence is
// checked in ValidateServe/ValidateIngest based on the selected provider.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime condition.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "LECTERN_PROVIDER")
	mustBind("model_name", "LECTERN_MODEL_NAME")
	mustBind("embedder_model", "LECTERN_EMBEDDER_MODEL")
	mustBind("ollama_host", "LECTERN_OLLAMA_HOST")

	mustBind("docs_dir", "LECTERN_DOCS_DIR")

	mustBind("cors_origins", "LECTERN_CORS_ORIGINS")
	mustBind("trust_proxy", "LECTERN_TRUST_PROXY")
	mustBind("rate_burst", "LECTERN_RATE_BURST")

	mustBind("tracing.endpoint", "LECTERN_OTLP_ENDPOINT")
	mustBind("tracing.environment", "LECTERN_ENVIRONMENT")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 bytes or fewer are fully masked; longer ones keep the first
// and last two characters for debug utility. This guards against accidental
// logging, not against an adversary with log access.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// FullModelName returns the provider-qualified model name for genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3".
// A ModelName already containing "/" is returned as-is.
func (c *Config) FullModelName() string {
	return c.qualify(c.ModelName)
}

// FullEmbedderName returns the provider-qualified embedder name for genkit.
func (c *Config) FullEmbedderName() string {
	return c.qualify(c.EmbedderModel)
}

func (c *Config) qualify(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	if c.Provider == ProviderOllama {
		return ProviderOllama + "/" + name
	}
	return providerGoogleAI + "/" + name
}
