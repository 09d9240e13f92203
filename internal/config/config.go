// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (COHERE_API_KEY, QDRANT_URL, ...)
//  2. Config file (./config.yaml, optional)
//  3. Default values
//
// Main configuration categories:
//   - Embedding: Cohere API key, model, vector dimension
//   - Vector store: backend selection (qdrant or pgvector) plus connection
//   - Generation: Gemini API key, model, temperature
//   - Crawling/chunking: site base URL, doc paths, chunk size and overlap
//   - Retrieval: default top-k and minimum relevance score
//
// Missing required settings are startup-fatal: Load validates everything the
// ingestion path needs, and ValidateModel adds the generative-model check for
// the query path. Errors are sentinel values checked with errors.Is.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingCohereKey indicates COHERE_API_KEY is not set.
	ErrMissingCohereKey = errors.New("missing Cohere API key")

	// ErrMissingQdrantURL indicates QDRANT_URL is not set for the qdrant backend.
	ErrMissingQdrantURL = errors.New("missing Qdrant URL")

	// ErrMissingQdrantKey indicates QDRANT_API_KEY is not set for the qdrant backend.
	ErrMissingQdrantKey = errors.New("missing Qdrant API key")

	// ErrMissingPostgresURL indicates POSTGRES_URL is not set for the pgvector backend.
	ErrMissingPostgresURL = errors.New("missing PostgreSQL URL")

	// ErrMissingGeminiKey indicates GEMINI_API_KEY is not set.
	ErrMissingGeminiKey = errors.New("missing Gemini API key")

	// ErrInvalidBackend indicates an unknown vector store backend name.
	ErrInvalidBackend = errors.New("invalid vector store backend")

	// ErrInvalidChunking indicates chunk size / overlap values are out of range.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidDimension indicates a non-positive embedding dimension.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidTopK indicates the default top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidMinScore indicates the relevance threshold is outside [0, 1].
	ErrInvalidMinScore = errors.New("invalid minimum relevance score")
)

// Vector store backend identifiers used in Config.VectorBackend.
const (
	BackendQdrant   = "qdrant"
	BackendPgvector = "pgvector"
)

const (
	// DefaultEmbeddingModel is the Cohere model used at both ingest and
	// query time. Ingest and query MUST use the same model or similarity
	// scores become meaningless.
	DefaultEmbeddingModel = "embed-english-v3.0"

	// DefaultEmbeddingDimension matches embed-english-v3.0 output.
	DefaultEmbeddingDimension = 1024

	// DefaultCollection is the vector collection (or table) name.
	DefaultCollection = "physical_ai_book"

	// DefaultModelName is the Gemini model used for answer generation.
	DefaultModelName = "gemini-2.5-flash"
)

// Config stores application configuration.
// SECURITY: API keys must never be logged; there is deliberately no String()
// or MarshalJSON that exposes them.
type Config struct {
	// Embedding provider configuration
	CohereAPIKey       string `mapstructure:"cohere_api_key"`
	EmbeddingModel     string `mapstructure:"embedding_model"`
	EmbeddingDimension int    `mapstructure:"embedding_dimension"`

	// Vector store configuration
	VectorBackend string `mapstructure:"vector_backend"` // "qdrant" (default) or "pgvector"
	QdrantURL     string `mapstructure:"qdrant_url"`
	QdrantAPIKey  string `mapstructure:"qdrant_api_key"`
	PostgresURL   string `mapstructure:"postgres_url"`
	Collection    string `mapstructure:"collection_name"`

	// Generative model configuration
	GeminiAPIKey string  `mapstructure:"gemini_api_key"`
	ModelName    string  `mapstructure:"model_name"`
	Temperature  float32 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	MaxToolCalls int     `mapstructure:"max_tool_calls"`

	// Crawling configuration
	WebsiteBaseURL string   `mapstructure:"website_base_url"`
	DocsPaths      []string `mapstructure:"docs_paths"`

	// Chunking configuration (in words)
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`

	// Retrieval configuration
	TopK     int     `mapstructure:"default_top_k"`
	MinScore float64 `mapstructure:"min_relevance_score"`
}

// envBindings maps config keys to the environment variable names the
// deployment uses. Names follow the original .env surface of the pipeline.
var envBindings = map[string]string{
	"cohere_api_key":      "COHERE_API_KEY",
	"embedding_model":     "EMBEDDING_MODEL",
	"embedding_dimension": "EMBEDDING_DIMENSION",
	"vector_backend":      "VECTOR_BACKEND",
	"qdrant_url":          "QDRANT_URL",
	"qdrant_api_key":      "QDRANT_API_KEY",
	"postgres_url":        "POSTGRES_URL",
	"collection_name":     "QDRANT_COLLECTION_NAME",
	"gemini_api_key":      "GEMINI_API_KEY",
	"model_name":          "MODEL_NAME",
	"website_base_url":    "WEBSITE_BASE_URL",
	"chunk_size":          "CHUNK_SIZE",
	"chunk_overlap":       "CHUNK_OVERLAP",
	"default_top_k":       "DEFAULT_TOP_K",
	"min_relevance_score": "MIN_RELEVANCE_SCORE",
}

// Load reads configuration from defaults, an optional ./config.yaml, and
// environment variables, then validates the result.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults suffice.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("embedding_model", DefaultEmbeddingModel)
	v.SetDefault("embedding_dimension", DefaultEmbeddingDimension)
	v.SetDefault("vector_backend", BackendQdrant)
	v.SetDefault("collection_name", DefaultCollection)
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_tokens", 2000)
	v.SetDefault("max_tool_calls", 4)
	v.SetDefault("website_base_url", "http://localhost:3000")
	v.SetDefault("docs_paths", []string{
		"/docs/intro",
		"/docs/module-01",
		"/docs/module-02",
		"/docs/module-03",
		"/docs/module-04",
		"/docs/glossary",
	})
	v.SetDefault("chunk_size", 800)
	v.SetDefault("chunk_overlap", 100)
	v.SetDefault("default_top_k", 5)
	v.SetDefault("min_relevance_score", 0.6)
}

// Validate checks everything the ingestion and retrieval paths require.
// The generative model key is checked separately by ValidateModel, so that
// ingest-only deployments do not need it.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("configuration is nil")
	}

	if strings.TrimSpace(c.CohereAPIKey) == "" {
		return fmt.Errorf("%w: set COHERE_API_KEY", ErrMissingCohereKey)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDimension, c.EmbeddingDimension)
	}

	switch c.VectorBackend {
	case BackendQdrant:
		if strings.TrimSpace(c.QdrantURL) == "" {
			return fmt.Errorf("%w: set QDRANT_URL", ErrMissingQdrantURL)
		}
		if strings.TrimSpace(c.QdrantAPIKey) == "" {
			return fmt.Errorf("%w: set QDRANT_API_KEY", ErrMissingQdrantKey)
		}
	case BackendPgvector:
		if strings.TrimSpace(c.PostgresURL) == "" {
			return fmt.Errorf("%w: set POSTGRES_URL", ErrMissingPostgresURL)
		}
	default:
		return fmt.Errorf("%w: %q (want %q or %q)",
			ErrInvalidBackend, c.VectorBackend, BackendQdrant, BackendPgvector)
	}

	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: size=%d overlap=%d (need size > 0, 0 <= overlap < size)",
			ErrInvalidChunking, c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: %d (want 1-50)", ErrInvalidTopK, c.TopK)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("%w: %g (want 0-1)", ErrInvalidMinScore, c.MinScore)
	}

	return nil
}

// ValidateModel checks the configuration the query path additionally needs.
func (c *Config) ValidateModel() error {
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingGeminiKey)
	}
	return nil
}
