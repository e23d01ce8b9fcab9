package config

import (
	"fmt"
	"os"
	"strings"

	apperrors "contextpilot/backend/pkg/errors"
	"github.com/joho/godotenv"
)

// Embedding provider names
const (
	EmbeddingProviderOpenAI  = "openai"
	EmbeddingProviderHashing = "hashing"
)

// Config holds all application configuration
type Config struct {
	// App
	Port     string
	Env      string
	LogLevel string

	// AI
	LiteLLMURL     string
	APIKey         string
	ModelID        string
	LLMMaxAttempts int

	// Embeddings
	EmbeddingProvider string
	EmbeddingModel    string
	HashingDimension  int

	// Retrieval
	NeighborhoodRadius int
	SearchTopK         int

	// Graph policies
	GraphAutoCreateEndpoints bool
	GraphDuplicatePolicy     string

	// Knowledge seeding
	KnowledgeFile string
	KnowledgeURL  string

	BaselineEnabled bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:                     getEnv("PORT", "8080"),
		Env:                      getEnv("ENV", "development"),
		LogLevel:                 strings.ToLower(getEnv("LOG_LEVEL", "")),
		LiteLLMURL:               getEnv("LITELLM_URL", "http://localhost:4000"),
		APIKey:                   getEnv("OPENAI_API_KEY", ""),
		ModelID:                  getEnv("MODEL_ID", "gemini/gemini-2.5-flash"),
		LLMMaxAttempts:           getEnvInt("LLM_MAX_ATTEMPTS", 3),
		EmbeddingProvider:        strings.ToLower(getEnv("EMBEDDING_PROVIDER", EmbeddingProviderOpenAI)),
		EmbeddingModel:           getEnv("EMBEDDING_MODEL", "gemini/gemini-embedding-001"),
		HashingDimension:         getEnvInt("HASHING_DIMENSION", 256),
		NeighborhoodRadius:       getEnvInt("NEIGHBORHOOD_RADIUS", 2),
		SearchTopK:               getEnvInt("SEARCH_TOP_K", 3),
		GraphAutoCreateEndpoints: getEnvBool("GRAPH_AUTO_CREATE_ENDPOINTS", false),
		GraphDuplicatePolicy:     strings.ToLower(getEnv("GRAPH_DUPLICATE_POLICY", "overwrite")),
		KnowledgeFile:            getEnv("KNOWLEDGE_FILE", ""),
		KnowledgeURL:             getEnv("KNOWLEDGE_URL", ""),
		BaselineEnabled:          getEnvBool("BASELINE_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.LiteLLMURL == "" {
		return apperrors.NewConfigMissingRequired("LITELLM_URL")
	}
	if c.ModelID == "" {
		return apperrors.NewConfigMissingRequired("MODEL_ID")
	}
	switch c.EmbeddingProvider {
	case EmbeddingProviderOpenAI:
		if c.EmbeddingModel == "" {
			return apperrors.NewConfigMissingRequired("EMBEDDING_MODEL")
		}
	case EmbeddingProviderHashing:
		if c.HashingDimension < 1 {
			return apperrors.NewConfigValidationFailed("HASHING_DIMENSION", "must be positive")
		}
	default:
		return apperrors.NewConfigValidationFailed("EMBEDDING_PROVIDER", fmt.Sprintf("unknown provider %q", c.EmbeddingProvider))
	}
	switch c.GraphDuplicatePolicy {
	case "overwrite", "merge", "reject":
	default:
		return apperrors.NewConfigValidationFailed("GRAPH_DUPLICATE_POLICY", fmt.Sprintf("unknown policy %q", c.GraphDuplicatePolicy))
	}
	if c.NeighborhoodRadius < 0 {
		return apperrors.NewConfigValidationFailed("NEIGHBORHOOD_RADIUS", "must not be negative")
	}
	if c.SearchTopK < 1 {
		return apperrors.NewConfigValidationFailed("SEARCH_TOP_K", "must be positive")
	}
	if c.LLMMaxAttempts < 1 {
		return apperrors.NewConfigValidationFailed("LLM_MAX_ATTEMPTS", "must be positive")
	}
	// API key is optional, LiteLLM accepts a dummy key
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}
