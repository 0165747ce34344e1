package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port   int
	DBPath string
	// Embedding
	EmbeddingBaseURL string
	EmbeddingModel   string
	EmbeddingDim     int
	// Completion models
	LLMBaseURL    string
	LLMAPIKey     string
	ChatModel     string
	FallbackModel string
	Temperature   float64
	// Per-call output caps
	MaxCompletionTokens int
	FallbackMaxTokens   int
	CompletionTimeout   time.Duration
	// Conversation budget: single source of truth for the ceiling
	MaxTokens int
	// Retrieval
	RetrievalTopK int
	// Auth
	SessionTTL time.Duration
	// Intent/persona catalog override (embedded default when empty)
	CatalogPath string
	LogLevel    string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:                envInt("PORT", 7860),
		DBPath:              envStr("DB_PATH", "/data/medicial.db"),
		EmbeddingBaseURL:    envStr("EMBEDDING_BASE_URL", "http://localhost:11434"),
		EmbeddingModel:      envStr("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim:        envInt("EMBEDDING_DIM", 768),
		LLMBaseURL:          envStr("LLM_BASE_URL", "https://router.huggingface.co"),
		LLMAPIKey:           envStr("HF_TOKEN", ""),
		ChatModel:           envStr("CHAT_MODEL", "mistralai/Mistral-Small-24B-Instruct-2501"),
		FallbackModel:       envStr("FALLBACK_MODEL", "mistralai/Mistral-7B-Instruct-v0.3"),
		Temperature:         envFloat("TEMPERATURE", 0.7),
		MaxCompletionTokens: envInt("MAX_COMPLETION_TOKENS", 1024),
		FallbackMaxTokens:   envInt("FALLBACK_MAX_TOKENS", 512),
		CompletionTimeout:   envDuration("COMPLETION_TIMEOUT", 15*time.Second),
		MaxTokens:           envInt("MAX_TOKENS", 2000),
		RetrievalTopK:       envInt("RETRIEVAL_TOP_K", 5),
		SessionTTL:          envDuration("SESSION_TTL", 7*24*time.Hour),
		CatalogPath:         envStr("CATALOG_PATH", ""),
		LogLevel:            envStr("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.EmbeddingBaseURL == "" {
		return fmt.Errorf("EMBEDDING_BASE_URL must not be empty")
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	if c.RetrievalTopK < 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must not be negative, got %d", c.RetrievalTopK)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("TEMPERATURE must be in [0, 2], got %f", c.Temperature)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
