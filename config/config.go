// Package config loads the YAML application configuration. Secrets are
// never stored in the file; each credential names the environment variable
// it is read from.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/coragem/retrieval"
)

// IndexConfig selects and configures the vector index implementation.
type IndexConfig struct {
	Type   string       `yaml:"type" validate:"oneof=qdrant memory"`
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig contains connection details for a Qdrant vector index.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Collection string `yaml:"collection"`
	VectorSize int    `yaml:"vector_size" validate:"gt=0"`
}

// StoreConfig selects and configures the document store implementation.
type StoreConfig struct {
	Type     string         `yaml:"type" validate:"oneof=supabase memory"`
	Supabase SupabaseConfig `yaml:"supabase"`
}

// SupabaseConfig contains connection details for the Supabase store.
type SupabaseConfig struct {
	URL       string `yaml:"url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// CacheConfig selects and configures the result cache implementation.
type CacheConfig struct {
	Type  string      `yaml:"type" validate:"oneof=redis memory none"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig contains connection details for the Redis result cache.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
}

// EmbeddingConfig configures the embedding provider and gateway.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider" validate:"oneof=gemini"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Model          string `yaml:"model"`
	Dimension      int    `yaml:"dimension" validate:"gt=0"`
	BatchSize      int    `yaml:"batch_size" validate:"gt=0"`
	MaxConcurrency int    `yaml:"max_concurrency" validate:"gt=0"`
}

// AnswerConfig configures the answer generator.
type AnswerConfig struct {
	Provider    string  `yaml:"provider" validate:"oneof=claude gemini"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens" validate:"gt=0"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=1"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Size    int `yaml:"size" validate:"gt=0"`
	Overlap int `yaml:"overlap" validate:"gte=0"`
}

// RetrievalConfig tunes the query pipeline.
type RetrievalConfig struct {
	ConfidenceThreshold float32 `yaml:"confidence_threshold" validate:"gt=0,lte=1"`
	SearchLimit         int     `yaml:"search_limit" validate:"gt=0"`
	ContextLimit        int     `yaml:"context_limit" validate:"gt=0"`
	CacheTTLSecs        int     `yaml:"cache_ttl_secs" validate:"gt=0"`
	NoAnswerTTLSecs     int     `yaml:"no_answer_ttl_secs" validate:"gt=0"`
}

// AuthConfig configures token verification.
type AuthConfig struct {
	SecretEnv string `yaml:"secret_env"`
	Issuer    string `yaml:"issuer"`
}

// Config is the root application configuration structure.
type Config struct {
	Index       IndexConfig     `yaml:"index"`
	Store       StoreConfig     `yaml:"store"`
	Cache       CacheConfig     `yaml:"cache"`
	Embedding   EmbeddingConfig `yaml:"embedding"`
	Answer      AnswerConfig    `yaml:"answer"`
	Chunker     ChunkerConfig   `yaml:"chunker"`
	Retrieval   RetrievalConfig `yaml:"retrieval"`
	Auth        AuthConfig      `yaml:"auth"`
	Departments []string        `yaml:"departments" validate:"min=1"`
	LogLevel    string          `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// Load reads a config from the given path, applies defaults, and validates
// it. A missing file yields the defaults. A .env file alongside the
// process, if present, is loaded first so *_env lookups resolve.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: malformed config: %v", retrieval.ErrInvalidConfig, err)
		}
	}
	applyDefaults(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", retrieval.ErrInvalidConfig, err)
	}
	if cfg.Chunker.Overlap >= cfg.Chunker.Size {
		return nil, fmt.Errorf("%w: chunk overlap must be smaller than chunk size", retrieval.ErrInvalidConfig)
	}
	return cfg, nil
}

// Secret resolves an environment-variable name to its value.
func Secret(envName string) string {
	return os.Getenv(envName)
}

func defaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Type: "memory",
			Qdrant: QdrantConfig{
				URL:        "http://localhost:6334",
				APIKeyEnv:  "QDRANT_API_KEY",
				Collection: "documents",
				VectorSize: 768,
			},
		},
		Store: StoreConfig{
			Type: "memory",
			Supabase: SupabaseConfig{
				APIKeyEnv: "SUPABASE_API_KEY",
			},
		},
		Cache: CacheConfig{
			Type: "memory",
			Redis: RedisConfig{
				Addr:        "localhost:6379",
				PasswordEnv: "REDIS_PASSWORD",
			},
		},
		Embedding: EmbeddingConfig{
			Provider:       "gemini",
			APIKeyEnv:      "GEMINI_API_KEY",
			Model:          "gemini-embedding-001",
			Dimension:      768,
			BatchSize:      100,
			MaxConcurrency: 4,
		},
		Answer: AnswerConfig{
			Provider:    "claude",
			APIKeyEnv:   "ANTHROPIC_API_KEY",
			Model:       "claude-sonnet-4-5",
			MaxTokens:   1024,
			Temperature: 0.2,
		},
		Chunker: ChunkerConfig{Size: 500, Overlap: 50},
		Retrieval: RetrievalConfig{
			ConfidenceThreshold: 0.7,
			SearchLimit:         10,
			ContextLimit:        5,
			CacheTTLSecs:        3600,
			NoAnswerTTLSecs:     1800,
		},
		Auth: AuthConfig{
			SecretEnv: "RAG_TOKEN_SECRET",
			Issuer:    "coragem",
		},
		Departments: []string{"HR", "Engineering", "Sales", "Finance", "Legal", "Operations"},
		LogLevel:    "info",
	}
}

// applyDefaults fills fields a partial YAML file left zero.
func applyDefaults(cfg *Config) {
	defaults := defaultConfig()
	if cfg.Index.Type == "" {
		cfg.Index.Type = defaults.Index.Type
	}
	if cfg.Index.Qdrant.VectorSize == 0 {
		cfg.Index.Qdrant.VectorSize = defaults.Index.Qdrant.VectorSize
	}
	if cfg.Index.Qdrant.Collection == "" {
		cfg.Index.Qdrant.Collection = defaults.Index.Qdrant.Collection
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = defaults.Store.Type
	}
	if cfg.Cache.Type == "" {
		cfg.Cache.Type = defaults.Cache.Type
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding = defaults.Embedding
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = defaults.Embedding.BatchSize
	}
	if cfg.Embedding.MaxConcurrency == 0 {
		cfg.Embedding.MaxConcurrency = defaults.Embedding.MaxConcurrency
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = defaults.Embedding.Dimension
	}
	if cfg.Answer.Provider == "" {
		cfg.Answer = defaults.Answer
	}
	if cfg.Answer.MaxTokens == 0 {
		cfg.Answer.MaxTokens = defaults.Answer.MaxTokens
	}
	if cfg.Answer.Temperature == 0 {
		cfg.Answer.Temperature = defaults.Answer.Temperature
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker = defaults.Chunker
	}
	if cfg.Retrieval.ConfidenceThreshold == 0 {
		cfg.Retrieval.ConfidenceThreshold = defaults.Retrieval.ConfidenceThreshold
	}
	if cfg.Retrieval.SearchLimit == 0 {
		cfg.Retrieval.SearchLimit = defaults.Retrieval.SearchLimit
	}
	if cfg.Retrieval.ContextLimit == 0 {
		cfg.Retrieval.ContextLimit = defaults.Retrieval.ContextLimit
	}
	if cfg.Retrieval.CacheTTLSecs == 0 {
		cfg.Retrieval.CacheTTLSecs = defaults.Retrieval.CacheTTLSecs
	}
	if cfg.Retrieval.NoAnswerTTLSecs == 0 {
		cfg.Retrieval.NoAnswerTTLSecs = defaults.Retrieval.NoAnswerTTLSecs
	}
	if cfg.Auth.SecretEnv == "" {
		cfg.Auth = defaults.Auth
	}
	if len(cfg.Departments) == 0 {
		cfg.Departments = defaults.Departments
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
}
