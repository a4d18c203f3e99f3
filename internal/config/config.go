package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Inference   InferenceConfig   `yaml:"inference"`
	RAG         RAGConfig         `yaml:"rag"`
	Documents   DocumentsConfig   `yaml:"documents"`
	Worker      WorkerConfig      `yaml:"worker"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "ollama" or "openai"
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type InferenceConfig struct {
	BaseURL        string  `yaml:"base_url"`
	Key            string  `yaml:"key"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

func (c InferenceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type RAGConfig struct {
	ChunkSize           int     `yaml:"chunk_size"`    // words
	ChunkOverlap        int     `yaml:"chunk_overlap"` // words
	MaxChunks           int     `yaml:"max_chunks"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	DefaultLanguage     string  `yaml:"default_language"`
}

type DocumentsConfig struct {
	Path        string `yaml:"path"`
	MaxFileSize int64  `yaml:"max_file_size"`
}

type WorkerConfig struct {
	PoolSize             int `yaml:"pool_size"`
	MaxRetries           int `yaml:"max_retries"`
	RetryBackoffSeconds  int `yaml:"retry_backoff_seconds"`
	SoftTimeLimitMinutes int `yaml:"soft_time_limit_minutes"`
	HardTimeLimitMinutes int `yaml:"hard_time_limit_minutes"`
}

func (c WorkerConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffSeconds) * time.Second
}

func (c WorkerConfig) SoftTimeLimit() time.Duration {
	return time.Duration(c.SoftTimeLimitMinutes) * time.Minute
}

func (c WorkerConfig) HardTimeLimit() time.Duration {
	return time.Duration(c.HardTimeLimitMinutes) * time.Minute
}

type VectorIndexConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// LoadConfig reads the YAML config file, applies defaults and overlays
// secrets from the environment (a .env file is honored when present).
func LoadConfig(path string) (*Config, error) {
	// a missing .env is fine, real env vars still apply
	_ = godotenv.Load()

	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			BaseURL:  "http://localhost:11434",
			Model:    "nomic-embed-text",
		},
		Inference: InferenceConfig{
			Model:          "llama3-70b-8192",
			Temperature:    0.7,
			MaxTokens:      2000,
			TimeoutSeconds: 60,
		},
		RAG: RAGConfig{
			ChunkSize:           512,
			ChunkOverlap:        50,
			MaxChunks:           3,
			SimilarityThreshold: 0.8,
			DefaultLanguage:     "hr",
		},
		Documents: DocumentsConfig{
			Path:        "./documents",
			MaxFileSize: 200 * 1024 * 1024,
		},
		Worker: WorkerConfig{
			PoolSize:             4,
			MaxRetries:           3,
			RetryBackoffSeconds:  60,
			SoftTimeLimitMinutes: 25,
			HardTimeLimitMinutes: 30,
		},
		VectorIndex: VectorIndexConfig{
			Path:       "./vectorindex",
			Collection: "chunks",
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("EMBEDDING_KEY"); v != "" {
		cfg.Embedding.Key = v
	}
	if v := os.Getenv("INFERENCE_KEY"); v != "" {
		cfg.Inference.Key = v
	}
}
