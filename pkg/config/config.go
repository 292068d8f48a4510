package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type EmbeddingConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type IndexConfig struct {
	// Backend selects the index implementation: "local" persists to a
	// directory, "pgvector" persists to a PostgreSQL table.
	Backend   string `yaml:"backend"`
	Location  string `yaml:"location"`
	DBUrl     string `yaml:"db_url"`
	VectorDim int    `yaml:"vector_dim"`
	BatchSize int    `yaml:"batch_size"`
}

type SplitterConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type RetrievalConfig struct {
	TopK            int     `yaml:"top_k"`
	FallbackTopK    int     `yaml:"fallback_top_k"`
	MaxHistoryChars int     `yaml:"max_history_chars"`
	RateLimit       float64 `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Splitter  SplitterConfig  `yaml:"splitter"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Server    ServerConfig    `yaml:"server"`
}

// DefaultExtensions are the document extensions picked up when
// ingesting a directory.
var DefaultExtensions = []string{".txt", ".md", ".markdown"}

func LoadConfig(path string) (*Config, error) {
	// A .env next to the binary supplies environment overrides; a
	// missing file is fine.
	_ = godotenv.Load()

	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/ragdoc/config.yaml"),
			"/etc/ragdoc/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.2
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = config.LLM.BaseURL
	}

	if config.Index.Backend == "" {
		config.Index.Backend = "local"
	}
	if config.Index.Location == "" {
		if config.Index.Backend == "pgvector" {
			config.Index.Location = "documents"
		} else {
			config.Index.Location = "./ragdoc_db"
		}
	}
	if config.Index.VectorDim == 0 {
		config.Index.VectorDim = 768
	}
	if config.Index.BatchSize == 0 {
		config.Index.BatchSize = 100
	}

	if config.Splitter.ChunkSize == 0 {
		config.Splitter.ChunkSize = 1000
	}
	if config.Splitter.ChunkOverlap == 0 {
		config.Splitter.ChunkOverlap = 200
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 3
	}
	if config.Retrieval.FallbackTopK == 0 {
		config.Retrieval.FallbackTopK = 10
	}
	if config.Retrieval.MaxHistoryChars == 0 {
		config.Retrieval.MaxHistoryChars = 4000
	}
	if config.Retrieval.RateLimit == 0 {
		config.Retrieval.RateLimit = 4.0
	}

	if config.Server.Port == 0 {
		config.Server.Port = 5000
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
		config.Embedding.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Index.DBUrl = dbURL
	}
	if dir := os.Getenv("RAGDOC_INDEX_DIR"); dir != "" {
		config.Index.Location = dir
	}
}
