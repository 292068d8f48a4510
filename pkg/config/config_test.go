package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: llama3
  base_url: http://ollama.internal:11434
  max_tokens: 1024
  temperature: 0.5
index:
  backend: local
  location: /var/lib/ragdoc/index
splitter:
  chunk_size: 500
  chunk_overlap: 100
retrieval:
  top_k: 5
  fallback_top_k: 20
server:
  port: 8080
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, "http://ollama.internal:11434", cfg.LLM.BaseURL)
	assert.Equal(t, 1024, cfg.LLM.MaxTokens)
	assert.Equal(t, 0.5, cfg.LLM.Temperature)
	assert.Equal(t, "local", cfg.Index.Backend)
	assert.Equal(t, "/var/lib/ragdoc/index", cfg.Index.Location)
	assert.Equal(t, 500, cfg.Splitter.ChunkSize)
	assert.Equal(t, 100, cfg.Splitter.ChunkOverlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 20, cfg.Retrieval.FallbackTopK)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: mistral
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.Equal(t, "nomic-embed-text:latest", cfg.Embedding.Model)
	assert.Equal(t, cfg.LLM.BaseURL, cfg.Embedding.BaseURL)
	assert.Equal(t, "local", cfg.Index.Backend)
	assert.Equal(t, "./ragdoc_db", cfg.Index.Location)
	assert.Equal(t, 1000, cfg.Splitter.ChunkSize)
	assert.Equal(t, 200, cfg.Splitter.ChunkOverlap)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 10, cfg.Retrieval.FallbackTopK)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434")
	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432/ragdoc")
	t.Setenv("RAGDOC_INDEX_DIR", "/data/index")

	path := writeConfig(t, `
llm:
  base_url: http://localhost:11434
index:
  location: ./ragdoc_db
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://gpu-box:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "http://gpu-box:11434", cfg.Embedding.BaseURL)
	assert.Equal(t, "postgres://user:pass@db:5432/ragdoc", cfg.Index.DBUrl)
	assert.Equal(t, "/data/index", cfg.Index.Location)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "llm: [not: a: mapping")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func validConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	assert.Empty(t, validConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "missing base URL",
			mutate: func(c *Config) { c.LLM.BaseURL = "" },
			field:  "llm.base_url",
		},
		{
			name:   "max tokens out of range",
			mutate: func(c *Config) { c.LLM.MaxTokens = 100000 },
			field:  "llm.max_tokens",
		},
		{
			name:   "temperature out of range",
			mutate: func(c *Config) { c.LLM.Temperature = 3.5 },
			field:  "llm.temperature",
		},
		{
			name:   "unknown backend",
			mutate: func(c *Config) { c.Index.Backend = "chroma" },
			field:  "index.backend",
		},
		{
			name:   "missing location",
			mutate: func(c *Config) { c.Index.Location = "" },
			field:  "index.location",
		},
		{
			name: "pgvector without database URL",
			mutate: func(c *Config) {
				c.Index.Backend = "pgvector"
				c.Index.DBUrl = ""
			},
			field: "index.db_url",
		},
		{
			name:   "overlap not below chunk size",
			mutate: func(c *Config) { c.Splitter.ChunkOverlap = c.Splitter.ChunkSize },
			field:  "splitter.chunk_overlap",
		},
		{
			name:   "zero top_k",
			mutate: func(c *Config) { c.Retrieval.TopK = 0 },
			field:  "retrieval.top_k",
		},
		{
			name: "fallback narrower than primary",
			mutate: func(c *Config) {
				c.Retrieval.TopK = 8
				c.Retrieval.FallbackTopK = 4
			},
			field: "retrieval.fallback_top_k",
		},
		{
			name:   "zero rate limit",
			mutate: func(c *Config) { c.Retrieval.RateLimit = 0 },
			field:  "retrieval.rate_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			errs := cfg.Validate()
			require.NotEmpty(t, errs)

			fields := make([]string, len(errs))
			for i, e := range errs {
				fields[i] = e.Field
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "llm.base_url", Message: "Ollama base URL is required"}
	assert.Equal(t, "llm.base_url: Ollama base URL is required", err.Error())
}
