package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	} else if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate Index config
	if c.Index.Backend != "local" && c.Index.Backend != "pgvector" {
		errors = append(errors, ValidationError{
			Field:   "index.backend",
			Message: fmt.Sprintf("unknown backend: %s", c.Index.Backend),
		})
	}

	if c.Index.Location == "" {
		errors = append(errors, ValidationError{
			Field:   "index.location",
			Message: "index location is required",
		})
	}

	if c.Index.Backend == "pgvector" {
		if c.Index.DBUrl == "" {
			errors = append(errors, ValidationError{
				Field:   "index.db_url",
				Message: "database URL is required for the pgvector backend",
			})
		} else if _, err := url.Parse(c.Index.DBUrl); err != nil {
			errors = append(errors, ValidationError{
				Field:   "index.db_url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Index.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Index.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Splitter config
	if c.Splitter.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "splitter.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "splitter.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	// Validate Retrieval config
	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Retrieval.FallbackTopK < c.Retrieval.TopK {
		errors = append(errors, ValidationError{
			Field:   "retrieval.fallback_top_k",
			Message: "fallback_top_k must be at least top_k",
		})
	}

	if c.Retrieval.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	return errors
}
