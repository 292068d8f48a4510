package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// ChatConfig represents the configuration for the chat model client.
type ChatConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string // Ollama server URL
}

// NewChatModel builds the LLM client used for answer generation.
func NewChatModel(config ChatConfig) (llms.Model, ChatConfig, error) {
	if config.Model == "" {
		config.Model = "mistral" // Default Ollama model
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, config, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, config, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}

	model, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, config, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return model, config, nil
}

// CallOptions translates the chat configuration into per-call options.
func (c ChatConfig) CallOptions() []llms.CallOption {
	return []llms.CallOption{
		llms.WithTemperature(c.Temperature),
		llms.WithMaxTokens(c.MaxTokens),
	}
}
