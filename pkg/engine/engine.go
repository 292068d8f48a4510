package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"github.com/tienvm/ragdoc/internal/models"
	"github.com/tienvm/ragdoc/internal/types"
	"github.com/tienvm/ragdoc/pkg/memory"
)

// NoIndexMessage is returned when a query arrives before any
// documents have been loaded.
const NoIndexMessage = "Please load documents before querying."

// EmptyQuestionMessage is returned when the question is blank.
const EmptyQuestionMessage = "No question was provided."

// chainTemplate is the prompt for the structured path. The closing
// instructions ground the model in the retrieved context; answers must
// admit when the documents do not cover the question.
const chainTemplate = `You are a knowledgeable assistant. Your task is to answer the question based on the provided documents.

Conversation history:
{{.history}}

Information from the documents:
{{.context}}

Question: {{.question}}

Answer in the same language as the question, clearly and concisely. Base your answer only on the information from the documents. If the information is not found in the documents, say that you do not know the answer based on the available data.

Answer:`

type EngineConfig struct {
	TopK            int
	FallbackTopK    int
	MaxHistoryChars int
	CallOptions     []llms.CallOption
}

// Engine answers questions over an open vector index. Every call is a
// fresh top-k retrieval; nothing is cached between questions. Failures
// never escape as errors: the structured path degrades to the manual
// path, and a failure of both produces an explanatory answer.
type Engine struct {
	config EngineConfig
	model  llms.Model
	memory *memory.ConversationMemory
}

func NewWithConfig(config EngineConfig, model llms.Model, mem *memory.ConversationMemory) *Engine {
	if config.TopK == 0 {
		config.TopK = 3
	}
	if config.FallbackTopK == 0 {
		config.FallbackTopK = 10
	}
	if config.MaxHistoryChars == 0 {
		config.MaxHistoryChars = 4000
	}

	return &Engine{
		config: config,
		model:  model,
		memory: mem,
	}
}

// Answer resolves a question against the index. idx may be nil, which
// yields the load-documents guidance message. Sources are attached
// only when wantSources is set and the structured path succeeded.
func (e *Engine) Answer(ctx context.Context, idx types.Index, question string, wantSources bool) models.QueryResult {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.QueryResult{Answer: EmptyQuestionMessage, Failure: true}
	}

	if idx == nil {
		return models.QueryResult{Answer: NoIndexMessage}
	}

	result, err := e.chainAnswer(ctx, idx, question, wantSources)
	if err == nil {
		return result
	}
	log.Printf("structured query path failed, falling back: %v", err)

	return e.manualAnswer(ctx, idx, question)
}

// chainAnswer is the structured path: narrow retrieval and a
// langchaingo LLM chain over the prompt template.
func (e *Engine) chainAnswer(ctx context.Context, idx types.Index, question string, wantSources bool) (models.QueryResult, error) {
	entries, err := idx.Search(ctx, question, e.config.TopK)
	if err != nil {
		return models.QueryResult{}, fmt.Errorf("retrieval failed: %w", err)
	}

	prompt := prompts.NewPromptTemplate(chainTemplate,
		[]string{"history", "context", "question"})
	chain := chains.NewLLMChain(e.model, prompt)

	answer, err := chains.Predict(ctx, chain, map[string]any{
		"history":  e.memory.RenderTail(e.config.MaxHistoryChars),
		"context":  concatEntries(entries),
		"question": question,
	})
	if err != nil {
		return models.QueryResult{}, fmt.Errorf("chain failed: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return models.QueryResult{}, fmt.Errorf("chain returned an empty answer")
	}

	e.memory.Append(question, answer)

	result := models.QueryResult{Answer: answer}
	if wantSources {
		for _, entry := range entries {
			result.Sources = append(result.Sources, models.SourceReference{
				Content:  entry.Content,
				Metadata: entry.Metadata,
			})
		}
	}
	return result, nil
}

// manualAnswer is the self-contained fallback: a wider retrieval and a
// hand-assembled prompt sent straight to the model. It keeps querying
// possible as long as the model and the index are reachable.
func (e *Engine) manualAnswer(ctx context.Context, idx types.Index, question string) models.QueryResult {
	entries, err := idx.Search(ctx, question, e.config.FallbackTopK)
	if err != nil {
		return models.QueryResult{
			Answer:  fmt.Sprintf("Failed to process the question: %v", err),
			Failure: true,
		}
	}

	var prompt strings.Builder
	prompt.WriteString("You are a knowledgeable assistant. Your task is to answer the question based on the provided documents.\n\n")
	prompt.WriteString("Conversation history:\n")
	prompt.WriteString(e.memory.RenderTail(e.config.MaxHistoryChars))
	prompt.WriteString("\n\nInformation from the documents:\n")
	prompt.WriteString(concatEntries(entries))
	prompt.WriteString("\n\nQuestion: ")
	prompt.WriteString(question)
	prompt.WriteString("\n\nAnswer in the same language as the question, clearly and concisely. Base your answer only on the information from the documents. If the information is not found in the documents, say that you do not know the answer based on the available data.\n\nAnswer:")

	answer, err := llms.GenerateFromSinglePrompt(ctx, e.model, prompt.String(), e.config.CallOptions...)
	if err != nil {
		return models.QueryResult{
			Answer:  fmt.Sprintf("Failed to process the question: %v", err),
			Failure: true,
		}
	}

	answer = strings.TrimSpace(answer)
	e.memory.Append(question, answer)

	return models.QueryResult{Answer: answer}
}

func concatEntries(entries []models.VectorEntry) string {
	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.Content
	}
	return strings.Join(texts, "\n\n")
}
