package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"github.com/tienvm/ragdoc/internal/models"
	"github.com/tienvm/ragdoc/internal/types"
	"github.com/tienvm/ragdoc/pkg/config"
	"github.com/tienvm/ragdoc/pkg/engine"
	"github.com/tienvm/ragdoc/pkg/ingest"
	"github.com/tienvm/ragdoc/pkg/llm"
	"github.com/tienvm/ragdoc/pkg/memory"
	"github.com/tienvm/ragdoc/pkg/splitter"
	"github.com/tienvm/ragdoc/pkg/store"
)

// ErrBusy reports that an ingestion is already in flight. Requests
// racing an ingestion are rejected, never queued.
var ErrBusy = errors.New("an ingestion is already in progress")

// Assistant owns the vector index handle and the conversation memory
// for its process lifetime, and coordinates ingestion and querying
// around them. A single instance is shared across concurrent
// requests.
type Assistant struct {
	config   *config.Config
	provider types.IndexProvider
	pipeline *ingest.Pipeline
	engine   *engine.Engine
	memory   *memory.ConversationMemory

	mu  sync.RWMutex // guards idx
	idx types.Index

	busy atomic.Bool

	statusMu sync.RWMutex
	status   models.LoadStatus
}

// New wires an assistant from pre-built model clients. On
// construction it opens the persisted index if one exists; a corrupt
// index is destroyed and treated as absent rather than failing
// construction.
func New(cfg *config.Config, model llms.Model, embedder embeddings.Embedder) (*Assistant, error) {
	provider, err := store.NewProvider(store.ProviderConfig{
		Backend:    cfg.Index.Backend,
		ConnString: cfg.Index.DBUrl,
		VectorDim:  cfg.Index.VectorDim,
		BatchSize:  cfg.Index.BatchSize,
	}, embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize index provider: %w", err)
	}

	mem := memory.New()
	split := splitter.NewWithConfig(splitter.SplitterConfig{
		ChunkSize:    cfg.Splitter.ChunkSize,
		ChunkOverlap: cfg.Splitter.ChunkOverlap,
	})

	chatConfig := llm.ChatConfig{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		BaseURL:     cfg.LLM.BaseURL,
	}

	a := &Assistant{
		config: cfg,
		memory: mem,
	}
	a.provider = provider
	a.engine = engine.NewWithConfig(engine.EngineConfig{
		TopK:            cfg.Retrieval.TopK,
		FallbackTopK:    cfg.Retrieval.FallbackTopK,
		MaxHistoryChars: cfg.Retrieval.MaxHistoryChars,
		CallOptions:     chatConfig.CallOptions(),
	}, model, mem)
	a.pipeline = ingest.NewWithConfig(ingest.PipelineConfig{
		Location:   cfg.Index.Location,
		BatchSize:  cfg.Index.BatchSize,
		RateLimit:  cfg.Retrieval.RateLimit,
		OnProgress: a.setProgress,
	}, &split, provider)

	if err := a.openExisting(context.Background()); err != nil {
		return nil, err
	}
	return a, nil
}

// NewFromConfig builds the ollama-backed model clients and wires an
// assistant around them.
func NewFromConfig(cfg *config.Config) (*Assistant, error) {
	model, _, err := llm.NewChatModel(llm.ChatConfig{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		BaseURL:     cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat model: %w", err)
	}

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Model:   cfg.Embedding.Model,
		BaseURL: cfg.Embedding.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return New(cfg, model, embedder)
}

func (a *Assistant) openExisting(ctx context.Context) error {
	location := a.config.Index.Location

	exists, err := a.provider.Exists(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to check index location: %w", err)
	}
	if !exists {
		log.Printf("no persisted index at %s, one will be created on first load", location)
		return nil
	}

	idx, err := a.provider.Open(ctx, location)
	if err == nil {
		log.Printf("loaded persisted index from %s", location)
		a.idx = idx
		return nil
	}
	if !errors.Is(err, store.ErrCorruptIndex) {
		return fmt.Errorf("failed to open index: %w", err)
	}

	// Recover locally: drop the unreadable data and start absent.
	log.Printf("persisted index at %s is corrupt, discarding: %v", location, err)
	if err := a.provider.Destroy(ctx, location); err != nil {
		return fmt.Errorf("failed to discard corrupt index: %w", err)
	}
	return nil
}

// LoadDocuments ingests the given file or directory paths. It runs
// synchronously; callers that must not block dispatch it to a
// background goroutine and poll Status. A second call while one is in
// flight returns ErrBusy.
func (a *Assistant) LoadDocuments(ctx context.Context, paths []string, forceReload bool) (int, error) {
	if !a.busy.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer a.busy.Store(false)

	a.setStatus(models.LoadStatus{IsLoading: true, Message: "starting document load"})

	a.mu.Lock()
	idx := a.idx
	a.mu.Unlock()

	newIdx, count, err := a.pipeline.IngestPaths(ctx, idx, paths, config.DefaultExtensions, forceReload)

	a.mu.Lock()
	a.idx = newIdx
	a.mu.Unlock()

	if err != nil {
		a.setStatus(models.LoadStatus{Message: fmt.Sprintf("load failed: %v", err)})
		return count, err
	}

	a.setStatus(models.LoadStatus{
		Total:     count,
		Processed: count,
		Message:   fmt.Sprintf("loaded %d chunks", count),
	})
	return count, nil
}

// Ingest is the pre-resolved variant of LoadDocuments for callers
// that already hold (path, text) sources.
func (a *Assistant) Ingest(ctx context.Context, sources []types.DocumentSource, forceReload bool) (int, error) {
	if !a.busy.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer a.busy.Store(false)

	a.setStatus(models.LoadStatus{IsLoading: true, Message: "starting document load"})

	a.mu.Lock()
	idx := a.idx
	a.mu.Unlock()

	newIdx, count, err := a.pipeline.Ingest(ctx, idx, sources, forceReload)

	a.mu.Lock()
	a.idx = newIdx
	a.mu.Unlock()

	if err != nil {
		a.setStatus(models.LoadStatus{Message: fmt.Sprintf("load failed: %v", err)})
		return count, err
	}

	a.setStatus(models.LoadStatus{
		Total:     count,
		Processed: count,
		Message:   fmt.Sprintf("loaded %d chunks", count),
	})
	return count, nil
}

// Answer queries the assistant. Queries may run concurrently with
// each other; whether a query racing an ingestion sees the new chunks
// is undefined.
func (a *Assistant) Answer(ctx context.Context, question string, wantSources bool) models.QueryResult {
	a.mu.RLock()
	idx := a.idx
	a.mu.RUnlock()

	return a.engine.Answer(ctx, idx, question, wantSources)
}

// ResetConversation clears the conversation history. Rejected while
// an ingestion is in flight.
func (a *Assistant) ResetConversation() error {
	if a.busy.Load() {
		return ErrBusy
	}
	a.memory.Clear()
	return nil
}

// ResetIndex destroys the persisted index and leaves the assistant
// with no open handle. Rejected while an ingestion is in flight.
func (a *Assistant) ResetIndex(ctx context.Context) error {
	if a.busy.Load() {
		return ErrBusy
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.provider.Destroy(ctx, a.config.Index.Location); err != nil {
		return fmt.Errorf("failed to destroy index: %w", err)
	}
	if a.idx != nil {
		a.idx.Close()
		a.idx = nil
	}
	return nil
}

// HasIndex reports whether an index handle is currently open.
func (a *Assistant) HasIndex() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.idx != nil
}

// EntryCount reports the number of persisted entries, zero when no
// index is open.
func (a *Assistant) EntryCount(ctx context.Context) (int, error) {
	a.mu.RLock()
	idx := a.idx
	a.mu.RUnlock()

	if idx == nil {
		return 0, nil
	}
	return idx.Len(ctx)
}

// HistoryLen reports the number of recorded conversation turns.
func (a *Assistant) HistoryLen() int {
	return a.memory.Len()
}

// Status returns a snapshot of the current or most recent ingestion
// job.
func (a *Assistant) Status() models.LoadStatus {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.status
}

func (a *Assistant) setStatus(status models.LoadStatus) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.status = status
}

func (a *Assistant) setProgress(processed, total int, message string) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.status.IsLoading = true
	a.status.Total = total
	a.status.Processed = processed
	a.status.Message = message
}
