package ingest

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/time/rate"

	"github.com/tienvm/ragdoc/internal/models"
	"github.com/tienvm/ragdoc/internal/types"
)

type PipelineConfig struct {
	// Location the index is persisted at; interpreted by the provider.
	Location string
	// BatchSize bounds how many chunks go into one embed-and-insert
	// round trip.
	BatchSize int
	// RateLimit caps insert batches per second against the embedding
	// backend. Zero disables the limiter.
	RateLimit float64
	// OnProgress, when set, is called after every inserted batch.
	OnProgress func(processed, total int, message string)
}

// Pipeline turns resolved document sources into persisted index
// entries. It is not safe for concurrent use against the same
// location; the orchestrator serializes ingestions.
type Pipeline struct {
	config   PipelineConfig
	splitter types.Splitter
	provider types.IndexProvider
	limiter  *rate.Limiter
}

func NewWithConfig(config PipelineConfig, splitter types.Splitter, provider types.IndexProvider) *Pipeline {
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &Pipeline{
		config:   config,
		splitter: splitter,
		provider: provider,
		limiter:  limiter,
	}
}

// Ingest chunks every source and persists the chunks into the index.
// idx is the currently open handle, nil when no index is open. The
// returned handle replaces it (a fresh one when the index was created
// or force-reloaded). Sources that fail to split are skipped with a
// warning; an empty chunk set returns count 0 without touching the
// index.
func (p *Pipeline) Ingest(ctx context.Context, idx types.Index, sources []types.DocumentSource, forceReload bool) (types.Index, int, error) {
	if forceReload {
		exists, err := p.provider.Exists(ctx, p.config.Location)
		if err != nil {
			return idx, 0, fmt.Errorf("failed to check index location: %w", err)
		}
		if exists {
			if err := p.provider.Destroy(ctx, p.config.Location); err != nil {
				return idx, 0, fmt.Errorf("failed to destroy index: %w", err)
			}
		}
		if idx != nil {
			idx.Close()
		}
		idx = nil
	}

	var chunks []models.Chunk
	for _, src := range sources {
		doc := models.Document{
			Path:     src.Path,
			Content:  src.Content,
			Metadata: src.Metadata,
		}
		docChunks, err := p.splitter.Split(doc)
		if err != nil {
			log.Printf("warning: skipping %s: %v", src.Path, err)
			continue
		}
		chunks = append(chunks, docChunks...)
	}

	if len(chunks) == 0 {
		return idx, 0, nil
	}

	p.report(0, len(chunks), "embedding chunks")

	inserted := 0
	for start := 0; start < len(chunks); start += p.config.BatchSize {
		end := start + p.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return idx, inserted, err
			}
		}

		if idx == nil {
			created, err := p.provider.Create(ctx, p.config.Location, batch)
			if err != nil {
				return nil, inserted, fmt.Errorf("failed to create index: %w", err)
			}
			idx = created
		} else {
			if err := idx.Insert(ctx, batch); err != nil {
				return idx, inserted, fmt.Errorf("failed to insert chunks: %w", err)
			}
		}

		inserted += len(batch)
		p.report(inserted, len(chunks), "embedding chunks")
	}

	p.report(inserted, len(chunks), "done")
	return idx, inserted, nil
}

// IngestPaths resolves file or directory paths into sources and
// ingests them. Unreadable paths are skipped with a warning, matching
// the per-item failure policy for sources.
func (p *Pipeline) IngestPaths(ctx context.Context, idx types.Index, paths []string, extensions []string, forceReload bool) (types.Index, int, error) {
	var sources []types.DocumentSource
	for _, path := range paths {
		files := []string{path}
		if info, err := statDir(path); err == nil && info {
			files, err = ListDirectory(path, extensions)
			if err != nil {
				log.Printf("warning: skipping %s: %v", path, err)
				continue
			}
		}

		for _, file := range files {
			src, err := LoadFile(file)
			if err != nil {
				log.Printf("warning: %v", err)
				continue
			}
			sources = append(sources, src)
		}
	}

	return p.Ingest(ctx, idx, sources, forceReload)
}

func (p *Pipeline) report(processed, total int, message string) {
	if p.config.OnProgress != nil {
		p.config.OnProgress(processed, total, message)
	}
}
