package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/tienvm/ragdoc/internal/models"
	"github.com/tienvm/ragdoc/internal/types"
)

const indexFileName = "index.json"

// indexFile is the on-disk layout of a local index. Entries are kept
// in insertion order, which is what breaks similarity ties on search.
type indexFile struct {
	Dimension int           `json:"dimension"`
	Entries   []entryRecord `json:"entries"`
}

type entryRecord struct {
	ID        string                 `json:"id"`
	Embedding []float32              `json:"embedding"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// LocalProvider persists indexes as a single JSON file inside a
// directory. The directory's presence is the sole signal that an
// index exists, so deleting it is equivalent to a reset.
type LocalProvider struct {
	embedder embeddings.Embedder
}

func NewLocalProvider(embedder embeddings.Embedder) *LocalProvider {
	return &LocalProvider{embedder: embedder}
}

func (p *LocalProvider) Exists(ctx context.Context, location string) (bool, error) {
	info, err := os.Stat(location)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (p *LocalProvider) Open(ctx context.Context, location string) (types.Index, error) {
	data, err := os.ReadFile(filepath.Join(location, indexFileName))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}

	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}

	if file.Dimension <= 0 {
		return nil, fmt.Errorf("%w: missing embedding dimension", ErrCorruptIndex)
	}
	for _, e := range file.Entries {
		if len(e.Embedding) != file.Dimension {
			return nil, fmt.Errorf("%w: entry %s has dimension %d, want %d",
				ErrCorruptIndex, e.ID, len(e.Embedding), file.Dimension)
		}
	}

	return &LocalIndex{
		location:  location,
		embedder:  p.embedder,
		dimension: file.Dimension,
		entries:   file.Entries,
	}, nil
}

func (p *LocalProvider) Create(ctx context.Context, location string, chunks []models.Chunk) (types.Index, error) {
	idx := &LocalIndex{
		location: location,
		embedder: p.embedder,
	}

	if err := os.MkdirAll(location, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	if err := idx.Insert(ctx, chunks); err != nil {
		return nil, err
	}
	return idx, nil
}

func (p *LocalProvider) Destroy(ctx context.Context, location string) error {
	return os.RemoveAll(location)
}

// LocalIndex is an open handle on a directory-persisted index with
// brute-force cosine search. Safe for concurrent searches; inserts
// take the write lock.
type LocalIndex struct {
	mu        sync.RWMutex
	location  string
	embedder  embeddings.Embedder
	dimension int
	entries   []entryRecord
}

func (idx *LocalIndex) Insert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return idx.persistLocked()
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := idx.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, c := range chunks {
		if idx.dimension == 0 {
			idx.dimension = len(vectors[i])
		}
		if len(vectors[i]) != idx.dimension {
			return fmt.Errorf("embedding dimension changed from %d to %d", idx.dimension, len(vectors[i]))
		}
		idx.entries = append(idx.entries, entryRecord{
			ID:        uuid.NewString(),
			Embedding: vectors[i],
			Content:   c.Text,
			Metadata:  c.Metadata,
		})
	}

	return idx.persist()
}

func (idx *LocalIndex) Search(ctx context.Context, query string, k int) ([]models.VectorEntry, error) {
	vector, err := idx.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 || k > len(idx.entries) {
		k = len(idx.entries)
	}

	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(idx.entries))
	for i := range idx.entries {
		scores[i] = scored{pos: i, score: cosineSimilarity(idx.entries[i].Embedding, vector)}
	}
	// Stable sort keeps insertion order for equal similarities.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	results := make([]models.VectorEntry, 0, k)
	for i := 0; i < k; i++ {
		e := idx.entries[scores[i].pos]
		results = append(results, models.VectorEntry{
			ID:        e.ID,
			Embedding: e.Embedding,
			Content:   e.Content,
			Metadata:  e.Metadata,
		})
	}
	return results, nil
}

func (idx *LocalIndex) Len(ctx context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries), nil
}

func (idx *LocalIndex) Close() {}

func (idx *LocalIndex) persistLocked() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.persist()
}

// persist writes the whole index to a temp file and renames it over
// the old one, so a crash mid-write never leaves a half-written index.
// Callers must hold the write lock.
func (idx *LocalIndex) persist() error {
	data, err := json.Marshal(indexFile{
		Dimension: idx.dimension,
		Entries:   idx.entries,
	})
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	tmp, err := os.CreateTemp(idx.location, indexFileName+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close index file: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(idx.location, indexFileName)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
