package types

import (
	"context"

	"github.com/tienvm/ragdoc/internal/models"
)

// Core interfaces

// Splitter turns a document into ordered, overlapping chunks.
type Splitter interface {
	Split(doc models.Document) ([]models.Chunk, error)
}

// Index is an open handle onto a persisted vector index. Insert
// computes embeddings for the chunks and persists them durably before
// returning. Search embeds the query text and returns up to k entries
// by descending similarity, ties broken by insertion order.
type Index interface {
	Insert(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, query string, k int) ([]models.VectorEntry, error)
	Len(ctx context.Context) (int, error)
	Close()
}

// IndexProvider manages persisted index lifecycles, keyed by an opaque
// location string (a directory path for the local backend, a table
// name for pgvector).
type IndexProvider interface {
	Exists(ctx context.Context, location string) (bool, error)
	Open(ctx context.Context, location string) (Index, error)
	Create(ctx context.Context, location string, chunks []models.Chunk) (Index, error)
	Destroy(ctx context.Context, location string) error
}

// DocumentSource produces one resolved document to ingest.
type DocumentSource struct {
	Path     string
	Content  string
	Metadata map[string]interface{}
}
