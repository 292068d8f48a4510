package store

import (
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/tienvm/ragdoc/internal/types"
)

// ErrCorruptIndex reports that persisted index data is unreadable or
// incompatible. The caller is expected to destroy the location and
// treat the index as absent.
var ErrCorruptIndex = errors.New("persisted index is corrupt")

// ProviderConfig selects and configures an index backend.
type ProviderConfig struct {
	Backend    string // "local" or "pgvector"
	ConnString string // pgvector only
	VectorDim  int
	BatchSize  int
}

// NewProvider builds the index provider for the configured backend.
func NewProvider(config ProviderConfig, embedder embeddings.Embedder) (types.IndexProvider, error) {
	switch config.Backend {
	case "", "local":
		return NewLocalProvider(embedder), nil
	case "pgvector":
		return NewPgvectorProvider(PgvectorConfig{
			ConnString: config.ConnString,
			VectorDim:  config.VectorDim,
			BatchSize:  config.BatchSize,
		}, embedder)
	default:
		return nil, fmt.Errorf("unknown index backend: %s", config.Backend)
	}
}
