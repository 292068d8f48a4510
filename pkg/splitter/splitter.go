package splitter

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/tienvm/ragdoc/internal/models"
)

type SplitterConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// Splitter cuts document text into overlapping chunks sized for
// retrieval. Chunk boundaries prefer paragraph and sentence breaks;
// the overlap keeps boundary-spanning information retrievable.
type Splitter struct {
	config SplitterConfig
	inner  textsplitter.RecursiveCharacter
}

func NewWithConfig(config SplitterConfig) Splitter {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 4
	}

	inner := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(config.ChunkSize),
		textsplitter.WithChunkOverlap(config.ChunkOverlap),
	)

	return Splitter{
		config: config,
		inner:  inner,
	}
}

// Split returns the document's chunks in original order. A document
// shorter than the chunk size yields exactly one chunk; empty input
// yields none.
func (s *Splitter) Split(doc models.Document) ([]models.Chunk, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, nil
	}

	parts, err := s.inner.SplitText(doc.Content)
	if err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, 0, len(parts))
	for i, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}

		metadata := map[string]interface{}{
			"source":      doc.Path,
			"chunk_index": i,
		}
		for k, v := range doc.Metadata {
			metadata[k] = v
		}

		chunks = append(chunks, models.Chunk{
			Text:     part,
			Metadata: metadata,
		})
	}

	return chunks, nil
}

// ChunkSize reports the configured maximum chunk length.
func (s *Splitter) ChunkSize() int {
	return s.config.ChunkSize
}
