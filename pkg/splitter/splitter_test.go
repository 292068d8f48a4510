package splitter_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tienvm/ragdoc/internal/models"
	"github.com/tienvm/ragdoc/pkg/splitter"
)

func TestSplit_ShortDocumentYieldsOneChunk(t *testing.T) {
	s := splitter.NewWithConfig(splitter.SplitterConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	})

	doc := models.Document{
		Path:    "note.txt",
		Content: "The capital of Vietnam is Hanoi.",
	}

	chunks, err := s.Split(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "Hanoi")
	assert.Equal(t, "note.txt", chunks[0].Metadata["source"])
}

func TestSplit_EmptyDocumentYieldsNoChunks(t *testing.T) {
	s := splitter.NewWithConfig(splitter.SplitterConfig{})

	chunks, err := s.Split(models.Document{Path: "empty.txt", Content: "   \n  "})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_LongDocument(t *testing.T) {
	s := splitter.NewWithConfig(splitter.SplitterConfig{
		ChunkSize:    100,
		ChunkOverlap: 20,
	})

	var b strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "word%d ", i)
	}
	doc := models.Document{Path: "long.txt", Content: strings.TrimSpace(b.String())}

	chunks, err := s.Split(doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	var joined strings.Builder
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 100)
		joined.WriteString(c.Text)
		joined.WriteString(" ")
	}

	// The overlap must not lose any content at chunk boundaries.
	all := joined.String()
	for i := 0; i < 200; i++ {
		assert.Contains(t, all, fmt.Sprintf("word%d", i))
	}
}

func TestSplit_MetadataInherited(t *testing.T) {
	s := splitter.NewWithConfig(splitter.SplitterConfig{})

	doc := models.Document{
		Path:    "doc.md",
		Content: "Some short content.",
		Metadata: map[string]interface{}{
			"author": "test",
		},
	}

	chunks, err := s.Split(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "test", chunks[0].Metadata["author"])
	assert.Equal(t, "doc.md", chunks[0].Metadata["source"])
	assert.Equal(t, 0, chunks[0].Metadata["chunk_index"])
}
