package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tienvm/ragdoc/pkg/memory"
)

func TestRender_EmptyMemory(t *testing.T) {
	m := memory.New()
	assert.Equal(t, "", m.Render())
	assert.Equal(t, 0, m.Len())
}

func TestRender_ChronologicalTranscript(t *testing.T) {
	m := memory.New()
	m.Append("What is Go?", "A programming language.")
	m.Append("Who made it?", "Google.")

	want := "Q: What is Go?\nA: A programming language.\nQ: Who made it?\nA: Google.\n"
	assert.Equal(t, want, m.Render())
	assert.Equal(t, 2, m.Len())
}

func TestClear_IsIdempotent(t *testing.T) {
	m := memory.New()
	m.Append("q", "a")

	m.Clear()
	assert.Equal(t, "", m.Render())

	m.Clear()
	assert.Equal(t, "", m.Render())
}

func TestRenderTail_KeepsNewestTurns(t *testing.T) {
	m := memory.New()
	m.Append("first question", "first answer")
	m.Append("second question", "second answer")
	m.Append("third question", "third answer")

	full := m.Render()
	assert.Equal(t, full, m.RenderTail(0), "no cap renders everything")
	assert.Equal(t, full, m.RenderTail(len(full)))

	tail := m.RenderTail(80)
	assert.NotContains(t, tail, "first question")
	assert.Contains(t, tail, "third question")

	// A turn never gets split in half.
	if tail != "" {
		assert.Contains(t, tail, "Q: ")
		assert.Contains(t, tail, "\nA: ")
	}
}
