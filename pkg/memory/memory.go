package memory

import (
	"strings"
	"sync"
)

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string
	Answer   string
}

// ConversationMemory is an ordered log of turns shared by concurrent
// queries. Turns are appended after every successful answer and only
// ever removed all at once by Clear.
type ConversationMemory struct {
	mu    sync.RWMutex
	turns []Turn
}

func New() *ConversationMemory {
	return &ConversationMemory{}
}

func (m *ConversationMemory) Append(question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, Turn{Question: question, Answer: answer})
}

// Render produces the full chronological transcript, oldest turn
// first, or an empty string when there is no history.
func (m *ConversationMemory) Render() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return renderTurns(m.turns)
}

// RenderTail renders at most maxChars of transcript, dropping the
// oldest turns first and never splitting a turn. maxChars <= 0 means
// no cap. This is what gets fed into prompts so history growth cannot
// blow up the prompt size.
func (m *ConversationMemory) RenderTail(maxChars int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if maxChars <= 0 {
		return renderTurns(m.turns)
	}

	total := 0
	start := len(m.turns)
	for i := len(m.turns) - 1; i >= 0; i-- {
		turnLen := len(m.turns[i].Question) + len(m.turns[i].Answer) + len("Q: \nA: \n")
		if total+turnLen > maxChars {
			break
		}
		total += turnLen
		start = i
	}

	return renderTurns(m.turns[start:])
}

// Clear removes all turns. Idempotent.
func (m *ConversationMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
}

// Len reports the number of recorded turns.
func (m *ConversationMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

func renderTurns(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}

	var b strings.Builder
	for _, t := range turns {
		b.WriteString("Q: ")
		b.WriteString(t.Question)
		b.WriteString("\nA: ")
		b.WriteString(t.Answer)
		b.WriteString("\n")
	}
	return b.String()
}
