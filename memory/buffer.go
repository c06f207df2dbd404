package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/becomeliminal/nim-persona/core"
)

// BufferMemory is the recent-turn buffer: every turn of the conversation,
// verbatim and in order. It is append-only and unbounded.
type BufferMemory struct {
	mu       sync.RWMutex
	turns    []core.Turn
	aiPrefix string
}

// NewBufferMemory creates an empty buffer. aiPrefix labels the character's
// lines when the buffer is rendered.
func NewBufferMemory(aiPrefix string) *BufferMemory {
	if aiPrefix == "" {
		aiPrefix = "AI"
	}
	return &BufferMemory{aiPrefix: aiPrefix}
}

// Key returns core.ChatHistoryKey.
func (b *BufferMemory) Key() string {
	return core.ChatHistoryKey
}

// Load renders the whole transcript. The input is ignored: the buffer always
// returns every turn.
func (b *BufferMemory) Load(ctx context.Context, input string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	lines := make([]string, 0, 2*len(b.turns))
	for _, t := range b.turns {
		lines = append(lines,
			fmt.Sprintf("%s: %s", core.HumanPrefix, t.Input),
			fmt.Sprintf("%s: %s", b.aiPrefix, t.Response),
		)
	}
	return strings.Join(lines, "\n"), nil
}

// Save appends the turn.
func (b *BufferMemory) Save(ctx context.Context, turn core.Turn) error {
	b.mu.Lock()
	b.turns = append(b.turns, turn)
	b.mu.Unlock()
	return nil
}

// Turns returns a copy of the recorded turns in insertion order.
func (b *BufferMemory) Turns() []core.Turn {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.Turn(nil), b.turns...)
}

// Len returns the number of recorded turns.
func (b *BufferMemory) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.turns)
}
