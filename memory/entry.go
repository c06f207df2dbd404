package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/becomeliminal/nim-persona/core"
	"github.com/google/uuid"
)

// Kind distinguishes real conversation turns from seeded summaries.
type Kind string

const (
	// KindTurn is an entry produced from one human/character exchange.
	KindTurn Kind = "turn"

	// KindSummary is a synthetic entry seeded from a rolling summary.
	KindSummary Kind = "summary"
)

// Part is one labelled line of an entry, e.g. {"Human", "Hello"}.
type Part struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Entry is an immutable, turn-scoped text record of the semantic store.
//
// A turn entry carries the human line and the character's response as one
// document. A summary entry carries a single line labelled with its position
// in the rolling summary sequence ("[0]", "[1]", ...).
type Entry struct {
	id             string
	conversationID string
	kind           Kind
	parts          []Part
	position       int
	createdAt      time.Time
	embedding      []float32
}

// NewTurnEntry creates an entry for one completed turn. characterName labels
// the response line.
func NewTurnEntry(conversationID string, turn core.Turn, characterName string) *Entry {
	return &Entry{
		id:             uuid.New().String(),
		conversationID: conversationID,
		kind:           KindTurn,
		parts: []Part{
			{Label: core.HumanPrefix, Text: turn.Input},
			{Label: characterName, Text: turn.Response},
		},
		position:  -1,
		createdAt: time.Now(),
	}
}

// NewSummaryEntry creates a synthetic entry for the rolling summary at position.
// The entry has no input side; the summary is its only line.
func NewSummaryEntry(conversationID string, position int, summary string) *Entry {
	return &Entry{
		id:             uuid.New().String(),
		conversationID: conversationID,
		kind:           KindSummary,
		parts:          []Part{{Label: fmt.Sprintf("[%d]", position), Text: summary}},
		position:       position,
		createdAt:      time.Now(),
	}
}

// NewEntryFromStorage recreates an entry from stored data.
// This is used by Store implementations when deserializing.
func NewEntryFromStorage(
	id string,
	conversationID string,
	kind Kind,
	parts []Part,
	position int,
	createdAt time.Time,
	embedding []float32,
) *Entry {
	return &Entry{
		id:             id,
		conversationID: conversationID,
		kind:           kind,
		parts:          append([]Part(nil), parts...),
		position:       position,
		createdAt:      createdAt,
		embedding:      embedding,
	}
}

func (e *Entry) ID() string {
	return e.id
}

func (e *Entry) ConversationID() string {
	return e.conversationID
}

func (e *Entry) Kind() Kind {
	return e.kind
}

func (e *Entry) CreatedAt() time.Time {
	return e.createdAt
}

func (e *Entry) Embedding() []float32 {
	return e.embedding
}

// Parts returns a copy of the entry's labelled lines.
func (e *Entry) Parts() []Part {
	return append([]Part(nil), e.parts...)
}

// Position returns the rolling summary index of a summary entry.
// ok is false for turn entries.
func (e *Entry) Position() (position int, ok bool) {
	if e.kind != KindSummary {
		return 0, false
	}
	return e.position, true
}

// Text renders the entry as the document that is embedded and injected into
// the prompt: one "<label>: <text>" line per part.
func (e *Entry) Text() string {
	lines := make([]string, 0, len(e.parts))
	for _, p := range e.parts {
		lines = append(lines, fmt.Sprintf("%s: %s", p.Label, p.Text))
	}
	return strings.Join(lines, "\n")
}

// WithEmbedding returns a copy of the entry carrying the given embedding.
func (e *Entry) WithEmbedding(embedding []float32) *Entry {
	cp := *e
	cp.parts = append([]Part(nil), e.parts...)
	cp.embedding = embedding
	return &cp
}
