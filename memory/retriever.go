package memory

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/becomeliminal/nim-persona/core"
)

// DefaultNumContextMemories is how many entries a retrieval returns at most.
// Each message pair counts as one entry.
const DefaultNumContextMemories = 20

// RetrieverMemory is the semantic retrieval store channel.
//
// Every recorded turn becomes one Entry that is embedded and written to the
// Store. Loading embeds the latest input and returns the text of the K most
// similar entries. Entries are never deleted.
type RetrieverMemory struct {
	store          Store
	embedder       Embedder // Internal: the engine never sees this
	conversationID string
	aiPrefix       string
	config         *Config
}

// NewRetrieverMemory creates a RetrieverMemory for one conversation.
// aiPrefix labels the character's lines in turn entries.
func NewRetrieverMemory(store Store, embedder Embedder, conversationID string, aiPrefix string, config *Config) *RetrieverMemory {
	if config == nil {
		config = DefaultConfig
	}
	if aiPrefix == "" {
		aiPrefix = "AI"
	}
	return &RetrieverMemory{
		store:          store,
		embedder:       embedder,
		conversationID: conversationID,
		aiPrefix:       aiPrefix,
		config:         config,
	}
}

// Key returns core.ContextKey.
func (m *RetrieverMemory) Key() string {
	return core.ContextKey
}

// ConversationID returns the store namespace of this channel.
func (m *RetrieverMemory) ConversationID() string {
	return m.conversationID
}

// Seed inserts one synthetic entry per rolling summary, in order.
// It must run before the first real turn is recorded.
func (m *RetrieverMemory) Seed(ctx context.Context, summaries []string) error {
	for i, summary := range summaries {
		if err := m.insert(ctx, NewSummaryEntry(m.conversationID, i, summary)); err != nil {
			return fmt.Errorf("seed summary [%d]: %w", i, err)
		}
	}
	if len(summaries) > 0 {
		log.Printf("[MEMORY] Seeded %d rolling summaries into conversation %q", len(summaries), m.conversationID)
	}
	return nil
}

// Save records a turn as a single entry holding both the human line and the
// character's response.
func (m *RetrieverMemory) Save(ctx context.Context, turn core.Turn) error {
	if err := m.insert(ctx, NewTurnEntry(m.conversationID, turn, m.aiPrefix)); err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// Load returns the retrieved entries for input joined by newlines.
func (m *RetrieverMemory) Load(ctx context.Context, input string) (string, error) {
	entries, err := m.Retrieve(ctx, input)
	if err != nil {
		return "", err
	}
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		texts = append(texts, e.Text())
	}
	return strings.Join(texts, "\n"), nil
}

// Retrieve embeds query and returns the most similar entries.
func (m *RetrieverMemory) Retrieve(ctx context.Context, query string) ([]*Entry, error) {
	embedding, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	entries, err := m.RetrieveByEmbedding(ctx, embedding)
	if err != nil {
		return nil, err
	}

	log.Printf("[MEMORY] Retrieved %d memories for query: %q", len(entries), truncateLog(query, 50))
	return entries, nil
}

// RetrieveByEmbedding returns up to NumContextMemories entries ranked by
// similarity to embedding, most similar first. Ties are ordered by the Store.
func (m *RetrieverMemory) RetrieveByEmbedding(ctx context.Context, embedding []float32) ([]*Entry, error) {
	entries, err := m.store.Query(ctx, m.conversationID, embedding, m.limit())
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}
	return entries, nil
}

// Count returns how many entries the conversation holds.
func (m *RetrieverMemory) Count(ctx context.Context) (int, error) {
	return m.store.Count(ctx, m.conversationID)
}

func (m *RetrieverMemory) insert(ctx context.Context, entry *Entry) error {
	embedding, err := m.embedder.Embed(ctx, entry.Text())
	if err != nil {
		return fmt.Errorf("embed entry: %w", err)
	}
	if err := m.store.Store(ctx, entry.WithEmbedding(embedding)); err != nil {
		return fmt.Errorf("store entry: %w", err)
	}
	return nil
}

func (m *RetrieverMemory) limit() int {
	if m.config.NumContextMemories <= 0 {
		return DefaultNumContextMemories
	}
	return m.config.NumContextMemories
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Config holds RetrieverMemory configuration.
type Config struct {
	// NumContextMemories caps how many entries one retrieval returns.
	// Default: 20.
	NumContextMemories int
}

// DefaultConfig returns the defaults used when no Config is given.
var DefaultConfig = &Config{
	NumContextMemories: DefaultNumContextMemories,
}
