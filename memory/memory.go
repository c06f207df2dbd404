package memory

import (
	"context"

	"github.com/becomeliminal/nim-persona/core"
)

// Channel is one memory source feeding the prompt template.
//
// Each channel owns exactly one prompt variable (Key) and reads only the
// completed core.Turn when recording. Variables loaded by other channels are
// never passed to Save, so channels cannot pick up each other's output.
type Channel interface {
	// Key is the prompt variable this channel fills.
	Key() string

	// Load returns the text for Key given the latest human input.
	Load(ctx context.Context, input string) (string, error)

	// Save records a completed turn.
	Save(ctx context.Context, turn core.Turn) error
}

// Store is the vector storage backend interface.
// Implementations: ChromemStore (memory/store/chromem).
type Store interface {
	// Store saves an entry with its embedding.
	// The entry must have its embedding set before calling Store.
	Store(ctx context.Context, entry *Entry) error

	// Query retrieves entries of a conversation by vector similarity.
	// Returns at most limit entries sorted by similarity (highest first),
	// and never more entries than the conversation holds.
	Query(ctx context.Context, conversationID string, embedding []float32, limit int) ([]*Entry, error)

	// Count returns the number of entries stored for a conversation.
	Count(ctx context.Context, conversationID string) (int, error)

	// Close releases resources.
	Close() error
}

// Embedder converts text to vector embeddings.
// Implementations: MockEmbedder (testing), ONNXEmbedder (local), OpenAI and
// Gemini embedders (API-based), and the caching decorator.
type Embedder interface {
	// Embed converts a single text to embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns embedding vector size.
	Dimensions() int
}
