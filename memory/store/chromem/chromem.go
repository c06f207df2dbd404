package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/nim-persona/memory"
)

// ChromemStore wraps chromem-go for vector storage.
// chromem-go is a pure Go, embedded vector database.
type ChromemStore struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection // Per-conversation collections
	mu          sync.RWMutex
}

// New creates a new in-memory chromem-based store.
func New() (*ChromemStore, error) {
	db := chromem.NewDB()

	return &ChromemStore{
		db:          db,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// getOrCreateCollection returns the collection for a conversation.
// Each conversation gets its own collection for namespace isolation.
func (s *ChromemStore) getOrCreateCollection(conversationID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[conversationID]
	s.mu.RUnlock()

	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := s.collections[conversationID]; exists {
		return col, nil
	}

	collectionName := fmt.Sprintf("conversation_%s", conversationID)
	if conversationID == "" {
		collectionName = "default"
	}

	col, err := s.db.CreateCollection(
		collectionName,
		nil, // No collection metadata
		nil, // No embedding func (we provide embeddings)
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s.collections[conversationID] = col
	return col, nil
}

// Store saves an entry with its embedding.
func (s *ChromemStore) Store(ctx context.Context, entry *memory.Entry) error {
	if len(entry.Embedding()) == 0 {
		return fmt.Errorf("entry %s has no embedding", entry.ID())
	}

	col, err := s.getOrCreateCollection(entry.ConversationID())
	if err != nil {
		return err
	}

	log.Printf("[CHROMEM] Storing entry: id=%s, conversation=%s, kind=%s",
		entry.ID(), entry.ConversationID(), entry.Kind())

	metadata, err := serializeMetadata(entry)
	if err != nil {
		return fmt.Errorf("serialize entry: %w", err)
	}

	doc := chromem.Document{
		ID:        entry.ID(),
		Content:   entry.Text(),
		Embedding: entry.Embedding(),
		Metadata:  metadata,
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	return nil
}

// Query retrieves entries by vector similarity.
// chromem-go rejects nResults larger than the collection, so limit is clamped
// to the collection size.
func (s *ChromemStore) Query(ctx context.Context, conversationID string, embedding []float32, limit int) ([]*memory.Entry, error) {
	col, err := s.getOrCreateCollection(conversationID)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 || limit <= 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	log.Printf("[CHROMEM] Querying conversation=%s, limit=%d, size=%d", conversationID, limit, count)

	results, err := col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	entries := make([]*memory.Entry, 0, len(results))
	for i, result := range results {
		entry, err := deserializeEntry(result)
		if err != nil {
			log.Printf("[CHROMEM] Skipping result #%d: %v", i+1, err)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Count returns the number of entries stored for a conversation.
func (s *ChromemStore) Count(ctx context.Context, conversationID string) (int, error) {
	s.mu.RLock()
	col, exists := s.collections[conversationID]
	s.mu.RUnlock()

	if !exists {
		return 0, nil
	}
	return col.Count(), nil
}

// Close releases resources.
func (s *ChromemStore) Close() error {
	// chromem-go keeps everything in memory, nothing to close
	return nil
}

const (
	metaKind           = "kind"
	metaConversationID = "conversation_id"
	metaCreatedAt      = "created_at"
	metaPosition       = "position"
	metaParts          = "parts"
)

// serializeMetadata converts an entry's structured fields to chromem metadata.
func serializeMetadata(entry *memory.Entry) (map[string]string, error) {
	parts, err := json.Marshal(entry.Parts())
	if err != nil {
		return nil, fmt.Errorf("marshal parts: %w", err)
	}

	metadata := map[string]string{
		metaKind:           string(entry.Kind()),
		metaConversationID: entry.ConversationID(),
		metaCreatedAt:      entry.CreatedAt().Format(time.RFC3339Nano),
		metaParts:          string(parts),
	}
	if position, ok := entry.Position(); ok {
		metadata[metaPosition] = strconv.Itoa(position)
	}
	return metadata, nil
}

// deserializeEntry converts a chromem result back to an entry.
func deserializeEntry(result chromem.Result) (*memory.Entry, error) {
	kind := memory.Kind(result.Metadata[metaKind])
	if kind != memory.KindTurn && kind != memory.KindSummary {
		return nil, fmt.Errorf("unknown entry kind: %q", kind)
	}

	var parts []memory.Part
	if err := json.Unmarshal([]byte(result.Metadata[metaParts]), &parts); err != nil {
		return nil, fmt.Errorf("unmarshal parts: %w", err)
	}

	position := -1
	if raw, ok := result.Metadata[metaPosition]; ok {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse position: %w", err)
		}
		position = p
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, result.Metadata[metaCreatedAt])

	return memory.NewEntryFromStorage(
		result.ID,
		result.Metadata[metaConversationID],
		kind,
		parts,
		position,
		createdAt,
		result.Embedding,
	), nil
}
