// Package cache provides an Embedder decorator that memoizes embeddings in a
// ristretto cache. Rolling summaries are embedded once per conversation, so a
// shared cache avoids re-embedding them for every new session.
package cache

import (
	"context"
	"fmt"
	"log"

	"github.com/dgraph-io/ristretto"

	"github.com/becomeliminal/nim-persona/memory"
)

// Config configures the embedding cache.
type Config struct {
	// MaxCost is the cache budget in bytes of embedding data.
	// Default: 64 MiB.
	MaxCost int64

	// NumCounters is the number of keys tracked for admission.
	// Default: 10x the number of 384-dim vectors fitting in MaxCost.
	NumCounters int64
}

// DefaultConfig returns sensible defaults.
var DefaultConfig = Config{
	MaxCost: 64 << 20,
}

// CachedEmbedder wraps an Embedder with a ristretto cache keyed by text.
type CachedEmbedder struct {
	next  memory.Embedder
	cache *ristretto.Cache
}

// New wraps next with a cache.
func New(next memory.Embedder, cfg Config) (*CachedEmbedder, error) {
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = DefaultConfig.MaxCost
	}
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = 10 * (cfg.MaxCost / (384 * 4))
		if cfg.NumCounters < 1000 {
			cfg.NumCounters = 1000
		}
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &CachedEmbedder{next: next, cache: c}, nil
}

// Embed returns the cached embedding for text, computing it on a miss.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if emb, ok := v.([]float32); ok {
			return append([]float32(nil), emb...), nil
		}
	}

	emb, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if !c.cache.Set(text, append([]float32(nil), emb...), int64(4*len(emb))) {
		log.Printf("[EMBED CACHE] Dropped entry of %d dims", len(emb))
	}
	return emb, nil
}

// Dimensions returns the wrapped embedder's size.
func (c *CachedEmbedder) Dimensions() int {
	return c.next.Dimensions()
}

// Wait blocks until pending cache writes are applied.
func (c *CachedEmbedder) Wait() {
	c.cache.Wait()
}

// Close stops the cache's background goroutines.
func (c *CachedEmbedder) Close() error {
	c.cache.Close()
	return nil
}
