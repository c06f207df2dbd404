package main

import (
	"context"
	"fmt"
	"log"

	"github.com/becomeliminal/nim-persona/character"
	"github.com/becomeliminal/nim-persona/config"
	"github.com/becomeliminal/nim-persona/engine"
	"github.com/becomeliminal/nim-persona/memory"
	"github.com/becomeliminal/nim-persona/memory/embedder/cache"
	"github.com/becomeliminal/nim-persona/memory/embedder/gemini"
	"github.com/becomeliminal/nim-persona/memory/embedder/mock"
	"github.com/becomeliminal/nim-persona/memory/embedder/openai"
	"github.com/becomeliminal/nim-persona/provider"
	anthropicprovider "github.com/becomeliminal/nim-persona/provider/anthropic"
	geminiprovider "github.com/becomeliminal/nim-persona/provider/gemini"
	openaiprovider "github.com/becomeliminal/nim-persona/provider/openai"
)

// newCompleter builds the completion backend selected by PROVIDER.
func newCompleter(ctx context.Context, cfg config.Config) (engine.Completer, error) {
	pcfg := provider.Config{
		APIKey:      cfg.APIKey(),
		Model:       cfg.Model,
		MaxTokens:   int64(cfg.MaxTokens),
		Temperature: cfg.Temperature,
		MaxRetries:  cfg.MaxRetries,
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openaiprovider.New(pcfg)
	case config.ProviderGemini:
		return geminiprovider.New(ctx, pcfg, nil)
	case config.ProviderAnthropic:
		return anthropicprovider.New(pcfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// newEmbedder builds the embedder selected by EMBEDDER wrapped in the shared
// embedding cache. The returned func releases it.
func newEmbedder(ctx context.Context, cfg config.Config) (memory.Embedder, func(), error) {
	var (
		inner   memory.Embedder
		release = func() {}
		err     error
	)

	switch cfg.Embedder {
	case config.EmbedderOpenAI:
		inner, err = openai.New(openai.Config{APIKey: cfg.OpenAIAPIKey})
	case config.EmbedderGemini:
		inner, err = gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey})
	case config.EmbedderONNX:
		inner, release, err = newONNXEmbedder(cfg)
	case config.EmbedderMock:
		inner = mock.New()
	default:
		err = fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("create %s embedder: %w", cfg.Embedder, err)
	}

	cached, err := cache.New(inner, cache.Config{MaxCost: cfg.EmbedCacheMaxCost})
	if err != nil {
		release()
		return nil, nil, err
	}
	log.Printf("✅ Embedder configured (%s, %d dims, cached)", cfg.Embedder, inner.Dimensions())

	return cached, func() {
		if err := cached.Close(); err != nil {
			log.Printf("[EMBED CACHE] Close failed: %v", err)
		}
		release()
	}, nil
}

// newBot builds a fresh chatbot for char. Every chatbot gets its own
// in-memory store; completer and embedder are shared.
func newBot(ctx context.Context, cfg config.Config, char *character.File, completer engine.Completer, embedder memory.Embedder, conversationID string) (*engine.Engine, error) {
	opts := []engine.Option{
		engine.WithEmbedder(embedder),
		engine.WithNumContextMemories(cfg.NumContextMemories),
	}
	if conversationID != "" {
		opts = append(opts, engine.WithConversationID(conversationID))
	}
	return engine.NewEngine(ctx, char.Definition(), char.Summaries(), completer, opts...)
}
