package chromem_test

import (
	"context"
	"testing"

	"github.com/becomeliminal/nim-persona/core"
	"github.com/becomeliminal/nim-persona/memory"
	"github.com/becomeliminal/nim-persona/memory/embedder/mock"
	"github.com/becomeliminal/nim-persona/memory/store/chromem"
)

func embedded(t *testing.T, e *memory.Entry) *memory.Entry {
	t.Helper()
	emb, err := mock.New().Embed(context.Background(), e.Text())
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	return e.WithEmbedding(emb)
}

func TestChromemStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := chromem.New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer store.Close()

	summary := embedded(t, memory.NewSummaryEntry("c1", 4, "The dragon slept"))
	turn := embedded(t, memory.NewTurnEntry("c1", core.Turn{Input: "Hello", Response: "Hi"}, "Alice"))
	for _, e := range []*memory.Entry{summary, turn} {
		if err := store.Store(ctx, e); err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	if n, _ := store.Count(ctx, "c1"); n != 2 {
		t.Fatalf("Count() = %d, want 2", n)
	}
	if n, _ := store.Count(ctx, "other"); n != 0 {
		t.Errorf("Count(other) = %d, want 0", n)
	}

	results, err := store.Query(ctx, "c1", summary.Embedding(), 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected limit clamped to 2 results, got %d", len(results))
	}

	got := results[0]
	if got.ID() != summary.ID() || got.Text() != "[4]: The dragon slept" {
		t.Errorf("top result = %s %q", got.ID(), got.Text())
	}
	if pos, ok := got.Position(); !ok || pos != 4 {
		t.Errorf("Position() = %d, %v", pos, ok)
	}
	if got.ConversationID() != "c1" || got.CreatedAt().IsZero() {
		t.Errorf("metadata not restored")
	}
	if results[1].Kind() != memory.KindTurn {
		t.Errorf("second result kind = %q", results[1].Kind())
	}
}

func TestChromemStore_RejectsMissingEmbedding(t *testing.T) {
	store, _ := chromem.New()
	if err := store.Store(context.Background(), memory.NewSummaryEntry("c1", 0, "x")); err == nil {
		t.Fatal("expected error for entry without embedding")
	}
}

func TestChromemStore_QueryEmpty(t *testing.T) {
	store, _ := chromem.New()
	results, err := store.Query(context.Background(), "none", []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
