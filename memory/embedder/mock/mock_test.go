package mock_test

import (
	"context"
	"math"
	"testing"

	"github.com/becomeliminal/nim-persona/memory/embedder/mock"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := mock.New()

	a, err := e.Embed(ctx, "The dragon guards the gate")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, _ := e.Embed(ctx, "The dragon guards the gate")

	if len(a) != e.Dimensions() {
		t.Fatalf("expected %d dims, got %d", e.Dimensions(), len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding differs at %d", i)
		}
	}
	if n := dot(a, a); math.Abs(n-1) > 1e-5 {
		t.Errorf("expected unit vector, got norm^2 %f", n)
	}
}

func TestMockEmbedder_SharedWordsAreCloser(t *testing.T) {
	ctx := context.Background()
	e := mock.NewWithDimensions(1024)

	query, _ := e.Embed(ctx, "where is the dragon")
	near, _ := e.Embed(ctx, "the dragon sleeps in the cave")
	far, _ := e.Embed(ctx, "bread recipes with flour")

	if dot(query, near) <= dot(query, far) {
		t.Errorf("expected shared words to score higher: near=%f far=%f", dot(query, near), dot(query, far))
	}
}

func TestMockEmbedder_EmptyTextIsNotZero(t *testing.T) {
	e := mock.New()
	v, err := e.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if dot(v, v) == 0 {
		t.Error("expected non-zero vector for empty text")
	}
}
