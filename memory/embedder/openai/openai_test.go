package openai_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/openai/openai-go/v3/option"

	"github.com/becomeliminal/nim-persona/memory/embedder/openai"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestEmbedder_Embed(t *testing.T) {
	var captured map[string]any
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		return jsonResponse(200, `{
			"object": "list",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.25, -0.5, 1.0]}],
			"model": "text-embedding-ada-002",
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`), nil
	})

	e, err := openai.New(openai.Config{
		APIKey:     "test-key",
		Dimensions: 3,
		Options: []option.RequestOption{
			option.WithHTTPClient(&http.Client{Transport: rt}),
			option.WithMaxRetries(0),
		},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	vec, err := e.Embed(context.Background(), "Human: Hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	want := []float32{0.25, -0.5, 1.0}
	if len(vec) != len(want) {
		t.Fatalf("got %d dims, want %d", len(vec), len(want))
	}
	for i := range want {
		if vec[i] != want[i] {
			t.Errorf("vec[%d] = %v, want %v", i, vec[i], want[i])
		}
	}
	if captured["input"] != "Human: Hello" {
		t.Errorf("input = %v", captured["input"])
	}
	if captured["model"] != "text-embedding-ada-002" {
		t.Errorf("model = %v", captured["model"])
	}
	if e.Dimensions() != 3 {
		t.Errorf("Dimensions() = %d", e.Dimensions())
	}
}

func TestEmbedder_APIError(t *testing.T) {
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(401, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`), nil
	})

	e, err := openai.New(openai.Config{
		APIKey: "test-key",
		Options: []option.RequestOption{
			option.WithHTTPClient(&http.Client{Transport: rt}),
			option.WithMaxRetries(0),
		},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := e.Embed(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := openai.New(openai.Config{}); err == nil {
		t.Fatal("expected error without API key")
	}
}
