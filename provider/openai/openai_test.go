package openai_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3/option"

	"github.com/becomeliminal/nim-persona/provider"
	"github.com/becomeliminal/nim-persona/provider/openai"
)

type fakeTransport struct {
	contentType string
	body        string
	captured    []byte
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.captured, _ = io.ReadAll(req.Body)
	_ = req.Body.Close()
	resp := &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewBufferString(f.body)),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", f.contentType)
	return resp, nil
}

func newCompleter(t *testing.T, rt http.RoundTripper) *openai.Completer {
	t.Helper()
	c, err := openai.New(provider.Config{APIKey: "test-key", Model: "gpt-test", MaxRetries: -1},
		option.WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return c
}

func TestCompleter_Complete(t *testing.T) {
	rt := &fakeTransport{contentType: "application/json", body: `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-test",
		"choices": [{"index": 0, "finish_reason": "stop",
			"message": {"role": "assistant", "content": "Hi there"}}]
	}`}
	c := newCompleter(t, rt)

	got, err := c.Complete(context.Background(), "Human: Hello\nAlice:")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "Hi there" {
		t.Errorf("Complete() = %q", got)
	}

	var req map[string]any
	if err := json.Unmarshal(rt.captured, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req["model"] != "gpt-test" || req["stop"] != provider.StopSequence {
		t.Errorf("model=%v stop=%v", req["model"], req["stop"])
	}
	if req["max_completion_tokens"] != float64(1024) {
		t.Errorf("max_completion_tokens = %v", req["max_completion_tokens"])
	}
}

func TestCompleter_CompleteStream(t *testing.T) {
	chunk := func(content string) string {
		return `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{"content":"` + content + `"}}]}` + "\n\n"
	}
	body := chunk("Hi ") + chunk("there") + "data: [DONE]\n\n"
	c := newCompleter(t, &fakeTransport{contentType: "text/event-stream", body: body})

	var chunks []string
	got, err := c.CompleteStream(context.Background(), "hi", func(s string) { chunks = append(chunks, s) })
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if got != "Hi there" {
		t.Errorf("CompleteStream() = %q", got)
	}
	if strings.Join(chunks, "|") != "Hi |there" {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := openai.New(provider.Config{}); err == nil {
		t.Fatal("expected error without API key")
	}
}
