package anthropic_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/becomeliminal/nim-persona/provider"
	"github.com/becomeliminal/nim-persona/provider/anthropic"
)

type fakeTransport struct {
	status      int
	contentType string
	body        string
	captured    []byte
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	b, _ := io.ReadAll(req.Body)
	_ = req.Body.Close()
	f.captured = b
	resp := &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewBufferString(f.body)),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", f.contentType)
	return resp, nil
}

func newCompleter(t *testing.T, rt http.RoundTripper) *anthropic.Completer {
	t.Helper()
	c, err := anthropic.New(provider.Config{APIKey: "test-key", MaxRetries: -1},
		option.WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return c
}

const messageJSON = `{
	"id": "msg_1",
	"type": "message",
	"role": "assistant",
	"model": "claude-sonnet-4-20250514",
	"content": [{"type": "text", "text": " Hi there"}],
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 10, "output_tokens": 3}
}`

func TestCompleter_Complete(t *testing.T) {
	rt := &fakeTransport{status: 200, contentType: "application/json", body: messageJSON}
	c := newCompleter(t, rt)

	got, err := c.Complete(context.Background(), "Human: Hello\nAlice:")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != " Hi there" {
		t.Errorf("Complete() = %q", got)
	}

	var req struct {
		Model         string   `json:"model"`
		MaxTokens     int      `json:"max_tokens"`
		Temperature   *float64 `json:"temperature"`
		StopSequences []string `json:"stop_sequences"`
		Messages      []struct {
			Role    string `json:"role"`
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(rt.captured, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req.Model != anthropic.DefaultModel || req.MaxTokens != 1024 {
		t.Errorf("model=%q max_tokens=%d", req.Model, req.MaxTokens)
	}
	if req.Temperature == nil || *req.Temperature != 0 {
		t.Errorf("temperature = %v, want an explicit 0", req.Temperature)
	}
	if len(req.StopSequences) != 1 || req.StopSequences[0] != provider.StopSequence {
		t.Errorf("stop_sequences = %q", req.StopSequences)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content[0].Text != "Human: Hello\nAlice:" {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
}

func TestCompleter_APIError(t *testing.T) {
	rt := &fakeTransport{status: 400, contentType: "application/json",
		body: `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`}
	c := newCompleter(t, rt)

	if _, err := c.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
}

func sse(events ...string) string {
	var sb strings.Builder
	for _, e := range events {
		var probe struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal([]byte(e), &probe)
		sb.WriteString("event: " + probe.Type + "\n")
		sb.WriteString("data: " + e + "\n\n")
	}
	return sb.String()
}

func TestCompleter_CompleteStream(t *testing.T) {
	body := sse(
		`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514","content":[],"stop_reason":null,"usage":{"input_tokens":10,"output_tokens":0}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi "}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"there"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":2}}`,
		`{"type":"message_stop"}`,
	)
	rt := &fakeTransport{status: 200, contentType: "text/event-stream", body: body}
	c := newCompleter(t, rt)

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
	if _, err := anthropic.New(provider.Config{}); err == nil {
		t.Fatal("expected error without API key")
	}
}
