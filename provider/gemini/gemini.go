// Package gemini completes prompts with the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/becomeliminal/nim-persona/provider"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Completer sends the rendered prompt as a single text content.
type Completer struct {
	client *genai.Client
	cfg    provider.Config
}

// New creates a Gemini completer. httpClient may be nil.
func New(ctx context.Context, cfg provider.Config, httpClient *http.Client) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	cfg = cfg.WithDefaults(DefaultModel)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Completer{client: client, cfg: cfg}, nil
}

// Model returns the configured model name.
func (c *Completer) Model() string {
	return c.cfg.Model
}

func (c *Completer) generateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.cfg.Temperature)),
		MaxOutputTokens: int32(c.cfg.MaxTokens),
		StopSequences:   []string{provider.StopSequence},
	}
}

// Complete returns the reply text.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	res, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), c.generateConfig())
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}
	if len(res.Candidates) == 0 {
		return "", fmt.Errorf("gemini API error: no candidates returned")
	}
	return res.Text(), nil
}

// CompleteStream streams reply text to onChunk and returns the full reply.
func (c *Completer) CompleteStream(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	var full string
	for res, err := range c.client.Models.GenerateContentStream(ctx, c.cfg.Model, genai.Text(prompt), c.generateConfig()) {
		if err != nil {
			return "", fmt.Errorf("gemini API error: %w", err)
		}
		if text := res.Text(); text != "" {
			full += text
			onChunk(text)
		}
	}
	return full, nil
}
