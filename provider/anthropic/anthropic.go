// Package anthropic completes prompts with Claude through the Messages API.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/becomeliminal/nim-persona/provider"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-20250514"

// Completer sends the rendered prompt as a single user message.
type Completer struct {
	client *anthropic.Client
	cfg    provider.Config
}

// New creates a Claude completer. opts are appended to the client options.
func New(cfg provider.Config, opts ...option.RequestOption) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}
	cfg = cfg.WithDefaults(DefaultModel)

	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}, opts...)
	client := anthropic.NewClient(clientOpts...)

	return &Completer{client: &client, cfg: cfg}, nil
}

func (c *Completer) params(prompt string) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:         anthropic.Model(c.cfg.Model),
		MaxTokens:     c.cfg.MaxTokens,
		Temperature:   anthropic.Float(c.cfg.Temperature),
		StopSequences: []string{provider.StopSequence},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
}

// Complete returns the concatenated text blocks of the reply.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, c.params(prompt))
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}
	return messageText(resp), nil
}

// CompleteStream streams text deltas to onChunk and returns the full reply.
func (c *Completer) CompleteStream(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.params(prompt))
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return "", fmt.Errorf("accumulate stream: %w", err)
		}

		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				onChunk(delta.Text)
			}
		}
	}

	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}
	return messageText(&message), nil
}

func messageText(msg *anthropic.Message) string {
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text
}
