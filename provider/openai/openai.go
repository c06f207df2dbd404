// Package openai completes prompts with the OpenAI chat completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/becomeliminal/nim-persona/provider"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Completer sends the rendered prompt as a single user message.
type Completer struct {
	client openai.Client
	cfg    provider.Config
}

// New creates an OpenAI completer. opts are appended to the client options.
func New(cfg provider.Config, opts ...option.RequestOption) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	cfg = cfg.WithDefaults(DefaultModel)

	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}, opts...)

	return &Completer{client: openai.NewClient(clientOpts...), cfg: cfg}, nil
}

func (c *Completer) params(prompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(c.cfg.MaxTokens),
		Temperature:         openai.Float(c.cfg.Temperature),
		Stop: openai.ChatCompletionNewParamsStopUnion{
			OfString: openai.String(provider.StopSequence),
		},
	}
}

// Complete returns the first choice's content.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(prompt))
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai API error: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteStream streams content deltas to onChunk and returns the full reply.
func (c *Completer) CompleteStream(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(prompt))
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onChunk(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(acc.Choices) == 0 {
		return "", nil
	}
	return acc.Choices[0].Message.Content, nil
}
