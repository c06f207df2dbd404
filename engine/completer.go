package engine

import "context"

// Completer turns a fully rendered prompt into the character's next line.
// Implementations live under provider/.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// StreamingCompleter is implemented by completers that can deliver the
// response incrementally. onChunk receives text deltas in order; the return
// value is the full response.
type StreamingCompleter interface {
	Completer
	CompleteStream(ctx context.Context, prompt string, onChunk func(string)) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
