package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/becomeliminal/nim-persona/core"
)

// CombinedMemory runs several channels for one conversation.
// Channels are saved in the order given, so fallible channels (the semantic
// store) should come before infallible ones (the buffer): a failed turn then
// leaves no partial record in the buffer.
type CombinedMemory struct {
	channels []Channel
}

// NewCombinedMemory creates a CombinedMemory. Every channel must declare a
// distinct key.
func NewCombinedMemory(channels ...Channel) (*CombinedMemory, error) {
	seen := make(map[string]bool, len(channels))
	for i, ch := range channels {
		if ch == nil {
			return nil, fmt.Errorf("channel %d is nil", i)
		}
		key := ch.Key()
		if key == "" {
			return nil, fmt.Errorf("channel %d has an empty key", i)
		}
		if seen[key] {
			return nil, fmt.Errorf("duplicate memory key %q", key)
		}
		seen[key] = true
	}
	if len(channels) == 0 {
		return nil, errors.New("at least one memory channel is required")
	}
	return &CombinedMemory{channels: channels}, nil
}

// Keys returns the channel keys in order.
func (c *CombinedMemory) Keys() []string {
	keys := make([]string, 0, len(c.channels))
	for _, ch := range c.channels {
		keys = append(keys, ch.Key())
	}
	return keys
}

// Load returns every channel's variable for input, keyed by channel key.
func (c *CombinedMemory) Load(ctx context.Context, input string) (map[string]string, error) {
	vars := make(map[string]string, len(c.channels))
	for _, ch := range c.channels {
		text, err := ch.Load(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", ch.Key(), err)
		}
		vars[ch.Key()] = text
	}
	return vars, nil
}

// Save records turn in every channel, stopping at the first failure.
func (c *CombinedMemory) Save(ctx context.Context, turn core.Turn) error {
	for _, ch := range c.channels {
		if err := ch.Save(ctx, turn); err != nil {
			return fmt.Errorf("save %s: %w", ch.Key(), err)
		}
	}
	return nil
}
