// Package provider holds the shared settings of the completion backends.
// Each backend lives in its own subpackage and implements engine.Completer.
package provider

// StopSequence ends a completion before the model starts writing the
// Human's next line.
const StopSequence = "\nHuman:"

// Config holds settings common to every completion backend.
type Config struct {
	// APIKey authenticates with the backend.
	APIKey string

	// Model overrides the backend's default model.
	Model string

	// MaxTokens bounds the length of one reply (default: 1024).
	MaxTokens int64

	// Temperature controls sampling. Zero is deterministic; config.FromEnv
	// defaults it to DefaultConfig.Temperature.
	Temperature float64

	// MaxRetries is passed to the SDK client (default: 2). The engine adds
	// no retries of its own.
	MaxRetries int
}

// DefaultConfig holds the defaults applied to zero-valued fields.
var DefaultConfig = Config{
	MaxTokens:   1024,
	Temperature: 0.7,
	MaxRetries:  2,
}

// WithDefaults returns cfg with zero-valued fields replaced by DefaultConfig
// and model defaulted to defaultModel. Temperature is kept as given: zero
// asks for deterministic sampling.
func (cfg Config) WithDefaults(defaultModel string) Config {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig.MaxTokens
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultConfig.MaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return cfg
}
