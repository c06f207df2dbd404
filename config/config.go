// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Completion providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Embedders.
const (
	EmbedderMock   = "mock"
	EmbedderOpenAI = "openai"
	EmbedderGemini = "gemini"
	EmbedderONNX   = "onnx"
)

// Config holds everything the nim-persona binary needs.
type Config struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxRetries  int

	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string

	Embedder          string
	EmbedCacheMaxCost int64
	ONNXModelPath     string
	ONNXTokenizerPath string
	ONNXLibraryPath   string

	NumContextMemories int
	CharacterFile      string

	Port           int
	GRPCPort       int
	JournalPath    string
	RequestTimeout time.Duration
}

// Load reads .env files (default ".env", missing files are ignored) into the
// environment without overriding it, then builds and validates the Config.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds the Config from environment variables only.
func FromEnv() (Config, error) {
	var env envParser
	cfg := Config{
		Provider:    strings.ToLower(envOrDefault("PROVIDER", ProviderAnthropic)),
		Model:       os.Getenv("MODEL"),
		MaxTokens:   env.integer("MAX_TOKENS", 1024),
		Temperature: env.number("TEMPERATURE", 0.7),
		MaxRetries:  env.integer("MAX_RETRIES", 2),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),

		Embedder:          strings.ToLower(envOrDefault("EMBEDDER", EmbedderMock)),
		EmbedCacheMaxCost: int64(env.integer("EMBED_CACHE_MAX_COST", 64<<20)),
		ONNXModelPath:     os.Getenv("ONNX_MODEL_PATH"),
		ONNXTokenizerPath: os.Getenv("ONNX_TOKENIZER_PATH"),
		ONNXLibraryPath:   os.Getenv("ONNX_LIBRARY_PATH"),

		NumContextMemories: env.integer("NUM_CONTEXT_MEMORIES", 20),
		CharacterFile:      envOrDefault("CHARACTER_FILE", "character.yaml"),

		Port:           env.integer("PORT", 8080),
		GRPCPort:       env.integer("GRPC_PORT", 9090),
		JournalPath:    os.Getenv("JOURNAL_PATH"),
		RequestTimeout: time.Duration(env.integer("REQUEST_TIMEOUT_SECONDS", 120)) * time.Second,
	}

	if err := env.err(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// APIKey returns the key of the configured completion provider.
func (c Config) APIKey() string {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	default:
		return c.AnthropicAPIKey
	}
}

func (c Config) validate() error {
	switch c.Provider {
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required in environment when PROVIDER=anthropic")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required in environment when PROVIDER=openai")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required in environment when PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unknown PROVIDER %q", c.Provider)
	}

	switch c.Embedder {
	case EmbedderMock:
	case EmbedderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required in environment when EMBEDDER=openai")
		}
	case EmbedderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required in environment when EMBEDDER=gemini")
		}
	case EmbedderONNX:
		if c.ONNXModelPath == "" || c.ONNXTokenizerPath == "" {
			return fmt.Errorf("ONNX_MODEL_PATH and ONNX_TOKENIZER_PATH are required when EMBEDDER=onnx")
		}
	default:
		return fmt.Errorf("unknown EMBEDDER %q", c.Embedder)
	}

	if c.NumContextMemories <= 0 {
		return fmt.Errorf("NUM_CONTEXT_MEMORIES must be positive, got %d", c.NumContextMemories)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envParser reads numeric variables and remembers every malformed one.
type envParser struct {
	errs []error
}

func (p *envParser) integer(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return fallback
	}
	return n
}

func (p *envParser) number(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be a number, got %q", key, v))
		return fallback
	}
	return f
}

func (p *envParser) err() error {
	return errors.Join(p.errs...)
}
