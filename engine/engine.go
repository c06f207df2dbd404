// Package engine implements the roleplay chatbot: it assembles a prompt from
// the character definition and both memory channels, asks a Completer for
// the character's reply, and records the finished turn.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"text/template"

	"github.com/google/uuid"

	"github.com/becomeliminal/nim-persona/core"
	"github.com/becomeliminal/nim-persona/memory"
	"github.com/becomeliminal/nim-persona/memory/embedder/mock"
	"github.com/becomeliminal/nim-persona/memory/store/chromem"
)

// ErrEmptyInput is returned by Step for blank input.
var ErrEmptyInput = errors.New("input is empty")

// Engine is one conversation with one character.
//
// An Engine is not safe for concurrent Step calls: turns of a conversation
// must be processed one at a time. session.Registry serializes them.
type Engine struct {
	character core.CharacterDefinition
	completer Completer

	store              memory.Store
	ownsStore          bool
	embedder           memory.Embedder
	conversationID     string
	numContextMemories int
	templateText       string
	tmpl               *template.Template

	buffer    *memory.BufferMemory
	retriever *memory.RetrieverMemory
	memory    *memory.CombinedMemory
}

// Option configures the engine.
type Option func(*Engine)

// WithStore sets the semantic store. By default each engine gets its own
// in-memory chromem store.
func WithStore(s memory.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithEmbedder sets the embedder used for store entries and queries.
func WithEmbedder(em memory.Embedder) Option {
	return func(e *Engine) {
		e.embedder = em
	}
}

// WithConversationID sets the store namespace. Defaults to a random UUID.
func WithConversationID(id string) Option {
	return func(e *Engine) {
		e.conversationID = id
	}
}

// WithNumContextMemories sets how many entries are retrieved per turn.
func WithNumContextMemories(n int) Option {
	return func(e *Engine) {
		e.numContextMemories = n
	}
}

// WithTemplate replaces DefaultTemplate. The text is parsed as a
// text/template over PromptData.
func WithTemplate(text string) Option {
	return func(e *Engine) {
		e.templateText = text
	}
}

// NewEngine creates the chatbot for character and seeds the semantic store
// with summaries, in order, before any turn is taken.
func NewEngine(ctx context.Context, character core.CharacterDefinition, summaries []string, completer Completer, opts ...Option) (*Engine, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	if character.Name == "" {
		return nil, errors.New("character name is required")
	}

	e := &Engine{
		character:          character,
		completer:          completer,
		numContextMemories: memory.DefaultNumContextMemories,
		templateText:       DefaultTemplate,
	}
	for _, opt := range opts {
		opt(e)
	}

	tmpl, err := parseTemplate(e.templateText)
	if err != nil {
		return nil, err
	}
	e.tmpl = tmpl

	if e.conversationID == "" {
		e.conversationID = uuid.New().String()
	}
	if e.embedder == nil {
		log.Printf("[ENGINE] No embedder configured, using bag-of-words embedder")
		e.embedder = mock.New()
	}
	if e.store == nil {
		store, err := chromem.New()
		if err != nil {
			return nil, fmt.Errorf("create store: %w", err)
		}
		e.store = store
		e.ownsStore = true
	}

	e.buffer = memory.NewBufferMemory(character.Name)
	e.retriever = memory.NewRetrieverMemory(e.store, e.embedder, e.conversationID, character.Name,
		&memory.Config{NumContextMemories: e.numContextMemories})

	// Retriever first: a failed save must not leave the turn in the buffer.
	e.memory, err = memory.NewCombinedMemory(e.retriever, e.buffer)
	if err != nil {
		return nil, err
	}

	if err := e.retriever.Seed(ctx, summaries); err != nil {
		e.Close()
		return nil, fmt.Errorf("seed rolling summaries: %w", err)
	}

	log.Printf("[ENGINE] Created chatbot for %q (conversation=%s, summaries=%d)",
		character.Name, e.conversationID, len(summaries))
	return e, nil
}

// Greet returns the character's greeting verbatim.
func (e *Engine) Greet() string {
	return e.character.Greeting
}

// Character returns the character definition.
func (e *Engine) Character() core.CharacterDefinition {
	return e.character
}

// ConversationID returns the store namespace of this conversation.
func (e *Engine) ConversationID() string {
	return e.conversationID
}

// Step produces the character's reply to input and records the turn.
func (e *Engine) Step(ctx context.Context, input string) (string, error) {
	return e.step(ctx, input, nil)
}

// StepStream is Step with incremental delivery. When the completer cannot
// stream, onChunk receives the whole response once.
func (e *Engine) StepStream(ctx context.Context, input string, onChunk func(string)) (string, error) {
	if onChunk == nil {
		onChunk = func(string) {}
	}
	return e.step(ctx, input, onChunk)
}

func (e *Engine) step(ctx context.Context, input string, onChunk func(string)) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", ErrEmptyInput
	}

	// === PHASE 1: LOAD MEMORY ===
	vars, err := e.memory.Load(ctx, input)
	if err != nil {
		return "", fmt.Errorf("load memory: %w", err)
	}

	// === PHASE 2: RENDER PROMPT ===
	prompt, err := renderPrompt(e.tmpl, PromptData{
		Name:            e.character.Name,
		LongDescription: e.character.LongDescription,
		Greeting:        e.character.Greeting,
		Context:         vars[core.ContextKey],
		ChatHistory:     vars[core.ChatHistoryKey],
		Input:           input,
	})
	if err != nil {
		return "", err
	}
	log.Printf("[ENGINE] Prompt assembled: %d chars (context=%d chars, history=%d turns)",
		len(prompt), len(vars[core.ContextKey]), e.buffer.Len())

	// === PHASE 3: COMPLETE ===
	var raw string
	if sc, ok := e.completer.(StreamingCompleter); ok && onChunk != nil {
		raw, err = sc.CompleteStream(ctx, prompt, onChunk)
	} else {
		raw, err = e.completer.Complete(ctx, prompt)
		if err == nil && onChunk != nil {
			onChunk(raw)
		}
	}
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	response := trimResponse(raw)

	// === PHASE 4: RECORD TURN ===
	if err := e.memory.Save(ctx, core.Turn{Input: input, Response: response}); err != nil {
		return "", fmt.Errorf("record turn: %w", err)
	}

	return response, nil
}

// Restore replays persisted turns into both memory channels without calling
// the completer.
func (e *Engine) Restore(ctx context.Context, turns []core.Turn) error {
	for i, turn := range turns {
		if err := e.memory.Save(ctx, turn); err != nil {
			return fmt.Errorf("restore turn %d: %w", i, err)
		}
	}
	if len(turns) > 0 {
		log.Printf("[ENGINE] Restored %d turns into conversation %s", len(turns), e.conversationID)
	}
	return nil
}

// History returns the recorded turns in order.
func (e *Engine) History() []core.Turn {
	return e.buffer.Turns()
}

// Retrieve returns the store entries most similar to query.
func (e *Engine) Retrieve(ctx context.Context, query string) ([]*memory.Entry, error) {
	return e.retriever.Retrieve(ctx, query)
}

// Close releases the store if the engine created it.
func (e *Engine) Close() error {
	if e.ownsStore {
		return e.store.Close()
	}
	return nil
}

// trimResponse drops surrounding whitespace and anything after a
// hallucinated next "Human:" line.
func trimResponse(s string) string {
	if i := strings.Index(s, "\n"+core.HumanPrefix+":"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
