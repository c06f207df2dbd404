package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/becomeliminal/nim-persona/core"
)

// ErrSessionNotFound is returned for an unknown session ID.
var ErrSessionNotFound = errors.New("session not found")

// Factory builds a fresh chatbot for a session. The session ID should be used
// as the conversation ID so sessions sharing a store stay isolated.
type Factory func(ctx context.Context, sessionID string) (Bot, error)

// Journal persists finished turns. journal.SQLiteJournal implements it.
type Journal interface {
	Append(ctx context.Context, sessionID string, turn core.Turn) error
	Turns(ctx context.Context, sessionID string) ([]core.Turn, error)
	Delete(ctx context.Context, sessionID string) error
}

type entry struct {
	mu      sync.Mutex // serializes turns of one conversation
	bot     Bot
	surface *Surface
	state   State
	closed  bool
}

// Registry holds the live sessions of a multi-user surface.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	factory  Factory
	journal  Journal
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithJournal persists every finished turn and restores sessions from it on
// Open.
func WithJournal(j Journal) RegistryOption {
	return func(r *Registry) {
		r.journal = j
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*entry),
		factory:  factory,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open returns the session with the given ID, creating it if needed. An
// empty ID creates a session with a random ID. A new session with turns in
// the journal is restored from them.
func (r *Registry) Open(ctx context.Context, id string) (string, State, error) {
	if id == "" {
		id = uuid.New().String()
	}

	if e, ok := r.lookup(id); ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		return id, e.state, nil
	}

	e, err := r.build(ctx, id, true)
	if err != nil {
		return "", State{}, err
	}

	r.mu.Lock()
	if existing, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		e.bot.Close()
		existing.mu.Lock()
		defer existing.mu.Unlock()
		return id, existing.state, nil
	}
	r.sessions[id] = e
	r.mu.Unlock()

	log.Printf("[SESSION] Opened %s (%d messages)", id, len(e.state.Messages))
	return id, e.state, nil
}

func (r *Registry) build(ctx context.Context, id string, restore bool) (*entry, error) {
	bot, err := r.factory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("create chatbot: %w", err)
	}
	e := &entry{bot: bot, surface: NewSurface(bot)}
	e.state = e.surface.Start()

	if restore && r.journal != nil {
		turns, err := r.journal.Turns(ctx, id)
		if err != nil {
			bot.Close()
			return nil, fmt.Errorf("read journal: %w", err)
		}
		if err := bot.Restore(ctx, turns); err != nil {
			bot.Close()
			return nil, err
		}
		e.state = e.surface.replay(turns)
	}
	return e, nil
}

func (r *Registry) lookup(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	return e, ok
}

// acquire returns the locked entry for id. The caller must unlock it.
func (r *Registry) acquire(id string) (*entry, error) {
	e, ok := r.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

// State returns the current state of a session.
func (r *Registry) State(id string) (State, error) {
	e, err := r.acquire(id)
	if err != nil {
		return State{}, err
	}
	defer e.mu.Unlock()
	return e.state, nil
}

// Step runs one turn of a session and returns its new state.
func (r *Registry) Step(ctx context.Context, id, input string) (State, error) {
	return r.step(ctx, id, input, nil)
}

// StepStream is Step with the response delivered incrementally to onChunk.
func (r *Registry) StepStream(ctx context.Context, id, input string, onChunk func(string)) (State, error) {
	if onChunk == nil {
		onChunk = func(string) {}
	}
	return r.step(ctx, id, input, onChunk)
}

func (r *Registry) step(ctx context.Context, id, input string, onChunk func(string)) (State, error) {
	e, err := r.acquire(id)
	if err != nil {
		return State{}, err
	}
	defer e.mu.Unlock()

	var next State
	if onChunk != nil {
		next, err = e.surface.StepStream(ctx, e.state, input, onChunk)
	} else {
		next, err = e.surface.Step(ctx, e.state, input)
	}
	if err != nil {
		return e.state, err
	}
	if len(next.Messages) == len(e.state.Messages) {
		return e.state, nil
	}
	e.state = next

	if r.journal != nil {
		msgs := next.Messages[len(next.Messages)-2:]
		turn := core.Turn{Input: msgs[0].Content, Response: msgs[1].Content}
		if err := r.journal.Append(ctx, id, turn); err != nil {
			log.Printf("[SESSION] Failed to journal turn for %s: %v", id, err)
		}
	}
	return e.state, nil
}

// Reset replaces the session's chatbot with a fresh one, dropping both
// memory channels and the journal, and returns the initial state.
func (r *Registry) Reset(ctx context.Context, id string) (State, error) {
	e, err := r.acquire(id)
	if err != nil {
		return State{}, err
	}
	defer e.mu.Unlock()

	fresh, err := r.build(ctx, id, false)
	if err != nil {
		return e.state, err
	}
	if r.journal != nil {
		if err := r.journal.Delete(ctx, id); err != nil {
			fresh.bot.Close()
			return e.state, fmt.Errorf("clear journal: %w", err)
		}
	}

	if err := e.bot.Close(); err != nil {
		log.Printf("[SESSION] Failed to close chatbot for %s: %v", id, err)
	}
	e.bot, e.surface, e.state = fresh.bot, fresh.surface, fresh.state

	log.Printf("[SESSION] Reset %s", id)
	return e.state, nil
}

// Close ends a session and deletes its journal.
func (r *Registry) Close(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true

	if r.journal != nil {
		if err := r.journal.Delete(ctx, id); err != nil {
			return fmt.Errorf("clear journal: %w", err)
		}
	}
	return e.bot.Close()
}

// IDs returns the live session IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown closes every chatbot. Journals are kept so sessions can be
// restored by the next process.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for id, e := range sessions {
		e.mu.Lock()
		e.closed = true
		if err := e.bot.Close(); err != nil {
			log.Printf("[SESSION] Failed to close chatbot for %s: %v", id, err)
		}
		e.mu.Unlock()
	}
}
