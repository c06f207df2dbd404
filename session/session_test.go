package session_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/becomeliminal/nim-persona/core"
	"github.com/becomeliminal/nim-persona/engine"
	"github.com/becomeliminal/nim-persona/memory/embedder/mock"
	"github.com/becomeliminal/nim-persona/session"
)

var alice = core.CharacterDefinition{
	Name:            "Alice",
	LongDescription: "I am Alice.",
	Greeting:        "Hello! Who are you?",
}

// echoCompleter replies with the last human line of the prompt.
type echoCompleter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *echoCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	i := strings.LastIndex(prompt, "Human: ")
	line := strings.SplitN(prompt[i+len("Human: "):], "\n", 2)[0]
	return "You said " + line, nil
}

func newBot(t *testing.T, c engine.Completer, id string) *engine.Engine {
	t.Helper()
	e, err := engine.NewEngine(context.Background(), alice, []string{"Alice is curious."}, c,
		engine.WithEmbedder(mock.New()), engine.WithConversationID(id))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func factory(t *testing.T, c engine.Completer) session.Factory {
	return func(ctx context.Context, id string) (session.Bot, error) {
		return newBot(t, c, id), nil
	}
}

func TestSurface_StartAndStep(t *testing.T) {
	ctx := context.Background()
	s := session.NewSurface(newBot(t, &echoCompleter{}, "c1"))

	state := s.Start()
	if len(state.Messages) != 1 || state.Messages[0] != core.NewAssistantMessage(alice.Greeting) {
		t.Fatalf("Start() = %+v", state)
	}

	next, err := s.Step(ctx, state, "Hello")
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(state.Messages) != 1 {
		t.Errorf("Step modified the caller's state")
	}
	want := []core.Message{
		core.NewAssistantMessage(alice.Greeting),
		core.NewUserMessage("Hello"),
		core.NewAssistantMessage("You said Hello"),
	}
	if len(next.Messages) != len(want) {
		t.Fatalf("got %d messages, want %d", len(next.Messages), len(want))
	}
	for i := range want {
		if next.Messages[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, next.Messages[i], want[i])
		}
	}
}

func TestSurface_EmptyInputLeavesStateUnchanged(t *testing.T) {
	c := &echoCompleter{}
	s := session.NewSurface(newBot(t, c, "c1"))
	state := s.Start()

	next, err := s.Step(context.Background(), state, "  ")
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(next.Messages) != 1 || c.calls != 0 {
		t.Errorf("messages=%d calls=%d", len(next.Messages), c.calls)
	}
}

func TestSurface_ErrorReturnsOriginalState(t *testing.T) {
	boom := errors.New("rate limited")
	s := session.NewSurface(newBot(t, &echoCompleter{err: boom}, "c1"))
	state := s.Start()

	next, err := s.Step(context.Background(), state, "Hello")
	if !errors.Is(err, boom) {
		t.Fatalf("expected completion error, got %v", err)
	}
	if len(next.Messages) != 1 {
		t.Errorf("state changed on error: %+v", next)
	}
}

func TestSurface_StepStream(t *testing.T) {
	s := session.NewSurface(newBot(t, &echoCompleter{}, "c1"))

	var streamed string
	next, err := s.StepStream(context.Background(), s.Start(), "Hi", func(c string) { streamed += c })
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if streamed != "You said Hi" || next.Messages[2].Content != streamed {
		t.Errorf("streamed=%q state=%+v", streamed, next)
	}
}

// memJournal is an in-memory session.Journal.
type memJournal struct {
	mu    sync.Mutex
	turns map[string][]core.Turn
}

func newMemJournal() *memJournal {
	return &memJournal{turns: make(map[string][]core.Turn)}
}

func (j *memJournal) Append(ctx context.Context, id string, turn core.Turn) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.turns[id] = append(j.turns[id], turn)
	return nil
}

func (j *memJournal) Turns(ctx context.Context, id string) ([]core.Turn, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]core.Turn(nil), j.turns[id]...), nil
}

func (j *memJournal) Delete(ctx context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.turns, id)
	return nil
}

func TestRegistry_Lifecycle(t *testing.T) {
	ctx := context.Background()
	r := session.NewRegistry(factory(t, &echoCompleter{}))
	defer r.Shutdown()

	id, state, err := r.Open(ctx, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if id == "" || len(state.Messages) != 1 {
		t.Fatalf("id=%q state=%+v", id, state)
	}

	state, err = r.Step(ctx, id, "Hello")
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(state.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(state.Messages))
	}

	again, reopened, err := r.Open(ctx, id)
	if err != nil || again != id || len(reopened.Messages) != 3 {
		t.Fatalf("reopen: id=%q messages=%d err=%v", again, len(reopened.Messages), err)
	}

	state, err = r.Reset(ctx, id)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(state.Messages) != 1 {
		t.Errorf("reset state has %d messages", len(state.Messages))
	}

	if err := r.Close(ctx, id); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := r.State(id); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := r.Step(ctx, id, "Hello"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRegistry_JournalRestore(t *testing.T) {
	ctx := context.Background()
	j := newMemJournal()
	c := &echoCompleter{}

	first := session.NewRegistry(factory(t, c), session.WithJournal(j))
	if _, _, err := first.Open(ctx, "s1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := first.Step(ctx, "s1", "Hello"); err != nil {
		t.Fatalf("step: %v", err)
	}
	first.Shutdown()

	second := session.NewRegistry(factory(t, c), session.WithJournal(j))
	defer second.Shutdown()
	_, state, err := second.Open(ctx, "s1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(state.Messages) != 3 || state.Messages[2].Content != "You said Hello" {
		t.Fatalf("restored state = %+v", state)
	}
	if c.calls != 1 {
		t.Errorf("restore called the completer: %d calls", c.calls)
	}

	if _, err := second.Reset(ctx, "s1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if turns, _ := j.Turns(ctx, "s1"); len(turns) != 0 {
		t.Errorf("journal kept %d turns after reset", len(turns))
	}
}

func TestRegistry_ConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	r := session.NewRegistry(factory(t, &echoCompleter{}))
	defer r.Shutdown()

	const n = 4
	var wg sync.WaitGroup
	errs := make(chan error, n*3)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s%d", i)
		if _, _, err := r.Open(ctx, id); err != nil {
			t.Fatalf("open: %v", err)
		}
		for k := 0; k < 3; k++ {
			wg.Add(1)
			go func(k int) {
				defer wg.Done()
				if _, err := r.Step(ctx, id, fmt.Sprintf("message %d", k)); err != nil {
					errs <- err
				}
			}(k)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("step: %v", err)
	}

	if ids := r.IDs(); len(ids) != n {
		t.Fatalf("IDs() = %q", ids)
	}
	for _, id := range r.IDs() {
		state, err := r.State(id)
		if err != nil {
			t.Fatalf("state: %v", err)
		}
		if len(state.Messages) != 7 {
			t.Errorf("%s has %d messages, want 7", id, len(state.Messages))
		}
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	boom := errors.New("no model")
	r := session.NewRegistry(func(ctx context.Context, id string) (session.Bot, error) {
		return nil, boom
	})
	if _, _, err := r.Open(context.Background(), "s1"); !errors.Is(err, boom) {
		t.Fatalf("expected factory error, got %v", err)
	}
}
