package tui_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/becomeliminal/nim-persona/core"
	"github.com/becomeliminal/nim-persona/session"
	"github.com/becomeliminal/nim-persona/tui"
)

type fakeBot struct {
	greeting string
	fail     bool
	closed   bool
}

func (b *fakeBot) Greet() string { return b.greeting }

func (b *fakeBot) Step(ctx context.Context, input string) (string, error) {
	if b.fail {
		return "", errors.New("model offline")
	}
	return "You said " + input, nil
}

func (b *fakeBot) StepStream(ctx context.Context, input string, onChunk func(string)) (string, error) {
	resp, err := b.Step(ctx, input)
	if err == nil {
		onChunk(resp)
	}
	return resp, err
}

func (b *fakeBot) Restore(ctx context.Context, turns []core.Turn) error { return nil }

func (b *fakeBot) Close() error {
	b.closed = true
	return nil
}

func newModel(t *testing.T, bots ...*fakeBot) tui.Model {
	t.Helper()
	next := 0
	m, err := tui.New(context.Background(), tui.Config{
		Character: core.CharacterDefinition{Name: "Alice", Greeting: "Hi there!"},
		NewBot: func(ctx context.Context) (session.Bot, error) {
			b := bots[next]
			next++
			return b, nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
}

func update(t *testing.T, m tui.Model, msg tea.Msg) tui.Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(tui.Model)
}

// submit types input, presses Enter and feeds the finished command result
// back into the model.
func submit(t *testing.T, m tui.Model, input string) tui.Model {
	t.Helper()
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(input)})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(tui.Model)
	if !m.Thinking() {
		t.Fatal("expected model to be thinking after submit")
	}
	for _, msg := range drain(cmd) {
		m = update(t, m, msg)
	}
	return m
}

// drain runs cmd and returns every message it produces, skipping spinner ticks.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	if _, ok := msg.(spinner.TickMsg); ok {
		return nil
	}
	return []tea.Msg{msg}
}

func TestModel_StartsWithGreeting(t *testing.T) {
	m := newModel(t, &fakeBot{greeting: "Hi there!"})

	msgs := m.State().Messages
	if len(msgs) != 1 || msgs[0] != core.NewAssistantMessage("Hi there!") {
		t.Fatalf("unexpected initial state: %+v", msgs)
	}
	if !strings.Contains(m.View(), "Chat with Alice") {
		t.Errorf("view missing title:\n%s", m.View())
	}
}

func TestModel_Step(t *testing.T) {
	m := newModel(t, &fakeBot{greeting: "Hi there!"})
	m = submit(t, m, "Hello")

	if m.Thinking() {
		t.Error("expected thinking to end after the turn")
	}
	if m.Err() != nil {
		t.Fatalf("unexpected error: %v", m.Err())
	}
	want := []core.Message{
		core.NewAssistantMessage("Hi there!"),
		core.NewUserMessage("Hello"),
		core.NewAssistantMessage("You said Hello"),
	}
	got := m.State().Messages
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestModel_StepErrorKeepsState(t *testing.T) {
	m := newModel(t, &fakeBot{greeting: "Hi there!", fail: true})
	m = submit(t, m, "Hello")

	if m.Err() == nil {
		t.Fatal("expected error")
	}
	if len(m.State().Messages) != 1 {
		t.Errorf("expected state unchanged, got %+v", m.State().Messages)
	}
	if !strings.Contains(m.View(), "model offline") {
		t.Errorf("view missing error:\n%s", m.View())
	}
}

func TestModel_Reset(t *testing.T) {
	first := &fakeBot{greeting: "Hi there!"}
	second := &fakeBot{greeting: "Welcome back!"}
	m := newModel(t, first, second)

	m = submit(t, m, "Hello")
	m = submit(t, m, tui.ResetCommand)

	if !first.closed {
		t.Error("expected the previous chatbot to be closed")
	}
	msgs := m.State().Messages
	if len(msgs) != 1 || msgs[0].Content != "Welcome back!" {
		t.Errorf("expected a fresh conversation, got %+v", msgs)
	}
}

func TestModel_BlankInputIgnored(t *testing.T) {
	m := newModel(t, &fakeBot{greeting: "Hi there!"})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("   ")})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(tui.Model)
	if cmd != nil || m.Thinking() {
		t.Error("expected blank input to be ignored")
	}
}

func TestModel_Quit(t *testing.T) {
	m := newModel(t, &fakeBot{greeting: "Hi there!"})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestModel_TinyWindow(t *testing.T) {
	m := newModel(t, &fakeBot{greeting: "Hi there!"})
	m = update(t, m, tea.WindowSizeMsg{Width: 3, Height: 2})
	m = submit(t, m, "Hello")

	if len(m.State().Messages) != 3 {
		t.Fatalf("expected the turn to complete, got %+v", m.State().Messages)
	}
	if !strings.Contains(m.View(), "Chat with Alice") {
		t.Errorf("view missing title:\n%s", m.View())
	}
}

func TestNew_RequiresFactory(t *testing.T) {
	if _, err := tui.New(context.Background(), tui.Config{}); err == nil {
		t.Error("expected error without NewBot")
	}
}
