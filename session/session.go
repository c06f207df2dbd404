// Package session drives chatbots from a chat surface.
//
// Surface is the single-conversation loop: the caller owns the State and
// gets a new one back from every Step. Registry holds many conversations
// for multi-user surfaces and keeps the turns of each one sequential.
package session

import (
	"context"
	"strings"

	"github.com/becomeliminal/nim-persona/core"
)

// Bot is the chatbot a surface talks to. *engine.Engine implements it.
type Bot interface {
	Greet() string
	Step(ctx context.Context, input string) (string, error)
	StepStream(ctx context.Context, input string, onChunk func(string)) (string, error)
	Restore(ctx context.Context, turns []core.Turn) error
	Close() error
}

// State is the rendered conversation as shown by a chat surface.
type State struct {
	Messages []core.Message `json:"messages"`
}

// with returns a copy of s with msgs appended. s is never modified.
func (s State) with(msgs ...core.Message) State {
	out := make([]core.Message, 0, len(s.Messages)+len(msgs))
	out = append(out, s.Messages...)
	out = append(out, msgs...)
	return State{Messages: out}
}

// Surface runs the greet-then-step loop for one chatbot.
type Surface struct {
	bot Bot
}

// NewSurface creates a Surface for bot.
func NewSurface(bot Bot) *Surface {
	return &Surface{bot: bot}
}

// Start returns the initial state: the greeting as the first assistant
// message.
func (s *Surface) Start() State {
	return State{}.with(core.NewAssistantMessage(s.bot.Greet()))
}

// Step sends input to the chatbot and returns state with the user and
// assistant messages appended. Blank input returns state unchanged. On error
// the original state is returned.
func (s *Surface) Step(ctx context.Context, state State, input string) (State, error) {
	return s.step(ctx, state, input, nil)
}

// StepStream is Step with the response delivered incrementally to onChunk.
func (s *Surface) StepStream(ctx context.Context, state State, input string, onChunk func(string)) (State, error) {
	if onChunk == nil {
		onChunk = func(string) {}
	}
	return s.step(ctx, state, input, onChunk)
}

func (s *Surface) step(ctx context.Context, state State, input string, onChunk func(string)) (State, error) {
	if strings.TrimSpace(input) == "" {
		return state, nil
	}

	var (
		response string
		err      error
	)
	if onChunk != nil {
		response, err = s.bot.StepStream(ctx, input, onChunk)
	} else {
		response, err = s.bot.Step(ctx, input)
	}
	if err != nil {
		return state, err
	}

	return state.with(core.NewUserMessage(input), core.NewAssistantMessage(response)), nil
}

// replay rebuilds the state of restored turns without calling the bot.
func (s *Surface) replay(turns []core.Turn) State {
	state := s.Start()
	for _, t := range turns {
		state = state.with(core.NewUserMessage(t.Input), core.NewAssistantMessage(t.Response))
	}
	return state
}
