// Package tui is the terminal chat widget: a transcript viewport, a text
// input and a spinner shown while the character is thinking.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/becomeliminal/nim-persona/core"
	"github.com/becomeliminal/nim-persona/session"
)

// Commands typed into the input.
const (
	ResetCommand = "/reset"
	QuitCommand  = "/quit"
)

// Config configures the widget.
type Config struct {
	// Character labels the assistant's lines.
	Character core.CharacterDefinition

	// NewBot builds a fresh chatbot. It is called once at start and again
	// on every reset.
	NewBot func(ctx context.Context) (session.Bot, error)

	// Timeout bounds one turn (default: 120s).
	Timeout time.Duration

	// Style is a glamour standard style name (default: "dark").
	Style string
}

type (
	stepDoneMsg struct {
		state session.State
		err   error
	}

	resetDoneMsg struct {
		bot session.Bot
		err error
	}
)

// Model is the bubbletea model of the chat widget.
type Model struct {
	cfg     Config
	bot     session.Bot
	surface *session.Surface
	state   session.State

	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	renderer  *glamour.TermRenderer

	ready    bool
	thinking bool
	pending  string
	err      error
}

// New builds the first chatbot and returns the initial model, showing the
// greeting as the first assistant message.
func New(ctx context.Context, cfg Config) (Model, error) {
	if cfg.NewBot == nil {
		return Model{}, errors.New("NewBot is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Style == "" {
		cfg.Style = "dark"
	}

	bot, err := cfg.NewBot(ctx)
	if err != nil {
		return Model{}, fmt.Errorf("create chatbot: %w", err)
	}

	ti := textinput.New()
	ti.Placeholder = "Say something... (Enter to send, /reset to start over, Esc to exit)"
	ti.Focus()
	ti.CharLimit = 4000

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	surface := session.NewSurface(bot)
	return Model{
		cfg:       cfg,
		bot:       bot,
		surface:   surface,
		state:     surface.Start(),
		textinput: ti,
		spinner:   sp,
	}, nil
}

// State returns the rendered conversation.
func (m Model) State() session.State {
	return m.state
}

// Thinking reports whether a turn is in flight.
func (m Model) Thinking() bool {
	return m.thinking
}

// Err returns the last turn or reset error.
func (m Model) Err() error {
	return m.err
}

// Init starts the cursor blink and spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

// Update handles input, window resizes and finished turns.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if !m.thinking {
				return m.handleSubmit()
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			if m.ready {
				m.viewport, vpCmd = m.viewport.Update(msg)
			}
			return m, vpCmd
		}
		if !m.thinking {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}
		return m, tiCmd

	case tea.WindowSizeMsg:
		headerHeight, inputHeight := 2, 3
		height := max(msg.Height-headerHeight-inputHeight, 0)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.textinput.Width = max(msg.Width-4, 0)

		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.cfg.Style),
			glamour.WithWordWrap(max(msg.Width-4, 0)),
		)
		if err != nil {
			log.Printf("[TUI] Markdown renderer unavailable: %v", err)
		}
		m.renderer = renderer
		m.refresh()

	case spinner.TickMsg:
		if m.thinking {
			var spCmd tea.Cmd
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}
		return m, nil

	case stepDoneMsg:
		m.thinking = false
		m.pending = ""
		m.err = msg.err
		if msg.err == nil {
			m.state = msg.state
		}
		m.refresh()
		return m, nil

	case resetDoneMsg:
		m.thinking = false
		m.err = msg.err
		if msg.err == nil {
			if err := m.bot.Close(); err != nil {
				log.Printf("[TUI] Failed to close chatbot: %v", err)
			}
			m.bot = msg.bot
			m.surface = session.NewSurface(msg.bot)
			m.state = m.surface.Start()
		}
		m.refresh()
		return m, nil
	}

	m.textinput, tiCmd = m.textinput.Update(msg)
	if m.ready {
		m.viewport, vpCmd = m.viewport.Update(msg)
	}
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}
	m.textinput.Reset()
	m.err = nil

	switch input {
	case QuitCommand:
		return m, tea.Quit
	case ResetCommand:
		m.thinking = true
		return m, tea.Batch(m.spinner.Tick, m.resetCmd())
	}

	m.thinking = true
	m.pending = input
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, m.stepCmd(input))
}

func (m Model) stepCmd(input string) tea.Cmd {
	surface, state, timeout := m.surface, m.state, m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		next, err := surface.Step(ctx, state, input)
		return stepDoneMsg{state: next, err: err}
	}
}

func (m Model) resetCmd() tea.Cmd {
	newBot := m.cfg.NewBot
	return func() tea.Msg {
		bot, err := newBot(context.Background())
		return resetDoneMsg{bot: bot, err: err}
	}
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) label(role core.Role) string {
	if role == core.RoleUser {
		return core.HumanPrefix
	}
	return m.cfg.Character.Name
}

func (m Model) renderHistory() string {
	var sb strings.Builder
	for _, msg := range m.state.Messages {
		sb.WriteString(fmt.Sprintf("**%s:** %s\n\n", m.label(msg.Role), msg.Content))
	}
	if m.pending != "" {
		sb.WriteString(fmt.Sprintf("**%s:** %s\n\n", core.HumanPrefix, m.pending))
	}

	md := sb.String()
	if m.renderer == nil {
		return md
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// View renders the widget.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	status := "Enter to send, /reset to start over, Esc to exit"
	switch {
	case m.thinking:
		status = fmt.Sprintf("%s %s is thinking...", m.spinner.View(), m.cfg.Character.Name)
	case m.err != nil:
		status = "Error: " + m.err.Error()
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s",
		"Chat with "+m.cfg.Character.Name,
		m.viewport.View(),
		status,
		m.textinput.View(),
	)
}

// Run starts the widget in the alternate screen and blocks until it exits.
func Run(ctx context.Context, cfg Config) error {
	model, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if m, ok := final.(Model); ok && m.bot != nil {
		if cerr := m.bot.Close(); cerr != nil {
			log.Printf("[TUI] Failed to close chatbot: %v", cerr)
		}
	}
	return err
}
