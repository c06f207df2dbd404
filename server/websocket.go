package server

import (
	"context"
	"log"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/becomeliminal/nim-persona/core"
)

// Frame types.
const (
	FrameMessage  = "message"
	FrameReset    = "reset"
	FrameGreeting = "greeting"
	FrameChunk    = "chunk"
	FrameResponse = "response"
	FrameError    = "error"
)

// Frame is one WebSocket message in either direction.
type Frame struct {
	Type     string         `json:"type"`
	Session  string         `json:"session,omitempty"`
	Content  string         `json:"content,omitempty"`
	Messages []core.Message `json:"messages,omitempty"`
}

// handleWebSocket opens (or resumes) the session named by ?session= and streams
// replies. A greeting frame carrying the full state is sent first. A session
// generated for a connection without ?session= is closed with the socket;
// named sessions outlive it so clients can reconnect.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("[SERVER] WebSocket upgrade failed: %v", err)
		return nil
	}
	defer conn.Close()

	ctx := c.Request().Context()
	id, state, err := s.registry.Open(ctx, c.QueryParam("session"))
	if err != nil {
		conn.WriteJSON(Frame{Type: FrameError, Content: err.Error()})
		return nil
	}
	log.Printf("[SERVER] WebSocket connected to session %s", id)
	if c.QueryParam("session") == "" {
		defer s.closeGenerated(id)
	}

	if err := conn.WriteJSON(Frame{Type: FrameGreeting, Session: id, Content: s.cfg.Character.Greeting, Messages: state.Messages}); err != nil {
		return nil
	}

	for {
		var in Frame
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[SERVER] WebSocket read for %s: %v", id, err)
			}
			return nil
		}

		var out Frame
		switch in.Type {
		case FrameMessage:
			out = s.wsStep(ctx, conn, id, in.Content)
		case FrameReset:
			state, err := s.registry.Reset(ctx, id)
			if err != nil {
				out = Frame{Type: FrameError, Session: id, Content: err.Error()}
			} else {
				out = Frame{Type: FrameGreeting, Session: id, Content: s.cfg.Character.Greeting, Messages: state.Messages}
			}
		default:
			out = Frame{Type: FrameError, Session: id, Content: "unknown frame type: " + in.Type}
		}

		if err := conn.WriteJSON(out); err != nil {
			log.Printf("[SERVER] WebSocket write for %s: %v", id, err)
			return nil
		}
	}
}

// wsStep runs one turn, writing chunk frames as they arrive, and returns the
// final frame.
func (s *Server) wsStep(ctx context.Context, conn *websocket.Conn, id, content string) Frame {
	if strings.TrimSpace(content) == "" {
		return Frame{Type: FrameError, Session: id, Content: "input is empty"}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	state, err := s.registry.StepStream(ctx, id, content, func(chunk string) {
		if err := conn.WriteJSON(Frame{Type: FrameChunk, Session: id, Content: chunk}); err != nil {
			log.Printf("[SERVER] WebSocket chunk for %s: %v", id, err)
		}
	})
	if err != nil {
		return Frame{Type: FrameError, Session: id, Content: err.Error()}
	}
	return Frame{Type: FrameResponse, Session: id, Content: state.Messages[len(state.Messages)-1].Content}
}

// closeGenerated closes a session nobody else can address.
func (s *Server) closeGenerated(id string) {
	if err := s.registry.Close(context.Background(), id); err != nil {
		log.Printf("[SERVER] Failed to close session %s: %v", id, err)
		return
	}
	log.Printf("[SERVER] Closed session %s with its WebSocket", id)
}
