package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/becomeliminal/nim-persona/core"
	"github.com/becomeliminal/nim-persona/engine"
)

// OpenSessionRequest optionally names the session to open.
type OpenSessionRequest struct {
	ID string `json:"id"`
}

// MessageRequest carries one human message.
type MessageRequest struct {
	Content string `json:"content"`
}

// SessionResponse is the state of a session.
type SessionResponse struct {
	ID        string         `json:"id"`
	Character string         `json:"character"`
	Response  string         `json:"response,omitempty"`
	Messages  []core.Message `json:"messages"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"character": s.cfg.Character.Name,
		"sessions":  len(s.registry.IDs()),
	})
}

func (s *Server) respond(c echo.Context, status int, id string, messages []core.Message, response string) error {
	if messages == nil {
		messages = []core.Message{}
	}
	return c.JSON(status, SessionResponse{
		ID:        id,
		Character: s.cfg.Character.Name,
		Response:  response,
		Messages:  messages,
	})
}

func (s *Server) openSession(c echo.Context) error {
	req := new(OpenSessionRequest)
	if c.Request().ContentLength > 0 {
		if err := c.Bind(req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	id, state, err := s.registry.Open(c.Request().Context(), req.ID)
	if err != nil {
		return httpError(err)
	}
	return s.respond(c, http.StatusCreated, id, state.Messages, "")
}

func (s *Server) getSession(c echo.Context) error {
	id := c.Param("id")
	state, err := s.registry.State(id)
	if err != nil {
		return httpError(err)
	}
	return s.respond(c, http.StatusOK, id, state.Messages, "")
}

func (s *Server) sendMessage(c echo.Context) error {
	req := new(MessageRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Content) == "" {
		return httpError(engine.ErrEmptyInput)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.cfg.RequestTimeout)
	defer cancel()

	id := c.Param("id")
	state, err := s.registry.Step(ctx, id, req.Content)
	if err != nil {
		return httpError(err)
	}
	return s.respond(c, http.StatusOK, id, state.Messages, state.Messages[len(state.Messages)-1].Content)
}

func (s *Server) resetSession(c echo.Context) error {
	id := c.Param("id")
	state, err := s.registry.Reset(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return s.respond(c, http.StatusOK, id, state.Messages, "")
}

func (s *Server) closeSession(c echo.Context) error {
	if err := s.registry.Close(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
