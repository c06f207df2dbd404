// Package server exposes chat sessions over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/becomeliminal/nim-persona/core"
	"github.com/becomeliminal/nim-persona/engine"
	"github.com/becomeliminal/nim-persona/session"
)

// Config configures the server.
type Config struct {
	// Registry holds the chat sessions. Required.
	Registry *session.Registry

	// Character is reported by /health and session responses.
	Character core.CharacterDefinition

	// RequestTimeout bounds one turn (default: 120s).
	RequestTimeout time.Duration

	// CheckOrigin overrides the WebSocket origin check. By default every
	// origin is accepted.
	CheckOrigin func(r *http.Request) bool
}

// Server is the HTTP and WebSocket surface.
type Server struct {
	echo     *echo.Echo
	registry *session.Registry
	cfg      Config
	upgrader websocket.Upgrader
}

// New creates a server with all routes registered.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("session registry is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger(), middleware.Recover(), middleware.CORS())

	s := &Server{
		echo:     e,
		registry: cfg.Registry,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.health)
	s.echo.GET("/ws", s.handleWebSocket)

	api := s.echo.Group("/api")
	api.POST("/sessions", s.openSession)
	api.GET("/sessions/:id", s.getSession)
	api.POST("/sessions/:id/messages", s.sendMessage)
	api.POST("/sessions/:id/reset", s.resetSession)
	api.DELETE("/sessions/:id", s.closeSession)
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run listens on addr until Shutdown is called.
func (s *Server) Run(addr string) error {
	log.Printf("[SERVER] Listening on %s", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// httpError maps service errors to HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrEmptyInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	default:
		log.Printf("[SERVER] Request failed: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
