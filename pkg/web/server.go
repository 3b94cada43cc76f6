// Package web provides the local control server for go-callassist: a JSON
// API over the session engine, Prometheus metrics and a websocket event
// stream.
package web

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-callassist/pkg/hub"
	"github.com/teslashibe/go-callassist/pkg/persona"
	"github.com/teslashibe/go-callassist/pkg/session"
	"github.com/teslashibe/go-callassist/pkg/transcript"
)

// Controller is the part of the session engine the server drives.
type Controller interface {
	Start(ctx context.Context) (string, error)
	StartWith(ctx context.Context, p persona.Persona) (string, error)
	EndSession(ctx context.Context, shouldSummarize bool) (*session.Outcome, error)
	Interrupt() (int, error)
	SetMuted(muted bool) error
	Snapshot() session.Snapshot
	Transcript() []transcript.Utterance
	LastOutcome() *session.Outcome
}

var _ Controller = (*session.Engine)(nil)

// Server is the control server.
type Server struct {
	app      *fiber.App
	engine   Controller
	events   *hub.Hub
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer exposes g on /metrics. Without it the default registry is
// served.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a control server for engine. Events published on
// events are streamed to /ws/events subscribers.
func NewServer(engine Controller, events *hub.Hub, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		events:   events,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")

	app := fiber.New(fiber.Config{
		AppName:               "callassist",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/transcript", s.handleTranscript)
	api.Get("/outcome", s.handleOutcome)
	api.Post("/session/start", s.handleStart)
	api.Post("/session/end", s.handleEnd)
	api.Post("/session/interrupt", s.handleInterrupt)
	api.Post("/session/mute", s.handleMute)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("control server listening", "addr", addr)
	if err := s.app.Listen(addr); err != nil {
		return fmt.Errorf("web: listen %s: %w", addr, err)
	}
	return nil
}

// ListenPort serves on the given local port.
func (s *Server) ListenPort(port int) error {
	return s.Listen(fmt.Sprintf(":%d", port))
}

// Shutdown stops the server, waiting for in-flight requests until ctx is
// done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}
