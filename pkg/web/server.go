// Package web serves the assistant's browser surface: a JSON API, live
// transcript and camera feeds, and a websocket command channel.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-assistant/pkg/camera"
	"github.com/teslashibe/go-assistant/pkg/hub"
	"github.com/teslashibe/go-assistant/pkg/protocol"
	"github.com/teslashibe/go-assistant/pkg/session"
	"github.com/teslashibe/go-assistant/pkg/tools"
	"github.com/teslashibe/go-assistant/pkg/turn"
)

// Session is the driver as seen by the UI.
type Session interface {
	ID() string
	History() []turn.Entry
	Active() bool
	Status() session.Status
	Clear()
	Restart()
	ToggleTools() bool
	InvokeTool(ctx context.Context, name string, args tools.Args) string
	Export(ctx context.Context) (string, error)
}

// ToolLister lists the visible tools.
type ToolLister interface {
	Descriptions() []tools.Tool
}

// MetricsSource reports turn latency.
type MetricsSource interface {
	Summary() turn.Summary
}

// Preview is the camera preview loop.
type Preview interface {
	Start(ctx context.Context) error
	Stop()
	Status() camera.Status
	LastFrame() []byte
}

// GoogleAuth authorizes the Google Docs export.
type GoogleAuth interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) error
	Connected() bool
	Disconnect() error
}

// Deps are the server's collaborators. Session is required; the rest
// disable their routes when nil.
type Deps struct {
	Session Session
	Tools   ToolLister
	Metrics MetricsSource
	Camera  *camera.Manager
	Preview Preview
	Google  GoogleAuth
}

// Config configures the listener.
type Config struct {
	Addr      string
	StaticDir string
}

// Server is the web surface.
type Server struct {
	app    *fiber.App
	cfg    Config
	deps   Deps
	logger *slog.Logger

	transcriptHub *hub.Hub
	cameraHub     *hub.Hub
	control       *controlHub

	// baseCtx spans Serve; work started by a request may outlive it.
	baseCtx context.Context

	stateMu    sync.Mutex
	oauthState string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds the server and its routes.
func New(cfg Config, deps Deps, opts ...Option) (*Server, error) {
	if deps.Session == nil {
		return nil, errors.New("web: session is required")
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		logger:  slog.Default(),
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")
	s.transcriptHub = hub.New("transcript", hub.WithLogger(s.logger))
	s.cameraHub = hub.New("camera", hub.WithLogger(s.logger))
	s.control = newControlHub(s.logger)

	app := fiber.New(fiber.Config{
		AppName:               "Assistant",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/history", s.handleHistory)
	api.Post("/clear", s.handleClear)
	api.Post("/restart", s.handleRestart)
	api.Get("/tools", s.handleListTools)
	api.Post("/tools/toggle", s.handleToggleTools)
	api.Post("/tools/:name", s.handleInvokeTool)
	api.Post("/export", s.handleExport)
	api.Get("/metrics", s.handleMetrics)
	api.Get("/camera/config", s.handleGetCameraConfig)
	api.Post("/camera/config", s.handleSetCameraConfig)
	api.Get("/camera/preview", s.handlePreviewStatus)
	api.Post("/camera/preview/start", s.handlePreviewStart)
	api.Post("/camera/preview/stop", s.handlePreviewStop)

	auth := app.Group("/auth/google")
	auth.Get("/", s.handleGoogleAuth)
	auth.Get("/callback", s.handleGoogleCallback)
	auth.Get("/status", s.handleGoogleStatus)
	auth.Post("/disconnect", s.handleGoogleDisconnect)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/transcript", websocket.New(s.handleTranscriptWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))
	app.Get("/ws/control", s.control.handler(s))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s, nil
}

// Run serves on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. Hubs run for the same lifetime.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.baseCtx = ctx
	go s.transcriptHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	errc := make(chan error, 1)
	go func() { errc <- s.app.Listener(ln) }()
	s.logger.Info("web surface listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	if err := s.app.Shutdown(); err != nil {
		return err
	}
	return <-errc
}

// PublishTranscript pushes a transcript snapshot to /ws/transcript.
func (s *Server) PublishTranscript(entries []turn.Entry) {
	msg, err := s.transcriptMessage(entries)
	if err != nil {
		s.logger.Warn("encode transcript", "error", err)
		return
	}
	s.transcriptHub.Broadcast(msg)
}

// PublishFrame pushes a JPEG frame to /ws/camera.
func (s *Server) PublishFrame(jpeg []byte) {
	s.cameraHub.BroadcastFrame(jpeg)
}

func (s *Server) transcriptMessage(entries []turn.Entry) (hub.Message, error) {
	msg, err := protocol.NewTranscriptMessage(s.deps.Session.ID(), s.deps.Session.Active(), entries)
	if err != nil {
		return hub.Message{}, err
	}
	return hub.Encoded(msg)
}

// Clients returns the connection count per feed.
func (s *Server) Clients() map[string]int {
	return map[string]int{
		"transcript": s.transcriptHub.ClientCount(),
		"camera":     s.cameraHub.ClientCount(),
		"control":    s.control.count(),
	}
}

func (s *Server) handleTranscriptWS(c *websocket.Conn) {
	msg, err := s.transcriptMessage(s.deps.Session.History())
	if err != nil {
		s.transcriptHub.Serve(c)
		return
	}
	s.transcriptHub.Serve(c, msg)
}

func (s *Server) handleCameraWS(c *websocket.Conn) {
	var initial []hub.Message
	if s.deps.Preview != nil {
		if frame := s.deps.Preview.LastFrame(); len(frame) > 0 {
			initial = append(initial, hub.FrameMessage(frame))
		}
	}
	s.cameraHub.Serve(c, initial...)
}
