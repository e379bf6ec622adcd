// Package app assembles the assistant from configuration and runs it: the
// turn loop, the web surface and the camera preview share one lifetime.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-assistant/internal/config"
	"github.com/teslashibe/go-assistant/pkg/camera"
	"github.com/teslashibe/go-assistant/pkg/export"
	"github.com/teslashibe/go-assistant/pkg/inference"
	"github.com/teslashibe/go-assistant/pkg/notify"
	"github.com/teslashibe/go-assistant/pkg/session"
	"github.com/teslashibe/go-assistant/pkg/tools"
	"github.com/teslashibe/go-assistant/pkg/tts"
	"github.com/teslashibe/go-assistant/pkg/turn"
	"github.com/teslashibe/go-assistant/pkg/web"
)

// App owns every component of a running assistant.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	inject injected

	notifier  *notify.Desktop
	reminders *tools.Reminders
	registry  *tools.Registry

	llm       inference.Provider
	vision    inference.Provider
	primary   tts.Provider
	secondary tts.Provider

	pipeline *turn.Pipeline
	driver   *session.Driver
	server   *web.Server

	camera  *camera.Manager
	preview *camera.Preview
	google  *export.GoogleDocs

	closers []io.Closer
}

// injected holds components supplied through options instead of being
// built from configuration.
type injected struct {
	recorder    turn.Recorder
	transcriber turn.Transcriber
	llm         inference.Provider
	primary     tts.Provider
	secondary   tts.Provider
	player      tts.Player
	noPlayer    bool
	camera      camera.Source
	listener    net.Listener
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithRecorder replaces the microphone.
func WithRecorder(r turn.Recorder) Option {
	return func(a *App) { a.inject.recorder = r }
}

// WithTranscriber replaces Whisper.
func WithTranscriber(t turn.Transcriber) Option {
	return func(a *App) { a.inject.transcriber = t }
}

// WithLLM replaces the response and vision model.
func WithLLM(p inference.Provider) Option {
	return func(a *App) { a.inject.llm = p }
}

// WithVoices replaces the primary and backup speech providers. secondary
// may be nil.
func WithVoices(primary, secondary tts.Provider) Option {
	return func(a *App) { a.inject.primary, a.inject.secondary = primary, secondary }
}

// WithPlayer replaces the audio player. A nil player saves speech without
// playing it.
func WithPlayer(p tts.Player) Option {
	return func(a *App) { a.inject.player, a.inject.noPlayer = p, p == nil }
}

// WithCameraSource replaces the webcam.
func WithCameraSource(s camera.Source) Option {
	return func(a *App) { a.inject.camera = s }
}

// WithListener serves the web surface on ln instead of the configured
// address.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.inject.listener = ln }
}

// New creates an app. Call Init before Run.
func New(cfg *config.Config, opts ...Option) *App {
	a := &App{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init builds every component. Optional components that fail to start
// (camera, Google Docs, primary voice) are logged and left out.
func (a *App) Init(ctx context.Context) error {
	a.notifier = notify.New(a.cfg.Notify.Enabled)
	a.reminders = tools.NewReminders(a.notifier)

	if err := a.initModels(ctx); err != nil {
		return fmt.Errorf("models: %w", err)
	}
	a.initCamera()
	if err := a.initTools(); err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	if err := a.initPipeline(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	a.initSession()
	if err := a.initWeb(); err != nil {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}

// Run serves until ctx is done or a component fails. The turn loop pauses
// when the session ends and resumes after a clear or restart.
func (a *App) Run(ctx context.Context) error {
	if a.driver == nil {
		return errors.New("app: Init was not called")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if ln := a.inject.listener; ln != nil {
			return a.server.Serve(ctx, ln)
		}
		return a.server.Run(ctx)
	})

	g.Go(func() error {
		a.runSession(ctx)
		return nil
	})

	if a.preview != nil {
		g.Go(func() error {
			if err := a.preview.Start(ctx); err != nil {
				a.logger.Warn("camera preview did not start", "error", err)
				return nil
			}
			<-ctx.Done()
			a.preview.Stop()
			return nil
		})
	}

	a.logger.Info("assistant ready", "addr", a.cfg.UI.Addr(), "session_id", a.driver.ID())
	return g.Wait()
}

func (a *App) runSession(ctx context.Context) {
	for {
		for range a.driver.Stream(ctx) {
		}
		if ctx.Err() != nil {
			return
		}
		a.logger.Info("session paused, waiting for clear or restart")
		select {
		case <-a.driver.Activated():
		case <-ctx.Done():
			return
		}
	}
}

// Driver returns the session driver.
func (a *App) Driver() *session.Driver {
	return a.driver
}

// Registry returns the tool registry.
func (a *App) Registry() *tools.Registry {
	return a.registry
}

// Shutdown stops reminders and releases providers and devices.
func (a *App) Shutdown() error {
	if a.reminders != nil {
		a.reminders.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
