// Package session drives repeated turns over one cumulative transcript.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/teslashibe/go-assistant/pkg/export"
	"github.com/teslashibe/go-assistant/pkg/tools"
	"github.com/teslashibe/go-assistant/pkg/turn"
)

// Transcript notices.
const (
	MsgSessionEnded     = "Session ended. Say hello to start again!"
	MsgSessionRestarted = "Session restarted. Ready for conversation!"
	msgTooManyFaults    = "Too many consecutive errors (%d). Session stopped; restart to continue."
)

// ErrNoExporter is returned by Export when no sink is configured.
var ErrNoExporter = errors.New("session: no export sink configured")

// Executor runs one turn.
type Executor interface {
	Execute(ctx context.Context, s *turn.State) error
}

// ToolBox is the registry as seen by the driver.
type ToolBox interface {
	Invoke(ctx context.Context, name string, args tools.Args) string
	Capabilities() string
}

// Config tunes the turn loop.
type Config struct {
	// AudioDir receives one recording per turn.
	AudioDir string

	TurnPause            time.Duration
	RetryBackoff         time.Duration
	MaxConsecutiveFaults int

	ToolsEnabled   bool
	KeepRecordings bool
}

// DefaultConfig returns the loop settings used by the assistant.
func DefaultConfig() Config {
	return Config{
		AudioDir:             filepath.Join(os.TempDir(), "assistant-audio"),
		TurnPause:            100 * time.Millisecond,
		RetryBackoff:         2 * time.Second,
		MaxConsecutiveFaults: 3,
		ToolsEnabled:         true,
	}
}

// Driver owns the transcript and runs turns against it. Commands such as
// Clear or InvokeTool may be called while a turn is in flight.
type Driver struct {
	pipeline Executor
	tools    ToolBox
	sink     export.Sink
	cfg      Config
	id       string
	logger   *slog.Logger

	onEnd    func()
	onUpdate func([]turn.Entry)

	inFlight  atomic.Bool
	activated chan struct{}

	mu           sync.Mutex
	history      []turn.Entry
	active       bool
	processing   bool
	toolsEnabled bool
	generation   uint64
	started      time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithTools enables manual tool calls and the restart capability list.
func WithTools(t ToolBox) Option {
	return func(d *Driver) { d.tools = t }
}

// WithExporter sets the transcript export sink.
func WithExporter(s export.Sink) Option {
	return func(d *Driver) { d.sink = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithOnEnd registers fn to run when a turn ends the session.
func WithOnEnd(fn func()) Option {
	return func(d *Driver) { d.onEnd = fn }
}

// WithOnUpdate registers fn to receive a transcript copy after every change.
func WithOnUpdate(fn func([]turn.Entry)) Option {
	return func(d *Driver) { d.onUpdate = fn }
}

// New creates an active driver with an empty transcript.
func New(pipeline Executor, cfg Config, opts ...Option) *Driver {
	def := DefaultConfig()
	if cfg.AudioDir == "" {
		cfg.AudioDir = def.AudioDir
	}
	if cfg.TurnPause <= 0 {
		cfg.TurnPause = def.TurnPause
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.MaxConsecutiveFaults <= 0 {
		cfg.MaxConsecutiveFaults = def.MaxConsecutiveFaults
	}

	d := &Driver{
		pipeline:     pipeline,
		cfg:          cfg,
		id:           uuid.NewString(),
		logger:       slog.Default(),
		activated:    make(chan struct{}, 1),
		active:       true,
		toolsEnabled: cfg.ToolsEnabled,
		started:      time.Now(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "session", "session_id", d.id)
	return d
}

// ID returns the session identifier.
func (d *Driver) ID() string {
	return d.id
}

// RunTurn runs one turn and returns the resulting transcript. When a turn
// is already running it returns the current transcript without starting
// another. Faults are recorded in the transcript, never returned.
func (d *Driver) RunTurn(ctx context.Context) []turn.Entry {
	history, _ := d.runTurn(ctx)
	return history
}

// runTurn also reports a fault that escaped the pipeline.
func (d *Driver) runTurn(ctx context.Context) ([]turn.Entry, error) {
	if !d.inFlight.CompareAndSwap(false, true) {
		return d.History(), nil
	}
	defer d.inFlight.Store(false)

	d.mu.Lock()
	d.processing = true
	gen := d.generation
	base := len(d.history)
	state := turn.NewState(d.history, "", d.toolsEnabled)
	d.mu.Unlock()

	path, err := d.audioPath()
	if err == nil {
		state.AudioSource = path
		err = d.pipeline.Execute(ctx, state)
		d.removeRecording(path)
	}

	d.mu.Lock()
	d.processing = false

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		out := d.snapshot()
		d.mu.Unlock()
		return out, err
	}

	if gen != d.generation {
		// Cleared mid-turn; the turn's output belongs to the old transcript.
		out := d.snapshot()
		d.mu.Unlock()
		d.logger.Info("transcript cleared during turn, dropping its output", "turn_id", state.TurnID)
		return out, nil
	}

	ended := false
	if err != nil {
		d.logger.Error("turn fault", "turn_id", state.TurnID, "error", err)
		d.history = append(d.history, turn.SystemEntry("Error: "+err.Error()))
	} else {
		// Rows added while the turn ran (tool calls, restart notices) follow
		// the turn's output.
		during := d.history[base:]
		d.history = append(state.ChatHistory, during...)
		if !state.SessionActive {
			d.active = false
			ended = true
			d.history = append(d.history, turn.SystemEntry(MsgSessionEnded))
		}
	}
	out := d.snapshot()
	d.mu.Unlock()

	if ended {
		d.logger.Info("session ended by user")
		if d.onEnd != nil {
			d.onEnd()
		}
	}
	d.publish(out)
	return out, err
}

func (d *Driver) audioPath() (string, error) {
	if err := os.MkdirAll(d.cfg.AudioDir, 0o755); err != nil {
		return "", fmt.Errorf("session: audio dir: %w", err)
	}
	id, err := gonanoid.New(12)
	if err != nil {
		return "", fmt.Errorf("session: audio id: %w", err)
	}
	return filepath.Join(d.cfg.AudioDir, "turn-"+id+".wav"), nil
}

func (d *Driver) removeRecording(path string) {
	if d.cfg.KeepRecordings {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("failed to remove recording", "path", path, "error", err)
	}
}

// Clear empties the transcript and reactivates the session. A turn in
// flight keeps running but its output is discarded.
func (d *Driver) Clear() {
	d.mu.Lock()
	d.history = nil
	d.active = true
	d.generation++
	d.mu.Unlock()

	d.signalActivated()
	d.publish(nil)
}

// Restart reactivates the session and posts a welcome notice listing the
// available tools. The transcript is kept.
func (d *Driver) Restart() {
	msg := MsgSessionRestarted
	if d.tools != nil {
		msg += "\n\n" + d.tools.Capabilities()
	}

	d.mu.Lock()
	d.active = true
	d.processing = false
	d.history = append(d.history, turn.SystemEntry(msg))
	out := d.snapshot()
	d.mu.Unlock()

	d.logger.Info("session restarted")
	d.signalActivated()
	d.publish(out)
}

// ToggleTools flips tool usage and returns the new setting.
func (d *Driver) ToggleTools() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.toolsEnabled = !d.toolsEnabled
	return d.toolsEnabled
}

// SetToolsEnabled sets tool usage for the following turns.
func (d *Driver) SetToolsEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.toolsEnabled = enabled
}

// InvokeTool runs a tool directly and records the result in the
// transcript.
func (d *Driver) InvokeTool(ctx context.Context, name string, args tools.Args) string {
	result := "Tool execution is not available"
	if d.tools != nil {
		result = d.tools.Invoke(ctx, name, args)
	}

	d.mu.Lock()
	d.history = append(d.history, turn.ToolEntry(name, result))
	out := d.snapshot()
	d.mu.Unlock()

	d.publish(out)
	return result
}

// Export writes the transcript to the configured sink and returns where it
// went.
func (d *Driver) Export(ctx context.Context) (string, error) {
	if d.sink == nil {
		return "", ErrNoExporter
	}

	d.mu.Lock()
	t := export.Transcript{
		Title:     "Conversation Log",
		SessionID: d.id,
		Created:   time.Now(),
		Entries:   d.snapshot(),
	}
	d.mu.Unlock()

	loc, err := d.sink.Export(ctx, t)
	if err != nil {
		return "", fmt.Errorf("session: export: %w", err)
	}
	d.logger.Info("transcript exported", "location", loc, "entries", len(t.Entries))
	return loc, nil
}

// History returns a copy of the transcript.
func (d *Driver) History() []turn.Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot()
}

// Active reports whether the session accepts further turns.
func (d *Driver) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Activated fires after Clear or Restart reactivated the session.
func (d *Driver) Activated() <-chan struct{} {
	return d.activated
}

// Status describes the session for display.
type Status struct {
	SessionID    string      `json:"session_id"`
	Active       bool        `json:"session_active"`
	Processing   bool        `json:"is_processing"`
	ToolsEnabled bool        `json:"tools_enabled"`
	Messages     int         `json:"chat_history_length"`
	Last         *turn.Entry `json:"last_message"`
	Uptime       string      `json:"uptime"`
	Text         string      `json:"status"`
}

// Status returns the current session status.
func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Status{
		SessionID:    d.id,
		Active:       d.active,
		Processing:   d.processing,
		ToolsEnabled: d.toolsEnabled,
		Messages:     len(d.history),
		Uptime:       time.Since(d.started).Round(time.Second).String(),
	}
	if n := len(d.history); n > 0 {
		last := d.history[n-1]
		s.Last = &last
	}
	switch {
	case s.Processing:
		s.Text = "🎤 Processing audio..."
	case s.Active:
		s.Text = fmt.Sprintf("Active - %d messages", s.Messages)
	default:
		s.Text = "Session ended"
	}
	return s
}

// stopAfterFaults ends the session once the fault budget is spent.
func (d *Driver) stopAfterFaults(n int) []turn.Entry {
	d.mu.Lock()
	d.active = false
	d.history = append(d.history, turn.SystemEntry(fmt.Sprintf(msgTooManyFaults, n)))
	out := d.snapshot()
	d.mu.Unlock()

	d.logger.Error("session stopped after consecutive faults", "faults", n)
	d.publish(out)
	return out
}

// snapshot copies the transcript. d.mu must be held.
func (d *Driver) snapshot() []turn.Entry {
	return append([]turn.Entry(nil), d.history...)
}

func (d *Driver) signalActivated() {
	select {
	case d.activated <- struct{}{}:
	default:
	}
}

func (d *Driver) publish(history []turn.Entry) {
	if d.onUpdate != nil {
		d.onUpdate(history)
	}
}
