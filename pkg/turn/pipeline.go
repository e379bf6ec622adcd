package turn

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/teslashibe/go-assistant/pkg/intent"
	"github.com/teslashibe/go-assistant/pkg/tools"
)

// Recorder captures one utterance into dest.
type Recorder interface {
	Record(ctx context.Context, dest string) error
}

// Transcriber turns a recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Classifier picks the intent of an utterance.
type Classifier interface {
	Classify(text string) (intent.Label, bool)
}

// ToolInvoker runs a named tool. Failures come back as text.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, args tools.Args) string
}

// Responder composes the assistant's reply.
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// Synthesizer speaks text aloud.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// Deps are the collaborators of a Pipeline. Secondary may be nil.
type Deps struct {
	Recorder    Recorder
	Transcriber Transcriber
	Classifier  Classifier
	Tools       ToolInvoker
	Responder   Responder
	Primary     Synthesizer
	Secondary   Synthesizer
}

// Timeouts bound each stage. Zero fields use the defaults.
type Timeouts struct {
	Record     time.Duration
	Processing time.Duration
}

// Default stage bounds.
const (
	DefaultListenTimeout     = 20 * time.Second
	DefaultProcessingTimeout = 30 * time.Second

	// recordGrace is added on top of the listen and phrase limits.
	recordGrace = 5 * time.Second

	// uncappedPhrase stands in for a phrase limit of zero.
	uncappedPhrase = 30 * time.Second
)

// RecordTimeout is the bound for a recording that may wait listen for
// speech and then capture up to phrase of it.
func RecordTimeout(listen, phrase time.Duration) time.Duration {
	if listen <= 0 {
		listen = DefaultListenTimeout
	}
	if phrase <= 0 {
		phrase = uncappedPhrase
	}
	return listen + phrase + recordGrace
}

// Notices appended to the transcript by the speech stage.
const (
	NoticeVoiceFallback = "🔊 Primary voice unavailable (quota or authorization); switched to the backup voice."
	NoticeTextOnly      = "🔇 Audio output unavailable; continuing in text-only mode."
)

// Pipeline executes turns. It holds no per-turn state and may be shared.
type Pipeline struct {
	deps         Deps
	timeouts     Timeouts
	exitKeywords []string
	extract      func(string, intent.Label) intent.Params
	metrics      *Metrics
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeouts sets stage bounds.
func WithTimeouts(t Timeouts) Option {
	return func(p *Pipeline) {
		if t.Record > 0 {
			p.timeouts.Record = t.Record
		}
		if t.Processing > 0 {
			p.timeouts.Processing = t.Processing
		}
	}
}

// WithExitKeywords replaces the words that end the session.
func WithExitKeywords(words ...string) Option {
	return func(p *Pipeline) {
		if len(words) > 0 {
			p.exitKeywords = append([]string(nil), words...)
		}
	}
}

// WithMetrics records stage latencies into m.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New builds a pipeline over deps.
func New(deps Deps, opts ...Option) (*Pipeline, error) {
	switch {
	case deps.Recorder == nil:
		return nil, fmt.Errorf("turn: recorder is required")
	case deps.Transcriber == nil:
		return nil, fmt.Errorf("turn: transcriber is required")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("turn: classifier is required")
	case deps.Tools == nil:
		return nil, fmt.Errorf("turn: tool invoker is required")
	case deps.Responder == nil:
		return nil, fmt.Errorf("turn: responder is required")
	case deps.Primary == nil:
		return nil, fmt.Errorf("turn: primary synthesizer is required")
	}

	p := &Pipeline{
		deps: deps,
		timeouts: Timeouts{
			Record:     RecordTimeout(DefaultListenTimeout, 0),
			Processing: DefaultProcessingTimeout,
		},
		exitKeywords: DefaultExitKeywords,
		extract:      intent.ExtractParams,
		metrics:      NewMetrics(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "turn")
	return p, nil
}

// Metrics returns the latency collector.
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

// Execute runs one turn over s, from record_audio to end. Stage failures
// are handled inside the turn and do not make Execute fail. It returns a
// *FaultError when a stage panicked, or ctx.Err() when ctx was done before
// a stage could start.
func (p *Pipeline) Execute(ctx context.Context, s *State) error {
	if s.TurnID == "" {
		s.TurnID = newTurnID()
	}
	log := p.logger.With("turn_id", s.TurnID)
	tm := TurnMetrics{TurnID: s.TurnID, Start: time.Now()}

	err := p.run(ctx, s, log, &tm)

	tm.Total = time.Since(tm.Start)
	tm.Intent = string(s.DetectedIntent)
	switch {
	case err != nil:
		tm.Outcome = OutcomeFault
	case s.Failure != nil:
		tm.Outcome = OutcomeRecovered
	case !s.SessionActive:
		tm.Outcome = OutcomeEnded
	default:
		tm.Outcome = OutcomeOK
	}
	p.metrics.record(tm)

	log.Info("turn finished",
		"outcome", tm.Outcome,
		"intent", s.DetectedIntent,
		"duration_ms", tm.Total.Milliseconds())
	return err
}

func (p *Pipeline) run(ctx context.Context, s *State, log *slog.Logger, tm *TurnMetrics) error {
	for stage := StageRecord; stage != StageEnd; {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		acted, serr, fault := p.step(ctx, stage, s)
		if fault != nil {
			log.Error("stage fault", "stage", stage, "panic", fault.Value)
			return fault
		}
		if acted {
			d := time.Since(start)
			tm.Stages = append(tm.Stages, StageTiming{Stage: stage, Duration: d, Failed: serr != nil})
			log.Debug("stage completed", "stage", stage, "duration_ms", d.Milliseconds())
		}
		if serr != nil {
			log.Warn("stage failed", "stage", stage, "error", serr)
			s.fail(serr)
		}

		stage = p.next(stage, s)
	}
	return nil
}

// next is the transition table.
func (p *Pipeline) next(stage Stage, s *State) Stage {
	switch stage {
	case StageRecord:
		return StageTranscribe
	case StageTranscribe:
		return StageIntent
	case StageIntent:
		switch {
		case s.ErrorMessage != "":
			return StageErrorHandler
		case s.NeedsToolExecution && s.ToolsEnabled:
			return StageTool
		default:
			return StageResponse
		}
	case StageTool:
		return StageResponse
	case StageResponse:
		return StageSynthesis
	case StageSynthesis:
		switch {
		case !s.SessionActive:
			return StageEnd
		case s.ErrorMessage != "":
			return StageErrorHandler
		default:
			return StageEnd
		}
	case StageErrorHandler:
		return StageEnd
	default:
		panic(fmt.Sprintf("turn: no transition from stage %q", stage))
	}
}

// step runs one stage, converting a panic into a fault. acted reports
// whether the stage's precondition held.
func (p *Pipeline) step(ctx context.Context, stage Stage, s *State) (acted bool, serr *StageError, fault *FaultError) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Debug("recovered panic", "stage", stage, "stack", string(debug.Stack()))
			fault = &FaultError{Stage: stage, Value: r}
		}
	}()

	switch stage {
	case StageRecord:
		acted, serr = p.record(ctx, s)
	case StageTranscribe:
		acted, serr = p.transcribe(ctx, s)
	case StageIntent:
		acted, serr = p.detectIntent(ctx, s)
	case StageTool:
		acted, serr = p.executeTool(ctx, s)
	case StageResponse:
		acted, serr = p.respond(ctx, s)
	case StageSynthesis:
		acted, serr = p.synthesize(ctx, s)
	case StageErrorHandler:
		acted = p.handleError(s)
	}
	return acted, serr, nil
}

// fail records err as the pending error unless one is already set.
func (s *State) fail(err *StageError) {
	if s.ErrorMessage != "" {
		return
	}
	s.ErrorMessage = err.Error()
	if s.Failure == nil {
		s.Failure = err
	}
}
