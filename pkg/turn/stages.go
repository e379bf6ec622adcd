package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/go-assistant/pkg/inference"
	"github.com/teslashibe/go-assistant/pkg/intent"
	"github.com/teslashibe/go-assistant/pkg/tools"
	"github.com/teslashibe/go-assistant/pkg/tts"
)

// ContextClassifier is implemented by classifiers that can fail, such as
// ones backed by a remote model. The pipeline prefers it over Classify.
type ContextClassifier interface {
	ClassifyContext(ctx context.Context, text string) (intent.Label, error)
}

var errEmptyReply = errors.New("empty reply")

func (p *Pipeline) stageContext(ctx context.Context, stage Stage) (context.Context, context.CancelFunc, time.Duration) {
	d := p.timeouts.Processing
	if stage == StageRecord {
		d = p.timeouts.Record
	}
	sctx, cancel := context.WithTimeout(ctx, d)
	return sctx, cancel, d
}

// newStageError tags err, naming the bound when the stage ran out of time.
func newStageError(sctx context.Context, d time.Duration, stage Stage, kind Kind, err error) *StageError {
	if errors.Is(sctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w (timed out after %s)", err, d)
	} else if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", d, err)
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func (p *Pipeline) record(ctx context.Context, s *State) (bool, *StageError) {
	sctx, cancel, d := p.stageContext(ctx, StageRecord)
	defer cancel()

	if err := p.deps.Recorder.Record(sctx, s.AudioSource); err != nil {
		s.ProcessingAudio = false
		return true, newStageError(sctx, d, StageRecord, Recording, err)
	}
	s.ProcessingAudio = true
	s.ErrorMessage = ""
	return true, nil
}

func (p *Pipeline) transcribe(ctx context.Context, s *State) (bool, *StageError) {
	if !s.ProcessingAudio || s.ErrorMessage != "" {
		return false, nil
	}

	sctx, cancel, d := p.stageContext(ctx, StageTranscribe)
	defer cancel()

	text, err := p.deps.Transcriber.Transcribe(sctx, s.AudioSource)
	if err != nil {
		return true, newStageError(sctx, d, StageTranscribe, Transcription, err)
	}

	s.CurrentUserInput = strings.TrimSpace(text)
	s.MessageLog = append(s.MessageLog, inference.NewUserMessage(s.CurrentUserInput))
	if containsExit(s.CurrentUserInput, p.exitKeywords) {
		s.SessionActive = false
	}
	return true, nil
}

func (p *Pipeline) detectIntent(ctx context.Context, s *State) (bool, *StageError) {
	if s.CurrentUserInput == "" || s.ErrorMessage != "" {
		return false, nil
	}

	label := intent.None
	if cc, ok := p.deps.Classifier.(ContextClassifier); ok {
		sctx, cancel, d := p.stageContext(ctx, StageIntent)
		defer cancel()

		l, err := cc.ClassifyContext(sctx, s.CurrentUserInput)
		if err != nil {
			s.DetectedIntent, s.NeedsToolExecution = intent.None, false
			return true, newStageError(sctx, d, StageIntent, IntentDetection, err)
		}
		label = l
	} else if l, ok := p.deps.Classifier.Classify(s.CurrentUserInput); ok {
		label = l
	}

	s.DetectedIntent = label
	s.NeedsToolExecution = label != intent.None
	return true, nil
}

func (p *Pipeline) executeTool(ctx context.Context, s *State) (bool, *StageError) {
	if s.DetectedIntent == intent.None || s.CurrentUserInput == "" || s.ErrorMessage != "" {
		return false, nil
	}

	var result string
	if name, args, ok := p.toolCall(s.CurrentUserInput, s.DetectedIntent); ok {
		s.ToolName = name
		result = p.invokeTool(ctx, name, args)
	} else {
		result = fmt.Sprintf("Intent '%s' detected but tool execution not implemented", s.DetectedIntent)
	}
	s.ToolResults = &result
	return true, nil
}

// toolCall maps a label to the registry tool serving it.
func (p *Pipeline) toolCall(input string, label intent.Label) (string, tools.Args, bool) {
	switch label {
	case intent.Vision, intent.Weather, intent.Search, intent.News,
		intent.Time, intent.System, intent.Calculator, intent.Files:
		params := p.extract(input, label)
		return intent.ToolFor(label, params), tools.Args(params.Args), true
	default:
		return "", nil, false
	}
}

// invokeTool bounds the call even when the tool ignores its context.
func (p *Pipeline) invokeTool(ctx context.Context, name string, args tools.Args) string {
	sctx, cancel, d := p.stageContext(ctx, StageTool)
	defer cancel()

	done := make(chan string, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Sprintf("%s: %v", ToolExecution, r)
			}
		}()
		done <- p.deps.Tools.Invoke(sctx, name, args)
	}()

	select {
	case out := <-done:
		return out
	case <-sctx.Done():
		return fmt.Sprintf("%s: %s timed out after %s", ToolExecution, name, d)
	}
}

func (p *Pipeline) respond(ctx context.Context, s *State) (bool, *StageError) {
	if s.CurrentUserInput == "" || !s.SessionActive || s.ErrorMessage != "" {
		return false, nil
	}

	sctx, cancel, d := p.stageContext(ctx, StageResponse)
	defer cancel()
	if !s.ToolsEnabled {
		sctx = inference.WithoutTools(sctx)
	}

	reply, err := p.deps.Responder.Respond(sctx, BuildPrompt(s.CurrentUserInput, s.ToolResults))
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errEmptyReply
	}
	if err != nil {
		return true, newStageError(sctx, d, StageResponse, Response, err)
	}

	reply = strings.TrimSpace(reply)
	s.CurrentResponse = reply
	s.MessageLog = append(s.MessageLog, inference.NewAssistantMessage(reply))
	s.appendEntry(Entry{Speaker: s.CurrentUserInput, Text: reply})
	return true, nil
}

func (p *Pipeline) synthesize(ctx context.Context, s *State) (bool, *StageError) {
	if s.CurrentResponse == "" || s.ErrorMessage != "" {
		return false, nil
	}

	err := p.speak(ctx, p.deps.Primary, s.CurrentResponse)
	if err == nil {
		return true, nil
	}
	if !tts.IsQuotaError(err) {
		return true, &StageError{Stage: StageSynthesis, Kind: Synthesis, Err: err}
	}

	p.logger.Warn("primary voice unavailable, trying backup", "turn_id", s.TurnID, "error", err)
	if p.deps.Secondary != nil {
		serr := p.speak(ctx, p.deps.Secondary, s.CurrentResponse)
		if serr == nil {
			s.appendEntry(SystemEntry(NoticeVoiceFallback))
			return true, nil
		}
		err = fmt.Errorf("%w; backup voice: %v", err, serr)
	}

	s.appendEntry(SystemEntry(NoticeTextOnly))
	return true, &StageError{Stage: StageSynthesis, Kind: Synthesis, Err: err}
}

func (p *Pipeline) speak(ctx context.Context, synth Synthesizer, text string) error {
	sctx, cancel, d := p.stageContext(ctx, StageSynthesis)
	defer cancel()

	if err := synth.Speak(sctx, text); err != nil {
		if errors.Is(sctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w (timed out after %s)", err, d)
		}
		return err
	}
	return nil
}

func (p *Pipeline) handleError(s *State) bool {
	s.appendEntry(SystemEntry("Error: " + s.ErrorMessage))
	s.ErrorMessage = ""
	s.ProcessingAudio = false
	s.NeedsToolExecution = false
	return true
}
