package turn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-assistant/pkg/audio"
	"github.com/teslashibe/go-assistant/pkg/inference"
	"github.com/teslashibe/go-assistant/pkg/intent"
	"github.com/teslashibe/go-assistant/pkg/tools"
)

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeResponder struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (f *fakeResponder) Respond(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.reply != nil {
		return f.reply(prompt)
	}
	return "Sure thing.", nil
}

type fakeVoice struct {
	err    error
	spoken []string
}

func (f *fakeVoice) Speak(ctx context.Context, text string) error {
	f.spoken = append(f.spoken, text)
	return f.err
}

type fixture struct {
	recorder  audio.RecorderFunc
	recorded  []string
	stt       *fakeTranscriber
	responder *fakeResponder
	primary   *fakeVoice
	secondary *fakeVoice
	toolArgs  map[string]tools.Args
	registry  *tools.Registry
}

func newFixture(t *testing.T, transcript string) *fixture {
	t.Helper()
	f := &fixture{
		stt:       &fakeTranscriber{text: transcript},
		responder: &fakeResponder{},
		primary:   &fakeVoice{},
		secondary: &fakeVoice{},
		toolArgs:  map[string]tools.Args{},
	}
	f.recorder = func(ctx context.Context, dest string) error {
		f.recorded = append(f.recorded, dest)
		return nil
	}

	stub := func(name, out string) tools.Tool {
		return tools.Tool{Name: name, Description: name, Handler: func(_ context.Context, args tools.Args) (string, error) {
			f.toolArgs[name] = args
			return out, nil
		}}
	}
	reg, err := tools.NewRegistry(
		stub("weather", "Current weather in Paris, FR: 18°C"),
		stub("forecast", "3-day forecast"),
		stub("search", "search results"),
		stub("news", "headlines"),
		stub("time", "🕐 Current time: noon"),
		stub("system", "system info"),
		stub("vision", "a desk"),
		stub("files", "files"),
		tools.Tool{Name: "calculator", Description: "calc", Handler: func(ctx context.Context, args tools.Args) (string, error) {
			f.toolArgs["calculator"] = args
			return "🧮 " + args["expression"] + " = 110", nil
		}},
	)
	require.NoError(t, err)
	f.registry = reg
	return f
}

func (f *fixture) deps() Deps {
	return Deps{
		Recorder:    f.recorder,
		Transcriber: f.stt,
		Classifier:  intent.Default(),
		Tools:       f.registry,
		Responder:   f.responder,
		Primary:     f.primary,
		Secondary:   f.secondary,
	}
}

func (f *fixture) pipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(f.deps(), opts...)
	require.NoError(t, err)
	return p
}

func run(t *testing.T, p *Pipeline, s *State) *State {
	t.Helper()
	require.NoError(t, p.Execute(context.Background(), s))
	return s
}

func TestNewRequiresCollaborators(t *testing.T) {
	f := newFixture(t, "")
	d := f.deps()
	d.Responder = nil
	_, err := New(d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "responder")

	d = f.deps()
	d.Secondary = nil
	_, err = New(d)
	assert.NoError(t, err)
}

func TestWeatherScenario(t *testing.T) {
	f := newFixture(t, "What's the weather in Paris?")
	f.responder.reply = func(string) (string, error) { return "It's 18 degrees in Paris right now.", nil }
	p := f.pipeline(t)

	prior := []Entry{{Speaker: "hello", Text: "Hi there!"}}
	s := run(t, p, NewState(prior, "/tmp/turn.wav", true))

	assert.Equal(t, intent.Weather, s.DetectedIntent)
	assert.True(t, s.NeedsToolExecution)
	assert.Equal(t, "weather", s.ToolName)
	assert.Equal(t, "Paris", f.toolArgs["weather"]["city"])
	require.NotNil(t, s.ToolResults)

	require.Len(t, f.responder.prompts, 1)
	assert.Equal(t, "User query: What's the weather in Paris?\n\n"+
		"Tool results: Current weather in Paris, FR: 18°C\n\n"+
		"Please provide a natural response incorporating this information.", f.responder.prompts[0])

	want := []Entry{
		{Speaker: "hello", Text: "Hi there!"},
		{Speaker: "What's the weather in Paris?", Text: "It's 18 degrees in Paris right now."},
	}
	if diff := cmp.Diff(want, s.ChatHistory); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"It's 18 degrees in Paris right now."}, f.primary.spoken)
	assert.Empty(t, f.secondary.spoken)
	assert.Equal(t, []string{"/tmp/turn.wav"}, f.recorded)
	assert.Len(t, s.MessageLog, 2)
	assert.Empty(t, s.ErrorMessage)
	assert.True(t, s.SessionActive)
	assert.Len(t, prior, 1, "caller's history must not be modified")
}

func TestForecastDispatch(t *testing.T) {
	f := newFixture(t, "What's the weather forecast in Oslo for 4 days?")
	s := run(t, f.pipeline(t), NewState(nil, "a.wav", true))

	assert.Equal(t, "forecast", s.ToolName)
	assert.Equal(t, "4", f.toolArgs["forecast"]["days"])
}

func TestCalculatorScenario(t *testing.T) {
	f := newFixture(t, "Calculate 25 * 4 + 10")
	f.responder.reply = func(prompt string) (string, error) {
		if strings.Contains(prompt, "= 110") {
			return "That comes to 110.", nil
		}
		return "I don't know.", nil
	}
	s := run(t, f.pipeline(t), NewState(nil, "a.wav", true))

	assert.Equal(t, intent.Calculator, s.DetectedIntent)
	assert.Equal(t, "25 * 4 + 10", f.toolArgs["calculator"]["expression"])
	assert.Equal(t, []Entry{{Speaker: "Calculate 25 * 4 + 10", Text: "That comes to 110."}}, s.ChatHistory)
}

func TestRecordingFailureScenario(t *testing.T) {
	f := newFixture(t, "never heard")
	f.recorder = func(context.Context, string) error { return audio.ErrListenTimeout }
	s := run(t, f.pipeline(t), NewState(nil, "a.wav", true))

	assert.Zero(t, f.stt.calls)
	assert.Empty(t, f.responder.prompts)
	assert.Empty(t, f.primary.spoken)
	assert.Equal(t, []Entry{SystemEntry("Error: Audio recording error: audio: listening timed out while waiting for phrase to start")}, s.ChatHistory)
	assert.Empty(t, s.ErrorMessage)
	assert.False(t, s.ProcessingAudio)
	assert.False(t, s.NeedsToolExecution)
	require.NotNil(t, s.Failure)
	assert.Equal(t, Recording, s.Failure.Kind)
	assert.ErrorIs(t, s.Failure, audio.ErrListenTimeout)
}

func TestTranscriptionFailure(t *testing.T) {
	f := newFixture(t, "")
	f.stt.err = errors.New("whisper: 503")
	s := run(t, f.pipeline(t), NewState(nil, "a.wav", true))

	assert.Equal(t, intent.None, s.DetectedIntent)
	assert.Empty(t, f.responder.prompts)
	assert.Equal(t, []Entry{SystemEntry("Error: Transcription error: whisper: 503")}, s.ChatHistory)
}

type failingClassifier struct{}

func (failingClassifier) Classify(string) (intent.Label, bool) { return intent.None, false }

func (failingClassifier) ClassifyContext(context.Context, string) (intent.Label, error) {
	return intent.None, errors.New("classifier offline")
}

func TestIntentDetectionFailure(t *testing.T) {
	f := newFixture(t, "what's the weather")
	d := f.deps()
	d.Classifier = failingClassifier{}
	p, err := New(d)
	require.NoError(t, err)

	s := run(t, p, NewState(nil, "a.wav", true))
	assert.Empty(t, f.toolArgs)
	assert.Empty(t, f.responder.prompts, "error must route straight to the handler")
	assert.Equal(t, []Entry{SystemEntry("Error: Intent detection error: classifier offline")}, s.ChatHistory)
}

func TestExitPhrase(t *testing.T) {
	f := newFixture(t, "Okay, GoodBye for now")
	s := run(t, f.pipeline(t), NewState(nil, "a.wav", true))

	assert.False(t, s.SessionActive)
	assert.Empty(t, f.responder.prompts)
	assert.Empty(t, f.primary.spoken)
	assert.Empty(t, s.ChatHistory)

	f = newFixture(t, "see you later")
	s = run(t, f.pipeline(t, WithExitKeywords("see you")), NewState(nil, "a.wav", true))
	assert.False(t, s.SessionActive)
}

func TestSpeechFallback(t *testing.T) {
	t.Run("quota error uses backup voice", func(t *testing.T) {
		f := newFixture(t, "hello there")
		f.primary.err = errors.New("elevenlabs: 429 quota_exceeded")
		s := run(t, f.pipeline(t), NewState(nil, "a.wav", true))

		assert.Equal(t, []string{"Sure thing."}, f.secondary.spoken)
		assert.Equal(t, []Entry{
			{Speaker: "hello there", Text: "Sure thing."},
			SystemEntry(NoticeVoiceFallback),
		}, s.ChatHistory)
		assert.Nil(t, s.Failure)
	})

	t.Run("other errors skip the backup", func(t *testing.T) {
		f := newFixture(t, "hello there")
		f.primary.err = errors.New("connection reset")
		s := run(t, f.pipeline(t), NewState(nil, "a.wav", true))

		assert.Empty(t, f.secondary.spoken)
		assert.Equal(t, []Entry{
			{Speaker: "hello there", Text: "Sure thing."},
			SystemEntry("Error: TTS error: connection reset"),
		}, s.ChatHistory)
	})

	t.Run("both voices fail", func(t *testing.T) {
		f := newFixture(t, "hello there")
		f.primary.err = errors.New("401 Unauthorized")
		f.secondary.err = errors.New("network unreachable")
		s := run(t, f.pipeline(t), NewState(nil, "a.wav", true))

		require.Len(t, s.ChatHistory, 3)
		assert.Equal(t, SystemEntry(NoticeTextOnly), s.ChatHistory[1])
		assert.True(t, s.ChatHistory[2].IsSystem())
		assert.Contains(t, s.ChatHistory[2].Text, "network unreachable")
		assert.Equal(t, Synthesis, s.Failure.Kind)
	})

	t.Run("no backup configured", func(t *testing.T) {
		f := newFixture(t, "hello there")
		f.primary.err = errors.New("credits exhausted")
		d := f.deps()
		d.Secondary = nil
		p, err := New(d)
		require.NoError(t, err)

		s := run(t, p, NewState(nil, "a.wav", true))
		assert.Equal(t, SystemEntry(NoticeTextOnly), s.ChatHistory[1])
	})
}

func TestToolsDisabled(t *testing.T) {
	f := newFixture(t, "What's the weather in Paris?")
	s := run(t, f.pipeline(t), NewState(nil, "a.wav", false))

	assert.Equal(t, intent.Weather, s.DetectedIntent, "intent is still recorded")
	assert.True(t, s.NeedsToolExecution)
	assert.Nil(t, s.ToolResults)
	assert.Empty(t, f.toolArgs)
	assert.Equal(t, []string{"What's the weather in Paris?"}, f.responder.prompts)
}

func TestToolsFlagReachesResponder(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		f := newFixture(t, "tell me a joke")
		d := f.deps()
		var allowed bool
		d.Responder = responderFunc(func(ctx context.Context, _ string) (string, error) {
			allowed = inference.ToolsAllowed(ctx)
			return "Why did the gopher cross the road?", nil
		})
		p, err := New(d)
		require.NoError(t, err)

		run(t, p, NewState(nil, "a.wav", enabled))
		assert.Equal(t, enabled, allowed, "tools enabled=%v", enabled)
	}
}

type labelClassifier intent.Label

func (l labelClassifier) Classify(string) (intent.Label, bool) { return intent.Label(l), true }

func TestUnknownIntent(t *testing.T) {
	f := newFixture(t, "do a dance")
	d := f.deps()
	d.Classifier = labelClassifier("dance")
	p, err := New(d)
	require.NoError(t, err)

	s := run(t, p, NewState(nil, "a.wav", true))
	require.NotNil(t, s.ToolResults)
	assert.Equal(t, "Intent 'dance' detected but tool execution not implemented", *s.ToolResults)
	assert.Contains(t, f.responder.prompts[0], "not implemented")
}

func TestNeedsToolExecutionMatchesIntent(t *testing.T) {
	inputs := []string{
		"what do you see", "weather in Rome", "search for cats", "latest news",
		"what time is it", "cpu usage", "calculate 2 + 2", "list files",
		"hello", "how are you", "tell me a joke", "12 + 7",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			f := newFixture(t, in)
			s := run(t, f.pipeline(t), NewState(nil, "a.wav", true))
			assert.Equal(t, s.DetectedIntent != intent.None, s.NeedsToolExecution)
			assert.Equal(t, s.DetectedIntent != intent.None, s.ToolResults != nil)
		})
	}
}

func TestStageTimeout(t *testing.T) {
	f := newFixture(t, "hello")
	d := f.deps()
	d.Responder = responderFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	p, err := New(d, WithTimeouts(Timeouts{Processing: 20 * time.Millisecond}))
	require.NoError(t, err)

	s := run(t, p, NewState(nil, "a.wav", true))
	require.Len(t, s.ChatHistory, 1)
	assert.Equal(t, "Error: AI response error: timed out after 20ms: context deadline exceeded", s.ChatHistory[0].Text)
	assert.Empty(t, f.primary.spoken)
}

type responderFunc func(ctx context.Context, prompt string) (string, error)

func (f responderFunc) Respond(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

func TestEmptyReplyIsAnError(t *testing.T) {
	f := newFixture(t, "hello")
	f.responder.reply = func(string) (string, error) { return "   ", nil }
	s := run(t, f.pipeline(t), NewState(nil, "a.wav", true))

	assert.Equal(t, []Entry{SystemEntry("Error: AI response error: empty reply")}, s.ChatHistory)
}

func TestToolTimeoutBecomesText(t *testing.T) {
	f := newFixture(t, "what time is it")
	reg, err := tools.NewRegistry(tools.Tool{Name: "time", Handler: func(ctx context.Context, _ tools.Args) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}})
	require.NoError(t, err)
	d := f.deps()
	d.Tools = reg
	p, err := New(d, WithTimeouts(Timeouts{Processing: 20 * time.Millisecond}))
	require.NoError(t, err)

	s := run(t, p, NewState(nil, "a.wav", true))
	require.NotNil(t, s.ToolResults)
	assert.True(t, strings.HasPrefix(*s.ToolResults, "Tool execution error: "), *s.ToolResults)
	assert.Len(t, f.responder.prompts, 1, "tool failures still reach the responder")
}

func TestPanicBecomesFault(t *testing.T) {
	f := newFixture(t, "hello")
	d := f.deps()
	d.Transcriber = transcriberFunc(func(context.Context, string) (string, error) { panic("decoder bug") })
	p, err := New(d)
	require.NoError(t, err)

	s := NewState([]Entry{{Speaker: "a", Text: "b"}}, "a.wav", true)
	err = p.Execute(context.Background(), s)

	var fault *FaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, StageTranscribe, fault.Stage)
	assert.Equal(t, "unexpected fault in transcribe: decoder bug", fault.Error())
	assert.Len(t, s.ChatHistory, 1)

	last, ok := p.Metrics().Last()
	require.True(t, ok)
	assert.Equal(t, OutcomeFault, last.Outcome)
}

type transcriberFunc func(ctx context.Context, path string) (string, error)

func (f transcriberFunc) Transcribe(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

func TestCanceledContext(t *testing.T) {
	f := newFixture(t, "hello")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.pipeline(t).Execute(ctx, NewState(nil, "a.wav", true))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.recorded)
}

func TestTranscriptGrowth(t *testing.T) {
	f := newFixture(t, "")
	p := f.pipeline(t)
	inputs := []string{"hello", "what's the weather in Rome", "", "calculate 3 * 3", "thanks"}

	history := []Entry{}
	for _, in := range inputs {
		f.stt.text = in
		s := run(t, p, NewState(history, "a.wav", true))

		added := len(s.ChatHistory) - len(history)
		assert.GreaterOrEqual(t, added, 0)
		assert.LessOrEqual(t, added, 2)
		if diff := cmp.Diff(history, s.ChatHistory[:len(history)]); diff != "" {
			t.Fatalf("earlier entries changed:\n%s", diff)
		}
		history = s.ChatHistory
	}
	assert.Len(t, history, 4)

	sum := p.Metrics().Summary()
	assert.Equal(t, 5, sum.Turns)
	assert.Contains(t, sum.Average, StageRecord)
	assert.Contains(t, sum.Average, StageResponse)
	require.NotNil(t, sum.Last)
	assert.NotEmpty(t, sum.Last.FormatLatency())
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "hi", BuildPrompt("hi", nil))
	empty := ""
	assert.Equal(t, "hi", BuildPrompt("hi", &empty))
	res := "42"
	assert.Equal(t, "User query: hi\n\nTool results: 42\n\nPlease provide a natural response incorporating this information.",
		BuildPrompt("hi", &res))
}

func TestRecordTimeout(t *testing.T) {
	assert.Equal(t, 20*time.Second+10*time.Second+5*time.Second, RecordTimeout(20*time.Second, 10*time.Second))
	assert.Equal(t, 55*time.Second, RecordTimeout(0, 0))
}

func TestStageErrorKinds(t *testing.T) {
	err := &StageError{Stage: StageSynthesis, Kind: Synthesis, Err: errors.New("boom")}
	assert.Equal(t, "TTS error: boom", err.Error())
	assert.True(t, IsKind(err, Synthesis))
	assert.False(t, IsKind(err, Response))
	assert.Equal(t, "AI response error", Response.String())
}
