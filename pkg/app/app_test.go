package app

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-assistant/internal/config"
	"github.com/teslashibe/go-assistant/internal/log"
	"github.com/teslashibe/go-assistant/pkg/audio"
	"github.com/teslashibe/go-assistant/pkg/camera"
	"github.com/teslashibe/go-assistant/pkg/inference"
	"github.com/teslashibe/go-assistant/pkg/session"
	"github.com/teslashibe/go-assistant/pkg/stt"
	"github.com/teslashibe/go-assistant/pkg/tts"
	"github.com/teslashibe/go-assistant/pkg/turn"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Audio.Dir = filepath.Join(dir, "audio")
	cfg.Audio.OutputFile = filepath.Join(dir, "final.mp3")
	cfg.Camera.Enabled = false
	cfg.UI.Host = "127.0.0.1"
	cfg.UI.StaticDir = ""
	cfg.Workflow.TurnPause = time.Millisecond
	cfg.Workflow.RetryDelay = time.Millisecond
	cfg.Export.Dir = filepath.Join(dir, "exports")
	cfg.Notify.Enabled = false
	return cfg
}

func silentRecorder() audio.RecorderFunc {
	return func(_ context.Context, dest string) error {
		return os.WriteFile(dest, []byte("RIFF"), 0o644)
	}
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	opts = append([]Option{
		WithLogger(log.Discard()),
		WithListener(ln),
		WithRecorder(silentRecorder()),
		WithLLM(inference.NewMock()),
		WithVoices(tts.NewMock(), nil),
		WithPlayer(nil),
	}, opts...)

	a := New(cfg, opts...)
	require.NoError(t, a.Init(context.Background()))
	t.Cleanup(func() { a.Shutdown() })
	return a
}

func countEnded(a *App) int {
	n := 0
	for _, e := range a.Driver().History() {
		if e.IsSystem() && e.Text == session.MsgSessionEnded {
			n++
		}
	}
	return n
}

func TestRunUntilGoodbye(t *testing.T) {
	a := newTestApp(t, testConfig(t), WithTranscriber(stt.NewMock("what time is it", "goodbye")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return countEnded(a) == 1 }, 5*time.Second, 5*time.Millisecond)
	h := a.Driver().History()
	// The goodbye turn ends the session without an exchange of its own.
	require.Len(t, h, 2)
	assert.Equal(t, "what time is it", h[0].Speaker)
	assert.Equal(t, turn.SystemEntry(session.MsgSessionEnded), h[1])
	assert.False(t, a.Driver().Active())

	// Restart resumes the loop; the scripted transcript says goodbye again.
	a.Driver().Restart()
	require.Eventually(t, func() bool { return countEnded(a) == 2 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRequiresInit(t *testing.T) {
	a := New(testConfig(t))
	assert.Error(t, a.Run(context.Background()))
}

func TestInit(t *testing.T) {
	t.Run("registry and primary voice", func(t *testing.T) {
		a := newTestApp(t, testConfig(t), WithTranscriber(stt.NewMock()))
		assert.Contains(t, a.Registry().Names(), "weather")
		assert.Nil(t, a.camera)
		assert.Nil(t, a.secondary)
	})

	t.Run("camera source", func(t *testing.T) {
		a := newTestApp(t, testConfig(t),
			WithTranscriber(stt.NewMock()),
			WithCameraSource(camera.NewStaticSource([]byte{0xFF, 0xD8})))
		require.NotNil(t, a.camera)
		require.NotNil(t, a.preview)

		frame, err := a.camera.Capture(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []byte{0xFF, 0xD8}, frame)
	})

	t.Run("google docs without credentials", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Export.GoogleDocs.Enabled = true
		a := newTestApp(t, cfg, WithTranscriber(stt.NewMock()))
		assert.Nil(t, a.google)
	})
}

func TestCheck(t *testing.T) {
	a := newTestApp(t, testConfig(t), WithTranscriber(stt.NewMock()))

	results := a.Check(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, "llm", results[0].Name)
	assert.Equal(t, "voice", results[1].Name)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestPortOf(t *testing.T) {
	assert.Equal(t, "7860", portOf("0.0.0.0:7860"))
	assert.Equal(t, "8080", portOf("localhost:8080"))
	assert.Equal(t, "7860", portOf("bad"))
}
