package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAudio(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "turn.wav")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestWhisperTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-large-v3", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "turn.wav", hdr.Filename)
		assert.Equal(t, "RIFF", string(data))

		w.Write([]byte(`{"text":"  what's the weather in Paris  "}`))
	}))
	defer server.Close()

	w, err := NewWhisper(WithAPIKey("key"), WithBaseURL(server.URL+"/"))
	require.NoError(t, err)

	text, err := w.Transcribe(context.Background(), writeAudio(t, "RIFF"))
	require.NoError(t, err)
	assert.Equal(t, "what's the weather in Paris", text)
}

func TestWhisperErrors(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		_, err := NewWhisper()
		assert.ErrorIs(t, err, ErrNoAPIKey)
	})

	t.Run("missing file", func(t *testing.T) {
		w, err := NewWhisper(WithAPIKey("k"))
		require.NoError(t, err)
		_, err = w.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
		assert.Error(t, err)
	})

	t.Run("empty file", func(t *testing.T) {
		w, err := NewWhisper(WithAPIKey("k"))
		require.NoError(t, err)
		_, err = w.Transcribe(context.Background(), writeAudio(t, ""))
		assert.ErrorIs(t, err, ErrEmptyAudio)
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"audio too short"}}`))
		}))
		defer server.Close()

		w, err := NewWhisper(WithAPIKey("k"), WithBaseURL(server.URL), WithRetry(3, time.Millisecond))
		require.NoError(t, err)

		_, err = w.Transcribe(context.Background(), writeAudio(t, "RIFF"))
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "audio too short", apiErr.Message)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("server error is retried", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"text":"ok"}`))
		}))
		defer server.Close()

		w, err := NewWhisper(WithAPIKey("k"), WithBaseURL(server.URL), WithRetry(2, time.Millisecond))
		require.NoError(t, err)

		text, err := w.Transcribe(context.Background(), writeAudio(t, "RIFF"))
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
	})
}

func TestMockRepeatsLastTranscript(t *testing.T) {
	m := NewMock("one", "two")
	ctx := context.Background()

	for _, want := range []string{"one", "two", "two"} {
		got, err := m.Transcribe(ctx, "a.wav")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Len(t, m.Paths(), 3)
}
