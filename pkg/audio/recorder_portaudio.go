//go:build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// FramesPerBuffer is the capture block size (64ms at 16kHz).
const FramesPerBuffer = 1024

// PortAudioRecorder captures from the default input device.
type PortAudioRecorder struct {
	cfg    ListenConfig
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewPortAudio initializes PortAudio. Call Close when done.
func NewPortAudio(cfg ListenConfig, logger *slog.Logger) (*PortAudioRecorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audio: initialize portaudio: %w", err)
	}
	return &PortAudioRecorder{
		cfg:    cfg,
		logger: logger.With("component", "audio.recorder"),
	}, nil
}

// Record opens the microphone, captures one phrase and writes it to dest.
func (r *PortAudioRecorder) Record(ctx context.Context, dest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("audio: recorder closed")
	}

	buf := make([]float32, FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.cfg.SampleRate), len(buf), buf)
	if err != nil {
		return fmt.Errorf("audio: open stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("audio: start stream: %w", err)
	}
	defer stream.Stop()

	r.logger.Info("adjusting for ambient noise")
	samples, err := listen(ctx, &streamReader{stream: stream, buf: buf}, r.cfg)
	if err != nil {
		return err
	}
	r.logger.Info("recording complete", "samples", len(samples))

	return SaveWAV(dest, samples, r.cfg.SampleRate)
}

// Close terminates PortAudio.
func (r *PortAudioRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return portaudio.Terminate()
}

type streamReader struct {
	stream *portaudio.Stream
	buf    []float32
}

func (s *streamReader) ReadFrame() ([]float32, error) {
	if err := s.stream.Read(); err != nil && err != portaudio.InputOverflowed {
		return nil, fmt.Errorf("audio: read: %w", err)
	}
	frame := make([]float32, len(s.buf))
	copy(frame, s.buf)
	return frame, nil
}
