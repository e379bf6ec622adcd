//go:build !portaudio

package audio

import (
	"context"
	"log/slog"
)

// PortAudioRecorder is unavailable without the portaudio build tag.
type PortAudioRecorder struct{}

// NewPortAudio returns ErrUnavailable in builds without PortAudio.
func NewPortAudio(cfg ListenConfig, logger *slog.Logger) (*PortAudioRecorder, error) {
	return nil, ErrUnavailable
}

// Record always fails.
func (r *PortAudioRecorder) Record(ctx context.Context, dest string) error {
	return ErrUnavailable
}

// Close is a no-op.
func (r *PortAudioRecorder) Close() error { return nil }
