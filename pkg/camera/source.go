package camera

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrUnavailable is returned when no webcam backend was compiled in.
	ErrUnavailable = errors.New("camera: webcam not available in this build (rebuild with -tags gocv)")

	// ErrNoFrame is returned when the device produced no image.
	ErrNoFrame = errors.New("camera: no camera found or unable to capture image")
)

// Source produces JPEG frames.
type Source interface {
	Capture(ctx context.Context) ([]byte, error)
	Close() error
}

// Reconfigurer is implemented by sources that can apply a new Config.
type Reconfigurer interface {
	Reconfigure(cfg Config) error
}

// StaticSource returns the same frame every time. It stands in for a
// webcam in tests and headless runs.
type StaticSource struct {
	mu    sync.Mutex
	frame []byte
	err   error
}

// NewStaticSource returns a source yielding frame.
func NewStaticSource(frame []byte) *StaticSource {
	return &StaticSource{frame: frame}
}

// SetFrame replaces the frame, or makes Capture fail when err is non-nil.
func (s *StaticSource) SetFrame(frame []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame, s.err = frame, err
}

// Capture returns a copy of the frame.
func (s *StaticSource) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if len(s.frame) == 0 {
		return nil, ErrNoFrame
	}
	return append([]byte(nil), s.frame...), nil
}

// Close is a no-op.
func (s *StaticSource) Close() error { return nil }
