package camera

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrPreviewRunning is returned by Start when the preview is already on.
var ErrPreviewRunning = errors.New("camera: preview already running")

// FrameCapturer is the part of Manager the preview needs.
type FrameCapturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Status describes the preview loop.
type Status struct {
	Running      bool   `json:"is_running"`
	Frames       uint64 `json:"frames"`
	HasLastFrame bool   `json:"has_last_frame"`
	LastError    string `json:"last_error,omitempty"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FPS          int    `json:"fps"`
}

// Preview captures frames at a fixed rate and hands them to Publish.
type Preview struct {
	capturer FrameCapturer
	publish  func(frame []byte)
	cfg      func() Config

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	frames    uint64
	lastFrame []byte
	lastErr   error
}

// NewPreview returns a stopped preview over m.
func NewPreview(m *Manager, publish func(frame []byte)) *Preview {
	return &Preview{capturer: m, publish: publish, cfg: m.GetConfig}
}

// Start launches the capture loop. It stops when ctx is done or Stop is
// called.
func (p *Preview) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrPreviewRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
	return nil
}

// Stop halts the loop and waits for it to exit. The last frame is kept.
func (p *Preview) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (p *Preview) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// LastFrame returns the most recent frame, or nil.
func (p *Preview) LastFrame() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFrame
}

// Status reports the loop state and the active configuration.
func (p *Preview) Status() Status {
	cfg := p.cfg()

	p.mu.Lock()
	defer p.mu.Unlock()

	s := Status{
		Running:      p.cancel != nil,
		Frames:       p.frames,
		HasLastFrame: p.lastFrame != nil,
		Width:        cfg.Width,
		Height:       cfg.Height,
		FPS:          cfg.FPS,
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	return s
}

func (p *Preview) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	fps := p.cfg().FPS
	if fps <= 0 {
		fps = DefaultConfig().FPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := p.capturer.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.mu.Lock()
			p.lastErr = err
			p.mu.Unlock()
			continue
		}

		p.mu.Lock()
		p.frames++
		p.lastFrame = frame
		p.lastErr = nil
		p.mu.Unlock()

		if p.publish != nil {
			p.publish(frame)
		}
	}
}
