//go:build !gocv

package camera

import "context"

// Webcam is unavailable without the gocv build tag.
type Webcam struct{}

// OpenWebcam returns ErrUnavailable in builds without OpenCV.
func OpenWebcam(cfg Config) (*Webcam, error) {
	return nil, ErrUnavailable
}

// Capture always fails.
func (w *Webcam) Capture(ctx context.Context) ([]byte, error) {
	return nil, ErrUnavailable
}

// Reconfigure always fails.
func (w *Webcam) Reconfigure(cfg Config) error {
	return ErrUnavailable
}

// Close is a no-op.
func (w *Webcam) Close() error { return nil }
