//go:build gocv

package camera

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// warmupFrames are discarded after opening so auto exposure can settle.
const warmupFrames = 10

// Webcam captures from a local video device with OpenCV.
type Webcam struct {
	mu  sync.Mutex
	cfg Config
	cap *gocv.VideoCapture
	mat gocv.Mat
}

// OpenWebcam opens cfg.Device and applies the resolution and frame rate.
func OpenWebcam(cfg Config) (*Webcam, error) {
	w := &Webcam{cfg: cfg, mat: gocv.NewMat()}
	if err := w.open(); err != nil {
		w.mat.Close()
		return nil, err
	}
	return w, nil
}

func (w *Webcam) open() error {
	vc, err := gocv.OpenVideoCapture(w.cfg.Device)
	if err != nil {
		return fmt.Errorf("camera: open device %d: %w", w.cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return ErrNoFrame
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(w.cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(w.cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(w.cfg.FPS))
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	for i := 0; i < warmupFrames; i++ {
		vc.Read(&w.mat)
	}
	w.cap = vc
	return nil
}

// Capture grabs one frame and encodes it as JPEG.
func (w *Webcam) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cap == nil {
		return nil, ErrNoFrame
	}
	if ok := w.cap.Read(&w.mat); !ok || w.mat.Empty() {
		return nil, ErrNoFrame
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, w.mat, []int{gocv.IMWriteJpegQuality, w.cfg.Quality})
	if err != nil {
		return nil, fmt.Errorf("camera: encode jpeg: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

// Reconfigure reopens the device with cfg.
func (w *Webcam) Reconfigure(cfg Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cap != nil {
		w.cap.Close()
		w.cap = nil
	}
	w.cfg = cfg
	return w.open()
}

// Close releases the device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cap != nil {
		w.cap.Close()
		w.cap = nil
	}
	return w.mat.Close()
}
