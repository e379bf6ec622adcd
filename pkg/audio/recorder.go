// Package audio records spoken utterances to WAV files and plays synthesized
// replies through the platform's command-line player.
package audio

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	// ErrListenTimeout is returned when nobody starts speaking in time.
	ErrListenTimeout = errors.New("audio: listening timed out while waiting for phrase to start")

	// ErrUnavailable is returned when no capture backend was compiled in.
	ErrUnavailable = errors.New("audio: microphone capture not available in this build (rebuild with -tags portaudio)")
)

// Recorder captures one utterance into dest.
type Recorder interface {
	Record(ctx context.Context, dest string) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, dest string) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, dest string) error {
	return f(ctx, dest)
}

// ListenConfig tunes phrase detection.
type ListenConfig struct {
	SampleRate int

	// AmbientDuration is spent measuring background noise before listening.
	AmbientDuration time.Duration

	// ListenTimeout bounds the wait for speech to start. Zero waits forever.
	ListenTimeout time.Duration

	// PhraseTimeLimit caps the phrase length. Zero means no cap.
	PhraseTimeLimit time.Duration

	// PauseDuration of silence ends the phrase.
	PauseDuration time.Duration

	// PreRoll keeps audio from just before speech was detected.
	PreRoll time.Duration

	// MinThreshold is the floor for the speech energy threshold (RMS, 0-1).
	MinThreshold float64

	// ThresholdRatio scales the ambient level into the speech threshold.
	ThresholdRatio float64
}

// DefaultListenConfig returns settings close to common speech recognizers.
func DefaultListenConfig() ListenConfig {
	return ListenConfig{
		SampleRate:      16000,
		AmbientDuration: time.Second,
		ListenTimeout:   20 * time.Second,
		PauseDuration:   800 * time.Millisecond,
		PreRoll:         500 * time.Millisecond,
		MinThreshold:    0.01,
		ThresholdRatio:  1.5,
	}
}

// frameReader yields consecutive mono frames of float32 samples in [-1, 1].
type frameReader interface {
	ReadFrame() ([]float32, error)
}

// listen calibrates against ambient noise, waits for speech and returns the
// phrase samples.
func listen(ctx context.Context, src frameReader, cfg ListenConfig) ([]float32, error) {
	rate := float64(cfg.SampleRate)
	dur := func(n int) time.Duration {
		return time.Duration(float64(n) / rate * float64(time.Second))
	}

	threshold := cfg.MinThreshold
	var ambient, ambientFrames float64
	for calibrated := time.Duration(0); calibrated < cfg.AmbientDuration; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := src.ReadFrame()
		if err != nil {
			return nil, err
		}
		ambient += RMS(frame)
		ambientFrames++
		calibrated += dur(len(frame))
	}
	if ambientFrames > 0 {
		threshold = math.Max(threshold, ambient/ambientFrames*cfg.ThresholdRatio)
	}

	var (
		preRoll []float32
		waited  time.Duration
		maxPre  = int(cfg.PreRoll.Seconds() * rate)
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := src.ReadFrame()
		if err != nil {
			return nil, err
		}
		if RMS(frame) > threshold {
			phrase := append(preRoll, frame...)
			return capturePhrase(ctx, src, cfg, threshold, phrase, dur)
		}
		waited += dur(len(frame))
		if cfg.ListenTimeout > 0 && waited >= cfg.ListenTimeout {
			return nil, ErrListenTimeout
		}
		preRoll = append(preRoll, frame...)
		if len(preRoll) > maxPre {
			preRoll = preRoll[len(preRoll)-maxPre:]
		}
	}
}

func capturePhrase(ctx context.Context, src frameReader, cfg ListenConfig, threshold float64, phrase []float32, dur func(int) time.Duration) ([]float32, error) {
	var silence, length time.Duration
	for {
		if cfg.PhraseTimeLimit > 0 && length >= cfg.PhraseTimeLimit {
			return phrase, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := src.ReadFrame()
		if err != nil {
			return nil, err
		}
		phrase = append(phrase, frame...)
		length += dur(len(frame))

		if RMS(frame) > threshold {
			silence = 0
			continue
		}
		silence += dur(len(frame))
		if silence >= cfg.PauseDuration {
			return phrase, nil
		}
	}
}

// RMS returns the root mean square level of samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
