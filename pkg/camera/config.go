// Package camera captures webcam frames for the live preview and the vision
// tool.
package camera

import (
	"errors"
	"fmt"
)

// Config is the webcam setup. The Manager applies changes at runtime.
type Config struct {
	Device  int `json:"device"`
	Width   int `json:"width"`
	Height  int `json:"height"`
	FPS     int `json:"fps"`
	Quality int `json:"quality"` // JPEG, 1-100
}

// DefaultConfig is VGA at 30 fps.
func DefaultConfig() Config {
	return Config{Width: 640, Height: 480, FPS: 30, Quality: 85}
}

// Validate reports every field outside its accepted range.
func (c Config) Validate() error {
	checks := []struct {
		name     string
		v        int
		min, max int
	}{
		{"device", c.Device, 0, 64},
		{"width", c.Width, 160, 3840},
		{"height", c.Height, 120, 2160},
		{"fps", c.FPS, 1, 120},
		{"quality", c.Quality, 1, 100},
	}

	var errs []error
	for _, ck := range checks {
		if ck.v < ck.min || ck.v > ck.max {
			errs = append(errs, fmt.Errorf("%s %d out of range [%d, %d]", ck.name, ck.v, ck.min, ck.max))
		}
	}
	return errors.Join(errs...)
}
