package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNoPlayer is returned when no supported player binary is installed.
var ErrNoPlayer = errors.New("audio: no audio player found (install afplay, mpg123, ffplay or aplay)")

// CommandPlayer plays files by running a platform player binary.
type CommandPlayer struct {
	name string
	args []string

	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

// candidates lists players in preference order. aplay only handles WAV.
var candidates = map[string][][]string{
	"darwin":  {{"afplay"}, {"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}},
	"linux":   {{"mpg123", "-q"}, {"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}, {"aplay", "-q"}},
	"windows": {{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}},
}

// NewPlayer picks a player. A non-empty name forces that binary.
func NewPlayer(name string) *CommandPlayer {
	p := &CommandPlayer{
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
			if err != nil && len(out) > 0 {
				return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
			}
			return err
		},
	}
	if name != "" {
		p.name = name
		return p
	}
	for _, c := range candidates[runtime.GOOS] {
		if _, err := p.lookPath(c[0]); err == nil {
			p.name, p.args = c[0], c[1:]
			break
		}
	}
	return p
}

// Name returns the chosen binary, or "".
func (p *CommandPlayer) Name() string {
	return p.name
}

// Play blocks until playback finishes or ctx is done.
func (p *CommandPlayer) Play(ctx context.Context, path string) error {
	if p.name == "" {
		return ErrNoPlayer
	}
	if p.name == "aplay" && !strings.EqualFold(filepath.Ext(path), ".wav") {
		return fmt.Errorf("audio: aplay cannot play %s", filepath.Ext(path))
	}
	args := append(append([]string(nil), p.args...), path)
	if err := p.run(ctx, p.name, args...); err != nil {
		return fmt.Errorf("audio: %s: %w", p.name, err)
	}
	return nil
}
