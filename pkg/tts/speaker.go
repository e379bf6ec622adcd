package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Player plays an audio file to completion.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Speaker synthesizes text with one provider, saves it to a file and plays it.
type Speaker struct {
	provider Provider
	player   Player
	output   string
	logger   *slog.Logger
}

// NewSpeaker creates a Speaker writing to output. A nil player only saves.
func NewSpeaker(provider Provider, player Player, output string, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{
		provider: provider,
		player:   player,
		output:   output,
		logger:   logger.With("component", "tts.speaker", "provider", provider.Name()),
	}
}

// Speak synthesizes and plays text. Only synthesis and file errors are
// returned; playback problems are logged and the text reply stands.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	result, err := s.provider.Synthesize(ctx, text)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(s.output, result.Audio, 0o644); err != nil {
		return fmt.Errorf("save audio: %w", err)
	}

	if s.player == nil {
		return nil
	}
	if err := s.player.Play(ctx, s.output); err != nil {
		s.logger.Warn("playback failed", "file", s.output, "error", err)
	}
	return nil
}

// Provider returns the underlying provider.
func (s *Speaker) Provider() Provider {
	return s.provider
}
