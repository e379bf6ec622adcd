package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileRecorder "records" by copying a prepared audio file, for replaying a
// fixed utterance without a microphone.
type FileRecorder struct {
	Source string
}

// Record copies Source to dest.
func (r FileRecorder) Record(ctx context.Context, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(r.Source)
	if err != nil {
		return fmt.Errorf("audio: read %s: %w", r.Source, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("audio: create dir: %w", err)
	}
	return os.WriteFile(dest, data, 0o644)
}
