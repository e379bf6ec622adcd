package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileSink writes conversation-<timestamp>.log files into Dir.
type FileSink struct {
	Dir string
}

// NewFileSink returns a sink writing into dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

// Export writes t and returns the file path. An existing file is never
// overwritten; a numeric suffix is added instead.
func (s *FileSink) Export(ctx context.Context, t Transcript) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if t.Created.IsZero() {
		t.Created = time.Now()
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("export: %w", err)
	}

	base := "conversation-" + t.Created.Format("20060102-150405")
	data := []byte(Format(t))

	for i := 1; ; i++ {
		name := base + ".log"
		if i > 1 {
			name = fmt.Sprintf("%s-%d.log", base, i)
		}
		path := filepath.Join(s.Dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("export: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("export: write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("export: close %s: %w", path, err)
		}
		return path, nil
	}
}
