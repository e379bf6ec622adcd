package tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	maxListedFiles = 20
	maxReadChars   = 1000
)

type fileTool struct {
	root string
}

func (f *fileTool) resolve(p string) string {
	if f.root == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(f.root, p)
}

func (f *fileTool) list(_ context.Context, args Args) (string, error) {
	dir := args.String("directory", ".")

	entries, err := os.ReadDir(f.resolve(dir))
	if err != nil {
		return "File listing error: " + err.Error(), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📁 Files in '%s':\n", dir)
	for _, e := range entries[:min(len(entries), maxListedFiles)] {
		if e.IsDir() {
			fmt.Fprintf(&b, "   📂 %s/\n", e.Name())
			continue
		}
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		fmt.Fprintf(&b, "   📄 %s (%d bytes)\n", e.Name(), size)
	}
	if len(entries) > maxListedFiles {
		fmt.Fprintf(&b, "   ... and %d more files\n", len(entries)-maxListedFiles)
	}
	return b.String(), nil
}

func (f *fileTool) read(_ context.Context, args Args) (string, error) {
	name := args.String("filename", "")
	if name == "" {
		return "Please provide a filename", nil
	}

	file, err := os.Open(f.resolve(name))
	if err != nil {
		return "File reading error: " + err.Error(), nil
	}
	defer file.Close()

	limit := args.Int("max_chars", maxReadChars)
	if limit <= 0 {
		limit = maxReadChars
	}
	raw, err := io.ReadAll(io.LimitReader(file, int64(limit*utf8.UTFMax)))
	if err != nil {
		return "File reading error: " + err.Error(), nil
	}
	raw = raw[:len(raw)-trailingPartial(raw)]
	if !utf8.Valid(raw) {
		return "File reading error: file is not valid UTF-8 text", nil
	}

	content := string(raw)
	truncated := false
	if utf8.RuneCountInString(content) >= limit {
		content = string([]rune(content)[:limit])
		truncated = true
	}

	out := fmt.Sprintf("📄 Content of '%s':\n\n%s", name, content)
	if truncated {
		out += fmt.Sprintf("\n\n... (truncated to %d characters)", limit)
	}
	return out, nil
}

// trailingPartial is the length of an incomplete rune cut off by the read
// limit.
func trailingPartial(b []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return i
			}
			return 0
		}
	}
	return 0
}
