// Package export writes conversation transcripts to external sinks.
//
// The log format is plain text: a header of "Key: value" lines, a rule,
// then one block per entry. Entry text is indented so multi-line replies
// survive a round trip through ParseLog.
package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-assistant/pkg/turn"
)

// Transcript is an exported conversation.
type Transcript struct {
	Title     string
	SessionID string
	Created   time.Time
	Entries   []turn.Entry
}

// Sink stores a transcript and returns where it went.
type Sink interface {
	Export(ctx context.Context, t Transcript) (string, error)
}

const (
	rule   = "========================================"
	indent = "    "
)

var entryHeadRe = regexp.MustCompile(`^\[(\d+)\] (.*)$`)

// Format renders t in the log format.
func Format(t Transcript) string {
	var b strings.Builder
	title := t.Title
	if title == "" {
		title = "Conversation Log"
	}
	fmt.Fprintf(&b, "Title: %s\n", title)
	fmt.Fprintf(&b, "Exported: %s\n", t.Created.Format(time.DateTime))
	if t.SessionID != "" {
		fmt.Fprintf(&b, "Session: %s\n", t.SessionID)
	}
	fmt.Fprintf(&b, "Entries: %d\n", len(t.Entries))
	b.WriteString(rule + "\n")

	for i, e := range t.Entries {
		fmt.Fprintf(&b, "\n[%d] %s\n", i+1, e.Speaker)
		for _, line := range strings.Split(e.Text, "\n") {
			b.WriteString(indent + line + "\n")
		}
	}
	return b.String()
}

// ParseLog reads a transcript written by Format.
func ParseLog(r io.Reader) (Transcript, error) {
	var (
		t        Transcript
		want     = -1
		inHeader = true
		cur      *turn.Entry
		lines    []string
	)

	flush := func() {
		if cur != nil {
			cur.Text = strings.Join(lines, "\n")
			t.Entries = append(t.Entries, *cur)
			cur, lines = nil, nil
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()

		if inHeader {
			if line == rule {
				inHeader = false
				continue
			}
			key, value, ok := strings.Cut(line, ": ")
			if !ok {
				return t, fmt.Errorf("export: line %d: malformed header %q", n, line)
			}
			switch key {
			case "Title":
				t.Title = value
			case "Exported":
				ts, err := time.ParseInLocation(time.DateTime, value, time.Local)
				if err != nil {
					return t, fmt.Errorf("export: line %d: %w", n, err)
				}
				t.Created = ts
			case "Session":
				t.SessionID = value
			case "Entries":
				c, err := strconv.Atoi(value)
				if err != nil {
					return t, fmt.Errorf("export: line %d: %w", n, err)
				}
				want = c
			}
			continue
		}

		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, indent) && cur != nil:
			lines = append(lines, strings.TrimPrefix(line, indent))
		default:
			m := entryHeadRe.FindStringSubmatch(line)
			if m == nil {
				return t, fmt.Errorf("export: line %d: unexpected %q", n, line)
			}
			flush()
			cur = &turn.Entry{Speaker: m[2]}
		}
	}
	if err := sc.Err(); err != nil {
		return t, fmt.Errorf("export: %w", err)
	}
	flush()

	if inHeader {
		return t, errors.New("export: missing header rule")
	}
	if want >= 0 && want != len(t.Entries) {
		return t, fmt.Errorf("export: header lists %d entries, found %d", want, len(t.Entries))
	}
	return t, nil
}

// MultiSink exports to every sink in order. It reports all failures and
// the locations of the sinks that succeeded.
type MultiSink []Sink

// Export writes t to each sink.
func (m MultiSink) Export(ctx context.Context, t Transcript) (string, error) {
	var (
		locs []string
		errs []error
	)
	for _, s := range m {
		loc, err := s.Export(ctx, t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		locs = append(locs, loc)
	}
	return strings.Join(locs, ", "), errors.Join(errs...)
}
