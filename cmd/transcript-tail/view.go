package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/teslashibe/go-assistant/pkg/protocol"
	"github.com/teslashibe/go-assistant/pkg/turn"
)

type theme struct {
	header lipgloss.Style
	user   lipgloss.Style
	reply  lipgloss.Style
	system lipgloss.Style
	tool   lipgloss.Style
	notice lipgloss.Style
}

func newTheme(plain bool) theme {
	if plain {
		s := lipgloss.NewStyle()
		return theme{header: s, user: s, reply: s, system: s, tool: s, notice: s}
	}
	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#01cdfe")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#01cdfe")),
		user:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff71ce")),
		reply:  lipgloss.NewStyle().Foreground(lipgloss.Color("#f3f3ff")).PaddingLeft(2),
		system: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#9ca3d8")),
		tool:   lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1")),
		notice: lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb86c")),
	}
}

// view turns full transcript snapshots into the lines not yet printed.
type view struct {
	theme   theme
	session string
	printed []turn.Entry
}

func newView(t theme) *view {
	return &view{theme: t}
}

// Update returns the lines for entries added since the last snapshot. A new
// session, or a snapshot that no longer extends what was printed, starts
// over with a header.
func (v *view) Update(t *protocol.TranscriptData) []string {
	var lines []string
	if t.SessionID != v.session || !extends(t.Entries, v.printed) {
		v.session = t.SessionID
		v.printed = nil
		lines = append(lines, v.theme.header.Render(fmt.Sprintf("Session %s", shortID(t.SessionID))))
	}

	for _, e := range t.Entries[len(v.printed):] {
		lines = append(lines, v.render(e)...)
	}
	v.printed = append(v.printed[:0:0], t.Entries...)

	if !t.Active && len(lines) > 0 {
		lines = append(lines, v.theme.notice.Render("(session inactive)"))
	}
	return lines
}

func (v *view) render(e turn.Entry) []string {
	switch {
	case e.IsSystem():
		return []string{v.theme.system.Render("• " + e.Text)}
	case strings.HasPrefix(e.Speaker, "🔧"):
		return []string{v.theme.tool.Render(e.Speaker), v.theme.reply.Render(e.Text)}
	default:
		return []string{v.theme.user.Render("> " + e.Speaker), v.theme.reply.Render(e.Text)}
	}
}

func extends(entries, prefix []turn.Entry) bool {
	if len(entries) < len(prefix) {
		return false
	}
	for i := range prefix {
		if entries[i] != prefix[i] {
			return false
		}
	}
	return true
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
