// Package notify shows desktop notifications.
package notify

import (
	"sync/atomic"

	"github.com/gen2brain/beeep"
)

const appName = "Assistant"

// maxBody is the longest message shown before truncation.
const maxBody = 100

// Notifier delivers a short user-facing notice.
type Notifier interface {
	Notify(title, message string) error
}

// Desktop sends notifications through the OS notification center.
type Desktop struct {
	enabled atomic.Bool
	send    func(title, message, icon string) error
}

// New returns a Desktop notifier.
func New(enabled bool) *Desktop {
	d := &Desktop{send: beeep.Notify}
	d.enabled.Store(enabled)
	return d
}

// SetEnabled turns notifications on or off.
func (d *Desktop) SetEnabled(enabled bool) {
	d.enabled.Store(enabled)
}

// Notify shows message. Disabled notifiers drop it silently.
func (d *Desktop) Notify(title, message string) error {
	if !d.enabled.Load() {
		return nil
	}
	if len(message) > maxBody {
		message = message[:maxBody] + "..."
	}
	if title != "" {
		title = appName + ": " + title
	} else {
		title = appName
	}
	return d.send(title, message, "")
}

// SessionEnded announces the end of a conversation.
func SessionEnded(n Notifier) error {
	return n.Notify("Session ended", "Say hello to start again!")
}

// Reminder shows a due reminder.
func Reminder(n Notifier, message string) error {
	return n.Notify("Reminder", message)
}

// Nop discards notifications.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(string, string) error { return nil }
