package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/go-assistant/pkg/notify"
)

const defaultReminderMinutes = 5

// Reminders schedules notifications for the reminder tool.
type Reminders struct {
	notifier notify.Notifier

	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
}

// NewReminders returns a scheduler that delivers through n. A nil n only
// confirms reminders without notifying.
func NewReminders(n notify.Notifier) *Reminders {
	return &Reminders{notifier: n, timers: make(map[*time.Timer]struct{})}
}

// Schedule fires message after d.
func (r *Reminders) Schedule(d time.Duration, message string) {
	if r.notifier == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		r.mu.Lock()
		delete(r.timers, t)
		r.mu.Unlock()
		_ = notify.Reminder(r.notifier, message)
	})
	r.timers[t] = struct{}{}
}

// Pending returns the number of reminders not yet delivered.
func (r *Reminders) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Stop cancels every pending reminder and refuses new ones.
func (r *Reminders) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for t := range r.timers {
		t.Stop()
	}
	clear(r.timers)
}

func reminder(r *Reminders, now func() time.Time) Handler {
	return func(_ context.Context, args Args) (string, error) {
		message := args.String("message", "")
		minutes := max(args.Int("minutes", defaultReminderMinutes), 0)

		d := time.Duration(minutes) * time.Minute
		r.Schedule(d, message)
		return fmt.Sprintf("⏰ Reminder set for %s: %s", now().Add(d).Format("03:04 PM"), message), nil
	}
}
