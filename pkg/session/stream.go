package session

import (
	"context"
	"time"

	"github.com/teslashibe/go-assistant/pkg/turn"
)

// Stream runs turns while the session is active and sends a transcript
// snapshot after each one. The channel is unbuffered, so the next turn
// starts only after the previous snapshot was received. It closes when the
// session ends, the fault budget is spent or ctx is done.
func (d *Driver) Stream(ctx context.Context) <-chan []turn.Entry {
	out := make(chan []turn.Entry)

	go func() {
		defer close(out)

		faults := 0
		for d.Active() {
			history, err := d.runTurn(ctx)
			if ctx.Err() != nil {
				return
			}

			if err != nil {
				faults++
				if faults >= d.cfg.MaxConsecutiveFaults {
					send(ctx, out, d.stopAfterFaults(faults))
					return
				}
				if !send(ctx, out, history) || !sleep(ctx, d.cfg.RetryBackoff) {
					return
				}
				continue
			}

			faults = 0
			if !send(ctx, out, history) || !sleep(ctx, d.cfg.TurnPause) {
				return
			}
		}
	}()

	return out
}

func send(ctx context.Context, out chan<- []turn.Entry, history []turn.Entry) bool {
	select {
	case out <- history:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
