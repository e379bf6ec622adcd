package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-assistant/pkg/turn"
)

func collect(ch <-chan []turn.Entry) [][]turn.Entry {
	var out [][]turn.Entry
	for h := range ch {
		out = append(out, h)
	}
	return out
}

func TestStream(t *testing.T) {
	t.Run("stops at session end", func(t *testing.T) {
		n := 0
		d := New(executorFunc(func(_ context.Context, s *turn.State) error {
			n++
			s.ChatHistory = append(s.ChatHistory, turn.Entry{Speaker: fmt.Sprint(n), Text: "ok"})
			if n == 3 {
				s.SessionActive = false
			}
			return nil
		}), testConfig(t))

		got := collect(d.Stream(context.Background()))
		require.Len(t, got, 3)
		assert.Len(t, got[0], 1)
		assert.Len(t, got[1], 2)
		assert.Equal(t, MsgSessionEnded, got[2][3].Text)
	})

	t.Run("stops after consecutive faults", func(t *testing.T) {
		d := New(executorFunc(func(context.Context, *turn.State) error {
			return errors.New("boom")
		}), testConfig(t))

		got := collect(d.Stream(context.Background()))
		require.Len(t, got, 3)
		last := got[2]
		assert.Equal(t, "Too many consecutive errors (3). Session stopped; restart to continue.", last[len(last)-1].Text)
		assert.False(t, d.Active())
	})

	t.Run("success resets fault count", func(t *testing.T) {
		n := 0
		d := New(executorFunc(func(_ context.Context, s *turn.State) error {
			n++
			switch n {
			case 1, 2, 4, 5:
				return errors.New("boom")
			case 3:
				return nil
			}
			s.SessionActive = false
			return nil
		}), testConfig(t))

		got := collect(d.Stream(context.Background()))
		assert.Len(t, got, 6)
		assert.Equal(t, 6, n)
	})

	t.Run("context cancel closes", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		d := New(reply("hi", "hello"), testConfig(t))

		ch := d.Stream(ctx)
		<-ch
		cancel()
		for range ch {
		}
		assert.True(t, d.Active())
	})
}
