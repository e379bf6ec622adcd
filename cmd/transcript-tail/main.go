// Command transcript-tail follows a running assistant's transcript from a
// terminal.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-assistant/pkg/protocol"
)

var (
	addr      string
	reconnect time.Duration
	plain     bool
)

var rootCmd = &cobra.Command{
	Use:          "transcript-tail",
	Short:        "Print the assistant transcript as it grows",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		u := url.URL{Scheme: "ws", Host: addr, Path: "/ws/transcript"}
		v := newView(newTheme(plain))

		for {
			err := follow(ctx, u.String(), v)
			if ctx.Err() != nil {
				return nil
			}
			if reconnect <= 0 {
				return err
			}
			fmt.Fprintln(os.Stderr, v.theme.notice.Render(fmt.Sprintf("disconnected (%v), retrying in %s", err, reconnect)))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(reconnect):
			}
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&addr, "addr", "a", "localhost:7860", "assistant web address (host:port)")
	rootCmd.Flags().DurationVar(&reconnect, "reconnect", 2*time.Second, "delay before reconnecting; 0 exits on disconnect")
	rootCmd.Flags().BoolVar(&plain, "plain", false, "disable colors")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// follow streams transcript snapshots from wsURL into v until the
// connection drops or ctx ends.
func follow(ctx context.Context, wsURL string, v *view) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil || msg.Type != protocol.TypeTranscript {
			continue
		}
		t, err := msg.GetTranscript()
		if err != nil {
			continue
		}
		for _, line := range v.Update(t) {
			fmt.Println(line)
		}
	}
}
