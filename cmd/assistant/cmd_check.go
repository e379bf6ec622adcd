package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-assistant/internal/log"
	"github.com/teslashibe/go-assistant/pkg/app"
	"github.com/teslashibe/go-assistant/pkg/audio"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and ping the model and voice providers",
	RunE: func(cmd *cobra.Command, args []string) error {

		fmt.Println("🔧 Configuration")
		fmt.Print(cfg.Summary())
		if err := cfg.Validate(); err != nil {
			fmt.Printf("\n❌ Invalid configuration:\n%v\n", err)
			return fmt.Errorf("configuration is invalid")
		}
		fmt.Println("✅ Configuration is valid")

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		// The microphone is not needed to ping providers.
		cfg.Camera.Enabled = false
		a := app.New(cfg,
			app.WithLogger(log.Discard()),
			app.WithRecorder(audio.RecorderFunc(func(context.Context, string) error { return nil })),
		)
		if err := a.Init(ctx); err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		defer a.Shutdown()

		fmt.Println("\n🩺 Providers")
		failed := 0
		for _, r := range a.Check(ctx) {
			if r.Err != nil {
				failed++
				fmt.Printf("  ❌ %-13s %v\n", r.Name, r.Err)
				continue
			}
			fmt.Printf("  ✅ %-13s %dms\n", r.Name, r.Latency.Milliseconds())
		}
		if failed > 0 {
			return fmt.Errorf("%d provider check(s) failed", failed)
		}
		return nil
	},
}
