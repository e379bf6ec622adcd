package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-assistant/internal/config"
	"github.com/teslashibe/go-assistant/internal/log"
	"github.com/teslashibe/go-assistant/pkg/inference"
	"github.com/teslashibe/go-assistant/pkg/notify"
	"github.com/teslashibe/go-assistant/pkg/tools"
)

var invokeTimeout time.Duration

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the available tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, cleanup, err := standaloneRegistry(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		fmt.Println(reg.Capabilities())
		fmt.Println()
		fmt.Println("All tool names: " + strings.Join(reg.Names(), ", "))
		return nil
	},
}

var invokeCmd = &cobra.Command{
	Use:   "invoke <tool> [key=value ...]",
	Short: "Run one tool and print its result",
	Long: `Runs a single tool outside of a conversation.

Examples:
  assistant invoke weather city=Paris
  assistant invoke forecast city=Tokyo days=3
  assistant invoke calculator expression="(2+3)*4"
  assistant invoke search what is the speed of light`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {

		ctx, cancel := context.WithTimeout(cmd.Context(), invokeTimeout)
		defer cancel()

		reg, cleanup, err := standaloneRegistry(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		name := args[0]
		if !reg.Has(name) {
			return fmt.Errorf("unknown tool %q (available: %s)", name, strings.Join(reg.Names(), ", "))
		}
		fmt.Println(reg.Invoke(ctx, name, tools.ParseArgs(args[1:])))
		return nil
	},
}

func init() {
	invokeCmd.Flags().DurationVar(&invokeTimeout, "timeout", 30*time.Second, "tool timeout")
}

// standaloneRegistry builds the tools without a microphone or camera. With
// a Gemini key and grounded search enabled, search falls back to Gemini.
func standaloneRegistry(ctx context.Context, cfg *config.Config) (*tools.Registry, func(), error) {
	d := tools.Deps{
		Notifier:       notify.New(cfg.Notify.Enabled),
		OpenWeatherKey: cfg.Tools.OpenWeatherKey,
		FilesRoot:      cfg.Tools.FilesRoot,
		VisionModel:    cfg.Vision.Model,
		Logger:         log.Component("tools"),
	}

	cleanup := func() {}
	if cfg.LLM.APIKey != "" && cfg.Tools.GroundedSearch {
		g, err := inference.NewGemini(ctx, inference.WithAPIKey(cfg.LLM.APIKey), inference.WithModel(cfg.LLM.Model))
		if err == nil {
			d.Searcher = g
			cleanup = func() { g.Close() }
		}
	}

	reg, err := tools.NewDefault(d)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return reg, cleanup, nil
}
