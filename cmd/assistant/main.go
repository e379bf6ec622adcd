// Command assistant runs the voice assistant with its web surface.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-assistant/internal/config"
	"github.com/teslashibe/go-assistant/internal/log"
	"github.com/teslashibe/go-assistant/pkg/app"
	"github.com/teslashibe/go-assistant/pkg/audio"
)

var (
	configPath string
	logLevel   string
	port       int
	noTools    bool
	noCamera   bool
	replayFile string

	// cfg is loaded once before any command runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Voice assistant with tools, spoken replies and a live web transcript",
	Long: `assistant listens on the microphone, transcribes what you say, picks a
tool when the request needs one, answers with the configured model and speaks
the reply. The transcript, camera preview and controls are served on the web UI.

Say "goodbye" to end the session; clear or restart it from the UI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = c
		log.Init(cfg.LogLevel)
		return nil
	},
	RunE: runAssistant,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "web UI port (overrides config)")
	rootCmd.Flags().BoolVar(&noTools, "no-tools", false, "start with tools disabled")
	rootCmd.Flags().BoolVar(&noCamera, "no-camera", false, "do not open the webcam")
	rootCmd.Flags().StringVar(&replayFile, "replay", "", "use this WAV file as every utterance instead of the microphone")

	rootCmd.AddCommand(toolsCmd, invokeCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if cmd.Flags().Changed("port") {
		c.UI.Port = port
	}
	if noTools {
		c.Workflow.ToolsEnabled = false
	}
	if noCamera {
		c.Camera.Enabled = false
	}
	return c, nil
}

func runAssistant(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error:\n%w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var opts []app.Option
	opts = append(opts, app.WithLogger(log.L()))
	if replayFile != "" {
		opts = append(opts, app.WithRecorder(audio.FileRecorder{Source: replayFile}))
	}

	a := app.New(cfg, opts...)
	if err := a.Init(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer a.Shutdown()

	fmt.Print(cfg.Summary())
	fmt.Println("\n🎤 Listening. Say \"goodbye\" to end the session (Ctrl+C to exit)")

	return a.Run(ctx)
}
