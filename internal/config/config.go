// Package config loads assistant configuration from YAML with environment
// overrides for API keys and a few operational knobs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the assistant looks for a config file when none is given.
const DefaultPath = "assistant.yaml"

// Config is the full application configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Audio    AudioConfig    `yaml:"audio"`
	Camera   CameraConfig   `yaml:"camera"`
	UI       UIConfig       `yaml:"ui"`
	Workflow WorkflowConfig `yaml:"workflow"`
	LLM      LLMConfig      `yaml:"llm"`
	STT      STTConfig      `yaml:"stt"`
	Vision   VisionConfig   `yaml:"vision"`
	TTS      TTSConfig      `yaml:"tts"`
	Tools    ToolsConfig    `yaml:"tools"`
	Export   ExportConfig   `yaml:"export"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// AudioConfig controls recording and playback.
type AudioConfig struct {
	// Dir holds per-turn recordings.
	Dir             string        `yaml:"dir"`
	OutputFile      string        `yaml:"output_file"`
	SampleRate      int           `yaml:"sample_rate"`
	ListenTimeout   time.Duration `yaml:"listen_timeout"`
	PhraseTimeLimit time.Duration `yaml:"phrase_time_limit"`
	KeepRecordings  bool          `yaml:"keep_recordings"`
	Player          string        `yaml:"player"`
}

// CameraConfig controls the webcam used for previews and the vision tool.
type CameraConfig struct {
	Enabled bool `yaml:"enabled"`
	Device  int  `yaml:"device"`
	Width   int  `yaml:"width"`
	Height  int  `yaml:"height"`
	FPS     int  `yaml:"fps"`
}

// UIConfig controls the web surface.
type UIConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

// Addr returns host:port for the listener.
func (u UIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}

// WorkflowConfig controls the turn loop.
type WorkflowConfig struct {
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	TurnPause         time.Duration `yaml:"turn_pause"`
	ProcessingTimeout time.Duration `yaml:"processing_timeout"`
	ToolsEnabled      bool          `yaml:"tools_enabled"`
	ExitKeywords      []string      `yaml:"exit_keywords"`
}

// LLMConfig selects the response model.
type LLMConfig struct {
	Provider     string  `yaml:"provider"` // gemini, openai
	Model        string  `yaml:"model"`
	Temperature  float64 `yaml:"temperature"`
	SystemPrompt string  `yaml:"system_prompt"`
	ToolRounds   int     `yaml:"tool_rounds"` // tool exchanges per reply, 0 answers without tools
	APIKey       string  `yaml:"-"`
	OpenAIKey    string  `yaml:"-"`
}

// STTConfig configures Whisper transcription on Groq.
type STTConfig struct {
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	APIKey   string `yaml:"-"`
}

// VisionConfig configures the image analysis model.
type VisionConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// TTSConfig configures primary and backup voices.
type TTSConfig struct {
	Primary      string `yaml:"primary"` // elevenlabs, openai
	VoiceID      string `yaml:"voice_id"`
	Model        string `yaml:"model"`
	OutputFormat string `yaml:"output_format"`
	Language     string `yaml:"language"`
	APIKey       string `yaml:"-"`
	OpenAIKey    string `yaml:"-"`
}

// ToolsConfig holds tool credentials.
type ToolsConfig struct {
	OpenWeatherKey string `yaml:"-"`
	GroundedSearch bool   `yaml:"grounded_search"`
	FilesRoot      string `yaml:"files_root"`
}

// ExportConfig controls where transcripts are written.
type ExportConfig struct {
	Dir        string           `yaml:"dir"`
	GoogleDocs GoogleDocsConfig `yaml:"google_docs"`
}

// GoogleDocsConfig enables exporting to Google Docs.
type GoogleDocsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	TokenPath    string `yaml:"token_path"`
	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
}

// NotifyConfig toggles desktop notifications.
type NotifyConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns configuration with every default filled in.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Dir:           filepath.Join(os.TempDir(), "assistant-audio"),
			OutputFile:    "final.mp3",
			SampleRate:    16000,
			ListenTimeout: 20 * time.Second,
		},
		Camera: CameraConfig{
			Enabled: true,
			Width:   640,
			Height:  480,
			FPS:     30,
		},
		UI: UIConfig{
			Host:      "0.0.0.0",
			Port:      7860,
			StaticDir: "./web",
		},
		Workflow: WorkflowConfig{
			MaxRetries:        3,
			RetryDelay:        2 * time.Second,
			TurnPause:         100 * time.Millisecond,
			ProcessingTimeout: 30 * time.Second,
			ToolsEnabled:      true,
			ExitKeywords:      []string{"goodbye"},
		},
		LLM: LLMConfig{
			Provider:     "gemini",
			Model:        "gemini-2.0-flash",
			Temperature:  0.7,
			SystemPrompt: DefaultPersona,
			ToolRounds:   4,
		},
		STT: STTConfig{
			BaseURL:  "https://api.groq.com/openai/v1",
			Model:    "whisper-large-v3",
			Language: "en",
		},
		Vision: VisionConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "meta-llama/llama-4-maverick-17b-128e-instruct",
		},
		TTS: TTSConfig{
			Primary:      "elevenlabs",
			Model:        "eleven_multilingual_v2",
			OutputFormat: "mp3_22050_32",
			Language:     "en",
		},
		Export: ExportConfig{
			Dir: "exports",
		},
		Notify: NotifyConfig{Enabled: true},
	}
}

// DefaultPersona is the responder's system prompt.
const DefaultPersona = `You are SharryBoii - a witty, clever, and helpful assistant.
Here's how you operate:
- When tool results are included in the query, weave them into your answer instead of repeating them verbatim.
- Keep replies short enough to be spoken aloud: two or three sentences unless asked for more.
- Always present results in a natural, witty, and human-sounding way.
Your job is to make every interaction feel smart, snappy, and personable.`

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// Save writes the configuration as YAML. Secrets are never written.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv applies environment variable overrides.
func (c *Config) ApplyEnv() {
	c.STT.APIKey = firstEnv("GROQ_API_KEY")
	c.LLM.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	c.LLM.OpenAIKey = firstEnv("OPENAI_API_KEY")
	c.TTS.APIKey = firstEnv("ELEVENLABS_API_KEY", "ELEVEN_LABS_API_KEY")
	c.TTS.OpenAIKey = c.LLM.OpenAIKey
	c.Tools.OpenWeatherKey = firstEnv("OPENWEATHER_API_KEY")
	c.Export.GoogleDocs.ClientID = firstEnv("GOOGLE_CLIENT_ID")
	c.Export.GoogleDocs.ClientSecret = firstEnv("GOOGLE_CLIENT_SECRET")

	if v := firstEnv("ELEVENLABS_VOICE_ID", "Voice_id"); v != "" {
		c.TTS.VoiceID = v
	}
	if v := firstEnv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := firstEnv("ASSISTANT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.UI.Port = port
		}
	}
}

// Validate checks that required configuration is present and sane.
func (c *Config) Validate() error {
	var errs []error
	if c.STT.APIKey == "" {
		errs = append(errs, &FieldError{Field: "stt.api_key", Message: "GROQ_API_KEY environment variable is required"})
	}
	switch c.LLM.Provider {
	case "gemini":
		if c.LLM.APIKey == "" {
			errs = append(errs, &FieldError{Field: "llm.api_key", Message: "GEMINI_API_KEY environment variable is required for the gemini provider"})
		}
	case "openai":
		if c.LLM.OpenAIKey == "" {
			errs = append(errs, &FieldError{Field: "llm.api_key", Message: "OPENAI_API_KEY environment variable is required for the openai provider"})
		}
	default:
		errs = append(errs, &FieldError{Field: "llm.provider", Message: fmt.Sprintf("unknown provider %q", c.LLM.Provider)})
	}
	if c.LLM.ToolRounds < 0 {
		errs = append(errs, &FieldError{Field: "llm.tool_rounds", Message: "tool rounds must not be negative"})
	}
	if c.UI.Port < 1024 || c.UI.Port > 65535 {
		errs = append(errs, &FieldError{Field: "ui.port", Message: fmt.Sprintf("port %d must be between 1024 and 65535", c.UI.Port)})
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, &FieldError{Field: "audio.sample_rate", Message: "sample rate must be positive"})
	}
	if c.Workflow.MaxRetries < 1 {
		errs = append(errs, &FieldError{Field: "workflow.max_retries", Message: "max retries must be at least 1"})
	}
	if c.Workflow.ProcessingTimeout <= 0 {
		errs = append(errs, &FieldError{Field: "workflow.processing_timeout", Message: "processing timeout must be positive"})
	}
	return errors.Join(errs...)
}

// Summary renders a human-readable view of the configuration without secrets.
func (c *Config) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "UI:        http://%s\n", c.UI.Addr())
	fmt.Fprintf(&b, "LLM:       %s (%s, temperature %.1f)\n", c.LLM.Provider, c.LLM.Model, c.LLM.Temperature)
	fmt.Fprintf(&b, "STT:       %s (%s)\n", c.STT.Model, c.STT.Language)
	fmt.Fprintf(&b, "TTS:       %s (%s), backup gtranslate\n", c.TTS.Primary, c.TTS.Model)
	fmt.Fprintf(&b, "Audio:     %d Hz, listen timeout %s\n", c.Audio.SampleRate, c.Audio.ListenTimeout)
	fmt.Fprintf(&b, "Camera:    enabled=%t %dx%d@%d\n", c.Camera.Enabled, c.Camera.Width, c.Camera.Height, c.Camera.FPS)
	fmt.Fprintf(&b, "Workflow:  tools=%t max_retries=%d timeout=%s\n", c.Workflow.ToolsEnabled, c.Workflow.MaxRetries, c.Workflow.ProcessingTimeout)
	fmt.Fprintf(&b, "Keys:      groq=%s gemini=%s elevenlabs=%s openweather=%s\n",
		present(c.STT.APIKey), present(c.LLM.APIKey), present(c.TTS.APIKey), present(c.Tools.OpenWeatherKey))
	return b.String()
}

// FieldError represents a configuration validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func present(s string) string {
	if s == "" {
		return "missing"
	}
	return "set"
}
