package tts

import (
	"log/slog"
	"net/http"
	"time"
)

// Config is shared by the providers. Each reads only the fields it uses.
type Config struct {
	APIKey     string
	BaseURL    string       // empty uses the provider's public endpoint
	HTTPClient *http.Client // nil builds one from Timeout

	VoiceID       string // ID or ElevenLabs preset name
	ModelID       string
	Language      string
	OutputFormat  Encoding
	VoiceSettings VoiceSettings

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// VoiceSettings tune an ElevenLabs voice.
type VoiceSettings struct {
	Stability       float64
	SimilarityBoost float64
	Style           float64
	SpeakerBoost    bool
}

// DefaultVoiceSettings suit conversational replies.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{Stability: 0.5, SimilarityBoost: 0.75, SpeakerBoost: true}
}

// Option mutates a Config.
type Option func(*Config)

func WithAPIKey(key string) Option { return func(c *Config) { c.APIKey = key } }
func WithBaseURL(url string) Option { return func(c *Config) { c.BaseURL = url } }
func WithHTTPClient(hc *http.Client) Option { return func(c *Config) { c.HTTPClient = hc } }
func WithVoice(id string) Option { return func(c *Config) { c.VoiceID = id } }
func WithModel(id string) Option { return func(c *Config) { c.ModelID = id } }
func WithLanguage(lang string) Option { return func(c *Config) { c.Language = lang } }
func WithOutputFormat(enc Encoding) Option { return func(c *Config) { c.OutputFormat = enc } }
func WithVoiceSettings(s VoiceSettings) Option { return func(c *Config) { c.VoiceSettings = s } }
func WithTimeout(d time.Duration) Option { return func(c *Config) { c.Timeout = d } }
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

// WithRetry sets the retry count for retryable failures and the base pause
// between attempts.
func WithRetry(n int, delay time.Duration) Option {
	return func(c *Config) { c.MaxRetries, c.RetryDelay = n, delay }
}

// DefaultConfig is tuned for ElevenLabs; the other providers override the
// model and voice.
func DefaultConfig() *Config {
	return &Config{
		ModelID:       ModelMultilingualV2,
		Language:      "en",
		OutputFormat:  EncodingMP3Low,
		VoiceSettings: DefaultVoiceSettings(),
		Timeout:       30 * time.Second,
		MaxRetries:    2,
		RetryDelay:    200 * time.Millisecond,
		Logger:        slog.Default(),
	}
}

// Apply runs opts in order.
func (c *Config) Apply(opts ...Option) {
	for _, o := range opts {
		o(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
