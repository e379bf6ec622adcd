package inference

import (
	"log/slog"
	"net/http"
	"time"
)

// Groq defaults. Any OpenAI-compatible server works through WithBaseURL.
const (
	groqBaseURL       = "https://api.groq.com/openai/v1"
	groqChatModel     = "llama-3.3-70b-versatile"
	groqVisionModel   = "meta-llama/llama-4-maverick-17b-128e-instruct"
	defaultMaxTokens  = 1024
	defaultTemp       = 0.7
	defaultTimeout    = 30 * time.Second
	defaultRetries    = 3
	defaultRetryDelay = 100 * time.Millisecond
)

// Config is shared by every provider in the package. Providers ignore the
// fields that do not apply to them.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client // nil builds one from Timeout

	Model       string
	VisionModel string

	// Used when a request leaves them zero.
	MaxTokens   int
	Temperature float64

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option mutates a Config.
type Option func(*Config)

func WithBaseURL(url string) Option { return func(c *Config) { c.BaseURL = url } }
func WithAPIKey(key string) Option { return func(c *Config) { c.APIKey = key } }
func WithHTTPClient(hc *http.Client) Option { return func(c *Config) { c.HTTPClient = hc } }
func WithModel(model string) Option { return func(c *Config) { c.Model = model } }
func WithVisionModel(model string) Option { return func(c *Config) { c.VisionModel = model } }
func WithMaxTokens(n int) Option { return func(c *Config) { c.MaxTokens = n } }
func WithTemperature(t float64) Option { return func(c *Config) { c.Temperature = t } }
func WithTimeout(d time.Duration) Option { return func(c *Config) { c.Timeout = d } }
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

// WithRetry sets how many times a retryable failure is retried and the base
// pause between attempts.
func WithRetry(n int, delay time.Duration) Option {
	return func(c *Config) { c.MaxRetries, c.RetryDelay = n, delay }
}

// DefaultConfig targets Groq.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     groqBaseURL,
		Model:       groqChatModel,
		VisionModel: groqVisionModel,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemp,
		Timeout:     defaultTimeout,
		MaxRetries:  defaultRetries,
		RetryDelay:  defaultRetryDelay,
		Logger:      slog.Default(),
	}
}

// Apply runs opts in order. A nil logger falls back to slog.Default.
func (c *Config) Apply(opts ...Option) {
	for _, o := range opts {
		o(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
