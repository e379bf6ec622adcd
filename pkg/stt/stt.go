// Package stt transcribes recorded utterances with Whisper over the
// OpenAI-compatible audio API (Groq by default).
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	groqBaseURL  = "https://api.groq.com/openai/v1"
	DefaultModel = "whisper-large-v3"
)

var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("stt: API key required")

	// ErrEmptyAudio is returned for a missing or zero-length recording.
	ErrEmptyAudio = errors.New("stt: empty audio file")
)

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// APIError is a non-2xx transcription response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stt: API error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether a retry might succeed.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Config holds client configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Language   string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Option is a functional option for the Whisper client.
type Option func(*Config)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option { return func(c *Config) { c.BaseURL = url } }

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option { return func(c *Config) { c.APIKey = key } }

// WithModel sets the transcription model.
func WithModel(model string) Option { return func(c *Config) { c.Model = model } }

// WithLanguage sets the ISO-639-1 language hint.
func WithLanguage(lang string) Option { return func(c *Config) { c.Language = lang } }

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Config) { c.HTTPClient = hc } }

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

// Whisper calls /audio/transcriptions.
type Whisper struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewWhisper creates a Whisper client.
func NewWhisper(opts ...Option) (*Whisper, error) {
	cfg := &Config{
		BaseURL:    groqBaseURL,
		Model:      DefaultModel,
		Language:   "en",
		Timeout:    60 * time.Second,
		MaxRetries: 2,
		RetryDelay: 500 * time.Millisecond,
		Logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	return &Whisper{
		config: cfg,
		http:   hc,
		logger: cfg.Logger.With("component", "stt.whisper"),
	}, nil
}

// Transcribe uploads the file at path and returns the trimmed transcript.
func (w *Whisper) Transcribe(ctx context.Context, path string) (string, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("stt: read audio: %w", err)
	}
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}

	body, contentType, err := w.form(filepath.Base(path), audio)
	if err != nil {
		return "", fmt.Errorf("stt: build form: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}

		text, err := w.post(ctx, body, contentType)
		if err == nil {
			w.logger.Debug("transcribed", "chars", len(text), "latency_ms", time.Since(start).Milliseconds())
			return text, nil
		}
		lastErr = err

		var apiErr *APIError
		if ctx.Err() != nil || (errors.As(err, &apiErr) && !apiErr.IsRetryable()) {
			return "", err
		}
		w.logger.Warn("transcription failed, retrying", "attempt", attempt+1, "error", err)
	}
	return "", lastErr
}

func (w *Whisper) form(name string, audio []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"model":           w.config.Model,
		"language":        w.config.Language,
		"response_format": "json",
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func (w *Whisper) post(ctx context.Context, body []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.BaseURL+"/audio/transcriptions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+w.config.APIKey)

	resp, err := w.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return "", &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("stt: decode response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

var _ Transcriber = (*Whisper)(nil)
