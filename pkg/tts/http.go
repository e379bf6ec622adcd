package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-assistant/internal/httpc"
)

// endpoint is the HTTP plumbing shared by the providers: auth headers,
// retries and error decoding.
type endpoint struct {
	provider string
	base     string
	client   *http.Client
	logger   *slog.Logger
	header   http.Header
	retries  int
	delay    time.Duration

	// decode pulls a message and code out of an error body. Nil keeps the
	// body text as the message.
	decode func(body []byte) (msg, code string)
}

func newEndpoint(provider, defaultBase string, cfg *Config) *endpoint {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBase
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpc.NewClient(cfg.Timeout)
	}
	return &endpoint{
		provider: provider,
		base:     base,
		client:   client,
		logger:   cfg.Logger.With("component", "tts."+provider),
		header:   http.Header{},
		retries:  cfg.MaxRetries,
		delay:    cfg.RetryDelay,
	}
}

// Name returns the provider name.
func (e *endpoint) Name() string { return e.provider }

// Close drops idle connections.
func (e *endpoint) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// fetch returns the body of a 200 response. The request is rebuilt for every
// attempt; transport failures and retryable API errors back off linearly.
func (e *endpoint) fetch(ctx context.Context, method, url string, body []byte, extra http.Header) ([]byte, error) {
	var last error
	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			e.logger.Warn("retrying request", "attempt", attempt, "error", last)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * e.delay):
			}
		}

		resp, err := e.do(ctx, method, url, body, extra)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			last = WrapError(e.provider, err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := e.apiError(resp)
			resp.Body.Close()
			if !apiErr.IsRetryable() {
				return nil, apiErr
			}
			last = apiErr
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		switch {
		case err != nil:
			return nil, WrapError(e.provider, fmt.Errorf("read response: %w", err))
		case len(data) == 0:
			return nil, WrapError(e.provider, ErrEmptyAudio)
		}
		return data, nil
	}
	return nil, last
}

// ping issues a single GET and reports any non-200 answer.
func (e *endpoint) ping(ctx context.Context, url string) error {
	resp, err := e.do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return WrapError(e.provider, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return e.apiError(resp)
	}
	return nil
}

func (e *endpoint) do(ctx context.Context, method, url string, body []byte, extra http.Header) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range []http.Header{e.header, extra} {
		for k, v := range h {
			req.Header[k] = v
		}
	}
	return e.client.Do(req)
}

func (e *endpoint) apiError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	raw = bytes.TrimSpace(raw)

	out := &APIError{Provider: e.provider, StatusCode: resp.StatusCode, Message: string(raw)}
	if out.Message == "" {
		out.Message = resp.Status
	}
	if e.decode != nil {
		if msg, code := e.decode(raw); msg != "" {
			out.Message, out.Code = strings.TrimSpace(msg), code
		}
	}
	return out
}
