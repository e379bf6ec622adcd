package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-assistant/internal/httpc"
)

const providerClient = "openai-compatible"

// Client speaks the OpenAI chat completions API. Groq, OpenAI and most local
// servers accept it.
type Client struct {
	endpoint string
	config   *Config
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a client. Without WithBaseURL it targets Groq.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpc.NewClient(cfg.Timeout)
	}
	return &Client{
		endpoint: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:   cfg,
		http:     hc,
		logger:   cfg.Logger.With("component", "inference.client"),
	}, nil
}

// Wire types of /chat/completions. Content is a string for chat and a list
// of parts for vision.
type (
	completionMessage struct {
		Role       string         `json:"role"`
		Content    any            `json:"content"`
		Name       string         `json:"name,omitempty"`
		ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
		ToolCallID string         `json:"tool_call_id,omitempty"`
	}
	wireToolCall struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	}
	wireTool struct {
		Type     string `json:"type"`
		Function Tool   `json:"function"`
	}
	contentPart struct {
		Type     string    `json:"type"`
		Text     string    `json:"text,omitempty"`
		ImageURL *imageURL `json:"image_url,omitempty"`
	}
	imageURL struct {
		URL string `json:"url"`
	}
	completionRequest struct {
		Model       string              `json:"model"`
		Messages    []completionMessage `json:"messages"`
		Tools       []wireTool          `json:"tools,omitempty"`
		MaxTokens   int                 `json:"max_tokens,omitempty"`
		Temperature float64             `json:"temperature,omitempty"`
	}
	completionResponse struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content   string         `json:"content"`
				ToolCalls []wireToolCall `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
)

func (c *Client) request(model string, maxTokens int, temp float64, msgs []completionMessage) completionRequest {
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}
	if temp == 0 {
		temp = c.config.Temperature
	}
	return completionRequest{Model: model, Messages: msgs, MaxTokens: maxTokens, Temperature: temp}
}

// Chat generates a completion for the conversation.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	model := req.Model
	if model == "" {
		model = c.config.Model
	}

	msgs := make([]completionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		cm := completionMessage{Role: string(m.Role), Content: m.Content, Name: m.Name, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			w := wireToolCall{ID: tc.ID, Type: "function"}
			w.Function.Name, w.Function.Arguments = tc.Name, tc.Arguments
			cm.ToolCalls = append(cm.ToolCalls, w)
		}
		msgs = append(msgs, cm)
	}

	body := c.request(model, req.MaxTokens, req.Temperature, msgs)
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, wireTool{Type: "function", Function: t})
	}

	out, err := c.complete(ctx, body)
	if err != nil {
		return nil, err
	}
	reply := NewAssistantMessage(out.Choices[0].Message.Content)
	for _, w := range out.Choices[0].Message.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{ID: w.ID, Name: w.Function.Name, Arguments: w.Function.Arguments})
	}
	return &ChatResponse{
		Message:      reply,
		FinishReason: out.Choices[0].FinishReason,
		Usage:        out.usage(),
		Model:        out.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Vision sends the frame inline as a data URL next to the prompt.
func (c *Client) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	start := time.Now()
	model := req.Model
	if model == "" {
		model = c.config.VisionModel
	}

	frame, err := req.jpegBytes()
	if err != nil {
		return nil, WrapError(providerClient, fmt.Errorf("encode image: %w", err))
	}
	msg := completionMessage{Role: string(RoleUser), Content: []contentPart{
		{Type: "text", Text: req.Prompt},
		{Type: "image_url", ImageURL: &imageURL{URL: DataURL(frame)}},
	}}

	out, err := c.complete(ctx, c.request(model, req.MaxTokens, req.Temperature, []completionMessage{msg}))
	if err != nil {
		return nil, err
	}
	return &VisionResponse{
		Content:   out.Choices[0].Message.Content,
		Usage:     out.usage(),
		Model:     out.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Health lists models, which fails fast on a bad key.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return WrapError(providerClient, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// Close drops idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) complete(ctx context.Context, req completionRequest) (*completionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, WrapError(providerClient, err)
	}

	resp, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, WrapError(providerClient, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return nil, WrapError(providerClient, ErrEmptyResponse)
	}
	return &out, nil
}

// post sends body, retrying transport failures and retryable statuses with
// a linearly growing pause. Only a 200 response is returned.
func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	var last error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying completion", "attempt", attempt, "error", last)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.config.RetryDelay):
			}
		}

		resp, err := c.send(ctx, http.MethodPost, path, body)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			last = WrapError(providerClient, err)
			continue
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		}

		apiErr := apiError(resp)
		resp.Body.Close()
		if !apiErr.IsRetryable() {
			return nil, apiErr
		}
		last = apiErr
	}
	return nil, last
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	return c.http.Do(req)
}

// apiError decodes an OpenAI-style {"error":{...}} body, falling back to
// the raw text.
func apiError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	e := &APIError{Provider: providerClient, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}

	var body struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		e.Message, e.Code = body.Error.Message, body.Error.Code
	}
	return e
}

func (r *completionResponse) usage() Usage {
	return Usage{
		PromptTokens:     r.Usage.PromptTokens,
		CompletionTokens: r.Usage.CompletionTokens,
		TotalTokens:      r.Usage.TotalTokens,
	}
}

var _ Provider = (*Client)(nil)
