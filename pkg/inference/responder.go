package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// DefaultToolRounds bounds how many times one reply may go back to the
// model with tool results.
const DefaultToolRounds = 4

// ToolRunner executes the functions a model asks for. Call reports failures
// in its result text.
type ToolRunner interface {
	Tools() []Tool
	Call(ctx context.Context, name string, args map[string]string) string
}

type noToolsKey struct{}

// WithoutTools marks ctx so a Responder answers from the prompt alone.
func WithoutTools(ctx context.Context) context.Context {
	return context.WithValue(ctx, noToolsKey{}, true)
}

// ToolsAllowed is false under WithoutTools.
func ToolsAllowed(ctx context.Context) bool {
	off, _ := ctx.Value(noToolsKey{}).(bool)
	return !off
}

// Responder turns a prompt into the assistant's reply using a persona. With
// a ToolRunner attached it acts as an agent: the model may call tools, see
// their results and answer afterwards.
type Responder struct {
	provider    Provider
	persona     string
	temperature float64
	logger      *slog.Logger

	runner ToolRunner
	rounds int
}

// NewResponder wraps provider with a system persona. A zero temperature
// leaves the provider default in place.
func NewResponder(provider Provider, persona string, temperature float64, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{
		provider:    provider,
		persona:     persona,
		temperature: temperature,
		logger:      logger.With("component", "inference.responder"),
		rounds:      DefaultToolRounds,
	}
}

// WithTools returns a copy of r that offers runner's tools to the model for
// up to rounds tool exchanges per reply. rounds <= 0 keeps the current limit.
func (r *Responder) WithTools(runner ToolRunner, rounds int) *Responder {
	cp := *r
	cp.runner = runner
	if rounds > 0 {
		cp.rounds = rounds
	}
	return &cp
}

// Respond returns the reply text for prompt.
func (r *Responder) Respond(ctx context.Context, prompt string) (string, error) {
	if r.provider == nil {
		return "", ErrProviderUnavailable
	}

	msgs := make([]Message, 0, 4)
	if r.persona != "" {
		msgs = append(msgs, NewSystemMessage(r.persona))
	}
	msgs = append(msgs, NewUserMessage(prompt))

	var offered []Tool
	if r.runner != nil && ToolsAllowed(ctx) {
		offered = r.runner.Tools()
	}

	start := time.Now()
	for round := 0; ; round++ {
		req := &ChatRequest{Messages: msgs, Temperature: r.temperature}
		if round < r.rounds {
			req.Tools = offered
		}
		resp, err := r.provider.Chat(ctx, req)
		if err != nil {
			return "", err
		}

		calls := resp.Message.ToolCalls
		if len(req.Tools) == 0 || len(calls) == 0 {
			reply := strings.TrimSpace(resp.Message.Content)
			if reply == "" {
				return "", ErrEmptyResponse
			}
			r.logger.Debug("response generated", "model", resp.Model, "tool_rounds", round,
				"latency_ms", time.Since(start).Milliseconds())
			return reply, nil
		}

		msgs = append(msgs, resp.Message)
		for _, call := range calls {
			msgs = append(msgs, NewToolMessage(call.ID, call.Name, r.call(ctx, call)))
		}
	}
}

func (r *Responder) call(ctx context.Context, tc ToolCall) string {
	args, err := flattenArgs(tc.Arguments)
	if err != nil {
		r.logger.Warn("bad tool arguments", "tool", tc.Name, "error", err)
		return fmt.Sprintf("Tool execution error: %v", err)
	}
	r.logger.Debug("model called tool", "tool", tc.Name, "args", args)
	return r.runner.Call(ctx, tc.Name, args)
}

// flattenArgs decodes a JSON object into string arguments. Numbers keep
// their shortest form, so 5 stays "5".
func flattenArgs(raw string) (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	for k, v := range obj {
		switch v := v.(type) {
		case nil:
		case string:
			out[k] = v
		case float64:
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(v)
		default:
			b, _ := json.Marshal(v)
			out[k] = string(b)
		}
	}
	return out, nil
}
