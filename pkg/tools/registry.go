package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-assistant/pkg/inference"
)

// Registry is an immutable name → tool table. Invoke never panics and never
// returns an error: every failure comes back as a descriptive string.
type Registry struct {
	tools  map[string]Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry builds a registry from tools in the given order.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools:  make(map[string]Tool, len(tools)),
		logger: slog.Default().With("component", "tools"),
	}
	for _, t := range tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tools: tool without a name")
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tools: %s has no handler", t.Name)
		}
		if _, dup := r.tools[t.Name]; dup {
			return nil, fmt.Errorf("tools: duplicate tool %q", t.Name)
		}
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r, nil
}

// WithLogger returns a copy of the registry that logs to logger.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	cp := *r
	cp.logger = logger.With("component", "tools")
	return &cp
}

// Invoke runs the named tool. Unknown names, handler errors and panics are
// reported as text.
func (r *Registry) Invoke(ctx context.Context, name string, args Args) (result string) {
	t, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("Unknown tool '%s'. Available tools: %s", name, strings.Join(r.visible(), ", "))
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", p)
			result = fmt.Sprintf("Tool execution error: %v", p)
		}
	}()

	if args == nil {
		args = Args{}
	}
	out, err := t.Handler(ctx, args)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return fmt.Sprintf("Tool execution error: %v", err)
	}
	r.logger.Debug("tool completed", "tool", name, "duration_ms", time.Since(start).Milliseconds())
	return out
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names returns every registered name in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Descriptions returns visible tools in registration order.
func (r *Registry) Descriptions() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		if t := r.tools[name]; !t.Hidden {
			out = append(out, Tool{Name: t.Name, Description: t.Description})
		}
	}
	return out
}

// Tools declares every registered tool, hidden ones included, to a
// tool-calling model.
func (r *Registry) Tools() []inference.Tool {
	out := make([]inference.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, inference.Tool{Name: t.Name, Description: t.Description, Parameters: schema(t.Params)})
	}
	return out
}

// Call is Invoke for a model-issued call.
func (r *Registry) Call(ctx context.Context, name string, args map[string]string) string {
	return r.Invoke(ctx, name, Args(args))
}

var _ inference.ToolRunner = (*Registry)(nil)

// Capabilities renders the tool list shown when a session (re)starts.
func (r *Registry) Capabilities() string {
	var b strings.Builder
	b.WriteString("🛠️ Available tools:")
	for _, t := range r.Descriptions() {
		fmt.Fprintf(&b, "\n• %s: %s", t.Name, t.Description)
	}
	return b.String()
}

func (r *Registry) visible() []string {
	out := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if !r.tools[name].Hidden {
			out = append(out, name)
		}
	}
	return out
}
