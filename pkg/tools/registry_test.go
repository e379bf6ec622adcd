package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-assistant/pkg/inference"
)

func echo(ctx context.Context, args Args) (string, error) {
	return "echo:" + args.String("query", "none"), nil
}

func TestNewRegistry(t *testing.T) {
	tests := []struct {
		name  string
		tools []Tool
		want  string
	}{
		{"empty name", []Tool{{Handler: echo}}, "without a name"},
		{"nil handler", []Tool{{Name: "a"}}, "no handler"},
		{"duplicate", []Tool{{Name: "a", Handler: echo}, {Name: "a", Handler: echo}}, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.tools...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRegistryInvoke(t *testing.T) {
	r, err := NewRegistry(
		Tool{Name: "echo", Description: "Echo input", Handler: echo},
		Tool{Name: "fail", Description: "Always fails", Handler: func(context.Context, Args) (string, error) {
			return "", errors.New("backend down")
		}},
		Tool{Name: "boom", Description: "Panics", Handler: func(context.Context, Args) (string, error) {
			panic("kaboom")
		}},
		Tool{Name: "secret", Hidden: true, Handler: echo},
	)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		assert.Equal(t, "echo:hi", r.Invoke(ctx, "echo", Args{"query": "hi"}))
		assert.Equal(t, "echo:none", r.Invoke(ctx, "echo", nil))
	})

	t.Run("handler error", func(t *testing.T) {
		assert.Equal(t, "Tool execution error: backend down", r.Invoke(ctx, "fail", nil))
	})

	t.Run("panic", func(t *testing.T) {
		assert.Equal(t, "Tool execution error: kaboom", r.Invoke(ctx, "boom", nil))
	})

	t.Run("unknown lists visible tools", func(t *testing.T) {
		assert.Equal(t, "Unknown tool 'dance'. Available tools: echo, fail, boom", r.Invoke(ctx, "dance", nil))
	})

	t.Run("hidden tools stay invokable", func(t *testing.T) {
		assert.True(t, r.Has("secret"))
		assert.Equal(t, "echo:x", r.Invoke(ctx, "secret", Args{"query": "x"}))
	})

	assert.Equal(t, []string{"echo", "fail", "boom", "secret"}, r.Names())
	assert.Len(t, r.Descriptions(), 3)
	assert.Equal(t,
		"🛠️ Available tools:\n• echo: Echo input\n• fail: Always fails\n• boom: Panics",
		r.Capabilities())
}

func TestRegistryOffersToolsToModel(t *testing.T) {
	r, err := NewRegistry(
		Tool{Name: "echo", Description: "Echo input", Params: []Param{required(str("query", "What to echo"))}, Handler: echo},
		Tool{Name: "secret", Description: "Hidden echo", Hidden: true, Handler: echo},
	)
	require.NoError(t, err)

	want := []inference.Tool{
		{Name: "echo", Description: "Echo input", Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "What to echo"},
			},
			"required": []string{"query"},
		}},
		{Name: "secret", Description: "Hidden echo", Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		}},
	}
	if diff := cmp.Diff(want, r.Tools()); diff != "" {
		t.Errorf("Tools() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "echo:hi", r.Call(context.Background(), "echo", map[string]string{"query": "hi"}))
	assert.Equal(t, "echo:x", r.Call(context.Background(), "secret", map[string]string{"query": "x"}))
}

func TestArgs(t *testing.T) {
	a := ParseArgs([]string{"city=Paris", "days=4", "what", "is", "go"})
	assert.Equal(t, "Paris", a.String("city", "London"))
	assert.Equal(t, 4, a.Int("days", 3))
	assert.Equal(t, "what is go", a["query"])
	assert.Equal(t, 3, a.Int("missing", 3))
	assert.Equal(t, 3, Args{"days": "many"}.Int("days", 3))
	assert.Equal(t, "def", Args{"k": "  "}.String("k", "def"))
}
