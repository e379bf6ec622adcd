// Package tools provides the assistant's auxiliary capabilities behind a
// name-keyed registry that never fails past its boundary.
package tools

import (
	"context"
	"strconv"
	"strings"
)

// Tool is a named capability the assistant can invoke.
type Tool struct {
	// Name is the unique identifier for the tool (e.g., "weather").
	Name string `json:"name"`

	// Description is shown to the user in capability summaries.
	Description string `json:"description"`

	// Hidden tools are invokable but left out of capability summaries.
	Hidden bool `json:"-"`

	// Params declare the arguments a language model may pass.
	Params []Param `json:"params,omitempty"`

	// Handler performs the work. A returned error is turned into a
	// user-readable string by the registry.
	Handler Handler `json:"-"`
}

// Param is one named tool argument.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // JSON Schema type: "string" or "integer"
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
}

func str(name, desc string) Param { return Param{Name: name, Type: "string", Description: desc} }
func num(name, desc string) Param { return Param{Name: name, Type: "integer", Description: desc} }

func required(p Param) Param {
	p.Required = true
	return p
}

// schema renders params as a JSON Schema object.
func schema(params []Param) map[string]any {
	props := make(map[string]any, len(params))
	req := []string{}
	for _, p := range params {
		props[p.Name] = map[string]any{"type": p.Type, "description": p.Description}
		if p.Required {
			req = append(req, p.Name)
		}
	}
	return map[string]any{"type": "object", "properties": props, "required": req}
}

// Handler runs a tool with its arguments.
type Handler func(ctx context.Context, args Args) (string, error)

// Args are keyword arguments for a tool call.
type Args map[string]string

// String returns args[key], or def when missing or blank.
func (a Args) String(key, def string) string {
	if v := strings.TrimSpace(a[key]); v != "" {
		return v
	}
	return def
}

// Int returns args[key] parsed as an int, or def.
func (a Args) Int(key string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(a[key])); err == nil {
		return v
	}
	return def
}

// ParseArgs parses "key=value" pairs. Bare words are joined into the
// "query" argument.
func ParseArgs(pairs []string) Args {
	args := Args{}
	var bare []string
	for _, p := range pairs {
		if k, v, ok := strings.Cut(p, "="); ok && k != "" {
			args[k] = v
			continue
		}
		bare = append(bare, p)
	}
	if len(bare) > 0 {
		args["query"] = strings.Join(bare, " ")
	}
	return args
}
