package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

const providerGemini = "gemini"

// Gemini implements Provider and Searcher on Google's genai SDK.
type Gemini struct {
	client *genai.Client
	config *Config
	logger *slog.Logger
}

// NewGemini creates a Gemini provider. WithBaseURL overrides the API
// endpoint, which tests point at a local server.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = ""
	cfg.Model = "gemini-2.0-flash"
	cfg.VisionModel = "gemini-2.0-flash"
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("create client: %w", err))
	}

	return &Gemini{
		client: client,
		config: cfg,
		logger: cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

// Chat generates a reply. A leading system message becomes the system
// instruction.
func (g *Gemini) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.config.Model
	}

	system, msgs := splitSystem(req.Messages)
	contents, err := geminiContents(msgs)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	cfg := g.generateConfig(req.MaxTokens, req.Temperature)
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Name,
				Description:          t.Description,
				ParametersJsonSchema: t.Parameters,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, g.wrap(err)
	}

	reply := NewAssistantMessage(strings.TrimSpace(resp.Text()))
	for i, fc := range resp.FunctionCalls() {
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return nil, WrapError(providerGemini, fmt.Errorf("encode %s arguments: %w", fc.Name, err))
		}
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", fc.Name, i)
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{ID: id, Name: fc.Name, Arguments: string(args)})
	}
	if reply.Content == "" && len(reply.ToolCalls) == 0 {
		return nil, WrapError(providerGemini, ErrEmptyResponse)
	}

	return &ChatResponse{
		Message:      reply,
		FinishReason: finishReason(resp),
		Usage:        usageOf(resp),
		Model:        model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// geminiContents maps the conversation onto Gemini turns. Tool calls become
// function-call parts of the model turn and consecutive tool answers share
// one user turn of function responses.
func geminiContents(msgs []Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(msgs))
	answering := false
	for _, msg := range msgs {
		switch msg.Role {
		case RoleTool:
			part := genai.NewPartFromFunctionResponse(msg.Name, map[string]any{"output": msg.Content})
			if answering {
				last := contents[len(contents)-1]
				last.Parts = append(last.Parts, part)
			} else {
				contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
			}
			answering = true
			continue

		case RoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
						return nil, fmt.Errorf("decode %s arguments: %w", tc.Name, err)
					}
				}
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, args))
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))

		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
		answering = false
	}
	return contents, nil
}

// Vision analyzes a frame.
func (g *Gemini) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.config.VisionModel
	}

	frame, err := req.jpegBytes()
	if err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("encode image: %w", err))
	}

	parts := []*genai.Part{
		genai.NewPartFromText(req.Prompt),
		genai.NewPartFromBytes(frame, "image/jpeg"),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, g.generateConfig(req.MaxTokens, req.Temperature))
	if err != nil {
		return nil, g.wrap(err)
	}

	return &VisionResponse{
		Content:   strings.TrimSpace(resp.Text()),
		Usage:     usageOf(resp),
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Search answers query with Google Search grounding enabled.
func (g *Gemini) Search(ctx context.Context, query string) (string, error) {
	cfg := g.generateConfig(0, 0)
	cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}

	contents := []*genai.Content{genai.NewContentFromText(query, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.config.Model, contents, cfg)
	if err != nil {
		return "", g.wrap(err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Health fetches the configured model's metadata.
func (g *Gemini) Health(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.config.Model, nil); err != nil {
		return g.wrap(err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources of its own.
func (g *Gemini) Close() error {
	return nil
}

func (g *Gemini) generateConfig(maxTokens int, temp float64) *genai.GenerateContentConfig {
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}
	if temp == 0 {
		temp = g.config.Temperature
	}
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temp)),
		MaxOutputTokens: int32(maxTokens),
	}
}

// wrap converts SDK errors into APIError so callers can classify them.
func (g *Gemini) wrap(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Code:       apiErr.Status,
			Provider:   providerGemini,
		}
	}
	return WrapError(providerGemini, err)
}

func finishReason(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	return string(resp.Candidates[0].FinishReason)
}

func usageOf(resp *genai.GenerateContentResponse) Usage {
	if resp.UsageMetadata == nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}

var (
	_ Provider = (*Gemini)(nil)
	_ Searcher = (*Gemini)(nil)
)
