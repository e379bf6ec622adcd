// Package inference answers chat and vision prompts.
//
// Client talks to any OpenAI-compatible /chat/completions endpoint and
// Gemini wraps Google's genai SDK. Both satisfy Provider. Responder puts the
// assistant persona in front of a Provider; Gemini also implements Searcher
// through grounded search.
//
//	client, _ := inference.NewClient(inference.WithAPIKey(os.Getenv("GROQ_API_KEY")))
//	resp, _ := client.Vision(ctx, &inference.VisionRequest{JPEG: frame, Prompt: "What is this?"})
package inference

import (
	"context"
	"image"
)

// Provider answers chat and vision prompts.
type Provider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error)

	// Health is a cheap authenticated call used by startup checks.
	Health(ctx context.Context) error
	Close() error
}

// Searcher answers from live web results.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// ChatRequest is a conversation to complete. A system message in first
// position becomes the system instruction. Zero fields take the provider
// defaults. With Tools set the reply may be a set of ToolCalls instead of
// text.
type ChatRequest struct {
	Messages    []Message
	Tools       []Tool
	Model       string
	MaxTokens   int
	Temperature float64
}

type ChatResponse struct {
	Message      Message
	FinishReason string
	Usage        Usage
	Model        string
	LatencyMs    int64
}

// VisionRequest asks Prompt about one frame. JPEG is sent as is; otherwise
// Image is encoded first.
type VisionRequest struct {
	JPEG   []byte
	Image  image.Image
	Prompt string

	Model       string
	MaxTokens   int
	Temperature float64
}

type VisionResponse struct {
	Content   string
	Usage     Usage
	Model     string
	LatencyMs int64
}

// Usage counts tokens as reported by the provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func (r *VisionRequest) jpegBytes() ([]byte, error) {
	switch {
	case len(r.JPEG) > 0:
		return r.JPEG, nil
	case r.Image != nil:
		return EncodeJPEG(r.Image)
	}
	return nil, ErrNoImage
}
