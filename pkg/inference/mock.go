package inference

import (
	"context"
	"sync"
)

// Mock is a scriptable Provider and Searcher. A nil func gives a canned
// success.
type Mock struct {
	ChatFunc   func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	VisionFunc func(ctx context.Context, req *VisionRequest) (*VisionResponse, error)
	SearchFunc func(ctx context.Context, query string) (string, error)
	HealthFunc func(ctx context.Context) error

	mu       sync.Mutex
	counts   map[string]int
	lastChat *ChatRequest
}

func NewMock() *Mock { return &Mock{} }

// WithError returns a mock that fails everything with err.
func WithError(err error) *Mock {
	m := &Mock{}
	m.ChatFunc = func(context.Context, *ChatRequest) (*ChatResponse, error) { return nil, err }
	m.VisionFunc = func(context.Context, *VisionRequest) (*VisionResponse, error) { return nil, err }
	m.SearchFunc = func(context.Context, string) (string, error) { return "", err }
	m.HealthFunc = func(context.Context) error { return err }
	return m
}

func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	m.bump("Chat")
	m.lastChat = req
	m.mu.Unlock()

	if m.ChatFunc == nil {
		return &ChatResponse{Message: NewAssistantMessage("Mock response"), FinishReason: "stop"}, nil
	}
	return m.ChatFunc(ctx, req)
}

func (m *Mock) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	m.count("Vision")
	if m.VisionFunc == nil {
		return &VisionResponse{Content: "I see a mock image"}, nil
	}
	return m.VisionFunc(ctx, req)
}

func (m *Mock) Search(ctx context.Context, query string) (string, error) {
	m.count("Search")
	if m.SearchFunc == nil {
		return "", nil
	}
	return m.SearchFunc(ctx, query)
}

func (m *Mock) Health(ctx context.Context) error {
	m.count("Health")
	if m.HealthFunc == nil {
		return nil
	}
	return m.HealthFunc(ctx)
}

func (m *Mock) Close() error { return nil }

// CallCount reports how often method ("Chat", "Vision", ...) ran.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[method]
}

// LastChat is the latest request passed to Chat.
func (m *Mock) LastChat() *ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastChat
}

func (m *Mock) count(method string) {
	m.mu.Lock()
	m.bump(method)
	m.mu.Unlock()
}

// bump needs m.mu held.
func (m *Mock) bump(method string) {
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[method]++
}

var (
	_ Provider = (*Mock)(nil)
	_ Searcher = (*Mock)(nil)
)
