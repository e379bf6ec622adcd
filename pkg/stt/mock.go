package stt

import (
	"context"
	"sync"
)

// Mock returns scripted transcripts in order, repeating the last one.
type Mock struct {
	Transcripts []string
	Err         error

	mu    sync.Mutex
	calls int
	paths []string
}

// NewMock returns a Mock that yields the given transcripts.
func NewMock(transcripts ...string) *Mock {
	return &Mock{Transcripts: transcripts}
}

// Transcribe returns the next scripted transcript.
func (m *Mock) Transcribe(ctx context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paths = append(m.paths, path)
	i := m.calls
	m.calls++

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Transcripts) == 0 {
		return "", nil
	}
	if i >= len(m.Transcripts) {
		i = len(m.Transcripts) - 1
	}
	return m.Transcripts[i], nil
}

// Paths returns every path passed to Transcribe.
func (m *Mock) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

var _ Transcriber = (*Mock)(nil)
