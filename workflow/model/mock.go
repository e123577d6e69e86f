package model

import (
	"context"
	"sync"
)

// MockChatModel is a test double for ChatModel. It records every request and
// returns the configured response or error.
type MockChatModel struct {
	mu       sync.Mutex
	Response ChatResponse
	Err      error
	Calls    []ChatRequest
}

// Chat records the request and returns the canned response.
func (m *MockChatModel) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()
	if m.Err != nil {
		return ChatResponse{}, m.Err
	}
	return m.Response, nil
}

// MockEmbedder is a test double for Embedder returning a fixed vector.
type MockEmbedder struct {
	mu     sync.Mutex
	Vector []float32
	Err    error
	Inputs []string
}

// Embed records the input text and returns the canned vector.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.Inputs = append(m.Inputs, text)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Vector, nil
}
