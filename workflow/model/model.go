// Package model provides chat and embedding backends for llm and embedding
// nodes. Providers speaking the OpenAI chat-completions wire format share one
// adapter configured with per-provider base URLs; Anthropic and local ollama
// get dedicated adapters. Each adapter wraps its SDK behind a small client
// interface so tests can substitute mocks without network access.
package model

import "context"

// ChatRequest is a single-turn chat completion request.
type ChatRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// ChatResponse is the normalized reply from any chat backend.
//
// EvalCount and EvalDuration are populated only by ollama, which reports
// token throughput instead of a usage total.
type ChatResponse struct {
	Content      string
	Model        string
	TokensUsed   int
	FinishReason string
	EvalCount    int
	EvalDuration int64
}

// ChatModel is the interface all chat backends implement.
type ChatModel interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
