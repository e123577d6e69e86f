package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// DefaultOllamaHost is used when neither node config nor OLLAMA_HOST names an
// endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// Ollama is a ChatModel backed by a local ollama server's /api/generate
// endpoint. Hosts must pass the private-network allow-list.
type Ollama struct {
	host   string
	client *http.Client
}

// NewOllama builds an adapter for the given host. An empty host falls back to
// OLLAMA_HOST and then the local default. A host without a scheme is treated
// as http.
func NewOllama(host string) (*Ollama, error) {
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = DefaultOllamaHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	host = strings.TrimRight(host, "/")
	if err := AllowedOllamaHost(host); err != nil {
		return nil, err
	}
	return &Ollama{host: host, client: http.DefaultClient}, nil
}

// Host returns the normalized endpoint the adapter talks to.
func (m *Ollama) Host() string {
	return m.host
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model        string `json:"model"`
	Response     string `json:"response"`
	DoneReason   string `json:"done_reason"`
	EvalCount    int    `json:"eval_count"`
	EvalDuration int64  `json:"eval_duration"`
}

// Chat sends a non-streaming generate request. A system prompt is prepended
// to the user prompt since /api/generate takes a single prompt string.
func (m *Ollama) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + prompt
	}
	body := ollamaGenerateRequest{
		Model:  req.Model,
		Prompt: prompt,
		Stream: false,
	}
	if req.Temperature > 0 {
		body.Options = map[string]any{"temperature": req.Temperature}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("encode ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return ChatResponse{}, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var gen ollamaGenerateResponse
	if err := json.Unmarshal(raw, &gen); err != nil {
		return ChatResponse{}, fmt.Errorf("decode ollama response: %w", err)
	}
	return ChatResponse{
		Content:      gen.Response,
		Model:        gen.Model,
		FinishReason: gen.DoneReason,
		EvalCount:    gen.EvalCount,
		EvalDuration: gen.EvalDuration,
	}, nil
}
