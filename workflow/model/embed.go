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
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder produces a vector embedding for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

var (
	embedderMu    sync.RWMutex
	embedderCache = map[string]Embedder{}
)

// EmbedderFor returns a process-wide cached embedder for the model name,
// constructing one on first use. Model names prefixed "openai:" use the
// OpenAI embeddings API; everything else goes to a local ollama server.
//
// Two goroutines racing on the first load may both construct; the second
// store wins, which is harmless because embedders are stateless.
func EmbedderFor(modelName string) (Embedder, error) {
	embedderMu.RLock()
	cached, ok := embedderCache[modelName]
	embedderMu.RUnlock()
	if ok {
		return cached, nil
	}

	built, err := newEmbedder(modelName)
	if err != nil {
		return nil, err
	}
	embedderMu.Lock()
	embedderCache[modelName] = built
	embedderMu.Unlock()
	return built, nil
}

// ResetEmbedderCache clears the cache. Tests use it to install mocks.
func ResetEmbedderCache() {
	embedderMu.Lock()
	embedderCache = map[string]Embedder{}
	embedderMu.Unlock()
}

// RegisterEmbedder pre-populates the cache for a model name.
func RegisterEmbedder(modelName string, e Embedder) {
	embedderMu.Lock()
	embedderCache[modelName] = e
	embedderMu.Unlock()
}

func newEmbedder(modelName string) (Embedder, error) {
	if name, ok := strings.CutPrefix(modelName, "openai:"); ok {
		return newOpenAIEmbedder(name, os.Getenv("OPENAI_API_KEY")), nil
	}
	return newOllamaEmbedder(modelName, "")
}

// embeddingClient is the slice of the OpenAI SDK the embedder needs.
type embeddingClient interface {
	New(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error)
}

type embeddingService struct {
	client *openai.Client
}

func (s embeddingService) New(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error) {
	return s.client.Embeddings.New(ctx, params)
}

type openAIEmbedder struct {
	client embeddingClient
	model  string
}

func newOpenAIEmbedder(modelName, apiKey string) *openAIEmbedder {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openAIEmbedder{
		client: embeddingService{client: &client},
		model:  modelName,
	}
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embedding returned no data")
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, f := range resp.Data[0].Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}

type ollamaEmbedder struct {
	host   string
	model  string
	client *http.Client
}

func newOllamaEmbedder(modelName, host string) (*ollamaEmbedder, error) {
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
	return &ollamaEmbedder{host: host, model: modelName, client: http.DefaultClient}, nil
}

func (e *ollamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]any{"model": e.model, "prompt": text})
	if err != nil {
		return nil, fmt.Errorf("encode embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embedding: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embedding returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embedding for model %q came back empty", e.model)
	}
	vec := make([]float32, len(out.Embedding))
	for i, f := range out.Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}
