package model

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// providerBaseURLs maps provider names to their OpenAI-compatible endpoints.
var providerBaseURLs = map[string]string{
	"openrouter": "https://openrouter.ai/api/v1",
	"openai":     "https://api.openai.com/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"together":   "https://api.together.xyz/v1",
	"fireworks":  "https://api.fireworks.ai/inference/v1",
	"deepinfra":  "https://api.deepinfra.com/v1/openai",
	"perplexity": "https://api.perplexity.ai",
	"mistral":    "https://api.mistral.ai/v1",
}

// KnownProvider reports whether name has a built-in base URL.
func KnownProvider(name string) bool {
	_, ok := providerBaseURLs[name]
	return ok
}

// completionClient is the slice of the OpenAI SDK the adapter needs. Tests
// substitute a fake; production wires the real client.
type completionClient interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// chatCompletionService adapts openai.Client to completionClient.
type chatCompletionService struct {
	client *openai.Client
}

func (s chatCompletionService) New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return s.client.Chat.Completions.New(ctx, params)
}

// OpenAICompat is a ChatModel for every provider that speaks the OpenAI
// chat-completions wire format.
type OpenAICompat struct {
	client   completionClient
	provider string
}

// CompatOption customizes an OpenAICompat adapter.
type CompatOption func(*compatConfig)

type compatConfig struct {
	baseURL string
	headers [][2]string
}

// WithBaseURL overrides the provider's built-in endpoint.
func WithBaseURL(url string) CompatOption {
	return func(c *compatConfig) { c.baseURL = url }
}

// WithHeader adds a header to every request, e.g. openrouter's attribution
// headers.
func WithHeader(key, value string) CompatOption {
	return func(c *compatConfig) { c.headers = append(c.headers, [2]string{key, value}) }
}

// NewOpenAICompat builds an adapter for the named provider. Unknown providers
// must supply WithBaseURL.
func NewOpenAICompat(provider, apiKey string, opts ...CompatOption) (*OpenAICompat, error) {
	var cfg compatConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	baseURL := cfg.baseURL
	if baseURL == "" {
		known, ok := providerBaseURLs[provider]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q and no base URL given", provider)
		}
		baseURL = known
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	}
	for _, h := range cfg.headers {
		reqOpts = append(reqOpts, option.WithHeader(h[0], h[1]))
	}
	client := openai.NewClient(reqOpts...)
	return &OpenAICompat{
		client:   chatCompletionService{client: &client},
		provider: provider,
	}, nil
}

// Chat sends a single-turn completion request and normalizes the response.
func (m *OpenAICompat) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := m.client.New(ctx, params)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("%s chat completion: %w", m.provider, err)
	}
	if len(completion.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("%s returned no choices", m.provider)
	}
	choice := completion.Choices[0]
	return ChatResponse{
		Content:      choice.Message.Content,
		Model:        completion.Model,
		TokensUsed:   int(completion.Usage.TotalTokens),
		FinishReason: string(choice.FinishReason),
	}, nil
}
