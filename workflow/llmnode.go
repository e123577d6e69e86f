package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/dshills/workflow-go/workflow/model"
)

// DefaultOpenRouterModel is the chat model used when an openrouter node does
// not name one.
const DefaultOpenRouterModel = "anthropic/claude-3.5-sonnet"

// DefaultOllamaModel is the local model used when an ollama node does not
// name one.
const DefaultOllamaModel = "llama3.2"

var leftoverPlaceholderRe = regexp.MustCompile(`\{[A-Za-z0-9_]+\}`)

// execLLM sends a prompt built from the node's template and input to the
// configured provider. Hosted chat-completion providers share one adapter;
// anthropic and local ollama have their own.
func (e *Engine) execLLM(ctx context.Context, node *Node, input any) Outcome {
	cfg := anyMap(node.Config)
	provider := strings.ToLower(stringField(cfg, "provider", "openrouter"))
	system := stringField(cfg, "system", stringField(cfg, "system_prompt", ""))
	temperature := floatField(cfg, "temperature", 0.7)
	maxTokens := intField(cfg, "max_tokens", 1000)
	prompt := buildPrompt(stringField(cfg, "user", stringField(cfg, "prompt", "")), input)

	if provider == "ollama" {
		return e.execOllamaChat(ctx, cfg, prompt, system, temperature, maxTokens)
	}

	modelName := stringField(cfg, "model", "")
	if modelName == "" {
		if provider != "openrouter" {
			return errorOutcome(fmt.Sprintf("llm node requires a model for provider %q", provider))
		}
		modelName = DefaultOpenRouterModel
	}
	apiKey := resolveAPIKey(cfg, provider)
	if apiKey == "" {
		return errorOutcome(fmt.Sprintf("No API key provided for %s", provider))
	}

	chat, err := e.chatFactory(provider, apiKey, stringField(cfg, "base_url", ""))
	if err != nil {
		return errorOutcome(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.ChatTimeout)
	defer cancel()
	resp, err := chat.Chat(ctx, model.ChatRequest{
		Model:       modelName,
		System:      system,
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return errorOutcome(fmt.Sprintf("LLM request failed: %v", err))
	}

	respModel := resp.Model
	if respModel == "" {
		respModel = modelName
	}
	output := map[string]any{
		"content":       resp.Content,
		"model":         respModel,
		"provider":      provider,
		"prompt":        truncate(prompt, 200),
		"tokens_used":   resp.TokensUsed,
		"finish_reason": resp.FinishReason,
	}
	out := successOutcome(output)
	out.Stdout = fmt.Sprintf("LLM request to %s (%s) completed", provider, respModel)
	return out
}

// execOllamaChat handles the local provider, which has its own timeout, host
// allow-list, and output shape.
func (e *Engine) execOllamaChat(ctx context.Context, cfg map[string]any, prompt, system string, temperature float64, maxTokens int) Outcome {
	modelName := stringField(cfg, "model", DefaultOllamaModel)
	host := stringField(cfg, "host", stringField(cfg, "base_url", ""))

	chat, err := e.chatFactory("ollama", "", host)
	if err != nil {
		return errorOutcome(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.OllamaTimeout)
	defer cancel()
	resp, err := chat.Chat(ctx, model.ChatRequest{
		Model:       modelName,
		System:      system,
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return errorOutcome(fmt.Sprintf("LLM request failed: %v", err))
	}

	respHost := host
	if ol, ok := chat.(*model.Ollama); ok {
		respHost = ol.Host()
	}
	respModel := resp.Model
	if respModel == "" {
		respModel = modelName
	}
	output := map[string]any{
		"content":       resp.Content,
		"model":         respModel,
		"provider":      "ollama",
		"host":          respHost,
		"prompt":        truncate(prompt, 200),
		"eval_count":    resp.EvalCount,
		"eval_duration": resp.EvalDuration,
	}
	out := successOutcome(output)
	out.Stdout = fmt.Sprintf("LLM request to ollama (%s) completed", respModel)
	return out
}

// resolveAPIKey finds the key for a hosted provider: node config first, then
// the configured environment variable name, then <PROVIDER>_API_KEY.
func resolveAPIKey(cfg map[string]any, provider string) string {
	if key := stringField(cfg, "api_key", ""); key != "" {
		return key
	}
	envName := stringField(cfg, "api_key_name", "")
	if envName == "" {
		switch provider {
		case "openrouter":
			envName = "OPENROUTER_API_KEY"
		case "anthropic":
			envName = "ANTHROPIC_API_KEY"
		default:
			envName = strings.ToUpper(provider) + "_API_KEY"
		}
	}
	return os.Getenv(envName)
}

// buildPrompt renders the template: {input} expands to the full input as
// JSON, {key} markers expand to field values truncated at 5000 chars. If
// markers remain unresolved the input rides along as pretty JSON (truncated
// to 2000 chars) so the model still sees the data.
func buildPrompt(template string, input any) string {
	if template == "" {
		template = "{input}"
	}
	s := template
	if strings.Contains(s, "{input}") {
		full, err := json.Marshal(sanitizeValue(input))
		if err == nil {
			s = strings.ReplaceAll(s, "{input}", string(full))
		}
	}
	in, _ := asMap(input)
	for k, v := range in {
		marker := "{" + k + "}"
		if !strings.Contains(s, marker) {
			continue
		}
		s = strings.ReplaceAll(s, marker, truncate(stringifyValue(v), 5000))
	}
	if leftoverPlaceholderRe.MatchString(s) && len(in) > 0 {
		pretty, err := json.MarshalIndent(sanitizeValue(in), "", "  ")
		if err == nil {
			s += "\n\nInput data:\n" + truncate(string(pretty), 2000)
		}
	}
	return s
}

// defaultChatFactory wires real providers. Openrouter requests carry the
// attribution headers its API expects from local tooling.
func defaultChatFactory(provider, apiKey, baseURL string) (model.ChatModel, error) {
	switch provider {
	case "ollama":
		return model.NewOllama(baseURL)
	case "anthropic":
		return model.NewAnthropic(apiKey), nil
	default:
		var opts []model.CompatOption
		if baseURL != "" {
			opts = append(opts, model.WithBaseURL(baseURL))
		}
		if provider == "openrouter" {
			opts = append(opts,
				model.WithHeader("HTTP-Referer", "http://localhost:3000"),
				model.WithHeader("X-Title", "Workflow Builder"),
			)
		}
		return model.NewOpenAICompat(provider, apiKey, opts...)
	}
}
