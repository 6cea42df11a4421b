package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/hearth-go/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Oracle wraps a langchaingo model for intent classification and
// response generation. All pipeline stages share one instance.
type Oracle struct {
	llm       llms.Model
	modelName string

	// usage receives per-call timing and token counts when set
	usage func(elapsed time.Duration, inputTokens, outputTokens int64)
}

// OnUsage registers a callback fed after each generation. Token counts
// are zero for providers that do not report them.
func (o *Oracle) OnUsage(fn func(elapsed time.Duration, inputTokens, outputTokens int64)) {
	o.usage = fn
}

// recordUsage extracts token counts from the first choice's generation
// info. Providers disagree on key names; both spellings are probed.
func (o *Oracle) recordUsage(elapsed time.Duration, response *llms.ContentResponse) {
	if o.usage == nil || response == nil || len(response.Choices) == 0 {
		return
	}
	info := response.Choices[0].GenerationInfo
	in := tokenCount(info, "PromptTokens", "input_tokens")
	out := tokenCount(info, "CompletionTokens", "output_tokens")
	o.usage(elapsed, in, out)
}

func tokenCount(info map[string]any, keys ...string) int64 {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}

// New creates an oracle based on configuration.
func New(cfg config.Config) (*Oracle, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Oracle{
		llm:       model,
		modelName: cfg.LLMModel,
	}, nil
}

// Generate generates text based on a prompt.
func (o *Oracle) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return response, nil
}

// GenerateWithSystem generates text with a system prompt.
func (o *Oracle) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	start := time.Now()
	response, err := o.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate with system: %w", err)
	}
	o.recordUsage(time.Since(start), response)

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return response.Choices[0].Content, nil
}

// GenerateWithHistory generates text over a full chat transcript. The
// pipeline stages feed their running session history through this so
// follow-up turns keep earlier context.
func (o *Oracle) GenerateWithHistory(ctx context.Context, messages []llms.MessageContent) (string, error) {
	start := time.Now()
	response, err := o.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate with history: %w", err)
	}
	o.recordUsage(time.Since(start), response)

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return response.Choices[0].Content, nil
}

// Model returns the underlying model name.
func (o *Oracle) Model() string {
	return o.modelName
}
