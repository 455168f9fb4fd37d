package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"lawgpt/internal/config"
)

// Client sends a single prompt to a chat model with fixed decoding settings.
type Client struct {
	llm         llms.Model
	model       string
	temperature float64
	maxTokens   int
}

// New creates the model named by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (*Client, error) {
	llm, err := newModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s model: %w", cfg.Provider, err)
	}
	return NewWithModel(llm, cfg), nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(llm llms.Model, cfg config.LLMConfig) *Client {
	return &Client{
		llm:         llm,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func newModel(ctx context.Context, cfg config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "googleai":
		return googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
	case "openai":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Generate sends prompt as a single human message and returns the answer text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	log.Debug().Str("model", c.model).Int("prompt_chars", len(prompt)).Msg("Generating content")

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}
	resp, err := c.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return "", err
	}
	return ExtractText(resp), nil
}

// ExtractText returns the first choice's content. A response without choices
// is rendered as a whole instead of failing.
func ExtractText(resp *llms.ContentResponse) string {
	if resp != nil && len(resp.Choices) > 0 && resp.Choices[0] != nil {
		return resp.Choices[0].Content
	}
	return fmt.Sprintf("%+v", resp)
}
