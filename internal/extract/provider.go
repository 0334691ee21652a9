package extract

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/apflow/invoice-cli/internal/config"
	"github.com/apflow/invoice-cli/pkg/anthropic"
	"github.com/apflow/invoice-cli/pkg/mistral"
)

// NewChatClient creates a ChatClient based on config. The mistral provider
// reuses the same API key as the OCR step; anthropic needs its own.
func NewChatClient(cfg *config.Config, mistralKey string) (ChatClient, error) {
	switch cfg.Extract.Provider {
	case "mistral", "":
		if mistralKey == "" {
			mistralKey = cfg.Mistral.Key
		}
		if mistralKey == "" {
			return nil, eris.New("extract: mistral provider requires mistral api key")
		}
		opts := []mistral.Option{mistral.WithChatModel(cfg.Mistral.ChatModel)}
		if cfg.Mistral.BaseURL != "" {
			opts = append(opts, mistral.WithBaseURL(cfg.Mistral.BaseURL))
		}
		if cfg.Mistral.RateLimit > 0 {
			opts = append(opts, mistral.WithRateLimit(cfg.Mistral.RateLimit))
		}
		return NewMistralChat(mistral.NewClient(mistralKey, opts...), ""), nil
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("extract: anthropic provider requires anthropic.key")
		}
		return NewAnthropicChat(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model), nil
	default:
		return nil, eris.Errorf("extract: unknown provider %q", cfg.Extract.Provider)
	}
}

// MistralChat adapts the Mistral chat completion API to ChatClient.
type MistralChat struct {
	client mistral.Client
	model  string
}

// NewMistralChat creates a Mistral-backed ChatClient. If model is empty the
// client's default chat model is used.
func NewMistralChat(client mistral.Client, model string) *MistralChat {
	return &MistralChat{client: client, model: model}
}

// Complete sends a single-turn user message and returns the first choice.
func (m *MistralChat) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.ChatCompletion(ctx, mistral.ChatCompletionRequest{
		Model: m.model,
		Messages: []mistral.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", eris.New("extract: empty chat response")
	}
	return resp.Choices[0].Message.Content, nil
}

// AnthropicChat adapts the Anthropic messages API to ChatClient.
type AnthropicChat struct {
	client anthropic.Client
	model  string
}

// NewAnthropicChat creates an Anthropic-backed ChatClient.
func NewAnthropicChat(client anthropic.Client, model string) *AnthropicChat {
	return &AnthropicChat{client: client, model: model}
}

// Complete sends a single-turn user message and returns the reply text.
func (a *AnthropicChat) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: 2048,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
