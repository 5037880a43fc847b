package providers

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Settings shared by all providers
type Settings struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
	// BaseURL overrides the API endpoint, for tests and proxies
	BaseURL string
}

// AnthropicProvider implements the Provider interface using Anthropic's Claude API
type AnthropicProvider struct {
	client   *anthropic.Client
	settings Settings
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(s Settings) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithMaxRetries(1),
	}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicProvider{client: &client, settings: s}
}

func (p *AnthropicProvider) Name() string  { return ProviderAnthropic }
func (p *AnthropicProvider) Model() string { return p.settings.Model }

// Complete sends one system+user exchange to Claude and returns its text
func (p *AnthropicProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.settings.Model),
		MaxTokens:   p.settings.MaxTokens,
		Temperature: anthropic.Float(p.settings.Temperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to call Claude API: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("Claude returned no text content")
}
