package oracle

import (
	"context"
	"fmt"
	"os"

	"weft/internal/config"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClassifier places elements via Anthropic's Messages API.
type AnthropicClassifier struct {
	client *anthropic.Client
	model  string
}

func NewAnthropic(cfg config.ProviderConfig) (*AnthropicClassifier, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaude3_5HaikuLatest)
	}

	return &AnthropicClassifier{client: &client, model: model}, nil
}

func (c *AnthropicClassifier) Name() string { return "anthropic" }

func (c *AnthropicClassifier) Classify(ctx context.Context, req Request) (Response, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 2000,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	var responseText string
	for _, block := range resp.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	if responseText == "" {
		return nil, fmt.Errorf("empty response from anthropic")
	}

	return parseResponse(responseText)
}
