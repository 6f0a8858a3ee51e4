package oracle

import (
	"context"
	"fmt"
	"os"

	"weft/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClassifier places elements via the OpenAI chat completions API.
// A custom BaseURL supports OpenAI-compatible gateways.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

func NewOpenAI(cfg config.ProviderConfig) (*OpenAIClassifier, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable required")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientCfg)

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIClassifier{client: client, model: model}, nil
}

func (c *OpenAIClassifier) Name() string { return "openai" }

func (c *OpenAIClassifier) Classify(ctx context.Context, req Request) (Response, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   2000,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from openai")
	}

	return parseResponse(resp.Choices[0].Message.Content)
}
