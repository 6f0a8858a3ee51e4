package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"weft/internal/config"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaClassifier places elements via a local Ollama server. Ollama's HTTP
// API is small enough that a direct client keeps this provider free of any
// SDK dependency.
type OllamaClassifier struct {
	model   string
	baseURL string
	client  *http.Client
}

func NewOllama(cfg config.ProviderConfig) *OllamaClassifier {
	model := cfg.Model
	if model == "" {
		model = "llama3.2:3b"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &OllamaClassifier{
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

func (c *OllamaClassifier) Name() string { return "ollama" }

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaResponse struct {
	Response  string `json:"response"`
	EvalCount int    `json:"eval_count"`
}

func (c *OllamaClassifier) Classify(ctx context.Context, req Request) (Response, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(ollamaRequest{
		Model:  c.model,
		Prompt: prompt,
		System: systemPrompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: 0.3,
			NumPredict:  2000,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed (is ollama running?): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ollama error: status %d: %s", resp.StatusCode, body)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	if out.Response == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}

	return parseResponse(out.Response)
}
