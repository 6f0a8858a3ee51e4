package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"weft/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseDirect(t *testing.T) {
	resp, err := parseResponse(`{"el_0": {"show": true, "line": 5, "position": "before", "label": "[N:▲]"}}`)
	require.NoError(t, err)
	require.Contains(t, resp, "el_0")
	assert.True(t, resp["el_0"].Show)
	assert.Equal(t, 5, resp["el_0"].Line)
	assert.Equal(t, "before", resp["el_0"].Position)
	assert.Equal(t, "[N:▲]", resp["el_0"].Label)
}

func TestParseResponseFenced(t *testing.T) {
	text := "```json\n{\"el_1\": {\"show\": false, \"reason\": \"tracking pixel\"}}\n```"
	resp, err := parseResponse(text)
	require.NoError(t, err)
	require.Contains(t, resp, "el_1")
	assert.False(t, resp["el_1"].Show)
	assert.Equal(t, "tracking pixel", resp["el_1"].Reason)
}

func TestParseResponseEmbeddedInProse(t *testing.T) {
	text := `Here is my placement decision:

{"el_2": {"show": true, "line": 0, "position": "after", "label": "[N:search]"}}

Let me know if you need anything else.`
	resp, err := parseResponse(text)
	require.NoError(t, err)
	require.Contains(t, resp, "el_2")
	assert.Equal(t, "after", resp["el_2"].Position)
}

func TestParseResponseBracesInStrings(t *testing.T) {
	text := `{"el_0": {"show": true, "line": 1, "position": "after", "label": "[N:{x}]"}}`
	resp, err := parseResponse(text)
	require.NoError(t, err)
	assert.Equal(t, "[N:{x}]", resp["el_0"].Label)
}

func TestParseResponseNoJSON(t *testing.T) {
	_, err := parseResponse("I cannot help with that.")
	assert.Error(t, err)
}

func TestParseResponseUnbalanced(t *testing.T) {
	_, err := parseResponse(`{"el_0": {"show": true`)
	assert.Error(t, err)
}

func TestBuildPromptNumbersLines(t *testing.T) {
	req := Request{
		Snapshot: []string{"Comments", "Loading comments...", ""},
		Elements: []ElementInfo{
			{ID: "el_0", Kind: "button", Text: "▲", NearestLine: 1},
		},
	}
	prompt, err := buildPrompt(req)
	require.NoError(t, err)
	assert.Contains(t, prompt, "0: Comments")
	assert.Contains(t, prompt, "1: Loading comments...")
	assert.Contains(t, prompt, `"el_0"`)
	assert.Contains(t, prompt, `"button"`)
}

func TestBuildPromptRespectsSnapshotLimit(t *testing.T) {
	long := strings.Repeat("x", 100)
	req := Request{
		Snapshot:      []string{long, long, long, long},
		SnapshotLimit: 250,
	}
	prompt, err := buildPrompt(req)
	require.NoError(t, err)
	assert.Contains(t, prompt, "0: ")
	assert.Contains(t, prompt, "1: ")
	assert.NotContains(t, prompt, "3: ")
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(config.ProviderConfig{Provider: "bard"})
	assert.Error(t, err)
}

func TestNewOllamaDefaults(t *testing.T) {
	c := NewOllama(config.ProviderConfig{Provider: "ollama"})
	assert.Equal(t, "ollama", c.Name())
	assert.Equal(t, "llama3.2:3b", c.model)
	assert.Equal(t, defaultOllamaURL, c.baseURL)
}

func TestNewChainSkipsBrokenProviders(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	chain, errs := NewChain([]config.ProviderConfig{
		{Provider: "anthropic"}, // no API key available
		{Provider: "ollama"},
	})
	require.Len(t, chain, 1)
	assert.Equal(t, "ollama", chain[0].Name())
	assert.Len(t, errs, 1)
}

func TestOllamaClassify(t *testing.T) {
	placements := Response{
		"el_0": {Show: true, Line: 2, Position: "after", Label: "[N:vote]"},
	}
	inner, err := json.Marshal(placements)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.NotEmpty(t, req.Prompt)

		json.NewEncoder(w).Encode(ollamaResponse{
			Response:  "```json\n" + string(inner) + "\n```",
			EvalCount: 42,
		})
	}))
	defer srv.Close()

	c := NewOllama(config.ProviderConfig{Provider: "ollama", BaseURL: srv.URL})
	resp, err := c.Classify(context.Background(), Request{
		Snapshot: []string{"line zero", "line one", "line two"},
		Elements: []ElementInfo{{ID: "el_0", Kind: "button", Text: "▲"}},
	})
	require.NoError(t, err)
	assert.Equal(t, placements["el_0"], resp["el_0"])
}

func TestOllamaClassifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllama(config.ProviderConfig{Provider: "ollama", BaseURL: srv.URL})
	_, err := c.Classify(context.Background(), Request{Snapshot: []string{"x"}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ollama error")
}
