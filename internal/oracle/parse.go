package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseResponse extracts a Response from provider output. Models wrap JSON
// in markdown fences or prose often enough that direct unmarshaling is only
// the first attempt; after that the first balanced JSON object is tried.
func parseResponse(text string) (Response, error) {
	text = strings.TrimSpace(text)

	var resp Response
	if err := json.Unmarshal([]byte(text), &resp); err == nil {
		return resp, nil
	}

	if stripped := stripFences(text); stripped != text {
		if err := json.Unmarshal([]byte(stripped), &resp); err == nil {
			return resp, nil
		}
		text = stripped
	}

	obj, ok := extractJSONObject(text)
	if !ok {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		return nil, fmt.Errorf("parse extracted JSON: %w", err)
	}
	return resp, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := strings.TrimPrefix(text, "```")
	if idx := strings.Index(body, "\n"); idx != -1 {
		// Drop the language tag line ("json", "JSON", or empty).
		first := strings.TrimSpace(body[:idx])
		if len(first) <= 10 && !strings.Contains(first, "{") {
			body = body[idx+1:]
		}
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

// extractJSONObject returns the first balanced {...} span in text. Brace
// counting ignores braces inside string literals.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}
