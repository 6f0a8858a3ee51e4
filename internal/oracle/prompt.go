package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `You are helping to integrate interactive web elements into a text layout.
Your job is to decide, for each element:
1. Should it be shown? (hide ads, tracking widgets, irrelevant controls)
2. Where should it go? (which line number of the text)
3. How should it be labeled? (use the [N:label] format)

Be conservative - only show elements that are clearly useful for navigation or interaction.`

const responseFormat = `For each element, decide placement. Return JSON only:
{
  "el_0": {"show": true, "line": 5, "position": "before", "label": "[N:▲]"},
  "el_1": {"show": false, "reason": "tracking pixel"}
}

Use "N" as a placeholder for the number - it will be replaced.
"position" must be "before" or "after" the line.`

// buildPrompt renders the request as a single user prompt: the numbered
// text snapshot (truncated to the configured limit), the element batch as
// JSON, and the required response shape.
func buildPrompt(req Request) (string, error) {
	var snapshot strings.Builder
	limit := req.SnapshotLimit
	if limit <= 0 {
		limit = 3000
	}
	for i, line := range req.Snapshot {
		entry := fmt.Sprintf("%d: %s\n", i, line)
		if snapshot.Len()+len(entry) > limit {
			break
		}
		snapshot.WriteString(entry)
	}

	elements, err := json.MarshalIndent(req.Elements, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal elements: %w", err)
	}

	return fmt.Sprintf(`PAGE TEXT (with line numbers):
%s

ELEMENTS TO PLACE:
%s

%s`, snapshot.String(), elements, responseFormat), nil
}
