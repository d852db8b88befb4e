package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeJSONList parses a JSON array out of model output, tolerating code
// fences and surrounding prose. An empty final answer decodes as an empty
// list: a model with nothing to report is a valid outcome.
func decodeJSONList[T any](content string) ([]T, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}

	if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+3:]
		content = strings.TrimPrefix(content, "json")
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	}

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in model output")
	}

	var out []T
	if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("failed to decode model output: %w", err)
	}
	return out, nil
}
