package coach

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harunnryd/mockview/pkg/errorsx"
	"github.com/harunnryd/mockview/pkg/redact"
)

// cleanJSON strips code fences and surrounding prose from model output.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

func decode(raw string, out any) error {
	payload := cleanJSON(raw)
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return errorsx.Wrap(fmt.Errorf("decode model output %q: %w", truncate(redact.Text(payload), 200), err), errorsx.ReasonDecode)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
