package llm

import "context"

// Context is one model request.
type Context struct {
	Messages []map[string]any
	// JSON asks the provider for a single JSON object as output.
	JSON bool
	// Task names the collaborator issuing the request, for metrics.
	Task string
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

type LLMAdapter interface {
	Generate(ctx context.Context, input Context) (Response, error)
	Name() string
}

// SystemMessage builds a system role message.
func SystemMessage(content string) map[string]any {
	return map[string]any{"role": "system", "content": content}
}

// UserMessage builds a user role message.
func UserMessage(content string) map[string]any {
	return map[string]any{"role": "user", "content": content}
}

// SplitMessages separates the system instruction from the remaining turns.
// Providers without a system role use it for their instruction field.
func SplitMessages(messages []map[string]any) (system string, rest []map[string]any) {
	for _, m := range messages {
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		if role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
