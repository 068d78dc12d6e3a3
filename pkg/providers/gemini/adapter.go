package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/harunnryd/mockview/pkg/llm"
	"github.com/harunnryd/mockview/pkg/resilience"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

// Adapter serves llm requests through the Gemini API.
type Adapter struct {
	cfg    Config
	client *genai.Client
}

func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Adapter{cfg: cfg, client: client}, nil
}

func (a *Adapter) Name() string { return "gemini" }

func (a *Adapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	system, turns := llm.SplitMessages(input.Messages)
	contents := toContents(turns)
	if len(contents) == 0 {
		return llm.Response{}, errors.New("gemini: no content to send")
	}
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if input.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if a.cfg.Temperature > 0 {
		cfg.Temperature = genai.Ptr(a.cfg.Temperature)
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.cfg.Model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			return llm.Response{}, resilience.RateLimitError{Provider: "gemini", Message: apiErr.Message}
		}
		return llm.Response{}, fmt.Errorf("gemini: generate: %w", err)
	}

	out := llm.Response{Text: resp.Text()}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func toContents(messages []map[string]any) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		text, _ := m["content"].(string)
		if strings.TrimSpace(text) == "" {
			continue
		}
		var role genai.Role = genai.RoleUser
		if r, _ := m["role"].(string); r == "assistant" || r == "model" {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(text, role))
	}
	return out
}

var _ llm.LLMAdapter = (*Adapter)(nil)
