package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/mockview/pkg/errorsx"
	"github.com/harunnryd/mockview/pkg/llm"
	"github.com/harunnryd/mockview/pkg/logging"
)

type FeedbackRequest struct {
	// Transcript is the rendered "Interviewer:" / "You:" conversation.
	Transcript string
	Role       string
	Assessment Assessment
}

type feedbackOutput struct {
	PersonalizedFeedback string `json:"personalizedFeedback"`
}

// FeedbackWriter produces the markdown coaching block shown after an
// interview.
type FeedbackWriter struct {
	adapter llm.LLMAdapter
	log     *slog.Logger
}

func NewFeedbackWriter(adapter llm.LLMAdapter, logger *slog.Logger) *FeedbackWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackWriter{adapter: adapter, log: logging.NewComponentLogger(logger, "feedback")}
}

func (w *FeedbackWriter) ProvideFeedback(ctx context.Context, req FeedbackRequest) (string, error) {
	if w.adapter == nil {
		return "", ErrNoAdapter
	}
	assessment, err := json.Marshal(req.Assessment)
	if err != nil {
		return "", fmt.Errorf("encode assessment: %w", err)
	}
	resp, err := w.adapter.Generate(ctx, llm.Context{
		Messages: []map[string]any{
			llm.SystemMessage(feedbackSystemPrompt()),
			llm.UserMessage(feedbackUserPrompt(req, string(assessment))),
		},
		JSON: true,
		Task: TaskFeedback,
	})
	if err != nil {
		return "", errorsx.Wrap(fmt.Errorf("provide feedback: %w", err), errorsx.ReasonLLMGenerate)
	}
	var out feedbackOutput
	if err := decode(resp.Text, &out); err != nil {
		return "", err
	}
	text := strings.TrimSpace(out.PersonalizedFeedback)
	if text == "" {
		return "", errorsx.Wrap(fmt.Errorf("personalizedFeedback: %w", ErrEmptyOutput), errorsx.ReasonValidate)
	}
	w.log.Debug("feedback_ready", slog.Int("chars", len(text)))
	return text, nil
}
