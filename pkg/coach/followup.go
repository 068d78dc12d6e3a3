package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/mockview/pkg/errorsx"
	"github.com/harunnryd/mockview/pkg/interview"
	"github.com/harunnryd/mockview/pkg/llm"
	"github.com/harunnryd/mockview/pkg/logging"
)

const (
	TaskFollowUp = "followup"
	TaskAssess   = "assess"
	TaskFeedback = "feedback"
)

var (
	ErrNoAdapter          = errors.New("coach: llm adapter is required")
	ErrNoPreviousQuestion = errors.New("coach: previous question is required")
	ErrEmptyOutput        = errors.New("coach: model returned an empty value")
)

type followUpOutput struct {
	FollowUpQuestion string `json:"followUpQuestion"`
}

// FollowUps generates the interviewer's next utterance.
type FollowUps struct {
	adapter llm.LLMAdapter
	log     *slog.Logger
}

func NewFollowUps(adapter llm.LLMAdapter, logger *slog.Logger) *FollowUps {
	if logger == nil {
		logger = slog.Default()
	}
	return &FollowUps{adapter: adapter, log: logging.NewComponentLogger(logger, "followups")}
}

func (f *FollowUps) GenerateFollowUp(ctx context.Context, req interview.FollowUpRequest) (string, error) {
	if f.adapter == nil {
		return "", ErrNoAdapter
	}
	if strings.TrimSpace(req.PreviousQuestion) == "" {
		return "", errorsx.Wrap(ErrNoPreviousQuestion, errorsx.ReasonValidate)
	}
	resp, err := f.adapter.Generate(ctx, llm.Context{
		Messages: []map[string]any{
			llm.SystemMessage(followUpSystemPrompt()),
			llm.UserMessage(followUpUserPrompt(req)),
		},
		JSON: true,
		Task: TaskFollowUp,
	})
	if err != nil {
		return "", errorsx.Wrap(fmt.Errorf("generate follow-up: %w", err), errorsx.ReasonLLMGenerate)
	}
	var out followUpOutput
	if err := decode(resp.Text, &out); err != nil {
		return "", err
	}
	text := strings.TrimSpace(out.FollowUpQuestion)
	if text == "" {
		return "", errorsx.Wrap(fmt.Errorf("followUpQuestion: %w", ErrEmptyOutput), errorsx.ReasonValidate)
	}
	f.log.Debug("followup_generated",
		slog.String("phase", req.Phase.String()),
		slog.Int("chars", len(text)))
	return text, nil
}

var _ interview.FollowUpGenerator = (*FollowUps)(nil)
