package mock

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/harunnryd/mockview/pkg/coach"
	"github.com/harunnryd/mockview/pkg/llm"
)

// LLMConfig scripts the mock model. Empty fields fall back to built-in
// replies so a session can run end to end without a real provider.
type LLMConfig struct {
	Questions []string
	Closing   string
	Feedback  string
	// Assessment is returned verbatim for assessment requests when set.
	Assessment string
}

var defaultQuestions = []string{
	"Thanks for sharing. Can you walk me through a project you are proud of?",
	"What was the hardest problem in that project, and how did you solve it?",
	"How do you handle disagreements with teammates?",
	"Where do you see yourself growing in this role over the next two years?",
}

// LLMAdapter answers collaborator requests deterministically, keyed by the
// request task.
type LLMAdapter struct {
	cfg LLMConfig

	mu   sync.Mutex
	next int
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if len(cfg.Questions) == 0 {
		cfg.Questions = defaultQuestions
	}
	if cfg.Closing == "" {
		cfg.Closing = "You will hear back from us within a week. Thank you for your time, goodbye!"
	}
	if cfg.Feedback == "" {
		cfg.Feedback = "You showed real enthusiasm for the role.\n\n" +
			"### **Structure Your Answers**\nSome answers wandered before reaching the point.\n" +
			"*   **Best Practice:** Use the STAR method to keep stories focused.\n\n" +
			"### **Quantify Impact**\nResults were described without numbers.\n" +
			"*   **Best Practice:** Mention one measurable outcome per example.\n\n" +
			"Keep practicing and you will walk into the real interview with confidence."
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Generate(_ context.Context, input llm.Context) (llm.Response, error) {
	var payload any
	switch input.Task {
	case coach.TaskAssess:
		if a.cfg.Assessment != "" {
			return llm.Response{Text: a.cfg.Assessment, FinishReason: "stop"}, nil
		}
		payload = map[string]any{"assessment": map[string]any{
			"summary":             "Good",
			"communicationSkills": "- Clear and friendly\n- Answers could be shorter",
			"technicalKnowledge":  "- Solid fundamentals\n- Limited depth on trade-offs",
			"overallPerformance":  "- Confident delivery\n- Needs more concrete examples",
			"areasForImprovement": []string{"Use the STAR method", "Quantify results"},
			"scores":              map[string]any{"communication": 7, "technical": 6, "overall": 7},
		}}
	case coach.TaskFeedback:
		payload = map[string]any{"personalizedFeedback": a.cfg.Feedback}
	default:
		payload = map[string]any{"followUpQuestion": a.followUp(input)}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{Text: string(b), FinishReason: "stop"}, nil
}

func (a *LLMAdapter) followUp(input llm.Context) string {
	for _, m := range input.Messages {
		content, _ := m["content"].(string)
		if m["role"] == "user" && strings.Contains(content, "All interview questions have been asked") {
			return a.cfg.Closing
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	q := a.cfg.Questions[a.next%len(a.cfg.Questions)]
	a.next++
	return q
}

var _ llm.LLMAdapter = (*LLMAdapter)(nil)
