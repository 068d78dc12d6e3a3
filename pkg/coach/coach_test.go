package coach

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/harunnryd/mockview/pkg/errorsx"
	"github.com/harunnryd/mockview/pkg/interview"
	"github.com/harunnryd/mockview/pkg/llm"
)

type cannedAdapter struct {
	text   string
	err    error
	inputs []llm.Context
}

func (c *cannedAdapter) Name() string { return "canned" }

func (c *cannedAdapter) Generate(_ context.Context, input llm.Context) (llm.Response, error) {
	c.inputs = append(c.inputs, input)
	if c.err != nil {
		return llm.Response{}, c.err
	}
	return llm.Response{Text: c.text}, nil
}

func userContent(t *testing.T, input llm.Context) string {
	t.Helper()
	for _, m := range input.Messages {
		if m["role"] == "user" {
			return m["content"].(string)
		}
	}
	t.Fatalf("no user message")
	return ""
}

func TestCleanJSON(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":   `{"a":1}`,
		"Sure! {\"a\":1} hope this": `{"a":1}`,
		"  {\"a\":1}  ":             `{"a":1}`,
		"":                          "",
	}
	for in, want := range cases {
		if got := cleanJSON(in); got != want {
			t.Fatalf("cleanJSON(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateFollowUp(t *testing.T) {
	adapter := &cannedAdapter{text: "```json\n{\"followUpQuestion\": \" How do you handle conflict? \"}\n```"}
	f := NewFollowUps(adapter, nil)
	got, err := f.GenerateFollowUp(context.Background(), interview.FollowUpRequest{
		PreviousQuestion: "Tell me about yourself",
		UserAnswer:       "I build APIs",
		JobRole:          "Backend Engineer",
	})
	if err != nil {
		t.Fatalf("follow-up: %v", err)
	}
	if got != "How do you handle conflict?" {
		t.Fatalf("unexpected follow-up %q", got)
	}
	in := adapter.inputs[0]
	if !in.JSON || in.Task != TaskFollowUp {
		t.Fatalf("expected json follow-up request, got %+v", in)
	}
	if !strings.Contains(userContent(t, in), "Backend Engineer") {
		t.Fatalf("prompt should carry the role")
	}
}

func TestGenerateFollowUpClosingPrompt(t *testing.T) {
	adapter := &cannedAdapter{text: `{"followUpQuestion":"Goodbye!"}`}
	f := NewFollowUps(adapter, nil)
	_, err := f.GenerateFollowUp(context.Background(), interview.FollowUpRequest{
		PreviousQuestion: "Any questions?",
		UserAnswer:       "No",
		JobRole:          "PM",
		Phase:            interview.PhaseClosing,
	})
	if err != nil {
		t.Fatalf("follow-up: %v", err)
	}
	if !strings.Contains(userContent(t, adapter.inputs[0]), "Goodbye") {
		t.Fatalf("closing prompt should explain how to end")
	}
}

func TestGenerateFollowUpErrors(t *testing.T) {
	f := NewFollowUps(&cannedAdapter{text: `{"followUpQuestion":""}`}, nil)
	_, err := f.GenerateFollowUp(context.Background(), interview.FollowUpRequest{UserAnswer: "x"})
	if !errors.Is(err, ErrNoPreviousQuestion) {
		t.Fatalf("expected ErrNoPreviousQuestion, got %v", err)
	}
	_, err = f.GenerateFollowUp(context.Background(), interview.FollowUpRequest{PreviousQuestion: "q", UserAnswer: "x"})
	if !errors.Is(err, ErrEmptyOutput) || !errorsx.HasReason(err, errorsx.ReasonValidate) {
		t.Fatalf("expected empty output validation error, got %v", err)
	}

	f = NewFollowUps(&cannedAdapter{text: "not json"}, nil)
	_, err = f.GenerateFollowUp(context.Background(), interview.FollowUpRequest{PreviousQuestion: "q", UserAnswer: "x"})
	if !errorsx.HasReason(err, errorsx.ReasonDecode) {
		t.Fatalf("expected decode reason, got %v", err)
	}

	f = NewFollowUps(&cannedAdapter{err: errors.New("down")}, nil)
	_, err = f.GenerateFollowUp(context.Background(), interview.FollowUpRequest{PreviousQuestion: "q", UserAnswer: "x"})
	if !errorsx.HasReason(err, errorsx.ReasonLLMGenerate) {
		t.Fatalf("expected llm reason, got %v", err)
	}
}

const validAssessment = `{"assessment":{"summary":"Good","communicationSkills":"- clear","technicalKnowledge":"- solid","overallPerformance":"- confident","areasForImprovement":["Use STAR"],"scores":{"communication":8,"technical":7,"overall":7.5}}}`

func TestAssess(t *testing.T) {
	adapter := &cannedAdapter{text: validAssessment}
	a := NewAssessor(adapter, DefaultRubric(), nil)
	req := AssessRequest{Role: "Backend Engineer", Exchanges: []interview.Exchange{{Question: "Q1", Answer: "A1"}}}
	got, err := a.Assess(context.Background(), req)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if got.Summary != "Good" || got.Scores.Overall != 7.5 || len(got.AreasForImprovement) != 1 {
		t.Fatalf("unexpected assessment %+v", got)
	}
	system := adapter.inputs[0].Messages[0]["content"].(string)
	if !strings.Contains(system, "Clarity, conciseness, engagement, and active listening.") {
		t.Fatalf("rubric missing from prompt")
	}
	if !strings.Contains(userContent(t, adapter.inputs[0]), "Question: Q1\nAnswer: A1") {
		t.Fatalf("exchanges missing from prompt")
	}

	again, err := a.Assess(context.Background(), req)
	if err != nil {
		t.Fatalf("assess again: %v", err)
	}
	if !reflect.DeepEqual(got, again) {
		t.Fatalf("same input should yield the same structure")
	}
}

func TestAssessAcceptsBareObject(t *testing.T) {
	bare := `{"summary":"Average","communicationSkills":"ok","technicalKnowledge":"ok","overallPerformance":"ok","areasForImprovement":[],"scores":{"communication":5,"technical":5,"overall":5}}`
	a := NewAssessor(&cannedAdapter{text: bare}, DefaultRubric(), nil)
	got, err := a.Assess(context.Background(), AssessRequest{Role: "x"})
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if got.Summary != "Average" || got.AreasForImprovement == nil {
		t.Fatalf("unexpected assessment %+v", got)
	}
}

func assessmentJSON(scores string) string {
	return `{"assessment":{"summary":"Good","communicationSkills":"- clear","technicalKnowledge":"- solid","overallPerformance":"- confident","areasForImprovement":["Use STAR"],"scores":` + scores + `}}`
}

func TestAssessRejectsOutOfRangeScores(t *testing.T) {
	for _, bad := range []string{"-1", "11"} {
		text := assessmentJSON(`{"communication":` + bad + `,"technical":5,"overall":5}`)
		a := NewAssessor(&cannedAdapter{text: text}, DefaultRubric(), nil)
		_, err := a.Assess(context.Background(), AssessRequest{Role: "x"})
		if !errors.Is(err, ErrScoreOutOfRange) {
			t.Fatalf("score %s: expected ErrScoreOutOfRange, got %v", bad, err)
		}
	}
	a := NewAssessor(&cannedAdapter{text: `{"assessment":{"summary":" ","scores":{}}}`}, DefaultRubric(), nil)
	if _, err := a.Assess(context.Background(), AssessRequest{}); !errors.Is(err, ErrMissingSummary) {
		t.Fatalf("expected ErrMissingSummary, got %v", err)
	}
}

func TestAssessRejectsIncompleteOutput(t *testing.T) {
	cases := map[string]string{
		"summary only":   `{"assessment":{"summary":"Good"}}`,
		"partial scores": `{"summary":"Good","communicationSkills":"a","technicalKnowledge":"b","overallPerformance":"c","areasForImprovement":["x"],"scores":{"communication":7}}`,
		"no scores":      `{"summary":"Good","communicationSkills":"a","technicalKnowledge":"b","overallPerformance":"c","areasForImprovement":["x"]}`,
		"no areas":       `{"summary":"Good","communicationSkills":"a","technicalKnowledge":"b","overallPerformance":"c","scores":{"communication":7,"technical":7,"overall":7}}`,
		"null areas":     `{"summary":"Good","communicationSkills":"a","technicalKnowledge":"b","overallPerformance":"c","areasForImprovement":null,"scores":{"communication":7,"technical":7,"overall":7}}`,
		"no technical":   `{"summary":"Good","communicationSkills":"a","overallPerformance":"c","areasForImprovement":["x"],"scores":{"communication":7,"technical":7,"overall":7}}`,
		"overall absent": assessmentJSON(`{"communication":0,"technical":0}`),
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			a := NewAssessor(&cannedAdapter{text: text}, DefaultRubric(), nil)
			_, err := a.Assess(context.Background(), AssessRequest{Role: "x"})
			if !errors.Is(err, ErrIncompleteAssessment) {
				t.Fatalf("expected ErrIncompleteAssessment, got %v", err)
			}
			if !errorsx.HasReason(err, errorsx.ReasonValidate) {
				t.Fatalf("expected validate reason, got %v", err)
			}
		})
	}
}

func TestProvideFeedback(t *testing.T) {
	adapter := &cannedAdapter{text: `{"personalizedFeedback":"Great effort!\n### **Structure**\nUse examples.\n*   **Best Practice:** STAR."}`}
	w := NewFeedbackWriter(adapter, nil)
	got, err := w.ProvideFeedback(context.Background(), FeedbackRequest{
		Transcript: "Interviewer: Hi\nYou: Hello",
		Role:       "Designer",
		Assessment: Assessment{Summary: "Good"},
	})
	if err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if !strings.HasPrefix(got, "Great effort!") {
		t.Fatalf("unexpected feedback %q", got)
	}
	prompt := userContent(t, adapter.inputs[0])
	if !strings.Contains(prompt, `"summary":"Good"`) || !strings.Contains(prompt, "You: Hello") {
		t.Fatalf("prompt should embed transcript and serialized assessment: %s", prompt)
	}
}

func TestLoadRubric(t *testing.T) {
	r, err := LoadRubric("")
	if err != nil || r != DefaultRubric() {
		t.Fatalf("empty path should return defaults")
	}
	path := filepath.Join(t.TempDir(), "rubric.yaml")
	if err := os.WriteFile(path, []byte("technical: \"System design depth.\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, err = LoadRubric(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if r.Technical != "System design depth." || r.Communication != DefaultRubric().Communication {
		t.Fatalf("unexpected rubric %+v", r)
	}
	if _, err := LoadRubric(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
