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
	MinScore = 0
	MaxScore = 10
)

var (
	ErrScoreOutOfRange = errors.New("coach: score out of range")
	ErrMissingSummary  = errors.New("coach: assessment summary is required")

	// ErrIncompleteAssessment reports a required field absent from the model output.
	ErrIncompleteAssessment = errors.New("coach: assessment is incomplete")
)

type Scores struct {
	Communication float64 `json:"communication"`
	Technical     float64 `json:"technical"`
	Overall       float64 `json:"overall"`
}

// Assessment is the structured evaluation of one interview.
type Assessment struct {
	Summary             string   `json:"summary"`
	CommunicationSkills string   `json:"communicationSkills"`
	TechnicalKnowledge  string   `json:"technicalKnowledge"`
	OverallPerformance  string   `json:"overallPerformance"`
	AreasForImprovement []string `json:"areasForImprovement"`
	Scores              Scores   `json:"scores"`
}

// Validate rejects a missing summary and any score outside [0,10].
func (a Assessment) Validate() error {
	if strings.TrimSpace(a.Summary) == "" {
		return ErrMissingSummary
	}
	for _, s := range []struct {
		name  string
		value float64
	}{
		{"communication", a.Scores.Communication},
		{"technical", a.Scores.Technical},
		{"overall", a.Scores.Overall},
	} {
		if s.value < MinScore || s.value > MaxScore {
			return fmt.Errorf("%s score %v: %w", s.name, s.value, ErrScoreOutOfRange)
		}
	}
	return nil
}

type AssessRequest struct {
	Role      string
	Exchanges []interview.Exchange
}

type assessOutput struct {
	Assessment *assessmentWire `json:"assessment"`
}

// assessmentWire mirrors Assessment with optional fields so absent keys can be
// told apart from zero values.
type assessmentWire struct {
	Summary             *string     `json:"summary"`
	CommunicationSkills *string     `json:"communicationSkills"`
	TechnicalKnowledge  *string     `json:"technicalKnowledge"`
	OverallPerformance  *string     `json:"overallPerformance"`
	AreasForImprovement []string    `json:"areasForImprovement"`
	Scores              *scoresWire `json:"scores"`
}

type scoresWire struct {
	Communication *float64 `json:"communication"`
	Technical     *float64 `json:"technical"`
	Overall       *float64 `json:"overall"`
}

// assessment checks that every schema field is present and converts.
func (w assessmentWire) assessment() (Assessment, error) {
	if w.Summary == nil || strings.TrimSpace(*w.Summary) == "" {
		return Assessment{}, ErrMissingSummary
	}
	var missing []string
	for _, f := range []struct {
		name string
		ok   bool
	}{
		{"communicationSkills", w.CommunicationSkills != nil},
		{"technicalKnowledge", w.TechnicalKnowledge != nil},
		{"overallPerformance", w.OverallPerformance != nil},
		{"areasForImprovement", w.AreasForImprovement != nil},
		{"scores", w.Scores != nil},
		{"scores.communication", w.Scores != nil && w.Scores.Communication != nil},
		{"scores.technical", w.Scores != nil && w.Scores.Technical != nil},
		{"scores.overall", w.Scores != nil && w.Scores.Overall != nil},
	} {
		if !f.ok {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return Assessment{}, fmt.Errorf("missing %s: %w", strings.Join(missing, ", "), ErrIncompleteAssessment)
	}
	return Assessment{
		Summary:             strings.TrimSpace(*w.Summary),
		CommunicationSkills: *w.CommunicationSkills,
		TechnicalKnowledge:  *w.TechnicalKnowledge,
		OverallPerformance:  *w.OverallPerformance,
		AreasForImprovement: w.AreasForImprovement,
		Scores: Scores{
			Communication: *w.Scores.Communication,
			Technical:     *w.Scores.Technical,
			Overall:       *w.Scores.Overall,
		},
	}, nil
}

// Assessor scores an interview against the rubric.
type Assessor struct {
	adapter llm.LLMAdapter
	rubric  Rubric
	log     *slog.Logger
}

func NewAssessor(adapter llm.LLMAdapter, rubric Rubric, logger *slog.Logger) *Assessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assessor{adapter: adapter, rubric: rubric, log: logging.NewComponentLogger(logger, "assessor")}
}

func (a *Assessor) Assess(ctx context.Context, req AssessRequest) (Assessment, error) {
	if a.adapter == nil {
		return Assessment{}, ErrNoAdapter
	}
	resp, err := a.adapter.Generate(ctx, llm.Context{
		Messages: []map[string]any{
			llm.SystemMessage(assessSystemPrompt(a.rubric)),
			llm.UserMessage(assessUserPrompt(req)),
		},
		JSON: true,
		Task: TaskAssess,
	})
	if err != nil {
		return Assessment{}, errorsx.Wrap(fmt.Errorf("assess performance: %w", err), errorsx.ReasonLLMGenerate)
	}

	var wrapped assessOutput
	if err := decode(resp.Text, &wrapped); err != nil {
		return Assessment{}, err
	}
	var wire assessmentWire
	if wrapped.Assessment != nil {
		wire = *wrapped.Assessment
	} else if err := decode(resp.Text, &wire); err != nil {
		return Assessment{}, err
	}
	out, err := wire.assessment()
	if err == nil {
		err = out.Validate()
	}
	if err != nil {
		return Assessment{}, errorsx.Wrap(err, errorsx.ReasonValidate)
	}
	a.log.Info("assessment_ready",
		slog.String("summary", out.Summary),
		slog.Float64("overall", out.Scores.Overall),
		slog.Int("exchanges", len(req.Exchanges)))
	return out, nil
}
