package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/mockview/pkg/coach"
	"github.com/harunnryd/mockview/pkg/errorsx"
	"github.com/harunnryd/mockview/pkg/interview"
	"github.com/harunnryd/mockview/pkg/logging"
	"github.com/harunnryd/mockview/pkg/metrics"
)

const DefaultTimeout = 90 * time.Second

// FailureNotice is shown to the candidate when no report can be produced.
const FailureNotice = "Failed to generate your interview feedback. Please try again later."

var ErrEmptyTranscript = errors.New("report: transcript is empty")

// Report is the result of one finished interview.
type Report struct {
	SessionID  string               `json:"session_id"`
	Role       string               `json:"role"`
	Transcript interview.Transcript `json:"transcript"`
	Assessment coach.Assessment     `json:"assessment"`
	Feedback   string               `json:"feedback"`
	CreatedAt  time.Time            `json:"created_at"`
}

type Input struct {
	SessionID  string
	Role       string
	Transcript interview.Transcript
}

type Assessor interface {
	Assess(ctx context.Context, req coach.AssessRequest) (coach.Assessment, error)
}

type FeedbackWriter interface {
	ProvideFeedback(ctx context.Context, req coach.FeedbackRequest) (string, error)
}

// Sink consumes finished reports.
type Sink interface {
	Name() string
	Save(ctx context.Context, r Report) error
}

type Config struct {
	Timeout time.Duration
}

type Aggregator struct {
	cfg      Config
	assessor Assessor
	feedback FeedbackWriter
	sinks    []Sink
	obs      metrics.Observer
	log      *slog.Logger
	now      func() time.Time
}

func NewAggregator(cfg Config, assessor Assessor, feedback FeedbackWriter, obs metrics.Observer, logger *slog.Logger, sinks ...Sink) *Aggregator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		cfg:      cfg,
		assessor: assessor,
		feedback: feedback,
		sinks:    sinks,
		obs:      obs,
		log:      logging.NewComponentLogger(logger, "report"),
		now:      time.Now,
	}
}

// Run assesses the transcript, writes the feedback and forwards the report
// to every sink. Sink failures are logged and never returned.
func (a *Aggregator) Run(ctx context.Context, in Input) (Report, error) {
	log := a.log.With(slog.String("session_id", in.SessionID))
	if len(in.Transcript) == 0 {
		return Report{}, ErrEmptyTranscript
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	started := a.now()

	assessment, err := a.assessor.Assess(ctx, coach.AssessRequest{
		Role:      in.Role,
		Exchanges: in.Transcript.Exchanges(),
	})
	if err != nil {
		return Report{}, a.fail(log, in.SessionID, errorsx.Wrap(fmt.Errorf("assess: %w", err), errorsx.ReasonAssessment))
	}

	feedback, err := a.feedback.ProvideFeedback(ctx, coach.FeedbackRequest{
		Transcript: in.Transcript.Render(),
		Role:       in.Role,
		Assessment: assessment,
	})
	if err != nil {
		return Report{}, a.fail(log, in.SessionID, errorsx.Wrap(fmt.Errorf("feedback: %w", err), errorsx.ReasonFeedback))
	}

	r := Report{
		SessionID:  in.SessionID,
		Role:       strings.TrimSpace(in.Role),
		Transcript: in.Transcript.Clone(),
		Assessment: assessment,
		Feedback:   feedback,
		CreatedAt:  a.now().UTC(),
	}
	log.Info("report_ready",
		slog.String("summary", assessment.Summary),
		slog.Int("entries", len(r.Transcript)),
		slog.Duration("elapsed", a.now().Sub(started)))
	metrics.Record(a.obs, metrics.EventReportReady, in.SessionID, nil, map[string]any{
		"latency_ms": a.now().Sub(started).Milliseconds(),
		"overall":    assessment.Scores.Overall,
	})

	// Sinks run under their own deadline, detached from the report timeout.
	sinkCtx, sinkCancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer sinkCancel()
	for _, s := range a.sinks {
		if err := s.Save(sinkCtx, r); err != nil {
			log.Warn("report_sink_failed",
				slog.String("sink", s.Name()),
				slog.String("error", err.Error()),
				slog.String("reason_code", string(errorsx.Reason(err))))
		}
	}
	return r, nil
}

func (a *Aggregator) fail(log *slog.Logger, sessionID string, err error) error {
	log.Error("report_failed",
		slog.String("error", err.Error()),
		slog.String("reason_code", string(errorsx.Reason(err))))
	metrics.Record(a.obs, metrics.EventReportFailed, sessionID,
		map[string]string{"reason_code": string(errorsx.Reason(err))}, nil)
	return err
}
