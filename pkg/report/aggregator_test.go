package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/harunnryd/mockview/pkg/coach"
	"github.com/harunnryd/mockview/pkg/interview"
	"github.com/harunnryd/mockview/pkg/metrics"
)

type fakeAssessor struct {
	got coach.AssessRequest
	err error
}

func (f *fakeAssessor) Assess(_ context.Context, req coach.AssessRequest) (coach.Assessment, error) {
	f.got = req
	if f.err != nil {
		return coach.Assessment{}, f.err
	}
	return coach.Assessment{Summary: "Good", Scores: coach.Scores{Communication: 8, Technical: 7, Overall: 7}}, nil
}

type fakeFeedback struct {
	got   coach.FeedbackRequest
	err   error
	calls int
}

func (f *fakeFeedback) ProvideFeedback(_ context.Context, req coach.FeedbackRequest) (string, error) {
	f.calls++
	f.got = req
	if f.err != nil {
		return "", f.err
	}
	return "Well done!", nil
}

type captureSink struct {
	reports []Report
	err     error
}

func (c *captureSink) Name() string { return "capture" }

func (c *captureSink) Save(_ context.Context, r Report) error {
	c.reports = append(c.reports, r)
	return c.err
}

func sampleTranscript() interview.Transcript {
	return interview.Transcript{
		{Speaker: interview.SpeakerInterviewer, Text: "Tell me about yourself", IsQuestion: true},
		{Speaker: interview.SpeakerCandidate, Text: "I build APIs"},
		{Speaker: interview.SpeakerInterviewer, Text: "That was my last question."},
		{Speaker: interview.SpeakerCandidate, Text: "exit"},
	}
}

func TestAggregatorRun(t *testing.T) {
	assessor := &fakeAssessor{}
	feedback := &fakeFeedback{}
	failing := &captureSink{err: errors.New("disk full")}
	ok := &captureSink{}
	obs := metrics.NewMemoryObserver()
	a := NewAggregator(Config{}, assessor, feedback, obs, nil, failing, ok)

	r, err := a.Run(context.Background(), Input{SessionID: "s1", Role: "Backend Engineer", Transcript: sampleTranscript()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.Feedback != "Well done!" || r.Assessment.Summary != "Good" || r.SessionID != "s1" {
		t.Fatalf("unexpected report %+v", r)
	}
	if len(assessor.got.Exchanges) != 2 || assessor.got.Exchanges[0].Question != "Tell me about yourself" {
		t.Fatalf("unexpected exchanges %+v", assessor.got.Exchanges)
	}
	if !strings.HasPrefix(feedback.got.Transcript, "Interviewer: Tell me about yourself\nYou: I build APIs") {
		t.Fatalf("unexpected rendered transcript %q", feedback.got.Transcript)
	}
	if feedback.got.Assessment.Summary != "Good" {
		t.Fatalf("feedback should receive the assessment")
	}
	if len(failing.reports) != 1 || len(ok.reports) != 1 {
		t.Fatalf("every sink should receive the report despite failures")
	}
	if len(obs.Named(metrics.EventReportReady)) != 1 {
		t.Fatalf("expected report_ready event")
	}
}

func TestAggregatorAssessmentFailure(t *testing.T) {
	feedback := &fakeFeedback{}
	sink := &captureSink{}
	obs := metrics.NewMemoryObserver()
	a := NewAggregator(Config{}, &fakeAssessor{err: errors.New("down")}, feedback, obs, nil, sink)
	if _, err := a.Run(context.Background(), Input{SessionID: "s1", Role: "x", Transcript: sampleTranscript()}); err == nil {
		t.Fatalf("expected error")
	}
	if feedback.calls != 0 {
		t.Fatalf("feedback must not run after assessment failure")
	}
	if len(sink.reports) != 0 {
		t.Fatalf("no report should reach sinks")
	}
	if len(obs.Named(metrics.EventReportFailed)) != 1 {
		t.Fatalf("expected report_failed event")
	}
}

func TestAggregatorFeedbackFailure(t *testing.T) {
	a := NewAggregator(Config{}, &fakeAssessor{}, &fakeFeedback{err: errors.New("down")}, nil, nil)
	if _, err := a.Run(context.Background(), Input{Role: "x", Transcript: sampleTranscript()}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAggregatorEmptyTranscript(t *testing.T) {
	a := NewAggregator(Config{}, &fakeAssessor{}, &fakeFeedback{}, nil, nil)
	if _, err := a.Run(context.Background(), Input{Role: "x"}); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
}
