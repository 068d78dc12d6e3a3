package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/mockview/pkg/errorsx"
	"github.com/harunnryd/mockview/pkg/logging"
	"github.com/harunnryd/mockview/pkg/metrics"
	"github.com/harunnryd/mockview/pkg/redact"
	"github.com/harunnryd/mockview/pkg/turn"
)

const (
	DefaultMaxQuestions    = 5
	DefaultFollowUpTimeout = 20 * time.Second

	greetingTemplate = "Hello! Thanks for coming in today. Let's start the interview for the %s position. Tell me a bit about yourself and why you're interested in this role."
	closingPrompt    = `That was my last question. Thank you for your responses. Do you have any questions for me about the interview process? You can say "exit" at any time to finish.`

	fallbackQuestion = "I'm sorry, I seem to have encountered an issue. Let's move to the next question. What is your greatest strength?"
	fallbackReprompt = "I'm sorry, I couldn't process that. Could you repeat, or say 'exit' to finish?"
)

var (
	ErrEmptyRole      = errors.New("interview: role is required")
	ErrNoGenerator    = errors.New("interview: follow-up generator is required")
	ErrNotStarted     = errors.New("interview: not started")
	ErrAlreadyStarted = errors.New("interview: already started")
	ErrTerminated     = errors.New("interview: terminated")
	ErrBusy           = errors.New("interview: turn in progress")
)

// FollowUpRequest is the input of the follow-up question collaborator.
type FollowUpRequest struct {
	PreviousQuestion string
	UserAnswer       string
	JobRole          string
	Phase            Phase
}

// FollowUpGenerator produces the next interviewer utterance.
type FollowUpGenerator interface {
	GenerateFollowUp(ctx context.Context, req FollowUpRequest) (string, error)
}

// Voice speaks interviewer text. Speak returns once playback has ended or
// failed; failures are handled by the implementation.
type Voice interface {
	Speak(ctx context.Context, text string)
}

// Listener captures the candidate's next spoken answer.
type Listener interface {
	Listen(ctx context.Context) bool
	Stop(commit bool)
}

// Notifier shows transient notices to the candidate.
type Notifier interface {
	Notify(title, description string)
}

// Config configures one interview session.
type Config struct {
	SessionID       string
	Role            string
	MaxQuestions    int
	FollowUpTimeout time.Duration
	Triggers        Triggers
}

// Deps are the collaborators of a Controller. Only FollowUps is required.
type Deps struct {
	FollowUps FollowUpGenerator
	Voice     Voice
	Listener  Listener
	Notifier  Notifier
	Turns     *turn.Manager
	Observer  metrics.Observer
	Logger    *slog.Logger

	// OnEntry is called after every append with the new question count.
	OnEntry func(entry Entry, questionCount int)
	// OnFinish receives the final transcript exactly once.
	OnFinish func(ctx context.Context, transcript Transcript)
}

// Controller drives one interview: it owns the transcript and the phase and
// sequences speaking, listening and follow-up generation.
type Controller struct {
	cfg    Config
	deps   Deps
	phase  phaseMachine
	turns  *turn.Manager
	log    *slog.Logger
	finish sync.Once

	mu         sync.RWMutex
	transcript Transcript
	started    bool
}

func NewController(cfg Config, deps Deps) (*Controller, error) {
	cfg.Role = strings.TrimSpace(cfg.Role)
	if cfg.Role == "" {
		return nil, ErrEmptyRole
	}
	if deps.FollowUps == nil {
		return nil, ErrNoGenerator
	}
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = DefaultMaxQuestions
	}
	if cfg.FollowUpTimeout <= 0 {
		cfg.FollowUpTimeout = DefaultFollowUpTimeout
	}
	if deps.Turns == nil {
		deps.Turns = turn.NewManager()
	}
	base := deps.Logger
	if base == nil {
		base = slog.Default()
	}
	c := &Controller{
		cfg:   cfg,
		deps:  deps,
		turns: deps.Turns,
		log:   logging.NewComponentLogger(base, "interview").With(slog.String("session_id", cfg.SessionID)),
	}
	c.phase.AddListener(PhaseListenerFunc(c.recordPhase))
	return c, nil
}

func (c *Controller) Role() string { return c.cfg.Role }

func (c *Controller) MaxQuestions() int { return c.cfg.MaxQuestions }

func (c *Controller) Phase() Phase { return c.phase.Phase() }

// Transcript returns a copy of the conversation so far.
func (c *Controller) Transcript() Transcript {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transcript.Clone()
}

func (c *Controller) QuestionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transcript.QuestionCount()
}

// AddPhaseListener registers l for phase changes.
func (c *Controller) AddPhaseListener(l PhaseListener) {
	c.phase.AddListener(l)
}

// Start greets the candidate and opens the first listen session.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	c.log.Info("interview_started", slog.String("role", c.cfg.Role))
	c.ask(ctx, fmt.Sprintf(greetingTemplate, c.cfg.Role), true)
	return nil
}

// SubmitAnswer records a candidate answer and produces the next interviewer
// turn. Blank answers are ignored.
func (c *Controller) SubmitAnswer(ctx context.Context, answer string) error {
	answer = strings.TrimSpace(answer)
	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()
	switch {
	case c.phase.Phase() == PhaseTerminated:
		return ErrTerminated
	case !started:
		return ErrNotStarted
	case answer == "":
		return nil
	case c.turns.Busy():
		return ErrBusy
	}
	if c.deps.Listener != nil {
		c.deps.Listener.Stop(false)
	}
	metrics.Record(c.deps.Observer, metrics.EventAnswerCommitted, c.cfg.SessionID, nil, map[string]any{
		"chars": len(answer),
	})

	phase := c.phase.Phase()
	if phase == PhaseClosing && c.cfg.Triggers.IsExit(answer) {
		c.append(Entry{Speaker: SpeakerCandidate, Text: answer})
		c.terminate(ctx, "exit requested")
		return nil
	}

	c.append(Entry{Speaker: SpeakerCandidate, Text: answer})
	if err := c.turns.OnThinkStart(); err != nil {
		c.log.Warn("turn_gate_rejected", slog.String("error", err.Error()))
	}

	if phase == PhaseQuestioning && c.QuestionCount() >= c.cfg.MaxQuestions {
		if c.ended(ctx) {
			return ErrTerminated
		}
		if err := c.phase.Transition(PhaseClosing, "question budget spent"); err != nil {
			return err
		}
		c.ask(ctx, closingPrompt, false)
		return nil
	}

	text, err := c.followUp(ctx, phase, answer)
	// Aborted or disconnected while the model was thinking.
	if c.ended(ctx) {
		c.turns.Release("interview ended")
		return ErrTerminated
	}
	if err != nil {
		c.log.Warn("followup_failed",
			slog.String("error", err.Error()),
			slog.String("reason_code", string(errorsx.Reason(err))),
			slog.String("phase", phase.String()))
		metrics.Record(c.deps.Observer, metrics.EventFollowUpFallback, c.cfg.SessionID,
			map[string]string{"phase": phase.String(), "reason_code": string(errorsx.Reason(err))}, nil)
		c.notify("An error occurred", "Failed to get a response from the AI.")
		if phase == PhaseQuestioning {
			c.ask(ctx, fallbackQuestion, true)
		} else {
			c.ask(ctx, fallbackReprompt, false)
		}
		return nil
	}

	if phase == PhaseClosing && c.cfg.Triggers.IsGoodbye(text) {
		if !c.append(Entry{Speaker: SpeakerInterviewer, Text: text}) {
			return ErrTerminated
		}
		if err := c.phase.Transition(PhaseTerminated, "interviewer said goodbye"); err != nil {
			return err
		}
		c.speak(ctx, text)
		c.handoff(ctx)
		return nil
	}

	c.ask(ctx, text, phase == PhaseQuestioning)
	return nil
}

// Abort ends the interview without handing the transcript off.
func (c *Controller) Abort(reason string) {
	if c.phase.Phase() == PhaseTerminated {
		return
	}
	if c.deps.Listener != nil {
		c.deps.Listener.Stop(false)
	}
	if err := c.phase.Transition(PhaseTerminated, reason); err != nil {
		c.log.Debug("abort_ignored", slog.String("error", err.Error()))
	}
	c.finish.Do(func() {})
	c.turns.Release(reason)
}

func (c *Controller) followUp(ctx context.Context, phase Phase, answer string) (string, error) {
	c.mu.RLock()
	previous := c.transcript.LastInterviewerText()
	c.mu.RUnlock()

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.FollowUpTimeout)
	defer cancel()
	started := time.Now()
	text, err := c.deps.FollowUps.GenerateFollowUp(callCtx, FollowUpRequest{
		PreviousQuestion: previous,
		UserAnswer:       answer,
		JobRole:          c.cfg.Role,
		Phase:            phase,
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = errorsx.Wrap(errors.New("empty follow-up"), errorsx.ReasonValidate)
	}
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = errorsx.Errorf(errorsx.ReasonFollowUpTimeout, "follow-up timed out after %s: %w", c.cfg.FollowUpTimeout, err)
		}
		return "", errorsx.Wrap(err, errorsx.ReasonFollowUp)
	}
	metrics.Record(c.deps.Observer, metrics.EventFollowUpDone, c.cfg.SessionID,
		map[string]string{"phase": phase.String()},
		map[string]any{"latency_ms": time.Since(started).Milliseconds()})
	return strings.TrimSpace(text), nil
}

// ask appends an interviewer entry, speaks it and reopens the listener.
func (c *Controller) ask(ctx context.Context, text string, isQuestion bool) {
	if !c.append(Entry{Speaker: SpeakerInterviewer, Text: text, IsQuestion: isQuestion}) {
		c.turns.Release("interview ended")
		return
	}
	c.speak(ctx, text)
	if c.phase.Phase() == PhaseTerminated {
		return
	}
	if c.deps.Listener != nil {
		c.deps.Listener.Listen(ctx)
	}
}

func (c *Controller) speak(ctx context.Context, text string) {
	if c.deps.Voice != nil {
		c.deps.Voice.Speak(ctx, text)
	}
	c.turns.Release("turn complete")
}

func (c *Controller) ended(ctx context.Context) bool {
	return c.phase.Phase() == PhaseTerminated || ctx.Err() != nil
}

// append records e unless the interview has already terminated.
func (c *Controller) append(e Entry) bool {
	c.mu.Lock()
	if c.phase.Phase() == PhaseTerminated {
		c.mu.Unlock()
		return false
	}
	c.transcript = append(c.transcript, e)
	count := c.transcript.QuestionCount()
	c.mu.Unlock()

	c.log.Debug("entry_appended",
		slog.String("speaker", string(e.Speaker)),
		slog.Bool("is_question", e.IsQuestion),
		slog.String("text", redact.Text(e.Text)))
	metrics.Record(c.deps.Observer, metrics.EventEntryAppended, c.cfg.SessionID,
		map[string]string{"speaker": string(e.Speaker)},
		map[string]any{"question_count": count, "is_question": e.IsQuestion})
	if c.deps.OnEntry != nil {
		c.deps.OnEntry(e, count)
	}
	return true
}

func (c *Controller) terminate(ctx context.Context, reason string) {
	if err := c.phase.Transition(PhaseTerminated, reason); err != nil {
		c.log.Warn("terminate_rejected", slog.String("error", err.Error()))
		return
	}
	c.turns.Release(reason)
	c.handoff(ctx)
}

func (c *Controller) handoff(ctx context.Context) {
	c.finish.Do(func() {
		transcript := c.Transcript()
		c.log.Info("interview_finished",
			slog.Int("entries", len(transcript)),
			slog.Int("questions", transcript.QuestionCount()))
		if c.deps.OnFinish != nil {
			c.deps.OnFinish(ctx, transcript)
		}
	})
}

func (c *Controller) notify(title, description string) {
	if c.deps.Notifier != nil {
		c.deps.Notifier.Notify(title, description)
	}
}

func (c *Controller) recordPhase(change PhaseChange) {
	c.log.Info("phase_change",
		slog.String("from", change.From.String()),
		slog.String("to", change.To.String()),
		slog.String("reason", change.Reason))
	metrics.Record(c.deps.Observer, metrics.EventPhaseChange, c.cfg.SessionID,
		map[string]string{"from": change.From.String(), "to": change.To.String()},
		map[string]any{"reason": change.Reason})
}
