package speech

import (
	"context"
	"log/slog"
	"sync"

	"github.com/harunnryd/mockview/pkg/errorsx"
	"github.com/harunnryd/mockview/pkg/logging"
	"github.com/harunnryd/mockview/pkg/metrics"
	"github.com/harunnryd/mockview/pkg/turn"
)

// Notifier shows transient notices to the candidate.
type Notifier interface {
	Notify(title, description string)
}

type ListenerConfig struct {
	SessionID string
	// CommitOnUtteranceEnd commits the buffer when the recognizer reports
	// the end of an utterance.
	CommitOnUtteranceEnd bool
}

type ListenerDeps struct {
	Recognizer Recognizer
	Turns      *turn.Manager
	Notifier   Notifier
	Observer   metrics.Observer
	Logger     *slog.Logger

	// OnPartial receives the live answer text on every change.
	OnPartial func(text string)
	// OnCommit receives a non-empty answer when a session ends with commit.
	OnCommit func(answer string)
	// OnActive reports listen session start and stop.
	OnActive func(active bool)
}

// Listener runs one recognition session at a time and turns its results
// into a committed answer.
type Listener struct {
	cfg  ListenerConfig
	deps ListenerDeps
	log  *slog.Logger
	buf  AnswerBuffer

	mu          sync.Mutex
	active      bool
	unavailable bool
	generation  uint64
}

func NewListener(cfg ListenerConfig, deps ListenerDeps) *Listener {
	if deps.Turns == nil {
		deps.Turns = turn.NewManager()
	}
	base := deps.Logger
	if base == nil {
		base = slog.Default()
	}
	return &Listener{
		cfg:         cfg,
		deps:        deps,
		log:         logging.NewComponentLogger(base, "listener").With(slog.String("session_id", cfg.SessionID)),
		unavailable: deps.Recognizer == nil,
	}
}

// Active reports whether a recognition session is open.
func (l *Listener) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Available reports whether speech recognition can be used at all.
func (l *Listener) Available() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.unavailable
}

// SetAvailable toggles recognition support, typically from a client
// capability report. Disabling stops an active session without commit.
func (l *Listener) SetAvailable(ok bool) {
	l.mu.Lock()
	l.unavailable = !ok || l.deps.Recognizer == nil
	active := l.active
	l.mu.Unlock()
	if !ok && active {
		l.Stop(false)
	}
}

func (l *Listener) Buffer() string {
	return l.buf.Text()
}

// Listen opens a recognition session. It returns false without side effects
// when a session is already active, the turn gate is closed or recognition
// is unavailable.
func (l *Listener) Listen(ctx context.Context) bool {
	l.mu.Lock()
	if l.active || l.unavailable || !l.deps.Turns.CanListen() {
		l.mu.Unlock()
		return false
	}
	if err := l.deps.Turns.OnListenStart(); err != nil {
		l.mu.Unlock()
		return false
	}
	l.active = true
	l.generation++
	gen := l.generation
	l.buf.Reset()
	l.mu.Unlock()

	err := l.deps.Recognizer.Start(ctx, func(ev Event) { l.handle(gen, ev) })
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonSTTConnect)
		l.log.Error("recognition_start_failed",
			slog.String("error", err.Error()),
			slog.String("reason_code", string(errorsx.Reason(err))),
			slog.String("recognizer", l.deps.Recognizer.Name()))
		l.mu.Lock()
		l.active = false
		l.mu.Unlock()
		l.deps.Turns.OnListenStop()
		l.notify("Speech recognition error", err.Error())
		return false
	}

	metrics.Record(l.deps.Observer, metrics.EventListenStart, l.cfg.SessionID,
		map[string]string{"recognizer": l.deps.Recognizer.Name()}, nil)
	if l.deps.OnActive != nil {
		l.deps.OnActive(true)
	}
	return true
}

// Stop ends the active session. With commit, a non-empty buffer is handed to
// OnCommit; an empty one is dropped.
func (l *Listener) Stop(commit bool) {
	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return
	}
	l.active = false
	l.generation++
	l.mu.Unlock()

	if err := l.deps.Recognizer.Stop(); err != nil {
		l.log.Warn("recognition_stop_failed", slog.String("error", err.Error()))
	}
	l.deps.Turns.OnListenStop()
	answer := l.buf.Flush()

	metrics.Record(l.deps.Observer, metrics.EventListenStop, l.cfg.SessionID, nil, map[string]any{
		"commit": commit,
		"chars":  len(answer),
	})
	if l.deps.OnActive != nil {
		l.deps.OnActive(false)
	}
	if commit && answer != "" && l.deps.OnCommit != nil {
		l.deps.OnCommit(answer)
	}
}

func (l *Listener) handle(gen uint64, ev Event) {
	l.mu.Lock()
	current := l.active && gen == l.generation
	l.mu.Unlock()
	if !current {
		return
	}

	switch ev.Kind {
	case EventInterim:
		l.partial(l.buf.Interim(ev.Text))
	case EventFinal:
		l.partial(l.buf.Final(ev.Text))
	case EventError:
		metrics.Record(l.deps.Observer, metrics.EventRecognitionError, l.cfg.SessionID,
			map[string]string{"error": ev.Error}, nil)
		if ev.Error == ErrorNoSpeech || ev.Error == ErrorAborted {
			l.log.Debug("recognition_ended_quietly", slog.String("error", ev.Error))
			l.Stop(true)
			return
		}
		l.log.Warn("recognition_error",
			slog.String("error", ev.Error),
			slog.String("reason_code", string(errorsx.ReasonSTTRecognition)))
		l.notify("Speech recognition error", ev.Error)
		l.Stop(false)
	case EventEnd:
		l.Stop(true)
	case EventUtteranceEnd:
		if l.cfg.CommitOnUtteranceEnd {
			l.Stop(true)
		}
	}
}

func (l *Listener) partial(text string) {
	if l.deps.OnPartial != nil {
		l.deps.OnPartial(text)
	}
}

func (l *Listener) notify(title, description string) {
	if l.deps.Notifier != nil {
		l.deps.Notifier.Notify(title, description)
	}
}
