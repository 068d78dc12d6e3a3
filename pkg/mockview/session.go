package mockview

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/mockview/pkg/configutil"
	"github.com/harunnryd/mockview/pkg/errorsx"
	"github.com/harunnryd/mockview/pkg/interview"
	"github.com/harunnryd/mockview/pkg/jobdesc"
	"github.com/harunnryd/mockview/pkg/logging"
	"github.com/harunnryd/mockview/pkg/metrics"
	"github.com/harunnryd/mockview/pkg/report"
	"github.com/harunnryd/mockview/pkg/speech"
	"github.com/harunnryd/mockview/pkg/transports/web"
	"github.com/harunnryd/mockview/pkg/turn"
)

const (
	opsQueueSize = 8

	unsupportedSpeechNotice = "Your browser doesn't support voice recognition."
)

// Client is the connection a session talks to.
type Client interface {
	ID() string
	Send(msg web.Outbound) error
}

// ReportRunner turns a finished transcript into a report.
type ReportRunner interface {
	Run(ctx context.Context, in report.Input) (report.Report, error)
}

// SessionDeps are shared by every session of an engine.
type SessionDeps struct {
	Config Config
	// Recognizers builds the recognizer of each interview. Nil means typed
	// answers only.
	Recognizers STTFactory
	Synthesizer speech.Synthesizer
	FollowUps   interview.FollowUpGenerator
	Reports     ReportRunner
	Registry    *Registry
	Observer    metrics.Observer
	Logger      *slog.Logger
}

// pusher is implemented by recognizers fed with client-side results.
type pusher interface {
	Push(ev speech.Event)
}

// Session serves one websocket connection. Interview operations run one at a
// time on the session's turn loop; client messages only enqueue work.
type Session struct {
	deps   SessionDeps
	client Client
	player *clientPlayer
	log    *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	ops      chan func()
	loopDone chan struct{}
	closed   atomic.Bool

	mu                sync.Mutex
	run               *run
	speechSupported   bool
	capabilityNoticed bool
}

// run is one interview within a session.
type run struct {
	id         string
	ctx        context.Context
	cancel     context.CancelFunc
	ctrl       *interview.Controller
	listener   *speech.Listener
	recognizer speech.Recognizer
	refs       atomic.Int32
	ended      sync.Once
}

func NewSession(ctx context.Context, client Client, deps SessionDeps) *Session {
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		deps:            deps,
		client:          client,
		player:          newClientPlayer(client, configutil.Millis(deps.Config.Server.PlaybackTimeoutMS, 60*time.Second)),
		log:             logging.NewComponentLogger(deps.Logger, "session").With(slog.String("client_id", client.ID())),
		ctx:             sctx,
		cancel:          cancel,
		ops:             make(chan func(), opsQueueSize),
		loopDone:        make(chan struct{}),
		speechSupported: true,
	}
	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.ctx.Done():
			return
		case op := <-s.ops:
			op()
		}
	}
}

// enqueue schedules fn on the turn loop under the run's context.
func (s *Session) enqueue(r *run, fn func(ctx context.Context)) bool {
	op := func() {
		if r.ctx.Err() != nil {
			return
		}
		fn(r.ctx)
	}
	select {
	case s.ops <- op:
		return true
	default:
		s.send(web.Notice(web.NoticeInfo, "Please wait", "The interviewer is still responding."))
		return false
	}
}

// commit queues a recognized answer. When the queue is full the text goes
// back to the client as a partial so the candidate can send it again.
func (s *Session) commit(r *run, answer string) {
	if s.enqueue(r, func(ctx context.Context) { s.submit(ctx, r, answer) }) {
		return
	}
	s.log.Info("commit_deferred", slog.String("session_id", r.id))
	s.sendFor(r, web.NewOutbound(web.MsgPartial, map[string]any{"text": answer}))
}

func (s *Session) current() *run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

func (s *Session) send(msg web.Outbound) {
	if s.closed.Load() {
		return
	}
	if err := s.client.Send(msg); err != nil && !errors.Is(err, web.ErrClientClosed) {
		s.log.Warn("client_send_failed",
			slog.String("type", msg.Type),
			slog.String("error", err.Error()),
			slog.String("reason_code", string(errorsx.ReasonTransportSend)))
	}
}

// sendFor drops messages from runs that have been replaced.
func (s *Session) sendFor(r *run, msg web.Outbound) {
	if s.current() != r {
		return
	}
	s.send(msg)
}

func (s *Session) HandleMessage(_ context.Context, msg web.Inbound) {
	switch msg.Type {
	case web.MsgStart:
		s.start(msg.Role)
	case web.MsgAnswer:
		if r := s.current(); r != nil {
			text := msg.Text
			s.enqueue(r, func(ctx context.Context) { s.submit(ctx, r, text) })
		}
	case web.MsgListenStart:
		if r := s.current(); r != nil {
			s.enqueue(r, func(ctx context.Context) { r.listener.Listen(ctx) })
		}
	case web.MsgListenStop:
		if r := s.current(); r != nil {
			r.listener.Stop(msg.Commit)
		}
	case web.MsgTranscript:
		kind := speech.EventInterim
		if msg.Final {
			kind = speech.EventFinal
		}
		s.push(speech.Event{Kind: kind, Text: msg.Text})
	case web.MsgRecognitionError:
		s.push(speech.Event{Kind: speech.EventError, Error: msg.Error})
	case web.MsgRecognitionEnd:
		s.push(speech.Event{Kind: speech.EventEnd})
	case web.MsgPlaybackEnded:
		s.player.Ack(msg.ClipID, nil)
	case web.MsgPlaybackError:
		reason := msg.Error
		if reason == "" {
			reason = "playback failed"
		}
		s.player.Ack(msg.ClipID, errors.New(reason))
	case web.MsgCapability:
		if msg.SpeechRecognition != nil {
			s.capability(*msg.SpeechRecognition)
		}
	case web.MsgReset:
		s.reset("reset requested")
		s.send(web.NewOutbound(web.MsgState, map[string]any{"phase": "idle", "question_count": 0}))
	default:
		s.send(web.ErrorMessage("unknown message type: " + msg.Type))
	}
}

func (s *Session) HandleAudio(_ context.Context, data []byte) {
	r := s.current()
	if r == nil || len(data) == 0 {
		return
	}
	sink, ok := r.recognizer.(speech.AudioSink)
	if !ok || !r.listener.Active() {
		return
	}
	metrics.Record(s.deps.Observer, metrics.EventAudioIn, r.id, nil, map[string]any{"bytes": len(data)})
	if err := sink.SendAudio(data); err != nil {
		s.log.Debug("audio_forward_failed",
			slog.String("session_id", r.id),
			slog.String("error", err.Error()),
			slog.String("reason_code", string(errorsx.ReasonSTTSend)))
	}
}

// Close aborts the running interview and stops the turn loop. A report in
// flight keeps running and holds its registry entry until delivered.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.reset("client disconnected")
	s.cancel()
	<-s.loopDone
}

func (s *Session) push(ev speech.Event) {
	r := s.current()
	if r == nil {
		return
	}
	if p, ok := r.recognizer.(pusher); ok {
		p.Push(ev)
	}
}

func (s *Session) capability(supported bool) {
	s.mu.Lock()
	s.speechSupported = supported
	notify := !supported && !s.capabilityNoticed
	if notify {
		s.capabilityNoticed = true
	}
	r := s.run
	s.mu.Unlock()

	if r != nil {
		if _, remote := r.recognizer.(pusher); remote {
			r.listener.SetAvailable(supported)
		}
	}
	if notify {
		s.log.Info("speech_recognition_unsupported")
		s.send(web.Notice(web.NoticeWarning, "Voice recognition unavailable", unsupportedSpeechNotice))
	}
}

func (s *Session) submit(ctx context.Context, r *run, text string) {
	err := r.ctrl.SubmitAnswer(ctx, text)
	switch {
	case err == nil:
	case errors.Is(err, interview.ErrBusy):
		s.sendFor(r, web.Notice(web.NoticeInfo, "Please wait", "The interviewer is still responding."))
	case errors.Is(err, interview.ErrTerminated), errors.Is(err, interview.ErrNotStarted):
		s.sendFor(r, web.ErrorMessage("the interview is not running"))
	default:
		s.log.Warn("submit_failed", slog.String("session_id", r.id), slog.String("error", err.Error()))
	}
}

// start replaces any running interview with a new one for role.
func (s *Session) start(role string) {
	if s.closed.Load() {
		return
	}
	role = jobdesc.Normalize(role)
	if role == "" {
		s.send(web.Notice(web.NoticeWarning, "Role required", "Please enter an interview role or job description."))
		return
	}
	if s.deps.Registry.Draining() {
		s.send(web.ErrorMessage("server is shutting down"))
		return
	}
	s.reset("restarted")

	r, err := s.newRun(role)
	if err != nil {
		s.log.Error("interview_create_failed", slog.String("error", err.Error()))
		s.send(web.ErrorMessage("could not start the interview"))
		return
	}
	s.mu.Lock()
	s.run = r
	s.mu.Unlock()

	s.send(web.NewOutbound(web.MsgSession, map[string]any{
		"session_id":    r.id,
		"max_questions": r.ctrl.MaxQuestions(),
	}))
	s.enqueue(r, func(ctx context.Context) {
		if err := r.ctrl.Start(ctx); err != nil {
			s.log.Warn("interview_start_failed", slog.String("session_id", r.id), slog.String("error", err.Error()))
		}
	})
}

func (s *Session) newRun(role string) (*run, error) {
	cfg := s.deps.Config
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(metrics.WithSession(s.ctx, id))
	r := &run{id: id, ctx: ctx, cancel: cancel}
	notifier := sessionNotifier{s: s, r: r}

	turns := turn.NewManager()
	turns.AddListener(turn.StateListenerFunc(func(ch turn.StateChange) {
		s.sendFor(r, web.NewOutbound(web.MsgTurn, map[string]any{"state": ch.ToState}))
	}))

	if s.deps.Recognizers != nil {
		rec, err := s.deps.Recognizers(cfg, id, func(bool) error {
			if s.closed.Load() {
				return web.ErrClientClosed
			}
			return nil
		})
		if err != nil {
			cancel()
			return nil, err
		}
		r.recognizer = rec
	}
	_, remote := r.recognizer.(pusher)
	r.listener = speech.NewListener(speech.ListenerConfig{
		SessionID:            id,
		CommitOnUtteranceEnd: r.recognizer != nil && !remote,
	}, speech.ListenerDeps{
		Recognizer: r.recognizer,
		Turns:      turns,
		Notifier:   notifier,
		Observer:   s.deps.Observer,
		Logger:     s.deps.Logger,
		OnPartial: func(text string) {
			s.sendFor(r, web.NewOutbound(web.MsgPartial, map[string]any{"text": text}))
		},
		OnCommit: func(answer string) { s.commit(r, answer) },
		OnActive: func(active bool) {
			s.sendFor(r, web.NewOutbound(web.MsgListen, map[string]any{"active": active}))
		},
	})
	s.mu.Lock()
	unsupported := !s.speechSupported
	s.mu.Unlock()
	if unsupported && remote {
		r.listener.SetAvailable(false)
	}

	speaker := speech.NewSpeaker(speech.SpeakerDeps{
		Synthesizer: s.deps.Synthesizer,
		Player:      s.player,
		Turns:       turns,
		Notifier:    notifier,
		Observer:    s.deps.Observer,
		Logger:      s.deps.Logger,
		SessionID:   id,
	})

	ctrl, err := interview.NewController(interview.Config{
		SessionID:       id,
		Role:            role,
		MaxQuestions:    cfg.Interview.MaxQuestions,
		FollowUpTimeout: configutil.Millis(cfg.Interview.FollowUpTimeoutMS, interview.DefaultFollowUpTimeout),
		Triggers:        interview.NewTriggers(cfg.Interview.TriggerMode),
	}, interview.Deps{
		FollowUps: s.deps.FollowUps,
		Voice:     speaker,
		Listener:  r.listener,
		Notifier:  notifier,
		Turns:     turns,
		Observer:  s.deps.Observer,
		Logger:    s.deps.Logger,
		OnEntry: func(e interview.Entry, count int) {
			s.sendFor(r, web.NewOutbound(web.MsgEntry, map[string]any{"entry": e, "question_count": count}))
		},
		OnFinish: func(_ context.Context, transcript interview.Transcript) {
			s.finish(r, role, transcript)
		},
	})
	if err != nil {
		cancel()
		return nil, err
	}
	ctrl.AddPhaseListener(interview.PhaseListenerFunc(func(ch interview.PhaseChange) {
		s.sendFor(r, web.NewOutbound(web.MsgState, map[string]any{
			"phase":          ch.To,
			"question_count": ctrl.QuestionCount(),
		}))
	}))
	r.ctrl = ctrl

	r.refs.Store(1)
	s.deps.Registry.Add(&Interview{ID: id, ClientID: s.client.ID(), Role: role, Created: time.Now()}, cancel)
	metrics.Record(s.deps.Observer, metrics.EventSessionStart, id,
		map[string]string{"client_id": s.client.ID()},
		map[string]any{"max_questions": ctrl.MaxQuestions()})
	s.log.Info("interview_created", slog.String("session_id", id))
	return r, nil
}

// finish hands the transcript to the report runner off the turn loop.
func (s *Session) finish(r *run, role string, transcript interview.Transcript) {
	if s.deps.Reports == nil {
		return
	}
	if !s.acquire(r) {
		s.log.Warn("report_skipped",
			slog.String("session_id", r.id),
			slog.String("reason", "interview already ended"))
		return
	}
	ctx := context.WithoutCancel(r.ctx)
	go func() {
		defer s.release(r)
		rep, err := s.deps.Reports.Run(ctx, report.Input{
			SessionID:  r.id,
			Role:       role,
			Transcript: transcript,
		})
		if err != nil {
			s.sendFor(r, web.Notice(web.NoticeError, "Feedback Error", report.FailureNotice))
			return
		}
		s.sendFor(r, web.NewOutbound(web.MsgReport, map[string]any{"report": rep}))
	}()
}

// reset aborts the current interview without producing a report.
func (s *Session) reset(reason string) {
	s.mu.Lock()
	r := s.run
	s.run = nil
	s.mu.Unlock()
	if r == nil {
		return
	}
	r.ctrl.Abort(reason)
	r.cancel()
	s.release(r)
}

// acquire takes a reference to r unless the last one is already gone.
func (s *Session) acquire(r *run) bool {
	for {
		n := r.refs.Load()
		if n <= 0 {
			return false
		}
		if r.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops one reference to r. The last one ends the interview.
func (s *Session) release(r *run) {
	if r.refs.Add(-1) > 0 {
		return
	}
	r.ended.Do(func() {
		s.deps.Registry.Remove(r.id)
		metrics.Record(s.deps.Observer, metrics.EventSessionEnd, r.id, nil, map[string]any{
			"phase":     r.ctrl.Phase().String(),
			"questions": r.ctrl.QuestionCount(),
		})
		s.log.Info("interview_ended", slog.String("session_id", r.id))
	})
}

type sessionNotifier struct {
	s *Session
	r *run
}

func (n sessionNotifier) Notify(title, description string) {
	n.s.sendFor(n.r, web.Notice(web.NoticeError, title, strings.TrimSpace(description)))
}
