package mockview

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/mockview/pkg/coach"
	"github.com/harunnryd/mockview/pkg/interview"
	"github.com/harunnryd/mockview/pkg/metrics"
	"github.com/harunnryd/mockview/pkg/providers/mock"
	"github.com/harunnryd/mockview/pkg/report"
	"github.com/harunnryd/mockview/pkg/speech"
	"github.com/harunnryd/mockview/pkg/transports/web"
)

type fakeClient struct {
	mu   sync.Mutex
	msgs []web.Outbound
	// onSend runs after a message is recorded, outside the lock.
	onSend func(web.Outbound)
}

func (c *fakeClient) ID() string { return "client-1" }

func (c *fakeClient) Send(msg web.Outbound) error {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	hook := c.onSend
	c.mu.Unlock()
	if hook != nil {
		hook(msg)
	}
	return nil
}

func (c *fakeClient) ofType(kind string) []web.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []web.Outbound
	for _, m := range c.msgs {
		if m.Type == kind {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeClient) waitFor(t *testing.T, kind string, match func(web.Outbound) bool) web.Outbound {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, m := range c.ofType(kind) {
			if match == nil || match(m) {
				return m
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %q message arrived", kind)
	return web.Outbound{}
}

func testDeps(adapter *mock.LLMAdapter) SessionDeps {
	cfg := DefaultConfig()
	cfg.Interview.FollowUpTimeoutMS = 2000
	return SessionDeps{
		Config:    cfg,
		FollowUps: coach.NewFollowUps(adapter, nil),
		Reports: report.NewAggregator(report.Config{Timeout: 2 * time.Second},
			coach.NewAssessor(adapter, coach.DefaultRubric(), nil),
			coach.NewFeedbackWriter(adapter, nil), nil, nil),
		Registry: NewRegistry(),
	}
}

func entryCount(c *fakeClient, speaker interview.Speaker) int {
	n := 0
	for _, m := range c.ofType(web.MsgEntry) {
		if e, ok := m.Body["entry"].(interview.Entry); ok && e.Speaker == speaker {
			n++
		}
	}
	return n
}

func waitEntries(t *testing.T, c *fakeClient, speaker interview.Speaker, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if entryCount(c, speaker) >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d %s entries, got %d", want, speaker, entryCount(c, speaker))
}

func TestSessionTypedInterviewProducesReport(t *testing.T) {
	client := &fakeClient{}
	deps := testDeps(mock.NewLLMAdapter(mock.LLMConfig{}))
	s := NewSession(context.Background(), client, deps)
	defer s.Close()

	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgStart, Role: "Backend Engineer"})
	session := client.waitFor(t, web.MsgSession, nil)
	if session.Body["max_questions"] != 5 {
		t.Fatalf("unexpected session message %v", session.Body)
	}
	waitEntries(t, client, interview.SpeakerInterviewer, 1)

	for i := 1; i <= 5; i++ {
		s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgAnswer, Text: "answer"})
		waitEntries(t, client, interview.SpeakerInterviewer, i+1)
	}
	client.waitFor(t, web.MsgState, func(m web.Outbound) bool {
		return m.Body["phase"] == interview.PhaseClosing && m.Body["question_count"] == 5
	})

	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgAnswer, Text: "EXIT please"})
	msg := client.waitFor(t, web.MsgReport, nil)
	rep, ok := msg.Body["report"].(report.Report)
	if !ok {
		t.Fatalf("report body has type %T", msg.Body["report"])
	}
	if len(rep.Transcript) != 12 || rep.Transcript.QuestionCount() != 5 {
		t.Fatalf("report transcript has %d entries, %d questions", len(rep.Transcript), rep.Transcript.QuestionCount())
	}
	if rep.Role != "Backend Engineer" || rep.Feedback == "" {
		t.Fatalf("unexpected report %+v", rep)
	}
	if got := deps.Registry.Count(); got != 1 {
		t.Fatalf("connection should still hold the interview, count=%d", got)
	}
	s.Close()
	if got := deps.Registry.Count(); got != 0 {
		t.Fatalf("registry not empty after close: %d", got)
	}
}

func TestSessionBrowserRecognitionCommitsAnswer(t *testing.T) {
	client := &fakeClient{}
	deps := testDeps(mock.NewLLMAdapter(mock.LLMConfig{Questions: []string{"Why Go?"}}))
	deps.Recognizers = func(_ Config, _ string, control func(bool) error) (speech.Recognizer, error) {
		return speech.NewRemoteRecognizer(control), nil
	}
	s := NewSession(context.Background(), client, deps)
	defer s.Close()

	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgStart, Role: "SRE"})
	client.waitFor(t, web.MsgListen, func(m web.Outbound) bool { return m.Body["active"] == true })

	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgTranscript, Text: "I like"})
	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgTranscript, Text: "I like simple tools", Final: true})
	client.waitFor(t, web.MsgPartial, func(m web.Outbound) bool { return m.Body["text"] == "I like simple tools" })
	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgRecognitionEnd})

	waitEntries(t, client, interview.SpeakerCandidate, 1)
	waitEntries(t, client, interview.SpeakerInterviewer, 2)
	for _, m := range client.ofType(web.MsgEntry) {
		e := m.Body["entry"].(interview.Entry)
		if e.Speaker == interview.SpeakerCandidate && e.Text != "I like simple tools" {
			t.Fatalf("unexpected committed answer %q", e.Text)
		}
	}
}

func TestSessionCapabilityNoticeOnce(t *testing.T) {
	client := &fakeClient{}
	deps := testDeps(mock.NewLLMAdapter(mock.LLMConfig{}))
	deps.Recognizers = func(_ Config, _ string, control func(bool) error) (speech.Recognizer, error) {
		return speech.NewRemoteRecognizer(control), nil
	}
	s := NewSession(context.Background(), client, deps)
	defer s.Close()

	no := false
	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgCapability, SpeechRecognition: &no})
	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgCapability, SpeechRecognition: &no})
	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgStart, Role: "SRE"})
	waitEntries(t, client, interview.SpeakerInterviewer, 1)

	notices := 0
	for _, m := range client.ofType(web.MsgNotice) {
		if m.Body["description"] == unsupportedSpeechNotice {
			notices++
		}
	}
	if notices != 1 {
		t.Fatalf("expected one capability notice, got %d", notices)
	}
	if len(client.ofType(web.MsgListen)) != 0 {
		t.Fatalf("listening must not start without recognition support")
	}

	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgAnswer, Text: "typed answer"})
	waitEntries(t, client, interview.SpeakerCandidate, 1)
}

func TestSessionResetAndEmptyRole(t *testing.T) {
	client := &fakeClient{}
	obs := metrics.NewMemoryObserver()
	deps := testDeps(mock.NewLLMAdapter(mock.LLMConfig{}))
	deps.Observer = obs
	s := NewSession(context.Background(), client, deps)
	defer s.Close()

	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgStart, Role: "   "})
	notice := client.waitFor(t, web.MsgNotice, nil)
	if notice.Body["level"] != web.NoticeWarning {
		t.Fatalf("unexpected notice %v", notice.Body)
	}

	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgStart, Role: "QA"})
	waitEntries(t, client, interview.SpeakerInterviewer, 1)
	if deps.Registry.Count() != 1 {
		t.Fatalf("interview not registered")
	}
	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgReset})
	client.waitFor(t, web.MsgState, func(m web.Outbound) bool { return m.Body["phase"] == "idle" })
	if deps.Registry.Count() != 0 {
		t.Fatalf("reset should release the interview")
	}
	if len(obs.Named(metrics.EventSessionEnd)) != 1 {
		t.Fatalf("expected one session_end event")
	}
	if len(client.ofType(web.MsgReport)) != 0 {
		t.Fatalf("reset must not produce a report")
	}

	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgAnswer, Text: "late"})
	s.HandleMessage(context.Background(), web.Inbound{Type: "bogus"})
	msg := client.waitFor(t, web.MsgError, nil)
	if !strings.Contains(msg.Body["message"].(string), "bogus") {
		t.Fatalf("unexpected error %v", msg.Body)
	}
}

func TestSessionSpeaksThroughClientPlayback(t *testing.T) {
	client := &fakeClient{}
	deps := testDeps(mock.NewLLMAdapter(mock.LLMConfig{}))
	deps.Synthesizer = mock.NewTTS(mock.TTSConfig{})
	var s *Session
	client.onSend = func(m web.Outbound) {
		if m.Type == web.MsgAudio {
			id := m.Body["clip_id"].(string)
			go s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgPlaybackEnded, ClipID: id})
		}
	}
	s = NewSession(context.Background(), client, deps)
	defer s.Close()

	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgStart, Role: "SRE"})
	audio := client.waitFor(t, web.MsgAudio, nil)
	if audio.Body["mime"] != "audio/wav" || audio.Body["data"] == "" {
		t.Fatalf("unexpected audio message %v", audio.Body)
	}
	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgAnswer, Text: "hello"})
	waitEntries(t, client, interview.SpeakerInterviewer, 2)
	if got := len(client.ofType(web.MsgAudio)); got < 1 {
		t.Fatalf("expected audio clips, got %d", got)
	}
}

func TestClientPlayerAckAndTimeout(t *testing.T) {
	client := &fakeClient{}
	p := newClientPlayer(client, 30*time.Millisecond)
	client.onSend = func(m web.Outbound) {
		go p.Ack(m.Body["clip_id"].(string), nil)
	}
	if err := p.Play(context.Background(), speech.Clip{Audio: []byte{1}, MIME: "audio/wav"}); err != nil {
		t.Fatalf("play: %v", err)
	}

	client.onSend = nil
	if err := p.Play(context.Background(), speech.Clip{Audio: []byte{1}}); err != ErrPlaybackTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if p.Ack("unknown", nil) {
		t.Fatalf("unknown clip should not resolve")
	}
}

func TestClientPlayerClipIDsIncrease(t *testing.T) {
	client := &fakeClient{}
	p := newClientPlayer(client, time.Second)
	client.onSend = func(m web.Outbound) {
		go p.Ack(m.Body["clip_id"].(string), nil)
	}
	for i := 0; i < 50; i++ {
		if err := p.Play(context.Background(), speech.Clip{Audio: []byte{1}}); err != nil {
			t.Fatalf("play %d: %v", i, err)
		}
	}
	clips := client.ofType(web.MsgAudio)
	if len(clips) != 50 {
		t.Fatalf("expected 50 clips, got %d", len(clips))
	}
	prev := ""
	for _, m := range clips {
		id := m.Body["clip_id"].(string)
		if id <= prev {
			t.Fatalf("clip id %q does not sort after %q", id, prev)
		}
		prev = id
	}
}

func TestSessionReportAfterResetIsSkipped(t *testing.T) {
	client := &fakeClient{}
	obs := metrics.NewMemoryObserver()
	deps := testDeps(mock.NewLLMAdapter(mock.LLMConfig{}))
	deps.Observer = obs
	s := NewSession(context.Background(), client, deps)
	defer s.Close()

	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgStart, Role: "SRE"})
	waitEntries(t, client, interview.SpeakerInterviewer, 1)
	r := s.current()
	s.reset("client disconnected")
	if s.acquire(r) {
		t.Fatalf("acquire succeeded on an ended interview")
	}

	s.finish(r, "SRE", r.ctrl.Transcript())
	time.Sleep(50 * time.Millisecond)
	if got := deps.Registry.Count(); got != 0 {
		t.Fatalf("registry should stay empty, count=%d", got)
	}
	if n := len(obs.Named(metrics.EventSessionEnd)); n != 1 {
		t.Fatalf("expected one session_end event, got %d", n)
	}
	if len(client.ofType(web.MsgReport)) != 0 {
		t.Fatalf("no report expected after reset")
	}
}

func TestSessionCommitOnFullQueueReturnsText(t *testing.T) {
	client := &fakeClient{}
	deps := testDeps(mock.NewLLMAdapter(mock.LLMConfig{}))
	s := NewSession(context.Background(), client, deps)
	defer s.Close()

	s.HandleMessage(context.Background(), web.Inbound{Type: web.MsgStart, Role: "SRE"})
	waitEntries(t, client, interview.SpeakerInterviewer, 1)
	r := s.current()

	running := make(chan struct{})
	hold := make(chan struct{})
	defer close(hold)
	s.enqueue(r, func(context.Context) {
		close(running)
		<-hold
	})
	<-running
	for s.enqueue(r, func(context.Context) {}) {
	}

	s.commit(r, "I would shard the queue")
	client.waitFor(t, web.MsgPartial, func(m web.Outbound) bool {
		return m.Body["text"] == "I would shard the queue"
	})
	if got := entryCount(client, interview.SpeakerCandidate); got != 0 {
		t.Fatalf("answer should not be submitted yet, got %d candidate entries", got)
	}
}
