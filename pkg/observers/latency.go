package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/mockview/pkg/metrics"
)

// LatencyObserver logs, per answered turn, how long the candidate waited:
// follow-up generation, speech synthesis and the total until audio was ready.
type LatencyObserver struct {
	mu     sync.Mutex
	traces map[string]*trace
	log    *slog.Logger
}

type trace struct {
	answered  time.Time
	followUp  time.Time
	fallback  bool
	synthMs   int64
	audioThen time.Time
	turn      int
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		traces: make(map[string]*trace),
		log:    log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	id := ev.Session()
	if id == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if ev.Name == metrics.EventSessionEnd {
		delete(o.traces, id)
		return
	}
	t := o.traces[id]
	if ev.Name == metrics.EventAnswerCommitted {
		turn := 1
		if t != nil {
			turn = t.turn + 1
		}
		o.traces[id] = &trace{answered: ev.Time, turn: turn}
		return
	}
	if t == nil || t.answered.IsZero() {
		return
	}
	switch ev.Name {
	case metrics.EventFollowUpDone:
		t.followUp = ev.Time
	case metrics.EventFollowUpFallback:
		t.followUp = ev.Time
		t.fallback = true
	case metrics.EventAudioOut:
		t.synthMs = int64Field(ev.Fields, "latency_ms")
		t.audioThen = ev.Time
		o.logTurnLocked(id, t)
	case metrics.EventSynthesisFailed:
		t.synthMs = -1
		o.logTurnLocked(id, t)
	}
}

func (o *LatencyObserver) logTurnLocked(id string, t *trace) {
	o.log.Info("turn_latency",
		slog.String("session_id", id),
		slog.Int("turn", t.turn),
		slog.Int64("followup_ms", durationMs(t.answered, t.followUp)),
		slog.Bool("fallback", t.fallback),
		slog.Int64("tts_ms", t.synthMs),
		slog.Int64("response_ms", durationMs(t.answered, t.audioThen)))
	t.answered = time.Time{}
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}

func int64Field(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return -1
}

var _ metrics.Observer = (*LatencyObserver)(nil)
