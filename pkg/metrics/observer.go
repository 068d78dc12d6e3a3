package metrics

import "time"

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// Session returns the session id tag of the event.
func (ev MetricsEvent) Session() string {
	if ev.Tags == nil {
		return ""
	}
	return ev.Tags[TagSession]
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Record emits a named event for a session on obs, which may be nil.
func Record(obs Observer, name, sessionID string, tags map[string]string, fields map[string]any) {
	if obs == nil {
		return
	}
	merged := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		merged[k] = v
	}
	if sessionID != "" {
		merged[TagSession] = sessionID
	}
	obs.RecordEvent(MetricsEvent{
		Name:   name,
		Time:   time.Now(),
		Tags:   merged,
		Fields: fields,
	})
}
