package turn

import (
	"errors"
	"sync"
	"testing"
)

type captureListener struct {
	mu      sync.Mutex
	changes []StateChange
}

func (c *captureListener) OnStateChange(event StateChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, event)
}

func (c *captureListener) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.changes)
}

func TestManagerFullTurn(t *testing.T) {
	m := NewManager()
	capture := &captureListener{}
	m.AddListener(capture)

	if !m.CanListen() {
		t.Fatalf("expected idle manager to allow listening")
	}
	if err := m.OnListenStart(); err != nil {
		t.Fatalf("listen start: %v", err)
	}
	if err := m.OnThinkStart(); err != nil {
		t.Fatalf("think start: %v", err)
	}
	if !m.Busy() {
		t.Fatalf("expected busy while thinking")
	}
	if m.CanListen() {
		t.Fatalf("expected listening gated while thinking")
	}
	if err := m.OnSpeakStart(); err != nil {
		t.Fatalf("speak start: %v", err)
	}
	m.OnSpeakEnd()
	if m.State() != StateIdle {
		t.Fatalf("expected IDLE after playback, got %s", m.State())
	}
	if capture.Count() != 4 {
		t.Fatalf("expected 4 transitions, got %d", capture.Count())
	}
}

func TestListenRejectedWhileSpeaking(t *testing.T) {
	m := NewManager()
	if err := m.OnSpeakStart(); err != nil {
		t.Fatalf("speak start: %v", err)
	}
	err := m.OnListenStart()
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if invalid.From != StateSpeaking || invalid.To != StateListening {
		t.Fatalf("unexpected error contents: %v", invalid)
	}
}

func TestListenerMayReadStateDuringNotification(t *testing.T) {
	m := NewManager()
	var seen State
	m.AddListener(StateListenerFunc(func(ev StateChange) {
		seen = m.State()
	}))
	if err := m.OnThinkStart(); err != nil {
		t.Fatalf("think start: %v", err)
	}
	if seen != StateThinking {
		t.Fatalf("expected listener to observe THINKING, got %s", seen)
	}
}

func TestReleaseFromAnyState(t *testing.T) {
	m := NewManager()
	_ = m.OnThinkStart()
	m.Release("reset")
	if m.State() != StateIdle {
		t.Fatalf("expected IDLE after release")
	}
	m.Release("noop")
}
