package interview

import (
	"sync"
	"time"
)

// Phase is the conversation state of an interview.
type Phase int

const (
	PhaseQuestioning Phase = iota
	PhaseClosing
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseQuestioning:
		return "questioning"
	case PhaseClosing:
		return "closing"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// PhaseChange represents a phase transition.
type PhaseChange struct {
	From      Phase
	To        Phase
	Timestamp time.Time
	Reason    string
}

// PhaseListener observes phase changes.
type PhaseListener interface {
	OnPhaseChange(change PhaseChange)
}

// PhaseListenerFunc adapts a function to PhaseListener.
type PhaseListenerFunc func(change PhaseChange)

func (f PhaseListenerFunc) OnPhaseChange(change PhaseChange) { f(change) }

// Closing never returns to questioning and nothing leaves terminated.
var validPhaseTransitions = map[Phase][]Phase{
	PhaseQuestioning: {PhaseClosing, PhaseTerminated},
	PhaseClosing:     {PhaseTerminated},
}

type phaseMachine struct {
	mu        sync.RWMutex
	current   Phase
	listeners []PhaseListener
}

func (m *phaseMachine) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *phaseMachine) Transition(to Phase, reason string) error {
	m.mu.Lock()
	from := m.current
	valid := false
	for _, allowed := range validPhaseTransitions[from] {
		if allowed == to {
			valid = true
			break
		}
	}
	if !valid {
		m.mu.Unlock()
		return &InvalidPhaseTransitionError{From: from, To: to}
	}
	m.current = to
	listeners := make([]PhaseListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	change := PhaseChange{From: from, To: to, Timestamp: time.Now(), Reason: reason}
	for _, l := range listeners {
		l.OnPhaseChange(change)
	}
	return nil
}

func (m *phaseMachine) AddListener(l PhaseListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// InvalidPhaseTransitionError reports a rejected phase transition.
type InvalidPhaseTransitionError struct {
	From Phase
	To   Phase
}

func (e *InvalidPhaseTransitionError) Error() string {
	return "invalid phase transition from " + e.From.String() + " to " + e.To.String()
}
