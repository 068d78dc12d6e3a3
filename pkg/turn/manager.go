package turn

// State is the turn-taking state of one interview session.
type State int

const (
	StateIdle State = iota
	StateListening
	StateThinking
	StateSpeaking
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateThinking:
		return "THINKING"
	case StateSpeaking:
		return "SPEAKING"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the state for protocol messages.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Manager gates listening, AI calls and speaking so that only one of them is
// in progress at a time.
type Manager struct {
	sm *stateMachine
}

func NewManager() *Manager {
	return &Manager{sm: newStateMachine()}
}

func (m *Manager) State() State {
	return m.sm.State()
}

// CanListen reports whether a listen session may start now.
func (m *Manager) CanListen() bool {
	return m.sm.State() == StateIdle
}

// Busy reports whether an AI call or playback is in progress.
func (m *Manager) Busy() bool {
	s := m.sm.State()
	return s == StateThinking || s == StateSpeaking
}

func (m *Manager) OnListenStart() error {
	return m.sm.Transition(StateListening, "listen start")
}

func (m *Manager) OnListenStop() {
	if m.sm.State() == StateListening {
		_ = m.sm.Transition(StateIdle, "listen stop")
	}
}

// OnThinkStart marks an AI request in flight. An active listen session is
// implicitly closed.
func (m *Manager) OnThinkStart() error {
	return m.sm.Transition(StateThinking, "awaiting ai")
}

func (m *Manager) OnSpeakStart() error {
	return m.sm.Transition(StateSpeaking, "speaking")
}

func (m *Manager) OnSpeakEnd() {
	if m.sm.State() == StateSpeaking {
		_ = m.sm.Transition(StateIdle, "playback complete")
	}
}

// Release returns to idle from any state.
func (m *Manager) Release(reason string) {
	if m.sm.State() != StateIdle {
		_ = m.sm.Transition(StateIdle, reason)
	}
}

// AddListener registers a listener for state change events.
func (m *Manager) AddListener(listener StateListener) {
	m.sm.AddListener(listener)
}
