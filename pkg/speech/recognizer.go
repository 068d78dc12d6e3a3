package speech

import "context"

// EventKind classifies recognizer events.
type EventKind int

const (
	EventInterim EventKind = iota
	EventFinal
	EventError
	EventEnd
	EventUtteranceEnd
)

func (k EventKind) String() string {
	switch k {
	case EventInterim:
		return "interim"
	case EventFinal:
		return "final"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	case EventUtteranceEnd:
		return "utterance_end"
	default:
		return "unknown"
	}
}

// Recognition error codes that end a listen session with a commit.
const (
	ErrorNoSpeech = "no-speech"
	ErrorAborted  = "aborted"
)

// Event is one recognition result or control signal.
type Event struct {
	Kind  EventKind
	Text  string
	Error string
}

// EventSink receives the events of one recognition session.
type EventSink func(Event)

// Recognizer is a speech recognition engine. Start opens one recognition
// session delivering events to sink until Stop.
type Recognizer interface {
	Name() string
	Start(ctx context.Context, sink EventSink) error
	Stop() error
}

// AudioSink is implemented by recognizers that consume raw microphone audio
// streamed from the client.
type AudioSink interface {
	SendAudio(data []byte) error
}
