package web

import "encoding/json"

// Client to server message types.
const (
	MsgStart            = "start"
	MsgAnswer           = "answer"
	MsgListenStart      = "listen_start"
	MsgListenStop       = "listen_stop"
	MsgTranscript       = "transcript"
	MsgRecognitionError = "recognition_error"
	MsgRecognitionEnd   = "recognition_end"
	MsgPlaybackEnded    = "playback_ended"
	MsgPlaybackError    = "playback_error"
	MsgCapability       = "capability"
	MsgReset            = "reset"
)

// Server to client message types.
const (
	MsgSession = "session"
	MsgEntry   = "entry"
	MsgState   = "state"
	MsgTurn    = "turn"
	MsgAudio   = "audio"
	MsgListen  = "listen"
	MsgPartial = "partial"
	MsgNotice  = "notice"
	MsgReport  = "report"
	MsgError   = "error"
)

const (
	NoticeError   = "error"
	NoticeWarning = "warning"
	NoticeInfo    = "info"
)

// Inbound is a JSON text frame sent by the browser. Only the fields relevant
// to Type are set.
type Inbound struct {
	Type              string `json:"type"`
	Role              string `json:"role,omitempty"`
	Text              string `json:"text,omitempty"`
	Final             bool   `json:"final,omitempty"`
	Commit            bool   `json:"commit,omitempty"`
	Error             string `json:"error,omitempty"`
	ClipID            string `json:"clip_id,omitempty"`
	SpeechRecognition *bool  `json:"speech_recognition,omitempty"`
}

// Outbound is a JSON text frame sent to the browser.
type Outbound struct {
	Type string
	Body map[string]any
}

// MarshalJSON flattens the body next to the type field.
func (o Outbound) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(o.Body)+1)
	for k, v := range o.Body {
		m[k] = v
	}
	m["type"] = o.Type
	return json.Marshal(m)
}

func NewOutbound(kind string, body map[string]any) Outbound {
	return Outbound{Type: kind, Body: body}
}

func Notice(level, title, description string) Outbound {
	return NewOutbound(MsgNotice, map[string]any{
		"level":       level,
		"title":       title,
		"description": description,
	})
}

func ErrorMessage(message string) Outbound {
	return NewOutbound(MsgError, map[string]any{"message": message})
}
