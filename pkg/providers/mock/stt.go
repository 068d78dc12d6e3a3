package mock

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/harunnryd/mockview/pkg/speech"
)

type STTConfig struct {
	// Transcripts are returned one per listen session, cycling.
	Transcripts       []string
	InterimTranscript string
	EmitInterim       bool
	// EmitOnStart delivers the scripted answer as soon as a session opens
	// instead of waiting for audio.
	EmitOnStart bool
}

// Recognizer is a scripted speech.Recognizer. The first audio chunk of each
// session triggers the scripted transcript followed by an engine end.
type Recognizer struct {
	cfg STTConfig

	mu      sync.Mutex
	sink    speech.EventSink
	emitted bool
	next    int
}

func NewSTT(cfg STTConfig) *Recognizer {
	if len(cfg.Transcripts) == 0 {
		cfg.Transcripts = []string{"mock transcript"}
	}
	return &Recognizer{cfg: cfg}
}

func (r *Recognizer) Name() string { return "mock_stt" }

func (r *Recognizer) Start(_ context.Context, sink speech.EventSink) error {
	r.mu.Lock()
	r.sink = sink
	r.emitted = false
	r.mu.Unlock()
	if r.cfg.EmitOnStart {
		go r.emit()
	}
	return nil
}

func (r *Recognizer) Stop() error {
	r.mu.Lock()
	r.sink = nil
	r.mu.Unlock()
	return nil
}

func (r *Recognizer) SendAudio(data []byte) error {
	r.mu.Lock()
	started := r.sink != nil
	r.mu.Unlock()
	if !started {
		return errors.New("not started")
	}
	r.emit()
	return nil
}

func (r *Recognizer) emit() {
	r.mu.Lock()
	sink := r.sink
	if sink == nil || r.emitted {
		r.mu.Unlock()
		return
	}
	r.emitted = true
	text := r.cfg.Transcripts[r.next%len(r.cfg.Transcripts)]
	r.next++
	r.mu.Unlock()

	if r.cfg.EmitInterim {
		interim := r.cfg.InterimTranscript
		if interim == "" {
			words := strings.Fields(text)
			interim = strings.Join(words[:(len(words)+1)/2], " ")
		}
		sink(speech.Event{Kind: speech.EventInterim, Text: interim})
	}
	sink(speech.Event{Kind: speech.EventFinal, Text: text})
	sink(speech.Event{Kind: speech.EventEnd})
}

var (
	_ speech.Recognizer = (*Recognizer)(nil)
	_ speech.AudioSink  = (*Recognizer)(nil)
)
