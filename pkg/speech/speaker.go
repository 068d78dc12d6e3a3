package speech

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/mockview/pkg/errorsx"
	"github.com/harunnryd/mockview/pkg/logging"
	"github.com/harunnryd/mockview/pkg/metrics"
	"github.com/harunnryd/mockview/pkg/turn"
)

// Clip is synthesized audio for one interviewer utterance.
type Clip struct {
	Audio []byte
	MIME  string
}

// Synthesizer turns text into an audio clip.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) (Clip, error)
}

// Player plays a clip and returns when playback has ended.
type Player interface {
	Play(ctx context.Context, clip Clip) error
}

var ErrEmptyClip = errors.New("speech: synthesizer returned no audio")

type SpeakerDeps struct {
	Synthesizer Synthesizer
	Player      Player
	Turns       *turn.Manager
	Notifier    Notifier
	Observer    metrics.Observer
	Logger      *slog.Logger
	SessionID   string
}

// Speaker synthesizes and plays interviewer utterances. Failures are logged
// and reported to the candidate but never returned.
type Speaker struct {
	deps SpeakerDeps
	log  *slog.Logger
}

func NewSpeaker(deps SpeakerDeps) *Speaker {
	if deps.Turns == nil {
		deps.Turns = turn.NewManager()
	}
	base := deps.Logger
	if base == nil {
		base = slog.Default()
	}
	return &Speaker{
		deps: deps,
		log:  logging.NewComponentLogger(base, "speaker").With(slog.String("session_id", deps.SessionID)),
	}
}

// Speak returns once playback ends, fails or synthesis fails. Without a
// synthesizer or player it returns immediately.
func (s *Speaker) Speak(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" || s.deps.Synthesizer == nil || s.deps.Player == nil {
		return
	}
	if err := s.deps.Turns.OnSpeakStart(); err != nil {
		s.log.Debug("speak_gate_rejected", slog.String("error", err.Error()))
	}
	defer s.deps.Turns.OnSpeakEnd()

	started := time.Now()
	metrics.Record(s.deps.Observer, metrics.EventSpeechStart, s.deps.SessionID,
		map[string]string{"synthesizer": s.deps.Synthesizer.Name()},
		map[string]any{"chars": len(text)})

	clip, err := s.deps.Synthesizer.Synthesize(ctx, text)
	if err == nil && len(clip.Audio) == 0 {
		err = ErrEmptyClip
	}
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
		s.log.Warn("speech_synthesis_failed",
			slog.String("error", err.Error()),
			slog.String("reason_code", string(errorsx.Reason(err))))
		metrics.Record(s.deps.Observer, metrics.EventSynthesisFailed, s.deps.SessionID,
			map[string]string{"reason_code": string(errorsx.Reason(err))}, nil)
		s.notify("Audio Error", "Could not generate audio question.")
		return
	}
	synthDone := time.Now()
	metrics.Record(s.deps.Observer, metrics.EventAudioOut, s.deps.SessionID,
		map[string]string{"synthesizer": s.deps.Synthesizer.Name(), "mime": clip.MIME},
		map[string]any{
			"bytes":      len(clip.Audio),
			"chars":      len(text),
			"latency_ms": synthDone.Sub(started).Milliseconds(),
		})

	if err := s.deps.Player.Play(ctx, clip); err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonPlayback)
		s.log.Warn("playback_failed",
			slog.String("error", err.Error()),
			slog.String("reason_code", string(errorsx.Reason(err))))
	}
	metrics.Record(s.deps.Observer, metrics.EventSpeechEnd, s.deps.SessionID, nil, map[string]any{
		"playback_ms": time.Since(synthDone).Milliseconds(),
	})
}

func (s *Speaker) notify(title, description string) {
	if s.deps.Notifier != nil {
		s.deps.Notifier.Notify(title, description)
	}
}
