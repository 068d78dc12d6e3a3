package mock

import (
	"context"
	"errors"
	"strings"

	"github.com/harunnryd/mockview/pkg/speech"
)

type TTSConfig struct {
	SampleRate int
	// FailOn makes synthesis fail for text containing this substring.
	FailOn string
}

// Synthesizer emits a deterministic silent WAV clip sized by text length.
type Synthesizer struct {
	cfg TTSConfig
}

func NewTTS(cfg TTSConfig) *Synthesizer {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock_tts" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string) (speech.Clip, error) {
	if err := ctx.Err(); err != nil {
		return speech.Clip{}, err
	}
	if s.cfg.FailOn != "" && strings.Contains(text, s.cfg.FailOn) {
		return speech.Clip{}, errors.New("mock synthesis failure")
	}
	// 20ms of 16-bit mono silence per character.
	samples := len(text) * s.cfg.SampleRate / 50
	return speech.Clip{Audio: silentWAV(samples, s.cfg.SampleRate), MIME: "audio/wav"}, nil
}

func silentWAV(samples, rate int) []byte {
	dataLen := samples * 2
	out := make([]byte, 44+dataLen)
	copy(out[0:], "RIFF")
	putLE32(out[4:], uint32(36+dataLen))
	copy(out[8:], "WAVEfmt ")
	putLE32(out[16:], 16)
	putLE16(out[20:], 1)
	putLE16(out[22:], 1)
	putLE32(out[24:], uint32(rate))
	putLE32(out[28:], uint32(rate*2))
	putLE16(out[32:], 2)
	putLE16(out[34:], 16)
	copy(out[36:], "data")
	putLE32(out[40:], uint32(dataLen))
	return out
}

func putLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

var _ speech.Synthesizer = (*Synthesizer)(nil)
