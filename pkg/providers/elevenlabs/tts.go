package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/mockview/pkg/errorsx"
	"github.com/harunnryd/mockview/pkg/logging"
	"github.com/harunnryd/mockview/pkg/resilience"
	"github.com/harunnryd/mockview/pkg/speech"
)

const (
	DefaultBaseURL      = "wss://api.elevenlabs.io"
	DefaultModelID      = "eleven_flash_v2_5"
	DefaultOutputFormat = "mp3_44100_128"
)

type Config struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string
	BaseURL      string
	Timeout      time.Duration
}

// Synthesizer renders one utterance per stream-input websocket session.
type Synthesizer struct {
	cfg     Config
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	dialer  websocket.Dialer
}

func New(cfg Config) (*Synthesizer, error) {
	if cfg.APIKey == "" || cfg.VoiceID == "" {
		return nil, errors.New("missing elevenlabs config")
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = DefaultOutputFormat
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Synthesizer{
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(3, 30*time.Second),
		logger:  logging.NewComponentLogger(slog.Default(), "elevenlabs_tts"),
		dialer:  websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second},
	}, nil
}

func (s *Synthesizer) Name() string { return "elevenlabs" }

type streamMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) (speech.Clip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return speech.Clip{}, errors.New("elevenlabs: empty text")
	}
	if !s.breaker.Allow() {
		return speech.Clip{}, errorsx.Wrap(resilience.RateLimitError{Provider: "elevenlabs", Message: "degraded"}, errorsx.ReasonTTSCircuitOpen)
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	conn, resp, err := s.dialer.DialContext(ctx, s.buildURL(), http.Header{
		"xi-api-key": []string{s.cfg.APIKey},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			rl := resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status, RetryAfter: resilience.RetryAfter(resp.Header)}
			s.breaker.OnError(rl)
			s.logger.Warn("elevenlabs rate limit exceeded", slog.String("status", resp.Status))
			return speech.Clip{}, errorsx.Wrap(rl, errorsx.ReasonTTSRateLimit)
		}
		return speech.Clip{}, errorsx.Wrap(fmt.Errorf("elevenlabs dial: %w", err), errorsx.ReasonTTSConnect)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for _, payload := range []map[string]any{
		{
			"text": " ",
			"voice_settings": map[string]any{
				"stability":        0.5,
				"similarity_boost": 0.8,
			},
			"generation_config": map[string]any{
				"chunk_length_schedule": []int{120, 160, 250, 290},
			},
		},
		{"text": text + " ", "try_trigger_generation": true},
		{"text": ""},
	} {
		if err := conn.WriteJSON(payload); err != nil {
			return speech.Clip{}, errorsx.Wrap(fmt.Errorf("elevenlabs send: %w", err), errorsx.ReasonTTSSynthesize)
		}
	}

	var audio bytes.Buffer
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return speech.Clip{}, errorsx.Wrap(ctx.Err(), errorsx.ReasonTTSSynthesize)
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && audio.Len() > 0 {
				break
			}
			return speech.Clip{}, errorsx.Wrap(fmt.Errorf("elevenlabs read: %w", err), errorsx.ReasonTTSSynthesize)
		}
		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("tts websocket raw data", slog.Int("bytes", len(data)))
			continue
		}
		if msg.Error != "" {
			return speech.Clip{}, errorsx.Wrap(fmt.Errorf("elevenlabs: %s: %s", msg.Error, msg.Message), errorsx.ReasonTTSSynthesize)
		}
		if msg.Audio != "" {
			raw, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				s.logger.Error("tts audio decode error", slog.String("error", err.Error()))
				continue
			}
			audio.Write(raw)
		}
		if msg.IsFinal {
			break
		}
	}
	s.breaker.OnSuccess()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	s.logger.Debug("tts clip ready",
		slog.Int("size_bytes", audio.Len()),
		slog.String("output_format", s.cfg.OutputFormat))
	return speech.Clip{Audio: audio.Bytes(), MIME: mimeFor(s.cfg.OutputFormat)}, nil
}

func (s *Synthesizer) buildURL() string {
	base := strings.TrimRight(s.cfg.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(s.cfg.VoiceID) + "/stream-input"
	q := url.Values{}
	q.Set("model_id", s.cfg.ModelID)
	q.Set("output_format", s.cfg.OutputFormat)
	return base + "?" + q.Encode()
}

// mimeFor maps an ElevenLabs output_format to the clip MIME type.
func mimeFor(format string) string {
	switch {
	case strings.HasPrefix(format, "mp3"):
		return "audio/mpeg"
	case strings.HasPrefix(format, "pcm"):
		return "audio/pcm"
	case strings.HasPrefix(format, "ulaw"):
		return "audio/basic"
	case strings.HasPrefix(format, "opus"):
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

var _ speech.Synthesizer = (*Synthesizer)(nil)
