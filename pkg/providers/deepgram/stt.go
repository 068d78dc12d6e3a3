package deepgram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/mockview/pkg/errorsx"
	"github.com/harunnryd/mockview/pkg/logging"
	"github.com/harunnryd/mockview/pkg/resilience"
	"github.com/harunnryd/mockview/pkg/speech"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

var ErrNotStarted = errors.New("deepgram: recognizer not started")

type Config struct {
	APIKey         string
	Model          string
	Language       string
	SampleRate     int
	Encoding       string
	Interim        bool
	VADEvents      bool
	UtteranceEndMS int
	SessionID      string
}

// Recognizer streams client microphone audio to Deepgram live transcription.
// Each listen session opens its own connection.
type Recognizer struct {
	cfg         Config
	logger      *slog.Logger
	retryPolicy resilience.RetryPolicy

	mu         sync.Mutex
	dgClient   *client.WSCallback
	cancel     context.CancelFunc
	pipeWriter *io.PipeWriter
	sink       speech.EventSink
	metaLogged bool
}

func New(cfg Config) *Recognizer {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	logger := logging.NewComponentLogger(slog.Default(), "deepgram_stt").
		With(slog.String("session_id", cfg.SessionID))
	return &Recognizer{
		cfg:         cfg,
		logger:      logger,
		retryPolicy: resilience.NewRetryPolicy(2, 200*time.Millisecond),
	}
}

func (r *Recognizer) Name() string { return "deepgram" }

func (r *Recognizer) Start(ctx context.Context, sink speech.EventSink) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	if r.dgClient != nil {
		r.mu.Unlock()
		return errors.New("deepgram: session already open")
	}
	r.mu.Unlock()

	sessCtx, cancel := context.WithCancel(ctx)
	pipeReader, pipeWriter := io.Pipe()

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          r.cfg.Model,
		Language:       r.cfg.Language,
		Encoding:       r.cfg.Encoding,
		SampleRate:     r.cfg.SampleRate,
		InterimResults: r.cfg.Interim,
		VadEvents:      r.cfg.VADEvents,
		SmartFormat:    true,
		Channels:       1,
	}
	if r.cfg.UtteranceEndMS > 0 {
		transcriptOptions.UtteranceEndMs = fmt.Sprintf("%d", r.cfg.UtteranceEndMS)
	}

	r.logger.Info("initializing deepgram connection",
		slog.String("model", r.cfg.Model),
		slog.Bool("interim", r.cfg.Interim),
		slog.Int("sample_rate", r.cfg.SampleRate))

	cb := &callback{parent: r}
	var dgClient *client.WSCallback
	err := r.retryPolicy.Do(sessCtx, func() error {
		c, err := client.NewWSUsingCallback(sessCtx, r.cfg.APIKey, clientOptions, transcriptOptions, cb)
		if err != nil {
			return err
		}
		if connected := c.Connect(); !connected {
			return errors.New("deepgram connection failed")
		}
		dgClient = c
		return nil
	})
	if err != nil {
		cancel()
		_ = pipeWriter.Close()
		r.logger.Error("deepgram_connect_failed", slog.String("error", err.Error()))
		return errorsx.Wrap(err, errorsx.ReasonSTTConnect)
	}

	r.mu.Lock()
	r.dgClient = dgClient
	r.cancel = cancel
	r.pipeWriter = pipeWriter
	r.sink = sink
	r.mu.Unlock()

	r.logger.Info("deepgram_connected", slog.String("model", r.cfg.Model))

	go func() {
		if err := dgClient.Stream(pipeReader); err != nil && sessCtx.Err() == nil {
			r.logger.Error("deepgram_stream_error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (r *Recognizer) Stop() error {
	r.mu.Lock()
	dgClient, cancel, pipeWriter := r.dgClient, r.cancel, r.pipeWriter
	r.dgClient, r.cancel, r.pipeWriter, r.sink = nil, nil, nil, nil
	r.mu.Unlock()
	if dgClient == nil {
		return nil
	}

	r.logger.Info("closing deepgram connection")
	if cancel != nil {
		cancel()
	}
	if pipeWriter != nil {
		_ = pipeWriter.Close()
	}
	dgClient.Stop()
	return nil
}

// SendAudio forwards raw microphone audio. Audio arriving outside a listen
// session is dropped.
func (r *Recognizer) SendAudio(data []byte) error {
	r.mu.Lock()
	w := r.pipeWriter
	r.mu.Unlock()
	if w == nil {
		return ErrNotStarted
	}
	if _, err := w.Write(data); err != nil {
		r.logger.Error("failed to send audio to deepgram", slog.String("error", err.Error()))
		return errorsx.Wrap(err, errorsx.ReasonSTTSend)
	}
	return nil
}

// emit delivers ev to the open session. Events that may stop the session are
// emitted off the SDK callback goroutine since Stop waits on it.
func (r *Recognizer) emit(ev speech.Event) {
	r.mu.Lock()
	sink := r.sink
	r.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

// --- Callback Implementation ---

type callback struct {
	parent *Recognizer
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("deepgram_connection_opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	transcript := mr.Channel.Alternatives[0].Transcript
	if transcript == "" {
		return nil
	}
	isFinal := mr.IsFinal || mr.SpeechFinal
	c.parent.logger.Debug("transcript_received",
		slog.Int("chars", len(transcript)),
		slog.Bool("is_final", isFinal))

	kind := speech.EventInterim
	if isFinal {
		kind = speech.EventFinal
	}
	c.parent.emit(speech.Event{Kind: kind, Text: transcript})
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	c.parent.mu.Lock()
	logged := c.parent.metaLogged
	c.parent.metaLogged = true
	c.parent.mu.Unlock()
	if !logged {
		c.parent.logger.Info("deepgram_metadata_received", slog.String("request_id", md.RequestID))
	}
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	c.parent.logger.Debug("speech_started_event")
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	c.parent.logger.Info("utterance_end_event", slog.Int("utterance_end_ms", c.parent.cfg.UtteranceEndMS))
	go c.parent.emit(speech.Event{Kind: speech.EventUtteranceEnd})
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram_connection_closed")
	go c.parent.emit(speech.Event{Kind: speech.EventEnd})
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("deepgram_error",
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	code := er.ErrCode
	if code == "" {
		code = "network"
	}
	go c.parent.emit(speech.Event{Kind: speech.EventError, Error: code})
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram_unhandled_event", slog.Int("bytes", len(byData)))
	return nil
}

var (
	_ speech.Recognizer = (*Recognizer)(nil)
	_ speech.AudioSink  = (*Recognizer)(nil)
)
