package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/mockview/pkg/configutil"
	"github.com/harunnryd/mockview/pkg/llm"
	"github.com/harunnryd/mockview/pkg/mockview"
	"github.com/harunnryd/mockview/pkg/providers/deepgram"
	"github.com/harunnryd/mockview/pkg/providers/elevenlabs"
	"github.com/harunnryd/mockview/pkg/providers/gemini"
	"github.com/harunnryd/mockview/pkg/providers/mock"
	"github.com/harunnryd/mockview/pkg/providers/openai"
	"github.com/harunnryd/mockview/pkg/resilience"
	"github.com/harunnryd/mockview/pkg/speech"
)

// BreakerSettings are shared by the LLM providers.
type BreakerSettings struct {
	UseCircuitBreaker *bool `mapstructure:"use_circuit_breaker"`
	CircuitThreshold  int   `mapstructure:"circuit_threshold"`
	CircuitCooldownMs int   `mapstructure:"circuit_cooldown_ms"`
}

type openAISettings struct {
	APIKey      string   `mapstructure:"api_key"`
	Model       string   `mapstructure:"model"`
	BaseURL     string   `mapstructure:"base_url"`
	Temperature *float64 `mapstructure:"temperature"`
	TimeoutMs   int      `mapstructure:"timeout_ms"`

	BreakerSettings `mapstructure:",squash"`
}

type geminiSettings struct {
	APIKey      string   `mapstructure:"api_key"`
	Model       string   `mapstructure:"model"`
	Temperature *float64 `mapstructure:"temperature"`

	BreakerSettings `mapstructure:",squash"`
}

type mockLLMSettings struct {
	Questions  []string `mapstructure:"questions"`
	Closing    string   `mapstructure:"closing"`
	Feedback   string   `mapstructure:"feedback"`
	Assessment string   `mapstructure:"assessment"`
}

type deepgramSettings struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Language       string `mapstructure:"language"`
	SampleRate     int    `mapstructure:"sample_rate"`
	Encoding       string `mapstructure:"encoding"`
	Interim        *bool  `mapstructure:"interim"`
	VADEvents      *bool  `mapstructure:"vad_events"`
	UtteranceEndMS *int   `mapstructure:"utterance_end_ms"`
}

type mockSTTSettings struct {
	Transcripts       []string `mapstructure:"transcripts"`
	InterimTranscript string   `mapstructure:"interim_transcript"`
	EmitInterim       *bool    `mapstructure:"emit_interim"`
	EmitOnStart       *bool    `mapstructure:"emit_on_start"`
}

type elevenlabsSettings struct {
	APIKey       string `mapstructure:"api_key"`
	VoiceID      string `mapstructure:"voice_id"`
	ModelID      string `mapstructure:"model_id"`
	OutputFormat string `mapstructure:"output_format"`
	BaseURL      string `mapstructure:"base_url"`
	TimeoutMs    int    `mapstructure:"timeout_ms"`
}

type mockTTSSettings struct {
	SampleRate int    `mapstructure:"sample_rate"`
	FailOn     string `mapstructure:"fail_on"`
}

var breakerKeys = []string{"use_circuit_breaker", "circuit_threshold", "circuit_cooldown_ms"}

func registerProviders(reg *mockview.ProviderRegistry) {
	reg.RegisterLLM("openai", func(_ context.Context, cfg mockview.Config) (llm.LLMAdapter, error) {
		if err := configutil.ValidateSettings("vendors.llm", cfg.Vendors.LLM.Provider, cfg.Vendors.LLM.Settings, configutil.Schema{
			Required: []string{"api_key", "model"},
			Optional: append([]string{"base_url", "temperature", "timeout_ms"}, breakerKeys...),
		}); err != nil {
			return nil, err
		}
		var settings openAISettings
		if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.llm.settings.api_key"); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.Model, "vendors.llm.settings.model"); err != nil {
			return nil, err
		}
		adapter := openai.NewAdapter(settings.APIKey, settings.Model)
		if settings.BaseURL != "" {
			adapter.BaseURL = settings.BaseURL
		}
		if settings.Temperature != nil {
			adapter.Temperature = *settings.Temperature
		}
		if settings.TimeoutMs > 0 {
			adapter.Client.Timeout = time.Duration(settings.TimeoutMs) * time.Millisecond
		}
		return withBreaker(adapter, settings.BreakerSettings), nil
	})

	reg.RegisterLLM("gemini", func(ctx context.Context, cfg mockview.Config) (llm.LLMAdapter, error) {
		if err := configutil.ValidateSettings("vendors.llm", cfg.Vendors.LLM.Provider, cfg.Vendors.LLM.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: append([]string{"model", "temperature"}, breakerKeys...),
		}); err != nil {
			return nil, err
		}
		var settings geminiSettings
		if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
			return nil, err
		}
		gcfg := gemini.Config{APIKey: settings.APIKey, Model: settings.Model}
		if settings.Temperature != nil {
			gcfg.Temperature = float32(*settings.Temperature)
		}
		adapter, err := gemini.NewAdapter(ctx, gcfg)
		if err != nil {
			return nil, err
		}
		return withBreaker(adapter, settings.BreakerSettings), nil
	})

	reg.RegisterLLM("mock", func(_ context.Context, cfg mockview.Config) (llm.LLMAdapter, error) {
		if err := configutil.ValidateSettings("vendors.llm", cfg.Vendors.LLM.Provider, cfg.Vendors.LLM.Settings, configutil.Schema{
			Optional: []string{"questions", "closing", "feedback", "assessment"},
		}); err != nil {
			return nil, err
		}
		var settings mockLLMSettings
		if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
			return nil, err
		}
		return mock.NewLLMAdapter(mock.LLMConfig{
			Questions:  settings.Questions,
			Closing:    settings.Closing,
			Feedback:   settings.Feedback,
			Assessment: settings.Assessment,
		}), nil
	})

	reg.RegisterSTT("browser", func(_ mockview.Config, _ string, control func(bool) error) (speech.Recognizer, error) {
		return speech.NewRemoteRecognizer(control), nil
	})

	reg.RegisterSTT("deepgram", func(cfg mockview.Config, sessionID string, _ func(bool) error) (speech.Recognizer, error) {
		if err := configutil.ValidateSettings("vendors.stt", cfg.Vendors.STT.Provider, cfg.Vendors.STT.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "language", "sample_rate", "encoding", "interim", "vad_events", "utterance_end_ms"},
		}); err != nil {
			return nil, err
		}
		var settings deepgramSettings
		if err := configutil.DecodeSettings(cfg.Vendors.STT.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.stt.settings.api_key"); err != nil {
			return nil, err
		}
		if settings.Encoding != "" && !validDeepgramEncoding(settings.Encoding) {
			return nil, fmt.Errorf("vendors.stt.settings.encoding must be one of [linear16, opus], got %s", settings.Encoding)
		}
		utteranceEnd := configutil.IntValue(settings.UtteranceEndMS, 1000)
		if utteranceEnd < 0 || utteranceEnd > 5000 {
			return nil, fmt.Errorf("vendors.stt.settings.utterance_end_ms must be between 0 and 5000, got %d", utteranceEnd)
		}
		return deepgram.New(deepgram.Config{
			APIKey:         settings.APIKey,
			Model:          settings.Model,
			Language:       settings.Language,
			SampleRate:     settings.SampleRate,
			Encoding:       settings.Encoding,
			Interim:        configutil.BoolValue(settings.Interim, true),
			VADEvents:      configutil.BoolValue(settings.VADEvents, true),
			UtteranceEndMS: utteranceEnd,
			SessionID:      sessionID,
		}), nil
	})

	reg.RegisterSTT("mock", func(cfg mockview.Config, _ string, _ func(bool) error) (speech.Recognizer, error) {
		if err := configutil.ValidateSettings("vendors.stt", cfg.Vendors.STT.Provider, cfg.Vendors.STT.Settings, configutil.Schema{
			Optional: []string{"transcripts", "interim_transcript", "emit_interim", "emit_on_start"},
		}); err != nil {
			return nil, err
		}
		var settings mockSTTSettings
		if err := configutil.DecodeSettings(cfg.Vendors.STT.Settings, &settings); err != nil {
			return nil, err
		}
		return mock.NewSTT(mock.STTConfig{
			Transcripts:       settings.Transcripts,
			InterimTranscript: settings.InterimTranscript,
			EmitInterim:       configutil.BoolValue(settings.EmitInterim, false),
			EmitOnStart:       configutil.BoolValue(settings.EmitOnStart, false),
		}), nil
	})

	reg.RegisterTTS("elevenlabs", func(cfg mockview.Config) (speech.Synthesizer, error) {
		if err := configutil.ValidateSettings("vendors.tts", cfg.Vendors.TTS.Provider, cfg.Vendors.TTS.Settings, configutil.Schema{
			Required: []string{"api_key", "voice_id"},
			Optional: []string{"model_id", "output_format", "base_url", "timeout_ms"},
		}); err != nil {
			return nil, err
		}
		var settings elevenlabsSettings
		if err := configutil.DecodeSettings(cfg.Vendors.TTS.Settings, &settings); err != nil {
			return nil, err
		}
		return elevenlabs.New(elevenlabs.Config{
			APIKey:       settings.APIKey,
			VoiceID:      settings.VoiceID,
			ModelID:      settings.ModelID,
			OutputFormat: settings.OutputFormat,
			BaseURL:      settings.BaseURL,
			Timeout:      configutil.Millis(settings.TimeoutMs, 30*time.Second),
		})
	})

	reg.RegisterTTS("mock", func(cfg mockview.Config) (speech.Synthesizer, error) {
		if err := configutil.ValidateSettings("vendors.tts", cfg.Vendors.TTS.Provider, cfg.Vendors.TTS.Settings, configutil.Schema{
			Optional: []string{"sample_rate", "fail_on"},
		}); err != nil {
			return nil, err
		}
		var settings mockTTSSettings
		if err := configutil.DecodeSettings(cfg.Vendors.TTS.Settings, &settings); err != nil {
			return nil, err
		}
		return mock.NewTTS(mock.TTSConfig{SampleRate: settings.SampleRate, FailOn: settings.FailOn}), nil
	})

	// Text only: questions are shown, never spoken.
	reg.RegisterTTS("none", func(mockview.Config) (speech.Synthesizer, error) {
		return nil, nil
	})
}

func withBreaker(adapter llm.LLMAdapter, s BreakerSettings) llm.LLMAdapter {
	if !configutil.BoolValue(s.UseCircuitBreaker, true) {
		return adapter
	}
	threshold := s.CircuitThreshold
	if threshold == 0 {
		threshold = 3
	}
	cooldown := configutil.Millis(s.CircuitCooldownMs, 30*time.Second)
	return llm.NewCircuitBreakerAdapter(adapter, resilience.NewCircuitBreaker(threshold, cooldown))
}

func validDeepgramEncoding(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "linear16", "opus":
		return true
	default:
		return false
	}
}
