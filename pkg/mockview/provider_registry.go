package mockview

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/mockview/pkg/llm"
	"github.com/harunnryd/mockview/pkg/speech"
)

// STTFactory builds the recognizer of one interview. control forwards listen
// start/stop to the client for recognizers that run in the browser.
type STTFactory func(cfg Config, sessionID string, control func(active bool) error) (speech.Recognizer, error)

// TTSFactory builds the shared synthesizer. A nil synthesizer disables
// spoken output.
type TTSFactory func(cfg Config) (speech.Synthesizer, error)

type LLMFactory func(ctx context.Context, cfg Config) (llm.LLMAdapter, error)

type ProviderRegistry struct {
	stt map[string]STTFactory
	tts map[string]TTSFactory
	llm map[string]LLMFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		stt: make(map[string]STTFactory),
		tts: make(map[string]TTSFactory),
		llm: make(map[string]LLMFactory),
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *ProviderRegistry) RegisterSTT(name string, factory STTFactory) {
	r.stt[normalize(name)] = factory
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactory) {
	r.tts[normalize(name)] = factory
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[normalize(name)] = factory
}

// STT returns the recognizer factory for provider without calling it, so
// per-session recognizers can be built later.
func (r *ProviderRegistry) STT(provider string) (STTFactory, error) {
	fn := r.stt[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", provider)
	}
	return fn, nil
}

func (r *ProviderRegistry) BuildTTS(provider string, cfg Config) (speech.Synthesizer, error) {
	fn := r.tts[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildLLM(ctx context.Context, provider string, cfg Config) (llm.LLMAdapter, error) {
	fn := r.llm[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", provider)
	}
	return fn(ctx, cfg)
}

// Providers lists registered names per kind, for diagnostics.
func (r *ProviderRegistry) Providers() map[string][]string {
	out := map[string][]string{"stt": nil, "tts": nil, "llm": nil}
	for name := range r.stt {
		out["stt"] = append(out["stt"], name)
	}
	for name := range r.tts {
		out["tts"] = append(out["tts"], name)
	}
	for name := range r.llm {
		out["llm"] = append(out["llm"], name)
	}
	for _, names := range out {
		sort.Strings(names)
	}
	return out
}
