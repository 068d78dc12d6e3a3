package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/mockview/pkg/metrics"
)

// UsageSummary is the billable footprint of one session.
type UsageSummary struct {
	SessionID        string `json:"session_id"`
	LLMCalls         int    `json:"llm_calls"`
	LLMErrors        int    `json:"llm_errors"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TTSCharacters    int    `json:"tts_characters"`
	TTSBytes         int    `json:"tts_bytes"`
	STTBytes         int    `json:"stt_bytes"`
	RecordedAtUTC    string `json:"recorded_at_utc"`
}

// UsageObserver accumulates token and audio usage per session and writes
// <session>.usage.json when the session ends.
type UsageObserver struct {
	dir   string
	mu    sync.Mutex
	stats map[string]*UsageSummary
}

func NewUsageObserver(dir string) *UsageObserver {
	return &UsageObserver{dir: dir, stats: make(map[string]*UsageSummary)}
}

func (o *UsageObserver) RecordEvent(ev metrics.MetricsEvent) {
	id := ev.Session()
	if id == "" || strings.TrimSpace(o.dir) == "" {
		return
	}
	o.mu.Lock()
	stat := o.stats[id]
	if stat == nil {
		stat = &UsageSummary{SessionID: id}
		o.stats[id] = stat
	}
	switch ev.Name {
	case metrics.EventLLMDone:
		stat.LLMCalls++
		if ev.Tags["status"] == "error" {
			stat.LLMErrors++
		}
		stat.PromptTokens += intField(ev.Fields, "prompt_tokens")
		stat.CompletionTokens += intField(ev.Fields, "completion_tokens")
	case metrics.EventAudioOut:
		stat.TTSCharacters += intField(ev.Fields, "chars")
		stat.TTSBytes += intField(ev.Fields, "bytes")
	case metrics.EventAudioIn:
		stat.STTBytes += intField(ev.Fields, "bytes")
	case metrics.EventSessionEnd:
		delete(o.stats, id)
		o.mu.Unlock()
		_ = o.write(stat)
		return
	}
	o.mu.Unlock()
}

// Close writes summaries for sessions that never ended.
func (o *UsageObserver) Close() error {
	o.mu.Lock()
	pending := o.stats
	o.stats = make(map[string]*UsageSummary)
	o.mu.Unlock()
	var errOut error
	for _, stat := range pending {
		errOut = errors.Join(errOut, o.write(stat))
	}
	return errOut
}

func (o *UsageObserver) write(stat *UsageSummary) error {
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return err
	}
	stat.RecordedAtUTC = time.Now().UTC().Format(time.RFC3339)
	b, err := json.MarshalIndent(stat, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(o.dir, sanitizeID(stat.SessionID)+".usage.json"), b, 0o644)
}

func intField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

var _ metrics.Observer = (*UsageObserver)(nil)
