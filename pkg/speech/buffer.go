package speech

import (
	"strings"
	"sync"
)

// AnswerBuffer aggregates recognition results into the live answer text.
// Final segments accumulate; the interim segment is replaced on every
// interim result and cleared when a final result arrives.
type AnswerBuffer struct {
	mu      sync.Mutex
	finals  []string
	interim string
}

func (b *AnswerBuffer) Interim(text string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.interim = strings.TrimSpace(text)
	return b.textLocked()
}

func (b *AnswerBuffer) Final(text string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t := strings.TrimSpace(text); t != "" {
		b.finals = append(b.finals, t)
	}
	b.interim = ""
	return b.textLocked()
}

// Text returns the committed segments followed by the interim segment.
func (b *AnswerBuffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.textLocked()
}

// Flush returns the trimmed buffer and resets it.
func (b *AnswerBuffer) Flush() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.textLocked()
	b.finals = nil
	b.interim = ""
	return out
}

func (b *AnswerBuffer) Reset() {
	b.mu.Lock()
	b.finals = nil
	b.interim = ""
	b.mu.Unlock()
}

func (b *AnswerBuffer) textLocked() string {
	parts := make([]string, 0, len(b.finals)+1)
	parts = append(parts, b.finals...)
	if b.interim != "" {
		parts = append(parts, b.interim)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
