package mockview

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/mockview/pkg/llm"
	"github.com/harunnryd/mockview/pkg/providers/mock"
	"github.com/harunnryd/mockview/pkg/report"
	"github.com/harunnryd/mockview/pkg/runner"
	"github.com/harunnryd/mockview/pkg/speech"
)

func testProviders() *ProviderRegistry {
	reg := NewProviderRegistry()
	reg.RegisterLLM("mock", func(context.Context, Config) (llm.LLMAdapter, error) {
		return mock.NewLLMAdapter(mock.LLMConfig{}), nil
	})
	reg.RegisterSTT("browser", func(_ Config, _ string, control func(bool) error) (speech.Recognizer, error) {
		return speech.NewRemoteRecognizer(control), nil
	})
	reg.RegisterTTS("none", func(Config) (speech.Synthesizer, error) { return nil, nil })
	return reg
}

func TestNewEngineUnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Vendors.LLM.Provider = "openai"
	if _, err := NewEngine(context.Background(), EngineOptions{Config: cfg, Providers: testProviders()}); err == nil {
		t.Fatalf("expected unregistered provider error")
	}
}

func TestEngineServesInterviewEndToEnd(t *testing.T) {
	runner.BannerOutput = nil
	reports := t.TempDir()
	artifacts := t.TempDir()

	cfg := DefaultConfig()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Vendors.TTS.Provider = "none"
	cfg.Archive = VendorConfig{Provider: "file", Settings: map[string]any{"dir": reports}}
	cfg.Observability.ArtifactsDir = artifacts

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app, err := NewEngine(ctx, EngineOptions{Config: cfg, Providers: testProviders()})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for app.Server().Addr() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if app.Server().Addr() == nil {
		t.Fatalf("server did not start")
	}
	base := app.Server().Addr().String()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+base+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	write := func(v map[string]any) {
		if err := conn.WriteJSON(v); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write(map[string]any{"type": "capability", "speech_recognition": false})
	write(map[string]any{"type": "start", "role": "Backend Engineer"})

	var sessionID string
	asked := 0
	for sessionID == "" {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg struct {
			Type   string          `json:"type"`
			Entry  json.RawMessage `json:"entry"`
			Report *report.Report  `json:"report"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		switch msg.Type {
		case "entry":
			var entry struct {
				Speaker string `json:"speaker"`
			}
			_ = json.Unmarshal(msg.Entry, &entry)
			if entry.Speaker != "interviewer" {
				continue
			}
			asked++
			if asked <= 5 {
				write(map[string]any{"type": "answer", "text": "I build services in Go."})
			} else {
				write(map[string]any{"type": "answer", "text": "exit"})
			}
		case "report":
			if len(msg.Report.Transcript) != 12 {
				t.Fatalf("report has %d entries", len(msg.Report.Transcript))
			}
			sessionID = msg.Report.SessionID
		case "error":
			t.Fatalf("unexpected error message")
		}
	}

	resp, err := http.Get("http://" + base + "/api/reports/" + sessionID)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("archived report status %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("engine did not stop")
	}
	if app.Registry().Count() != 0 {
		t.Fatalf("interviews left after drain: %d", app.Registry().Count())
	}
	for _, name := range []string{"events.jsonl", sessionID + ".jsonl"} {
		info, err := os.Stat(filepath.Join(artifacts, name))
		if err != nil || info.Size() == 0 {
			t.Fatalf("artifact %s missing or empty: %v", name, err)
		}
	}
}
