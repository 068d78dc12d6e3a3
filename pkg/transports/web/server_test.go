package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/mockview/pkg/archive"
	"github.com/harunnryd/mockview/pkg/report"
)

type echoHandler struct {
	client *Client
	audio  chan int
	closed chan struct{}
}

func (h *echoHandler) HandleMessage(_ context.Context, msg Inbound) {
	_ = h.client.Send(NewOutbound(MsgState, map[string]any{"echo": msg.Type, "text": msg.Text}))
}

func (h *echoHandler) HandleAudio(_ context.Context, data []byte) {
	h.audio <- len(data)
}

func (h *echoHandler) Close() { close(h.closed) }

type fakeLoader map[string]report.Report

func (f fakeLoader) Load(_ context.Context, id string) (report.Report, error) {
	if id == "invalid" {
		return report.Report{}, archive.ErrInvalidID
	}
	r, ok := f[id]
	if !ok {
		return report.Report{}, archive.ErrNotFound
	}
	return r, nil
}

func newTestServer(t *testing.T, factory SessionFactory, loader ReportLoader) (*Server, *httptest.Server) {
	t.Helper()
	if factory == nil {
		factory = func(context.Context, *Client) (Handler, error) { return nil, errors.New("no sessions") }
	}
	s := NewServer(Config{}, Info{MaxQuestions: 5, STTProvider: "browser", TTSProvider: "mock"}, factory, loader, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHealthAndConfig(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	defer resp.Body.Close()
	var info Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if info.MaxQuestions != 5 || info.STTProvider != "browser" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func upload(t *testing.T, url, filename string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()
	resp, err := http.Post(url+"/api/roles/extract", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestExtractRole(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)

	resp := upload(t, ts.URL, "role.txt", []byte("  Senior   Backend Engineer\n\n\n\nGo, Postgres  "))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status %d: %s", resp.StatusCode, b)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["role"] != "Senior Backend Engineer\n\nGo, Postgres" {
		t.Fatalf("unexpected role %q", out["role"])
	}

	png := upload(t, ts.URL, "logo.bin", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	png.Body.Close()
	if png.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", png.StatusCode)
	}

	missing, err := http.Post(ts.URL+"/api/roles/extract", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", missing.StatusCode)
	}
}

func TestGetReport(t *testing.T) {
	_, disabled := newTestServer(t, nil, nil)
	resp, err := http.Get(disabled.URL + "/api/reports/abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 with no archive, got %d", resp.StatusCode)
	}

	loader := fakeLoader{"abc": {SessionID: "abc", Role: "SRE", Feedback: "ok"}}
	_, ts := newTestServer(t, nil, loader)
	cases := map[string]int{
		"/api/reports/abc":     http.StatusOK,
		"/api/reports/missing": http.StatusNotFound,
		"/api/reports/invalid": http.StatusBadRequest,
	}
	for path, want := range cases {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		if resp.StatusCode != want {
			resp.Body.Close()
			t.Fatalf("%s: expected %d, got %d", path, want, resp.StatusCode)
		}
		if want == http.StatusOK {
			var r report.Report
			if err := json.NewDecoder(resp.Body).Decode(&r); err != nil || r.Role != "SRE" {
				t.Fatalf("decode report: %+v %v", r, err)
			}
		}
		resp.Body.Close()
	}
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out map[string]any
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	return out
}

func TestWebsocketRoundTrip(t *testing.T) {
	h := &echoHandler{audio: make(chan int, 1), closed: make(chan struct{})}
	s, ts := newTestServer(t, func(_ context.Context, c *Client) (Handler, error) {
		h.client = c
		return h, nil
	}, nil)

	conn := dial(t, ts)
	if err := conn.WriteJSON(map[string]any{"type": MsgAnswer, "text": "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readJSON(t, conn)
	if msg["type"] != MsgState || msg["echo"] != MsgAnswer || msg["text"] != "hello" {
		t.Fatalf("unexpected reply %v", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg = readJSON(t, conn)
	if msg["type"] != MsgError || msg["message"] != "malformed message" {
		t.Fatalf("expected malformed error, got %v", msg)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, make([]byte, 320)); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	select {
	case n := <-h.audio:
		if n != 320 {
			t.Fatalf("audio length %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("audio frame not delivered")
	}
	if s.ActiveSessions() != 1 {
		t.Fatalf("expected one active session, got %d", s.ActiveSessions())
	}

	conn.Close()
	select {
	case <-h.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("handler not closed after disconnect")
	}
}

func TestWebsocketFactoryError(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)
	conn := dial(t, ts)
	msg := readJSON(t, conn)
	if msg["type"] != MsgError {
		t.Fatalf("expected error message, got %v", msg)
	}
}

func TestCheckOrigin(t *testing.T) {
	s := NewServer(Config{AllowedOrigins: []string{"https://app.example.com", "localhost:3000"}}, Info{}, nil, nil, nil)
	cases := map[string]bool{
		"":                        true,
		"https://app.example.com": true,
		"http://localhost:3000":   true,
		"https://evil.example":    false,
	}
	for origin, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		if got := s.checkOrigin(r); got != want {
			t.Fatalf("origin %q: got %v, want %v", origin, got, want)
		}
	}
}
