package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/ppiankov/annofrag/internal/model"
	"github.com/ppiankov/annofrag/internal/pipeline"
)

const scenarioJSON = `{"id":"scenario","text":"ABCDEFGHI","ranges":[
	{"id":"b1","tag":"b","start":3,"end":6},
	{"id":"i1","tag":"i","start":4,"end":8}]}`

func newTestServer(t *testing.T, mutate func(*model.Config)) *httptest.Server {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	p, err := pipeline.New(cfg, nil)
	if err != nil {
		t.Fatalf("pipeline.New failed: %v", err)
	}
	ts := httptest.NewServer(New(p, cfg.Server, nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp, []byte(buf.String())
}

func TestRender(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := post(t, ts.URL+"/v1/render", scenarioJSON)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected generated request id")
	}

	var report model.RenderReport
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Output != "ABC<b>D<i>EF</i></b><i>GH</i>I" {
		t.Errorf("unexpected output %q", report.Output)
	}
	if report.Stats.Fragments != 3 {
		t.Errorf("unexpected stats %+v", report.Stats)
	}
}

func TestRender_EventsFormat(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := post(t, ts.URL+"/v1/render?format=events", scenarioJSON)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var report model.RenderReport
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Format != "events" || len(report.Events) != 11 {
		t.Errorf("expected 11 event records, got %d (%s)", len(report.Events), report.Format)
	}
}

func TestRender_Errors(t *testing.T) {
	ts := newTestServer(t, func(cfg *model.Config) {
		cfg.Server.MaxBodyBytes = 512
	})

	tests := []struct {
		name   string
		url    string
		body   string
		status int
	}{
		{"bad format", "/v1/render?format=pdf", scenarioJSON, http.StatusBadRequest},
		{"bad json", "/v1/render", `{"text":`, http.StatusBadRequest},
		{"unknown field", "/v1/render", `{"text":"a","spans":[]}`, http.StatusBadRequest},
		{"invalid range", "/v1/render", `{"text":"ab","ranges":[{"id":"x","tag":"b","start":1,"end":5}]}`, http.StatusUnprocessableEntity},
		{"invalid tag", "/v1/render", `{"text":"ab","ranges":[{"id":"x","tag":"img src=x onerror=alert(1)","start":0,"end":1}]}`, http.StatusUnprocessableEntity},
		{"invalid attribute", "/v1/render", `{"text":"ab","ranges":[{"id":"x","tag":"b","start":0,"end":1,"attrs":{"a\"><script>":"v"}}]}`, http.StatusUnprocessableEntity},
		{"too large", "/v1/render", `{"text":"` + strings.Repeat("x", 1024) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, ts.URL+tt.url, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, resp.StatusCode, body)
			}
			var e errorResponse
			if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
				t.Errorf("expected JSON error body, got %s", body)
			}
			if e.RequestID != resp.Header.Get(RequestIDHeader) {
				t.Errorf("error body request id %q does not match header", e.RequestID)
			}
		})
	}
}

func TestRender_KeepsRequestID(t *testing.T) {
	ts := newTestServer(t, nil)
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("expected request id echoed, got %q", got)
	}
}

func TestRender_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/v1/render")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func dialStream(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected request id on upgrade response")
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestStream(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := dialStream(t, ts)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(scenarioJSON)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var kinds []string
	var markup strings.Builder
	for {
		var rec model.EventRecord
		if err := conn.ReadJSON(&rec); err != nil {
			t.Fatalf("read failed after %v: %v", kinds, err)
		}
		if rec.Kind == "done" {
			break
		}
		kinds = append(kinds, rec.Kind)
		switch rec.Kind {
		case "enter":
			markup.WriteString("<" + rec.Tag + ">")
		case "exit":
			markup.WriteString("</" + rec.Tag + ">")
		case "text":
			markup.WriteString(rec.Text)
		}
	}

	if len(kinds) != 11 {
		t.Errorf("expected 11 events, got %d: %v", len(kinds), kinds)
	}
	if got := markup.String(); got != "ABC<b>D<i>EF</i></b><i>GH</i>I" {
		t.Errorf("streamed events rebuild %q", got)
	}
}

func TestStream_InvalidDocument(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := dialStream(t, ts)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"text":"ab","ranges":[{"id":"x","tag":"b","start":2,"end":1}]}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var msg map[string]string
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msg["kind"] != "error" || msg["error"] == "" {
		t.Errorf("expected error message, got %v", msg)
	}
}

func TestStream_ClampsWhenConfigured(t *testing.T) {
	ts := newTestServer(t, func(cfg *model.Config) {
		cfg.Validate.Clamp = true
	})
	conn := dialStream(t, ts)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"text":"ab","ranges":[{"id":"x","tag":"b","start":1,"end":9}]}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var first model.EventRecord
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if first.Kind != "text" || first.Text != "a" {
		t.Errorf("expected leading text, got %+v", first)
	}
}
