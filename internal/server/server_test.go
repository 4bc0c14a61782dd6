package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/voicenav/internal/health"
	"github.com/MrWong99/voicenav/internal/journal"
	"github.com/MrWong99/voicenav/internal/observe"
	"github.com/MrWong99/voicenav/internal/server"
	"github.com/MrWong99/voicenav/internal/session"
	"github.com/MrWong99/voicenav/internal/voicecmd"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newTestMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// fakeSessions is a minimal session registry.
type fakeSessions struct {
	resolver session.Resolver
	metrics  *observe.Metrics
	openErr  error

	mu       sync.Mutex
	sessions map[string]*session.Session
	closed   []string
}

func (f *fakeSessions) Open(_ context.Context, sender session.Sender) (*session.Session, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "s" + string(rune('0'+len(f.sessions)))
	s := session.New(session.Config{ID: id, Resolver: f.resolver, Sender: sender, Metrics: f.metrics})
	f.sessions[id] = s
	return s, nil
}

func (f *fakeSessions) Close(_ context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		_ = s.Close()
		delete(f.sessions, id)
		f.closed = append(f.closed, id)
	}
}

func (f *fakeSessions) List() []session.Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []session.Info
	for _, s := range f.sessions {
		out = append(out, s.Info())
	}
	return out
}

func (f *fakeSessions) closedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}

type fakeMisses struct {
	misses []journal.Miss
	err    error
	limit  int
}

func (f *fakeMisses) Misses(_ context.Context, limit int) ([]journal.Miss, error) {
	f.limit = limit
	return f.misses, f.err
}

type fixture struct {
	srv      *httptest.Server
	sessions *fakeSessions
	misses   *fakeMisses
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := newTestMetrics(t)
	res := voicecmd.NewResolver(voicecmd.DefaultSettings(), voicecmd.WithMetrics(m))
	f := &fixture{
		sessions: &fakeSessions{resolver: res, metrics: m, sessions: map[string]*session.Session{}},
		misses:   &fakeMisses{},
	}
	s := server.New(server.Config{
		Resolver:       res,
		Sessions:       f.sessions,
		Misses:         f.misses,
		Health:         health.New(),
		Metrics:        m,
		RequestTimeout: 5 * time.Second,
	})
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode: %v", err)
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

type matchResp struct {
	Matched bool `json:"matched"`
	Result  *struct {
		Command       string   `json:"command"`
		Score         float64  `json:"score"`
		MatchedWindow []string `json:"matched_window"`
	} `json:"result"`
	Error string `json:"error"`
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestMatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	topics := []string{"basic math", "intermediate math", "algebra"}

	tests := []struct {
		name        string
		body        any
		wantStatus  int
		wantMatched bool
		wantCommand string
	}{
		{
			name:        "trailing words",
			body:        map[string]any{"text": "go to dashboard please", "candidates": []string{"go to dashboard"}, "threshold": 0.6},
			wantStatus:  http.StatusOK,
			wantMatched: true,
			wantCommand: "go to dashboard",
		},
		{
			name:        "near miss without preprocessing",
			body:        map[string]any{"text": "basic much", "candidates": topics, "threshold": 0.6},
			wantStatus:  http.StatusOK,
			wantMatched: true,
			wantCommand: "basic math",
		},
		{
			// "math" alone ties at 1.0 and the longer candidate wins.
			name:        "preprocess keeps partial tie-break",
			body:        map[string]any{"text": "basic months", "candidates": topics, "preprocess": true},
			wantStatus:  http.StatusOK,
			wantMatched: true,
			wantCommand: "intermediate math",
		},
		{
			name:        "preprocess with full windows only",
			body:        map[string]any{"text": "basic months", "candidates": topics, "preprocess": true, "allow_partial": false},
			wantStatus:  http.StatusOK,
			wantMatched: true,
			wantCommand: "basic math",
		},
		{
			name:       "unrelated",
			body:       map[string]any{"text": "xyz completely unrelated", "candidates": []string{"algebra"}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "empty candidates",
			body:       map[string]any{"text": "algebra"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "threshold out of range",
			body:       map[string]any{"text": "algebra", "candidates": topics, "threshold": 1.5},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			body:       map[string]any{"text": "algebra", "candidate": topics},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed",
			body:       `{"text":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var got matchResp
			status := postJSON(t, f.srv.URL+"/v1/match", tc.body, &got)
			if status != tc.wantStatus {
				t.Fatalf("status = %d, want %d (error %q)", status, tc.wantStatus, got.Error)
			}
			if status != http.StatusOK {
				if got.Error == "" {
					t.Error("error body is empty")
				}
				return
			}
			if got.Matched != tc.wantMatched {
				t.Fatalf("matched = %v, want %v", got.Matched, tc.wantMatched)
			}
			if tc.wantMatched && got.Result.Command != tc.wantCommand {
				t.Errorf("command = %q, want %q", got.Result.Command, tc.wantCommand)
			}
			if !tc.wantMatched && got.Result != nil {
				t.Errorf("result = %+v, want omitted", got.Result)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var got struct {
		Resolved     bool    `json:"resolved"`
		Command      string  `json:"command"`
		Arg          string  `json:"arg"`
		Method       string  `json:"method"`
		Score        float64 `json:"score"`
		Announcement string  `json:"announcement"`
	}
	status := postJSON(t, f.srv.URL+"/v1/resolve", map[string]any{
		"text":     "i think london",
		"page":     "lesson",
		"language": "english",
		"options":  []string{"Paris", "London"},
	}, &got)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !got.Resolved || got.Command != "select_option" || got.Arg != "London" || got.Method != "fuzzy" {
		t.Errorf("response = %+v", got)
	}
	if got.Announcement == "" {
		t.Error("announcement is empty")
	}

	var miss struct {
		Resolved     bool   `json:"resolved"`
		Announcement string `json:"announcement"`
	}
	postJSON(t, f.srv.URL+"/v1/resolve", map[string]any{"text": "xyz qwv"}, &miss)
	if miss.Resolved || !strings.Contains(miss.Announcement, "didn't catch") {
		t.Errorf("miss response = %+v", miss)
	}
}

func TestResolve_InvalidContext(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var got struct {
		Error string `json:"error"`
	}
	status := postJSON(t, f.srv.URL+"/v1/resolve", map[string]any{
		"text": "go back", "page": "kitchen", "language": "klingon",
	}, &got)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	for _, want := range []string{"kitchen", "klingon"} {
		if !strings.Contains(got.Error, want) {
			t.Errorf("error %q does not mention %q", got.Error, want)
		}
	}
}

func TestMisses(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.misses.misses = []journal.Miss{{Text: "xyz qwv", Count: 3}}

	resp, err := http.Get(f.srv.URL + "/v1/misses?limit=5")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var got struct {
		Misses []struct {
			Text  string `json:"text"`
			Count int    `json:"count"`
		} `json:"misses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Misses) != 1 || got.Misses[0].Count != 3 || f.misses.limit != 5 {
		t.Errorf("misses = %+v, limit %d", got.Misses, f.misses.limit)
	}

	bad, err := http.Get(f.srv.URL + "/v1/misses?limit=-1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", bad.StatusCode)
	}
}

func TestMisses_Disabled(t *testing.T) {
	t.Parallel()
	s := server.New(server.Config{
		Resolver: voicecmd.NewResolver(voicecmd.DefaultSettings()),
		Metrics:  newTestMetrics(t),
	})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/misses", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	// Stream routes are absent without a session registry.
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/stream", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("stream status = %d, want 404", rec.Code)
	}
}

func TestProbesAndMetrics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(f.srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func dial(t *testing.T, f *fixture) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/v1/stream"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn, ctx
}

func TestStream(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	conn, ctx := dial(t, f)

	send := func(in session.Input) {
		t.Helper()
		if err := wsjson.Write(ctx, conn, in); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	read := func() session.Event {
		t.Helper()
		var ev session.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		return ev
	}

	send(session.Input{Type: session.InputContext, Page: "topic", Lessons: []string{"Long Division", "Fractions"}})
	send(session.Input{Type: session.InputTranscript, Text: "open fractions", Final: false})
	send(session.Input{Type: session.InputTranscript, Text: "open fractions", Final: true})

	ev := read()
	if ev.Type != session.EventCommand || ev.Command != string(voicecmd.OpenLesson) || ev.Arg != "Fractions" {
		t.Fatalf("event = %+v, want open_lesson Fractions", ev)
	}
	speak := read()
	if speak.Type != session.EventSpeak || speak.Priority != "medium" {
		t.Errorf("speak = %+v", speak)
	}

	resp, err := http.Get(f.srv.URL + "/v1/sessions")
	if err != nil {
		t.Fatalf("GET sessions: %v", err)
	}
	var list struct {
		Sessions []session.Info `json:"sessions"`
	}
	err = json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].Page != voicecmd.PageTopic || list.Sessions[0].Resolved != 1 {
		t.Errorf("sessions = %+v", list.Sessions)
	}

	conn.Close(websocket.StatusNormalClosure, "bye")
	deadline := time.Now().Add(2 * time.Second)
	for len(f.sessions.closedIDs()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("session was not closed after the client disconnected")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStream_OpenRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.sessions.openErr = errors.New("too many sessions")

	conn, ctx := dial(t, f)
	var ev session.Event
	err := wsjson.Read(ctx, conn, &ev)
	if got := websocket.CloseStatus(err); got != websocket.StatusTryAgainLater {
		t.Errorf("close status = %v (err %v), want StatusTryAgainLater", got, err)
	}
}
