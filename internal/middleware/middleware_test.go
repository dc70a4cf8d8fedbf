package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"slacklog/internal/record"
	"slacklog/pkg/logx"
)

type sink struct {
	mu     sync.Mutex
	events []record.Event
}

func (s *sink) Handle(_ context.Context, ev record.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *sink) all() []record.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]record.Event(nil), s.events...)
}

// newLogger writes nothing (CRITICAL) but still feeds ERROR records to the sink.
func newLogger(t *testing.T) (logx.Logger, *sink) {
	t.Helper()
	svc, log := logx.New(logx.Config{Level: "CRITICAL", Notify: logx.NotifyConfig{Enabled: true}})
	t.Cleanup(func() { _ = svc.Close() })
	s := &sink{}
	svc.SetSink(s)
	return log, s
}

func newRouter(log logx.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(Reporter(log))
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("kaboom") })
	r.Post("/submit", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusBadGateway)
	})
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	return r
}

func TestReporterPanicLogsOnceAndReturns500(t *testing.T) {
	log, s := newLogger(t)
	h := newRouter(log)

	req := httptest.NewRequest(http.MethodGet, "/boom?b=2&a=1&b=3", nil)
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: "2441"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	evs := s.all()
	if len(evs) != 1 {
		t.Fatalf("events = %d, want 1", len(evs))
	}
	ev := evs[0]
	if ev.Level != "ERROR" || ev.Message != "Internal Server Error: /boom" {
		t.Fatalf("event = %q %q", ev.Level, ev.Message)
	}
	if ev.Exc == nil || ev.Exc.Value != "kaboom" || !strings.Contains(ev.Exc.Stack, "goroutine") {
		t.Fatalf("exc = %+v", ev.Exc)
	}
	snap := ev.Request
	if snap == nil {
		t.Fatalf("missing snapshot")
	}
	if got := snap.Query.String(); got != "{b: [2 3], a: [1]}" {
		t.Fatalf("query = %s", got)
	}
	if v, _ := snap.Lookup(record.Cookies, "sessionid"); v != "2441" {
		t.Fatalf("cookie = %q", v)
	}
	if v, _ := snap.Lookup(record.Meta, "SERVER_NAME"); v != "example.com" {
		t.Fatalf("SERVER_NAME = %q", v)
	}
	if v, _ := snap.Lookup(record.Meta, "REMOTE_ADDR"); v != "192.0.2.1" {
		t.Fatalf("REMOTE_ADDR = %q", v)
	}
}

func TestReporterServerErrorKeepsForm(t *testing.T) {
	log, s := newLogger(t)
	h := newRouter(log)

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader("z=last&a=first"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	evs := s.all()
	if rec.Code != http.StatusBadGateway || len(evs) != 1 {
		t.Fatalf("status = %d, events = %d", rec.Code, len(evs))
	}
	if evs[0].Message != "Bad Gateway: /submit" {
		t.Fatalf("message = %q", evs[0].Message)
	}
	if got := evs[0].Request.Form.String(); got != "{z: [last], a: [first]}" {
		t.Fatalf("form = %s", got)
	}
}

func TestReporterIgnoresSuccessAndClientErrors(t *testing.T) {
	log, s := newLogger(t)
	h := newRouter(log)

	for _, path := range []string{"/ok", "/missing"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}
	if n := len(s.all()); n != 0 {
		t.Fatalf("events = %d, want 0 (404 is only a warning)", n)
	}
}

func TestSnapshotMeta(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://api.example.org:8443/v1?x=1", nil)
	req.Header.Set("X-Request-Id", "abc")

	s := Snapshot(req)
	checks := map[string]string{
		"REQUEST_METHOD":    "GET",
		"PATH_INFO":         "/v1",
		"QUERY_STRING":      "x=1",
		"SERVER_NAME":       "api.example.org",
		"SERVER_PORT":       "8443",
		"HTTP_X_REQUEST_ID": "abc",
	}
	for k, want := range checks {
		if got, _ := s.Lookup(record.Meta, k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
	if Snapshot(nil) != nil {
		t.Fatalf("nil request should give nil snapshot")
	}
}
