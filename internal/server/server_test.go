package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"slacklog/pkg/logx"
)

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func TestStartReconfigureStop(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "ok") })
	s := New(Config{Addr: "127.0.0.1:0"}, h, logx.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("second Start should be a no-op: %v", err)
	}
	first := s.Addr()
	if got := get(t, "http://"+first); got != "ok" {
		t.Fatalf("body = %q", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Same config: listener untouched.
	if err := s.Reconfigure(ctx, Config{Addr: "127.0.0.1:0"}); err != nil || s.Addr() != first {
		t.Fatalf("unexpected restart: addr %s -> %s, err %v", first, s.Addr(), err)
	}
	// Timeout change forces a restart on a fresh port.
	if err := s.Reconfigure(ctx, Config{Addr: "127.0.0.1:0", ReadTimeout: time.Second}); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if got := get(t, "http://"+s.Addr()); got != "ok" {
		t.Fatalf("body after restart = %q", got)
	}

	s.Stop(ctx)
	if s.Addr() != "" {
		t.Fatalf("Addr should be empty after Stop")
	}
	s.Stop(ctx)
}

func TestIsLoopbackAddr(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:8080": true,
		"localhost:80":   true,
		"[::1]:8080":     true,
		":8080":          false,
		"0.0.0.0:8080":   false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackAddr(addr); got != want {
			t.Errorf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
