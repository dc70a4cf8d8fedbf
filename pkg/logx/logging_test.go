package logx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"slacklog/internal/record"
)

type recordingSink struct {
	events []record.Event
}

func (s *recordingSink) Handle(_ context.Context, ev record.Event) {
	s.events = append(s.events, ev)
}

func newTestService(t *testing.T, cfg Config) (*Service, Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	svc, log := New(cfg)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, log, &buf
}

func TestSinkReceivesErrorsOnly(t *testing.T) {
	svc, log, _ := newTestService(t, Config{Level: "debug", Notify: NotifyConfig{Enabled: true}})
	sink := &recordingSink{}
	svc.SetSink(sink)

	log.Info("hello")
	log.Warn("careful")
	log.Error("Test 500", Err(errors.New("boom")))

	if len(sink.events) != 1 {
		t.Fatalf("sink got %d events, want 1", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Level != "ERROR" || ev.Message != "Test 500" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Exc == nil || ev.Exc.Value != "boom" {
		t.Fatalf("exception not recorded: %+v", ev.Exc)
	}
}

func TestSinkMinLevelAndDisable(t *testing.T) {
	svc, log, _ := newTestService(t, Config{Notify: NotifyConfig{Enabled: true, MinLevel: "warning"}})
	sink := &recordingSink{}
	svc.SetSink(sink)

	log.Warn("careful")
	if len(sink.events) != 1 || sink.events[0].Level != "WARNING" {
		t.Fatalf("events = %+v", sink.events)
	}

	svc.Apply(Config{Notify: NotifyConfig{Enabled: false}})
	log.Error("ignored")
	if len(sink.events) != 1 {
		t.Fatalf("disabled sink still received events")
	}
}

func TestSinkFiresBelowWriterLevel(t *testing.T) {
	svc, log, buf := newTestService(t, Config{Level: "CRITICAL", Notify: NotifyConfig{Enabled: true}})
	sink := &recordingSink{}
	svc.SetSink(sink)

	log.Error("only for the sink")
	if buf.Len() != 0 {
		t.Fatalf("writer should have filtered the line, got %q", buf.String())
	}
	if len(sink.events) != 1 {
		t.Fatalf("sink got %d events, want 1", len(sink.events))
	}
}

func TestNoNotifyAndWith(t *testing.T) {
	svc, log, buf := newTestService(t, Config{Notify: NotifyConfig{Enabled: true}})
	sink := &recordingSink{}
	svc.SetSink(sink)

	log.NoNotify().Error("quiet")
	if len(sink.events) != 0 {
		t.Fatalf("NoNotify logger reached the sink")
	}
	if !strings.Contains(buf.String(), "quiet") {
		t.Fatalf("NoNotify must still write: %q", buf.String())
	}

	snap := &record.Snapshot{Method: "GET", Path: "/boom"}
	log.With(String("component", "http"), Request(snap)).Error("with request")
	if len(sink.events) != 1 || sink.events[0].Request != snap {
		t.Fatalf("request not attached: %+v", sink.events)
	}
	if !strings.Contains(buf.String(), "component") || !strings.Contains(buf.String(), "http") {
		t.Fatalf("With field missing from output: %q", buf.String())
	}
}

func TestExcCapturesCallSite(t *testing.T) {
	svc, log, _ := newTestService(t, Config{Notify: NotifyConfig{Enabled: true}})
	sink := &recordingSink{}
	svc.SetSink(sink)

	log.Error("failed", Exc(errors.New("disk full")))
	if len(sink.events) != 1 {
		t.Fatalf("no event")
	}
	x := sink.events[0].Exc
	if x == nil || len(x.Frames) == 0 {
		t.Fatalf("expected frames, got %+v", x)
	}
	if !strings.Contains(x.Frames[0].Function, "TestExcCapturesCallSite") {
		t.Fatalf("first frame = %+v", x.Frames[0])
	}
}

func TestSinkPanicIsContained(t *testing.T) {
	prev := stderr
	stderr = io.Discard
	t.Cleanup(func() { stderr = prev })

	svc, log, _ := newTestService(t, Config{Notify: NotifyConfig{Enabled: true}})
	svc.SetSink(SinkFunc(func(context.Context, record.Event) { panic("sink exploded") }))

	log.Error("still fine")
}

func TestLevelNames(t *testing.T) {
	cases := map[zerolog.Level]string{
		zerolog.DebugLevel: "DEBUG",
		zerolog.InfoLevel:  "INFO",
		zerolog.WarnLevel:  "WARNING",
		zerolog.ErrorLevel: "ERROR",
		zerolog.FatalLevel: "CRITICAL",
	}
	for lvl, want := range cases {
		if got := LevelName(lvl); got != want {
			t.Errorf("LevelName(%v) = %q, want %q", lvl, got, want)
		}
	}
	if !ValidLevel("warning") || !ValidLevel("") || ValidLevel("loud") {
		t.Fatalf("ValidLevel misclassified input")
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatalf("zero logger should report IsZero")
	}
	l.Error("nothing happens", Err(errors.New("x")))
}
