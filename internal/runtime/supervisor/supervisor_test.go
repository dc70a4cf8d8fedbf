package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

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

func TestPanicIsReportedAndCancels(t *testing.T) {
	svc, log := logx.New(logx.Config{Level: "CRITICAL", Notify: logx.NotifyConfig{Enabled: true}})
	defer svc.Close()
	rec := &sink{}
	svc.SetSink(rec)

	s := New(context.Background(), WithLogger(log), WithCancelOnError(true))
	s.Go0("worker", func(context.Context) { panic("worker exploded") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err == nil {
		t.Fatalf("expected panic error")
	}
	if s.Context().Err() == nil {
		t.Fatalf("context should be canceled after a panic")
	}
	if c := s.Counters(); c.Panics != 1 || c.Active != 0 || c.Started != 1 {
		t.Fatalf("counters = %+v", c)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 1 || rec.events[0].Exc == nil || rec.events[0].Exc.Value != "worker exploded" {
		t.Fatalf("events = %+v", rec.events)
	}
}

func TestStopWaitsForGoroutines(t *testing.T) {
	s := New(context.Background())
	stopped := make(chan struct{})
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-stopped:
	default:
		t.Fatalf("goroutine did not observe cancellation")
	}
}

func TestFirstErrorKept(t *testing.T) {
	s := New(context.Background())
	boom := errors.New("boom")
	s.Go("a", func(context.Context) error { return boom })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if s.Context().Err() != nil {
		t.Fatalf("context must stay alive without WithCancelOnError")
	}
}
