package logx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"slacklog/internal/record"
)

// ---- Config ----

type Config struct {
	Level   string
	Console bool
	File    FileConfig
	Notify  NotifyConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// NotifyConfig gates the notification sink.
type NotifyConfig struct {
	Enabled  bool
	MinLevel string // default ERROR
}

// ---- Logger API ----

type Level = zerolog.Level

const (
	LevelTrace = zerolog.TraceLevel
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel

	LevelError = zerolog.ErrorLevel
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Field mutates a zerolog event and the record handed to the notification sink.
//
// Use helpers like String(), Int(), Any(), Err(), Exc(), Request(), ...
//
// Note: Fields are applied in-order.
// If you set the same key multiple times, later fields win.
// e may be nil when the level is filtered for zerolog but the sink still wants
// the record; zerolog's Event methods are nil-safe.
type Field func(e *zerolog.Event, r *record.Event)

func String(k, v string) Field {
	return func(e *zerolog.Event, _ *record.Event) { e.Str(k, v) }
}
func Int(k string, v int) Field {
	return func(e *zerolog.Event, _ *record.Event) { e.Int(k, v) }
}
func Int64(k string, v int64) Field {
	return func(e *zerolog.Event, _ *record.Event) { e.Int64(k, v) }
}
func Bool(k string, v bool) Field {
	return func(e *zerolog.Event, _ *record.Event) { e.Bool(k, v) }
}
func Duration(k string, v time.Duration) Field {
	return func(e *zerolog.Event, _ *record.Event) { e.Dur(k, v) }
}
func Time(k string, v time.Time) Field {
	return func(e *zerolog.Event, _ *record.Event) { e.Time(k, v) }
}
func Any(k string, v any) Field {
	return func(e *zerolog.Event, _ *record.Event) { e.Interface(k, v) }
}

// Err attaches err to the log line and, without a stack, to the record.
func Err(err error) Field {
	return func(e *zerolog.Event, r *record.Event) {
		if err == nil {
			return
		}
		e.Err(err)
		if r.Exc == nil {
			r.Exc = record.FromError(err)
		}
	}
}

// Exc is Err plus the stack of the logging call site, the equivalent of
// logging an exception with its traceback.
func Exc(err error) Field {
	if err == nil {
		return nil
	}
	x := record.Capture(err, 1)
	return func(e *zerolog.Event, r *record.Event) {
		e.Err(err)
		r.Exc = x
	}
}

// Panic records a recovered panic value and the stack from debug.Stack().
func Panic(v any, stack []byte) Field {
	x := record.FromPanic(v, stack)
	return func(e *zerolog.Event, r *record.Event) {
		e.Str("panic", x.Value)
		if x.Stack != "" {
			e.Str("stack", x.Stack)
		}
		r.Exc = x
	}
}

// Request attaches the request snapshot to the record and a short summary to the line.
func Request(s *record.Snapshot) Field {
	return func(e *zerolog.Event, r *record.Event) {
		if s == nil {
			return
		}
		e.Str("method", s.Method).Str("path", s.Path).Str("remote_addr", s.RemoteAddr)
		r.Request = s
	}
}

// Status is a convenience for HTTP status codes.
func Status(code int) Field {
	return func(e *zerolog.Event, _ *record.Event) {
		e.Int("status", code).Str("status_text", http.StatusText(code))
	}
}

// Logger is a lightweight structured logger.
//
// - If created from Service, it stays "live" across Service.Apply() calls.
// - With() returns a derived logger with additional fixed fields.
// - Zero value is a safe no-op logger.
type Logger struct {
	svc     *Service
	base    zerolog.Logger
	hasBase bool
	// quiet loggers never reach the notification sink.
	quiet bool

	fields []Field
}

// Nop returns a logger that never writes anything.
func Nop() Logger {
	return Logger{base: zerolog.Nop(), hasBase: true}
}

// NewConsole creates a standalone console logger (no Service, no sink).
// Useful for bootstrapping components before the full log service is initialized.
func NewConsole(level string) Logger {
	zerolog.TimeFieldFormat = consoleTimeFormat
	zerolog.ErrorFieldName = "err"

	zl := zerolog.New(newConsoleWriter(Stdout())).Level(parseLevel(level, zerolog.InfoLevel)).With().Timestamp().Logger()
	return Logger{base: zl, hasBase: true}
}

func (l Logger) IsZero() bool { return l.svc == nil && !l.hasBase && len(l.fields) == 0 }

func (l Logger) root() zerolog.Logger {
	if l.svc != nil {
		return l.svc.current()
	}
	if l.hasBase {
		return l.base
	}
	return zerolog.Nop()
}

// Enabled reports whether the given level would be written.
func (l Logger) Enabled(level Level) bool {
	zl := l.root()
	return level >= zl.GetLevel()
}

func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	cp := l
	cp.fields = append(append([]Field(nil), l.fields...), fields...)
	return cp
}

// NoNotify returns a copy that writes to the normal sinks but never to the
// notification sink. The sink's own diagnostics must use it.
func (l Logger) NoNotify() Logger {
	cp := l
	cp.quiet = true
	return cp
}

func (l Logger) Trace(msg string, fields ...Field) { l.log(zerolog.TraceLevel, msg, fields...) }
func (l Logger) Debug(msg string, fields ...Field) { l.log(zerolog.DebugLevel, msg, fields...) }
func (l Logger) Info(msg string, fields ...Field)  { l.log(zerolog.InfoLevel, msg, fields...) }
func (l Logger) Warn(msg string, fields ...Field)  { l.log(zerolog.WarnLevel, msg, fields...) }
func (l Logger) Error(msg string, fields ...Field) { l.log(zerolog.ErrorLevel, msg, fields...) }

func (l Logger) log(level zerolog.Level, msg string, fields ...Field) {
	zl := l.root()
	e := zl.WithLevel(level)
	notify := l.svc != nil && !l.quiet && l.svc.wantsNotify(level)
	if e == nil && !notify {
		return
	}

	rec := record.Event{Time: time.Now(), Level: LevelName(level), Message: msg}

	// Caller: keep it short (file:line), avoid noisy function names and full paths.
	if caller := shortCaller(3); caller != "" {
		e.Str(zerolog.CallerFieldName, caller)
	}

	// Fixed fields from With().
	for _, f := range l.fields {
		if f != nil {
			f(e, &rec)
		}
	}
	// Call-site fields.
	for _, f := range fields {
		if f != nil {
			f(e, &rec)
		}
	}

	if e != nil {
		e.Msg(msg)
	}
	if notify {
		l.svc.notify(rec)
	}
}

// LevelName returns the upper-case name used in notification subjects.
func LevelName(level zerolog.Level) string {
	switch level {
	case zerolog.WarnLevel:
		return "WARNING"
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return "CRITICAL"
	default:
		return strings.ToUpper(level.String())
	}
}

func shortCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok || file == "" {
		return ""
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// ---- Service (dynamic config + sinks) ----

// Sink receives records at or above the notify min level, synchronously,
// in the logging goroutine.
type Sink interface {
	Handle(ctx context.Context, ev record.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev record.Event)

func (f SinkFunc) Handle(ctx context.Context, ev record.Event) { f(ctx, ev) }

type Service struct {
	mu  sync.Mutex
	cfg Config

	root atomic.Value // stores zerolog.Logger

	file *os.File

	// guarded by mu
	sink      Sink
	notifyOn  bool
	notifyMin zerolog.Level
}

// New creates the logging service, applies the initial config immediately,
// and returns both the Service and a root Logger.
func New(cfg Config) (*Service, Logger) {
	// Global zerolog knobs.
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = consoleTimeFormat

	s := &Service{cfg: cfg}

	// Safe bootstrap root.
	boot := newConsoleRoot(parseLevel(cfg.Level, zerolog.InfoLevel))
	s.root.Store(boot)

	s.Apply(cfg)

	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	v := s.root.Load()
	if v == nil {
		return zerolog.Nop()
	}
	zl, ok := v.(zerolog.Logger)
	if !ok {
		return zerolog.Nop()
	}
	return zl
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// SetSink installs the notification sink. A nil sink disables notifications.
func (s *Service) SetSink(sink Sink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

func (s *Service) wantsNotify(level zerolog.Level) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifyOn && s.sink != nil && level >= s.notifyMin
}

func (s *Service) notify(ev record.Event) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink == nil {
		return
	}
	// A broken sink must never take the caller down with it.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(Stderr(), "logx: notification sink panic: %v\n", r)
		}
	}()
	sink.Handle(context.Background(), ev)
}

func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	s.mu.Unlock()

	if f != nil {
		return f.Close()
	}
	return nil
}

// Apply swaps logger outputs/levels at runtime.
// It is safe to call concurrently.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	s.notifyOn = cfg.Notify.Enabled
	s.notifyMin = parseLevel(cfg.Notify.MinLevel, zerolog.ErrorLevel)

	// Close previous file (if any).
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	lvl := parseLevel(cfg.Level, zerolog.InfoLevel)

	writers := make([]io.Writer, 0, 2)
	if cfg.Console {
		writers = append(writers, newConsoleWriter(Stdout()))
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = "./slacklog.log"
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(Stderr(), "logx: failed opening log file %q: %v\n", path, err)
		} else {
			s.file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}

	if len(writers) == 0 {
		writers = append(writers, newConsoleWriter(Stdout()))
	}

	mw := zerolog.MultiLevelWriter(writers...)
	zl := zerolog.New(mw).Level(lvl).With().Timestamp().Logger()
	s.root.Store(zl)
}

func newConsoleRoot(lvl zerolog.Level) zerolog.Logger {
	cw := newConsoleWriter(Stdout())
	return zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
}

func newConsoleWriter(w io.Writer) io.Writer {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	// Keep caller short and stable.
	cw.FormatCaller = func(i interface{}) string {
		s, _ := i.(string)
		return s
	}
	return cw
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "CRITICAL", "FATAL":
		return zerolog.FatalLevel
	default:
		return def
	}
}

// ValidLevel reports whether s names a level this package understands.
func ValidLevel(s string) bool {
	return strings.TrimSpace(s) == "" || parseLevel(s, zerolog.NoLevel) != zerolog.NoLevel
}

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Stdout returns the configured stdout sink.
func Stdout() io.Writer { return stdout }

// Stderr returns the configured stderr sink.
func Stderr() io.Writer { return stderr }
