package record

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Event is a single log record as seen by notification sinks.
type Event struct {
	Time    time.Time
	Level   string // upper-case level name, e.g. "ERROR"
	Message string

	Exc     *ExcInfo
	Request *Snapshot
}

// Frame is one call site of a captured stack.
type Frame struct {
	Function string
	File     string
	Line     int
}

// ExcInfo describes the error attached to an Event.
//
// Frames is filled when the stack was captured at the logging call site.
// Stack holds a raw runtime stack (recovered panics) when frames are not
// available.
type ExcInfo struct {
	Type   string
	Value  string
	Frames []Frame
	Stack  string
}

const maxFrames = 32

// FromError describes err without a stack.
func FromError(err error) *ExcInfo {
	if err == nil {
		return nil
	}
	return &ExcInfo{Type: fmt.Sprintf("%T", err), Value: err.Error()}
}

// Capture describes err and records the stack of the caller of Capture.
// skip drops that many additional frames above it.
func Capture(err error, skip int) *ExcInfo {
	x := FromError(err)
	if x == nil {
		return nil
	}
	// 0 runtime.Callers, 1 callers, 2 Capture, 3 its caller.
	x.Frames = callers(3+skip, maxFrames)
	return x
}

// FromPanic describes a recovered panic value and its raw stack.
func FromPanic(v any, stack []byte) *ExcInfo {
	x := &ExcInfo{Type: "panic", Stack: strings.TrimSpace(string(stack))}
	switch p := v.(type) {
	case error:
		x.Type = fmt.Sprintf("panic(%T)", p)
		x.Value = p.Error()
	case string:
		x.Value = p
	default:
		x.Value = fmt.Sprint(p)
	}
	return x
}

// Format renders the error header followed by its frames, most recent first.
func (x *ExcInfo) Format() string {
	if x == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(x.Type)
	b.WriteString(": ")
	b.WriteString(x.Value)
	switch {
	case len(x.Frames) > 0:
		for _, fr := range x.Frames {
			b.WriteString("\n")
			b.WriteString(fr.Function)
			b.WriteString("\n  ")
			b.WriteString(fr.File)
			b.WriteString(":")
			b.WriteString(strconv.Itoa(fr.Line))
		}
	case x.Stack != "":
		b.WriteString("\n")
		b.WriteString(x.Stack)
	}
	return b.String()
}

func callers(skip, max int) []Frame {
	pcs := make([]uintptr, max)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)
	for {
		fr, more := frames.Next()
		if fr.File != "" {
			out = append(out, Frame{Function: fr.Function, File: fr.File, Line: fr.Line})
		}
		if !more || len(out) >= max {
			break
		}
	}
	return out
}
