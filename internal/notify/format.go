// Package notify turns error-log records into chat notifications.
//
// A Dispatcher formats a record.Event into a subject line and a fenced text
// block, posts it to Slack and, when Slack is unreachable or refuses the
// message, mails the full diagnostic dump to the admins instead. It is wired as
// a logx.Sink and never panics or returns errors to the logging call site.
package notify

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
	"unicode/utf8"

	"slacklog/internal/policy"
	"slacklog/internal/record"
)

const (
	noStackTrace   = "No stack trace available"
	noRequestRepr  = "Request repr() unavailable."
	codeFence      = "```"
	maxSubjectRunes = 989
)

// RequestReporter renders a request snapshot for humans.
// record.Filter is the default implementation.
type RequestReporter interface {
	Repr(s *record.Snapshot) string
}

// Subject builds "<LEVEL> (internal|EXTERNAL IP): <message>", or
// "<LEVEL>: <message>" when there is no request to inspect.
func Subject(ev record.Event, internalIPs []string) (subject string) {
	plain := ev.Level + ": " + ev.Message
	if ev.Request == nil {
		return sanitizeSubject(plain)
	}
	defer func() {
		if recover() != nil {
			subject = sanitizeSubject(plain)
		}
	}()
	origin := "EXTERNAL"
	if isInternal(ev.Request.RemoteAddr, internalIPs) {
		origin = "internal"
	}
	return sanitizeSubject(fmt.Sprintf("%s (%s IP): %s", ev.Level, origin, ev.Message))
}

// sanitizeSubject escapes line breaks (a header must stay on one line) and
// caps the length in characters.
func sanitizeSubject(s string) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	if utf8.RuneCountInString(s) <= maxSubjectRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxSubjectRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// isInternal reports whether addr ("ip" or "ip:port") matches one of the
// trusted entries, each an exact address or a CIDR prefix.
func isInternal(addr string, trusted []string) bool {
	ip, ok := parseAddr(addr)
	if !ok {
		return false
	}
	for _, t := range trusted {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if strings.Contains(t, "/") {
			if p, err := netip.ParsePrefix(t); err == nil && p.Contains(ip) {
				return true
			}
			continue
		}
		if other, err := netip.ParseAddr(t); err == nil && other.Unmap() == ip {
			return true
		}
	}
	return false
}

func parseAddr(addr string) (netip.Addr, bool) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return netip.Addr{}, false
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

// Trace renders the exception info, or a placeholder when there is none.
func Trace(ev record.Event) string {
	if ev.Exc == nil {
		return noStackTrace
	}
	return ev.Exc.Format()
}

// Repr renders the request through rep, degrading to a placeholder when there
// is no request or the reporter fails.
func Repr(rep RequestReporter, s *record.Snapshot) (out string) {
	if s == nil || rep == nil {
		return noRequestRepr
	}
	defer func() {
		if recover() != nil {
			out = noRequestRepr
		}
	}()
	return rep.Repr(s)
}

// FullMessage is the complete diagnostic dump: trace, blank line, request.
func FullMessage(trace, repr string) string {
	return trace + "\n\n" + repr
}

// WebhookText builds the fenced chat text. Without an active policy it is the
// subject followed by the full dump; with one, the trace is followed by the
// selected request sections in GET, POST, COOKIES, META order.
func WebhookText(subject, trace, full string, p *policy.Policy, s *record.Snapshot) string {
	var b strings.Builder
	b.WriteString(subject)
	b.WriteString("\n")
	if !p.Active() {
		b.WriteString(full)
		return fence(b.String())
	}

	b.WriteString(trace)
	b.WriteString("\n")
	if s == nil {
		return fence(b.String())
	}
	for _, sec := range record.Sections {
		rule := p.Rule(sec)
		if !rule.Enabled() {
			continue
		}
		b.WriteString(sec.Key())
		b.WriteString(": ")
		if !rule.PerField() {
			b.WriteString(s.Render(sec))
			b.WriteString("\n")
			continue
		}
		b.WriteString("{")
		for _, name := range rule.Selected() {
			v, ok := s.Lookup(sec, name)
			if !ok {
				continue
			}
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString(",\n")
		}
		b.WriteString("}\n")
	}
	return fence(b.String())
}

func fence(s string) string {
	return codeFence + s + codeFence
}
