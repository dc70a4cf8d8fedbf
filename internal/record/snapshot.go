package record

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Section identifies one of the four request sections a notification can show.
type Section int

const (
	Query Section = iota
	Form
	Cookies
	Meta
)

// Sections lists every section in notification order.
var Sections = [...]Section{Query, Form, Cookies, Meta}

// Key is the configuration/display name of the section.
func (s Section) Key() string {
	switch s {
	case Query:
		return "GET"
	case Form:
		return "POST"
	case Cookies:
		return "COOKIES"
	case Meta:
		return "META"
	default:
		return ""
	}
}

// ParseSection maps a key back to its Section. Matching is case-sensitive.
func ParseSection(key string) (Section, bool) {
	for _, s := range Sections {
		if s.Key() == key {
			return s, true
		}
	}
	return 0, false
}

// Values is an insertion-ordered multi-value map (query string, form body).
// The zero value is empty and ready to use.
type Values struct {
	m *orderedmap.OrderedMap[string, []string]
}

func (v *Values) Add(key, value string) {
	if v.m == nil {
		v.m = orderedmap.New[string, []string]()
	}
	cur, _ := v.m.Get(key)
	v.m.Set(key, append(cur, value))
}

// Get returns the last value for key.
func (v Values) Get(key string) (string, bool) {
	vs := v.List(key)
	if len(vs) == 0 {
		return "", false
	}
	return vs[len(vs)-1], true
}

func (v Values) List(key string) []string {
	if v.m == nil {
		return nil
	}
	vs, _ := v.m.Get(key)
	return vs
}

func (v Values) Len() int {
	if v.m == nil {
		return 0
	}
	return v.m.Len()
}

func (v Values) Keys() []string {
	if v.m == nil {
		return nil
	}
	out := make([]string, 0, v.m.Len())
	for p := v.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

func (v Values) String() string { return v.format(nil) }

func (v Values) format(mask func(string) bool) string {
	var b strings.Builder
	b.WriteString("{")
	if v.m != nil {
		i := 0
		for p := v.m.Oldest(); p != nil; p = p.Next() {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Key)
			b.WriteString(": ")
			if mask != nil && mask(p.Key) {
				b.WriteString(CleansedSubstitute)
			} else {
				fmt.Fprint(&b, p.Value)
			}
			i++
		}
	}
	b.WriteString("}")
	return b.String()
}

// Pairs is an insertion-ordered single-value map (cookies, metadata).
// Setting an existing key replaces its value and keeps its position.
type Pairs struct {
	m *orderedmap.OrderedMap[string, string]
}

func (p *Pairs) Set(key, value string) {
	if p.m == nil {
		p.m = orderedmap.New[string, string]()
	}
	p.m.Set(key, value)
}

func (p *Pairs) Delete(key string) {
	if p.m != nil {
		p.m.Delete(key)
	}
}

func (p Pairs) Get(key string) (string, bool) {
	if p.m == nil {
		return "", false
	}
	return p.m.Get(key)
}

func (p Pairs) Len() int {
	if p.m == nil {
		return 0
	}
	return p.m.Len()
}

func (p Pairs) Keys() []string {
	if p.m == nil {
		return nil
	}
	out := make([]string, 0, p.m.Len())
	for e := p.m.Oldest(); e != nil; e = e.Next() {
		out = append(out, e.Key)
	}
	return out
}

func (p Pairs) String() string { return p.format(nil) }

func (p Pairs) format(mask func(string) bool) string {
	var b strings.Builder
	b.WriteString("{")
	if p.m != nil {
		i := 0
		for e := p.m.Oldest(); e != nil; e = e.Next() {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.Key)
			b.WriteString(": ")
			if mask != nil && mask(e.Key) {
				b.WriteString(CleansedSubstitute)
			} else {
				b.WriteString(e.Value)
			}
			i++
		}
	}
	b.WriteString("}")
	return b.String()
}

// Snapshot is a read-only view of an inbound request at the time of an error.
type Snapshot struct {
	Method string
	Path   string

	Query   Values
	Form    Values
	Cookies Pairs
	Meta    Pairs

	// RemoteAddr is the client address as reported by the server,
	// either "ip" or "ip:port".
	RemoteAddr string
}

// Lookup returns a single field of a section. For multi-value sections the
// last value wins.
func (s *Snapshot) Lookup(sec Section, key string) (string, bool) {
	if s == nil {
		return "", false
	}
	switch sec {
	case Query:
		return s.Query.Get(key)
	case Form:
		return s.Form.Get(key)
	case Cookies:
		return s.Cookies.Get(key)
	case Meta:
		return s.Meta.Get(key)
	default:
		return "", false
	}
}

// Render returns the full string form of a section.
func (s *Snapshot) Render(sec Section) string {
	return s.render(sec, nil)
}

func (s *Snapshot) render(sec Section, mask func(string) bool) string {
	if s == nil {
		return "{}"
	}
	switch sec {
	case Query:
		return s.Query.format(mask)
	case Form:
		return s.Form.format(mask)
	case Cookies:
		return s.Cookies.format(mask)
	case Meta:
		return s.Meta.format(mask)
	default:
		return "{}"
	}
}
