// Package policy implements the field-selection policy that restricts which
// request sections and fields appear in a chat notification.
//
// In config it is a mapping from section key to either a bool or a nested
// mapping of field name to bool:
//
//	params:
//	  GET: true
//	  POST: false
//	  COOKIES: {sessionid: true}
//	  META: {SERVER_NAME: true, REMOTE_ADDR: true}
//
// Section keys are matched exactly. Other keys are accepted and ignored.
// Nested mappings keep their document order. Values must be real booleans:
// 1, "yes" or a quoted "true" are rejected when the config is loaded.
package policy

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"slacklog/internal/record"
)

// Rule is the policy for one section.
type Rule struct {
	all    bool
	fields *orderedmap.OrderedMap[string, bool]
}

// All selects a whole section.
func All() Rule { return Rule{all: true} }

// Fields selects individual fields of a section, in the given order.
func Fields(names ...string) Rule {
	m := orderedmap.New[string, bool]()
	for _, n := range names {
		m.Set(n, true)
	}
	return Rule{fields: m}
}

// Enabled reports whether the section is shown at all.
// An empty field mapping disables the section.
func (r Rule) Enabled() bool {
	return r.all || (r.fields != nil && r.fields.Len() > 0)
}

// PerField reports whether the rule selects individual fields.
func (r Rule) PerField() bool { return r.fields != nil }

// Selected returns the fields switched on, in mapping order.
func (r Rule) Selected() []string {
	if r.fields == nil {
		return nil
	}
	out := make([]string, 0, r.fields.Len())
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		if p.Value {
			out = append(out, p.Key)
		}
	}
	return out
}

func (r *Rule) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*r = Rule{}
		return nil
	case len(b) > 0 && b[0] == '{':
		m := orderedmap.New[string, bool]()
		if err := json.Unmarshal(b, m); err != nil {
			return err
		}
		*r = Rule{fields: m}
		return nil
	default:
		var on bool
		if err := json.Unmarshal(b, &on); err != nil {
			return fmt.Errorf("want bool or mapping, got %s", string(b))
		}
		*r = Rule{all: on}
		return nil
	}
}

func (r Rule) MarshalJSON() ([]byte, error) {
	if r.fields != nil {
		return json.Marshal(r.fields)
	}
	return json.Marshal(r.all)
}

// Policy is the full field-selection policy. A nil or empty Policy means
// "send the complete diagnostic dump".
type Policy struct {
	rules [len(record.Sections)]Rule
	// entries counts every top-level key seen, including unrecognised ones.
	entries int
}

// New builds a policy from explicit rules.
func New(rules map[record.Section]Rule) *Policy {
	p := &Policy{}
	for sec, r := range rules {
		p.Set(sec, r)
	}
	return p
}

// Set installs the rule for a section.
func (p *Policy) Set(sec record.Section, r Rule) {
	if int(sec) < 0 || int(sec) >= len(p.rules) {
		return
	}
	p.rules[sec] = r
	p.entries++
}

// Active reports whether the policy replaces the full dump.
func (p *Policy) Active() bool { return p != nil && p.entries > 0 }

// Rule returns the rule for a section (zero Rule when unset).
func (p *Policy) Rule(sec record.Section) Rule {
	if p == nil || int(sec) < 0 || int(sec) >= len(p.rules) {
		return Rule{}
	}
	return p.rules[sec]
}

func (p *Policy) UnmarshalJSON(b []byte) error {
	raw := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(b, raw); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	*p = Policy{}
	for e := raw.Oldest(); e != nil; e = e.Next() {
		p.entries++
		sec, ok := record.ParseSection(e.Key)
		if !ok {
			continue
		}
		var r Rule
		if err := json.Unmarshal(e.Value, &r); err != nil {
			return fmt.Errorf("params.%s: %w", e.Key, err)
		}
		p.rules[sec] = r
	}
	return nil
}

// MarshalJSON emits the recognised sections only.
func (p Policy) MarshalJSON() ([]byte, error) {
	out := orderedmap.New[string, Rule]()
	for _, sec := range record.Sections {
		r := p.rules[sec]
		if r.all || r.fields != nil {
			out.Set(sec.Key(), r)
		}
	}
	return json.Marshal(out)
}
