package record

import (
	"regexp"
	"strings"
)

// CleansedSubstitute replaces the value of a sensitive field.
const CleansedSubstitute = "********************"

// DefaultSensitive matches keys whose values must never leave the process.
var DefaultSensitive = regexp.MustCompile(`(?i)API|TOKEN|KEY|SECRET|PASS|SIGNATURE|HTTP_COOKIE`)

// Filter renders a Snapshot for humans, masking sensitive fields in every section.
type Filter struct {
	// Sensitive overrides DefaultSensitive when set.
	Sensitive *regexp.Regexp
}

// Repr returns a multi-line representation of the request:
//
//	<Request
//	path:/orders,
//	GET:{page: [2]},
//	POST:{},
//	COOKIES:{sessionid: 2441},
//	META:{SERVER_NAME: example.org}>
func (f Filter) Repr(s *Snapshot) string {
	re := f.Sensitive
	if re == nil {
		re = DefaultSensitive
	}
	mask := func(key string) bool { return re.MatchString(key) }

	var b strings.Builder
	b.WriteString("<Request\npath:")
	if s != nil {
		b.WriteString(s.Path)
	}
	for _, sec := range Sections {
		b.WriteString(",\n")
		b.WriteString(sec.Key())
		b.WriteString(":")
		b.WriteString(s.render(sec, mask))
	}
	b.WriteString(">")
	return b.String()
}
