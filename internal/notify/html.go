package notify

import (
	"bytes"
	"html/template"
	"time"

	"slacklog/internal/record"
)

var mailTemplate = template.Must(template.New("mail").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body>
<h1>{{.Level}}: {{.Message}}</h1>
<p>{{.Time}}</p>
<h2>Traceback</h2>
<pre>{{.Trace}}</pre>
<h2>Request</h2>
<pre>{{.Repr}}</pre>
</body>
</html>
`))

type mailView struct {
	Subject string
	Level   string
	Message string
	Time    string
	Trace   string
	Repr    string
}

// HTMLBody renders the admin mail's HTML alternative from the same pieces as
// the plain-text body.
func HTMLBody(ev record.Event, subject, trace, repr string) (string, error) {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var buf bytes.Buffer
	err := mailTemplate.Execute(&buf, mailView{
		Subject: subject,
		Level:   ev.Level,
		Message: ev.Message,
		Time:    ts.UTC().Format(time.RFC3339),
		Trace:   trace,
		Repr:    repr,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
