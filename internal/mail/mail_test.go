package mail

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gomail "github.com/wneessen/go-mail"
)

type capture struct {
	from string
	to   []string
	msg  string
	err  error
}

func newTestSMTP(t *testing.T, cfg Config, c *capture) *SMTP {
	t.Helper()
	s := NewSMTP(cfg)
	s.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	s.send = func(_ context.Context, _ Config, msg *gomail.Msg) error {
		from, err := msg.GetSender(false)
		if err != nil {
			t.Fatalf("sender: %v", err)
		}
		to, err := msg.GetRecipients()
		if err != nil {
			t.Fatalf("recipients: %v", err)
		}
		var buf bytes.Buffer
		if _, err := msg.WriteTo(&buf); err != nil {
			t.Fatalf("render: %v", err)
		}
		c.from, c.to, c.msg = from, to, buf.String()
		return c.err
	}
	return s
}

func TestMailAdminsPlainText(t *testing.T) {
	var c capture
	s := newTestSMTP(t, Config{
		Enabled:       true,
		Host:          "smtp.example.org",
		From:          "errors@example.org",
		Admins:        []string{"ops@example.org", " ", "dev@example.org"},
		SubjectPrefix: "[slacklog] ",
	}, &c)

	err := s.MailAdmins(context.Background(), Message{Subject: "ERROR: boom", Body: "trace\n\nrequest"})
	if err != nil {
		t.Fatalf("MailAdmins: %v", err)
	}
	if c.from != "errors@example.org" {
		t.Fatalf("from = %q", c.from)
	}
	if strings.Join(c.to, ",") != "ops@example.org,dev@example.org" {
		t.Fatalf("to = %v", c.to)
	}
	if !strings.Contains(c.msg, "Subject: [slacklog] ERROR: boom\r\n") {
		t.Fatalf("missing subject header:\n%s", c.msg)
	}
	lower := strings.ToLower(c.msg)
	if !strings.Contains(lower, "content-type: text/plain") || strings.Contains(lower, "multipart/alternative") {
		t.Fatalf("expected plain text message:\n%s", c.msg)
	}
	if !strings.Contains(c.msg, "trace") || !strings.Contains(c.msg, "request") {
		t.Fatalf("body missing:\n%s", c.msg)
	}
}

func TestMailAdminsWithHTMLAlternative(t *testing.T) {
	var c capture
	s := newTestSMTP(t, Config{Enabled: true, Admins: []string{"ops@example.org"}}, &c)

	if err := s.MailAdmins(context.Background(), Message{Subject: "s", Body: "plain", HTML: "<p>rich</p>"}); err != nil {
		t.Fatalf("MailAdmins: %v", err)
	}
	if !strings.Contains(strings.ToLower(c.msg), "multipart/alternative") {
		t.Fatalf("expected multipart message:\n%s", c.msg)
	}
	if !strings.Contains(c.msg, "plain") || !strings.Contains(c.msg, "<p>rich</p>") {
		t.Fatalf("missing parts:\n%s", c.msg)
	}
	if c.from != "root@localhost" {
		t.Fatalf("default from = %q", c.from)
	}
}

// A request dump puts whole sections on one line; the rendered mail must still
// respect the 998-byte SMTP line limit.
func TestMailAdminsKeepsLinesShort(t *testing.T) {
	var c capture
	s := newTestSMTP(t, Config{Enabled: true, Admins: []string{"ops@example.org"}}, &c)

	subject := "ERROR (EXTERNAL IP): " + strings.Repeat("é", 490)
	meta := "META: {" + strings.Repeat("'HTTP_X_SOMETHING_LONG': 'value value value', ", 60) + "}"
	body := "Traceback\n\n<Request GET '/'>\n" + meta
	if err := s.MailAdmins(context.Background(), Message{Subject: subject, Body: body, HTML: "<pre>" + meta + "</pre>"}); err != nil {
		t.Fatalf("MailAdmins: %v", err)
	}

	for i, line := range strings.Split(c.msg, "\r\n") {
		if len(line) > 998 {
			t.Fatalf("line %d is %d bytes", i, len(line))
		}
	}
	if !strings.Contains(strings.ToLower(c.msg), "content-transfer-encoding: quoted-printable") {
		t.Fatalf("long body not quoted-printable:\n%s", c.msg)
	}
	if strings.Contains(strings.ToLower(c.msg), "content-transfer-encoding: 8bit") {
		t.Fatalf("8bit part found:\n%s", c.msg)
	}
}

func TestMailAdminsDisabledAndNoAdmins(t *testing.T) {
	var c capture
	s := newTestSMTP(t, Config{}, &c)
	if err := s.MailAdmins(context.Background(), Message{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}

	s.Apply(Config{Enabled: true})
	if err := s.MailAdmins(context.Background(), Message{}); !errors.Is(err, ErrNoAdmins) {
		t.Fatalf("err = %v, want ErrNoAdmins", err)
	}
	if c.msg != "" {
		t.Fatalf("nothing should have been sent")
	}
}

func TestMailAdminsWrapsSendError(t *testing.T) {
	c := capture{err: errors.New("connection refused")}
	s := newTestSMTP(t, Config{Enabled: true, Host: "smtp.example.org", Port: 2525, Admins: []string{"a@b.c"}}, &c)

	err := s.MailAdmins(context.Background(), Message{Subject: "s"})
	if err == nil || !strings.Contains(err.Error(), "smtp.example.org:2525") {
		t.Fatalf("err = %v", err)
	}
}

func TestMailAdminsRejectsBadAddress(t *testing.T) {
	var c capture
	s := newTestSMTP(t, Config{Enabled: true, From: "not an address", Admins: []string{"ops@example.org"}}, &c)
	if err := s.MailAdmins(context.Background(), Message{Subject: "s"}); err == nil {
		t.Fatalf("expected from-address error")
	}
	if c.msg != "" {
		t.Fatalf("nothing should have been sent")
	}
}

func TestOutboxRecords(t *testing.T) {
	o := &Outbox{Err: errors.New("full")}
	if err := o.MailAdmins(context.Background(), Message{Subject: "a"}); err == nil {
		t.Fatalf("expected configured error")
	}
	if o.Len() != 1 || o.Messages()[0].Subject != "a" {
		t.Fatalf("outbox = %+v", o.Messages())
	}
}
