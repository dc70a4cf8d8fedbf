// Package mail delivers "mail the admins" messages, the fallback channel for
// notifications that could not be posted to chat.
//
// Delivery is a single best-effort SMTP transaction. Callers decide whether
// errors matter; the notification dispatcher discards them.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	gomail "github.com/wneessen/go-mail"
)

var (
	ErrDisabled = errors.New("mail disabled")
	ErrNoAdmins = errors.New("mail: no admin recipients configured")
)

// Message is one admin mail. HTML is optional and sent as an alternative part.
type Message struct {
	Subject string
	Body    string
	HTML    string
}

// Mailer sends mail to the configured admins.
type Mailer interface {
	MailAdmins(ctx context.Context, m Message) error
}

// Config configures SMTP delivery.
type Config struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string

	From          string
	Admins        []string
	SubjectPrefix string

	// Timeout bounds the whole SMTP transaction; 0 means 10s.
	Timeout time.Duration
}

func (c Config) port() int {
	if c.Port <= 0 {
		return 25
	}
	return c.Port
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.port()))
}

type sendFunc func(ctx context.Context, cfg Config, msg *gomail.Msg) error

// SMTP is a Mailer backed by an SMTP relay. It is safe for concurrent use and
// can be reconfigured at runtime with Apply.
type SMTP struct {
	mu   sync.Mutex
	cfg  Config
	send sendFunc
	now  func() time.Time
}

func NewSMTP(cfg Config) *SMTP {
	return &SMTP{cfg: cfg, send: sendSMTP, now: time.Now}
}

// Apply swaps the configuration used by subsequent sends.
func (s *SMTP) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *SMTP) MailAdmins(ctx context.Context, m Message) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	cfg := s.cfg
	send := s.send
	now := s.now
	s.mu.Unlock()

	if !cfg.Enabled {
		return ErrDisabled
	}
	to := recipients(cfg.Admins)
	if len(to) == 0 {
		return ErrNoAdmins
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = "root@localhost"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := compose(cfg.SubjectPrefix+m.Subject, from, to, m, now())
	if err != nil {
		return err
	}
	if err := send(cctx, cfg, msg); err != nil {
		return fmt.Errorf("mail: send to %s: %w", cfg.addr(), err)
	}
	return nil
}

func recipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// compose builds a UTF-8 message with quoted-printable parts, so long
// request dumps stay within SMTP line limits.
func compose(subject, from string, to []string, m Message, now time.Time) (*gomail.Msg, error) {
	msg := gomail.NewMsg(gomail.WithCharset(gomail.CharsetUTF8), gomail.WithEncoding(gomail.EncodingQP))
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("mail: from %q: %w", from, err)
	}
	if err := msg.To(to...); err != nil {
		return nil, fmt.Errorf("mail: to: %w", err)
	}
	msg.Subject(subject)
	msg.SetDateWithValue(now)
	msg.SetMessageID()

	msg.SetBodyString(gomail.TypeTextPlain, m.Body)
	if m.HTML != "" {
		msg.AddAlternativeString(gomail.TypeTextHTML, m.HTML)
	}
	return msg, nil
}

func sendSMTP(ctx context.Context, cfg Config, msg *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(cfg.port()),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTLSConfig(tlsConfig(cfg.Host)),
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left > 0 {
			opts = append(opts, gomail.WithTimeout(left))
		}
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	c, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, msg)
}

func tlsConfig(host string) *tls.Config {
	return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
}
