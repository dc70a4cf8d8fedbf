package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"slacklog/internal/eventbus"
	"slacklog/internal/mail"
	"slacklog/internal/policy"
	"slacklog/internal/record"
	"slacklog/internal/slack"
	"slacklog/pkg/logx"
)

const (
	DefaultChannel  = "#general"
	DefaultUsername = "django"
)

// Settings is everything a single notification needs from configuration.
// It is resolved per event so config reloads apply immediately.
type Settings struct {
	Token     string
	Channel   string
	Username  string
	IconURL   string
	IconEmoji string

	// Policy selects request sections for the chat text; nil means full dump.
	Policy *policy.Policy
	// InternalIPs holds exact addresses or CIDR prefixes.
	InternalIPs []string

	Endpoint string
	// Timeout bounds the Slack round-trip; 0 leaves it to the HTTP client.
	Timeout time.Duration

	IncludeHTML bool
}

func (s Settings) withDefaults() Settings {
	if strings.TrimSpace(s.Channel) == "" {
		s.Channel = DefaultChannel
	}
	if strings.TrimSpace(s.Username) == "" {
		s.Username = DefaultUsername
	}
	if strings.TrimSpace(s.Endpoint) == "" {
		s.Endpoint = slack.DefaultEndpoint
	}
	return s
}

// Poster delivers a chat message. *slack.Client implements it.
type Poster interface {
	PostMessage(ctx context.Context, endpoint string, m slack.Message) (*slack.Response, error)
}

// Outcome reports what one Emit call did.
type Outcome struct {
	Subject string
	Text    string

	Delivered bool
	FellBack  bool

	PostErr error
	MailErr error
}

type Option func(*Dispatcher)

// WithReporter replaces the default record.Filter request representation.
func WithReporter(r RequestReporter) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.reporter = r
		}
	}
}

// WithBus publishes delivery outcomes on b.
func WithBus(b eventbus.Bus) Option {
	return func(d *Dispatcher) { d.bus = b }
}

// WithLogger sets the logger for the dispatcher's own diagnostics. It is
// always used with NoNotify so failures cannot loop back into the dispatcher.
func WithLogger(l logx.Logger) Option {
	return func(d *Dispatcher) { d.log = l.NoNotify() }
}

// WithSettings sets the resolver Handle uses for each event.
func WithSettings(fn func() Settings) Option {
	return func(d *Dispatcher) { d.settings = fn }
}

// Dispatcher formats events and delivers them to Slack, falling back to mail.
type Dispatcher struct {
	poster   Poster
	mailer   mail.Mailer
	reporter RequestReporter
	bus      eventbus.Bus
	log      logx.Logger
	settings func() Settings
}

func New(poster Poster, mailer mail.Mailer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		poster:   poster,
		mailer:   mailer,
		reporter: record.Filter{},
		log:      logx.Nop(),
	}
	for _, o := range opts {
		if o != nil {
			o(d)
		}
	}
	return d
}

// Handle implements logx.Sink.
func (d *Dispatcher) Handle(ctx context.Context, ev record.Event) {
	var s Settings
	if d.settings != nil {
		s = d.settings()
	}
	d.Emit(ctx, s, ev)
}

// Emit formats ev and delivers it: one Slack post and, if that fails, one mail.
// It never panics.
func (d *Dispatcher) Emit(ctx context.Context, s Settings, ev record.Event) (out Outcome) {
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.Debug("notification aborted", logx.Any("panic", r))
		}
	}()

	s = s.withDefaults()

	subject := Subject(ev, s.InternalIPs)
	trace := Trace(ev)
	repr := Repr(d.reporter, ev.Request)
	full := FullMessage(trace, repr)
	text := WebhookText(subject, trace, full, s.Policy, ev.Request)
	out.Subject, out.Text = subject, text

	msg := slack.Message{
		Token:     s.Token,
		Channel:   s.Channel,
		Username:  s.Username,
		IconURL:   s.IconURL,
		IconEmoji: s.IconEmoji,
		Text:      text,
	}
	resp, err := d.post(ctx, s, msg)
	if err == nil {
		out.Delivered = true
		ts := ""
		if resp != nil {
			ts = resp.Ts
		}
		d.publish(eventbus.SlackDelivered, eventbus.Delivery{Level: ev.Level, Subject: subject, Channel: s.Channel, Ts: ts})
		return out
	}
	out.PostErr = err
	d.log.Debug("slack delivery failed, falling back to mail", logx.String("channel", s.Channel), logx.Err(err))
	d.publish(eventbus.SlackFailed, eventbus.Delivery{Level: ev.Level, Subject: subject, Channel: s.Channel, Err: err.Error()})

	out.FellBack = true
	m := mail.Message{Subject: subject, Body: full}
	if s.IncludeHTML {
		if h, herr := HTMLBody(ev, subject, trace, repr); herr == nil {
			m.HTML = h
		} else {
			d.log.Debug("html mail body failed", logx.Err(herr))
		}
	}
	out.MailErr = d.mailAdmins(ctx, m)
	if out.MailErr != nil {
		d.log.Debug("fallback mail failed", logx.Err(out.MailErr))
		d.publish(eventbus.MailFailed, eventbus.Delivery{Level: ev.Level, Subject: subject, Err: out.MailErr.Error()})
	} else {
		d.publish(eventbus.MailSent, eventbus.Delivery{Level: ev.Level, Subject: subject})
	}
	return out
}

var errNoPoster = errors.New("notify: no slack poster configured")

func (d *Dispatcher) post(ctx context.Context, s Settings, m slack.Message) (resp *slack.Response, err error) {
	if d.poster == nil {
		return nil, errNoPoster
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("notify: slack poster panic: %v", r)
		}
	}()
	return d.poster.PostMessage(ctx, s.Endpoint, m)
}

func (d *Dispatcher) mailAdmins(ctx context.Context, m mail.Message) (err error) {
	if d.mailer == nil {
		return mail.ErrDisabled
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notify: mailer panic: %v", r)
		}
	}()
	return d.mailer.MailAdmins(ctx, m)
}

func (d *Dispatcher) publish(kind eventbus.Kind, data eventbus.Delivery) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(eventbus.Event{Kind: kind, Data: data})
}
