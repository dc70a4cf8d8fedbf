package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"slacklog/internal/config"
	"slacklog/internal/eventbus"
	"slacklog/internal/mail"
	"slacklog/internal/notify"
	"slacklog/internal/record"
	"slacklog/internal/runtime/supervisor"
	"slacklog/internal/server"
	"slacklog/internal/slack"
	logx "slacklog/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *ConfigManager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	poster notify.Poster
	mailer mail.Mailer
	disp   *notify.Dispatcher

	router http.Handler
	srv    *server.Service
}

type Option func(*App)

// WithPoster replaces the Slack client.
func WithPoster(p notify.Poster) Option {
	return func(a *App) { a.poster = p }
}

// WithMailer replaces the SMTP mailer.
func WithMailer(m mail.Mailer) Option {
	return func(a *App) { a.mailer = m }
}

func NewApp(cfgPath string, opts ...Option) (*App, error) {
	// .env next to the config file, then in the working directory; existing
	// environment variables win.
	if err := config.LoadDotEnv(filepath.Join(filepath.Dir(cfgPath), ".env"), ".env"); err != nil {
		return nil, err
	}

	cfgm := NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := mapAll(cfg); err != nil {
		return nil, err
	}
	mcfg, _ := mapMail(cfg)
	scfg, _ := mapServer(cfg)

	logSvc, log := logx.New(mapLogging(cfg))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     eventbus.New(),
	}
	for _, o := range opts {
		if o != nil {
			o(a)
		}
	}
	if a.poster == nil {
		a.poster = slack.New(newHTTPClient())
	}
	if a.mailer == nil {
		a.mailer = mail.NewSMTP(mcfg)
	}

	a.disp = notify.New(a.poster, a.mailer,
		notify.WithBus(a.bus),
		notify.WithLogger(log.With(logx.String("comp", "notify"))),
		notify.WithSettings(a.settings),
	)
	logSvc.SetSink(a.disp)

	a.router = a.routes(log.With(logx.String("comp", "http")))
	a.srv = server.New(scfg, a.router, log.With(logx.String("comp", "server")))
	return a, nil
}

// settings resolves the notification settings from the committed config.
func (a *App) settings() notify.Settings {
	cfg := a.cfgm.Get()
	if cfg == nil {
		return notify.Settings{}
	}
	s, err := mapSettings(cfg)
	if err != nil {
		a.log.NoNotify().Warn("invalid slack settings", logx.Err(err))
	}
	return s
}

// Handler is the HTTP handler served by the app, with error reporting installed.
func (a *App) Handler() http.Handler { return a.router }

// Logger returns the app's root logger; ERROR records reach the notifier.
func (a *App) Logger() logx.Logger { return a.log }

// Addr returns the HTTP listen address once started.
func (a *App) Addr() string { return a.srv.Addr() }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// SendTest emits one synthetic ERROR notification and reports what happened.
func (a *App) SendTest(ctx context.Context) notify.Outcome {
	ev := record.Event{
		Time:    time.Now(),
		Level:   "ERROR",
		Message: "slacklog test notification",
		Exc:     record.Capture(errors.New("test notification from slacklog"), 0),
	}
	return a.disp.Emit(ctx, a.settings(), ev)
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *Config) error { return mapAll(cfg) })

	if err := a.srv.Start(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	// Delivery events are logged without notification so a failing Slack
	// cannot feed itself.
	events, unsub := a.bus.Subscribe(128)
	evLog := a.log.With(logx.String("comp", "events")).NoNotify()
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				logEvent(evLog, e)
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.String("config", a.cfgPath), logx.String("addr", a.srv.Addr()))
	return nil
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)

	a.logs.Apply(mapLogging(newCfg))

	if ap, ok := a.mailer.(interface{ Apply(mail.Config) }); ok {
		if mc, err := mapMail(newCfg); err != nil {
			a.log.Warn("invalid mail config; keeping previous", logx.Err(err))
		} else {
			ap.Apply(mc)
		}
	}

	if sc, err := mapServer(newCfg); err != nil {
		a.log.Warn("invalid server config; keeping previous", logx.Err(err))
	} else {
		rctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := a.srv.Reconfigure(rctx, sc); err != nil {
			a.log.Error("http server restart failed", logx.Exc(err))
		}
		cancel()
	}

	a.bus.Publish(eventbus.Event{Kind: eventbus.ConfigReloaded, Time: time.Now(), Data: sections})

	if len(sections) > 0 {
		fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
		a.log.Info("config reloaded", fields...)
	} else {
		a.log.Info("config reloaded (no changes)")
	}
}

func logEvent(log logx.Logger, e eventbus.Event) {
	d, _ := e.Data.(eventbus.Delivery)
	switch e.Kind {
	case eventbus.SlackFailed:
		log.Warn("slack delivery failed", logx.String("subject", d.Subject), logx.String("err", d.Err))
	case eventbus.MailFailed:
		log.Warn("fallback mail failed", logx.String("subject", d.Subject), logx.String("err", d.Err))
	case eventbus.SlackDelivered, eventbus.MailSent:
		log.Debug("notification delivered", logx.String("kind", string(e.Kind)), logx.String("subject", d.Subject))
	default:
		log.Debug("event", logx.String("kind", string(e.Kind)), logx.Time("time", e.Time))
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel first so background loops start unwinding immediately.
	a.sup.Cancel()

	a.step(ctx, "http", 3*time.Second, func(c context.Context) error { a.srv.Stop(c); return nil })
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs one shutdown step bounded by max and the caller's deadline.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}
