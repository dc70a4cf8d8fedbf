package app

import (
	"net/http"
	"time"

	"slacklog/internal/config"
	"slacklog/internal/mail"
	"slacklog/internal/notify"
	"slacklog/internal/runtime/supervisor"
	"slacklog/internal/server"
	"slacklog/pkg/logx"
)

// ---- Config ----

type Config = config.Config

type ConfigManager = config.ConfigManager

var NewConfigManager = config.NewConfigManager

// ---- Runtime ----

type Supervisor = supervisor.Supervisor

var NewSupervisor = supervisor.New

// ---- Mapping: config -> components ----

func mapLogging(cfg *Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Notify: logx.NotifyConfig{
			Enabled:  cfg.Logging.Notify.Enabled,
			MinLevel: cfg.Logging.Notify.MinLevel,
		},
	}
}

func mapMail(cfg *Config) (mail.Config, error) {
	timeout, err := config.ParseDurationField("mail.timeout", cfg.Mail.Timeout)
	if err != nil {
		return mail.Config{}, err
	}
	m := cfg.Mail
	return mail.Config{
		Enabled:       m.Enabled,
		Host:          m.Host,
		Port:          m.Port,
		Username:      m.Username,
		Password:      m.Password,
		From:          m.From,
		Admins:        append([]string(nil), m.Admins...),
		SubjectPrefix: m.SubjectPrefix,
		Timeout:       timeout,
	}, nil
}

func mapSettings(cfg *Config) (notify.Settings, error) {
	timeout, err := config.ParseDurationField("slack.timeout", cfg.Slack.Timeout)
	if err != nil {
		return notify.Settings{}, err
	}
	s := cfg.Slack
	return notify.Settings{
		Token:       s.Token,
		Channel:     s.Channel,
		Username:    s.Username,
		IconURL:     s.IconURL,
		IconEmoji:   s.IconEmoji,
		Policy:      s.Params,
		InternalIPs: append([]string(nil), cfg.InternalIPs...),
		Endpoint:    s.Endpoint,
		Timeout:     timeout,
		IncludeHTML: cfg.Mail.IncludeHTML,
	}, nil
}

func mapServer(cfg *Config) (server.Config, error) {
	rt, err := config.ParseDurationField("server.read_timeout", cfg.Server.ReadTimeout)
	if err != nil {
		return server.Config{}, err
	}
	wt, err := config.ParseDurationField("server.write_timeout", cfg.Server.WriteTimeout)
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{Addr: cfg.Server.Addr, ReadTimeout: rt, WriteTimeout: wt}, nil
}

// mapAll checks every mapping so a reload is rejected before it is committed.
func mapAll(cfg *Config) error {
	if _, err := mapMail(cfg); err != nil {
		return err
	}
	if _, err := mapSettings(cfg); err != nil {
		return err
	}
	_, err := mapServer(cfg)
	return err
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
