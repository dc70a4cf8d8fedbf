package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. SLACKLOG_SLACK_TOKEN.
const EnvPrefix = "SLACKLOG_"

// envSetters lists the keys that may be overridden from the environment.
// Lists are comma separated.
var envSetters = map[string]func(c *Config, v string) error{
	"slack.token":      func(c *Config, v string) error { c.Slack.Token = v; return nil },
	"slack.channel":    func(c *Config, v string) error { c.Slack.Channel = v; return nil },
	"slack.username":   func(c *Config, v string) error { c.Slack.Username = v; return nil },
	"slack.icon_url":   func(c *Config, v string) error { c.Slack.IconURL = v; return nil },
	"slack.icon_emoji": func(c *Config, v string) error { c.Slack.IconEmoji = v; return nil },
	"slack.endpoint":   func(c *Config, v string) error { c.Slack.Endpoint = v; return nil },
	"slack.timeout":    func(c *Config, v string) error { c.Slack.Timeout = v; return nil },

	"internal_ips": func(c *Config, v string) error { c.InternalIPs = splitList(v); return nil },

	"mail.enabled":        func(c *Config, v string) error { return setBool(&c.Mail.Enabled, v) },
	"mail.host":           func(c *Config, v string) error { c.Mail.Host = v; return nil },
	"mail.port":           func(c *Config, v string) error { return setInt(&c.Mail.Port, v) },
	"mail.username":       func(c *Config, v string) error { c.Mail.Username = v; return nil },
	"mail.password":       func(c *Config, v string) error { c.Mail.Password = v; return nil },
	"mail.from":           func(c *Config, v string) error { c.Mail.From = v; return nil },
	"mail.admins":         func(c *Config, v string) error { c.Mail.Admins = splitList(v); return nil },
	"mail.subject_prefix": func(c *Config, v string) error { c.Mail.SubjectPrefix = v; return nil },
	"mail.include_html":   func(c *Config, v string) error { return setBool(&c.Mail.IncludeHTML, v) },

	"logging.level":            func(c *Config, v string) error { c.Logging.Level = v; return nil },
	"logging.notify.enabled":   func(c *Config, v string) error { return setBool(&c.Logging.Notify.Enabled, v) },
	"logging.notify.min_level": func(c *Config, v string) error { c.Logging.Notify.MinLevel = v; return nil },

	"server.addr": func(c *Config, v string) error { c.Server.Addr = v; return nil },
}

// envNames maps SLACKLOG_SLACK_ICON_URL style names to their dotted key.
var envNames = func() map[string]string {
	out := make(map[string]string, len(envSetters))
	for key := range envSetters {
		out[EnvName(key)] = key
	}
	return out
}()

// EnvName returns the environment variable that overrides a dotted key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// LoadDotEnv loads KEY=value pairs from the given files (default ".env").
// Missing files are ignored and variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("dotenv %s: %w", p, err)
		}
	}
	return nil
}

// applyEnv overlays SLACKLOG_* variables onto cfg.
func applyEnv(cfg *Config) error {
	k := koanf.New(".")
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		// Unknown names are dropped.
		return envNames[s]
	}), nil)
	if err != nil {
		return fmt.Errorf("env: %w", err)
	}
	for _, key := range k.Keys() {
		set, ok := envSetters[key]
		if !ok {
			continue
		}
		if err := set(cfg, k.String(key)); err != nil {
			return fmt.Errorf("env %s: %w", EnvName(key), err)
		}
	}
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
