package config

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"

	"slacklog/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured fields describing the new values. Secrets (slack token, mail
// password) only ever appear as "*_set" booleans.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	o, n := oldCfg.Slack, newCfg.Slack
	if o.Token != n.Token ||
		o.Channel != n.Channel ||
		o.Username != n.Username ||
		o.IconURL != n.IconURL ||
		o.IconEmoji != n.IconEmoji ||
		o.Endpoint != n.Endpoint ||
		strings.TrimSpace(o.Timeout) != strings.TrimSpace(n.Timeout) ||
		!samePolicy(o, n) {
		changed = append(changed, "slack")
		attrs = append(attrs,
			logx.Bool("slack.token_set", strings.TrimSpace(n.Token) != ""),
			logx.Bool("slack.token_changed", o.Token != n.Token),
			logx.String("slack.channel", n.Channel),
			logx.Bool("slack.params_active", n.Params.Active()),
			logx.String("slack.timeout", strings.TrimSpace(n.Timeout)),
		)
	}

	if !slices.Equal(oldCfg.InternalIPs, newCfg.InternalIPs) {
		changed = append(changed, "internal_ips")
		attrs = append(attrs, logx.Int("internal_ips.count", len(newCfg.InternalIPs)))
	}

	om, nm := oldCfg.Mail, newCfg.Mail
	if om.Enabled != nm.Enabled ||
		om.Host != nm.Host ||
		om.Port != nm.Port ||
		om.Username != nm.Username ||
		om.Password != nm.Password ||
		om.From != nm.From ||
		!slices.Equal(om.Admins, nm.Admins) ||
		om.SubjectPrefix != nm.SubjectPrefix ||
		om.IncludeHTML != nm.IncludeHTML ||
		om.Timeout != nm.Timeout {
		changed = append(changed, "mail")
		attrs = append(attrs,
			logx.Bool("mail.enabled", nm.Enabled),
			logx.String("mail.host", nm.Host),
			logx.Int("mail.admin_count", len(nm.Admins)),
			logx.Bool("mail.password_set", nm.Password != ""),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.notify_enabled", newCfg.Logging.Notify.Enabled),
			logx.String("logging.notify_min_level", newCfg.Logging.Notify.MinLevel),
		)
	}

	if oldCfg.Server != newCfg.Server {
		changed = append(changed, "server")
		attrs = append(attrs,
			logx.String("server.addr", newCfg.Server.Addr),
			logx.Bool("server.debug_routes", newCfg.Server.DebugRoutes),
		)
	}

	return changed, attrs
}

func samePolicy(a, b SlackConfig) bool {
	if a.Params.Active() != b.Params.Active() {
		return false
	}
	if !a.Params.Active() {
		return true
	}
	ab, err1 := json.Marshal(a.Params)
	bb, err2 := json.Marshal(b.Params)
	return err1 == nil && err2 == nil && bytes.Equal(ab, bb)
}
