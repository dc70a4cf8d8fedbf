package config

import (
	"slacklog/internal/policy"
)

// Config is the whole process configuration. Every field maps to a JSON/YAML
// key; unknown keys are rejected at load time.
type Config struct {
	Slack SlackConfig `json:"slack"`

	// InternalIPs lists addresses (or CIDR prefixes) reported as "internal"
	// in notification subjects.
	InternalIPs []string `json:"internal_ips,omitempty" validate:"dive,ip_or_cidr"`

	Mail    MailConfig    `json:"mail"`
	Logging LoggingConfig `json:"logging"`
	Server  ServerConfig  `json:"server"`
}

type SlackConfig struct {
	Token     string `json:"token"`
	Channel   string `json:"channel,omitempty"`  // default "#general"
	Username  string `json:"username,omitempty"` // default "django"
	IconURL   string `json:"icon_url,omitempty" validate:"omitempty,url"`
	IconEmoji string `json:"icon_emoji,omitempty"`

	// Params restricts which request sections reach the chat message.
	// Omitted or {} sends the full diagnostic dump.
	Params *policy.Policy `json:"params,omitempty"`

	Endpoint string `json:"endpoint,omitempty" validate:"omitempty,url"`
	// Timeout is a Go duration string bounding the webhook call.
	// Empty means no timeout beyond the HTTP client's.
	Timeout string `json:"timeout,omitempty" validate:"omitempty,duration"`
}

// MailConfig controls the fallback "mail the admins" channel.
type MailConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host,omitempty" validate:"required_if=Enabled true"`
	Port     int    `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"` // never logged

	From          string   `json:"from,omitempty"`
	Admins        []string `json:"admins,omitempty" validate:"required_if=Enabled true,dive,email"`
	SubjectPrefix string   `json:"subject_prefix,omitempty"`
	IncludeHTML   bool     `json:"include_html,omitempty"`
	Timeout       string   `json:"timeout,omitempty" validate:"omitempty,duration"`
}

type LoggingConfig struct {
	Level   string        `json:"level" validate:"omitempty,loglevel"`
	Console bool          `json:"console"`
	File    LoggingFile   `json:"file"`
	Notify  LoggingNotify `json:"notify"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingNotify routes log records at or above MinLevel to the notifier.
type LoggingNotify struct {
	Enabled  bool   `json:"enabled"`
	MinLevel string `json:"min_level,omitempty" validate:"omitempty,loglevel"`
}

// ServerConfig controls the example HTTP host.
type ServerConfig struct {
	Addr        string `json:"addr,omitempty"` // default "127.0.0.1:8080"
	DebugRoutes bool   `json:"debug_routes,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty" validate:"omitempty,duration"`
	WriteTimeout string `json:"write_timeout,omitempty" validate:"omitempty,duration"`
}
