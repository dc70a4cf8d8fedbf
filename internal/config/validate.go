package config

import (
	"errors"
	"fmt"
	"net/netip"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"slacklog/pkg/logx"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		// Report JSON key paths ("slack.timeout") instead of Go field names.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
			_, err := ParseDurationField("", fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("ip_or_cidr", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if strings.Contains(s, "/") {
				_, err := netip.ParsePrefix(s)
				return err == nil
			}
			_, err := netip.ParseAddr(s)
			return err == nil
		})
		_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
			return logx.ValidLevel(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// Validate checks cfg and returns every problem found, one per line.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	err := structValidator().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		path := strings.TrimPrefix(fe.Namespace(), "Config.")
		msgs = append(msgs, fmt.Sprintf("%s: %s", path, describe(fe)))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "duration":
		return fmt.Sprintf("invalid duration %q", fe.Value())
	case "ip_or_cidr":
		return fmt.Sprintf("%q is not an IP address or CIDR prefix", fe.Value())
	case "loglevel":
		return fmt.Sprintf("unknown log level %q", fe.Value())
	case "required_if":
		return "required when enabled"
	case "email":
		return fmt.Sprintf("%q is not an email address", fe.Value())
	case "url":
		return fmt.Sprintf("%q is not a URL", fe.Value())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}
		return "failed " + fe.Tag()
	}
}

// ParseDurationField parses an optional, non-negative Go duration string.
// path only prefixes the error.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}
