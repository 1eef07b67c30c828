package main

import (
	"fmt"
	"time"

	"github.com/wrale/oauth2-device-grant/internal/codes"
)

// Config holds server configuration loaded from environment variables
type Config struct {
	Port            int      `envconfig:"PORT" default:"8080"`
	RedisURL        string   `envconfig:"REDIS_URL" required:"true"`
	BaseURL         string   `envconfig:"BASE_URL" required:"true"`
	VerificationURI string   `envconfig:"VERIFICATION_URI"`
	ScopeSeparators []string `envconfig:"SCOPE_SEPARATORS" default:"space"`
	Clients         []string `envconfig:"CLIENTS" required:"true"`
	UserHeader      string   `envconfig:"USER_HEADER" default:"X-Forwarded-User"`

	CodeExpiry      time.Duration `envconfig:"CODE_EXPIRY" default:"15m"`
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	CSRFSecret      string        `envconfig:"CSRF_SECRET" required:"true"`
	CSRFTokenExpiry time.Duration `envconfig:"CSRF_TOKEN_EXPIRY" default:"15m"`

	LogEnv         string `envconfig:"LOG_ENV" default:"prod"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`

	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// verificationURI returns the configured verification URI or BASE_URL/device
func (c Config) verificationURI() (string, error) {
	if c.VerificationURI != "" {
		return c.VerificationURI, nil
	}
	return codes.VerificationURI(c.BaseURL)
}

// separators maps SCOPE_SEPARATORS names to delimiters. Commas cannot be
// written literally in an envconfig list, so "space" and "comma" name them.
func (c Config) separators() ([]string, error) {
	seps := make([]string, 0, len(c.ScopeSeparators))
	for _, name := range c.ScopeSeparators {
		switch name {
		case "space":
			seps = append(seps, " ")
		case "comma":
			seps = append(seps, ",")
		case "":
			continue
		default:
			if len(name) != 1 {
				return nil, fmt.Errorf("invalid scope separator %q", name)
			}
			seps = append(seps, name)
		}
	}
	return seps, nil
}
