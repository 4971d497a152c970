// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net"
	"net/mail"
	"strings"

	"golang.org/x/net/idna"

	"github.com/sozzifer/microblog/internal/log"
)

const insecureDefaultSecret = "you-will-never-guess"

// Validate checks the resolved configuration and normalizes a few fields
// in place (mail host, trimmed lists). It returns the first hard error.
func Validate(cfg *Config) error {
	if err := validateListen("listen", cfg.Listen); err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		if err := validateListen("metrics listen", cfg.Metrics.Listen); err != nil {
			return err
		}
	}
	if err := validateListen("sink listen", cfg.Sink.Listen); err != nil {
		return err
	}
	if err := validateListen("sink http listen", cfg.Sink.HTTPListen); err != nil {
		return err
	}

	if cfg.PostsPerPage < 1 || cfg.PostsPerPage > 100 {
		return fmt.Errorf("posts per page must be between 1 and 100 (got %d)", cfg.PostsPerPage)
	}
	if cfg.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive (got %s)", cfg.SessionTTL)
	}
	if cfg.RememberTTL < cfg.SessionTTL {
		return fmt.Errorf("remember ttl must not be shorter than session ttl")
	}

	if cfg.SecretKey == insecureDefaultSecret {
		logger := log.WithComponent("config")
		logger.Warn().
			Msg("SECRET_KEY is the insecure development default, set MICROBLOG_SECRET_KEY in production")
	}

	if cfg.Mail.Server != "" {
		host, err := NormalizeMailHost(cfg.Mail.Server)
		if err != nil {
			return fmt.Errorf("mail server: %w", err)
		}
		cfg.Mail.Server = host
		if cfg.Mail.Port < 1 || cfg.Mail.Port > 65535 {
			return fmt.Errorf("mail port must be between 1 and 65535 (got %d)", cfg.Mail.Port)
		}
		if len(cfg.Mail.Admins) == 0 {
			return fmt.Errorf("mail server configured but no admin addresses set (MICROBLOG_ADMINS)")
		}
	}
	for _, addr := range cfg.Mail.Admins {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("invalid admin address %q: %w", addr, err)
		}
	}
	if cfg.Mail.QueueSize < 1 {
		return fmt.Errorf("mail queue size must be positive (got %d)", cfg.Mail.QueueSize)
	}
	if cfg.Mail.RatePerSecond <= 0 {
		return fmt.Errorf("mail rate per second must be positive (got %g)", cfg.Mail.RatePerSecond)
	}

	for _, cidr := range cfg.TrustedProxies {
		if err := validateCIDROrIP(cidr); err != nil {
			return fmt.Errorf("trusted proxy %q: %w", cidr, err)
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.LoginPerMinute < 1 {
			return fmt.Errorf("login rate per minute must be positive (got %d)", cfg.RateLimit.LoginPerMinute)
		}
		if cfg.RateLimit.GlobalRPS < 1 {
			return fmt.Errorf("rate limit rps must be positive (got %d)", cfg.RateLimit.GlobalRPS)
		}
		if cfg.RateLimit.GlobalBurst < cfg.RateLimit.GlobalRPS {
			return fmt.Errorf("rate limit burst must be >= rps")
		}
	}

	switch cfg.Tracing.Exporter {
	case "grpc", "http", "noop":
	default:
		return fmt.Errorf("tracing exporter must be one of grpc, http, noop (got %q)", cfg.Tracing.Exporter)
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing sample rate must be within [0, 1] (got %g)", cfg.Tracing.SampleRate)
	}

	if cfg.Sink.MaxMessageBytes < 1024 {
		return fmt.Errorf("sink max message bytes must be at least 1024 (got %d)", cfg.Sink.MaxMessageBytes)
	}
	if cfg.Sink.MaxRecipients < 1 {
		return fmt.Errorf("sink max recipients must be positive (got %d)", cfg.Sink.MaxRecipients)
	}
	if cfg.Sink.Retention < 1 {
		return fmt.Errorf("sink retention must be positive (got %d)", cfg.Sink.Retention)
	}

	if cfg.Assets.TemplatesDir == "" {
		return fmt.Errorf("templates directory must not be empty")
	}
	if cfg.Assets.ConfigPath == "" {
		return fmt.Errorf("tailwind config path must not be empty")
	}

	return nil
}

func validateListen(what, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s address must not be empty", what)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid %s address %q: %w", what, addr, err)
	}
	return nil
}

func validateCIDROrIP(value string) error {
	if strings.Contains(value, "/") {
		_, _, err := net.ParseCIDR(value)
		return err
	}
	if net.ParseIP(value) == nil {
		return fmt.Errorf("not an IP address or CIDR")
	}
	return nil
}

// NormalizeMailHost validates and normalizes an SMTP server hostname.
// IDN hostnames are converted to their ASCII (punycode) form.
func NormalizeMailHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.Contains(host, "://") {
		return "", fmt.Errorf("host must not include scheme: %s", raw)
	}
	if strings.Contains(host, "/") {
		return "", fmt.Errorf("host must not include path: %s", raw)
	}
	if strings.Contains(host, "@") {
		return "", fmt.Errorf("host must not include userinfo: %s", raw)
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}
