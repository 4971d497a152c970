// SPDX-License-Identifier: MIT

// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"github.com/go-chi/chi/v5"
)

// StackConfig configures the canonical HTTP ingress middleware stack.
type StackConfig struct {
	// Security headers
	EnableSecurityHeaders bool
	CSP                   string

	// Cross-site request protection for HTML form posts.
	EnableCSRF     bool
	AllowedOrigins []string

	// Observability
	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	// Rate limiting
	EnableRateLimit    bool
	RateLimitGlobalRPS int
	RateLimitBurst     int

	// ErrorPage renders the 500 page when a handler panics. Optional.
	ErrorPage PanicPageFunc
}

// NewRouter constructs a chi router with the canonical middleware stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the canonical middleware stack to r. Order matters:
// the recoverer is outermost, correlation comes before anything that
// logs, and rate limiting runs last so rejected requests still carry
// request IDs and metrics.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer(cfg.ErrorPage))
	r.Use(RequestID)
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders(cfg.CSP))
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(RequestLogger())
	}
	if cfg.EnableCSRF {
		r.Use(CSRFProtection(cfg.AllowedOrigins))
	}
	if cfg.EnableRateLimit {
		r.Use(GlobalRateLimit(cfg.RateLimitGlobalRPS, cfg.RateLimitBurst))
	}
}
