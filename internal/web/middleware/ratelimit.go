// SPDX-License-Identifier: MIT

package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	// RequestLimit is the maximum number of requests allowed in the window.
	RequestLimit int
	// WindowSize is the time window for rate limiting.
	WindowSize time.Duration
	// KeyFunc extracts the rate limit key from the request. Defaults to
	// per-IP limiting.
	KeyFunc func(r *http.Request) (string, error)
	// LimitHandler writes the 429 response. Defaults to a JSON body.
	LimitHandler http.HandlerFunc
}

// RateLimit creates a rate limiting middleware using httprate's sliding
// window counter.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}
	limitHandler := cfg.LimitHandler
	if limitHandler == nil {
		limitHandler = jsonLimitHandler(cfg.WindowSize)
	}

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(limitHandler),
	)
}

func jsonLimitHandler(window time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded","detail":"Too many requests. Please try again later."}`))
	}
}

// HTMLLimitHandler writes a minimal HTML 429 page for form endpoints
// where a JSON body would confuse the browser user.
func HTMLLimitHandler(window time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("<!DOCTYPE html><html><head><title>Too Many Requests</title></head><body><h1>Too many requests</h1><p>Please wait a moment and try again.</p></body></html>"))
	}
}

// GlobalRateLimit caps overall requests per second per client IP.
func GlobalRateLimit(rps, burst int) func(http.Handler) http.Handler {
	if burst < rps {
		burst = rps
	}
	return RateLimit(RateLimitConfig{
		RequestLimit: burst,
		WindowSize:   time.Second,
	})
}

// LoginRateLimit throttles credential-guessing endpoints: the login and
// password-reset-request forms.
func LoginRateLimit(perMinute int) func(http.Handler) http.Handler {
	return RateLimit(RateLimitConfig{
		RequestLimit: perMinute,
		WindowSize:   time.Minute,
		LimitHandler: HTMLLimitHandler(time.Minute),
	})
}
