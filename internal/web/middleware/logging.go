// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"time"

	"github.com/sozzifer/microblog/internal/log"
)

// RequestLogger emits one structured log event per completed request.
func RequestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lw := &metricsWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(lw, r)

			logger := log.WithComponentFromContext(r.Context(), "http")
			evt := logger.Info()
			if lw.statusCode >= 500 {
				evt = logger.Error()
			} else if lw.statusCode >= 400 {
				evt = logger.Warn()
			}
			evt.
				Str(log.FieldMethod, r.Method).
				Str(log.FieldPath, r.URL.Path).
				Int(log.FieldStatus, lw.statusCode).
				Int64(log.FieldDuration, time.Since(start).Milliseconds()).
				Str(log.FieldRemoteAddr, r.RemoteAddr).
				Msg("request completed")
		})
	}
}
