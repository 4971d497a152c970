// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/sozzifer/microblog/internal/log"
)

// PanicPageFunc renders the error page shown after a recovered panic.
type PanicPageFunc func(w http.ResponseWriter, r *http.Request)

// Recoverer ensures that panics inside any downstream handler do not
// crash the process. It logs the panic with context and renders the 500
// page (or a plain-text fallback when none is configured).
func Recoverer(errorPage PanicPageFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					buf := make([]byte, 8192)
					n := runtime.Stack(buf, false)
					stack := string(buf[:n])

					reqID := log.RequestIDFromContext(r.Context())

					pathLabel := r.URL.Path
					if !utf8.ValidString(pathLabel) {
						pathLabel = strings.ToValidUTF8(pathLabel, "")
					}

					logger := log.WithComponentFromContext(r.Context(), "panic-recovery")
					logger.Error().
						Str(log.FieldEvent, "panic.recovered").
						Str(log.FieldMethod, r.Method).
						Str(log.FieldPath, pathLabel).
						Str(log.FieldRemoteAddr, r.RemoteAddr).
						Str(log.FieldRequestID, reqID).
						Interface("panic_value", rec).
						Str("stack_trace", stack).
						Msg("panic recovered in HTTP handler")

					if errorPage != nil {
						errorPage(w, r)
						return
					}
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
