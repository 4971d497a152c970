// SPDX-License-Identifier: MIT

package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sozzifer/microblog/internal/auth"
	"github.com/sozzifer/microblog/internal/log"
	"github.com/sozzifer/microblog/internal/store"
)

type contextKey string

const (
	userContextKey    contextKey = "current_user"
	sessionContextKey contextKey = "session"
)

// currentUser returns the authenticated user, or nil for anonymous
// requests.
func currentUser(ctx context.Context) *store.User {
	u, _ := ctx.Value(userContextKey).(*store.User)
	return u
}

// currentSession returns the session record loaded by withSession, or nil.
func currentSession(ctx context.Context) *auth.Session {
	s, _ := ctx.Value(sessionContextKey).(*auth.Session)
	return s
}

// withSession resolves the session cookie into a user for downstream
// handlers. A stale cookie is cleared rather than rejected so the user
// just sees the anonymous view.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.SessionIDFromRequest(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := s.sessions.Get(id)
		if err != nil {
			auth.ClearCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		// Anonymous sessions exist only to carry flash messages.
		if sess.UserID == 0 {
			ctx := context.WithValue(r.Context(), sessionContextKey, sess)
			ctx = log.ContextWithSessionID(ctx, sess.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		user, err := s.store.UserByID(r.Context(), sess.UserID)
		if err != nil {
			// Account deleted since login; drop the orphaned session.
			s.sessions.Delete(sess.ID)
			auth.ClearCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		s.touchLastSeen(user.ID)

		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, sessionContextKey, sess)
		ctx = log.ContextWithSessionID(ctx, sess.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// touchLastSeen updates the user's last-seen timestamp off the request
// path. A write failure only costs freshness of the profile page.
func (s *Server) touchLastSeen(userID int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.TouchLastSeen(ctx, userID, time.Now().UTC()); err != nil {
			logger := log.WithComponent("web")
			logger.Warn().
				Err(err).
				Int64("user_id", userID).
				Msg("last_seen update failed")
		}
	}()
}

// requireLogin redirects anonymous requests to the login form, carrying
// the original path so login can return the user where they were headed.
func (s *Server) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r.Context()) == nil {
			target := "/login"
			if p := r.URL.Path; safeNext(p) && p != "/" {
				target = "/login?next=" + url.QueryEscape(p)
			}
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// safeNext accepts only local paths as post-login redirect targets.
// Absolute URLs and scheme-relative forms like //evil.example are open
// redirect vectors.
func safeNext(next string) bool {
	if next == "" || !strings.HasPrefix(next, "/") {
		return false
	}
	if strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return false
	}
	u, err := url.Parse(next)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return false
	}
	return true
}
