// SPDX-License-Identifier: MIT

// Package web implements the HTML application surface: session-backed
// authentication, post feeds, user profiles, and the password-reset flow.
package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sozzifer/microblog/internal/auth"
	"github.com/sozzifer/microblog/internal/config"
	"github.com/sozzifer/microblog/internal/health"
	"github.com/sozzifer/microblog/internal/log"
	"github.com/sozzifer/microblog/internal/store"
	"github.com/sozzifer/microblog/internal/web/middleware"
	"github.com/sozzifer/microblog/static"
)

// ResetMailer dispatches password-reset mail. Satisfied by
// mailer.ResetSender; tests substitute a recorder.
type ResetMailer interface {
	SendPasswordReset(username, email, resetURL string) error
}

// Server wires the HTTP application together.
type Server struct {
	cfg      config.Config
	store    *store.Store
	sessions *auth.Sessions
	reset    ResetMailer
	health   *health.Manager
	renderer *Renderer

	// baseURL prefixes links placed into outbound mail.
	baseURL string
}

// New creates the application server. The reset mailer may be nil when
// outbound mail is disabled; reset requests then only log.
func New(cfg config.Config, st *store.Store, sessions *auth.Sessions, reset ResetMailer, hm *health.Manager) (*Server, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		reset:    reset,
		health:   hm,
		renderer: renderer,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// Routes assembles the middleware stack and the route table.
func (s *Server) Routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,
		EnableCSRF:            true,
		AllowedOrigins:        s.cfg.AllowedOrigins,
		EnableMetrics:         s.cfg.Metrics.Enabled,
		TracingService:        s.tracingService(),
		EnableLogging:         true,
		EnableRateLimit:       s.cfg.RateLimit.Enabled,
		RateLimitGlobalRPS:    s.cfg.RateLimit.GlobalRPS,
		RateLimitBurst:        s.cfg.RateLimit.GlobalBurst,
		ErrorPage:             s.panicPage,
	})

	r.Use(s.withSession)

	r.Get("/healthz", s.health.HealthHandler())
	r.Get("/readyz", s.health.ReadyHandler())

	r.Handle("/static/*", staticHandler())

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimit.Enabled {
			r.Use(middleware.LoginRateLimit(s.cfg.RateLimit.LoginPerMinute))
		}
		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)
		r.Get("/register", s.handleRegisterPage)
		r.Post("/register", s.handleRegister)
		r.Get("/reset_password_request", s.handleResetRequestPage)
		r.Post("/reset_password_request", s.handleResetRequest)
		r.Get("/reset_password/{token}", s.handleResetPasswordPage)
		r.Post("/reset_password/{token}", s.handleResetPassword)
	})

	r.Get("/logout", s.handleLogout)
	r.Get("/explore", s.handleExplore)
	r.Get("/user/{username}", s.handleUserProfile)

	r.Group(func(r chi.Router) {
		r.Use(s.requireLogin)
		r.Get("/", s.handleIndex)
		r.Get("/index", s.handleIndex)
		r.Post("/", s.handleCreatePost)
		r.Post("/index", s.handleCreatePost)
		r.Get("/edit_profile", s.handleEditProfilePage)
		r.Post("/edit_profile", s.handleEditProfile)
		r.Post("/follow/{username}", s.handleFollow)
		r.Post("/unfollow/{username}", s.handleUnfollow)
	})

	r.NotFound(s.handleNotFound)

	return r
}

func (s *Server) tracingService() string {
	if !s.cfg.Tracing.Enabled {
		return ""
	}
	return "microblog"
}

// staticHandler serves the embedded asset bundle. The bundle is immutable
// per build, so clients may cache aggressively.
func staticHandler() http.Handler {
	fs := http.StripPrefix("/static/", http.FileServerFS(static.FS))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		fs.ServeHTTP(w, r)
	})
}

// page returns a pageData pre-filled with the request's common fields.
// Flashes are drained here, so call it once per render.
func (s *Server) page(r *http.Request, title string) *pageData {
	data := &pageData{
		Title:       title,
		CurrentUser: currentUser(r.Context()),
	}
	if sess := currentSession(r.Context()); sess != nil {
		data.Flashes = s.sessions.PopFlashes(sess.ID)
	}
	return data
}

// flash queues a one-shot message on the current session. Anonymous
// visitors get a session record on demand so messages survive the
// redirect after register and password-reset.
func (s *Server) flash(w http.ResponseWriter, r *http.Request, category, message string) {
	if sess := currentSession(r.Context()); sess != nil {
		s.sessions.PushFlash(sess.ID, category, message)
		return
	}
	sess, err := s.sessions.Create(0, "", false)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Warn().
			Err(err).
			Msg("anonymous flash session create failed")
		return
	}
	s.sessions.PushFlash(sess.ID, category, message)
	auth.SetCookie(w, sess)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderer.Render(w, r, http.StatusNotFound, "404.html", s.page(r, "Not Found"))
}

// serverError renders the 500 page. The underlying error has already
// been logged by the caller.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request) {
	s.renderer.Render(w, r, http.StatusInternalServerError, "500.html", s.page(r, "Error"))
}

// panicPage renders the 500 page after a recovered panic. It avoids the
// session so a broken cache cannot re-panic the recoverer.
func (s *Server) panicPage(w http.ResponseWriter, r *http.Request) {
	s.renderer.Render(w, r, http.StatusInternalServerError, "500.html", &pageData{Title: "Error"})
}
