// SPDX-License-Identifier: MIT

package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sozzifer/microblog/internal/auth"
	"github.com/sozzifer/microblog/internal/log"
	"github.com/sozzifer/microblog/internal/metrics"
	"github.com/sozzifer/microblog/internal/store"
)

// resetTokenTTL bounds how long a password-reset link stays valid.
const resetTokenTTL = 10 * time.Minute

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if currentUser(r.Context()) != nil {
		http.Redirect(w, r, "/index", http.StatusFound)
		return
	}
	data := s.page(r, "Sign In")
	data.Form = &LoginForm{Errors: formErrors{}}
	if next := r.URL.Query().Get("next"); safeNext(next) {
		data.Next = next
	}
	s.renderer.Render(w, r, http.StatusOK, "login.html", data)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	form := parseLoginForm(r)

	next := r.URL.Query().Get("next")
	if !safeNext(next) {
		next = ""
	}

	renderAgain := func() {
		data := s.page(r, "Sign In")
		data.Form = form
		data.Next = next
		s.renderer.Render(w, r, http.StatusOK, "login.html", data)
	}

	if !form.Validate() {
		renderAgain()
		return
	}

	user, err := s.store.UserByUsername(r.Context(), form.Username)
	if err != nil || !auth.CheckPassword(user.PasswordHash, form.Password) {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			logger := log.WithComponentFromContext(r.Context(), "web")
			logger.Error().
				Err(err).
				Msg("login lookup failed")
			s.serverError(w, r)
			return
		}
		metrics.IncLogin("failure")
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Warn().
			Str("event", "login.failed").
			Str("username", form.Username).
			Msg("login rejected")
		s.flash(w, r, "error", "Invalid username or password")
		target := "/login"
		if next != "" {
			target = "/login?next=" + url.QueryEscape(next)
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	sess, err := s.sessions.Create(user.ID, user.Username, form.RememberMe)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Error().
			Err(err).
			Msg("session create failed")
		s.serverError(w, r)
		return
	}
	auth.SetCookie(w, sess)

	metrics.IncLogin("success")
	logger := log.WithComponentFromContext(r.Context(), "web")
	logger.Info().
		Str("event", "login.success").
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Msg("user logged in")

	target := "/index"
	if next != "" {
		target = next
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := currentSession(r.Context()); sess != nil {
		s.sessions.Delete(sess.ID)
	}
	auth.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if currentUser(r.Context()) != nil {
		http.Redirect(w, r, "/index", http.StatusFound)
		return
	}
	data := s.page(r, "Register")
	data.Form = &RegistrationForm{Errors: formErrors{}}
	s.renderer.Render(w, r, http.StatusOK, "register.html", data)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if currentUser(r.Context()) != nil {
		http.Redirect(w, r, "/index", http.StatusFound)
		return
	}

	form := parseRegistrationForm(r)

	renderAgain := func() {
		data := s.page(r, "Register")
		data.Form = form
		s.renderer.Render(w, r, http.StatusOK, "register.html", data)
	}

	if !form.Validate() {
		renderAgain()
		return
	}

	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Error().
			Err(err).
			Msg("password hash failed")
		s.serverError(w, r)
		return
	}

	user, err := s.store.CreateUser(r.Context(), form.Username, form.Email, hash)
	switch {
	case errors.Is(err, store.ErrUsernameTaken):
		form.Errors.add("username", msgUsernameTaken)
		renderAgain()
		return
	case errors.Is(err, store.ErrEmailTaken):
		form.Errors.add("email", msgEmailTaken)
		renderAgain()
		return
	case err != nil:
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Error().
			Err(err).
			Msg("user insert failed")
		s.serverError(w, r)
		return
	}

	metrics.IncUserRegistered()
	logger := log.WithComponentFromContext(r.Context(), "web")
	logger.Info().
		Str("event", "user.registered").
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Msg("new user registered")

	s.flash(w, r, "info", fmt.Sprintf("User %s registered", user.Username))
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleResetRequestPage(w http.ResponseWriter, r *http.Request) {
	if currentUser(r.Context()) != nil {
		http.Redirect(w, r, "/index", http.StatusFound)
		return
	}
	data := s.page(r, "Reset Password")
	data.Form = &ResetRequestForm{Errors: formErrors{}}
	s.renderer.Render(w, r, http.StatusOK, "reset_password_request.html", data)
}

// handleResetRequest always reports success so the form cannot be used to
// probe which addresses are registered. Mail is sent only for known ones.
func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	if currentUser(r.Context()) != nil {
		http.Redirect(w, r, "/index", http.StatusFound)
		return
	}
	form := parseResetRequestForm(r)
	if !form.Validate() {
		data := s.page(r, "Reset Password")
		data.Form = form
		s.renderer.Render(w, r, http.StatusOK, "reset_password_request.html", data)
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "web")

	user, err := s.store.UserByEmail(r.Context(), form.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Fall through to the uniform flash.
	case err != nil:
		logger.Error().Err(err).Msg("reset lookup failed")
		s.serverError(w, r)
		return
	default:
		metrics.IncPasswordReset("requested")
		token, terr := auth.GenerateResetToken([]byte(s.cfg.SecretKey), user.ID, resetTokenTTL)
		if terr != nil {
			logger.Error().Err(terr).Msg("reset token generation failed")
			s.serverError(w, r)
			return
		}
		resetURL := s.baseURL + "/reset_password/" + url.PathEscape(token)
		if s.reset == nil {
			logger.Info().
				Str("event", "reset.mail_disabled").
				Int64("user_id", user.ID).
				Msg("mail disabled, reset link not sent")
		} else if merr := s.reset.SendPasswordReset(user.Username, user.Email, resetURL); merr != nil {
			logger.Error().Err(merr).Int64("user_id", user.ID).Msg("reset mail enqueue failed")
		}
	}

	s.flash(w, r, "info", "Check your email for instructions on resetting your password")
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	if currentUser(r.Context()) != nil {
		http.Redirect(w, r, "/index", http.StatusFound)
		return
	}
	token := chi.URLParam(r, "token")
	if _, err := auth.VerifyResetToken([]byte(s.cfg.SecretKey), token); err != nil {
		http.Redirect(w, r, "/index", http.StatusFound)
		return
	}
	data := s.page(r, "Reset Your Password")
	data.Token = token
	data.Form = &ResetPasswordForm{Errors: formErrors{}}
	s.renderer.Render(w, r, http.StatusOK, "reset_password.html", data)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if currentUser(r.Context()) != nil {
		http.Redirect(w, r, "/index", http.StatusFound)
		return
	}
	token := chi.URLParam(r, "token")
	userID, err := auth.VerifyResetToken([]byte(s.cfg.SecretKey), token)
	if err != nil {
		http.Redirect(w, r, "/index", http.StatusFound)
		return
	}

	form := parseResetPasswordForm(r)
	if !form.Validate() {
		data := s.page(r, "Reset Your Password")
		data.Token = token
		data.Form = form
		s.renderer.Render(w, r, http.StatusOK, "reset_password.html", data)
		return
	}

	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Error().
			Err(err).
			Msg("password hash failed")
		s.serverError(w, r)
		return
	}

	if err := s.store.UpdatePassword(r.Context(), userID, hash); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Error().
			Err(err).
			Int64("user_id", userID).
			Msg("password update failed")
		s.serverError(w, r)
		return
	}

	metrics.IncPasswordReset("completed")
	logger := log.WithComponentFromContext(r.Context(), "web")
	logger.Info().
		Str("event", "reset.completed").
		Int64("user_id", userID).
		Msg("password reset")

	s.flash(w, r, "info", "Your password has been reset")
	http.Redirect(w, r, "/login", http.StatusFound)
}
