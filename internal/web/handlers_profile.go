// SPDX-License-Identifier: MIT

package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sozzifer/microblog/internal/auth"
	"github.com/sozzifer/microblog/internal/log"
	"github.com/sozzifer/microblog/internal/metrics"
	"github.com/sozzifer/microblog/internal/store"
)

func (s *Server) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	logger := log.WithComponentFromContext(r.Context(), "web")

	profile, err := s.store.UserByUsername(r.Context(), username)
	if errors.Is(err, store.ErrNotFound) {
		s.handleNotFound(w, r)
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("profile lookup failed")
		s.serverError(w, r)
		return
	}

	page := pageFromRequest(r)
	posts, total, err := s.store.PostsByUser(r.Context(), profile.ID, page, s.cfg.PostsPerPage)
	if err != nil {
		logger.Error().Err(err).Msg("profile posts query failed")
		s.serverError(w, r)
		return
	}

	followers, err := s.store.FollowerCount(r.Context(), profile.ID)
	if err != nil {
		logger.Error().Err(err).Msg("follower count failed")
		s.serverError(w, r)
		return
	}
	following, err := s.store.FollowingCount(r.Context(), profile.ID)
	if err != nil {
		logger.Error().Err(err).Msg("following count failed")
		s.serverError(w, r)
		return
	}

	data := s.page(r, profile.Username)
	data.Profile = profile
	data.Posts = posts
	data.Pagination = newPagination(r, page, s.cfg.PostsPerPage, total)
	data.FollowerCount = followers
	data.FollowingCount = following

	if viewer := currentUser(r.Context()); viewer != nil {
		data.IsSelf = viewer.ID == profile.ID
		if !data.IsSelf {
			isFollowing, ferr := s.store.IsFollowing(r.Context(), viewer.ID, profile.ID)
			if ferr != nil {
				logger.Error().Err(ferr).Msg("follow state query failed")
				s.serverError(w, r)
				return
			}
			data.IsFollowing = isFollowing
		}
	}

	s.renderer.Render(w, r, http.StatusOK, "user.html", data)
}

func (s *Server) handleEditProfilePage(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	data := s.page(r, "Edit Profile")
	data.Form = &EditProfileForm{
		Username: user.Username,
		AboutMe:  user.AboutMe,
		Errors:   formErrors{},
	}
	s.renderer.Render(w, r, http.StatusOK, "edit_profile.html", data)
}

func (s *Server) handleEditProfile(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	form := parseEditProfileForm(r)

	renderAgain := func() {
		data := s.page(r, "Edit Profile")
		data.Form = form
		s.renderer.Render(w, r, http.StatusOK, "edit_profile.html", data)
	}

	if !form.Validate() {
		renderAgain()
		return
	}

	err := s.store.UpdateProfile(r.Context(), user.ID, form.Username, form.AboutMe)
	switch {
	case errors.Is(err, store.ErrUsernameTaken):
		form.Errors.add("username", msgUsernameTaken)
		renderAgain()
		return
	case err != nil:
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Error().
			Err(err).
			Int64("user_id", user.ID).
			Msg("profile update failed")
		s.serverError(w, r)
		return
	}

	// The session carries the username for log context; keep it current.
	if sess := currentSession(r.Context()); sess != nil && sess.Username != form.Username {
		s.sessions.Delete(sess.ID)
		if fresh, serr := s.sessions.Create(user.ID, form.Username, sess.Remember); serr == nil {
			auth.SetCookie(w, fresh)
		}
	}

	s.flash(w, r, "info", "Your profile has been updated")
	http.Redirect(w, r, "/edit_profile", http.StatusFound)
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	s.handleFollowChange(w, r, true)
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	s.handleFollowChange(w, r, false)
}

func (s *Server) handleFollowChange(w http.ResponseWriter, r *http.Request, follow bool) {
	user := currentUser(r.Context())
	username := chi.URLParam(r, "username")
	logger := log.WithComponentFromContext(r.Context(), "web")

	target, err := s.store.UserByUsername(r.Context(), username)
	if errors.Is(err, store.ErrNotFound) {
		s.flash(w, r, "error", fmt.Sprintf("User %s not found", username))
		http.Redirect(w, r, "/index", http.StatusFound)
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("follow target lookup failed")
		s.serverError(w, r)
		return
	}

	if follow {
		err = s.store.Follow(r.Context(), user.ID, target.ID)
	} else {
		err = s.store.Unfollow(r.Context(), user.ID, target.ID)
	}
	switch {
	case errors.Is(err, store.ErrSelfFollow):
		if follow {
			s.flash(w, r, "error", "You cannot follow yourself")
		} else {
			s.flash(w, r, "error", "You cannot unfollow yourself")
		}
		http.Redirect(w, r, "/user/"+target.Username, http.StatusFound)
		return
	case err != nil:
		logger.Error().Err(err).Msg("follow update failed")
		s.serverError(w, r)
		return
	}

	if follow {
		metrics.IncFollow("follow")
		s.flash(w, r, "info", fmt.Sprintf("You followed %s", target.Username))
	} else {
		metrics.IncFollow("unfollow")
		s.flash(w, r, "info", fmt.Sprintf("You unfollowed %s", target.Username))
	}
	http.Redirect(w, r, "/user/"+target.Username, http.StatusFound)
}
