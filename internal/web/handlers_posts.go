// SPDX-License-Identifier: MIT

package web

import (
	"net/http"

	"github.com/sozzifer/microblog/internal/log"
	"github.com/sozzifer/microblog/internal/metrics"
)

// handleIndex renders the personal feed: the user's own posts plus posts
// from everyone they follow, newest first.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	page := pageFromRequest(r)

	posts, total, err := s.store.Feed(r.Context(), user.ID, page, s.cfg.PostsPerPage)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Error().
			Err(err).
			Msg("feed query failed")
		s.serverError(w, r)
		return
	}

	data := s.page(r, "Home")
	data.ShowForm = true
	data.Form = &PostForm{Errors: formErrors{}}
	data.Posts = posts
	data.Pagination = newPagination(r, page, s.cfg.PostsPerPage, total)
	s.renderer.Render(w, r, http.StatusOK, "index.html", data)
}

// handleExplore renders the global timeline. It reuses the index template
// without the post form, so it works for anonymous visitors too.
func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	page := pageFromRequest(r)

	posts, total, err := s.store.AllPosts(r.Context(), page, s.cfg.PostsPerPage)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Error().
			Err(err).
			Msg("explore query failed")
		s.serverError(w, r)
		return
	}

	data := s.page(r, "Explore")
	data.Posts = posts
	data.Pagination = newPagination(r, page, s.cfg.PostsPerPage, total)
	s.renderer.Render(w, r, http.StatusOK, "index.html", data)
}

// handleCreatePost accepts the post form and redirects back to the feed,
// so a browser refresh never resubmits (Post/Redirect/Get).
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	form := parsePostForm(r)
	if !form.Validate() {
		page := pageFromRequest(r)
		posts, total, err := s.store.Feed(r.Context(), user.ID, page, s.cfg.PostsPerPage)
		if err != nil {
			s.serverError(w, r)
			return
		}
		data := s.page(r, "Home")
		data.ShowForm = true
		data.Form = form
		data.Posts = posts
		data.Pagination = newPagination(r, page, s.cfg.PostsPerPage, total)
		s.renderer.Render(w, r, http.StatusOK, "index.html", data)
		return
	}

	if _, err := s.store.CreatePost(r.Context(), user.ID, form.Body); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Error().
			Err(err).
			Msg("post insert failed")
		s.serverError(w, r)
		return
	}

	metrics.IncPostCreated()
	s.flash(w, r, "info", "Your post is now live!")
	http.Redirect(w, r, "/index", http.StatusFound)
}
