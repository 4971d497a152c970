// SPDX-License-Identifier: MIT

package mailsink

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sozzifer/microblog/internal/log"
	"github.com/sozzifer/microblog/internal/web/middleware"
)

const defaultListPerPage = 50

// listResponse pages through captured messages, newest first.
type listResponse struct {
	Messages []Summary `json:"messages"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
	Total    int       `json:"total"`
}

// messageResponse is the detail view: parsed summary plus raw bytes.
type messageResponse struct {
	Summary
	Raw string `json:"raw"`
}

// NewHTTPHandler builds the inspect API in front of store.
func NewHTTPHandler(store Store) http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableLogging:         true,
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1/messages", func(r chi.Router) {
		r.Get("/", handleList(store))
		r.Delete("/", handleClear(store))
		r.Get("/{id}", handleGet(store))
	})

	return r
}

func handleList(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				page = n
			}
		}
		perPage := defaultListPerPage
		if raw := r.URL.Query().Get("per_page"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
				perPage = n
			}
		}

		msgs, total, err := store.List(page, perPage)
		if err != nil {
			logger := log.WithComponentFromContext(r.Context(), "mailsink")
			logger.Error().
				Err(err).
				Msg("message list failed")
			writeError(w, http.StatusInternalServerError, "list failed")
			return
		}

		resp := listResponse{
			Messages: make([]Summary, 0, len(msgs)),
			Page:     page,
			PerPage:  perPage,
			Total:    total,
		}
		for i := range msgs {
			resp.Messages = append(resp.Messages, msgs[i].Summarize())
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleGet(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		msg, err := store.Get(id)
		if errors.Is(err, ErrMessageNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		if err != nil {
			logger := log.WithComponentFromContext(r.Context(), "mailsink")
			logger.Error().
				Err(err).
				Str("message_id", id).
				Msg("message fetch failed")
			writeError(w, http.StatusInternalServerError, "fetch failed")
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{
			Summary: msg.Summarize(),
			Raw:     string(msg.Raw),
		})
	}
}

func handleClear(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Clear(); err != nil {
			logger := log.WithComponentFromContext(r.Context(), "mailsink")
			logger.Error().
				Err(err).
				Msg("message clear failed")
			writeError(w, http.StatusInternalServerError, "clear failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponent("mailsink")
		logger.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
