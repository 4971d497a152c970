// SPDX-License-Identifier: MIT

package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/sozzifer/microblog/internal/auth"
	"github.com/sozzifer/microblog/internal/log"
	"github.com/sozzifer/microblog/internal/store"
	"github.com/sozzifer/microblog/templates"
)

// pageData carries everything the HTML templates can reference. Handlers
// populate only the fields their page uses; the rest stay zero.
type pageData struct {
	Title       string
	CurrentUser *store.User
	Flashes     []auth.Flash

	// Form is the page's form struct, re-rendered with its Errors map
	// after a failed submission.
	Form any

	Posts      []store.Post
	Pagination *Pagination

	// Profile page fields.
	Profile        *store.User
	FollowerCount  int
	FollowingCount int
	IsSelf         bool
	IsFollowing    bool

	// Next is the post-login redirect target carried through the login form.
	Next string
	// Token is the opaque reset token embedded in the reset form action.
	Token string
	// ShowForm controls whether the index page renders the post box.
	ShowForm bool
}

// Renderer holds the parsed page templates. Each page is parsed together
// with the base layout and the shared partials so template lookups stay
// local to that page.
type Renderer struct {
	pages map[string]*template.Template
}

var pageFiles = []string{
	"index.html",
	"login.html",
	"register.html",
	"user.html",
	"edit_profile.html",
	"reset_password_request.html",
	"reset_password.html",
	"404.html",
	"500.html",
}

// NewRenderer parses all page templates from the embedded filesystem.
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"avatar":    AvatarURL,
		"timesince": timeSince,
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		t, err := template.New("base.html").Funcs(funcs).
			ParseFS(templates.FS, "base.html", "_post.html", "_pagination.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages}, nil
}

// Render executes a page into a buffer before writing, so a template
// error never leaves a half-written response behind.
func (rn *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page string, data *pageData) {
	t, ok := rn.pages[page]
	if !ok {
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Error().
			Str("template", page).
			Msg("unknown template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Error().
			Err(err).
			Str("template", page).
			Msg("template execution failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// timeSince renders a coarse human-readable age for post timestamps.
func timeSince(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < 2*time.Minute:
		return "a minute ago"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	case d < 2*time.Hour:
		return "an hour ago"
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	case d < 48*time.Hour:
		return "a day ago"
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}
