// SPDX-License-Identifier: MIT

package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sozzifer/microblog/internal/auth"
	"github.com/sozzifer/microblog/internal/cache"
	"github.com/sozzifer/microblog/internal/config"
	"github.com/sozzifer/microblog/internal/health"
	"github.com/sozzifer/microblog/internal/store"
)

// recordingResetMailer captures reset mail instead of sending it.
type recordingResetMailer struct {
	calls []resetCall
}

type resetCall struct {
	username, email, resetURL string
}

func (m *recordingResetMailer) SendPasswordReset(username, email, resetURL string) error {
	m.calls = append(m.calls, resetCall{username, email, resetURL})
	return nil
}

type testApp struct {
	handler http.Handler
	store   *store.Store
	mailer  *recordingResetMailer
	cookie  *http.Cookie
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	_, err = st.Migrate(context.Background())
	require.NoError(t, err)

	cfg := config.Config{
		BaseURL:      "http://example.com",
		SecretKey:    "test-secret",
		PostsPerPage: 10,
	}
	sessions := auth.NewSessions(cache.NewMemoryCache(0), time.Hour, 24*time.Hour)
	mailer := &recordingResetMailer{}

	srv, err := New(cfg, st, sessions, mailer, health.NewManager("test"))
	require.NoError(t, err)

	return &testApp{
		handler: srv.Routes(),
		store:   st,
		mailer:  mailer,
	}
}

// do issues a request against the app, carrying the current session
// cookie and capturing any replacement from the response.
func (a *testApp) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	r := httptest.NewRequest(method, target, body)
	if form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if method != http.MethodGet && method != http.MethodHead {
		r.Header.Set("Origin", "http://"+r.Host)
	}
	if a.cookie != nil {
		r.AddCookie(a.cookie)
	}

	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, r)

	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName {
			if c.MaxAge < 0 {
				a.cookie = nil
			} else {
				a.cookie = c
			}
		}
	}
	return w
}

func (a *testApp) register(t *testing.T, username, email, password string) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/register", url.Values{
		"username":  {username},
		"email":     {email},
		"password":  {password},
		"password2": {password},
	})
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/login", w.Result().Header.Get("Location"))
}

func (a *testApp) login(t *testing.T, username, password string) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/login", url.Values{
		"username": {username},
		"password": {password},
	})
	require.Equal(t, http.StatusFound, w.Code)
	require.NotNil(t, a.cookie, "login should set a session cookie")
}

func TestRegisterLoginPostFlow(t *testing.T) {
	app := newTestApp(t)

	app.register(t, "john", "john@example.com", "cat-dog-fish")

	// registration flash shows up on the login page
	w := app.do(t, http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "User john registered")

	app.login(t, "john", "cat-dog-fish")

	w = app.do(t, http.MethodGet, "/index", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hi, john!")

	w = app.do(t, http.MethodPost, "/", url.Values{"post": {"my first post"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/index", w.Result().Header.Get("Location"))

	w = app.do(t, http.MethodGet, "/index", nil)
	body := w.Body.String()
	assert.Contains(t, body, "Your post is now live!")
	assert.Contains(t, body, "my first post")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "john", "john@example.com", "cat-dog-fish")

	w := app.do(t, http.MethodPost, "/login", url.Values{
		"username": {"john"},
		"password": {"wrong"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Result().Header.Get("Location"))

	// The flash survives the redirect.
	w = app.do(t, http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid username or password")

	w = app.do(t, http.MethodPost, "/login", url.Values{
		"username": {"nobody"},
		"password": {"whatever"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Result().Header.Get("Location"))

	// A requested next target is carried through the failure redirect.
	w = app.do(t, http.MethodPost, "/login?next=%2Fexplore", url.Values{
		"username": {"john"},
		"password": {"wrong"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Fexplore", w.Result().Header.Get("Location"))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "john", "john@example.com", "cat-dog-fish")

	w := app.do(t, http.MethodPost, "/register", url.Values{
		"username":  {"john"},
		"email":     {"other@example.com"},
		"password":  {"pw"},
		"password2": {"pw"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), msgUsernameTaken)

	w = app.do(t, http.MethodPost, "/register", url.Values{
		"username":  {"johnny"},
		"email":     {"john@example.com"},
		"password":  {"pw"},
		"password2": {"pw"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), msgEmailTaken)
}

func TestRequireLoginRedirectsWithNext(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/edit_profile", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Fedit_profile", w.Result().Header.Get("Location"))
}

func TestLoginHonorsLocalNextOnly(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "john", "john@example.com", "cat-dog-fish")

	w := app.do(t, http.MethodPost, "/login?next=%2Fexplore", url.Values{
		"username": {"john"},
		"password": {"cat-dog-fish"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/explore", w.Result().Header.Get("Location"))

	app.cookie = nil
	w = app.do(t, http.MethodPost, "/login?next=%2F%2Fevil.example", url.Values{
		"username": {"john"},
		"password": {"cat-dog-fish"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/index", w.Result().Header.Get("Location"))
}

func TestExploreIsPublic(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "john", "john@example.com", "cat-dog-fish")
	app.login(t, "john", "cat-dog-fish")
	w := app.do(t, http.MethodPost, "/", url.Values{"post": {"hello world"}})
	require.Equal(t, http.StatusFound, w.Code)

	app.cookie = nil
	w = app.do(t, http.MethodGet, "/explore", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hello world")
	// anonymous explore has no post form
	assert.NotContains(t, w.Body.String(), "Say something")
}

func TestProfileAndFollowFlow(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "john", "john@example.com", "cat-dog-fish")
	app.register(t, "susan", "susan@example.com", "bird-horse-cow")

	app.login(t, "john", "cat-dog-fish")

	w := app.do(t, http.MethodPost, "/follow/susan", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/user/susan", w.Result().Header.Get("Location"))

	w = app.do(t, http.MethodGet, "/user/susan", nil)
	body := w.Body.String()
	assert.Contains(t, body, "You followed susan")
	assert.Contains(t, body, "1 followers")
	assert.Contains(t, body, "Unfollow")

	w = app.do(t, http.MethodPost, "/unfollow/susan", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	w = app.do(t, http.MethodGet, "/user/susan", nil)
	assert.Contains(t, w.Body.String(), "You unfollowed susan")

	w = app.do(t, http.MethodPost, "/follow/john", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	w = app.do(t, http.MethodGet, "/user/john", nil)
	assert.Contains(t, w.Body.String(), "You cannot follow yourself")

	w = app.do(t, http.MethodPost, "/unfollow/john", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	w = app.do(t, http.MethodGet, "/user/john", nil)
	assert.Contains(t, w.Body.String(), "You cannot unfollow yourself")

	w = app.do(t, http.MethodPost, "/follow/ghost", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/index", w.Result().Header.Get("Location"))
}

func TestFollowedPostsAppearInFeed(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "john", "john@example.com", "cat-dog-fish")
	app.register(t, "susan", "susan@example.com", "bird-horse-cow")

	app.login(t, "susan", "bird-horse-cow")
	w := app.do(t, http.MethodPost, "/", url.Values{"post": {"susan says hi"}})
	require.Equal(t, http.StatusFound, w.Code)
	app.do(t, http.MethodGet, "/logout", nil)

	app.login(t, "john", "cat-dog-fish")
	w = app.do(t, http.MethodGet, "/index", nil)
	assert.NotContains(t, w.Body.String(), "susan says hi")

	app.do(t, http.MethodPost, "/follow/susan", nil)
	w = app.do(t, http.MethodGet, "/index", nil)
	assert.Contains(t, w.Body.String(), "susan says hi")
}

func TestEditProfile(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "john", "john@example.com", "cat-dog-fish")
	app.login(t, "john", "cat-dog-fish")

	w := app.do(t, http.MethodPost, "/edit_profile", url.Values{
		"username": {"johnny"},
		"about_me": {"I like Go."},
	})
	assert.Equal(t, http.StatusFound, w.Code)

	w = app.do(t, http.MethodGet, "/user/johnny", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Your profile has been updated")
	assert.Contains(t, body, "I like Go.")
}

func TestPasswordResetFlow(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "john", "john@example.com", "cat-dog-fish")

	w := app.do(t, http.MethodPost, "/reset_password_request", url.Values{
		"email": {"john@example.com"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	require.Len(t, app.mailer.calls, 1)
	call := app.mailer.calls[0]
	assert.Equal(t, "john", call.username)
	assert.Equal(t, "john@example.com", call.email)
	require.True(t, strings.HasPrefix(call.resetURL, "http://example.com/reset_password/"))

	w = app.do(t, http.MethodGet, "/login", nil)
	assert.Contains(t, w.Body.String(), "Check your email for instructions on resetting your password")

	token := strings.TrimPrefix(call.resetURL, "http://example.com/reset_password/")
	w = app.do(t, http.MethodGet, "/reset_password/"+token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodPost, "/reset_password/"+token, url.Values{
		"password":  {"new-pass-word"},
		"password2": {"new-pass-word"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Result().Header.Get("Location"))

	app.login(t, "john", "new-pass-word")
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/reset_password_request", url.Values{
		"email": {"ghost@example.com"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Result().Header.Get("Location"))
	assert.Empty(t, app.mailer.calls)
}

func TestResetPasswordRedirectsAuthenticated(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "john", "john@example.com", "cat-dog-fish")

	w := app.do(t, http.MethodPost, "/reset_password_request", url.Values{
		"email": {"john@example.com"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	require.Len(t, app.mailer.calls, 1)
	token := strings.TrimPrefix(app.mailer.calls[0].resetURL, "http://example.com/reset_password/")

	app.login(t, "john", "cat-dog-fish")

	// A signed-in user has no business on the reset form, even with a
	// valid token in hand.
	w = app.do(t, http.MethodGet, "/reset_password/"+token, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/index", w.Result().Header.Get("Location"))

	w = app.do(t, http.MethodPost, "/reset_password/"+token, url.Values{
		"password":  {"new-pass-word"},
		"password2": {"new-pass-word"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/index", w.Result().Header.Get("Location"))
}

func TestResetPasswordRejectsBadToken(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/reset_password/not-a-token", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/index", w.Result().Header.Get("Location"))
}

func TestLogoutClearsSession(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "john", "john@example.com", "cat-dog-fish")
	app.login(t, "john", "cat-dog-fish")

	w := app.do(t, http.MethodGet, "/logout", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Result().Header.Get("Location"))

	w = app.do(t, http.MethodGet, "/index", nil)
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestUnknownProfileRenders404(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/user/nobody", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Not Found")
}

func TestCrossOriginPostRejected(t *testing.T) {
	app := newTestApp(t)

	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=x&password=y"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	app.handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
