// SPDX-License-Identifier: MIT

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sozzifer/microblog/internal/cache"
)

func newTestSessions(t *testing.T) *Sessions {
	t.Helper()
	c := cache.NewMemoryCache(time.Minute)
	return NewSessions(c, time.Hour, 24*time.Hour)
}

func TestSessionCreateAndGet(t *testing.T) {
	s := newTestSessions(t)
	sess, err := s.Create(1, "susan", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(sess.ID, sessionIDPrefix) {
		t.Errorf("session ID %q missing prefix", sess.ID)
	}

	got, err := s.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != 1 || got.Username != "susan" {
		t.Errorf("got %+v", got)
	}
	if got.Remember {
		t.Error("Remember should be false")
	}
}

func TestSessionRememberExtendsTTL(t *testing.T) {
	s := newTestSessions(t)
	short, err := s.Create(1, "susan", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	long, err := s.Create(1, "susan", true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !long.ExpiresAt.After(short.ExpiresAt) {
		t.Error("remember session should outlive plain session")
	}
}

func TestSessionDelete(t *testing.T) {
	s := newTestSessions(t)
	sess, err := s.Create(1, "susan", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.Delete(sess.ID)
	if _, err := s.Get(sess.ID); err != ErrNoSession {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestSessionGetUnknownID(t *testing.T) {
	s := newTestSessions(t)
	if _, err := s.Get("mbs_does-not-exist"); err != ErrNoSession {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
	if _, err := s.Get("wrong-prefix"); err != ErrNoSession {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestFlashQueue(t *testing.T) {
	s := newTestSessions(t)
	sess, err := s.Create(1, "susan", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got := s.PopFlashes(sess.ID); got != nil {
		t.Errorf("fresh session has flashes: %v", got)
	}

	s.PushFlash(sess.ID, "info", "Your post is now live!")
	s.PushFlash(sess.ID, "error", "Invalid username or password")

	got := s.PopFlashes(sess.ID)
	if len(got) != 2 {
		t.Fatalf("got %d flashes, want 2", len(got))
	}
	if got[0].Message != "Your post is now live!" || got[0].Category != "info" {
		t.Errorf("first flash = %+v", got[0])
	}

	// Popped exactly once.
	if got := s.PopFlashes(sess.ID); got != nil {
		t.Errorf("second pop returned %v", got)
	}
}

func TestSessionCookieRoundtrip(t *testing.T) {
	s := newTestSessions(t)
	sess, err := s.Create(1, "susan", true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec := httptest.NewRecorder()
	SetCookie(rec, sess)
	res := rec.Result()
	defer func() { _ = res.Body.Close() }()

	cookies := res.Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != CookieName {
		t.Errorf("cookie name = %q", c.Name)
	}
	if !c.HttpOnly {
		t.Error("cookie must be HttpOnly")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Error("cookie must be SameSite=Lax")
	}
	if c.MaxAge <= 0 {
		t.Error("remember cookie must be persistent")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	id, ok := SessionIDFromRequest(req)
	if !ok || id != sess.ID {
		t.Errorf("SessionIDFromRequest = %q, %v", id, ok)
	}
}

func TestSessionCookiePlainIsSessionScoped(t *testing.T) {
	s := newTestSessions(t)
	sess, err := s.Create(1, "susan", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec := httptest.NewRecorder()
	SetCookie(rec, sess)
	res := rec.Result()
	defer func() { _ = res.Body.Close() }()
	if res.Cookies()[0].MaxAge != 0 {
		t.Error("plain session cookie must not set Max-Age")
	}
}

func TestClearCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearCookie(rec)
	res := rec.Result()
	defer func() { _ = res.Body.Close() }()
	if res.Cookies()[0].MaxAge != -1 {
		t.Error("clear cookie must set MaxAge=-1")
	}
}
