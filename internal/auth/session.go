// SPDX-License-Identifier: MIT

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sozzifer/microblog/internal/cache"
	"github.com/sozzifer/microblog/internal/log"
)

// CookieName is the browser session cookie.
const CookieName = "microblog_session"

// sessionIDPrefix marks session IDs in logs and cookies so a leaked value
// is recognizable without revealing anything else.
const sessionIDPrefix = "mbs_"

// cacheKeyPrefix namespaces session records in the shared cache.
const cacheKeyPrefix = "sess:"

// ErrNoSession indicates the request carries no valid session.
var ErrNoSession = errors.New("no session")

// Flash is a one-shot message queued on the session and drained on the
// next page render.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Session is the server-side record behind the session cookie.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Remember  bool      `json:"remember"`
	Flashes   []Flash   `json:"flashes,omitempty"`
}

// Sessions manages server-side session records in a TTL cache. The cache
// backend (memory or Redis) is chosen at startup.
type Sessions struct {
	cache       cache.Cache
	sessionTTL  time.Duration
	rememberTTL time.Duration
}

// NewSessions creates a session manager.
func NewSessions(c cache.Cache, sessionTTL, rememberTTL time.Duration) *Sessions {
	return &Sessions{cache: c, sessionTTL: sessionTTL, rememberTTL: rememberTTL}
}

// Create starts a new session for the user and returns the record.
func (s *Sessions) Create(userID int64, username string, remember bool) (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	ttl := s.sessionTTL
	if remember {
		ttl = s.rememberTTL
	}
	sess := &Session{
		ID:        id,
		UserID:    userID,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Remember:  remember,
	}
	if err := s.put(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads the session record for the given ID.
func (s *Sessions) Get(id string) (*Session, error) {
	if !strings.HasPrefix(id, sessionIDPrefix) {
		return nil, ErrNoSession
	}
	raw, ok := s.cache.Get(cacheKeyPrefix + id)
	if !ok {
		return nil, ErrNoSession
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		// Corrupt record: drop it rather than keep failing.
		s.cache.Delete(cacheKeyPrefix + id)
		return nil, ErrNoSession
	}
	if time.Now().After(sess.ExpiresAt) {
		s.cache.Delete(cacheKeyPrefix + id)
		return nil, ErrNoSession
	}
	return &sess, nil
}

// Delete destroys the session record.
func (s *Sessions) Delete(id string) {
	s.cache.Delete(cacheKeyPrefix + id)
}

// PushFlash queues a one-shot message on the session.
func (s *Sessions) PushFlash(id, category, message string) {
	sess, err := s.Get(id)
	if err != nil {
		return
	}
	sess.Flashes = append(sess.Flashes, Flash{Category: category, Message: message})
	if err := s.put(sess); err != nil {
		logger := log.WithComponent("auth")
		logger.Warn().Err(err).Msg("persist flash message")
	}
}

// PopFlashes drains and returns the queued flash messages.
func (s *Sessions) PopFlashes(id string) []Flash {
	sess, err := s.Get(id)
	if err != nil || len(sess.Flashes) == 0 {
		return nil
	}
	flashes := sess.Flashes
	sess.Flashes = nil
	if err := s.put(sess); err != nil {
		logger := log.WithComponent("auth")
		logger.Warn().Err(err).Msg("drain flash messages")
	}
	return flashes
}

// put stores the record with its remaining lifetime as the cache TTL so
// the cache expiry and ExpiresAt agree.
func (s *Sessions) put(sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		s.cache.Delete(cacheKeyPrefix + sess.ID)
		return ErrNoSession
	}
	s.cache.Set(cacheKeyPrefix+sess.ID, raw, ttl)
	return nil
}

func newSessionID() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return sessionIDPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// SetCookie writes the session cookie. Remember-me sessions get a
// persistent cookie; otherwise it lives for the browser session only.
func SetCookie(w http.ResponseWriter, sess *Session) {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if sess.Remember {
		c.MaxAge = int(time.Until(sess.ExpiresAt).Seconds())
	}
	http.SetCookie(w, c)
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionIDFromRequest extracts the session ID from the request cookie.
func SessionIDFromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	if !strings.HasPrefix(c.Value, sessionIDPrefix) {
		return "", false
	}
	return c.Value, true
}
