// SPDX-License-Identifier: MIT

// Package store provides SQLite persistence for users, posts and the
// follower graph.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUsernameTaken indicates a username uniqueness violation.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrEmailTaken indicates an email uniqueness violation.
	ErrEmailTaken = errors.New("email already registered")
	// ErrSelfFollow indicates an attempt to follow oneself.
	ErrSelfFollow = errors.New("cannot follow yourself")
)

// User is an account row. LastSeen is zero when the user never loaded a page.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	AboutMe      string
	LastSeen     time.Time
}

// Post is a single status update. Author fields are joined from users
// for feed rendering.
type Post struct {
	ID          int64
	Body        string
	CreatedAt   time.Time
	UserID      int64
	Author      string
	AuthorEmail string
}

// Store provides SQLite persistence for the application.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath with the mandatory
// pragmas applied. Schema migrations are NOT run here; call Migrate or
// use the migrate command.
func Open(dbPath string) (*Store, error) {
	return OpenWith(dbPath, DefaultSQLiteConfig())
}

// OpenWith opens the database with explicit pool settings.
func OpenWith(dbPath string, cfg SQLiteConfig) (*Store, error) {
	db, err := openSQLite(dbPath, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// mapConstraintErr converts SQLite uniqueness violations into typed errors.
// The driver reports them as "UNIQUE constraint failed: <table>.<column>".
func mapConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "users.username"):
		return ErrUsernameTaken
	case strings.Contains(msg, "users.email"):
		return ErrEmailTaken
	}
	return err
}

// clampPage normalizes a 1-based page index.
func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// sqliteTimeLayout is RFC3339 with fixed-width nanoseconds. The zero
// padding keeps lexicographic ordering of the TEXT column identical to
// chronological ordering, which ORDER BY relies on.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
