// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const userColumns = `id, username, email, password_hash, about_me, last_seen`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var lastSeen sql.NullString
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.AboutMe, &lastSeen); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lastSeen.Valid {
		u.LastSeen = parseTime(lastSeen.String)
	}
	return &u, nil
}

// CreateUser inserts a new account. Uniqueness violations surface as
// ErrUsernameTaken or ErrEmailTaken.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, about_me, last_seen)
		 VALUES (?, ?, ?, '', ?)`,
		username, email, passwordHash, formatTime(now),
	)
	if err != nil {
		return nil, mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		LastSeen:     now.UTC(),
	}, nil
}

// UserByID fetches a user by primary key.
func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// UserByUsername fetches a user by exact username.
func (s *Store) UserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// UserByEmail fetches a user by exact email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// UpdateProfile changes username and about_me. A username collision with
// another account surfaces as ErrUsernameTaken.
func (s *Store) UpdateProfile(ctx context.Context, id int64, username, aboutMe string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = ?, about_me = ? WHERE id = ?`,
		username, aboutMe, id,
	)
	if err != nil {
		return mapConstraintErr(err)
	}
	return requireRow(res)
}

// TouchLastSeen stamps the user's last activity time.
func (s *Store) TouchLastSeen(ctx context.Context, id int64, t time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_seen = ? WHERE id = ?`, formatTime(t), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
