// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sozzifer/microblog/internal/log"
)

// Migration is one ordered schema change. Each runs in its own
// transaction and is recorded in schema_migrations.
type Migration struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, tx *sql.Tx) error
}

// AppliedMigration matches the schema_migrations table schema.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
}

func execAll(ctx context.Context, tx *sql.Tx, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

// migrations is the ordered schema history. Never reorder or edit an
// entry after it has shipped; append a new version instead.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "users and posts tables",
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			return execAll(ctx, tx,
				`CREATE TABLE users (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					username TEXT NOT NULL,
					email TEXT NOT NULL,
					password_hash TEXT NOT NULL
				)`,
				`CREATE UNIQUE INDEX idx_users_username ON users(username)`,
				`CREATE UNIQUE INDEX idx_users_email ON users(email)`,
				`CREATE TABLE posts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					body TEXT NOT NULL,
					timestamp TEXT NOT NULL,
					user_id INTEGER NOT NULL REFERENCES users(id)
				)`,
				`CREATE INDEX idx_posts_timestamp ON posts(timestamp)`,
			)
		},
	},
	{
		Version: 2,
		Name:    "about_me and last_seen on users",
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			return execAll(ctx, tx,
				`ALTER TABLE users ADD COLUMN about_me TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE users ADD COLUMN last_seen TEXT`,
			)
		},
	},
	{
		Version: 3,
		Name:    "followers association table",
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			return execAll(ctx, tx,
				`CREATE TABLE followers (
					follower_id INTEGER NOT NULL REFERENCES users(id),
					followed_id INTEGER NOT NULL REFERENCES users(id),
					PRIMARY KEY (follower_id, followed_id)
				)`,
			)
		},
	},
}

// Migrations returns the full ordered schema history.
func Migrations() []Migration {
	out := make([]Migration, len(migrations))
	copy(out, migrations)
	return out
}

func (s *Store) ensureHistoryTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`)
	return err
}

func (s *Store) appliedVersions(ctx context.Context) (map[int]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]struct{})
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = struct{}{}
	}
	return applied, rows.Err()
}

// Pending returns the migrations that have not been applied yet, in order.
func (s *Store) Pending(ctx context.Context) ([]Migration, error) {
	if err := s.ensureHistoryTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure history table: %w", err)
	}
	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read applied versions: %w", err)
	}
	var pending []Migration
	for _, m := range migrations {
		if _, ok := applied[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Migrate applies all pending migrations and returns how many ran.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	logger := log.WithComponent("store")

	pending, err := s.Pending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		logger.Debug().Msg("schema up to date")
		return 0, nil
	}

	for _, m := range pending {
		if err := s.applyOne(ctx, m); err != nil {
			return 0, fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		logger.Info().
			Int("version", m.Version).
			Str("name", m.Name).
			Msg("applied migration")
	}
	return len(pending), nil
}

func (s *Store) applyOne(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := m.Apply(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Name, formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// History returns the applied migrations, oldest first.
func (s *Store) History(ctx context.Context) ([]AppliedMigration, error) {
	if err := s.ensureHistoryTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure history table: %w", err)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []AppliedMigration
	for rows.Next() {
		var rec AppliedMigration
		var appliedAt string
		if err := rows.Scan(&rec.Version, &rec.Name, &appliedAt); err != nil {
			return nil, err
		}
		rec.AppliedAt = parseTime(appliedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
