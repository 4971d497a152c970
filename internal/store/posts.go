// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"time"
)

const postColumns = `p.id, p.body, p.timestamp, p.user_id, u.username, u.email`

// CreatePost inserts a status update for the given author.
func (s *Store) CreatePost(ctx context.Context, userID int64, body string) (*Post, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (body, timestamp, user_id) VALUES (?, ?, ?)`,
		body, formatTime(now), userID,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Post{ID: id, Body: body, CreatedAt: now.UTC(), UserID: userID}, nil
}

// PostsByUser returns one page of a user's posts, newest first, along
// with the total count for pagination.
func (s *Store) PostsByUser(ctx context.Context, userID int64, page, perPage int) ([]Post, int, error) {
	const where = `WHERE p.user_id = ?`
	return s.queryPosts(ctx, where, []any{userID}, page, perPage)
}

// AllPosts returns one page of every post in the system, newest first.
func (s *Store) AllPosts(ctx context.Context, page, perPage int) ([]Post, int, error) {
	return s.queryPosts(ctx, "", nil, page, perPage)
}

// Feed returns one page of the posts the user follows, including the
// user's own posts, newest first.
func (s *Store) Feed(ctx context.Context, userID int64, page, perPage int) ([]Post, int, error) {
	const where = `WHERE p.user_id = ?
		OR p.user_id IN (SELECT followed_id FROM followers WHERE follower_id = ?)`
	return s.queryPosts(ctx, where, []any{userID, userID}, page, perPage)
}

func (s *Store) queryPosts(ctx context.Context, where string, args []any, page, perPage int) ([]Post, int, error) {
	page = clampPage(page)
	if perPage < 1 {
		perPage = 1
	}

	countQuery := `SELECT COUNT(*) FROM posts p ` + where
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	query := `SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id ` + where + `
		ORDER BY p.timestamp DESC, p.id DESC
		LIMIT ? OFFSET ?`
	queryArgs := append(append([]any{}, args...), perPage, (page-1)*perPage)

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var posts []Post
	for rows.Next() {
		var p Post
		var ts string
		if err := rows.Scan(&p.ID, &p.Body, &ts, &p.UserID, &p.Author, &p.AuthorEmail); err != nil {
			return nil, 0, err
		}
		p.CreatedAt = parseTime(ts)
		posts = append(posts, p)
	}
	return posts, total, rows.Err()
}
