// SPDX-License-Identifier: MIT

package store

import "context"

// Follow records that follower now follows followed. Following a user
// twice is a no-op; following yourself is rejected.
func (s *Store) Follow(ctx context.Context, followerID, followedID int64) error {
	if followerID == followedID {
		return ErrSelfFollow
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO followers (follower_id, followed_id) VALUES (?, ?)
		 ON CONFLICT(follower_id, followed_id) DO NOTHING`,
		followerID, followedID,
	)
	return err
}

// Unfollow removes the follow edge. Unfollowing someone you do not
// follow is a no-op; unfollowing yourself is rejected like Follow.
func (s *Store) Unfollow(ctx context.Context, followerID, followedID int64) error {
	if followerID == followedID {
		return ErrSelfFollow
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM followers WHERE follower_id = ? AND followed_id = ?`,
		followerID, followedID,
	)
	return err
}

// IsFollowing reports whether follower follows followed.
func (s *Store) IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM followers WHERE follower_id = ? AND followed_id = ?`,
		followerID, followedID,
	).Scan(&n)
	return n > 0, err
}

// FollowerCount returns how many users follow the given user.
func (s *Store) FollowerCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM followers WHERE followed_id = ?`, userID).Scan(&n)
	return n, err
}

// FollowingCount returns how many users the given user follows.
func (s *Store) FollowingCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM followers WHERE follower_id = ?`, userID).Scan(&n)
	return n, err
}
