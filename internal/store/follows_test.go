// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"testing"
)

// TestFollowUnfollow mirrors the classic two-user follow scenario.
func TestFollowUnfollow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	john := mustCreateUser(t, s, "john", "john@example.com")
	susan := mustCreateUser(t, s, "susan", "susan@example.com")

	following, err := s.IsFollowing(ctx, john.ID, susan.ID)
	if err != nil {
		t.Fatalf("IsFollowing: %v", err)
	}
	if following {
		t.Error("fresh users already following")
	}

	if err := s.Follow(ctx, john.ID, susan.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}

	following, err = s.IsFollowing(ctx, john.ID, susan.ID)
	if err != nil {
		t.Fatalf("IsFollowing: %v", err)
	}
	if !following {
		t.Error("follow edge missing after Follow")
	}

	// Directionality: susan does not follow john.
	reverse, err := s.IsFollowing(ctx, susan.ID, john.ID)
	if err != nil {
		t.Fatalf("IsFollowing reverse: %v", err)
	}
	if reverse {
		t.Error("follow edge is not directional")
	}

	if n, _ := s.FollowingCount(ctx, john.ID); n != 1 {
		t.Errorf("john following count = %d, want 1", n)
	}
	if n, _ := s.FollowerCount(ctx, susan.ID); n != 1 {
		t.Errorf("susan follower count = %d, want 1", n)
	}
	if n, _ := s.FollowerCount(ctx, john.ID); n != 0 {
		t.Errorf("john follower count = %d, want 0", n)
	}

	if err := s.Unfollow(ctx, john.ID, susan.ID); err != nil {
		t.Fatalf("Unfollow: %v", err)
	}
	following, err = s.IsFollowing(ctx, john.ID, susan.ID)
	if err != nil {
		t.Fatalf("IsFollowing: %v", err)
	}
	if following {
		t.Error("follow edge remains after Unfollow")
	}
	if n, _ := s.FollowingCount(ctx, john.ID); n != 0 {
		t.Errorf("john following count after unfollow = %d, want 0", n)
	}
}

func TestFollowIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	john := mustCreateUser(t, s, "john", "john@example.com")
	susan := mustCreateUser(t, s, "susan", "susan@example.com")

	if err := s.Follow(ctx, john.ID, susan.ID); err != nil {
		t.Fatalf("first follow: %v", err)
	}
	if err := s.Follow(ctx, john.ID, susan.ID); err != nil {
		t.Fatalf("duplicate follow should be a no-op, got: %v", err)
	}
	if n, _ := s.FollowerCount(ctx, susan.ID); n != 1 {
		t.Errorf("follower count after duplicate follow = %d, want 1", n)
	}
}

func TestSelfFollowRejected(t *testing.T) {
	s := newTestStore(t)
	john := mustCreateUser(t, s, "john", "john@example.com")

	err := s.Follow(context.Background(), john.ID, john.ID)
	if !errors.Is(err, ErrSelfFollow) {
		t.Errorf("self follow error = %v, want ErrSelfFollow", err)
	}

	err = s.Unfollow(context.Background(), john.ID, john.ID)
	if !errors.Is(err, ErrSelfFollow) {
		t.Errorf("self unfollow error = %v, want ErrSelfFollow", err)
	}
}

func TestUnfollowWithoutEdgeIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	john := mustCreateUser(t, s, "john", "john@example.com")
	susan := mustCreateUser(t, s, "susan", "susan@example.com")

	if err := s.Unfollow(ctx, john.ID, susan.ID); err != nil {
		t.Errorf("unfollow without edge: %v", err)
	}
}
