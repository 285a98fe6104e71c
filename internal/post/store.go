package post

import (
	"context"
	"errors"
)

var ErrPostNotFound = errors.New("post not found")

// Store is the post store: one row per post, with an author/time index.
type Store interface {
	Put(ctx context.Context, p Post) error
	Get(ctx context.Context, postID string) (Post, error)
	// QueryByAuthor returns at most limit posts of the author, newest first.
	QueryByAuthor(ctx context.Context, authorID string, limit int) ([]Post, error)
	// MarkPullOnly records that the post was not written to follower
	// timelines, so readers have to pull it.
	MarkPullOnly(ctx context.Context, postID string) error
	// AuthorsWithPullOnly returns the subset of authorIDs that have at least
	// one pull-only post.
	AuthorsWithPullOnly(ctx context.Context, authorIDs []string) ([]string, error)
}
