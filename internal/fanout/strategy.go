package fanout

import (
	"context"

	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/post"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/timeline"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
	// Pull reads ask each author for at least this many posts.
	minPerUserLimit = 10
)

// Page is one timeline read.
type Page struct {
	Entries    []timeline.Entry `json:"entries"`
	TotalCount int              `json:"total_count"`
	// Degraded is set when some followed users could not be read.
	Degraded bool `json:"degraded,omitempty"`
}

func newPage(entries []timeline.Entry) *Page {
	if entries == nil {
		entries = []timeline.Entry{}
	}
	return &Page{Entries: entries, TotalCount: len(entries)}
}

// Strategy is a fan-out algorithm: how posts reach timelines and how
// timelines are read back.
type Strategy interface {
	Name() string
	// GetTimeline returns at most limit entries, newest first.
	GetTimeline(ctx context.Context, userID string, limit int) (*Page, error)
	// PublishPost materializes p for followerIDs, or does nothing when the
	// strategy defers to read time. Repeating a call is safe.
	PublishPost(ctx context.Context, p post.Post, followerIDs []string) error
}

// Planner is implemented by strategies that can tell, before any event is
// queued, whether PublishPost would write anything for an author.
type Planner interface {
	ShouldFanout(ctx context.Context, authorID string) (bool, error)
}

// ShouldFanout asks s whether posts of authorID need fan-out events.
// Strategies without a Planner always get them.
func ShouldFanout(ctx context.Context, s Strategy, authorID string) (bool, error) {
	if p, ok := s.(Planner); ok {
		return p.ShouldFanout(ctx, authorID)
	}
	return true, nil
}

// NormalizeLimit applies the default and the cap to a requested page size.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
