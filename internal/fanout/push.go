package fanout

import (
	"context"
	"errors"

	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/logs"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/metrics"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/post"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/timeline"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/user"
)

const (
	NamePush = "push"
	// Entries per Upsert call. 25 is the DynamoDB batch limit; every backend uses it.
	pushBatchSize = 25
)

// PushStrategy writes each post into every follower's timeline at publish
// time and serves reads straight from the owner's partition.
type PushStrategy struct {
	store    timeline.Store
	profiles user.Directory
}

func NewPushStrategy(store timeline.Store, profiles user.Directory) *PushStrategy {
	return &PushStrategy{store: store, profiles: profiles}
}

func (s *PushStrategy) Name() string {
	return NamePush
}

func (s *PushStrategy) ShouldFanout(ctx context.Context, authorID string) (bool, error) {
	return true, nil
}

func (s *PushStrategy) GetTimeline(ctx context.Context, userID string, limit int) (*Page, error) {
	limit = NormalizeLimit(limit)
	entries, err := s.store.QueryByOwner(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return newPage(entries), nil
}

// PublishPost upserts one entry per distinct follower. Entries are keyed on
// (follower, post id), so a repeated call leaves the store unchanged.
func (s *PushStrategy) PublishPost(ctx context.Context, p post.Post, followerIDs []string) error {
	followers := distinctIDs(followerIDs)
	if len(followers) == 0 {
		return nil
	}

	authorName, err := s.authorName(ctx, p)
	if err != nil {
		return err
	}

	entries := make([]timeline.Entry, 0, len(followers))
	for _, followerID := range followers {
		entries = append(entries, timeline.FromPost(followerID, p, authorName))
	}

	for start := 0; start < len(entries); start += pushBatchSize {
		end := min(start+pushBatchSize, len(entries))
		if err := s.store.Upsert(ctx, entries[start:end]); err != nil {
			logs.LogJSON(logs.LevelError, "Timeline batch write failed", map[string]interface{}{
				"postID":  p.ID,
				"batch":   start / pushBatchSize,
				"written": start,
				"total":   len(entries),
				"error":   err,
			})
			return &StoreWriteError{PostID: p.ID, Err: err}
		}
		metrics.EntriesWritten.WithLabelValues(NamePush).Add(float64(end - start))
	}
	return nil
}

// authorName prefers the name carried by the post and falls back to the directory.
func (s *PushStrategy) authorName(ctx context.Context, p post.Post) (string, error) {
	if p.AuthorName != "" {
		return p.AuthorName, nil
	}
	name, err := s.profiles.GetDisplayName(ctx, p.AuthorID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return "", err
		}
		return "", profileError("display name", err)
	}
	return name, nil
}

func distinctIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
