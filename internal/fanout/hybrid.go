package fanout

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/fetch"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/follow"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/logs"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/post"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/timeline"
)

const (
	NameHybrid = "hybrid"

	DefaultCelebrityThreshold int64 = 50000
)

// HybridStrategy pushes posts of regular authors and pulls posts of
// celebrities at read time. An author is a celebrity when their follower
// count is at least threshold; the check runs when a post is published and
// earlier posts are never reclassified.
//
// A skipped push is recorded on the post (pull-only), and reads pull every
// followed author that has such posts, whatever their current count. A post
// published while its author was a celebrity therefore stays readable after
// the author drops below the threshold.
type HybridStrategy struct {
	push      *PushStrategy
	pull      *PullStrategy
	graph     follow.Graph
	posts     post.Store
	threshold int64
}

func NewHybridStrategy(push *PushStrategy, pull *PullStrategy, graph follow.Graph, posts post.Store, threshold int64) *HybridStrategy {
	if threshold <= 0 {
		threshold = DefaultCelebrityThreshold
	}
	return &HybridStrategy{push: push, pull: pull, graph: graph, posts: posts, threshold: threshold}
}

func (s *HybridStrategy) Name() string {
	return NameHybrid
}

func (s *HybridStrategy) Threshold() int64 {
	return s.threshold
}

func (s *HybridStrategy) IsCelebrity(ctx context.Context, authorID string) (bool, error) {
	count, err := s.graph.GetFollowerCount(ctx, authorID)
	if err != nil {
		return false, graphError("follower count", err)
	}
	return count >= s.threshold, nil
}

// ShouldFanout is false for celebrities, whose posts are only read by pull.
func (s *HybridStrategy) ShouldFanout(ctx context.Context, authorID string) (bool, error) {
	celebrity, err := s.IsCelebrity(ctx, authorID)
	if err != nil {
		return false, err
	}
	return !celebrity, nil
}

func (s *HybridStrategy) PublishPost(ctx context.Context, p post.Post, followerIDs []string) error {
	celebrity, err := s.IsCelebrity(ctx, p.AuthorID)
	if err != nil {
		return err
	}
	if celebrity {
		logs.LogJSON(logs.LevelDebug, "Skipping push for celebrity post", map[string]interface{}{
			"postID":   p.ID,
			"authorID": p.AuthorID,
		})
		if p.PullOnly {
			return nil
		}
		if err := s.posts.MarkPullOnly(ctx, p.ID); err != nil {
			return fmt.Errorf("failed to mark post %s pull-only: %w", p.ID, err)
		}
		return nil
	}
	return s.push.PublishPost(ctx, p, followerIDs)
}

// GetTimeline reads the owner's pushed entries and the pulled posts
// concurrently and merges the two sorted sequences.
func (s *HybridStrategy) GetTimeline(ctx context.Context, userID string, limit int) (*Page, error) {
	limit = NormalizeLimit(limit)

	var (
		pushed   []timeline.Entry
		pulled   []timeline.Entry
		degraded bool
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		page, err := s.push.GetTimeline(gctx, userID, limit)
		if err != nil {
			return err
		}
		pushed = page.Entries
		return nil
	})

	g.Go(func() error {
		authors, err := s.pulledAuthors(gctx, userID)
		if err != nil {
			return err
		}
		posts, partial, err := s.pull.pullPosts(gctx, authors, limit)
		if err != nil {
			return err
		}
		pulled, err = s.pull.toEntries(gctx, userID, posts)
		if err != nil {
			return err
		}
		degraded = partial
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	page := newPage(mergeEntries(pushed, pulled, limit))
	page.Degraded = degraded
	return page, nil
}

// pulledAuthors returns the users followed by userID whose posts are read by
// pull: current celebrities, plus authors with pull-only posts from a time
// they were celebrities. Counts are looked up through the fetch engine's
// bounded pool.
func (s *HybridStrategy) pulledAuthors(ctx context.Context, userID string) ([]string, error) {
	following, err := s.graph.GetFollowing(ctx, userID)
	if err != nil {
		return nil, graphError("following", err)
	}

	counts, err := fetch.Collect(ctx, s.pull.engine.MaxWorkers(), following, s.graph.GetFollowerCount)
	if err != nil {
		if errors.Is(err, fetch.ErrPartialFetch) {
			return nil, graphError("follower count", err)
		}
		return nil, err
	}

	authors := make([]string, 0, len(counts))
	var regular []string
	for _, id := range following {
		n, ok := counts[id]
		if !ok {
			continue
		}
		if n >= s.threshold {
			authors = append(authors, id)
		} else {
			regular = append(regular, id)
		}
	}

	formerCelebrities, err := s.posts.AuthorsWithPullOnly(ctx, regular)
	if err != nil {
		return nil, fmt.Errorf("failed to get pull-only authors: %w", err)
	}
	return append(authors, formerCelebrities...), nil
}
