package fanout

import (
	"context"
	"errors"

	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/fetch"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/follow"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/logs"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/post"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/timeline"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/user"
)

const NamePull = "pull"

// PullStrategy writes nothing at publish time and assembles timelines on read
// from the recent posts of every followed user.
type PullStrategy struct {
	graph    follow.Graph
	engine   *fetch.Engine
	profiles user.Directory
	// allowPartial serves whatever could be fetched, marked degraded, instead
	// of failing the read when some followed users are unavailable.
	allowPartial bool
}

func NewPullStrategy(graph follow.Graph, engine *fetch.Engine, profiles user.Directory, allowPartial bool) *PullStrategy {
	return &PullStrategy{graph: graph, engine: engine, profiles: profiles, allowPartial: allowPartial}
}

func (s *PullStrategy) Name() string {
	return NamePull
}

func (s *PullStrategy) ShouldFanout(ctx context.Context, authorID string) (bool, error) {
	return false, nil
}

// PublishPost is a no-op: pull timelines are computed at read time.
func (s *PullStrategy) PublishPost(ctx context.Context, p post.Post, followerIDs []string) error {
	return nil
}

func (s *PullStrategy) GetTimeline(ctx context.Context, userID string, limit int) (*Page, error) {
	limit = NormalizeLimit(limit)

	following, err := s.graph.GetFollowing(ctx, userID)
	if err != nil {
		return nil, graphError("following", err)
	}

	posts, degraded, err := s.pullPosts(ctx, following, limit)
	if err != nil {
		return nil, err
	}

	entries, err := s.toEntries(ctx, userID, posts)
	if err != nil {
		return nil, err
	}
	page := newPage(entries)
	page.Degraded = degraded
	return page, nil
}

// pullPosts merges the newest posts of authors into one list of at most limit
// posts. degraded reports that some authors failed and were left out.
func (s *PullStrategy) pullPosts(ctx context.Context, authors []string, limit int) ([]post.Post, bool, error) {
	if len(authors) == 0 {
		return nil, false, nil
	}
	perUser := max(limit, minPerUserLimit)

	if !s.allowPartial {
		byAuthor, err := s.engine.FetchRecent(ctx, authors, perUser)
		if err != nil {
			return nil, false, err
		}
		return mergeAuthors(byAuthor, limit), false, nil
	}

	byAuthor, err := s.engine.FetchRecentPartial(ctx, authors, perUser)
	degraded := false
	if err != nil {
		var partial *fetch.PartialError
		if !errors.As(err, &partial) {
			return nil, false, err
		}
		logs.LogJSON(logs.LevelWarn, "Serving degraded timeline", map[string]interface{}{
			"failed": len(partial.Failed),
			"total":  partial.Total,
		})
		degraded = true
	}
	return mergeAuthors(byAuthor, limit), degraded, nil
}

// toEntries attaches display names, looking up each distinct author once.
// Authors without a profile get an empty name.
func (s *PullStrategy) toEntries(ctx context.Context, ownerID string, posts []post.Post) ([]timeline.Entry, error) {
	names := make(map[string]string)
	entries := make([]timeline.Entry, 0, len(posts))
	for _, p := range posts {
		name, ok := names[p.AuthorID]
		if !ok {
			var err error
			name, err = s.profiles.GetDisplayName(ctx, p.AuthorID)
			if err != nil {
				if !errors.Is(err, user.ErrUserNotFound) {
					return nil, profileError("display name", err)
				}
				name = ""
			}
			names[p.AuthorID] = name
		}
		entries = append(entries, timeline.FromPost(ownerID, p, name))
	}
	return entries, nil
}
