// Package publish accepts new posts: it stores the post first, then queues
// fan-out events carrying the author's followers in fixed-size batches.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/fanout"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/follow"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/logs"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/metrics"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/post"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/queue"
)

const (
	DefaultBatchSize = 1000
	MaxContentLength = 5000
)

var ErrInvalidPost = errors.New("invalid post")

type Publisher struct {
	posts     post.Store
	graph     follow.Graph
	queue     queue.Queue
	strategy  fanout.Strategy
	batchSize int
	now       func() time.Time
}

func NewPublisher(posts post.Store, graph follow.Graph, q queue.Queue, strategy fanout.Strategy, batchSize int) *Publisher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Publisher{
		posts:     posts,
		graph:     graph,
		queue:     q,
		strategy:  strategy,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Publish stores a new post and queues its fan-out. The post is durable
// before any event is sent, so consumers always find it. A post the strategy
// does not fan out is stored as pull-only. A failure while
// queueing returns the stored post together with the error; events already
// sent stay valid.
func (p *Publisher) Publish(ctx context.Context, authorID, content string) (post.Post, error) {
	authorID = strings.TrimSpace(authorID)
	if authorID == "" {
		return post.Post{}, fmt.Errorf("%w: author_id is required", ErrInvalidPost)
	}
	if strings.TrimSpace(content) == "" {
		return post.Post{}, fmt.Errorf("%w: content is required", ErrInvalidPost)
	}
	if len(content) > MaxContentLength {
		return post.Post{}, fmt.Errorf("%w: content exceeds %d bytes", ErrInvalidPost, MaxContentLength)
	}

	fanoutNeeded, err := fanout.ShouldFanout(ctx, p.strategy, authorID)
	if err != nil {
		return post.Post{}, err
	}

	newPost := post.Post{
		ID:        uuid.New().String(),
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: p.now().UTC(),
		PullOnly:  !fanoutNeeded,
	}
	if err := p.posts.Put(ctx, newPost); err != nil {
		return post.Post{}, fmt.Errorf("failed to store post: %w", err)
	}

	if !fanoutNeeded {
		metrics.PostsPublished.WithLabelValues("skipped").Inc()
		logs.LogJSON(logs.LevelInfo, "Post stored without fan-out", map[string]interface{}{
			"postID":   newPost.ID,
			"authorID": authorID,
			"strategy": p.strategy.Name(),
		})
		return newPost, nil
	}

	followers, err := p.graph.GetFollowers(ctx, authorID)
	if err != nil {
		return newPost, &fanout.CollaboratorError{Collaborator: "follower-graph", Op: "followers", Err: err}
	}

	events := fanout.NewEvents(newPost, followers, p.batchSize)
	for i, ev := range events {
		body, err := ev.Encode()
		if err != nil {
			return newPost, err
		}
		if err := p.queue.Send(ctx, body); err != nil {
			return newPost, fmt.Errorf("failed to queue batch %d of post %s: %w", i+1, newPost.ID, err)
		}
	}

	metrics.PostsPublished.WithLabelValues("queued").Inc()
	logs.LogJSON(logs.LevelInfo, "Post published", map[string]interface{}{
		"postID":    newPost.ID,
		"authorID":  authorID,
		"followers": len(followers),
		"events":    len(events),
	})
	return newPost, nil
}
