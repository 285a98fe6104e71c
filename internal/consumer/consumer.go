// Package consumer applies fan-out events from the queue to the timeline
// store: receive, validate, write through the active strategy, acknowledge.
//
// A message is acknowledged only after its writes succeed. Events that can
// never succeed are acknowledged and dropped; every other failure leaves the
// message in the queue, to be redelivered after its visibility timeout.
// Writes are idempotent, so a redelivery after a lost acknowledgement is
// harmless.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/fanout"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/logs"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/metrics"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/post"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/queue"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/user"
)

const (
	DefaultWorkers      = 1
	DefaultPollInterval = time.Second
)

var ErrPostNotVisible = errors.New("post not yet visible")

type Options struct {
	Workers      int
	PollInterval time.Duration
}

type Consumer struct {
	queue        queue.Queue
	strategy     fanout.Strategy
	posts        post.Store
	profiles     user.Directory
	workers      int
	pollInterval time.Duration
}

func New(q queue.Queue, strategy fanout.Strategy, posts post.Store, profiles user.Directory, opts Options) *Consumer {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Consumer{
		queue:        q,
		strategy:     strategy,
		posts:        posts,
		profiles:     profiles,
		workers:      opts.Workers,
		pollInterval: opts.PollInterval,
	}
}

// Run starts the worker loops and blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	logs.LogJSON(logs.LevelInfo, "Fan-out consumer started", map[string]interface{}{
		"workers":  c.workers,
		"strategy": c.strategy.Name(),
	})

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			c.loop(ctx, worker)
		}(i)
	}
	wg.Wait()

	logs.LogJSON(logs.LevelInfo, "Fan-out consumer stopped", nil)
}

func (c *Consumer) loop(ctx context.Context, worker int) {
	for ctx.Err() == nil {
		received, err := c.ProcessOne(ctx)
		if err != nil && ctx.Err() == nil && !received {
			logs.LogJSON(logs.LevelError, "Failed to receive fan-out event", map[string]interface{}{
				"worker": worker,
				"error":  err,
			})
		}
		if !received {
			c.wait(ctx)
		}
	}
}

func (c *Consumer) wait(ctx context.Context) {
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// ProcessOne receives and handles at most one message. received is false
// when the queue had nothing to hand out. A non-nil error with received set
// means the message was left for redelivery.
func (c *Consumer) ProcessOne(ctx context.Context) (received bool, err error) {
	msg, err := c.queue.Receive(ctx)
	if err != nil {
		return false, err
	}
	if msg == nil {
		return false, nil
	}

	err = c.handle(ctx, msg)
	switch {
	case err == nil:
		metrics.FanoutEvents.WithLabelValues("acked").Inc()
	case errors.Is(err, fanout.ErrInvalidEvent):
		logs.LogJSON(logs.LevelError, "Dropping invalid fan-out event", map[string]interface{}{
			"messageID": msg.ID,
			"error":     err,
		})
		metrics.FanoutEvents.WithLabelValues("dropped").Inc()
		return true, c.acknowledge(ctx, msg)
	default:
		logs.LogJSON(logs.LevelWarn, "Fan-out event left for redelivery", map[string]interface{}{
			"messageID":    msg.ID,
			"receiveCount": msg.ReceiveCount,
			"error":        err,
		})
		metrics.FanoutEvents.WithLabelValues("retry").Inc()
		return true, err
	}
	return true, c.acknowledge(ctx, msg)
}

func (c *Consumer) acknowledge(ctx context.Context, msg *queue.Message) error {
	if err := c.queue.Acknowledge(ctx, msg.ReceiptHandle); err != nil {
		logs.LogJSON(logs.LevelError, "Failed to acknowledge fan-out event", map[string]interface{}{
			"messageID": msg.ID,
			"error":     err,
		})
		return err
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg *queue.Message) error {
	ev, err := fanout.DecodeEvent(msg.Body)
	if err != nil {
		return err
	}
	if err := ev.Validate(); err != nil {
		return err
	}

	authorName, err := c.profiles.GetDisplayName(ctx, ev.AuthorID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return fmt.Errorf("%w: unknown author %s", fanout.ErrInvalidEvent, ev.AuthorID)
		}
		return fmt.Errorf("failed to get author info: %w", err)
	}

	p, err := c.resolvePost(ctx, ev, authorName)
	if err != nil {
		return err
	}

	if err := c.strategy.PublishPost(ctx, p, ev.TargetUserIDs); err != nil {
		return fmt.Errorf("failed to fanout post %s: %w", p.ID, err)
	}

	logs.LogJSON(logs.LevelDebug, "Fan-out event applied", map[string]interface{}{
		"messageID": msg.ID,
		"postID":    p.ID,
		"targets":   len(ev.TargetUserIDs),
	})
	return nil
}

// resolvePost returns the stored post an event refers to. Events without a
// post id come from producers that never stored the post, so it is stored
// here under its derived id.
func (c *Consumer) resolvePost(ctx context.Context, ev fanout.FanoutEvent, authorName string) (post.Post, error) {
	if ev.PostID == "" {
		p := ev.Post(authorName)
		if err := c.posts.Put(ctx, p); err != nil {
			return post.Post{}, fmt.Errorf("failed to store post %s: %w", p.ID, err)
		}
		return p, nil
	}

	p, err := c.posts.Get(ctx, ev.PostID)
	if err != nil {
		if errors.Is(err, post.ErrPostNotFound) {
			return post.Post{}, fmt.Errorf("%w: %s", ErrPostNotVisible, ev.PostID)
		}
		return post.Post{}, fmt.Errorf("failed to get post %s: %w", ev.PostID, err)
	}
	p.AuthorName = authorName
	return p, nil
}
