package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/fanout"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/post"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/queue"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/timeline"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/user"
)

var created = time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)

// flakyStore fails the first failures Upsert calls.
type flakyStore struct {
	*timeline.MemoryStore
	failures atomic.Int32
}

func (s *flakyStore) Upsert(ctx context.Context, entries []timeline.Entry) error {
	if s.failures.Load() > 0 {
		s.failures.Add(-1)
		return errors.New("write timeout")
	}
	return s.MemoryStore.Upsert(ctx, entries)
}

type env struct {
	queue    *queue.MemoryQueue
	posts    *post.MemoryStore
	store    *flakyStore
	profiles *user.MemoryDirectory
	consumer *Consumer
}

func newEnv(visibility time.Duration) *env {
	e := &env{
		queue:    queue.NewMemoryQueue(visibility),
		posts:    post.NewMemoryStore(),
		store:    &flakyStore{MemoryStore: timeline.NewMemoryStore()},
		profiles: user.NewMemoryDirectory(),
	}
	e.profiles.Set("author", "alice")
	push := fanout.NewPushStrategy(e.store, e.profiles)
	e.consumer = New(e.queue, push, e.posts, e.profiles, Options{Workers: 2, PollInterval: time.Millisecond})
	return e
}

func (e *env) publish(t *testing.T, p post.Post, targets ...string) string {
	t.Helper()
	require.NoError(t, e.posts.Put(context.Background(), p))
	body, err := fanout.NewEvents(p, targets, 1000)[0].Encode()
	require.NoError(t, err)
	require.NoError(t, e.queue.Send(context.Background(), body))
	return body
}

func samplePost() post.Post {
	return post.Post{ID: "p1", AuthorID: "author", Content: "hello", CreatedAt: created}
}

func TestProcessOneWritesAndAcknowledges(t *testing.T) {
	ctx := context.Background()
	e := newEnv(time.Minute)
	e.publish(t, samplePost(), "u1", "u2", "u3")

	received, err := e.consumer.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, received)
	assert.Equal(t, 0, e.queue.Len())
	assert.Equal(t, 3, e.store.Len())

	entries, err := e.store.QueryByOwner(ctx, "u2", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].AuthorName)
	assert.Equal(t, "hello", entries[0].Content)

	received, err = e.consumer.ProcessOne(ctx)
	require.NoError(t, err)
	assert.False(t, received)
}

func TestDuplicateDeliveryWritesOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(time.Minute)
	body := e.publish(t, samplePost(), "u1", "u2")
	require.NoError(t, e.queue.Send(ctx, body))

	for i := 0; i < 2; i++ {
		_, err := e.consumer.ProcessOne(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, 0, e.queue.Len())
	assert.Equal(t, 2, e.store.Len())
	assert.Equal(t, 4, e.store.Writes())
	entries, err := e.store.QueryByOwner(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFailedWriteIsRedelivered(t *testing.T) {
	ctx := context.Background()
	e := newEnv(5 * time.Millisecond)
	e.store.failures.Store(1)
	e.publish(t, samplePost(), "u1")

	received, err := e.consumer.ProcessOne(ctx)
	assert.True(t, received)
	assert.ErrorIs(t, err, fanout.ErrStoreWrite)
	assert.Equal(t, 1, e.queue.Len(), "message stays queued")
	assert.Equal(t, 0, e.store.Len())

	time.Sleep(10 * time.Millisecond)

	received, err = e.consumer.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, received)
	assert.Equal(t, 0, e.queue.Len())
	assert.Equal(t, 1, e.store.Len())
}

func TestInvalidEventsAreDropped(t *testing.T) {
	valid := fanout.FanoutEvent{
		EventType:     fanout.EventTypeFeedWrite,
		PostID:        "p1",
		AuthorID:      "author",
		TargetUserIDs: []string{"u1"},
		Content:       "hello",
		CreatedTime:   created,
	}
	encode := func(mutate func(ev *fanout.FanoutEvent)) string {
		ev := valid
		mutate(&ev)
		body, err := ev.Encode()
		require.NoError(t, err)
		return body
	}

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"event_type":`},
		{"wrong event type", encode(func(ev *fanout.FanoutEvent) { ev.EventType = "FeedDelete" })},
		{"no targets", encode(func(ev *fanout.FanoutEvent) { ev.TargetUserIDs = nil })},
		{"unknown author", encode(func(ev *fanout.FanoutEvent) { ev.AuthorID = "ghost" })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := newEnv(time.Minute)
			require.NoError(t, e.posts.Put(ctx, samplePost()))
			require.NoError(t, e.queue.Send(ctx, tt.body))

			received, err := e.consumer.ProcessOne(ctx)
			require.NoError(t, err)
			assert.True(t, received)
			assert.Equal(t, 0, e.queue.Len(), "invalid event is acknowledged")
			assert.Equal(t, 0, e.store.Writes())
		})
	}
}

func TestEventForMissingPostIsNotAcknowledged(t *testing.T) {
	ctx := context.Background()
	e := newEnv(time.Minute)
	body, err := fanout.NewEvents(samplePost(), []string{"u1"}, 1000)[0].Encode()
	require.NoError(t, err)
	require.NoError(t, e.queue.Send(ctx, body))

	received, err := e.consumer.ProcessOne(ctx)
	assert.True(t, received)
	assert.ErrorIs(t, err, ErrPostNotVisible)
	assert.Equal(t, 1, e.queue.Len())
	assert.Equal(t, 0, e.store.Writes())
}

func TestEventWithoutPostIDIsStoredUnderDerivedID(t *testing.T) {
	ctx := context.Background()
	e := newEnv(time.Minute)
	ev := fanout.FanoutEvent{
		EventType:     fanout.EventTypeFeedWrite,
		AuthorID:      "author",
		TargetUserIDs: []string{"u1"},
		Content:       "legacy",
		CreatedTime:   created,
	}
	body, err := ev.Encode()
	require.NoError(t, err)
	require.NoError(t, e.queue.Send(ctx, body))
	require.NoError(t, e.queue.Send(ctx, body))

	for i := 0; i < 2; i++ {
		_, err := e.consumer.ProcessOne(ctx)
		require.NoError(t, err)
	}

	stored, err := e.posts.Get(ctx, ev.ResolvedPostID())
	require.NoError(t, err)
	assert.Equal(t, "legacy", stored.Content)

	entries, err := e.store.QueryByOwner(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ev.ResolvedPostID(), entries[0].PostID)
}

func TestRunDrainsQueueUntilCancelled(t *testing.T) {
	e := newEnv(time.Minute)
	for i := 0; i < 10; i++ {
		p := samplePost()
		p.ID = fmt.Sprintf("p%02d", i)
		p.CreatedAt = created.Add(time.Duration(i) * time.Second)
		e.publish(t, p, "u1", "u2")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.consumer.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return e.queue.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
	assert.Equal(t, 20, e.store.Len())
}
