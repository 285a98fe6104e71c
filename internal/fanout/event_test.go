package fanout

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventsSplitsTargets(t *testing.T) {
	followers := make([]string, 0, 2500)
	for i := 0; i < 2500; i++ {
		followers = append(followers, fmt.Sprintf("f%04d", i))
	}
	p := mkPost("p1", "author", 0)

	events := NewEvents(p, followers, 1000)

	require.Len(t, events, 3)
	assert.Len(t, events[0].TargetUserIDs, 1000)
	assert.Len(t, events[2].TargetUserIDs, 500)
	assert.Equal(t, "f2000", events[2].TargetUserIDs[0])
	for _, ev := range events {
		assert.Equal(t, EventTypeFeedWrite, ev.EventType)
		assert.Equal(t, "p1", ev.PostID)
		assert.NoError(t, ev.Validate())
	}
	assert.Empty(t, NewEvents(p, nil, 1000))
}

func TestEventRoundTripAndWireNames(t *testing.T) {
	ev := NewEvents(mkPost("p1", "author", 0), []string{"u1", "u2"}, 10)[0]

	body, err := ev.Encode()
	require.NoError(t, err)
	assert.Contains(t, body, `"event_type":"FeedWrite"`)
	assert.Contains(t, body, `"target_user_ids":["u1","u2"]`)
	assert.Contains(t, body, `"created_time":"2025-06-01T09:00:00Z"`)

	decoded, err := DecodeEvent(body)
	require.NoError(t, err)
	assert.Equal(t, ev, decoded)
}

func TestEventValidate(t *testing.T) {
	valid := FanoutEvent{
		EventType:     EventTypeFeedWrite,
		AuthorID:      "a1",
		TargetUserIDs: []string{"u1"},
		CreatedTime:   t0,
	}

	tests := []struct {
		name   string
		mutate func(e *FanoutEvent)
	}{
		{"wrong type", func(e *FanoutEvent) { e.EventType = "FeedDelete" }},
		{"missing author", func(e *FanoutEvent) { e.AuthorID = "" }},
		{"no targets", func(e *FanoutEvent) { e.TargetUserIDs = nil }},
		{"missing time", func(e *FanoutEvent) { e.CreatedTime = time.Time{} }},
	}
	assert.NoError(t, valid.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := valid
			tt.mutate(&ev)
			assert.ErrorIs(t, ev.Validate(), ErrInvalidEvent)
		})
	}

	_, err := DecodeEvent("{not json")
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestResolvedPostIDIsDeterministic(t *testing.T) {
	ev := FanoutEvent{EventType: EventTypeFeedWrite, AuthorID: "a1", Content: "hello", CreatedTime: t0, TargetUserIDs: []string{"u1"}}

	first := ev.ResolvedPostID()
	assert.Equal(t, first, ev.ResolvedPostID())
	assert.Len(t, first, 36)

	other := ev
	other.Content = "hello!"
	assert.NotEqual(t, first, other.ResolvedPostID())

	ev.PostID = "explicit"
	assert.Equal(t, "explicit", ev.ResolvedPostID())

	p := ev.Post("Alice")
	assert.Equal(t, "explicit", p.ID)
	assert.Equal(t, "Alice", p.AuthorName)
	assert.True(t, p.CreatedAt.Equal(t0))
}
