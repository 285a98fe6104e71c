package fanout

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/post"
)

const EventTypeFeedWrite = "FeedWrite"

// postIDNamespace seeds the ids derived for events that carry no post id.
var postIDNamespace = uuid.MustParse("6f1c3a2e-8d4b-4f7a-9c55-2b0e7d91a4c3")

// FanoutEvent asks the consumer to write one post into the timelines of
// TargetUserIDs. A post with many followers is split over several events.
type FanoutEvent struct {
	EventType     string    `json:"event_type"`
	PostID        string    `json:"post_id,omitempty"`
	AuthorID      string    `json:"author_id"`
	TargetUserIDs []string  `json:"target_user_ids"`
	Content       string    `json:"content"`
	CreatedTime   time.Time `json:"created_time"`
}

// NewEvents splits followers into events of at most batchSize targets.
func NewEvents(p post.Post, followerIDs []string, batchSize int) []FanoutEvent {
	if batchSize <= 0 {
		batchSize = len(followerIDs)
	}
	var events []FanoutEvent
	for start := 0; start < len(followerIDs); start += batchSize {
		end := min(start+batchSize, len(followerIDs))
		targets := make([]string, end-start)
		copy(targets, followerIDs[start:end])
		events = append(events, FanoutEvent{
			EventType:     EventTypeFeedWrite,
			PostID:        p.ID,
			AuthorID:      p.AuthorID,
			TargetUserIDs: targets,
			Content:       p.Content,
			CreatedTime:   p.CreatedAt.UTC(),
		})
	}
	return events
}

// DecodeEvent parses a queue message body. Malformed bodies wrap ErrInvalidEvent.
func DecodeEvent(body string) (FanoutEvent, error) {
	var ev FanoutEvent
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		return FanoutEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return ev, nil
}

func (e FanoutEvent) Encode() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal fanout event: %w", err)
	}
	return string(b), nil
}

// Validate checks the fields every delivery needs.
func (e FanoutEvent) Validate() error {
	switch {
	case e.EventType != EventTypeFeedWrite:
		return fmt.Errorf("%w: unexpected event type %q", ErrInvalidEvent, e.EventType)
	case e.AuthorID == "":
		return fmt.Errorf("%w: missing author_id", ErrInvalidEvent)
	case len(e.TargetUserIDs) == 0:
		return fmt.Errorf("%w: no target users", ErrInvalidEvent)
	case e.CreatedTime.IsZero():
		return fmt.Errorf("%w: missing created_time", ErrInvalidEvent)
	}
	return nil
}

// ResolvedPostID is PostID, or an id derived from the author, creation time
// and content so every delivery of the same event maps to the same post.
func (e FanoutEvent) ResolvedPostID() string {
	if e.PostID != "" {
		return e.PostID
	}
	name := e.AuthorID + "|" + e.CreatedTime.UTC().Format(time.RFC3339Nano) + "|" + e.Content
	return uuid.NewSHA1(postIDNamespace, []byte(name)).String()
}

// Post rebuilds the post carried by the event.
func (e FanoutEvent) Post(authorName string) post.Post {
	return post.Post{
		ID:         e.ResolvedPostID(),
		AuthorID:   e.AuthorID,
		Content:    e.Content,
		CreatedAt:  e.CreatedTime.UTC(),
		AuthorName: authorName,
	}
}
