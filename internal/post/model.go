package post

import (
	"sort"
	"time"
)

// Post is immutable once stored.
type Post struct {
	ID        string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// PullOnly is set when the post was never pushed to follower timelines.
	PullOnly bool `json:"-"`

	// AuthorName is a display-name hint carried from the fan-out event; it is not persisted.
	AuthorName string `json:"author_name,omitempty"`
}

// Newer reports whether a sorts before b on a timeline: most recent first,
// ties broken by post id descending.
func Newer(a, b Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func SortNewestFirst(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return Newer(posts[i], posts[j])
	})
}
