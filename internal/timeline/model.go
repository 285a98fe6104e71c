package timeline

import (
	"sort"
	"time"

	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/post"
)

// Entry is a post materialized into one owner's timeline. (OwnerID, PostID) is unique.
type Entry struct {
	OwnerID    string    `json:"user_id" gorm:"primaryKey;type:text;index:idx_timeline_owner_created,priority:1"`
	PostID     string    `json:"post_id" gorm:"primaryKey;type:text"`
	AuthorID   string    `json:"author_id" gorm:"type:text;not null"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"index:idx_timeline_owner_created,priority:2,sort:desc"`
}

func (Entry) TableName() string {
	return "timeline_entries"
}

// FromPost builds the entry of p in owner's timeline.
func FromPost(ownerID string, p post.Post, authorName string) Entry {
	return Entry{
		OwnerID:    ownerID,
		PostID:     p.ID,
		AuthorID:   p.AuthorID,
		AuthorName: authorName,
		Content:    p.Content,
		CreatedAt:  p.CreatedAt,
	}
}

// Newer is the timeline order: created_at descending, then post id descending.
func Newer(a, b Entry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.PostID > b.PostID
}

func SortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Newer(entries[i], entries[j])
	})
}
