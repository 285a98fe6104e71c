package fanout

import (
	"container/heap"
	"sort"

	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/post"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/timeline"
)

// cursor points at the next unread post of one author's list.
type cursor struct {
	posts []post.Post
	pos   int
}

// cursorHeap is a max-heap on the head post of each cursor.
type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	return post.Newer(h[i].posts[h[i].pos], h[j].posts[h[j].pos])
}
func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x interface{}) {
	*h = append(*h, x.(*cursor))
}

func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// mergeAuthors interleaves per-author lists, each already newest first, and
// keeps the limit newest posts.
func mergeAuthors(byAuthor map[string][]post.Post, limit int) []post.Post {
	authors := make([]string, 0, len(byAuthor))
	for author, posts := range byAuthor {
		if len(posts) > 0 {
			authors = append(authors, author)
		}
	}
	sort.Strings(authors)

	h := make(cursorHeap, 0, len(authors))
	for _, author := range authors {
		h = append(h, &cursor{posts: byAuthor[author]})
	}
	heap.Init(&h)

	merged := make([]post.Post, 0, limit)
	for h.Len() > 0 && len(merged) < limit {
		c := h[0]
		merged = append(merged, c.posts[c.pos])
		c.pos++
		if c.pos < len(c.posts) {
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}
	}
	return merged
}

// mergeEntries is a two-pointer merge of two sequences sorted newest first.
// A post present on both sides is kept once.
func mergeEntries(a, b []timeline.Entry, limit int) []timeline.Entry {
	merged := make([]timeline.Entry, 0, min(limit, len(a)+len(b)))
	seen := make(map[string]struct{}, min(limit, len(a)+len(b)))

	emit := func(e timeline.Entry) {
		if _, dup := seen[e.PostID]; dup {
			return
		}
		seen[e.PostID] = struct{}{}
		merged = append(merged, e)
	}

	i, j := 0, 0
	for len(merged) < limit && (i < len(a) || j < len(b)) {
		switch {
		case j >= len(b):
			emit(a[i])
			i++
		case i >= len(a):
			emit(b[j])
			j++
		case timeline.Newer(b[j], a[i]):
			emit(b[j])
			j++
		default:
			emit(a[i])
			i++
		}
	}
	return merged
}
