package post

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	posts    map[string]Post
	byAuthor map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:    make(map[string]Post),
		byAuthor: make(map[string][]string),
	}
}

// Put keeps the first version of a post; posts are immutable.
func (m *MemoryStore) Put(ctx context.Context, p Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.posts[p.ID]; exists {
		return nil
	}
	p.AuthorName = ""
	m.posts[p.ID] = p
	m.byAuthor[p.AuthorID] = append(m.byAuthor[p.AuthorID], p.ID)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, postID string) (Post, error) {
	if err := ctx.Err(); err != nil {
		return Post{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[postID]
	if !ok {
		return Post{}, ErrPostNotFound
	}
	return p, nil
}

func (m *MemoryStore) QueryByAuthor(ctx context.Context, authorID string, limit int) ([]Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	ids := m.byAuthor[authorID]
	posts := make([]Post, 0, len(ids))
	for _, id := range ids {
		posts = append(posts, m.posts[id])
	}
	m.mu.RUnlock()

	SortNewestFirst(posts)
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (m *MemoryStore) MarkPullOnly(ctx context.Context, postID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[postID]
	if !ok {
		return ErrPostNotFound
	}
	p.PullOnly = true
	m.posts[postID] = p
	return nil
}

func (m *MemoryStore) AuthorsWithPullOnly(ctx context.Context, authorIDs []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var authors []string
	for _, authorID := range authorIDs {
		for _, id := range m.byAuthor[authorID] {
			if m.posts[id].PullOnly {
				authors = append(authors, authorID)
				break
			}
		}
	}
	return authors, nil
}
