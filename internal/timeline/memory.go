package timeline

import (
	"context"
	"sync"
)

type entryKey struct {
	owner string
	post  string
}

type MemoryStore struct {
	mu      sync.RWMutex
	entries map[entryKey]Entry
	writes  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[entryKey]Entry)}
}

func (m *MemoryStore) Upsert(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		m.entries[entryKey{owner: e.OwnerID, post: e.PostID}] = e
		m.writes++
	}
	return nil
}

func (m *MemoryStore) QueryByOwner(ctx context.Context, ownerID string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []Entry
	for k, e := range m.entries {
		if k.owner == ownerID {
			out = append(out, e)
		}
	}
	m.mu.RUnlock()

	SortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len is the number of distinct (owner, post) entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Writes counts every entry ever passed to Upsert, duplicates included.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
