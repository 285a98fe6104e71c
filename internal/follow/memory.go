package follow

import (
	"context"
	"sort"
	"sync"
)

// MemoryGraph is an in-process Graph. Counts can be overridden to simulate
// large audiences without materializing every follower.
type MemoryGraph struct {
	mu        sync.RWMutex
	followers map[string]map[string]struct{}
	following map[string]map[string]struct{}
	counts    map[string]int64
}

func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		followers: make(map[string]map[string]struct{}),
		following: make(map[string]map[string]struct{}),
		counts:    make(map[string]int64),
	}
}

// Follow records that followerID follows creatorID.
func (g *MemoryGraph) Follow(followerID, creatorID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.followers[creatorID] == nil {
		g.followers[creatorID] = make(map[string]struct{})
	}
	if g.following[followerID] == nil {
		g.following[followerID] = make(map[string]struct{})
	}
	g.followers[creatorID][followerID] = struct{}{}
	g.following[followerID][creatorID] = struct{}{}
}

// SetFollowerCount overrides the count reported for userID.
func (g *MemoryGraph) SetFollowerCount(userID string, n int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counts[userID] = n
}

func (g *MemoryGraph) GetFollowers(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.followers[userID]), nil
}

func (g *MemoryGraph) GetFollowing(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.following[userID]), nil
}

func (g *MemoryGraph) GetFollowerCount(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n, ok := g.counts[userID]; ok {
		return n, nil
	}
	return int64(len(g.followers[userID])), nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
