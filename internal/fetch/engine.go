// Package fetch reads many users' recent posts in parallel with a bounded
// worker pool.
//
// Results are written into one map under a single mutex. Every per-user
// failure is kept; once all workers have finished, failures are reported
// together as a *PartialError rather than stopping at the first one.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/logs"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/metrics"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/post"
)

const (
	DefaultMaxWorkers = 50
	slowQuery         = 50 * time.Millisecond
)

var ErrPartialFetch = errors.New("partial fetch failure")

// PartialError lists the ids whose fetch failed.
type PartialError struct {
	Failed map[string]error
	Total  int
}

func (e *PartialError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %v", id, e.Failed[id]))
	}
	return fmt.Sprintf("%v: %d of %d users failed (%s)", ErrPartialFetch, len(e.Failed), e.Total, strings.Join(parts, "; "))
}

func (e *PartialError) Is(target error) bool {
	return target == ErrPartialFetch
}

func (e *PartialError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// Collect calls fn once per distinct id using at most min(workers, len(ids))
// goroutines. It always waits for every worker. On cancellation the results
// are discarded and ctx.Err() is returned. Otherwise the successful results
// are returned, with a *PartialError when some ids failed.
func Collect[V any](ctx context.Context, workers int, ids []string, fn func(ctx context.Context, id string) (V, error)) (map[string]V, error) {
	ids = distinct(ids)
	if len(ids) == 0 {
		return map[string]V{}, nil
	}
	if workers <= 0 {
		workers = DefaultMaxWorkers
	}
	workers = min(workers, len(ids))

	idChan := make(chan string, len(ids))
	for _, id := range ids {
		idChan <- id
	}
	close(idChan)

	var (
		mu      sync.Mutex
		results = make(map[string]V, len(ids))
		failed  = make(map[string]error)
		wg      sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range idChan {
				if ctx.Err() != nil {
					return
				}
				v, err := fn(ctx, id)

				mu.Lock()
				if err != nil {
					failed[id] = err
				} else {
					results[id] = v
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(failed) > 0 {
		return results, &PartialError{Failed: failed, Total: len(ids)}
	}
	return results, nil
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Engine fetches recent posts per author from the post store.
type Engine struct {
	posts      post.Store
	maxWorkers int
}

func NewEngine(posts post.Store, maxWorkers int) *Engine {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	return &Engine{posts: posts, maxWorkers: maxWorkers}
}

func (e *Engine) MaxWorkers() int {
	return e.maxWorkers
}

// FetchRecent returns the perUserLimit most recent posts of every user, or
// no map at all if any user failed.
func (e *Engine) FetchRecent(ctx context.Context, userIDs []string, perUserLimit int) (map[string][]post.Post, error) {
	result, err := e.FetchRecentPartial(ctx, userIDs, perUserLimit)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FetchRecentPartial is FetchRecent in best-effort mode: with a *PartialError
// it still returns the users that succeeded.
func (e *Engine) FetchRecentPartial(ctx context.Context, userIDs []string, perUserLimit int) (map[string][]post.Post, error) {
	startTime := time.Now()

	result, err := Collect(ctx, e.maxWorkers, userIDs, func(ctx context.Context, userID string) ([]post.Post, error) {
		queryStart := time.Now()
		posts, err := e.posts.QueryByAuthor(ctx, userID, perUserLimit)
		queryDuration := time.Since(queryStart)
		metrics.FetchDuration.Observe(queryDuration.Seconds())

		if err != nil {
			metrics.FetchFailures.Inc()
			return nil, fmt.Errorf("failed to get posts for user %s: %w", userID, err)
		}
		if queryDuration > slowQuery {
			logs.LogJSON(logs.LevelWarn, "Slow author query", map[string]interface{}{
				"userID":   userID,
				"duration": queryDuration.String(),
				"posts":    len(posts),
			})
		}
		return posts, nil
	})

	logs.LogJSON(logs.LevelDebug, "Fetched recent posts", map[string]interface{}{
		"users":    len(userIDs),
		"duration": time.Since(startTime).String(),
		"failed":   err != nil,
	})
	return result, err
}
