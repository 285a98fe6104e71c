package timeline

import "context"

// Store holds precomputed timelines partitioned by owner.
type Store interface {
	// Upsert writes entries keyed on (OwnerID, PostID). Writing the same
	// entry again leaves the store unchanged.
	Upsert(ctx context.Context, entries []Entry) error
	// QueryByOwner returns at most limit entries, newest first.
	QueryByOwner(ctx context.Context, ownerID string, limit int) ([]Entry, error)
}
