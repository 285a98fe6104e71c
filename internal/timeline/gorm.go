package timeline

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Upsert is INSERT ... ON CONFLICT (owner_id, post_id) DO UPDATE, never a blind append.
func (s *GormStore) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "post_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"author_id", "author_name", "content", "created_at"}),
		}).
		Create(&entries).Error
	if err != nil {
		return fmt.Errorf("upsert %d timeline entries: %w", len(entries), err)
	}
	return nil
}

func (s *GormStore) QueryByOwner(ctx context.Context, ownerID string, limit int) ([]Entry, error) {
	var entries []Entry
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, post_id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("query timeline of %s: %w", ownerID, err)
	}
	return entries, nil
}
