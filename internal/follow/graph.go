package follow

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Graph answers follower-graph questions for the fan-out core.
type Graph interface {
	GetFollowers(ctx context.Context, userID string) ([]string, error)
	GetFollowing(ctx context.Context, userID string) ([]string, error)
	GetFollowerCount(ctx context.Context, userID string) (int64, error)
}

// GormGraph reads the follows table: follower_id follows creator_id.
type GormGraph struct {
	db *gorm.DB
}

func NewGormGraph(db *gorm.DB) *GormGraph {
	return &GormGraph{db: db}
}

func (g *GormGraph) GetFollowers(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := g.db.WithContext(ctx).
		Model(&Follow{}).
		Where("creator_id = ?", userID).
		Pluck("follower_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("followers of %s: %w", userID, err)
	}
	return ids, nil
}

func (g *GormGraph) GetFollowing(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := g.db.WithContext(ctx).
		Model(&Follow{}).
		Where("follower_id = ?", userID).
		Pluck("creator_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("following of %s: %w", userID, err)
	}
	return ids, nil
}

func (g *GormGraph) GetFollowerCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := g.db.WithContext(ctx).
		Model(&Follow{}).
		Where("creator_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("follower count of %s: %w", userID, err)
	}
	return count, nil
}
