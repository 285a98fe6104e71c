package user

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

// Directory resolves the name shown next to a user's posts.
type Directory interface {
	GetDisplayName(ctx context.Context, userID string) (string, error)
}

type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) GetDisplayName(ctx context.Context, userID string) (string, error) {
	var u User
	err := d.db.WithContext(ctx).
		Select("id", "username").
		Where("id = ?", userID).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("display name of %s: %w", userID, err)
	}
	return u.Username, nil
}

type MemoryDirectory struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{names: make(map[string]string)}
}

func (d *MemoryDirectory) Set(userID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[userID] = name
}

func (d *MemoryDirectory) GetDisplayName(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.names[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	return name, nil
}
