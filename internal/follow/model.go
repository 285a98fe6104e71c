package follow

import (
	"time"
)

type Follow struct {
	ID         string `gorm:"primaryKey"`
	CreatedAt  time.Time
	FollowerID string `gorm:"type:text;index;uniqueIndex:ux_follow_pair"`
	CreatorID  string `gorm:"type:text;index;uniqueIndex:ux_follow_pair"`
}
