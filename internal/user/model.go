package user

import "time"

type User struct {
	ID        string `gorm:"primaryKey"` // UUID from auth.users
	CreatedAt time.Time
	Username  string `gorm:"uniqueIndex"`
	Firstname string
	Lastname  string
	AvatarURL string
}
