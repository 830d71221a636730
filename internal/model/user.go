package model

import "time"

// User owns one workspace of links and notifications. Users arrive either
// from Telegram or from the HTTP login.
type User struct {
	ID         uint    `gorm:"primaryKey"`
	TelegramID *int64  `gorm:"uniqueIndex"`
	Email      *string `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string
	Seeded     bool `gorm:"default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName picks the friendliest non-empty name.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	case u.Email != nil:
		return *u.Email
	default:
		return "there"
	}
}
