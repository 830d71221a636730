package model

import "time"

// NotificationKind separates scheduled reminders from other inbox entries.
type NotificationKind string

const (
	NotificationGeneral  NotificationKind = "general"
	NotificationReminder NotificationKind = "reminder"
)

// Notification is an inbox entry tied to a link by id only. It outlives the
// link when the link is deleted.
type Notification struct {
	ID        string           `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint             `gorm:"index" json:"-"`
	LinkID    string           `gorm:"index;size:36" json:"link_id"`
	Kind      NotificationKind `gorm:"size:16;default:general" json:"kind"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `gorm:"default:false" json:"read"`
	CreatedAt time.Time        `gorm:"autoCreateTime:false" json:"created_at"`
}
