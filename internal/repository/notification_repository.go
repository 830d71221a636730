package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"deadline-tracker/internal/model"
)

// NotificationRepository persists the inbox of every workspace.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID uint) ([]model.Notification, error) {
	var items []model.Notification
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

func (r *NotificationRepository) Save(ctx context.Context, userID uint, n model.Notification) error {
	n.UserID = userID
	if err := r.db.WithContext(ctx).Save(&n).Error; err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) SaveAll(ctx context.Context, userID uint, items []model.Notification) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]model.Notification, len(items))
	for i, n := range items {
		n.UserID = userID
		rows[i] = n
	}
	if err := r.db.WithContext(ctx).CreateInBatches(rows, 100).Error; err != nil {
		return fmt.Errorf("save notifications: %w", err)
	}
	return nil
}

// MarkRead flags the given notifications as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID uint, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("read", true).Error; err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}
