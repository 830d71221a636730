package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"deadline-tracker/internal/model"
)

// LinkRepository persists the links of every workspace.
type LinkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// ListByUser returns a user's links newest first, the order the store keeps.
func (r *LinkRepository) ListByUser(ctx context.Context, userID uint) ([]model.Link, error) {
	var links []model.Link
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// Save inserts or replaces a link.
func (r *LinkRepository) Save(ctx context.Context, userID uint, link model.Link) error {
	link.UserID = userID
	if err := r.db.WithContext(ctx).Save(&link).Error; err != nil {
		return fmt.Errorf("save link: %w", err)
	}
	return nil
}

func (r *LinkRepository) SaveAll(ctx context.Context, userID uint, links []model.Link) error {
	if len(links) == 0 {
		return nil
	}
	rows := make([]model.Link, len(links))
	for i, link := range links {
		link.UserID = userID
		rows[i] = link
	}
	if err := r.db.WithContext(ctx).CreateInBatches(rows, 100).Error; err != nil {
		return fmt.Errorf("save links: %w", err)
	}
	return nil
}

// Delete removes a link. Notifications pointing at it are left alone.
func (r *LinkRepository) Delete(ctx context.Context, userID uint, linkID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, linkID).
		Delete(&model.Link{}).Error; err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}
