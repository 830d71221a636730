package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"deadline-tracker/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := NewDB(dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestUserRepository_UpsertFromTelegram(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	first, err := repo.UpsertFromTelegram(ctx, 42, "Ada", "Lovelace", "ada")
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	second, err := repo.UpsertFromTelegram(ctx, 42, "Ada", "King", "countess")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	stored, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "King", stored.LastName)
	assert.Equal(t, "countess", stored.Username)
	assert.False(t, stored.Seeded)

	users, err := repo.ListTelegram(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserRepository_UpsertByEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	a, err := repo.UpsertByEmail(ctx, "Student@Uni.edu ", "Sam")
	require.NoError(t, err)
	b, err := repo.UpsertByEmail(ctx, "student@uni.edu", "")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "student@uni.edu", *b.Email)

	require.NoError(t, repo.MarkSeeded(ctx, a.ID))
	stored, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.Seeded)

	// email users are not bot recipients
	users, err := repo.ListTelegram(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestLinkRepository_SaveListDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewLinkRepository(newTestDB(t))
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	older := model.Link{
		ID: "link-a", Title: "Older", URL: "https://a.example", Category: model.CategoryExams,
		Deadline: now.Add(48 * time.Hour), ReminderTime: now.Add(24 * time.Hour),
		Status: model.StatusNotApplied, CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour),
	}
	newer := model.Link{
		ID: "link-b", Title: "Newer", URL: "https://b.example", Category: model.CategoryEvents,
		Deadline: now.Add(72 * time.Hour), ReminderTime: now.Add(48 * time.Hour),
		Status: model.StatusApplied, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.SaveAll(ctx, 1, []model.Link{older, newer}))
	require.NoError(t, repo.Save(ctx, 2, model.Link{ID: "other", Title: "Other", CreatedAt: now, UpdatedAt: now}))

	links, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "link-b", links[0].ID)
	assert.Equal(t, "link-a", links[1].ID)
	assert.True(t, links[1].CreatedAt.Equal(older.CreatedAt))
	assert.Equal(t, uint(1), links[0].UserID)

	older.Status = model.StatusApplied
	older.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, repo.Save(ctx, 1, older))

	links, err = repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApplied, links[1].Status)
	assert.True(t, links[1].UpdatedAt.Equal(older.UpdatedAt))

	require.NoError(t, repo.Delete(ctx, 1, "link-a"))
	links, err = repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "link-b", links[0].ID)

	// another user's link is untouched by a foreign delete
	require.NoError(t, repo.Delete(ctx, 1, "other"))
	links, err = repo.ListByUser(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestNotificationRepository_MarkRead(t *testing.T) {
	ctx := context.Background()
	repo := NewNotificationRepository(newTestDB(t))
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	items := []model.Notification{
		{ID: "n1", LinkID: "l1", Title: "Reminder", Message: "one", CreatedAt: now.Add(-time.Hour)},
		{ID: "n2", LinkID: "l2", Title: "Reminder", Message: "two", CreatedAt: now},
		{ID: "n3", LinkID: "l3", Title: "Reminder", Message: "three", Read: true, CreatedAt: now.Add(-2 * time.Hour)},
	}
	require.NoError(t, repo.SaveAll(ctx, 7, items))

	require.NoError(t, repo.MarkRead(ctx, 7, []string{"n1"}))
	require.NoError(t, repo.MarkRead(ctx, 7, nil))

	stored, err := repo.ListByUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, []string{"n2", "n1", "n3"}, []string{stored[0].ID, stored[1].ID, stored[2].ID})
	assert.False(t, stored[0].Read)
	assert.True(t, stored[1].Read)
	assert.True(t, stored[2].Read)

	require.NoError(t, repo.Save(ctx, 7, model.Notification{ID: "n4", Title: "Reminder", CreatedAt: now.Add(time.Hour)}))
	stored, err = repo.ListByUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "n4", stored[0].ID)

	other, err := repo.ListByUser(ctx, 8)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestEnsureDirForSQLite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ensureDirForSQLite("file:"+dir+"/nested/db.sqlite?_busy_timeout=5000"))
	assert.DirExists(t, dir+"/nested")
	require.NoError(t, ensureDirForSQLite(":memory:"))
	require.NoError(t, ensureDirForSQLite("plain.db"))
}
