package store

import (
	"sort"
	"sync"

	"deadline-tracker/internal/model"
)

// NotificationStore is the inbox of one workspace.
type NotificationStore struct {
	mu    sync.RWMutex
	items []model.Notification
	opts  options
}

func NewNotificationStore(seed []model.Notification, opts ...Option) *NotificationStore {
	items := make([]model.Notification, len(seed))
	copy(items, seed)
	return &NotificationStore{items: items, opts: buildOptions(opts)}
}

// Push adds a notification, filling id and creation time when missing.
func (s *NotificationStore) Push(n model.Notification) model.Notification {
	if n.ID == "" {
		n.ID = s.opts.newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.opts.now()
	}
	if n.Kind == "" {
		n.Kind = model.NotificationGeneral
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n)
	return n
}

// MarkRead is idempotent: marking a read notification again is not an error.
func (s *NotificationStore) MarkRead(id string) (model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Read = true
			return s.items[i], nil
		}
	}
	return model.Notification{}, ErrNotificationNotFound
}

// MarkAllRead marks every notification read and returns the ids that were
// unread before the call.
func (s *NotificationStore) MarkAllRead() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []string
	for i := range s.items {
		if !s.items[i].Read {
			s.items[i].Read = true
			changed = append(changed, s.items[i].ID)
		}
	}
	return changed
}

func (s *NotificationStore) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.items {
		if !n.Read {
			count++
		}
	}
	return count
}

// List returns the inbox newest first.
func (s *NotificationStore) List() []model.Notification {
	s.mu.RLock()
	out := make([]model.Notification, len(s.items))
	copy(out, s.items)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// HasForLink reports whether a notification of the given kind already
// exists for the link.
func (s *NotificationStore) HasForLink(linkID string, kind model.NotificationKind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.items {
		if n.LinkID == linkID && n.Kind == kind {
			return true
		}
	}
	return false
}
