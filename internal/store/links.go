package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"deadline-tracker/internal/model"
)

// DefaultUpcomingLimit is used by Upcoming when the caller passes no limit.
const DefaultUpcomingLimit = 5

// LinkInput carries every link field the caller chooses. Id and timestamps
// are assigned by the store.
type LinkInput struct {
	Title        string
	URL          string
	Category     model.Category
	Deadline     time.Time
	ReminderTime time.Time
	Notes        string
	Status       model.Status
}

// LinkPatch is a partial update; nil fields are left untouched.
type LinkPatch struct {
	Title        *string
	URL          *string
	Category     *model.Category
	Deadline     *time.Time
	ReminderTime *time.Time
	Notes        *string
	Status       *model.Status
}

// LinkStore keeps links most-recent-first.
type LinkStore struct {
	mu    sync.RWMutex
	links []model.Link
	opts  options
}

// NewLinkStore takes ownership of a copy of seed, keeping its order.
func NewLinkStore(seed []model.Link, opts ...Option) *LinkStore {
	links := make([]model.Link, len(seed))
	copy(links, seed)
	return &LinkStore{links: links, opts: buildOptions(opts)}
}

// Add stores a new link at the front and returns it.
func (s *LinkStore) Add(in LinkInput) model.Link {
	now := s.opts.now()
	status := in.Status
	if status == "" {
		status = model.StatusNotApplied
	}
	link := model.Link{
		ID:           s.opts.newID(),
		Title:        in.Title,
		URL:          in.URL,
		Category:     in.Category,
		Deadline:     in.Deadline,
		ReminderTime: in.ReminderTime,
		Notes:        in.Notes,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append([]model.Link{link}, s.links...)
	return link
}

// Update merges patch into the link with the given id.
func (s *LinkStore) Update(id string, patch LinkPatch) (model.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return model.Link{}, ErrLinkNotFound
	}

	link := &s.links[idx]
	if patch.Title != nil {
		link.Title = *patch.Title
	}
	if patch.URL != nil {
		link.URL = *patch.URL
	}
	if patch.Category != nil {
		link.Category = *patch.Category
	}
	if patch.Deadline != nil {
		link.Deadline = *patch.Deadline
	}
	if patch.ReminderTime != nil {
		link.ReminderTime = *patch.ReminderTime
	}
	if patch.Notes != nil {
		link.Notes = *patch.Notes
	}
	if patch.Status != nil {
		link.Status = *patch.Status
	}
	link.UpdatedAt = s.opts.now()
	return *link, nil
}

// SetStatus is Update with only the status set.
func (s *LinkStore) SetStatus(id string, status model.Status) (model.Link, error) {
	return s.Update(id, LinkPatch{Status: &status})
}

func (s *LinkStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return ErrLinkNotFound
	}
	s.links = append(s.links[:idx], s.links[idx+1:]...)
	return nil
}

func (s *LinkStore) Get(id string) (model.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return model.Link{}, ErrLinkNotFound
	}
	return s.links[idx], nil
}

// FindByPrefix resolves a shortened id as typed in chat commands. An exact
// match always wins.
func (s *LinkStore) FindByPrefix(prefix string) (model.Link, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return model.Link{}, ErrLinkNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []model.Link
	for _, link := range s.links {
		if link.ID == prefix {
			return link, nil
		}
		if strings.HasPrefix(link.ID, prefix) {
			found = append(found, link)
		}
	}
	switch len(found) {
	case 0:
		return model.Link{}, ErrLinkNotFound
	case 1:
		return found[0], nil
	default:
		return model.Link{}, ErrAmbiguousID
	}
}

// All returns a copy of every link in store order.
func (s *LinkStore) All() []model.Link {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Link, len(s.links))
	copy(out, s.links)
	return out
}

func (s *LinkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links)
}

// Filtered returns the links matching both filters, in store order.
// CategoryAll and StatusAll (or empty values) match everything. The status
// filter compares the stored status.
func (s *LinkStore) Filtered(category model.Category, status model.Status) []model.Link {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Link, 0, len(s.links))
	for _, link := range s.links {
		categoryMatch := category == "" || category == model.CategoryAll || link.Category == category
		statusMatch := status == "" || status == model.StatusAll || link.Status == status
		if categoryMatch && statusMatch {
			out = append(out, link)
		}
	}
	return out
}

// Upcoming returns not-expired links whose deadline is still ahead,
// soonest first.
func (s *LinkStore) Upcoming(limit int) []model.Link {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	now := s.opts.now()

	s.mu.RLock()
	out := make([]model.Link, 0, len(s.links))
	for _, link := range s.links {
		if link.Status != model.StatusExpired && link.Deadline.After(now) {
			out = append(out, link)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Deadline.Before(out[j].Deadline)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *LinkStore) indexOf(id string) int {
	for i := range s.links {
		if s.links[i].ID == id {
			return i
		}
	}
	return -1
}
