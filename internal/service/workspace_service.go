package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"deadline-tracker/internal/linkform"
	"deadline-tracker/internal/metrics"
	"deadline-tracker/internal/model"
	"deadline-tracker/internal/repository"
	"deadline-tracker/internal/seed"
	"deadline-tracker/internal/store"
	"deadline-tracker/internal/view"
)

// WorkspaceService keeps one in-memory workspace per user and writes every
// change through to the database.
type WorkspaceService struct {
	users         *repository.UserRepository
	links         *repository.LinkRepository
	notifications *repository.NotificationRepository
	metrics       *metrics.Metrics
	log           *zap.Logger
	seedDemo      bool
	now           func() time.Time
	newID         func() string

	mu         sync.Mutex
	workspaces map[uint]*Workspace
}

type WorkspaceOption func(*WorkspaceService)

// WithDemoData seeds never-seeded users with the demo links.
func WithDemoData(enabled bool) WorkspaceOption {
	return func(s *WorkspaceService) { s.seedDemo = enabled }
}

func WithMetrics(m *metrics.Metrics) WorkspaceOption {
	return func(s *WorkspaceService) { s.metrics = m }
}

func WithClock(now func() time.Time) WorkspaceOption {
	return func(s *WorkspaceService) { s.now = now }
}

func WithIDGenerator(newID func() string) WorkspaceOption {
	return func(s *WorkspaceService) { s.newID = newID }
}

func NewWorkspaceService(
	users *repository.UserRepository,
	links *repository.LinkRepository,
	notifications *repository.NotificationRepository,
	log *zap.Logger,
	opts ...WorkspaceOption,
) *WorkspaceService {
	s := &WorkspaceService{
		users:         users,
		links:         links,
		notifications: notifications,
		log:           log,
		now:           time.Now,
		workspaces:    make(map[uint]*Workspace),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now is the clock shared by every workspace.
func (s *WorkspaceService) Now() time.Time {
	return s.now()
}

func (s *WorkspaceService) storeOptions() []store.Option {
	opts := []store.Option{store.WithClock(s.now)}
	if s.newID != nil {
		opts = append(opts, store.WithIDGenerator(s.newID))
	}
	return opts
}

// Workspace returns the user's workspace, loading it on first use.
func (s *WorkspaceService) Workspace(ctx context.Context, user model.User) (*Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ws, ok := s.workspaces[user.ID]; ok {
		ws.setUser(user)
		return ws, nil
	}

	ws, err := s.load(ctx, user)
	if err != nil {
		return nil, err
	}
	s.workspaces[user.ID] = ws
	return ws, nil
}

// WorkspaceByUserID looks the user up first. The HTTP sessions only carry ids.
func (s *WorkspaceService) WorkspaceByUserID(ctx context.Context, userID uint) (*Workspace, error) {
	s.mu.Lock()
	ws, ok := s.workspaces[userID]
	s.mu.Unlock()
	if ok {
		return ws, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", userID, err)
	}
	return s.Workspace(ctx, *user)
}

// LoadTelegramUsers warms the workspaces of every bot user so reminder
// scans cover them after a restart.
func (s *WorkspaceService) LoadTelegramUsers(ctx context.Context) error {
	users, err := s.users.ListTelegram(ctx)
	if err != nil {
		return fmt.Errorf("list telegram users: %w", err)
	}
	for _, user := range users {
		if _, err := s.Workspace(ctx, user); err != nil {
			return err
		}
	}
	return nil
}

// Loaded returns the workspaces currently in memory.
func (s *WorkspaceService) Loaded() []*Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Workspace, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		out = append(out, ws)
	}
	return out
}

// Snapshot feeds the metrics collector.
func (s *WorkspaceService) Snapshot() metrics.Snapshot {
	now := s.now()
	snap := metrics.Snapshot{LinksByStatus: make(map[model.Status]int)}
	for _, ws := range s.Loaded() {
		for _, link := range ws.Links.All() {
			snap.LinksByStatus[link.EffectiveStatus(now)]++
		}
		snap.Unread += ws.Notifications.UnreadCount()
	}
	return snap
}

func (s *WorkspaceService) load(ctx context.Context, user model.User) (*Workspace, error) {
	links, err := s.links.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	notifications, err := s.notifications.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if !user.Seeded && s.seedDemo && len(links) == 0 {
		now := s.now()
		links = seed.Links(now)
		notifications = seed.Notifications(now, links)
		if err := s.links.SaveAll(ctx, user.ID, links); err != nil {
			return nil, err
		}
		if err := s.notifications.SaveAll(ctx, user.ID, notifications); err != nil {
			return nil, err
		}
		s.log.Info("seeded demo workspace", zap.Uint("user_id", user.ID), zap.Int("links", len(links)))
	}
	if !user.Seeded {
		if err := s.users.MarkSeeded(ctx, user.ID); err != nil {
			return nil, err
		}
		user.Seeded = true
	}

	s.log.Debug("workspace loaded",
		zap.Uint("user_id", user.ID),
		zap.Int("links", len(links)),
		zap.Int("notifications", len(notifications)),
	)

	opts := s.storeOptions()
	return &Workspace{
		svc:           s,
		user:          user,
		Links:         store.NewLinkStore(links, opts...),
		Notifications: store.NewNotificationStore(notifications, opts...),
	}, nil
}

// Workspace is one user's links and inbox. Reads go straight to the stores;
// mutations go through the methods below so they are persisted.
type Workspace struct {
	svc *WorkspaceService

	userMu sync.RWMutex
	user   model.User

	Links         *store.LinkStore
	Notifications *store.NotificationStore
}

func (w *Workspace) User() model.User {
	w.userMu.RLock()
	defer w.userMu.RUnlock()
	return w.user
}

func (w *Workspace) UserID() uint {
	return w.User().ID
}

func (w *Workspace) setUser(user model.User) {
	w.userMu.Lock()
	defer w.userMu.Unlock()
	w.user = user
}

func (w *Workspace) Now() time.Time {
	return w.svc.now()
}

// Display returns the filtered links in display order.
func (w *Workspace) Display(category model.Category, status model.Status) []model.Link {
	return view.DisplayOrder(w.Links.Filtered(category, status), w.svc.now())
}

func (w *Workspace) Stats() view.Stats {
	return view.Summarize(w.Links.All(), w.svc.now())
}

// Resolve accepts a full id or an unambiguous prefix.
func (w *Workspace) Resolve(ref string) (model.Link, error) {
	return w.Links.FindByPrefix(ref)
}

func (w *Workspace) AddLink(ctx context.Context, in store.LinkInput) (model.Link, error) {
	link := w.Links.Add(in)
	if err := w.svc.links.Save(ctx, w.UserID(), link); err != nil {
		// keep memory and disk in step
		_ = w.Links.Delete(link.ID)
		return model.Link{}, err
	}
	w.svc.metrics.LinkCreated(link.Category)
	w.svc.log.Info("link added",
		zap.Uint("user_id", w.UserID()),
		zap.String("link_id", link.ID),
		zap.String("category", string(link.Category)),
	)
	return link, nil
}

func (w *Workspace) UpdateLink(ctx context.Context, id string, patch store.LinkPatch) (model.Link, error) {
	link, err := w.Links.Update(id, patch)
	if err != nil {
		return model.Link{}, err
	}
	if err := w.svc.links.Save(ctx, w.UserID(), link); err != nil {
		return model.Link{}, err
	}
	if patch.Status != nil {
		w.svc.metrics.StatusChanged(*patch.Status)
	}
	return link, nil
}

func (w *Workspace) SetStatus(ctx context.Context, id string, status model.Status) (model.Link, error) {
	if !status.Valid() {
		return model.Link{}, fmt.Errorf("invalid status %q", status)
	}
	return w.UpdateLink(ctx, id, store.LinkPatch{Status: &status})
}

func (w *Workspace) DeleteLink(ctx context.Context, id string) error {
	if err := w.Links.Delete(id); err != nil {
		return err
	}
	if err := w.svc.links.Delete(ctx, w.UserID(), id); err != nil {
		return err
	}
	w.svc.log.Info("link deleted", zap.Uint("user_id", w.UserID()), zap.String("link_id", id))
	return nil
}

// SubmitForm validates the form and adds or updates the link it describes.
func (w *Workspace) SubmitForm(ctx context.Context, form *linkform.Form, loc *time.Location) (model.Link, error) {
	return form.Submit(w.Target(ctx), loc)
}

// Target binds ctx so a linkform.Form can submit into the workspace.
func (w *Workspace) Target(ctx context.Context) linkform.Target {
	return workspaceTarget{ctx: ctx, ws: w}
}

// PushNotification adds an inbox entry and persists it.
func (w *Workspace) PushNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	n = w.Notifications.Push(n)
	if err := w.svc.notifications.Save(ctx, w.UserID(), n); err != nil {
		return model.Notification{}, err
	}
	return n, nil
}

func (w *Workspace) MarkRead(ctx context.Context, id string) (model.Notification, error) {
	n, err := w.Notifications.MarkRead(id)
	if err != nil {
		return model.Notification{}, err
	}
	if err := w.svc.notifications.MarkRead(ctx, w.UserID(), []string{n.ID}); err != nil {
		return model.Notification{}, err
	}
	return n, nil
}

// MarkAllRead returns how many notifications changed.
func (w *Workspace) MarkAllRead(ctx context.Context) (int, error) {
	changed := w.Notifications.MarkAllRead()
	if err := w.svc.notifications.MarkRead(ctx, w.UserID(), changed); err != nil {
		return 0, err
	}
	return len(changed), nil
}

// IsNotFound reports the store errors the surfaces show as "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrLinkNotFound) || errors.Is(err, store.ErrNotificationNotFound)
}

type workspaceTarget struct {
	ctx context.Context
	ws  *Workspace
}

func (t workspaceTarget) Add(in store.LinkInput) (model.Link, error) {
	return t.ws.AddLink(t.ctx, in)
}

func (t workspaceTarget) Update(id string, patch store.LinkPatch) (model.Link, error) {
	return t.ws.UpdateLink(t.ctx, id, patch)
}
