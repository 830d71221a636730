package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"deadline-tracker/internal/model"
	"deadline-tracker/internal/repository"
	"deadline-tracker/internal/service"
	"deadline-tracker/internal/store"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) last() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (f *fakeAPI) edits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.sent {
		if _, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			n++
		}
	}
	return n
}

func (f *fakeAPI) lastMessage() tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if m, ok := f.sent[i].(tgbotapi.MessageConfig); ok {
			return m
		}
	}
	return tgbotapi.MessageConfig{}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	bot        *Bot
	api        *fakeAPI
	clock      *clock
	users      *repository.UserRepository
	workspaces *service.WorkspaceService
}

var (
	sam  = &tgbotapi.User{ID: 42, FirstName: "Sam", UserName: "sam"}
	chat = &tgbotapi.Chat{ID: 42, Type: "private"}
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := repository.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	c := &clock{now: testNow}
	users := repository.NewUserRepository(db)
	workspaces := service.NewWorkspaceService(users,
		repository.NewLinkRepository(db),
		repository.NewNotificationRepository(db),
		zap.NewNop(),
		service.WithClock(c.Now),
	)
	reminders := service.NewReminderService(workspaces, nil, zap.NewNop())

	api := &fakeAPI{}
	b := NewWithAPI(api, users, workspaces, reminders, Options{
		Location:         time.UTC,
		CountdownRefresh: 10 * time.Millisecond,
		CountdownWatch:   time.Minute,
		Now:              c.Now,
	}, zap.NewNop())
	t.Cleanup(b.StopCountdowns)

	return &harness{bot: b, api: api, clock: c, users: users, workspaces: workspaces}
}

func (h *harness) send(t *testing.T, text string) string {
	t.Helper()
	msg := &tgbotapi.Message{From: sam, Chat: chat, Text: text}
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: msg})
	return h.api.last()
}

func (h *harness) tap(t *testing.T, data string) string {
	t.Helper()
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    sam,
		Message: &tgbotapi.Message{Chat: chat},
		Data:    data,
	}})
	return h.api.last()
}

func (h *harness) workspace(t *testing.T) *service.Workspace {
	t.Helper()
	ctx := context.Background()
	user, err := h.users.UpsertFromTelegram(ctx, sam.ID, sam.FirstName, "", sam.UserName)
	require.NoError(t, err)
	ws, err := h.workspaces.Workspace(ctx, *user)
	require.NoError(t, err)
	return ws
}

func (h *harness) addLink(t *testing.T, title string, deadline time.Duration) model.Link {
	t.Helper()
	link, err := h.workspace(t).AddLink(context.Background(), store.LinkInput{
		Title:        title,
		URL:          "https://example.com/" + strings.ToLower(title),
		Category:     model.CategoryEvents,
		Deadline:     testNow.Add(deadline),
		ReminderTime: testNow.Add(deadline - 24*time.Hour),
		Status:       model.StatusNotApplied,
	})
	require.NoError(t, err)
	return link
}

func TestStart(t *testing.T) {
	h := newHarness(t)
	reply := h.send(t, "/start")
	assert.Contains(t, reply, "Hi, Sam!")
	assert.Contains(t, reply, "You have 0 links")
	assert.Contains(t, reply, "/countdown")
}

func TestAddConversation(t *testing.T) {
	h := newHarness(t)

	h.send(t, "/add")
	h.send(t, "Career Fair")
	assert.Contains(t, h.send(t, "not a url"), "Invalid URL")
	assert.Contains(t, h.send(t, "https://fair.example/register"), "Category")
	assert.Contains(t, h.send(t, "Events"), "Deadline date")
	assert.Contains(t, h.send(t, "10/03/2024"), "can't read that date")
	assert.Contains(t, h.send(t, "2024-03-10"), "Time of day")
	assert.Contains(t, h.send(t, "6pm"), "Invalid time")
	assert.Contains(t, h.send(t, "18:00"), "Remind me")
	assert.Contains(t, h.send(t, "5 days before"), "Invalid reminder")
	assert.Contains(t, h.send(t, "3 days before"), "notes")
	reply := h.send(t, "Skip")

	assert.Contains(t, reply, "Link saved")
	assert.Contains(t, reply, "Career Fair")
	assert.Contains(t, reply, "Reminder at 2024-03-07 18:00")

	links := h.workspace(t).Links.All()
	require.Len(t, links, 1)
	assert.Equal(t, "https://fair.example/register", links[0].URL)
	assert.Equal(t, model.CategoryEvents, links[0].Category)
	assert.Equal(t, time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC), links[0].Deadline)
	assert.Equal(t, time.Date(2024, 3, 7, 18, 0, 0, 0, time.UTC), links[0].ReminderTime)
	assert.Equal(t, model.StatusNotApplied, links[0].Status)
	assert.False(t, h.bot.hasConversation(sam.ID))
}

func TestRetryKeepsDialogButtons(t *testing.T) {
	h := newHarness(t)
	markup := func() interface{} { return h.api.lastMessage().ReplyMarkup }

	h.send(t, "/add")
	h.send(t, "Career Fair")
	assert.Contains(t, h.send(t, "not a url"), "Invalid URL")
	assert.Equal(t, cancelKeyboard(), markup())

	h.send(t, "https://fair.example/register")
	assert.Contains(t, h.send(t, "Homework"), "Invalid category")
	assert.Equal(t, categoryKeyboard(), markup())

	h.send(t, "Events")
	h.send(t, "10/03/2024")
	assert.Equal(t, cancelKeyboard(), markup())

	h.send(t, "2024-03-10")
	assert.Contains(t, h.send(t, "6pm"), "Invalid time")
	assert.Equal(t, timeKeyboard(), markup())

	h.send(t, "18:00")
	assert.Contains(t, h.send(t, "5 days before"), "Invalid reminder")
	assert.Equal(t, leadKeyboard(), markup())
	assert.True(t, h.bot.hasConversation(sam.ID))

	h.send(t, "/cancel")
	assert.Equal(t, mainMenuKeyboard(), markup())

	link := h.addLink(t, "Fair", 48*time.Hour)
	h.send(t, "/edit "+service.ShortID(link.ID))
	h.send(t, "Skip")
	assert.Contains(t, h.send(t, "not a url"), "Invalid URL")
	assert.Equal(t, skipKeyboard(), markup(), "an edit can still keep the current URL")
	h.send(t, "/cancel")

	h.send(t, "/paste")
	h.send(t, "no link in here")
	assert.Equal(t, cancelKeyboard(), markup())
}

func TestCancelDiscardsForm(t *testing.T) {
	h := newHarness(t)
	h.send(t, "/add")
	h.send(t, "Half done")
	assert.Contains(t, h.send(t, "/cancel"), "Nothing was saved")
	assert.Zero(t, h.workspace(t).Links.Len())
	assert.False(t, h.bot.hasConversation(sam.ID))
}

func TestPasteConversation(t *testing.T) {
	h := newHarness(t)

	assert.Contains(t, h.send(t, "/paste"), "Paste the message")
	assert.Contains(t, h.send(t, "no link in here"), "No link found")

	reply := h.send(t, "Hackathon signup https://hack.example/register see you")
	assert.Contains(t, reply, "Found a link")
	assert.Contains(t, reply, "https://hack.example/register")
	assert.Contains(t, reply, "Hackathon signup")

	h.send(t, "Skip") // keep the extracted title
	h.send(t, "Skip")
	h.send(t, "events")
	h.send(t, "2024-03-05")
	h.send(t, "Skip")
	h.send(t, "1 week before")
	h.send(t, "Teams of four")

	links := h.workspace(t).Links.All()
	require.Len(t, links, 1)
	assert.Equal(t, "Hackathon signup", links[0].Title)
	assert.Equal(t, "https://hack.example/register", links[0].URL)
	assert.Equal(t, time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC), links[0].Deadline)
	assert.Equal(t, time.Date(2024, 2, 27, 23, 59, 0, 0, time.UTC), links[0].ReminderTime)
	assert.Equal(t, "Teams of four", links[0].Notes)
}

func TestBareLinkStartsPaste(t *testing.T) {
	h := newHarness(t)
	reply := h.send(t, "https://uni.example/exam")
	assert.Contains(t, reply, "Found a link")
	assert.Contains(t, reply, "What should it be called?")
}

func TestEditConversation(t *testing.T) {
	h := newHarness(t)
	link := h.addLink(t, "Fair", 48*time.Hour)

	assert.Contains(t, h.send(t, "/edit "+service.ShortID(link.ID)), "Editing <b>Fair</b>")
	h.send(t, "Skip")
	h.send(t, "Skip")
	h.send(t, "Internships")
	h.send(t, "Skip")
	assert.Contains(t, h.send(t, "09:00"), "notes", "edit skips the reminder step")
	reply := h.send(t, "Bring CV")
	assert.Contains(t, reply, "Link updated")

	updated, err := h.workspace(t).Links.Get(link.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fair", updated.Title)
	assert.Equal(t, model.CategoryInternships, updated.Category)
	assert.Equal(t, time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC), updated.Deadline)
	assert.Equal(t, link.ReminderTime, updated.ReminderTime)
	assert.Equal(t, "Bring CV", updated.Notes)
}

func TestLinksListing(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.send(t, "/links"), "No links yet")

	late := h.addLink(t, "Late", 96*time.Hour)
	h.addLink(t, "Gone", -time.Hour)
	soon := h.addLink(t, "Soon", 24*time.Hour)
	_, err := h.workspace(t).SetStatus(context.Background(), late.ID, model.StatusApplied)
	require.NoError(t, err)

	reply := h.send(t, "/links")
	iSoon := strings.Index(reply, "Soon")
	iLate := strings.Index(reply, "Late")
	iGone := strings.Index(reply, "Gone")
	require.True(t, iSoon >= 0 && iLate >= 0 && iGone >= 0)
	assert.Less(t, iSoon, iLate)
	assert.Less(t, iLate, iGone, "expired links go last")

	markup, ok := h.api.lastMessage().ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 3)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, cbAppliedPrefix+soon.ID, *markup.InlineKeyboard[0][0].CallbackData)

	reply = h.send(t, "/links applied")
	assert.Contains(t, reply, "Late")
	assert.NotContains(t, reply, "Soon")

	assert.Contains(t, h.send(t, "/links exams"), "No links match")
	assert.Contains(t, h.send(t, "/links bogus"), "unknown filter")
}

func TestUpcomingAndStats(t *testing.T) {
	h := newHarness(t)
	h.addLink(t, "Later", 96*time.Hour)
	h.addLink(t, "Gone", -time.Hour)
	h.addLink(t, "Soon", 24*time.Hour)

	reply := h.send(t, "/upcoming")
	assert.Less(t, strings.Index(reply, "Soon"), strings.Index(reply, "Later"))
	assert.NotContains(t, reply, "Gone")

	reply = h.send(t, "/stats")
	assert.Contains(t, reply, "Total: 3")
	assert.Contains(t, reply, "Pending: 3")
	assert.Contains(t, reply, "Expired: 1")

	assert.Contains(t, h.send(t, "/digest"), "Daily digest")
}

func TestAppliedCommandAndButton(t *testing.T) {
	h := newHarness(t)
	a := h.addLink(t, "Alpha", 48*time.Hour)
	b := h.addLink(t, "Beta", 48*time.Hour)

	assert.Contains(t, h.send(t, "/applied "+service.ShortID(a.ID)), "marked as applied")
	assert.Contains(t, h.send(t, "/applied "+a.ID), "already marked")
	assert.Contains(t, h.send(t, "/applied zzzz"), "Link not found")
	assert.Contains(t, h.send(t, "/applied"), "Give the link id")

	assert.Contains(t, h.tap(t, cbAppliedPrefix+b.ID), "marked as applied")

	ws := h.workspace(t)
	for _, id := range []string{a.ID, b.ID} {
		link, err := ws.Links.Get(id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusApplied, link.Status)
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	h := newHarness(t)
	link := h.addLink(t, "Doomed", 48*time.Hour)

	assert.Contains(t, h.send(t, "/delete "+service.ShortID(link.ID)), "Delete «Doomed»?")
	assert.Contains(t, h.send(t, "maybe"), "Confirm or go back")
	assert.Contains(t, h.send(t, "no"), "Kept it")
	assert.Equal(t, 1, h.workspace(t).Links.Len())

	h.tap(t, cbDeletePrefix+link.ID)
	h.tap(t, cbCancelPrefix+link.ID)
	assert.Equal(t, 1, h.workspace(t).Links.Len())

	h.send(t, "/delete "+link.ID)
	assert.Contains(t, h.send(t, "yes"), "deleted")
	assert.Zero(t, h.workspace(t).Links.Len())

	other := h.addLink(t, "Other", 48*time.Hour)
	h.tap(t, cbDeletePrefix+other.ID)
	assert.Contains(t, h.tap(t, cbConfirmPrefix+other.ID), "«Other» deleted")
	assert.Contains(t, h.tap(t, cbConfirmPrefix+other.ID), "Link not found")
}

func TestNotifications(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.workspace(t)

	assert.Contains(t, h.send(t, "/notifications"), "inbox is empty")

	first, err := ws.PushNotification(ctx, model.Notification{Title: "Reminder", Message: "Fair closes in 1d 0h 0m", CreatedAt: testNow})
	require.NoError(t, err)
	second, err := ws.PushNotification(ctx, model.Notification{Title: "Reminder", Message: "Exam closes in 2d 0h 0m", CreatedAt: testNow.Add(time.Minute)})
	require.NoError(t, err)
	_, err = ws.PushNotification(ctx, model.Notification{Title: "Reminder", Message: "old", Read: true, CreatedAt: testNow.Add(-time.Hour)})
	require.NoError(t, err)

	reply := h.send(t, "/notifications")
	assert.Contains(t, reply, "2 unread")
	assert.Less(t, strings.Index(reply, "Exam"), strings.Index(reply, "Fair"), "newest first")
	markup, ok := h.api.lastMessage().ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Len(t, markup.InlineKeyboard, 2)

	assert.Contains(t, h.send(t, "/read "+service.ShortID(first.ID)), "1 unread left")
	assert.Contains(t, h.send(t, "/read "+first.ID), "1 unread left", "marking twice is harmless")
	assert.Contains(t, h.send(t, "/read nope"), "Notification not found")

	assert.Contains(t, h.tap(t, cbReadPrefix+second.ID), "0 unread left")
	assert.Contains(t, h.send(t, "/readall"), "Nothing unread")
}

func TestReadAll(t *testing.T) {
	h := newHarness(t)
	ws := h.workspace(t)
	for i := 0; i < 3; i++ {
		_, err := ws.PushNotification(context.Background(), model.Notification{Title: "Reminder", Message: "x"})
		require.NoError(t, err)
	}
	assert.Contains(t, h.send(t, "/readall"), "Marked 3 notifications")
	assert.Zero(t, ws.Notifications.UnreadCount())
}

func TestCountdownEditsAndStops(t *testing.T) {
	h := newHarness(t)
	link := h.addLink(t, "Exam", 2*time.Hour)

	reply := h.send(t, "/countdown "+service.ShortID(link.ID))
	assert.Contains(t, reply, "2h 0m 0s left")
	assert.Zero(t, h.api.edits(), "unchanged text is not re-sent")

	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool { return h.api.edits() >= 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, h.api.texts(), "⏱ <b>Exam</b>\n🔴 1h 59m 59s left")

	assert.Contains(t, h.send(t, "/stop"), "Countdown stopped")
	assert.Contains(t, h.send(t, "/stop"), "No countdown is running")
}

func TestCountdownExpiryNotice(t *testing.T) {
	h := newHarness(t)
	link := h.addLink(t, "Quick", 2*time.Second)

	h.send(t, "/countdown "+link.ID)
	h.bot.mu.Lock()
	display := h.bot.watchers[chat.ID].display
	h.bot.mu.Unlock()

	h.clock.Advance(3 * time.Second)
	require.Eventually(t, func() bool { return !display.Running() }, time.Second, 5*time.Millisecond)

	texts := h.api.texts()
	assert.Contains(t, texts, "⏱ <b>Quick</b>\n⚠️ <b>Expired</b>")
	assert.Contains(t, texts, "⌛ The deadline for «Quick» has passed.")
	assert.Contains(t, h.send(t, "/stop"), "No countdown is running")
}

func TestCountdownOnExpiredLinkNotifiesAtOnce(t *testing.T) {
	h := newHarness(t)
	link := h.addLink(t, "Past", -time.Hour)

	h.tap(t, cbCountdownPrefix+link.ID)
	texts := h.api.texts()
	require.GreaterOrEqual(t, len(texts), 2)
	assert.Contains(t, texts[len(texts)-2], "Expired")
	assert.Contains(t, texts[len(texts)-1], "«Past» has passed")
}

func TestNewCountdownReplacesOld(t *testing.T) {
	h := newHarness(t)
	a := h.addLink(t, "A", 2*time.Hour)
	b := h.addLink(t, "B", 3*time.Hour)

	h.send(t, "/countdown "+a.ID)
	h.send(t, "/countdown "+b.ID)

	h.bot.mu.Lock()
	w := h.bot.watchers[chat.ID]
	count := len(h.bot.watchers)
	h.bot.mu.Unlock()
	require.NotNil(t, w)
	assert.Equal(t, 1, count)
	assert.Equal(t, b.ID, w.linkID)
}

func TestDeliverReminders(t *testing.T) {
	h := newHarness(t)
	ws := h.workspace(t)
	link := h.addLink(t, "Fair", 48*time.Hour)
	n, err := ws.PushNotification(context.Background(), model.Notification{LinkID: link.ID, Title: "Reminder", Message: "Fair closes in 2d 0h 0m"})
	require.NoError(t, err)

	h.bot.DeliverReminders(context.Background(), []service.Reminder{
		{User: ws.User(), Link: link, Notification: n},
		{User: model.User{ID: 99}, Link: link, Notification: n},
	})

	msgs := h.api.texts()
	require.Len(t, msgs, 1)
	assert.Equal(t, "🔔 <b>Reminder</b>\nFair closes in 2d 0h 0m", msgs[0])
	assert.Equal(t, sam.ID, h.api.lastMessage().ChatID)
}

func TestSendDailyDigests(t *testing.T) {
	h := newHarness(t)
	h.addLink(t, "Fair", 48*time.Hour)

	require.NoError(t, h.bot.SendDailyDigests(context.Background()))
	assert.Contains(t, h.api.last(), "Daily digest")
	assert.Equal(t, sam.ID, h.api.lastMessage().ChatID)
}

func TestParseListFilters(t *testing.T) {
	tests := []struct {
		args     string
		category model.Category
		status   model.Status
		wantErr  bool
	}{
		{"", model.CategoryAll, model.StatusAll, false},
		{"exams", model.CategoryExams, model.StatusAll, false},
		{"applied", model.CategoryAll, model.StatusApplied, false},
		{"not-applied internships", model.CategoryInternships, model.StatusNotApplied, false},
		{"all expired", model.CategoryAll, model.StatusExpired, false},
		{"homework", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			category, status, err := parseListFilters(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.category, category)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestParseLeadDays(t *testing.T) {
	tests := map[string]int{
		"1":             1,
		"2 days before": 2,
		"3 days":        3,
		"1 week before": 7,
		"7":             7,
	}
	for in, want := range tests {
		got, ok := parseLeadDays(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "5", "two", "2 weeks"} {
		_, ok := parseLeadDays(in)
		assert.False(t, ok, in)
	}
}
