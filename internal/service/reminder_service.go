package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"deadline-tracker/internal/countdown"
	"deadline-tracker/internal/metrics"
	"deadline-tracker/internal/model"
	"deadline-tracker/internal/store"
)

// ReminderTitle is the title of notifications produced by ScanDue.
const ReminderTitle = "Reminder"

// Reminder is a notification produced by a scan, with enough context to
// deliver it elsewhere.
type Reminder struct {
	User         model.User
	Link         model.Link
	Notification model.Notification
}

// ReminderService turns passed reminder times into notifications and builds
// the daily digest.
type ReminderService struct {
	workspaces *WorkspaceService
	metrics    *metrics.Metrics
	log        *zap.Logger
}

func NewReminderService(workspaces *WorkspaceService, m *metrics.Metrics, log *zap.Logger) *ReminderService {
	return &ReminderService{workspaces: workspaces, metrics: m, log: log}
}

// ScanDue pushes one reminder per link whose reminder time has passed while
// the link is still open. Links already reminded are skipped.
func (s *ReminderService) ScanDue(ctx context.Context, now time.Time) ([]Reminder, error) {
	var out []Reminder
	for _, ws := range s.workspaces.Loaded() {
		for _, link := range ws.Links.All() {
			if !reminderDue(link, now) || ws.Notifications.HasForLink(link.ID, model.NotificationReminder) {
				continue
			}
			n, err := ws.PushNotification(ctx, model.Notification{
				LinkID:    link.ID,
				Kind:      model.NotificationReminder,
				Title:     ReminderTitle,
				Message:   reminderMessage(link, now),
				CreatedAt: now,
			})
			if err != nil {
				return out, fmt.Errorf("push reminder for %s: %w", link.ID, err)
			}
			out = append(out, Reminder{User: ws.User(), Link: link, Notification: n})
		}
	}

	s.metrics.RemindersProduced(len(out))
	if len(out) > 0 {
		s.log.Info("reminders produced", zap.Int("count", len(out)))
	}
	return out, nil
}

func reminderDue(link model.Link, now time.Time) bool {
	if link.ReminderTime.IsZero() || link.ReminderTime.After(now) {
		return false
	}
	return link.Status == model.StatusNotApplied && !link.IsExpired(now)
}

func reminderMessage(link model.Link, now time.Time) string {
	left := countdown.Compute(link.Deadline, now)
	return fmt.Sprintf("%s closes in %s", link.Title, countdown.Format(left))
}

// Digest renders the workspace summary sent by the bot each morning.
func (s *ReminderService) Digest(ws *Workspace, now time.Time) string {
	upcoming := ws.Links.Upcoming(store.DefaultUpcomingLimit)
	stats := ws.Stats()

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily digest</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("Mon, 02 Jan 2006")))

	builder.WriteString("⏳ <b>Upcoming deadlines</b>\n")
	if len(upcoming) == 0 {
		builder.WriteString("— nothing due\n")
	} else {
		for _, link := range upcoming {
			builder.WriteString(FormatLink(link, now))
		}
	}

	builder.WriteString("\n📊 <b>Overview</b>\n")
	builder.WriteString(fmt.Sprintf("Total: %d · Pending: %d · Applied: %d · Expired: %d\n",
		stats.Total, stats.Pending, stats.Applied, stats.Expired))

	if unread := ws.Notifications.UnreadCount(); unread > 0 {
		builder.WriteString(fmt.Sprintf("\n🔔 Unread notifications: %d\n", unread))
	}

	return strings.TrimSpace(builder.String())
}

// UrgencyIcon marks a countdown by how close it is.
func UrgencyIcon(r countdown.Remaining) string {
	if r.Expired {
		return "⚠️"
	}
	switch r.Urgency() {
	case countdown.UrgencyUrgent:
		return "🔴"
	case countdown.UrgencyWarning:
		return "🟠"
	default:
		return "🟢"
	}
}

// FormatLink renders one link as an HTML block for Telegram.
func FormatLink(link model.Link, now time.Time) string {
	var sb strings.Builder

	left := countdown.Compute(link.Deadline, now)
	title := html.EscapeString(strings.TrimSpace(link.Title))
	sb.WriteString(fmt.Sprintf("%s <b>%s</b> <i>(%s)</i>", UrgencyIcon(left), title, link.Category.Label()))

	deadline := link.Deadline.In(now.Location()).Format("2006-01-02 15:04")
	if link.IsExpired(now) {
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s · <b>expired</b>", deadline))
	} else {
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s · %s left", deadline, countdown.Format(left)))
	}

	status := link.EffectiveStatus(now)
	sb.WriteString(fmt.Sprintf("\n   📌 %s · 🆔 <code>%s</code>", status.Label(), ShortID(link.ID)))

	if link.Notes != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(link.Notes))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

// ShortID is the id prefix shown in chat; store lookups accept it.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
