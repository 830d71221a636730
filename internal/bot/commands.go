package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"deadline-tracker/internal/model"
	"deadline-tracker/internal/service"
	"deadline-tracker/internal/store"
	"deadline-tracker/internal/view"
)

// maxListed keeps a listing inside Telegram's message size limit.
const maxListed = 15

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /add — track a link step by step\n" +
	"• /paste &lt;text&gt; — pull the link out of a forwarded message\n" +
	"• /links [category] [status] — your links, expired last\n" +
	"• /upcoming — the next five deadlines\n" +
	"• /stats — totals by status\n" +
	"• /digest — today's summary\n" +
	"• /applied &lt;id&gt; — mark a link as applied\n" +
	"• /edit &lt;id&gt; — change a link\n" +
	"• /delete &lt;id&gt; — remove a link\n" +
	"• /countdown &lt;id&gt; — live countdown, /stop to end it\n" +
	"• /notifications — your inbox\n" +
	"• /read &lt;id&gt;, /readall — mark notifications read\n" +
	"• /cancel — abort the current input\n\n" +
	"Categories: exams, internships, scholarships, events, applications.\n" +
	"Statuses: not_applied, applied, expired."

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	ws, err := b.workspace(ctx, msg.From)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I keep track of deadline-bound links</b>: exam registrations, internships, scholarships, events and applications.\n\n"+
			"You have %d links and %d unread notifications.\n\n%s",
		escape(ws.User().DisplayName()),
		ws.Links.Len(),
		ws.Notifications.UnreadCount(),
		helpText,
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, helpText)
}

func (b *Bot) handleLinks(ctx context.Context, msg *tgbotapi.Message) error {
	category, status, err := parseListFilters(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error())+"\nExample: /links internships applied")
	}
	return b.sendLinkList(ctx, msg.Chat.ID, msg.From, category, status)
}

// parseListFilters reads up to two words in any order, each a category or
// a status.
func parseListFilters(args string) (model.Category, model.Status, error) {
	category, status := model.CategoryAll, model.StatusAll
	for _, word := range strings.Fields(args) {
		if c, err := view.ParseCategoryFilter(word); err == nil && c != model.CategoryAll {
			category = c
			continue
		}
		if s, err := view.ParseStatusFilter(word); err == nil {
			if s != model.StatusAll {
				status = s
			}
			continue
		}
		return category, status, fmt.Errorf("unknown filter %q", word)
	}
	return category, status, nil
}

func (b *Bot) sendLinkList(ctx context.Context, chatID int64, from *tgbotapi.User, category model.Category, status model.Status) error {
	ws, err := b.workspace(ctx, from)
	if err != nil {
		return err
	}

	links := ws.Display(category, status)
	if len(links) == 0 {
		if category == model.CategoryAll && status == model.StatusAll {
			return b.sendText(chatID, "No links yet. Add one with /add or paste a message with /paste.")
		}
		return b.sendText(chatID, "No links match this filter.")
	}

	now := b.now()
	var builder strings.Builder
	builder.WriteString("🔗 <b>Your links</b>")
	if category != model.CategoryAll || status != model.StatusAll {
		builder.WriteString(fmt.Sprintf(" · %s · %s", category.Label(), status.Label()))
	}
	builder.WriteString("\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, link := range links {
		if i == maxListed {
			builder.WriteString(fmt.Sprintf("… and %d more. Narrow the list with filters.\n", len(links)-maxListed))
			break
		}
		builder.WriteString(service.FormatLink(link, now))
		builder.WriteByte('\n')
		buttons = append(buttons, linkButtons(link, link.IsExpired(now)))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleUpcoming(ctx context.Context, msg *tgbotapi.Message) error {
	ws, err := b.workspace(ctx, msg.From)
	if err != nil {
		return err
	}
	links := ws.Links.Upcoming(store.DefaultUpcomingLimit)
	if len(links) == 0 {
		return b.sendText(msg.Chat.ID, "Nothing coming up. 🎉")
	}

	now := b.now()
	var builder strings.Builder
	builder.WriteString("⏳ <b>Upcoming deadlines</b>\n\n")
	for _, link := range links {
		builder.WriteString(service.FormatLink(link, now))
		builder.WriteByte('\n')
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	ws, err := b.workspace(ctx, msg.From)
	if err != nil {
		return err
	}
	stats := ws.Stats()
	text := fmt.Sprintf("📊 <b>Overview</b>\n"+
		"• Total: %d\n"+
		"• Pending: %d\n"+
		"• Applied: %d\n"+
		"• Expired: %d\n"+
		"• Unread notifications: %d",
		stats.Total, stats.Pending, stats.Applied, stats.Expired, ws.Notifications.UnreadCount())
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleDigest(ctx context.Context, msg *tgbotapi.Message) error {
	ws, err := b.workspace(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendText(msg.Chat.ID, b.reminders.Digest(ws, b.now()))
}

func (b *Bot) handleApplied(ctx context.Context, msg *tgbotapi.Message) error {
	ref := strings.TrimSpace(msg.CommandArguments())
	if ref == "" {
		return b.sendText(msg.Chat.ID, "Give the link id: /applied 1a2b3c4d")
	}
	return b.markApplied(ctx, msg.Chat.ID, msg.From, ref)
}

func (b *Bot) markApplied(ctx context.Context, chatID int64, from *tgbotapi.User, ref string) error {
	ws, err := b.workspace(ctx, from)
	if err != nil {
		return err
	}
	link, err := ws.Resolve(ref)
	if err != nil {
		return b.explain(chatID, err)
	}
	if link.Status == model.StatusApplied {
		return b.sendText(chatID, fmt.Sprintf("«%s» is already marked as applied.", escape(link.Title)))
	}
	link, err = ws.SetStatus(ctx, link.ID, model.StatusApplied)
	if err != nil {
		return b.explain(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("✅ «%s» marked as applied.", escape(link.Title)))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	ref := strings.TrimSpace(msg.CommandArguments())
	if ref == "" {
		return b.sendText(msg.Chat.ID, "Give the link id: /delete 1a2b3c4d")
	}
	return b.askDeleteConfirmation(ctx, msg.Chat.ID, msg.From, ref)
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, ref string) error {
	ws, err := b.workspace(ctx, from)
	if err != nil {
		return err
	}
	link, err := ws.Resolve(ref)
	if err != nil {
		return b.explain(chatID, err)
	}

	b.clearConversation(from.ID)
	b.setConfirmation(from.ID, confirmationRequest{linkID: link.ID})

	text := fmt.Sprintf("Delete «%s»? Its notifications stay in your inbox.", escape(link.Title))
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", cbConfirmPrefix+link.ID),
		tgbotapi.NewInlineKeyboardButtonData("↩️ Keep", cbCancelPrefix+link.ID),
	))
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.deleteLink(ctx, msg.Chat.ID, msg.From, req.linkID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Kept it.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or go back.", confirmKeyboard())
	}
}

func (b *Bot) deleteLink(ctx context.Context, chatID int64, from *tgbotapi.User, linkID string) error {
	ws, err := b.workspace(ctx, from)
	if err != nil {
		return err
	}
	link, err := ws.Links.Get(linkID)
	if err != nil {
		return b.explain(chatID, err)
	}
	if err := ws.DeleteLink(ctx, linkID); err != nil {
		return b.explain(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("🗑 «%s» deleted.", escape(link.Title)))
}

func (b *Bot) handleNotifications(ctx context.Context, msg *tgbotapi.Message) error {
	ws, err := b.workspace(ctx, msg.From)
	if err != nil {
		return err
	}

	items := ws.Notifications.List()
	if len(items) == 0 {
		return b.sendText(msg.Chat.ID, "🔔 Your inbox is empty.")
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🔔 <b>Notifications</b> · %d unread\n\n", ws.Notifications.UnreadCount()))

	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, n := range items {
		if i == maxListed {
			builder.WriteString(fmt.Sprintf("… and %d older.\n", len(items)-maxListed))
			break
		}
		icon := "✉️"
		if n.Read {
			icon = "📭"
		}
		builder.WriteString(fmt.Sprintf("%s <b>%s</b> · %s\n   %s\n   🆔 <code>%s</code>\n\n",
			icon,
			escape(n.Title),
			n.CreatedAt.In(b.opts.Location).Format("Jan 2 15:04"),
			escape(n.Message),
			service.ShortID(n.ID),
		))
		if !n.Read {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("📭 Read · "+shortTitle(n.Message, 24), cbReadPrefix+n.ID),
			))
		}
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, strings.TrimSpace(builder.String()))
	out.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handleRead(ctx context.Context, msg *tgbotapi.Message) error {
	ref := strings.TrimSpace(msg.CommandArguments())
	if ref == "" {
		return b.sendText(msg.Chat.ID, "Give the notification id: /read 1a2b3c4d")
	}
	return b.markRead(ctx, msg.Chat.ID, msg.From, ref)
}

func (b *Bot) markRead(ctx context.Context, chatID int64, from *tgbotapi.User, ref string) error {
	ws, err := b.workspace(ctx, from)
	if err != nil {
		return err
	}
	id, err := resolveNotification(ws.Notifications.List(), ref)
	if err != nil {
		return b.explain(chatID, err)
	}
	if _, err := ws.MarkRead(ctx, id); err != nil {
		return b.explain(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("📭 Marked as read. %d unread left.", ws.Notifications.UnreadCount()))
}

func (b *Bot) handleReadAll(ctx context.Context, msg *tgbotapi.Message) error {
	ws, err := b.workspace(ctx, msg.From)
	if err != nil {
		return err
	}
	changed, err := ws.MarkAllRead(ctx)
	if err != nil {
		return b.explain(msg.Chat.ID, err)
	}
	if changed == 0 {
		return b.sendText(msg.Chat.ID, "Nothing unread.")
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("📭 Marked %d notifications as read.", changed))
}

// resolveNotification accepts a full id or an unambiguous prefix.
func resolveNotification(items []model.Notification, ref string) (string, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	var found []string
	for _, n := range items {
		if n.ID == ref {
			return n.ID, nil
		}
		if ref != "" && strings.HasPrefix(n.ID, ref) {
			found = append(found, n.ID)
		}
	}
	switch len(found) {
	case 0:
		return "", store.ErrNotificationNotFound
	case 1:
		return found[0], nil
	default:
		return "", store.ErrAmbiguousID
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	b.log.Debug("callback", zap.Int64("from", cb.From.ID), zap.String("data", data))

	switch {
	case strings.HasPrefix(data, cbAppliedPrefix):
		b.ackCallback(cb, "")
		return b.markApplied(ctx, chatID, cb.From, strings.TrimPrefix(data, cbAppliedPrefix))
	case strings.HasPrefix(data, cbDeletePrefix):
		b.ackCallback(cb, "")
		return b.askDeleteConfirmation(ctx, chatID, cb.From, strings.TrimPrefix(data, cbDeletePrefix))
	case strings.HasPrefix(data, cbConfirmPrefix):
		b.ackCallback(cb, "")
		b.clearConfirmation(cb.From.ID)
		return b.deleteLink(ctx, chatID, cb.From, strings.TrimPrefix(data, cbConfirmPrefix))
	case strings.HasPrefix(data, cbCancelPrefix):
		b.ackCallback(cb, "Kept it")
		b.clearConfirmation(cb.From.ID)
		return nil
	case strings.HasPrefix(data, cbCountdownPrefix):
		b.ackCallback(cb, "")
		return b.startCountdownFor(ctx, chatID, cb.From, strings.TrimPrefix(data, cbCountdownPrefix))
	case strings.HasPrefix(data, cbReadPrefix):
		b.ackCallback(cb, "")
		return b.markRead(ctx, chatID, cb.From, strings.TrimPrefix(data, cbReadPrefix))
	default:
		b.ackCallback(cb, "")
		return nil
	}
}

// DeliverReminders forwards scan results to the users that came from
// Telegram.
func (b *Bot) DeliverReminders(ctx context.Context, reminders []service.Reminder) {
	for _, r := range reminders {
		if ctx.Err() != nil {
			return
		}
		if r.User.TelegramID == nil {
			continue
		}
		text := fmt.Sprintf("🔔 <b>%s</b>\n%s", escape(r.Notification.Title), escape(r.Notification.Message))
		msg := tgbotapi.NewMessage(*r.User.TelegramID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			linkButtons(r.Link, false),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📭 Mark read", cbReadPrefix+r.Notification.ID)),
		)
		if _, err := b.api.Send(msg); err != nil {
			b.log.Warn("deliver reminder", zap.Int64("chat_id", *r.User.TelegramID), zap.Error(err))
		}
	}
}

// SendDailyDigests sends a summary to every loaded Telegram workspace.
func (b *Bot) SendDailyDigests(ctx context.Context) error {
	now := b.now()
	for _, ws := range b.workspaces.Loaded() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		user := ws.User()
		if user.TelegramID == nil {
			continue
		}
		if err := b.sendText(*user.TelegramID, b.reminders.Digest(ws, now)); err != nil {
			b.log.Warn("send digest", zap.Int64("chat_id", *user.TelegramID), zap.Error(err))
		}
	}
	return nil
}
