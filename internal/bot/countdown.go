package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"deadline-tracker/internal/countdown"
	"deadline-tracker/internal/model"
	"deadline-tracker/internal/service"
)

// watcher is a live countdown message in one chat.
type watcher struct {
	linkID  string
	display *countdown.Display
	cancel  context.CancelFunc
}

func (b *Bot) handleCountdown(ctx context.Context, msg *tgbotapi.Message) error {
	ref := strings.TrimSpace(msg.CommandArguments())
	if ref == "" {
		return b.sendText(msg.Chat.ID, "Give the link id: /countdown 1a2b3c4d")
	}
	return b.startCountdownFor(ctx, msg.Chat.ID, msg.From, ref)
}

func (b *Bot) startCountdownFor(ctx context.Context, chatID int64, from *tgbotapi.User, ref string) error {
	ws, err := b.workspace(ctx, from)
	if err != nil {
		return err
	}
	link, err := ws.Resolve(ref)
	if err != nil {
		return b.explain(chatID, err)
	}
	return b.startCountdown(ctx, chatID, link)
}

// startCountdown sends a countdown message and keeps editing it until the
// watch window closes, the deadline passes, /stop arrives or another
// countdown replaces it.
func (b *Bot) startCountdown(ctx context.Context, chatID int64, link model.Link) error {
	b.stopCountdown(chatID)

	initial := countdownText(link, countdown.Compute(link.Deadline, b.opts.Now()))
	msg := tgbotapi.NewMessage(chatID, initial)
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := b.api.Send(msg)
	if err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		last = initial
	)
	onTick := func(r countdown.Remaining) {
		text := countdownText(link, r)
		mu.Lock()
		if text == last {
			mu.Unlock()
			return
		}
		last = text
		mu.Unlock()

		edit := tgbotapi.NewEditMessageText(chatID, sent.MessageID, text)
		edit.ParseMode = tgbotapi.ModeHTML
		if _, err := b.api.Send(edit); err != nil {
			b.log.Warn("edit countdown", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
	onExpired := func() {
		notice := fmt.Sprintf("⌛ The deadline for «%s» has passed.", escape(link.Title))
		if err := b.sendText(chatID, notice); err != nil {
			b.log.Warn("send expiry notice", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}

	display := countdown.NewDisplay(link.Deadline, onTick,
		countdown.WithInterval(b.opts.CountdownRefresh),
		countdown.WithClock(b.opts.Now),
		countdown.OnExpired(onExpired),
	)

	watchCtx, cancel := context.WithTimeout(ctx, b.opts.CountdownWatch)
	b.mu.Lock()
	b.watchers[chatID] = &watcher{linkID: link.ID, display: display, cancel: cancel}
	b.mu.Unlock()

	b.log.Debug("countdown started", zap.Int64("chat_id", chatID), zap.String("link_id", link.ID))
	display.Start(watchCtx)
	return nil
}

// stopCountdown unmounts the chat's countdown. It reports whether one was
// still running.
func (b *Bot) stopCountdown(chatID int64) bool {
	b.mu.Lock()
	w, ok := b.watchers[chatID]
	delete(b.watchers, chatID)
	b.mu.Unlock()
	if !ok {
		return false
	}

	running := w.display.Running()
	w.cancel()
	w.display.Stop()
	return running
}

// StopCountdowns unmounts every live countdown.
func (b *Bot) StopCountdowns() {
	b.mu.Lock()
	chats := make([]int64, 0, len(b.watchers))
	for chatID := range b.watchers {
		chats = append(chats, chatID)
	}
	b.mu.Unlock()

	for _, chatID := range chats {
		b.stopCountdown(chatID)
	}
}

func countdownText(link model.Link, r countdown.Remaining) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⏱ <b>%s</b>\n", escape(link.Title)))
	if r.Expired {
		sb.WriteString("⚠️ <b>Expired</b>")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("%s %s left", service.UrgencyIcon(r), countdown.Format(r)))
	return sb.String()
}
