package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"deadline-tracker/internal/linkform"
	"deadline-tracker/internal/model"
	"deadline-tracker/internal/repository"
	"deadline-tracker/internal/service"
	"deadline-tracker/internal/store"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

const (
	cbAppliedPrefix   = "applied:"
	cbDeletePrefix    = "delete:"
	cbConfirmPrefix   = "confirm:"
	cbCancelPrefix    = "cancel:"
	cbCountdownPrefix = "countdown:"
	cbReadPrefix      = "read:"
)

// Options tune the bot. Zero values fall back to the defaults below.
type Options struct {
	Location         *time.Location
	CountdownRefresh time.Duration
	CountdownWatch   time.Duration
	Now              func() time.Time
}

type confirmationRequest struct {
	linkID string
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api        API
	log        *zap.Logger
	users      *repository.UserRepository
	workspaces *service.WorkspaceService
	reminders  *service.ReminderService
	opts       Options

	mu            sync.Mutex
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	watchers      map[int64]*watcher
}

func New(token string, users *repository.UserRepository, workspaces *service.WorkspaceService, reminders *service.ReminderService, opts Options, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info("bot authorized", zap.String("account", api.Self.UserName))

	return NewWithAPI(api, users, workspaces, reminders, opts, log), nil
}

// NewWithAPI builds a bot on an existing API client.
func NewWithAPI(api API, users *repository.UserRepository, workspaces *service.WorkspaceService, reminders *service.ReminderService, opts Options, log *zap.Logger) *Bot {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.CountdownRefresh <= 0 {
		opts.CountdownRefresh = time.Second
	}
	if opts.CountdownWatch <= 0 {
		opts.CountdownWatch = 2 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = workspaces.Now
	}

	return &Bot{
		api:           api,
		log:           log,
		users:         users,
		workspaces:    workspaces,
		reminders:     reminders,
		opts:          opts,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
		watchers:      make(map[int64]*watcher),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.HandleUpdate(ctx, update)
	}

	b.StopCountdowns()
	return nil
}

// HandleUpdate routes one update. Errors are logged, never returned.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.log.Error("handle callback", zap.Error(err))
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.Error("handle message", zap.Int64("chat_id", update.Message.Chat.ID), zap.Error(err))
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled. Nothing was saved.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.Debug("command",
			zap.Int64("from", msg.From.ID),
			zap.String("command", msg.Command()),
			zap.String("args", msg.CommandArguments()),
		)
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	// a bare message with a link in it is treated like /paste
	if _, ok := linkform.Extract(msg.Text); ok {
		return b.startPaste(ctx, msg, msg.Text)
	}

	return b.sendText(msg.Chat.ID, "I didn't get that. Send /add to track a link, or /help for all commands.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "add":
		return b.startAddConversation(ctx, msg)
	case "paste":
		return b.startPaste(ctx, msg, msg.CommandArguments())
	case "links":
		return b.handleLinks(ctx, msg)
	case "upcoming":
		return b.handleUpcoming(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg)
	case "digest":
		return b.handleDigest(ctx, msg)
	case "applied":
		return b.handleApplied(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "edit":
		return b.startEditConversation(ctx, msg)
	case "countdown":
		return b.handleCountdown(ctx, msg)
	case "stop":
		if !b.stopCountdown(msg.Chat.ID) {
			return b.sendText(msg.Chat.ID, "No countdown is running.")
		}
		return b.sendText(msg.Chat.ID, "⏹ Countdown stopped.")
	case "notifications":
		return b.handleNotifications(ctx, msg)
	case "read":
		return b.handleRead(ctx, msg)
	case "readall":
		return b.handleReadAll(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled. Nothing was saved.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelAdd):
		return true, b.startAddConversation(ctx, msg)
	case strings.ToLower(menuLabelLinks):
		return true, b.sendLinkList(ctx, msg.Chat.ID, msg.From, model.CategoryAll, model.StatusAll)
	case strings.ToLower(menuLabelUpcoming):
		return true, b.handleUpcoming(ctx, msg)
	case strings.ToLower(menuLabelInbox):
		return true, b.handleNotifications(ctx, msg)
	default:
		return false, nil
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

// workspace resolves the sender's workspace, loading it on first contact.
func (b *Bot) workspace(ctx context.Context, from *tgbotapi.User) (*service.Workspace, error) {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return nil, err
	}
	return b.workspaces.Workspace(ctx, *user)
}

// explain turns a domain error into a chat reply. Unexpected errors are
// logged and returned so the caller's error path still sees them.
func (b *Bot) explain(chatID int64, err error) error {
	return b.explainWith(chatID, err, mainMenuKeyboard())
}

// explainWith replies like explain but keeps markup on screen, so a user
// retrying a dialog step still has its buttons.
func (b *Bot) explainWith(chatID int64, err error, markup interface{}) error {
	var verr *linkform.ValidationError
	switch {
	case errors.As(err, &verr):
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("⚠️ <b>%s</b>\n%s", escape(verr.Title), escape(verr.Message)), markup)
	case errors.Is(err, store.ErrLinkNotFound):
		return b.sendWithReplyMarkup(chatID, "Link not found. Use /links to see the ids.", markup)
	case errors.Is(err, store.ErrNotificationNotFound):
		return b.sendWithReplyMarkup(chatID, "Notification not found. Use /notifications to see the ids.", markup)
	case errors.Is(err, store.ErrAmbiguousID):
		return b.sendWithReplyMarkup(chatID, "That id matches more than one entry. Type a few more characters.", markup)
	default:
		if sendErr := b.sendWithReplyMarkup(chatID, "Something went wrong. Please try again.", markup); sendErr != nil {
			b.log.Warn("send error notice", zap.Error(sendErr))
		}
		return err
	}
}

func (b *Bot) now() time.Time {
	return b.opts.Now().In(b.opts.Location)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ackCallback(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.log.Warn("callback ack", zap.Error(err))
	}
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func escape(s string) string {
	return html.EscapeString(s)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
