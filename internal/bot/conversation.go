package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"deadline-tracker/internal/linkform"
	"deadline-tracker/internal/model"
	"deadline-tracker/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stagePaste
	stageTitle
	stageURL
	stageCategory
	stageDate
	stageTime
	stageLead
	stageNotes
)

// conversationState is one user's half-filled form. Editing reuses the
// same stages with every field prefilled, so Skip keeps the current value.
type conversationState struct {
	stage conversationStage
	form  *linkform.Form
}

func (s *conversationState) editing() bool {
	return s.form.EditingID != ""
}

func (b *Bot) startAddConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.clearConfirmation(msg.From.ID)
	state := &conversationState{stage: stageTitle, form: linkform.New()}
	b.setConversation(msg.From.ID, state)
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New link.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

// startPaste prefills the form from a pasted message. Without text it asks
// for one first.
func (b *Bot) startPaste(ctx context.Context, msg *tgbotapi.Message, text string) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.clearConfirmation(msg.From.ID)
	state := &conversationState{stage: stagePaste, form: linkform.New()}
	b.setConversation(msg.From.ID, state)

	if strings.TrimSpace(text) == "" {
		return b.sendWithReplyMarkup(msg.Chat.ID, "📋 Paste the message that contains the link.", cancelKeyboard())
	}
	return b.applyPaste(msg.Chat.ID, state, text)
}

func (b *Bot) applyPaste(chatID int64, state *conversationState, text string) error {
	ex, err := state.form.ApplyExtraction(text)
	if err != nil {
		// stay in the paste stage so the user can try again
		return b.explainWith(chatID, err, cancelKeyboard())
	}

	var sb strings.Builder
	sb.WriteString("🔎 <b>Found a link</b>\n")
	sb.WriteString(fmt.Sprintf("• <b>URL:</b> %s\n", escape(ex.URL)))
	if ex.Title != "" {
		sb.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(ex.Title)))
	}
	sb.WriteByte('\n')

	state.stage = stageTitle
	if state.form.Title == "" {
		sb.WriteString("What should it be called?")
		return b.sendWithReplyMarkup(chatID, sb.String(), cancelKeyboard())
	}
	sb.WriteString("Tap Skip to keep this title, or send a better one.")
	return b.sendWithReplyMarkup(chatID, sb.String(), skipKeyboard())
}

func (b *Bot) startEditConversation(ctx context.Context, msg *tgbotapi.Message) error {
	ref := strings.TrimSpace(msg.CommandArguments())
	if ref == "" {
		return b.sendText(msg.Chat.ID, "Give the link id: /edit 1a2b3c4d")
	}
	ws, err := b.workspace(ctx, msg.From)
	if err != nil {
		return err
	}
	link, err := ws.Resolve(ref)
	if err != nil {
		return b.explain(msg.Chat.ID, err)
	}

	b.clearConfirmation(msg.From.ID)
	state := &conversationState{stage: stageTitle, form: linkform.ForEdit(link, b.opts.Location)}
	b.setConversation(msg.From.ID, state)

	text := fmt.Sprintf("✏️ Editing <b>%s</b>. Tap Skip to keep a value.\n\nTitle?", escape(link.Title))
	return b.sendWithReplyMarkup(msg.Chat.ID, text, skipKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	skip := isSkipInput(text)
	form := state.form

	switch state.stage {
	case stagePaste:
		return b.applyPaste(chatID, state, text)
	case stageTitle:
		if !(skip && form.Title != "") {
			if text == "" || skip {
				return b.sendWithReplyMarkup(chatID, "The title can't be empty.", cancelKeyboard())
			}
			form.Title = text
		}
		state.stage = stageURL
		if form.URL != "" {
			return b.sendWithReplyMarkup(chatID, fmt.Sprintf("🔗 URL? Current: %s", escape(form.URL)), skipKeyboard())
		}
		return b.sendWithReplyMarkup(chatID, "🔗 Send the URL, for example <code>https://university.edu/apply</code>.", cancelKeyboard())
	case stageURL:
		if !(skip && form.URL != "") {
			if !linkform.ValidURL(text) {
				return b.explainWith(chatID, linkform.ErrInvalidURL, retryKeyboard(form.URL != ""))
			}
			form.URL = text
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("🏷 Category? Current: %s", form.Category.Label()), categoryKeyboard())
	case stageCategory:
		if !skip {
			category, err := model.ParseCategory(text)
			if err != nil {
				return b.explainWith(chatID, linkform.ErrInvalidCategory, categoryKeyboard())
			}
			form.Category = category
		}
		state.stage = stageDate
		prompt := "📅 Deadline date? Use <code>2025-11-30</code> or <code>30.11.2025</code>."
		if form.Date != nil {
			prompt += fmt.Sprintf(" Current: %s", form.Date.Format("2006-01-02"))
			return b.sendWithReplyMarkup(chatID, prompt, skipKeyboard())
		}
		return b.sendWithReplyMarkup(chatID, prompt, cancelKeyboard())
	case stageDate:
		if !(skip && form.Date != nil) {
			date, err := linkform.ParseDate(text, b.opts.Location)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "I can't read that date. Use <code>2025-11-30</code>.", retryKeyboard(form.Date != nil))
			}
			form.Date = &date
		}
		state.stage = stageTime
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("🕐 Time of day? Current: %s", escape(form.TimeOfDay)), timeKeyboard())
	case stageTime:
		if !skip {
			if _, err := time.Parse("15:04", text); err != nil {
				return b.explainWith(chatID, linkform.ErrInvalidTime, timeKeyboard())
			}
			form.TimeOfDay = text
		}
		if state.editing() {
			// the reminder of an existing link is never recomputed
			state.stage = stageNotes
			return b.sendWithReplyMarkup(chatID, b.notesPrompt(form), skipKeyboard())
		}
		state.stage = stageLead
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("🔔 Remind me… Current: %s", leadLabel(form.LeadDays)), leadKeyboard())
	case stageLead:
		if !skip {
			days, ok := parseLeadDays(text)
			if !ok {
				return b.explainWith(chatID, linkform.ErrInvalidLeadTime, leadKeyboard())
			}
			form.LeadDays = days
		}
		state.stage = stageNotes
		return b.sendWithReplyMarkup(chatID, b.notesPrompt(form), skipKeyboard())
	case stageNotes:
		if !skip {
			form.Notes = text
		}
		err := b.finishForm(ctx, msg.From, chatID, state)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(chatID, "The dialog was reset. Start again with /add.")
	}
}

func (b *Bot) notesPrompt(form *linkform.Form) string {
	if form.Notes != "" {
		return fmt.Sprintf("📝 Notes? Current: %s", escape(form.Notes))
	}
	return "📝 Any notes? (or Skip)"
}

func (b *Bot) finishForm(ctx context.Context, from *tgbotapi.User, chatID int64, state *conversationState) error {
	ws, err := b.workspace(ctx, from)
	if err != nil {
		return err
	}

	editing := state.editing()
	link, err := ws.SubmitForm(ctx, state.form, b.opts.Location)
	if err != nil {
		var verr *linkform.ValidationError
		if errors.As(err, &verr) || service.IsNotFound(err) {
			return b.explain(chatID, err)
		}
		return fmt.Errorf("submit form: %w", err)
	}

	b.log.Info("link saved from chat",
		zap.Uint("user_id", ws.UserID()),
		zap.String("link_id", link.ID),
		zap.Bool("edit", editing),
	)

	now := b.now()
	var summary strings.Builder
	if editing {
		summary.WriteString("✅ <b>Link updated</b>\n\n")
	} else {
		summary.WriteString("✅ <b>Link saved</b>\n\n")
	}
	summary.WriteString(service.FormatLink(link, now))
	if !editing {
		summary.WriteString(fmt.Sprintf("\n🔔 Reminder at %s", link.ReminderTime.In(b.opts.Location).Format("2006-01-02 15:04")))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(summary.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(linkButtons(link, link.IsExpired(now)))
	_, err = b.api.Send(msg)
	return err
}
