package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"deadline-tracker/internal/linkform"
	"deadline-tracker/internal/model"
)

const (
	btnSkip           = "⏭️ Skip"
	btnConfirm        = "✅ Confirm"
	btnCancel         = "↩️ Back"
	btnCancelDialog   = "⏪ Cancel"
	menuLabelAdd      = "➕ Add link"
	menuLabelLinks    = "🔗 Links"
	menuLabelUpcoming = "⏳ Upcoming"
	menuLabelInbox    = "🔔 Inbox"
)

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelAdd),
			tgbotapi.NewKeyboardButton(menuLabelLinks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelUpcoming),
			tgbotapi.NewKeyboardButton(menuLabelInbox),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// retryKeyboard offers Skip only when the step already has a value to keep.
func retryKeyboard(hasValue bool) tgbotapi.ReplyKeyboardMarkup {
	if hasValue {
		return skipKeyboard()
	}
	return cancelKeyboard()
}

func categoryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, c := range model.Categories {
		row = append(row, tgbotapi.NewKeyboardButton(c.Label()))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	row = append(row, tgbotapi.NewKeyboardButton(btnSkip))
	rows = append(rows, row, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))

	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func timeKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("09:00"),
			tgbotapi.NewKeyboardButton("12:00"),
			tgbotapi.NewKeyboardButton("18:00"),
			tgbotapi.NewKeyboardButton(linkform.DefaultTimeOfDay),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func leadKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var row []tgbotapi.KeyboardButton
	for _, days := range linkform.LeadDayOptions {
		row = append(row, tgbotapi.NewKeyboardButton(leadLabel(days)))
	}
	kb := tgbotapi.NewReplyKeyboard(
		row,
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func leadLabel(days int) string {
	switch days {
	case 1:
		return "1 day before"
	case 7:
		return "1 week before"
	default:
		return fmt.Sprintf("%d days before", days)
	}
}

// parseLeadDays reads a typed or tapped lead time: "3", "3 days before",
// "1 week before".
func parseLeadDays(text string) (int, bool) {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, false
	}
	if len(fields) > 1 && strings.HasPrefix(fields[1], "week") {
		n *= 7
	}
	return n, linkform.ValidLeadDays(n)
}

// linkButtons are the inline actions under a listed link.
func linkButtons(link model.Link, expired bool) []tgbotapi.InlineKeyboardButton {
	var row []tgbotapi.InlineKeyboardButton
	if link.Status == model.StatusNotApplied && !expired {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✅ Applied", cbAppliedPrefix+link.ID))
	}
	row = append(row,
		tgbotapi.NewInlineKeyboardButtonData("⏱ Countdown", cbCountdownPrefix+link.ID),
		tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", cbDeletePrefix+link.ID),
	)
	return row
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "back" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel"
}
