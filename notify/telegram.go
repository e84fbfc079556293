package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxSummaryItems caps how many listings one message spells out; the
// rest is an overflow count pointing at the sheet.
const maxSummaryItems = 10

// Telegram sends run summaries to a fixed chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a notifier for the given bot token and chat.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// Send delivers one text message, link previews disabled.
func (t *Telegram) Send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}

// Summary formats the per-run message from the newly accepted listing
// lines. An empty run gets its own message so the channel still hears
// from every invocation.
func Summary(items []string) string {
	if len(items) == 0 {
		return "📭 Zonaprop — no new matching listings this run."
	}

	shown := items
	if len(shown) > maxSummaryItems {
		shown = shown[:maxSummaryItems]
	}

	msg := "🏠 New opportunities (Zonaprop) — filters OK\n" + strings.Join(shown, "\n")
	if extra := len(items) - maxSummaryItems; extra > 0 {
		msg += fmt.Sprintf("\n… and %d more in the sheet.", extra)
	}
	return msg
}
