// Package notify alerts the admin Telegram group when a requester is
// waiting for a human. Delivery is best-effort.
package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"supportdesk/backend/internal/localization"
	"supportdesk/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	queueSize       = 64
	maxConcernChars = 300
)

// Sender is the part of tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier queues alerts and sends them from Run.
type TelegramNotifier struct {
	BotAPI    Sender
	ChatID    int64
	Localizer *localization.Localizer
	queue     chan models.ChatSession
	log       *zap.Logger
}

// NewTelegramNotifier authorizes the bot token.
func NewTelegramNotifier(token string, chatID int64, loc *localization.Localizer, log *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram authorize: %w", err)
	}
	bot.Debug = false
	log.Info("telegram notifier authorized", zap.String("account", bot.Self.UserName))
	return NewWithSender(bot, chatID, loc, log), nil
}

// NewWithSender builds a notifier over any Sender.
func NewWithSender(s Sender, chatID int64, loc *localization.Localizer, log *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		BotAPI:    s,
		ChatID:    chatID,
		Localizer: loc,
		queue:     make(chan models.ChatSession, queueSize),
		log:       log,
	}
}

// SessionWaiting enqueues an alert. It never blocks; a full queue drops the alert.
func (n *TelegramNotifier) SessionWaiting(session *models.ChatSession) {
	select {
	case n.queue <- *session:
	default:
		n.log.Warn("notification queue full, dropping", zap.String("session_id", session.ID))
	}
}

// Run sends queued alerts until ctx is cancelled.
func (n *TelegramNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case session := <-n.queue:
			msg := tgbotapi.NewMessage(n.ChatID, n.Render(&session))
			if _, err := n.BotAPI.Send(msg); err != nil {
				n.log.Warn("telegram send failed", zap.String("session_id", session.ID), zap.Error(err))
			}
		}
	}
}

// Render formats the alert text. Plain text, so no markdown escaping.
func (n *TelegramNotifier) Render(session *models.ChatSession) string {
	t := func(key string) string { return n.Localizer.GetString(localization.DefaultLanguage, key) }

	from := t("notify.guest")
	switch r := session.Requester(); {
	case r.UserID != "":
		from = "user " + r.UserID
	case r.DisplayName != "":
		from = t("notify.guest") + " (" + r.DisplayName + ")"
	}

	concern := session.Concern
	if utf8.RuneCountInString(concern) > maxConcernChars {
		concern = string([]rune(concern)[:maxConcernChars]) + "…"
	}

	var sb strings.Builder
	sb.WriteString("🆕 " + t("notify.session_waiting") + "\n")
	sb.WriteString(t("notify.from") + ": " + from + "\n")
	sb.WriteString(t("notify.concern") + ": " + concern + "\n")
	sb.WriteString("ID: " + session.ID)
	return sb.String()
}
