// Package providers contains escalation channels that mirror urgent
// popups to external services.
package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"facility-notify/internal/config"
	"facility-notify/internal/models"
	"facility-notify/internal/popup"
	"facility-notify/internal/utils"
)

// TelegramSink forwards urgent alerts to a facility operations chat. It
// satisfies popup.Sink; non-urgent alerts and badge traffic are ignored.
type TelegramSink struct {
	bot     *bot.Bot
	chatID  int64
	limiter *rate.Limiter
	logger  *logrus.Logger
}

func NewTelegramSink(cfg config.Config, logger *logrus.Logger) (*TelegramSink, error) {
	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("missing telegram bot token")
	}
	b, err := bot.New(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	return &TelegramSink{
		bot:     b,
		chatID:  cfg.Telegram.ChatID,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.Telegram.RatePerSecond)), cfg.Telegram.RatePerSecond),
		logger:  logger,
	}, nil
}

// ShowAlert mirrors urgent alerts to the operations chat.
func (s *TelegramSink) ShowAlert(a popup.Alert) {
	if a.Priority != models.PriorityUrgent {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		s.logger.Errorf("Telegram rate limit wait failed for alert %s: %v", a.ID, err)
		return
	}

	text := fmt.Sprintf("*%s*\n%s", a.Title, a.Body)
	err := utils.Retry(s.logger, 3, time.Second, func() error {
		params := &bot.SendMessageParams{
			ChatID:    s.chatID,
			Text:      text,
			ParseMode: "Markdown",
		}
		if _, err := s.bot.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", s.chatID, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Errorf("Failed to escalate alert %s to Telegram: %v", a.ID, err)
	}
}

// CloseAlert is a no-op; chat messages are not retracted.
func (s *TelegramSink) CloseAlert(string) {}

// UpdateBadge is a no-op for the escalation channel.
func (s *TelegramSink) UpdateBadge(int) {}

// PlayAlertSound is a no-op for the escalation channel.
func (s *TelegramSink) PlayAlertSound() error { return nil }
