package notifier

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender messages members who linked a Telegram chat to their account.
type TelegramSender struct {
	bot telegramBot
}

func NewTelegramSender(token string) (*TelegramSender, error) {
	b, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	b.Debug = false
	return &TelegramSender{bot: b}, nil
}

func (s *TelegramSender) Name() string { return "telegram" }

func (s *TelegramSender) Send(ctx context.Context, to Recipient, text string) error {
	if to.TelegramChatID == 0 {
		return ErrNoAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(tgbotapi.NewMessage(to.TelegramChatID, text))
	return err
}
