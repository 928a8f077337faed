package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"retrievr/monitor-service/internal/model"
)

// TelegramChannel mirrors every alert into a fixed ops chat.
type TelegramChannel struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramChannel(token string, chatID int64) (*TelegramChannel, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &TelegramChannel{api: api, chatID: chatID}, nil
}

func (c *TelegramChannel) Name() string { return ChannelTelegram }

// Send posts the alert to the ops chat. The bot API client carries no
// context, so cancellation is honored only between calls.
func (c *TelegramChannel) Send(ctx context.Context, a model.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(c.chatID, TelegramText(a))
	msg.DisableWebPagePreview = true
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
