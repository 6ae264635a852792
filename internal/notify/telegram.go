package notify

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramChannel delivers messages through the Telegram bot API.
type TelegramChannel struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

// NewTelegramChannel builds the channel. An empty token yields a disabled
// channel whose Send always returns false.
func NewTelegramChannel(token string, logger *zap.Logger) *TelegramChannel {
	if strings.TrimSpace(token) == "" {
		if logger != nil {
			logger.Info("telegram channel disabled: no bot token")
		}
		return &TelegramChannel{logger: logger}
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		if logger != nil {
			logger.Error("telegram bot init failed", zap.Error(err))
		}
		return &TelegramChannel{logger: logger}
	}
	return &TelegramChannel{api: api, logger: logger}
}

func (c *TelegramChannel) Send(recipient, message string, _ SendOptions) bool {
	if c == nil || c.api == nil {
		return false
	}
	if strings.TrimSpace(message) == "" {
		if c.logger != nil {
			c.logger.Warn("refusing to send empty telegram message", zap.String("recipient", recipient))
		}
		return false
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(recipient), 10, 64)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("invalid telegram chat id", zap.String("recipient", recipient))
		}
		return false
	}
	msg := tgbotapi.NewMessage(chatID, message)
	if _, err := c.api.Send(msg); err != nil {
		if c.logger != nil {
			c.logger.Warn("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		return false
	}
	return true
}
