package notification

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	BotToken    string `json:"bot_token" yaml:"bot_token"`
	ChatID      int64  `json:"chat_id" yaml:"chat_id"`
	APIEndpoint string `json:"api_endpoint,omitempty" yaml:"api_endpoint,omitempty"`
}

// TelegramNotifier sends notifications via a Telegram bot
type TelegramNotifier struct {
	config TelegramConfig
	mu     sync.Mutex
	bot    *tgbotapi.BotAPI
}

// NewTelegramNotifier creates a Telegram notifier; the bot connects on first send
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	if config.APIEndpoint == "" {
		config.APIEndpoint = tgbotapi.APIEndpoint
	}
	return &TelegramNotifier{config: config}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.config.Enabled && t.config.BotToken != "" && t.config.ChatID != 0
}

func (t *TelegramNotifier) client() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(t.config.BotToken, t.config.APIEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
	}
	t.bot = bot
	return bot, nil
}

func (t *TelegramNotifier) Send(ctx context.Context, n *Notification) error {
	if !t.IsEnabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	bot, err := t.client()
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.config.ChatID, fmt.Sprintf("%s\n\n%s", n.Title, n.Message))
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
