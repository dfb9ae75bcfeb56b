package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"equities-trading-bot/internal/httpclient"
)

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	WebhookURL string `json:"webhook_url" yaml:"webhook_url"`
}

// DiscordNotifier posts embeds to a Discord webhook
type DiscordNotifier struct {
	config DiscordConfig
	client *httpclient.Client
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		config: config,
		client: httpclient.New(httpclient.Options{Timeout: 10 * time.Second, RequestsPerSec: 2, MaxRetries: 2}),
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.config.Enabled && d.config.WebhookURL != ""
}

func embedColor(t NotificationType) int {
	switch t {
	case NotifyError, NotifyCircuitBreaker:
		return 0xFF0000
	case NotifyAlert:
		return 0xFFA500
	default:
		return 0x00FF00
	}
}

func (d *DiscordNotifier) Send(ctx context.Context, n *Notification) error {
	if !d.IsEnabled() {
		return nil
	}

	embed := map[string]interface{}{
		"title":       n.Title,
		"description": n.Message,
		"color":       embedColor(n.Type),
		"timestamp":   n.Timestamp.Format(time.RFC3339),
	}
	if n.Symbol != "" {
		embed["fields"] = []map[string]interface{}{
			{"name": "Symbol", "value": n.Symbol, "inline": true},
		}
	}
	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	if err := d.client.DoJSON(ctx, http.MethodPost, d.config.WebhookURL, nil, payload, nil); err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	return nil
}
