package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"equities-trading-bot/config"
)

// ErrSecretNotFound is returned when the secret path holds no data
var ErrSecretNotFound = errors.New("secret not found")

// Secret keys read from the KV entry
const (
	KeyAlpacaAPIKey      = "alpaca_api_key"
	KeyAlpacaSecretKey   = "alpaca_secret_key"
	KeyAIAPIKey          = "ai_api_key"
	KeyTelegramBotToken  = "telegram_bot_token"
	KeyDiscordWebhookURL = "discord_webhook_url"
	KeyDatabasePassword  = "database_password"
	KeyRedisPassword     = "redis_password"
	KeyJWTSecret         = "jwt_secret"
)

// logicalReader is the subset of api.Logical used here
type logicalReader interface {
	ReadWithContext(ctx context.Context, path string) (*api.Secret, error)
}

// Client wraps the HashiCorp Vault client
type Client struct {
	logical logicalReader
	sys     *api.Sys
	config  config.VaultConfig
	mu      sync.RWMutex
	cache   map[string]string
}

// NewClient creates a new Vault client. A disabled config yields a client
// that reads nothing.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	c := &Client{config: cfg}
	if !cfg.Enabled {
		return c, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)
	c.logical = client.Logical()
	c.sys = client.Sys()
	return c, nil
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Secrets reads the KV v2 entry at the configured path, caching the result
func (c *Client) Secrets(ctx context.Context) (map[string]string, error) {
	c.mu.RLock()
	if c.cache != nil {
		defer c.mu.RUnlock()
		return c.cache, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return map[string]string{}, nil
	}

	secret, err := c.logical.ReadWithContext(ctx, c.secretPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrSecretNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format at %s", c.secretPath())
	}

	out := make(map[string]string, len(data))
	for k := range data {
		if s := getString(data, k); s != "" {
			out[k] = s
		}
	}

	c.mu.Lock()
	c.cache = out
	c.mu.Unlock()
	return out, nil
}

// LoadInto copies Vault secrets over the matching config fields and
// returns how many were applied
func (c *Client) LoadInto(ctx context.Context, cfg *config.Config) (int, error) {
	secrets, err := c.Secrets(ctx)
	if err != nil {
		return 0, err
	}

	targets := map[string]*string{
		KeyAlpacaAPIKey:      &cfg.Broker.APIKey,
		KeyAlpacaSecretKey:   &cfg.Broker.SecretKey,
		KeyAIAPIKey:          &cfg.AI.APIKey,
		KeyTelegramBotToken:  &cfg.Notification.Telegram.BotToken,
		KeyDiscordWebhookURL: &cfg.Notification.Discord.WebhookURL,
		KeyDatabasePassword:  &cfg.Database.Password,
		KeyRedisPassword:     &cfg.Redis.Password,
		KeyJWTSecret:         &cfg.Server.JWTSecret,
	}

	applied := 0
	for key, field := range targets {
		if v, ok := secrets[key]; ok {
			*field = v
			applied++
		}
	}
	return applied, nil
}

// ClearCache drops cached secrets so the next read hits Vault
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = nil
	c.mu.Unlock()
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled || c.sys == nil {
		return nil
	}

	health, err := c.sys.HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

func (c *Client) secretPath() string {
	return fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
