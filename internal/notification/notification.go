// Package notification delivers operator alerts to Telegram, Discord and Kafka.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifySignal         NotificationType = "signal"
	NotifyTradeOpen      NotificationType = "trade_open"
	NotifyTradeClose     NotificationType = "trade_close"
	NotifyCircuitBreaker NotificationType = "circuit_breaker"
	NotifyAlert          NotificationType = "alert"
	NotifyError          NotificationType = "error"
	NotifyInfo           NotificationType = "info"
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType       `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Symbol    string                 `json:"symbol,omitempty"`
	ThreadKey string                 `json:"thread_key,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Notifier is one delivery channel
type Notifier interface {
	Send(ctx context.Context, n *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans notifications out to every enabled notifier
type Manager struct {
	notifiers []Notifier
	logger    zerolog.Logger
	now       func() time.Time
}

// NewManager creates a new notification manager
func NewManager(logger zerolog.Logger, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		logger:    logger.With().Str("component", "notification").Logger(),
		now:       time.Now,
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Enabled lists the names of enabled notifiers
func (m *Manager) Enabled() []string {
	var names []string
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			names = append(names, n.Name())
		}
	}
	return names
}

// Send delivers a plain message. data["type"] and data["symbol"], when strings, fill the
// matching fields.
func (m *Manager) Send(ctx context.Context, message string, data map[string]interface{}, threadKey string) error {
	n := &Notification{
		Type:      NotifyInfo,
		Title:     "Trading bot",
		Message:   message,
		ThreadKey: threadKey,
		Data:      data,
	}
	if t, ok := data["type"].(string); ok && t != "" {
		n.Type = NotificationType(t)
	}
	if s, ok := data["symbol"].(string); ok {
		n.Symbol = s
	}
	if title, ok := data["title"].(string); ok && title != "" {
		n.Title = title
	}
	return m.Notify(ctx, n)
}

// Notify sends to all enabled providers and returns the last error
func (m *Manager) Notify(ctx context.Context, n *Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = m.now()
	}

	var lastErr error
	for _, notifier := range m.notifiers {
		if !notifier.IsEnabled() {
			continue
		}
		if err := notifier.Send(ctx, n); err != nil {
			m.logger.Warn().Err(err).Str("notifier", notifier.Name()).Str("type", string(n.Type)).Msg("Notification failed")
			lastErr = fmt.Errorf("%s: %w", notifier.Name(), err)
		}
	}
	return lastErr
}

// SendTradeOpen sends a trade opened notification
func (m *Manager) SendTradeOpen(ctx context.Context, symbol, side string, price, quantity float64, reason string) error {
	return m.Notify(ctx, &Notification{
		Type:      NotifyTradeOpen,
		Title:     fmt.Sprintf("Trade opened: %s", symbol),
		Message:   fmt.Sprintf("%s %.0f %s @ %.2f\nReason: %s", side, quantity, symbol, price, reason),
		Symbol:    symbol,
		ThreadKey: symbol,
		Data: map[string]interface{}{
			"side":     side,
			"price":    price,
			"quantity": quantity,
		},
	})
}

// SendTradeClose sends a trade closed notification
func (m *Manager) SendTradeClose(ctx context.Context, symbol string, exitPrice float64, reason string) error {
	return m.Notify(ctx, &Notification{
		Type:      NotifyTradeClose,
		Title:     fmt.Sprintf("Trade closed: %s", symbol),
		Message:   fmt.Sprintf("Exit @ %.2f\nReason: %s", exitPrice, reason),
		Symbol:    symbol,
		ThreadKey: symbol,
		Data:      map[string]interface{}{"price": exitPrice, "reason": reason},
	})
}

// SendCircuitBreaker announces a tripped breaker
func (m *Manager) SendCircuitBreaker(ctx context.Context, dailyLoss, limit float64) error {
	return m.Notify(ctx, &Notification{
		Type:    NotifyCircuitBreaker,
		Title:   "Circuit breaker triggered",
		Message: fmt.Sprintf("Daily loss %.2f reached limit %.2f. Trading halted until reset.", dailyLoss, limit),
		Data:    map[string]interface{}{"daily_loss": dailyLoss, "limit": limit},
	})
}

// SendError sends an error notification
func (m *Manager) SendError(ctx context.Context, title, message string) error {
	return m.Notify(ctx, &Notification{
		Type:    NotifyError,
		Title:   title,
		Message: message,
	})
}
