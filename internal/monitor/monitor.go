// Package monitor watches open positions and raises exit alerts.
package monitor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/options"
)

// AlertType classifies a position alert
type AlertType string

const (
	AlertStopLoss          AlertType = "STOP_LOSS"
	AlertTakeProfit        AlertType = "TAKE_PROFIT"
	AlertTrailingStop      AlertType = "TRAILING_STOP"
	AlertOptionsExpiration AlertType = "OPTIONS_EXPIRATION"
	AlertPriceMove         AlertType = "PRICE_MOVE"
)

// Action is what the alert asks the workflow to do
type Action string

const (
	ActionSell  Action = "SELL"
	ActionClose Action = "CLOSE"
	ActionHold  Action = "HOLD"
)

// Alert is one monitor finding
type Alert struct {
	Symbol        string          `json:"symbol"`
	Type          AlertType       `json:"type"`
	Action        Action          `json:"action"`
	Message       string          `json:"message"`
	Position      broker.Position `json:"position"`
	HighWaterMark float64         `json:"high_water_mark,omitempty"`
	StopPrice     float64         `json:"stop_price,omitempty"`
	TriggeredAt   time.Time       `json:"triggered_at"`
}

// IsExit reports whether the alert asks for the position to be closed
func (a Alert) IsExit() bool {
	return a.Action == ActionSell || a.Action == ActionClose
}

// Config holds exit thresholds, all in percent except ExpirationCloseDTE
type Config struct {
	StopLossPercent           float64
	TakeProfitPercent         float64
	TrailingEnabled           bool
	TrailingStopPercent       float64
	TrailingActivationPercent float64
	ExpirationCloseDTE        int
	PriceMovePercent          float64
}

// DefaultConfig returns default thresholds
func DefaultConfig() Config {
	return Config{
		StopLossPercent:           5,
		TakeProfitPercent:         10,
		TrailingEnabled:           true,
		TrailingStopPercent:       3,
		TrailingActivationPercent: 2,
		ExpirationCloseDTE:        1,
		PriceMovePercent:          3,
	}
}

// PositionMonitor evaluates open positions against exit rules
type PositionMonitor struct {
	gateway  broker.Gateway
	config   Config
	trailing *TrailingStopManager
	logger   zerolog.Logger
	now      func() time.Time
}

// NewPositionMonitor creates a monitor over gateway
func NewPositionMonitor(gateway broker.Gateway, config Config, logger zerolog.Logger) *PositionMonitor {
	return &PositionMonitor{
		gateway: gateway,
		config:  config,
		trailing: NewTrailingStopManager(TrailingConfig{
			Enabled:           config.TrailingEnabled,
			TrailingPercent:   config.TrailingStopPercent,
			ActivationPercent: config.TrailingActivationPercent,
		}, logger),
		logger: logger.With().Str("component", "monitor").Logger(),
		now:    time.Now,
	}
}

// Trailing exposes the trailing stop state
func (m *PositionMonitor) Trailing() *TrailingStopManager {
	return m.trailing
}

// CheckPositions returns alerts for every open position, sorted by symbol
func (m *PositionMonitor) CheckPositions(ctx context.Context) ([]Alert, error) {
	positions, err := m.gateway.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	now := m.now()
	open := make(map[string]bool, len(positions))
	var alerts []Alert
	for _, pos := range positions {
		if pos.Quantity == 0 {
			continue
		}
		open[pos.Symbol] = true
		if alert, ok := m.evaluate(pos, now); ok {
			alerts = append(alerts, alert)
		}
	}

	if dropped := m.trailing.Retain(open); len(dropped) > 0 {
		m.logger.Debug().Strs("symbols", dropped).Msg("Forgot closed positions")
	}
	return alerts, nil
}

// evaluate returns the highest priority alert for pos
func (m *PositionMonitor) evaluate(pos broker.Position, now time.Time) (Alert, bool) {
	// trailing state advances on every tick, whichever alert fires
	update := m.trackTrailing(pos)
	alert := func(t AlertType, a Action, format string, args ...interface{}) (Alert, bool) {
		out := Alert{
			Symbol:      pos.Symbol,
			Type:        t,
			Action:      a,
			Message:     fmt.Sprintf(format, args...),
			Position:    pos,
			TriggeredAt: now,
		}
		if tp := m.trailing.GetPosition(pos.Symbol); tp != nil {
			out.HighWaterMark = tp.HighWaterMark
			out.StopPrice = tp.CurrentStopLoss
		}
		return out, true
	}

	if pos.IsOption() {
		if contract, err := options.ParseSymbol(pos.Symbol); err == nil {
			dte := broker.Expiration{Date: contract.Expiration}.DTE(now)
			if dte <= m.config.ExpirationCloseDTE {
				return alert(AlertOptionsExpiration, ActionClose, "%s expires in %d day(s)", pos.Symbol, dte)
			}
		} else {
			m.logger.Warn().Err(err).Str("symbol", pos.Symbol).Msg("Unparseable option symbol")
		}
	}

	pl := pos.UnrealizedPLPercent
	if m.config.StopLossPercent > 0 && pl <= -m.config.StopLossPercent {
		return alert(AlertStopLoss, ActionSell, "%s down %.2f%% (stop %.2f%%)", pos.Symbol, pl, m.config.StopLossPercent)
	}
	if m.config.TakeProfitPercent > 0 && pl >= m.config.TakeProfitPercent {
		return alert(AlertTakeProfit, ActionSell, "%s up %.2f%% (target %.2f%%)", pos.Symbol, pl, m.config.TakeProfitPercent)
	}

	if update != nil && update.IsTriggered && update.WasActivated {
		return alert(AlertTrailingStop, ActionSell, "%s hit trailing stop %.2f at %.2f", pos.Symbol, update.NewStopLoss, update.TriggerPrice)
	}

	if m.config.PriceMovePercent > 0 && math.Abs(pos.ChangeTodayPercent) >= m.config.PriceMovePercent {
		return alert(AlertPriceMove, ActionHold, "%s moved %.2f%% today", pos.Symbol, pos.ChangeTodayPercent)
	}
	return Alert{}, false
}

func (m *PositionMonitor) trackTrailing(pos broker.Position) *StopUpdate {
	if !m.config.TrailingEnabled || pos.AvgEntryPrice <= 0 {
		return nil
	}
	short := pos.Quantity < 0
	stop := pos.AvgEntryPrice * (1 - m.config.StopLossPercent/100)
	if short {
		stop = pos.AvgEntryPrice * (1 + m.config.StopLossPercent/100)
	}
	m.trailing.Track(pos.Symbol, short, pos.AvgEntryPrice, stop)
	return m.trailing.UpdatePrice(pos.Symbol, pos.CurrentPrice)
}
