package circuit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/order"
	"equities-trading-bot/internal/state"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateClosed BreakerState = "closed" // Normal operation
	StateOpen   BreakerState = "open"   // New entries halted
)

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled" default:"true"`
	DailyLossLimit float64 `json:"daily_loss_limit" yaml:"daily_loss_limit" default:"1000" validate:"gte=0"`
	Timezone       string  `json:"timezone" yaml:"timezone" default:"America/New_York"`
}

// DefaultCircuitBreakerConfig returns safe defaults
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Enabled:        true,
		DailyLossLimit: 1000,
		Timezone:       "America/New_York",
	}
}

// TradeSource provides the fills realized P&L is computed from
type TradeSource interface {
	TradesSince(ctx context.Context, since time.Time) ([]order.Trade, error)
}

// Status is a snapshot of the breaker
type Status struct {
	State          BreakerState `json:"state"`
	Triggered      bool         `json:"triggered"`
	DailyLoss      float64      `json:"daily_loss"`
	DailyLossLimit float64      `json:"daily_loss_limit"`
	TradingDate    string       `json:"trading_date"`
	Reason         string       `json:"reason,omitempty"`
	CheckedAt      time.Time    `json:"checked_at"`
}

// CircuitBreaker halts new entries once realized daily losses reach the limit.
// A trip is latched until Reset.
type CircuitBreaker struct {
	config    *CircuitBreakerConfig
	trades    TradeSource
	store     state.Store
	location  *time.Location
	logger    zerolog.Logger
	now       func() time.Time
	mu        sync.Mutex
	triggered bool
	dailyLoss float64
	date      string
	reason    string
	checkedAt time.Time
	onTrip    func(Status)
	onReset   func()
}

// NewCircuitBreaker creates a new circuit breaker; store may be nil
func NewCircuitBreaker(config *CircuitBreakerConfig, trades TradeSource, store state.Store, logger zerolog.Logger) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	logger = logger.With().Str("component", "circuit_breaker").Logger()

	location := time.UTC
	if config.Timezone != "" {
		loc, err := time.LoadLocation(config.Timezone)
		if err != nil {
			logger.Warn().Err(err).Str("timezone", config.Timezone).Msg("Failed to load timezone, using UTC")
		} else {
			location = loc
		}
	}

	return &CircuitBreaker{
		config:   config,
		trades:   trades,
		store:    store,
		location: location,
		logger:   logger,
		now:      time.Now,
	}
}

// OnTrip sets callback for when breaker trips
func (cb *CircuitBreaker) OnTrip(handler func(Status)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onTrip = handler
}

// OnReset sets callback for when breaker resets
func (cb *CircuitBreaker) OnReset(handler func()) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onReset = handler
}

// TradingDate returns the exchange-local date of t
func (cb *CircuitBreaker) TradingDate(t time.Time) string {
	return t.In(cb.location).Format("2006-01-02")
}

// StartOfDay returns local midnight of t's trading date
func (cb *CircuitBreaker) StartOfDay(t time.Time) time.Time {
	local := t.In(cb.location)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, cb.location)
}

// RealizedPnL sums, per symbol with at least one sell, sell value minus buy value.
// Symbols with only buys are open positions and contribute nothing.
func RealizedPnL(trades []order.Trade) float64 {
	type flows struct {
		bought, sold float64
		hasSell      bool
	}
	bySymbol := make(map[string]*flows)
	for _, t := range trades {
		f, ok := bySymbol[t.Symbol]
		if !ok {
			f = &flows{}
			bySymbol[t.Symbol] = f
		}
		switch t.Side {
		case broker.SideBuy:
			f.bought += t.Value
		case broker.SideSell:
			f.sold += t.Value
			f.hasSell = true
		}
	}

	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	total := 0.0
	for _, s := range symbols {
		if f := bySymbol[s]; f.hasSell {
			total += f.sold - f.bought
		}
	}
	return total
}

// Restore loads the latched state persisted for today. State from an earlier
// trading date is ignored.
func (cb *CircuitBreaker) Restore(ctx context.Context) error {
	if cb.store == nil {
		return nil
	}
	date, ok, err := cb.store.Get(ctx, state.KeyCircuitBreakerDate)
	if err != nil {
		return fmt.Errorf("failed to restore circuit breaker: %w", err)
	}
	today := cb.TradingDate(cb.now())
	if !ok || date != today {
		return nil
	}
	triggered, err := state.GetBool(ctx, cb.store, state.KeyCircuitBreakerTriggered)
	if err != nil {
		return fmt.Errorf("failed to restore circuit breaker: %w", err)
	}
	loss, err := state.GetFloat(ctx, cb.store, state.KeyCircuitBreakerDailyLoss)
	if err != nil {
		return fmt.Errorf("failed to restore circuit breaker: %w", err)
	}

	cb.mu.Lock()
	cb.triggered = triggered
	cb.dailyLoss = loss
	cb.date = today
	if triggered {
		cb.reason = fmt.Sprintf("daily loss %.2f >= limit %.2f (restored)", loss, cb.config.DailyLossLimit)
	}
	cb.mu.Unlock()

	if triggered {
		cb.logger.Warn().Float64("daily_loss", loss).Msg("Circuit breaker restored in triggered state")
	}
	return nil
}

// Check recomputes today's realized loss and trips when it reaches the limit.
// On a trade-log error the previous state is kept and the error returned.
func (cb *CircuitBreaker) Check(ctx context.Context) (Status, error) {
	if !cb.config.Enabled {
		return cb.Status(), nil
	}

	now := cb.now()
	trades, err := cb.trades.TradesSince(ctx, cb.StartOfDay(now))
	if err != nil {
		return cb.Status(), fmt.Errorf("failed to load today's trades: %w", err)
	}
	loss := -RealizedPnL(trades)

	cb.mu.Lock()
	cb.dailyLoss = loss
	cb.date = cb.TradingDate(now)
	cb.checkedAt = now
	tripped := false
	if !cb.triggered && loss >= cb.config.DailyLossLimit {
		cb.triggered = true
		cb.reason = fmt.Sprintf("daily loss %.2f >= limit %.2f", loss, cb.config.DailyLossLimit)
		tripped = true
	}
	status := cb.statusLocked()
	onTrip := cb.onTrip
	cb.mu.Unlock()

	cb.persist(ctx, status)
	if tripped {
		cb.logger.Error().Float64("daily_loss", loss).Float64("limit", cb.config.DailyLossLimit).Msg("Circuit breaker triggered")
		if onTrip != nil {
			onTrip(status)
		}
	}
	return status, nil
}

// Reset clears the latch, typically at the start of a new trading day
func (cb *CircuitBreaker) Reset(ctx context.Context) error {
	cb.mu.Lock()
	cb.triggered = false
	cb.dailyLoss = 0
	cb.reason = ""
	cb.date = cb.TradingDate(cb.now())
	status := cb.statusLocked()
	onReset := cb.onReset
	cb.mu.Unlock()

	cb.logger.Info().Str("trading_date", status.TradingDate).Msg("Circuit breaker reset")
	if onReset != nil {
		onReset()
	}
	return cb.persistErr(ctx, status)
}

func (cb *CircuitBreaker) persist(ctx context.Context, s Status) {
	if err := cb.persistErr(ctx, s); err != nil {
		cb.logger.Warn().Err(err).Msg("Failed to persist circuit breaker state")
	}
}

func (cb *CircuitBreaker) persistErr(ctx context.Context, s Status) error {
	if cb.store == nil {
		return nil
	}
	if err := state.SetBool(ctx, cb.store, state.KeyCircuitBreakerTriggered, s.Triggered); err != nil {
		return err
	}
	if err := cb.store.Set(ctx, state.KeyCircuitBreakerDate, s.TradingDate); err != nil {
		return err
	}
	return state.SetFloat(ctx, cb.store, state.KeyCircuitBreakerDailyLoss, s.DailyLoss)
}

// Status returns the current snapshot
func (cb *CircuitBreaker) Status() Status {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.statusLocked()
}

func (cb *CircuitBreaker) statusLocked() Status {
	st := StateClosed
	if cb.triggered {
		st = StateOpen
	}
	return Status{
		State:          st,
		Triggered:      cb.triggered,
		DailyLoss:      cb.dailyLoss,
		DailyLossLimit: cb.config.DailyLossLimit,
		TradingDate:    cb.date,
		Reason:         cb.reason,
		CheckedAt:      cb.checkedAt,
	}
}

// IsTriggered reports whether new entries are halted
func (cb *CircuitBreaker) IsTriggered() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.triggered
}

// IsEnabled returns if circuit breaker is enabled
func (cb *CircuitBreaker) IsEnabled() bool {
	return cb.config.Enabled
}
