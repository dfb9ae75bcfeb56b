package monitor

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TrailingConfig holds trailing stop configuration
type TrailingConfig struct {
	Enabled           bool
	TrailingPercent   float64 // distance from the high water mark
	ActivationPercent float64 // profit % that arms the trail
}

// TrailingPosition tracks one position's trailing stop
type TrailingPosition struct {
	Symbol           string    `json:"symbol"`
	Short            bool      `json:"short"`
	EntryPrice       float64   `json:"entry_price"`
	CurrentStopLoss  float64   `json:"current_stop_loss"`
	OriginalStopLoss float64   `json:"original_stop_loss"`
	HighWaterMark    float64   `json:"high_water_mark"` // low water mark for shorts
	IsActivated      bool      `json:"is_activated"`
	LastUpdate       time.Time `json:"last_update"`
}

// StopUpdate reports a moved or hit stop
type StopUpdate struct {
	Symbol       string
	OldStopLoss  float64
	NewStopLoss  float64
	IsTriggered  bool
	WasActivated bool
	TriggerPrice float64
}

// TrailingStopManager manages trailing stops for open positions
type TrailingStopManager struct {
	positions map[string]*TrailingPosition
	config    TrailingConfig
	logger    zerolog.Logger
	now       func() time.Time
	mu        sync.RWMutex
}

// NewTrailingStopManager creates a new trailing stop manager
func NewTrailingStopManager(config TrailingConfig, logger zerolog.Logger) *TrailingStopManager {
	return &TrailingStopManager{
		positions: make(map[string]*TrailingPosition),
		config:    config,
		logger:    logger.With().Str("component", "trailing_stop").Logger(),
		now:       time.Now,
	}
}

// Track starts tracking symbol unless it is already tracked
func (tsm *TrailingStopManager) Track(symbol string, short bool, entryPrice, stopLoss float64) {
	tsm.mu.Lock()
	defer tsm.mu.Unlock()

	if _, ok := tsm.positions[symbol]; ok {
		return
	}
	tsm.positions[symbol] = &TrailingPosition{
		Symbol:           symbol,
		Short:            short,
		EntryPrice:       entryPrice,
		CurrentStopLoss:  stopLoss,
		OriginalStopLoss: stopLoss,
		HighWaterMark:    entryPrice,
		LastUpdate:       tsm.now(),
	}
	tsm.logger.Debug().Str("symbol", symbol).Bool("short", short).
		Float64("entry", entryPrice).Float64("stop", stopLoss).Msg("Tracking position")
}

// Remove stops tracking symbol
func (tsm *TrailingStopManager) Remove(symbol string) {
	tsm.mu.Lock()
	defer tsm.mu.Unlock()
	delete(tsm.positions, symbol)
}

// Retain forgets every tracked symbol not in open
func (tsm *TrailingStopManager) Retain(open map[string]bool) []string {
	tsm.mu.Lock()
	defer tsm.mu.Unlock()

	var dropped []string
	for symbol := range tsm.positions {
		if !open[symbol] {
			delete(tsm.positions, symbol)
			dropped = append(dropped, symbol)
		}
	}
	return dropped
}

// UpdatePrice feeds a new price and returns a stop update, if any
func (tsm *TrailingStopManager) UpdatePrice(symbol string, currentPrice float64) *StopUpdate {
	tsm.mu.Lock()
	defer tsm.mu.Unlock()

	pos, exists := tsm.positions[symbol]
	if !exists || currentPrice <= 0 {
		return nil
	}

	var update *StopUpdate
	if pos.Short {
		update = tsm.updateShort(pos, currentPrice)
	} else {
		update = tsm.updateLong(pos, currentPrice)
	}
	pos.LastUpdate = tsm.now()
	return update
}

func (tsm *TrailingStopManager) updateLong(pos *TrailingPosition, price float64) *StopUpdate {
	if price <= pos.CurrentStopLoss {
		return &StopUpdate{
			Symbol:       pos.Symbol,
			OldStopLoss:  pos.CurrentStopLoss,
			NewStopLoss:  pos.CurrentStopLoss,
			IsTriggered:  true,
			WasActivated: pos.IsActivated,
			TriggerPrice: price,
		}
	}

	if price > pos.HighWaterMark {
		pos.HighWaterMark = price
	}

	profitPercent := (price - pos.EntryPrice) / pos.EntryPrice * 100
	if !pos.IsActivated && profitPercent >= tsm.config.ActivationPercent {
		pos.IsActivated = true
		tsm.logger.Info().Str("symbol", pos.Symbol).Float64("profit_pct", profitPercent).Msg("Trailing stop activated")
	}

	if !pos.IsActivated || !tsm.config.Enabled {
		return nil
	}
	newStop := pos.HighWaterMark * (1 - tsm.config.TrailingPercent/100)
	// only ratchet up
	if newStop <= pos.CurrentStopLoss {
		return nil
	}
	old := pos.CurrentStopLoss
	pos.CurrentStopLoss = newStop
	tsm.logger.Debug().Str("symbol", pos.Symbol).Float64("old", old).Float64("new", newStop).
		Float64("hwm", pos.HighWaterMark).Msg("Stop moved up")
	return &StopUpdate{Symbol: pos.Symbol, OldStopLoss: old, NewStopLoss: newStop, WasActivated: true}
}

func (tsm *TrailingStopManager) updateShort(pos *TrailingPosition, price float64) *StopUpdate {
	if price >= pos.CurrentStopLoss {
		return &StopUpdate{
			Symbol:       pos.Symbol,
			OldStopLoss:  pos.CurrentStopLoss,
			NewStopLoss:  pos.CurrentStopLoss,
			IsTriggered:  true,
			WasActivated: pos.IsActivated,
			TriggerPrice: price,
		}
	}

	if price < pos.HighWaterMark {
		pos.HighWaterMark = price
	}

	profitPercent := (pos.EntryPrice - price) / pos.EntryPrice * 100
	if !pos.IsActivated && profitPercent >= tsm.config.ActivationPercent {
		pos.IsActivated = true
		tsm.logger.Info().Str("symbol", pos.Symbol).Float64("profit_pct", profitPercent).Msg("Trailing stop activated (short)")
	}

	if !pos.IsActivated || !tsm.config.Enabled {
		return nil
	}
	newStop := pos.HighWaterMark * (1 + tsm.config.TrailingPercent/100)
	if newStop >= pos.CurrentStopLoss {
		return nil
	}
	old := pos.CurrentStopLoss
	pos.CurrentStopLoss = newStop
	return &StopUpdate{Symbol: pos.Symbol, OldStopLoss: old, NewStopLoss: newStop, WasActivated: true}
}

// GetPosition returns a copy of the tracked state for symbol
func (tsm *TrailingStopManager) GetPosition(symbol string) *TrailingPosition {
	tsm.mu.RLock()
	defer tsm.mu.RUnlock()

	if pos, exists := tsm.positions[symbol]; exists {
		cp := *pos
		return &cp
	}
	return nil
}

// GetAllPositions returns copies of all tracked positions
func (tsm *TrailingStopManager) GetAllPositions() []TrailingPosition {
	tsm.mu.RLock()
	defer tsm.mu.RUnlock()

	out := make([]TrailingPosition, 0, len(tsm.positions))
	for _, pos := range tsm.positions {
		out = append(out, *pos)
	}
	return out
}
