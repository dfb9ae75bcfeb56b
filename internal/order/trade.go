package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"equities-trading-bot/internal/broker"
)

// OptionMultiplier is the share count one option contract controls
const OptionMultiplier = 100

// Trade is one recorded fill
type Trade struct {
	ID            string            `json:"id"`
	OrderID       string            `json:"order_id"`
	ClientOrderID string            `json:"client_order_id"`
	Symbol        string            `json:"symbol"`
	AssetClass    broker.AssetClass `json:"asset_class"`
	Side          broker.OrderSide  `json:"side"`
	Quantity      float64           `json:"quantity"`
	Price         float64           `json:"price"`
	Value         float64           `json:"value"` // price * quantity * multiplier
	Strategy      string            `json:"strategy"`
	ExecutedAt    time.Time         `json:"executed_at"`
}

// Multiplier returns the contract multiplier for an asset class
func Multiplier(assetClass broker.AssetClass) float64 {
	if assetClass == broker.AssetClassOption {
		return OptionMultiplier
	}
	return 1
}

// TradeLog stores fills for realized P&L
type TradeLog interface {
	RecordTrade(ctx context.Context, t Trade) error
	TradesSince(ctx context.Context, since time.Time) ([]Trade, error)
}

// MemoryTradeLog is an in-process TradeLog
type MemoryTradeLog struct {
	mu     sync.RWMutex
	trades []Trade
}

// NewMemoryTradeLog creates an empty trade log
func NewMemoryTradeLog() *MemoryTradeLog {
	return &MemoryTradeLog{}
}

// RecordTrade appends a fill
func (l *MemoryTradeLog) RecordTrade(ctx context.Context, t Trade) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	l.trades = append(l.trades, t)
	return nil
}

// TradesSince returns fills at or after since, oldest first
func (l *MemoryTradeLog) TradesSince(ctx context.Context, since time.Time) ([]Trade, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Trade, 0, len(l.trades))
	for _, t := range l.trades {
		if !t.ExecutedAt.Before(since) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExecutedAt.Before(out[j].ExecutedAt) })
	return out, nil
}
