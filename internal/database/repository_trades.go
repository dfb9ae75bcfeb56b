package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/order"
)

// TradeRepository is the PostgreSQL trade log
type TradeRepository struct {
	db *DB
}

// NewTradeRepository creates a trade repository
func NewTradeRepository(db *DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// RecordTrade inserts a fill. Trades without an id get a fresh one so rows
// never collide on the primary key.
func (r *TradeRepository) RecordTrade(ctx context.Context, t order.Trade) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO trades (id, order_id, client_order_id, symbol, asset_class, side, quantity, price, value, strategy, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		t.ID, t.OrderID, t.ClientOrderID, t.Symbol, string(t.AssetClass), string(t.Side),
		t.Quantity, t.Price, t.Value, t.Strategy, t.ExecutedAt)
	if err != nil {
		return fmt.Errorf("failed to record trade %s: %w", t.ID, err)
	}
	return nil
}

// TradesSince returns fills executed at or after since, oldest first
func (r *TradeRepository) TradesSince(ctx context.Context, since time.Time) ([]order.Trade, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, order_id, client_order_id, symbol, asset_class, side, quantity, price, value, strategy, executed_at
		 FROM trades WHERE executed_at >= $1 ORDER BY executed_at`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []order.Trade
	for rows.Next() {
		var (
			t          order.Trade
			assetClass string
			side       string
		)
		if err := rows.Scan(&t.ID, &t.OrderID, &t.ClientOrderID, &t.Symbol, &assetClass, &side,
			&t.Quantity, &t.Price, &t.Value, &t.Strategy, &t.ExecutedAt); err != nil {
			return nil, err
		}
		t.AssetClass = broker.AssetClass(assetClass)
		t.Side = broker.OrderSide(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
