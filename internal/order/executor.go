// Package order places orders through the broker and keeps the fill log the
// circuit breaker reads realized P&L from.
package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"equities-trading-bot/internal/broker"
)

// ErrExecutionFailed wraps broker failures during order placement or close
var ErrExecutionFailed = errors.New("execution failed")

// Execution is the outcome of a placed order or close
type Execution struct {
	OrderID       string            `json:"order_id"`
	ClientOrderID string            `json:"client_order_id"`
	Symbol        string            `json:"symbol"`
	AssetClass    broker.AssetClass `json:"asset_class"`
	Side          broker.OrderSide  `json:"side"`
	Quantity      float64           `json:"quantity"`
	Price         float64           `json:"price"`
	Value         float64           `json:"value"`
	Status        string            `json:"status"`
	ExecutedAt    time.Time         `json:"executed_at"`
}

// CloseAllResult reports a best-effort liquidation
type CloseAllResult struct {
	Closed []string          `json:"closed"`
	Failed map[string]string `json:"failed"`
}

// Executor is the execution collaborator
type Executor struct {
	gateway broker.Gateway
	trades  TradeLog
	ids     *ClientOrderIDGenerator
	logger  zerolog.Logger
	now     func() time.Time
}

// NewExecutor creates an executor; trades may be nil to skip fill logging
func NewExecutor(gateway broker.Gateway, trades TradeLog, ids *ClientOrderIDGenerator, logger zerolog.Logger) *Executor {
	if ids == nil {
		ids = NewClientOrderIDGenerator(nil, nil, logger)
	}
	return &Executor{
		gateway: gateway,
		trades:  trades,
		ids:     ids,
		logger:  logger.With().Str("component", "executor").Logger(),
		now:     time.Now,
	}
}

// StockOrder is a share order request. ReferencePrice is the quote the order
// was sized at; the fill is recorded at it when the broker reports no price.
type StockOrder struct {
	Symbol         string
	Side           broker.OrderSide
	Quantity       float64
	ReferencePrice float64
	Mode           Mode
	Strategy       string
}

// OptionOrder is a single-leg option order request
type OptionOrder struct {
	ContractSymbol string
	Side           broker.OrderSide
	Contracts      int
	LimitPrice     float64
	Mode           Mode
	Strategy       string
}

// ExecuteStock places a market order for shares
func (e *Executor) ExecuteStock(ctx context.Context, o StockOrder) (*Execution, error) {
	req := broker.OrderRequest{
		Symbol:        o.Symbol,
		AssetClass:    broker.AssetClassEquity,
		Side:          o.Side,
		Type:          broker.OrderTypeMarket,
		Quantity:      o.Quantity,
		TimeInForce:   "day",
		ClientOrderID: e.ids.Generate(ctx, o.Mode, purposeFor(o.Side)),
	}
	return e.place(ctx, req, o.Strategy, o.ReferencePrice)
}

// ExecuteOption places a limit order for option contracts
func (e *Executor) ExecuteOption(ctx context.Context, o OptionOrder) (*Execution, error) {
	req := broker.OrderRequest{
		Symbol:        o.ContractSymbol,
		AssetClass:    broker.AssetClassOption,
		Side:          o.Side,
		Type:          broker.OrderTypeLimit,
		Quantity:      float64(o.Contracts),
		LimitPrice:    o.LimitPrice,
		TimeInForce:   "day",
		ClientOrderID: e.ids.Generate(ctx, o.Mode, purposeFor(o.Side)),
	}
	if o.LimitPrice <= 0 {
		req.Type = broker.OrderTypeMarket
	}
	return e.place(ctx, req, o.Strategy, o.LimitPrice)
}

func purposeFor(side broker.OrderSide) Purpose {
	if side == broker.SideSell {
		return PurposeExit
	}
	return PurposeEntry
}

func (e *Executor) place(ctx context.Context, req broker.OrderRequest, strategy string, refPrice float64) (*Execution, error) {
	res, err := e.gateway.PlaceOrder(ctx, req)
	if err != nil {
		e.logger.Error().Err(err).Str("symbol", req.Symbol).Str("side", string(req.Side)).
			Float64("qty", req.Quantity).Msg("Order failed")
		return nil, fmt.Errorf("%w: %s %s: %v", ErrExecutionFailed, req.Side, req.Symbol, err)
	}

	qty := res.FilledQuantity
	if qty == 0 {
		qty = req.Quantity
	}
	// Accepted but unfilled orders carry no average price yet
	price := res.FilledAvgPrice
	if price <= 0 {
		price = req.LimitPrice
	}
	if price <= 0 {
		price = refPrice
	}
	if price <= 0 {
		price = e.lastPrice(ctx, req)
	}
	exec := &Execution{
		OrderID:       res.ID,
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		AssetClass:    req.AssetClass,
		Side:          req.Side,
		Quantity:      qty,
		Price:         price,
		Value:         price * qty * Multiplier(req.AssetClass),
		Status:        res.Status,
		ExecutedAt:    e.now(),
	}
	e.record(ctx, exec, strategy)

	e.logger.Info().Str("symbol", exec.Symbol).Str("side", string(exec.Side)).Float64("qty", exec.Quantity).
		Float64("price", exec.Price).Str("order_id", exec.OrderID).Msg("Order executed")
	return exec, nil
}

// lastPrice asks the broker for a current price when an order came back
// without one
func (e *Executor) lastPrice(ctx context.Context, req broker.OrderRequest) float64 {
	if req.AssetClass == broker.AssetClassOption {
		q, err := e.gateway.GetOptionQuote(ctx, req.Symbol)
		if err != nil || q == nil {
			return 0
		}
		return q.Mid()
	}
	q, err := e.gateway.GetQuote(ctx, req.Symbol)
	if err != nil || q == nil {
		return 0
	}
	return q.Price()
}

// record logs every executed order, priced or not
func (e *Executor) record(ctx context.Context, exec *Execution, strategy string) {
	if e.trades == nil {
		return
	}
	if exec.Price <= 0 {
		e.logger.Warn().Str("symbol", exec.Symbol).Str("side", string(exec.Side)).
			Msg("Trade recorded without a price")
	}
	err := e.trades.RecordTrade(ctx, Trade{
		ID:            uuid.NewString(),
		OrderID:       exec.OrderID,
		ClientOrderID: exec.ClientOrderID,
		Symbol:        exec.Symbol,
		AssetClass:    exec.AssetClass,
		Side:          exec.Side,
		Quantity:      exec.Quantity,
		Price:         exec.Price,
		Value:         exec.Value,
		Strategy:      strategy,
		ExecutedAt:    exec.ExecutedAt,
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", exec.Symbol).Msg("Failed to record trade")
	}
}

// ClosePosition liquidates a position and records the sell at its last price
func (e *Executor) ClosePosition(ctx context.Context, symbol string, reason string) (*Execution, error) {
	pos, err := e.gateway.GetPosition(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup %s: %v", ErrExecutionFailed, symbol, err)
	}
	if pos == nil {
		return nil, fmt.Errorf("%w: no open position in %s", ErrExecutionFailed, symbol)
	}

	closed, err := e.gateway.ClosePosition(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: close %s: %v", ErrExecutionFailed, symbol, err)
	}
	if !closed {
		return nil, fmt.Errorf("%w: broker did not close %s", ErrExecutionFailed, symbol)
	}

	price := pos.CurrentPrice
	if price <= 0 && pos.Quantity > 0 {
		price = pos.MarketValue / (pos.Quantity * Multiplier(pos.AssetClass))
	}
	exec := &Execution{
		Symbol:     symbol,
		AssetClass: pos.AssetClass,
		Side:       broker.SideSell,
		Quantity:   pos.Quantity,
		Price:      price,
		Value:      price * pos.Quantity * Multiplier(pos.AssetClass),
		Status:     "closed",
		ExecutedAt: e.now(),
	}
	e.record(ctx, exec, reason)

	e.logger.Info().Str("symbol", symbol).Float64("qty", pos.Quantity).Float64("price", price).
		Str("reason", reason).Msg("Position closed")
	return exec, nil
}

// CloseAll attempts to close every open position. Individual failures are
// collected, never returned early.
func (e *Executor) CloseAll(ctx context.Context, reason string) (*CloseAllResult, error) {
	result := &CloseAllResult{Failed: make(map[string]string)}

	positions, err := e.gateway.GetPositions(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: list positions: %v", ErrExecutionFailed, err)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	for _, p := range positions {
		if _, err := e.ClosePosition(ctx, p.Symbol, reason); err != nil {
			result.Failed[p.Symbol] = err.Error()
			continue
		}
		result.Closed = append(result.Closed, p.Symbol)
	}
	return result, nil
}
