// Package risk is the gate every candidate trade passes before execution.
// Its checks are total: rejections come back as values with a reason, never as errors.
package risk

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/circuit"
	"equities-trading-bot/internal/order"
	"equities-trading-bot/internal/strategy"
)

// Config holds risk limits
type Config struct {
	MaxPositionSize         float64
	MaxOpenPositions        int
	OptionsMaxPremium       float64
	OptionsMaxSinglePremium float64 // defaults to OptionsMaxPremium
	OptionsMaxContracts     int
	OptionsMinDTE           int
	OptionsMaxDTE           int
}

// DefaultConfig returns default limits
func DefaultConfig() Config {
	return Config{
		MaxPositionSize:     5000,
		MaxOpenPositions:    5,
		OptionsMaxPremium:   500,
		OptionsMaxContracts: 2,
		OptionsMinDTE:       7,
		OptionsMaxDTE:       45,
	}
}

// Confidence thresholds for option contract counts
const (
	TwoContractConfidence = 80.0
	OneContractConfidence = 70.0
	DefaultRiskFactor     = 0.5
)

var riskFactors = map[strategy.RiskLevel]float64{
	strategy.RiskLow:    1.0,
	strategy.RiskMedium: 0.7,
	strategy.RiskHigh:   0.4,
}

// RiskFactor returns the sizing multiplier for a risk level
func RiskFactor(level strategy.RiskLevel) float64 {
	if f, ok := riskFactors[strategy.ParseRiskLevel(string(level))]; ok {
		return f
	}
	return DefaultRiskFactor
}

// AccountSnapshot is the account view validation runs against
type AccountSnapshot struct {
	Account   broker.Account
	Positions []broker.Position
	Paused    bool
}

// held returns the position in symbol, if any
func (s AccountSnapshot) held(symbol string) (broker.Position, bool) {
	for _, p := range s.Positions {
		if strings.EqualFold(p.Symbol, symbol) && p.Quantity != 0 {
			return p, true
		}
	}
	return broker.Position{}, false
}

// ValidationResult is the gate's verdict on one trade
type ValidationResult struct {
	Approved  bool    `json:"approved"`
	Reason    string  `json:"reason"`
	TotalCost float64 `json:"total_cost,omitempty"`
}

func reject(format string, args ...interface{}) ValidationResult {
	return ValidationResult{Approved: false, Reason: fmt.Sprintf(format, args...)}
}

// PositionLimit reports slot availability
type PositionLimit struct {
	Allowed            bool   `json:"allowed"`
	OpenPositions      int    `json:"open_positions"`
	MaxOpenPositions   int    `json:"max_open_positions"`
	PositionsAvailable int    `json:"positions_available"`
	Reason             string `json:"reason"`
}

// StockSize is the result of share sizing
type StockSize struct {
	Quantity      float64 `json:"quantity"`
	PositionValue float64 `json:"position_value"`
	RiskFactor    float64 `json:"risk_factor"`
	Reason        string  `json:"reason"`
}

// OptionsSize is the result of contract sizing
type OptionsSize struct {
	Contracts       int     `json:"contracts"`
	CostPerContract float64 `json:"cost_per_contract"`
	TotalCost       float64 `json:"total_cost"`
	Reason          string  `json:"reason"`
}

// StockTrade is a share trade to validate
type StockTrade struct {
	Symbol   string
	Side     broker.OrderSide
	Quantity float64
	Price    float64
}

// OptionsTrade is a single-leg option purchase to validate
type OptionsTrade struct {
	ContractSymbol string
	Contracts      int
	Premium        float64 // per share
	DTE            int
}

// Gate is the risk gate
type Gate struct {
	config  Config
	breaker *circuit.CircuitBreaker
	logger  zerolog.Logger
}

// NewGate creates a risk gate; breaker may be nil
func NewGate(config Config, breaker *circuit.CircuitBreaker, logger zerolog.Logger) *Gate {
	if config.OptionsMaxSinglePremium <= 0 {
		config.OptionsMaxSinglePremium = config.OptionsMaxPremium
	}
	return &Gate{
		config:  config,
		breaker: breaker,
		logger:  logger.With().Str("component", "risk").Logger(),
	}
}

// Config returns the effective limits
func (g *Gate) Config() Config {
	return g.config
}

// CheckCircuitBreaker recomputes the realized daily loss
func (g *Gate) CheckCircuitBreaker(ctx context.Context) (circuit.Status, error) {
	if g.breaker == nil {
		return circuit.Status{State: circuit.StateClosed}, nil
	}
	return g.breaker.Check(ctx)
}

// ResetCircuitBreaker clears the latched breaker
func (g *Gate) ResetCircuitBreaker(ctx context.Context) error {
	if g.breaker == nil {
		return nil
	}
	return g.breaker.Reset(ctx)
}

// CircuitStatus returns the breaker snapshot without recomputing
func (g *Gate) CircuitStatus() circuit.Status {
	if g.breaker == nil {
		return circuit.Status{State: circuit.StateClosed}
	}
	return g.breaker.Status()
}

// TradingDate is the breaker's trading day for t
func (g *Gate) TradingDate(t time.Time) string {
	if g.breaker == nil {
		return t.UTC().Format("2006-01-02")
	}
	return g.breaker.TradingDate(t)
}

func (g *Gate) breakerTriggered() bool {
	return g.breaker != nil && g.breaker.IsTriggered()
}

// CheckPositionLimits reports how many new positions may be opened
func (g *Gate) CheckPositionLimits(positions []broker.Position) PositionLimit {
	open := 0
	for _, p := range positions {
		if p.Quantity != 0 {
			open++
		}
	}
	available := g.config.MaxOpenPositions - open
	if available < 0 {
		available = 0
	}
	limit := PositionLimit{
		Allowed:            open < g.config.MaxOpenPositions,
		OpenPositions:      open,
		MaxOpenPositions:   g.config.MaxOpenPositions,
		PositionsAvailable: available,
	}
	if limit.Allowed {
		limit.Reason = fmt.Sprintf("%d of %d position slots available", available, g.config.MaxOpenPositions)
	} else {
		limit.Reason = fmt.Sprintf("max positions reached (%d/%d)", open, g.config.MaxOpenPositions)
	}
	return limit
}

// SizeStock sizes a share position as max_position_size * confidence% * risk factor
func (g *Gate) SizeStock(confidence, price float64, level strategy.RiskLevel) StockSize {
	factor := RiskFactor(level)
	value := g.config.MaxPositionSize * (confidence / 100) * factor
	if price <= 0 {
		return StockSize{RiskFactor: factor, Reason: "invalid price"}
	}
	qty := math.Max(1, math.Floor(value/price))
	return StockSize{
		Quantity:      qty,
		PositionValue: value,
		RiskFactor:    factor,
		Reason:        fmt.Sprintf("%.2f x %.0f%% x %.1f = %.2f -> %.0f shares", g.config.MaxPositionSize, confidence, factor, value, qty),
	}
}

// PremiumCap is the most a purchase of n contracts may cost in total
func (g *Gate) PremiumCap(contracts int) float64 {
	if contracts == 1 {
		return g.config.OptionsMaxSinglePremium
	}
	return g.config.OptionsMaxPremium * float64(contracts)
}

// SizeOptions picks a contract count from confidence and premium per share
func (g *Gate) SizeOptions(confidence, premium float64) OptionsSize {
	if premium <= 0 {
		return OptionsSize{Reason: "invalid premium"}
	}
	cost := premium * order.OptionMultiplier
	size := OptionsSize{CostPerContract: cost}

	switch {
	case confidence >= TwoContractConfidence:
		size.Contracts = 2
	case confidence >= OneContractConfidence:
		size.Contracts = 1
	default:
		size.Reason = fmt.Sprintf("confidence %.0f below %.0f", confidence, OneContractConfidence)
		return size
	}
	if size.Contracts > g.config.OptionsMaxContracts {
		size.Contracts = g.config.OptionsMaxContracts
	}

	if size.Contracts > 1 && cost*float64(size.Contracts) > g.config.OptionsMaxPremium*float64(size.Contracts) {
		size.Contracts = 1
	}
	if size.Contracts == 1 && cost > g.config.OptionsMaxSinglePremium {
		size.Contracts = 0
		size.Reason = fmt.Sprintf("premium %.2f per contract exceeds cap %.2f", cost, g.config.OptionsMaxSinglePremium)
		return size
	}

	size.TotalCost = cost * float64(size.Contracts)
	size.Reason = fmt.Sprintf("%d contract(s) at %.2f", size.Contracts, cost)
	return size
}

// ValidateStockTrade approves or rejects a share trade
func (g *Gate) ValidateStockTrade(trade StockTrade, snap AccountSnapshot) ValidationResult {
	if g.breakerTriggered() {
		return reject("circuit breaker triggered")
	}
	if snap.Paused {
		return reject("trading paused")
	}
	if trade.Quantity <= 0 {
		return reject("quantity must be positive")
	}

	value := trade.Quantity * trade.Price
	switch trade.Side {
	case broker.SideBuy:
		limit := g.CheckPositionLimits(snap.Positions)
		if !limit.Allowed {
			return reject("%s", limit.Reason)
		}
		if value > g.config.MaxPositionSize {
			return reject("position value %.2f exceeds max position size %.2f", value, g.config.MaxPositionSize)
		}
		if value > snap.Account.BuyingPower {
			return reject("position value %.2f exceeds buying power %.2f", value, snap.Account.BuyingPower)
		}
		if _, ok := snap.held(trade.Symbol); ok {
			return reject("already holding a position in %s", trade.Symbol)
		}
	case broker.SideSell:
		pos, ok := snap.held(trade.Symbol)
		if !ok {
			return reject("no position in %s to sell", trade.Symbol)
		}
		if trade.Quantity > math.Abs(pos.Quantity) {
			return reject("sell quantity %.0f exceeds held quantity %.0f", trade.Quantity, math.Abs(pos.Quantity))
		}
	default:
		return reject("unknown side %q", trade.Side)
	}

	return ValidationResult{Approved: true, Reason: "approved", TotalCost: value}
}

// ValidateOptionsTrade approves or rejects an option purchase
func (g *Gate) ValidateOptionsTrade(trade OptionsTrade, snap AccountSnapshot) ValidationResult {
	if trade.Contracts <= 0 {
		return reject("contracts must be positive")
	}
	total := trade.Premium * order.OptionMultiplier * float64(trade.Contracts)

	if limit := g.PremiumCap(trade.Contracts); total > limit {
		return reject("premium cost %.2f exceeds cap %.2f", total, limit)
	}
	if trade.DTE < g.config.OptionsMinDTE || trade.DTE > g.config.OptionsMaxDTE {
		return reject("DTE %d outside %d-%d", trade.DTE, g.config.OptionsMinDTE, g.config.OptionsMaxDTE)
	}
	if trade.Contracts > g.config.OptionsMaxContracts {
		return reject("%d contracts exceeds max %d", trade.Contracts, g.config.OptionsMaxContracts)
	}
	if total > snap.Account.BuyingPower {
		return reject("premium cost %.2f exceeds buying power %.2f", total, snap.Account.BuyingPower)
	}
	if g.breakerTriggered() {
		return reject("circuit breaker triggered")
	}
	if snap.Paused {
		return reject("trading paused")
	}
	if limit := g.CheckPositionLimits(snap.Positions); !limit.Allowed {
		return reject("%s", limit.Reason)
	}

	return ValidationResult{Approved: true, Reason: "approved", TotalCost: total}
}
