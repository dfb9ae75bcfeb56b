// Package strategy holds the rule-based evaluators and the manager that
// arbitrates between them.
package strategy

import (
	"math"
	"strings"
	"time"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/options"
)

// Action is the verdict direction
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// RiskLevel classifies how aggressive a trade is
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ParseRiskLevel normalises s; unknown values are returned upper-cased so sizing applies its default factor
func ParseRiskLevel(s string) RiskLevel {
	return RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
}

// Evaluator names
const (
	NameMeanReversion    = "mean_reversion"
	NameMomentumBreakout = "momentum_breakout"
	NameMACrossover      = "ma_crossover"
	NameIronCondor       = "iron_condor"
)

// Extras carries inputs some evaluators need beyond bars
type Extras struct {
	IVRank            float64
	HasIVRank         bool
	ImpliedVolatility float64 // annualised decimal, 0 when unknown
}

// Leg is one option of a multi-leg structure; Quantity is negative for short legs
type Leg struct {
	Contract options.Contract `json:"contract"`
	Quantity int              `json:"quantity"`
}

// Verdict is an evaluator's output. Strength is on a 0-1 scale.
type Verdict struct {
	Strategy    string    `json:"strategy"`
	Symbol      string    `json:"symbol"`
	Action      Action    `json:"action"`
	Strength    float64   `json:"strength"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Reasons     []string  `json:"reasons"`
	EntryPrice  float64   `json:"entry_price"`
	StopPrice   float64   `json:"stop_price"`
	TargetPrice float64   `json:"target_price"`
	// Multi-leg structures only; prices above are then per-share structure values
	Legs      []Leg     `json:"legs,omitempty"`
	Credit    float64   `json:"credit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Confidence converts Strength to the 0-100 scale used everywhere else
func (v Verdict) Confidence() float64 {
	return math.Round(v.Strength*10000) / 100
}

// Reason joins the individual reasons
func (v Verdict) Reason() string {
	return strings.Join(v.Reasons, "; ")
}

// IsMultiLeg reports whether the verdict describes an options structure
func (v Verdict) IsMultiLeg() bool {
	return len(v.Legs) > 0
}

func hold(strategy, symbol string, price float64, reasons ...string) Verdict {
	return Verdict{
		Strategy:   strategy,
		Symbol:     symbol,
		Action:     ActionHold,
		Reasons:    reasons,
		EntryPrice: price,
		Timestamp:  time.Now(),
	}
}

// Position is the view of an open trade that exit checks need
type Position struct {
	Symbol        string    `json:"symbol"`
	EntryPrice    float64   `json:"entry_price"`
	Quantity      float64   `json:"quantity"`
	EntryTime     time.Time `json:"entry_time"`
	HighWaterMark float64   `json:"high_water_mark"`
	StopPrice     float64   `json:"stop_price"`
	// Multi-leg structures
	Legs       []Leg     `json:"legs,omitempty"`
	Credit     float64   `json:"credit,omitempty"`
	Expiration time.Time `json:"expiration,omitempty"`
}

// ExitType classifies why a position should close
type ExitType string

const (
	ExitNone       ExitType = "NONE"
	ExitStopLoss   ExitType = "STOP_LOSS"
	ExitTakeProfit ExitType = "TAKE_PROFIT"
	ExitTrailing   ExitType = "TRAILING_STOP"
	ExitSignal     ExitType = "SIGNAL"
	ExitTime       ExitType = "TIME"
	ExitAdjustment ExitType = "ADJUSTMENT"
)

// ExitDecision is the result of an exit check
type ExitDecision struct {
	Exit   bool     `json:"exit"`
	Reason string   `json:"reason"`
	Type   ExitType `json:"type"`
}

func stay(reason string) ExitDecision {
	return ExitDecision{Exit: false, Reason: reason, Type: ExitNone}
}

func exit(t ExitType, reason string) ExitDecision {
	return ExitDecision{Exit: true, Reason: reason, Type: t}
}

// Evaluator is one rule-based strategy
type Evaluator interface {
	Name() string
	// Analyze never fails for missing history; it returns HOLD with the reason
	Analyze(symbol string, bars []broker.Bar, price float64, extras Extras) (Verdict, error)
	CheckExit(pos Position, price float64, bars []broker.Bar) ExitDecision
	PositionSize(accountValue, price, volatilityHint float64) float64
}

// riskSizedQuantity sizes so that hitting the stop loses riskPct of the account,
// capped at maxAllocation of the account
func riskSizedQuantity(accountValue, price, stopDistance, riskPct, maxAllocation float64) float64 {
	if accountValue <= 0 || price <= 0 || stopDistance <= 0 {
		return 0
	}
	qty := math.Floor(accountValue * riskPct / stopDistance)
	maxQty := math.Floor(accountValue * maxAllocation / price)
	if qty > maxQty {
		qty = maxQty
	}
	if qty < 0 {
		return 0
	}
	return qty
}
