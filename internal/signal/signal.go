// Package signal turns scanned opportunities into trade signals. Quantitative
// evaluators are consulted first; the LLM is only asked when none of them acts.
package signal

import (
	"time"

	"equities-trading-bot/internal/options"
	"equities-trading-bot/internal/strategy"
)

// TradeType is the holding horizon of a signal
type TradeType string

const (
	TradeScalp    TradeType = "scalp"
	TradeDayTrade TradeType = "day_trade"
	TradeSwing    TradeType = "swing"
)

// Recommendation is the concrete instruction a signal carries
type Recommendation string

const (
	RecBuyStock       Recommendation = "BUY_STOCK"
	RecBuyCall        Recommendation = "BUY_CALL"
	RecBuyPut         Recommendation = "BUY_PUT"
	RecSell           Recommendation = "SELL"
	RecHold           Recommendation = "HOLD"
	RecSellIronCondor Recommendation = "SELL_IRON_CONDOR"
)

// Recommendations lists every recommendation the engine may emit
var Recommendations = []Recommendation{
	RecBuyStock, RecBuyCall, RecBuyPut, RecSell, RecHold, RecSellIronCondor,
}

// ParseRecommendation maps free text to a recommendation; unknown text is HOLD
func ParseRecommendation(s string) (Recommendation, bool) {
	for _, r := range Recommendations {
		if string(r) == s {
			return r, true
		}
	}
	switch s {
	case "BUY", "LONG":
		return RecBuyStock, true
	case "CALL":
		return RecBuyCall, true
	case "PUT":
		return RecBuyPut, true
	case "CLOSE", "EXIT":
		return RecSell, true
	}
	return RecHold, false
}

// Action returns the direction of the recommendation
func (r Recommendation) Action() strategy.Action {
	switch r {
	case RecBuyStock, RecBuyCall, RecBuyPut, RecSellIronCondor:
		return strategy.ActionBuy
	case RecSell:
		return strategy.ActionSell
	}
	return strategy.ActionHold
}

// Source records which path produced a signal
type Source string

const (
	SourceQuantitative Source = "quantitative"
	SourceAI           Source = "ai"
)

// Signal is the engine's output. Confidence is always 0-100.
type Signal struct {
	Symbol              string             `json:"symbol"`
	Action              strategy.Action    `json:"action"`
	Recommendation      Recommendation     `json:"recommendation"`
	Confidence          float64            `json:"confidence"`
	RiskLevel           strategy.RiskLevel `json:"risk_level"`
	Reasoning           string             `json:"reasoning"`
	StrategyName        string             `json:"strategy_name"`
	TradeType           TradeType          `json:"trade_type"`
	EntryPrice          float64            `json:"entry_price"`
	TargetPrice         float64            `json:"target_price"`
	StopPrice           float64            `json:"stop_price"`
	Source              Source             `json:"source"`
	SentimentScore      float64            `json:"sentiment_score"`
	SentimentAdjustment float64            `json:"sentiment_adjustment"`
	Legs                []strategy.Leg     `json:"legs,omitempty"`
	Credit              float64            `json:"credit,omitempty"`
	Timestamp           time.Time          `json:"timestamp"`
}

// IsActionable reports whether the signal is a BUY or SELL at or above minConfidence
func (s Signal) IsActionable(minConfidence float64) bool {
	return s.Action != strategy.ActionHold && s.Confidence >= minConfidence
}

// Instrument is what a signal should be traded with
type Instrument string

const (
	InstrumentStock  Instrument = "stock"
	InstrumentOption Instrument = "option"
	InstrumentNone   Instrument = "none"
)

// InstrumentDecision is the outcome of instrument selection
type InstrumentDecision struct {
	Instrument Instrument   `json:"instrument"`
	OptionType options.Type `json:"option_type,omitempty"`
	Reasoning  string       `json:"reasoning"`
}
