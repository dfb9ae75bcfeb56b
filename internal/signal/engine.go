package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/ai/sentiment"
	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/indicators"
	"equities-trading-bot/internal/scanner"
	"equities-trading-bot/internal/strategy"
)

// Strategies is the quantitative side of the engine
type Strategies interface {
	AnalyzeAll(symbol string, bars []broker.Bar, price float64, extras strategy.Extras) strategy.Verdict
	CheckExits(pos strategy.Position, price float64, bars []broker.Bar) strategy.ExitDecision
}

// LLM completes a prompt
type LLM interface {
	Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// SentimentProvider scores a symbol's news flow
type SentimentProvider interface {
	AnalyzeSymbolSentiment(ctx context.Context, symbol string) (*sentiment.SentimentScore, error)
}

// Config holds engine settings
type Config struct {
	AggressiveMode      bool
	ScanIntervalSeconds int
	OptionsEnabled      bool
	Temperature         float64
	MaxTokens           int
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		ScanIntervalSeconds: 300,
		Temperature:         0.3,
		MaxTokens:           500,
	}
}

// stop and target percentages for AI signals by horizon
var horizonLevels = map[TradeType]struct{ stop, target float64 }{
	TradeScalp:    {0.005, 0.01},
	TradeDayTrade: {0.01, 0.02},
	TradeSwing:    {0.02, 0.05},
}

// Engine produces signals for opportunities
type Engine struct {
	strategies Strategies
	llm        LLM
	sentiment  SentimentProvider
	config     Config
	logger     zerolog.Logger
	now        func() time.Time
}

// NewEngine creates a signal engine; llm and sentiment may be nil
func NewEngine(strategies Strategies, llm LLM, sentimentProvider SentimentProvider, config Config, logger zerolog.Logger) *Engine {
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultConfig().MaxTokens
	}
	return &Engine{
		strategies: strategies,
		llm:        llm,
		sentiment:  sentimentProvider,
		config:     config,
		logger:     logger.With().Str("component", "signal").Logger(),
		now:        time.Now,
	}
}

// Analyze returns a signal for the opportunity. It never fails: unavailable
// inputs degrade to HOLD.
func (e *Engine) Analyze(ctx context.Context, opp scanner.Opportunity) Signal {
	inputs := TradeTypeInputs{
		Score:       opp.Score,
		Volatility:  opp.Volatility,
		VolumeRatio: opp.VolumeRatio,
		Momentum:    opp.Momentum,
	}

	// Multi-leg structures are never auto-executed, so they only stand when
	// the AI has nothing tradable to offer
	var structure *Signal
	if e.strategies != nil {
		v := e.strategies.AnalyzeAll(opp.Symbol, opp.Bars, opp.CurrentPrice, strategy.Extras{
			IVRank:    opp.IVRank,
			HasIVRank: opp.HasIVRank,
		})
		if v.Action != strategy.ActionHold {
			sig := e.fromVerdict(v, ClassifyTradeType(inputs, e.config.AggressiveMode, e.config.ScanIntervalSeconds))
			e.logger.Debug().Str("symbol", opp.Symbol).Str("strategy", sig.StrategyName).
				Str("action", string(sig.Action)).Float64("confidence", sig.Confidence).Msg("Quantitative signal")
			if !v.IsMultiLeg() {
				return sig
			}
			structure = &sig
		}
	}

	sig := e.analyzeWithAI(ctx, opp, inputs)
	if structure != nil && sig.Recommendation == RecHold {
		return *structure
	}
	return sig
}

func (e *Engine) fromVerdict(v strategy.Verdict, tradeType TradeType) Signal {
	rec := RecBuyStock
	switch {
	case v.IsMultiLeg():
		rec = RecSellIronCondor
	case v.Action == strategy.ActionSell:
		rec = RecSell
	}
	return Signal{
		Symbol:         v.Symbol,
		Action:         v.Action,
		Recommendation: rec,
		Confidence:     ClampConfidence(v.Confidence()),
		RiskLevel:      v.RiskLevel,
		Reasoning:      v.Reason(),
		StrategyName:   v.Strategy,
		TradeType:      tradeType,
		EntryPrice:     v.EntryPrice,
		TargetPrice:    v.TargetPrice,
		StopPrice:      v.StopPrice,
		Source:         SourceQuantitative,
		Legs:           v.Legs,
		Credit:         v.Credit,
		Timestamp:      e.now(),
	}
}

func (e *Engine) sentimentScore(ctx context.Context, symbol string) float64 {
	if e.sentiment == nil {
		return 0
	}
	score, err := e.sentiment.AnalyzeSymbolSentiment(ctx, symbol)
	if err != nil || score == nil {
		e.logger.Debug().Err(err).Str("symbol", symbol).Msg("Sentiment unavailable")
		return 0
	}
	return score.Overall
}

func (e *Engine) analyzeWithAI(ctx context.Context, opp scanner.Opportunity, inputs TradeTypeInputs) Signal {
	score := e.sentimentScore(ctx, opp.Symbol)
	inputs.Sentiment = score
	tradeType := ClassifyTradeType(inputs, e.config.AggressiveMode, e.config.ScanIntervalSeconds)

	sig := Signal{
		Symbol:         opp.Symbol,
		Action:         strategy.ActionHold,
		Recommendation: RecHold,
		RiskLevel:      strategy.RiskMedium,
		StrategyName:   "ai_" + string(tradeType),
		TradeType:      tradeType,
		EntryPrice:     opp.CurrentPrice,
		Source:         SourceAI,
		SentimentScore: score,
		Timestamp:      e.now(),
	}

	if e.llm == nil {
		sig.Reasoning = "AI analysis unavailable: no provider configured"
		return sig
	}

	prompt := BuildPrompt(opp, tradeType, indicators.Compute(opp.Bars), score, e.config.OptionsEnabled)
	text, err := e.llm.Complete(ctx, prompt, e.config.Temperature, e.config.MaxTokens)
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", opp.Symbol).Msg("AI analysis failed")
		sig.Reasoning = fmt.Sprintf("AI analysis unavailable: %v", err)
		return sig
	}

	resp := ParseResponse(text)
	adj := SentimentAdjustment(score)

	sig.Recommendation = resp.Recommendation
	sig.Action = resp.Recommendation.Action()
	sig.Confidence = ClampConfidence(resp.Confidence + adj)
	sig.SentimentAdjustment = adj
	sig.RiskLevel = resp.RiskLevel
	sig.Reasoning = resp.Reasoning
	if resp.EntryPrice > 0 {
		sig.EntryPrice = resp.EntryPrice
	}
	sig.StopPrice, sig.TargetPrice = levels(sig.Recommendation, sig.EntryPrice, tradeType)

	e.logger.Debug().Str("symbol", opp.Symbol).Str("recommendation", string(sig.Recommendation)).
		Float64("confidence", sig.Confidence).Float64("sentiment_adj", adj).Str("trade_type", string(tradeType)).
		Msg("AI signal")
	return sig
}

// levels returns underlying stop and target prices for an AI recommendation
func levels(rec Recommendation, entry float64, tradeType TradeType) (stop, target float64) {
	l, ok := horizonLevels[tradeType]
	if !ok || entry <= 0 {
		return 0, 0
	}
	switch rec {
	case RecBuyStock, RecBuyCall:
		return entry * (1 - l.stop), entry * (1 + l.target)
	case RecBuyPut:
		return entry * (1 + l.stop), entry * (1 - l.target)
	}
	return 0, 0
}

// ExitOpinion asks the active evaluators whether a position should close
func (e *Engine) ExitOpinion(pos strategy.Position, price float64, bars []broker.Bar) strategy.ExitDecision {
	if e.strategies == nil {
		return strategy.ExitDecision{Type: strategy.ExitNone, Reason: "no strategies"}
	}
	return e.strategies.CheckExits(pos, price, bars)
}
