package strategy

import (
	"fmt"
	"math"
	"time"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/indicators"
)

// MomentumBreakoutConfig configures the breakout evaluator
type MomentumBreakoutConfig struct {
	BreakoutLookback  int
	ExitLookback      int
	VolumeLookback    int
	VolumeMultiplier  float64
	ADXPeriod         int
	MinADX            float64
	ATRPeriod         int
	ATRStopMultiple   float64
	ATRTargetMultiple float64
	Strength          float64
	RiskPerTrade      float64
	MaxAllocation     float64
}

// DefaultMomentumBreakoutConfig returns the standard parameters
func DefaultMomentumBreakoutConfig() MomentumBreakoutConfig {
	return MomentumBreakoutConfig{
		BreakoutLookback:  20,
		ExitLookback:      10,
		VolumeLookback:    20,
		VolumeMultiplier:  1.5,
		ADXPeriod:         14,
		MinADX:            25,
		ATRPeriod:         14,
		ATRStopMultiple:   2,
		ATRTargetMultiple: 3,
		Strength:          0.72,
		RiskPerTrade:      0.01,
		MaxAllocation:     0.25,
	}
}

// MomentumBreakout buys range breakouts confirmed by volume and trend strength
type MomentumBreakout struct {
	config MomentumBreakoutConfig
}

// NewMomentumBreakout creates the evaluator
func NewMomentumBreakout(config MomentumBreakoutConfig) *MomentumBreakout {
	return &MomentumBreakout{config: config}
}

func (s *MomentumBreakout) Name() string { return NameMomentumBreakout }

func (s *MomentumBreakout) atr(bars []broker.Bar) (float64, bool) {
	series, err := indicators.ATR(bars, s.config.ATRPeriod)
	if err != nil {
		return 0, false
	}
	return series.Last()
}

// Analyze returns BUY above the prior range high on expanding volume with ADX above the threshold
func (s *MomentumBreakout) Analyze(symbol string, bars []broker.Bar, price float64, extras Extras) (Verdict, error) {
	last := len(bars) - 1
	high, err := indicators.HighestHigh(bars, s.config.BreakoutLookback, last)
	if err != nil {
		return hold(s.Name(), symbol, price, err.Error()), nil
	}
	if last < s.config.VolumeLookback {
		return hold(s.Name(), symbol, price, fmt.Sprintf("insufficient data: volume average needs %d bars", s.config.VolumeLookback+1)), nil
	}
	avgVolume := indicators.Mean(indicators.Volumes(bars[last-s.config.VolumeLookback : last]))
	adxResult, err := indicators.ADX(bars, s.config.ADXPeriod)
	if err != nil {
		return hold(s.Name(), symbol, price, err.Error()), nil
	}
	adx, _ := adxResult.ADX.Last()
	volume := bars[last].Volume

	var unmet []string
	if price <= high {
		unmet = append(unmet, fmt.Sprintf("price %.2f not above %d-bar high %.2f", price, s.config.BreakoutLookback, high))
	}
	if volume <= avgVolume*s.config.VolumeMultiplier {
		unmet = append(unmet, fmt.Sprintf("volume %.0f not above %.1fx average %.0f", volume, s.config.VolumeMultiplier, avgVolume))
	}
	if adx <= s.config.MinADX {
		unmet = append(unmet, fmt.Sprintf("ADX %.1f not above %.0f", adx, s.config.MinADX))
	}
	if len(unmet) > 0 {
		return hold(s.Name(), symbol, price, unmet...), nil
	}

	atr, ok := s.atr(bars)
	if !ok {
		atr = price * 0.02
	}
	return Verdict{
		Strategy:  s.Name(),
		Symbol:    symbol,
		Action:    ActionBuy,
		Strength:  s.config.Strength,
		RiskLevel: RiskHigh,
		Reasons: []string{
			fmt.Sprintf("price %.2f broke %d-bar high %.2f", price, s.config.BreakoutLookback, high),
			fmt.Sprintf("volume %.1fx average", volume/avgVolume),
			fmt.Sprintf("ADX %.1f trending", adx),
		},
		EntryPrice:  price,
		StopPrice:   price - s.config.ATRStopMultiple*atr,
		TargetPrice: price + s.config.ATRTargetMultiple*atr,
		Timestamp:   time.Now(),
	}, nil
}

// TrailingStop returns the ATR trailing stop for a position at the given high water mark
func (s *MomentumBreakout) TrailingStop(pos Position, price float64, atr float64) float64 {
	highest := math.Max(pos.EntryPrice, math.Max(pos.HighWaterMark, price))
	stop := highest - s.config.ATRStopMultiple*atr
	return math.Max(stop, pos.StopPrice)
}

// CheckExit closes on the trailing stop or a break below the recent low
func (s *MomentumBreakout) CheckExit(pos Position, price float64, bars []broker.Bar) ExitDecision {
	if atr, ok := s.atr(bars); ok {
		stop := s.TrailingStop(pos, price, atr)
		if price <= stop {
			return exit(ExitTrailing, fmt.Sprintf("price %.2f hit trailing stop %.2f", price, stop))
		}
	} else if pos.StopPrice > 0 && price <= pos.StopPrice {
		return exit(ExitTrailing, fmt.Sprintf("price %.2f hit stop %.2f", price, pos.StopPrice))
	}

	low, err := indicators.LowestLow(bars, s.config.ExitLookback, len(bars)-1)
	if err != nil {
		return stay(err.Error())
	}
	if price < low {
		return exit(ExitSignal, fmt.Sprintf("price %.2f broke %d-bar low %.2f", price, s.config.ExitLookback, low))
	}
	return stay("breakout intact")
}

// PositionSize risks RiskPerTrade of the account against a 2·ATR stop; volatilityHint is the ATR
func (s *MomentumBreakout) PositionSize(accountValue, price, volatilityHint float64) float64 {
	atr := volatilityHint
	if atr <= 0 {
		atr = price * 0.02
	}
	return riskSizedQuantity(accountValue, price, s.config.ATRStopMultiple*atr, s.config.RiskPerTrade, s.config.MaxAllocation)
}
