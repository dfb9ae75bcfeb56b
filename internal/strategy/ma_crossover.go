package strategy

import (
	"fmt"
	"time"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/indicators"
)

// MACrossoverConfig configures the moving average crossover evaluator
type MACrossoverConfig struct {
	FastPeriod         int
	SlowPeriod         int
	VolumeLookback     int
	VolumeConfirmation float64 // last volume must exceed this multiple of the average
	StopLossPct        float64
	Strength           float64
	RiskPerTrade       float64
	MaxAllocation      float64
}

// DefaultMACrossoverConfig returns the 50/200 golden cross parameters
func DefaultMACrossoverConfig() MACrossoverConfig {
	return MACrossoverConfig{
		FastPeriod:         50,
		SlowPeriod:         200,
		VolumeLookback:     20,
		VolumeConfirmation: 1.0,
		StopLossPct:        0.03,
		Strength:           0.70,
		RiskPerTrade:       0.015,
		MaxAllocation:      0.25,
	}
}

// MACrossover trades golden and death crosses
type MACrossover struct {
	config MACrossoverConfig
}

// NewMACrossover creates the evaluator
func NewMACrossover(config MACrossoverConfig) *MACrossover {
	return &MACrossover{config: config}
}

func (s *MACrossover) Name() string { return NameMACrossover }

func (s *MACrossover) averages(bars []broker.Bar) (fast, slow indicators.Series, err error) {
	closes := indicators.Closes(bars)
	if len(closes) < s.config.SlowPeriod+1 {
		return nil, nil, fmt.Errorf("%w: crossover needs %d bars, have %d", indicators.ErrInsufficientData, s.config.SlowPeriod+1, len(closes))
	}
	fast, err = indicators.SMA(closes, s.config.FastPeriod)
	if err != nil {
		return nil, nil, err
	}
	slow, err = indicators.SMA(closes, s.config.SlowPeriod)
	if err != nil {
		return nil, nil, err
	}
	return fast, slow, nil
}

// Analyze returns BUY on a volume-confirmed golden cross and SELL on a death cross
func (s *MACrossover) Analyze(symbol string, bars []broker.Bar, price float64, extras Extras) (Verdict, error) {
	fast, slow, err := s.averages(bars)
	if err != nil {
		return hold(s.Name(), symbol, price, err.Error()), nil
	}
	last := len(bars) - 1
	f, _ := fast.At(last)
	sl, _ := slow.At(last)

	if indicators.IsDeathCross(fast, slow, last) {
		return Verdict{
			Strategy:   s.Name(),
			Symbol:     symbol,
			Action:     ActionSell,
			Strength:   s.config.Strength,
			RiskLevel:  RiskLow,
			Reasons:    []string{fmt.Sprintf("death cross: SMA%d %.2f below SMA%d %.2f", s.config.FastPeriod, f, s.config.SlowPeriod, sl)},
			EntryPrice: price,
			Timestamp:  time.Now(),
		}, nil
	}

	if !indicators.IsGoldenCross(fast, slow, last) {
		relation := "below"
		if f > sl {
			relation = "above"
		}
		return hold(s.Name(), symbol, price,
			fmt.Sprintf("no crossover: SMA%d %.2f %s SMA%d %.2f", s.config.FastPeriod, f, relation, s.config.SlowPeriod, sl)), nil
	}

	avgVolume := indicators.Mean(indicators.Volumes(bars[last-s.config.VolumeLookback : last]))
	volume := bars[last].Volume
	if volume <= avgVolume*s.config.VolumeConfirmation {
		return hold(s.Name(), symbol, price,
			fmt.Sprintf("golden cross without volume confirmation: volume %.0f vs average %.0f", volume, avgVolume)), nil
	}

	return Verdict{
		Strategy:  s.Name(),
		Symbol:    symbol,
		Action:    ActionBuy,
		Strength:  s.config.Strength,
		RiskLevel: RiskLow,
		Reasons: []string{
			fmt.Sprintf("golden cross: SMA%d %.2f above SMA%d %.2f", s.config.FastPeriod, f, s.config.SlowPeriod, sl),
			fmt.Sprintf("volume %.1fx average", volume/avgVolume),
		},
		EntryPrice: price,
		StopPrice:  price * (1 - s.config.StopLossPct),
		Timestamp:  time.Now(),
	}, nil
}

// CheckExit closes on the fixed stop or a death cross
func (s *MACrossover) CheckExit(pos Position, price float64, bars []broker.Bar) ExitDecision {
	if pos.EntryPrice > 0 && price <= pos.EntryPrice*(1-s.config.StopLossPct) {
		return exit(ExitStopLoss, fmt.Sprintf("price %.2f hit %.0f%% stop", price, s.config.StopLossPct*100))
	}
	fast, slow, err := s.averages(bars)
	if err != nil {
		return stay(err.Error())
	}
	if indicators.IsDeathCross(fast, slow, len(bars)-1) {
		return exit(ExitSignal, "death cross")
	}
	return stay("trend intact")
}

// PositionSize risks RiskPerTrade of the account against the fixed stop
func (s *MACrossover) PositionSize(accountValue, price, volatilityHint float64) float64 {
	return riskSizedQuantity(accountValue, price, price*s.config.StopLossPct, s.config.RiskPerTrade, s.config.MaxAllocation)
}
