package strategy

import (
	"fmt"
	"time"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/indicators"
)

// MeanReversionConfig configures the mean reversion evaluator
type MeanReversionConfig struct {
	RSIPeriod     int
	SMAPeriod     int
	Oversold      float64
	Overbought    float64
	StopLossPct   float64
	TakeProfitPct float64
	Strength      float64
	RiskPerTrade  float64
	MaxAllocation float64
}

// DefaultMeanReversionConfig returns the standard parameters
func DefaultMeanReversionConfig() MeanReversionConfig {
	return MeanReversionConfig{
		RSIPeriod:     14,
		SMAPeriod:     20,
		Oversold:      30,
		Overbought:    70,
		StopLossPct:   0.02,
		TakeProfitPct: 0.05,
		Strength:      0.75,
		RiskPerTrade:  0.02,
		MaxAllocation: 0.25,
	}
}

// MeanReversion buys oversold dips below the moving average
type MeanReversion struct {
	config MeanReversionConfig
}

// NewMeanReversion creates the evaluator
func NewMeanReversion(config MeanReversionConfig) *MeanReversion {
	return &MeanReversion{config: config}
}

func (s *MeanReversion) Name() string { return NameMeanReversion }

func (s *MeanReversion) levels(bars []broker.Bar) (rsi, sma float64, err error) {
	closes := indicators.Closes(bars)
	rsiSeries, err := indicators.RSI(closes, s.config.RSIPeriod)
	if err != nil {
		return 0, 0, err
	}
	smaSeries, err := indicators.SMA(closes, s.config.SMAPeriod)
	if err != nil {
		return 0, 0, err
	}
	rsi, _ = rsiSeries.Last()
	sma, _ = smaSeries.Last()
	return rsi, sma, nil
}

// Analyze returns BUY when RSI is oversold and price is below the SMA
func (s *MeanReversion) Analyze(symbol string, bars []broker.Bar, price float64, extras Extras) (Verdict, error) {
	rsi, sma, err := s.levels(bars)
	if err != nil {
		return hold(s.Name(), symbol, price, err.Error()), nil
	}

	var unmet []string
	if rsi >= s.config.Oversold {
		unmet = append(unmet, fmt.Sprintf("RSI %.1f not below %.0f", rsi, s.config.Oversold))
	}
	if price >= sma {
		unmet = append(unmet, fmt.Sprintf("price %.2f not below SMA%d %.2f", price, s.config.SMAPeriod, sma))
	}
	if len(unmet) > 0 {
		return hold(s.Name(), symbol, price, unmet...), nil
	}

	return Verdict{
		Strategy:  s.Name(),
		Symbol:    symbol,
		Action:    ActionBuy,
		Strength:  s.config.Strength,
		RiskLevel: RiskMedium,
		Reasons: []string{
			fmt.Sprintf("RSI %.1f oversold below %.0f", rsi, s.config.Oversold),
			fmt.Sprintf("price %.2f below SMA%d %.2f", price, s.config.SMAPeriod, sma),
		},
		EntryPrice:  price,
		StopPrice:   price * (1 - s.config.StopLossPct),
		TargetPrice: price * (1 + s.config.TakeProfitPct),
		Timestamp:   time.Now(),
	}, nil
}

// CheckExit closes on stop, target, overbought RSI or reversion above the SMA
func (s *MeanReversion) CheckExit(pos Position, price float64, bars []broker.Bar) ExitDecision {
	if pos.EntryPrice > 0 {
		if price <= pos.EntryPrice*(1-s.config.StopLossPct) {
			return exit(ExitStopLoss, fmt.Sprintf("price %.2f hit %.0f%% stop", price, s.config.StopLossPct*100))
		}
		if price >= pos.EntryPrice*(1+s.config.TakeProfitPct) {
			return exit(ExitTakeProfit, fmt.Sprintf("price %.2f hit %.0f%% target", price, s.config.TakeProfitPct*100))
		}
	}
	rsi, sma, err := s.levels(bars)
	if err != nil {
		return stay(err.Error())
	}
	if rsi > s.config.Overbought {
		return exit(ExitSignal, fmt.Sprintf("RSI %.1f overbought above %.0f", rsi, s.config.Overbought))
	}
	if price > sma {
		return exit(ExitSignal, fmt.Sprintf("price %.2f reverted above SMA%d %.2f", price, s.config.SMAPeriod, sma))
	}
	return stay("mean reversion still in progress")
}

// PositionSize risks RiskPerTrade of the account against the fixed stop
func (s *MeanReversion) PositionSize(accountValue, price, volatilityHint float64) float64 {
	return riskSizedQuantity(accountValue, price, price*s.config.StopLossPct, s.config.RiskPerTrade, s.config.MaxAllocation)
}
