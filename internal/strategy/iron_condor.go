package strategy

import (
	"fmt"
	"math"
	"time"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/indicators"
	"equities-trading-bot/internal/options"
)

// IronCondorConfig configures the iron condor evaluator
type IronCondorConfig struct {
	MinIVRank         float64
	ShortOTMPct       float64
	LongOTMPct        float64
	MinDTE            int
	MaxDTE            int
	ProfitTargetPct   float64 // close when cost to close falls to (1-ProfitTargetPct) of credit
	StopMultiple      float64 // close when cost to close reaches this multiple of credit
	TimeExitDTE       int
	AdjustmentPct     float64
	VolatilityPeriod  int
	DefaultVolatility float64
	Strength          float64
	RiskPerTrade      float64
}

// DefaultIronCondorConfig returns the standard parameters
func DefaultIronCondorConfig() IronCondorConfig {
	return IronCondorConfig{
		MinIVRank:         50,
		ShortOTMPct:       0.05,
		LongOTMPct:        0.10,
		MinDTE:            30,
		MaxDTE:            45,
		ProfitTargetPct:   0.50,
		StopMultiple:      2.0,
		TimeExitDTE:       21,
		AdjustmentPct:     0.02,
		VolatilityPeriod:  20,
		DefaultVolatility: 0.30,
		Strength:          0.70,
		RiskPerTrade:      0.02,
	}
}

// IronCondor sells out-of-the-money call and put spreads when implied volatility is rich
type IronCondor struct {
	config IronCondorConfig
	now    func() time.Time
}

// NewIronCondor creates the evaluator
func NewIronCondor(config IronCondorConfig) *IronCondor {
	return &IronCondor{config: config, now: time.Now}
}

func (s *IronCondor) Name() string { return NameIronCondor }

// RoundStrike snaps a price to a typical listed strike increment
func RoundStrike(price float64) float64 {
	increment := 1.0
	switch {
	case price < 25:
		increment = 0.5
	case price >= 200:
		increment = 5
	}
	return math.Round(price/increment) * increment
}

func (s *IronCondor) volatility(bars []broker.Bar, extras Extras) float64 {
	if extras.ImpliedVolatility > 0 {
		return extras.ImpliedVolatility
	}
	hv, err := indicators.HistoricalVolatility(indicators.Closes(bars), s.config.VolatilityPeriod)
	if err == nil {
		if v, ok := hv.Last(); ok && v > 0 {
			return v
		}
	}
	return s.config.DefaultVolatility
}

// BuildLegs returns the four legs around price for the given expiration
func (s *IronCondor) BuildLegs(symbol string, price float64, expiration time.Time) []Leg {
	leg := func(strike float64, typ options.Type, qty int) Leg {
		return Leg{
			Contract: options.Contract{Underlying: symbol, Expiration: expiration, Strike: RoundStrike(strike), Type: typ},
			Quantity: qty,
		}
	}
	return []Leg{
		leg(price*(1-s.config.LongOTMPct), options.Put, 1),
		leg(price*(1-s.config.ShortOTMPct), options.Put, -1),
		leg(price*(1+s.config.ShortOTMPct), options.Call, -1),
		leg(price*(1+s.config.LongOTMPct), options.Call, 1),
	}
}

// StructureValue estimates the per-share cost to close the structure
func (s *IronCondor) StructureValue(legs []Leg, price float64, dte int, volatility float64) float64 {
	value := 0.0
	for _, l := range legs {
		g := options.Estimate(options.Inputs{
			Spot:       price,
			Strike:     l.Contract.Strike,
			DTE:        dte,
			Volatility: volatility,
			Rate:       options.DefaultRiskFreeRate,
			Type:       l.Contract.Type,
		})
		// short legs are bought back, long legs sold
		value -= float64(l.Quantity) * g.Price
	}
	return value
}

// Analyze returns BUY (open the structure) when IV rank is high enough and the estimated credit is positive
func (s *IronCondor) Analyze(symbol string, bars []broker.Bar, price float64, extras Extras) (Verdict, error) {
	if !extras.HasIVRank {
		return hold(s.Name(), symbol, price, "IV rank unavailable"), nil
	}
	if extras.IVRank < s.config.MinIVRank {
		return hold(s.Name(), symbol, price, fmt.Sprintf("IV rank %.0f below %.0f", extras.IVRank, s.config.MinIVRank)), nil
	}
	if price <= 0 {
		return hold(s.Name(), symbol, price, "no price"), nil
	}

	dte := (s.config.MinDTE + s.config.MaxDTE) / 2
	expiration := s.now().AddDate(0, 0, dte)
	legs := s.BuildLegs(symbol, price, expiration)
	vol := s.volatility(bars, extras)
	credit := s.StructureValue(legs, price, dte, vol)
	if credit <= 0 {
		return hold(s.Name(), symbol, price, fmt.Sprintf("estimated credit %.2f not positive", credit)), nil
	}

	return Verdict{
		Strategy:  s.Name(),
		Symbol:    symbol,
		Action:    ActionBuy,
		Strength:  s.config.Strength,
		RiskLevel: RiskMedium,
		Reasons: []string{
			fmt.Sprintf("IV rank %.0f at or above %.0f", extras.IVRank, s.config.MinIVRank),
			fmt.Sprintf("short strikes %.2f/%.2f, long strikes %.2f/%.2f, %d DTE",
				legs[1].Contract.Strike, legs[2].Contract.Strike, legs[0].Contract.Strike, legs[3].Contract.Strike, dte),
			fmt.Sprintf("estimated credit %.2f at %.0f%% volatility", credit, vol*100),
		},
		EntryPrice:  price,
		TargetPrice: credit * (1 - s.config.ProfitTargetPct),
		StopPrice:   credit * s.config.StopMultiple,
		Legs:        legs,
		Credit:      credit,
		Timestamp:   s.now(),
	}, nil
}

// NeedsAdjustment flags when price trades within AdjustmentPct of a short strike
func (s *IronCondor) NeedsAdjustment(legs []Leg, price float64) (bool, string) {
	for _, l := range legs {
		if l.Quantity >= 0 || l.Contract.Strike <= 0 {
			continue
		}
		distance := math.Abs(price-l.Contract.Strike) / l.Contract.Strike
		if distance <= s.config.AdjustmentPct {
			return true, fmt.Sprintf("price %.2f within %.1f%% of short %s %.2f",
				price, distance*100, l.Contract.Type, l.Contract.Strike)
		}
	}
	return false, ""
}

// CheckExit applies the profit target, stop, time exit and adjustment flag
func (s *IronCondor) CheckExit(pos Position, price float64, bars []broker.Bar) ExitDecision {
	if len(pos.Legs) == 0 || pos.Credit <= 0 {
		return stay("not an iron condor position")
	}
	dte := broker.Expiration{Date: pos.Expiration}.DTE(s.now())
	value := s.StructureValue(pos.Legs, price, dte, s.volatility(bars, Extras{}))

	if value <= pos.Credit*(1-s.config.ProfitTargetPct) {
		return exit(ExitTakeProfit, fmt.Sprintf("cost to close %.2f captured %.0f%% of credit %.2f", value, s.config.ProfitTargetPct*100, pos.Credit))
	}
	if value >= pos.Credit*s.config.StopMultiple {
		return exit(ExitStopLoss, fmt.Sprintf("cost to close %.2f reached %.1fx credit %.2f", value, s.config.StopMultiple, pos.Credit))
	}
	if dte <= s.config.TimeExitDTE {
		return exit(ExitTime, fmt.Sprintf("%d DTE at or below %d", dte, s.config.TimeExitDTE))
	}
	if adjust, reason := s.NeedsAdjustment(pos.Legs, price); adjust {
		return ExitDecision{Exit: false, Reason: reason, Type: ExitAdjustment}
	}
	return stay("condor within range")
}

// PositionSize returns contracts so the worst case loses at most RiskPerTrade of the account.
// volatilityHint is the estimated credit per share, 0 when unknown.
func (s *IronCondor) PositionSize(accountValue, price, volatilityHint float64) float64 {
	width := price * (s.config.LongOTMPct - s.config.ShortOTMPct)
	maxLoss := (width - math.Max(volatilityHint, 0)) * 100
	if maxLoss <= 0 || accountValue <= 0 {
		return 0
	}
	return math.Floor(accountValue * s.config.RiskPerTrade / maxLoss)
}
