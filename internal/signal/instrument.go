package signal

import (
	"fmt"

	"equities-trading-bot/internal/options"
)

// InstrumentConfig gates which instruments may be chosen
type InstrumentConfig struct {
	MinConfidence         float64
	StockTradingEnabled   bool
	OptionsTradingEnabled bool
}

type instrumentHandler func(cfg InstrumentConfig, sig Signal) InstrumentDecision

// instrumentHandlers has an entry for every Recommendation
var instrumentHandlers = map[Recommendation]instrumentHandler{
	RecBuyStock: func(cfg InstrumentConfig, sig Signal) InstrumentDecision {
		if !cfg.StockTradingEnabled {
			return none("stock trading disabled")
		}
		return InstrumentDecision{
			Instrument: InstrumentStock,
			Reasoning:  fmt.Sprintf("buy stock at %.0f%% confidence", sig.Confidence),
		}
	},
	RecBuyCall: func(cfg InstrumentConfig, sig Signal) InstrumentDecision {
		return optionDecision(cfg, sig, options.Call)
	},
	RecBuyPut: func(cfg InstrumentConfig, sig Signal) InstrumentDecision {
		return optionDecision(cfg, sig, options.Put)
	},
	RecSell: func(cfg InstrumentConfig, sig Signal) InstrumentDecision {
		return none("sell signals are exits, not entries")
	},
	RecHold: func(cfg InstrumentConfig, sig Signal) InstrumentDecision {
		return none("hold")
	},
	RecSellIronCondor: func(cfg InstrumentConfig, sig Signal) InstrumentDecision {
		return none("multi-leg structures are not auto-executed")
	},
}

func optionDecision(cfg InstrumentConfig, sig Signal, typ options.Type) InstrumentDecision {
	if !cfg.OptionsTradingEnabled {
		return none("options trading disabled")
	}
	return InstrumentDecision{
		Instrument: InstrumentOption,
		OptionType: typ,
		Reasoning:  fmt.Sprintf("buy %s at %.0f%% confidence", typ, sig.Confidence),
	}
}

func none(reason string) InstrumentDecision {
	return InstrumentDecision{Instrument: InstrumentNone, Reasoning: reason}
}

// DecideInstrument picks stock, option or none for a signal
func DecideInstrument(cfg InstrumentConfig, sig Signal) InstrumentDecision {
	if sig.Confidence < cfg.MinConfidence {
		return none(fmt.Sprintf("confidence %.0f below %.0f", sig.Confidence, cfg.MinConfidence))
	}
	handler, ok := instrumentHandlers[sig.Recommendation]
	if !ok {
		return none(fmt.Sprintf("unknown recommendation %q", sig.Recommendation))
	}
	return handler(cfg, sig)
}
