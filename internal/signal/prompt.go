package signal

import (
	"fmt"
	"strings"

	"equities-trading-bot/internal/indicators"
	"equities-trading-bot/internal/scanner"
)

var horizons = map[TradeType]string{
	TradeScalp:    "a SCALP trade held 5 to 30 minutes. Favour tight stops and immediate momentum",
	TradeDayTrade: "a DAY TRADE held 30 to 120 minutes and closed before the session ends",
	TradeSwing:    "a SWING trade held from several hours to a few days",
}

// BuildPrompt renders the analysis request for one opportunity
func BuildPrompt(opp scanner.Opportunity, tradeType TradeType, set indicators.Set, sentimentScore float64, optionsEnabled bool) string {
	var b strings.Builder

	horizon, ok := horizons[tradeType]
	if !ok {
		horizon = horizons[TradeSwing]
	}

	fmt.Fprintf(&b, "Analyze %s for %s.\n\n", opp.Symbol, horizon)
	b.WriteString("MARKET DATA:\n")
	fmt.Fprintf(&b, "- Current price: %.2f\n", opp.CurrentPrice)
	if opp.Quote.Bid > 0 && opp.Quote.Ask > 0 {
		fmt.Fprintf(&b, "- Bid/Ask: %.2f / %.2f\n", opp.Quote.Bid, opp.Quote.Ask)
	}
	fmt.Fprintf(&b, "- Volume ratio vs 20-bar average: %.2f\n", opp.VolumeRatio)
	fmt.Fprintf(&b, "- Momentum (%d bars): %.2f%%\n", scanner.MomentumLookback, opp.Momentum)
	fmt.Fprintf(&b, "- Short-term volatility: %.2f%%\n", opp.Volatility)
	fmt.Fprintf(&b, "- Scanner score: %.0f/100\n", opp.Score)
	fmt.Fprintf(&b, "- News sentiment: %.2f (-1 bearish to +1 bullish)\n", sentimentScore)

	b.WriteString("\nINDICATORS:\n")
	for _, key := range promptIndicators {
		if v, ok := set.Get(key); ok {
			fmt.Fprintf(&b, "- %s: %.2f\n", key, v)
		}
	}

	choices := "BUY_STOCK, SELL or HOLD"
	if optionsEnabled {
		choices = "BUY_STOCK, BUY_CALL, BUY_PUT, SELL or HOLD"
	}
	fmt.Fprintf(&b, "\nRespond with exactly these five lines and nothing else:\n")
	fmt.Fprintf(&b, "RECOMMENDATION: <%s>\n", choices)
	b.WriteString("CONFIDENCE: <0-100>\n")
	b.WriteString("RISK_LEVEL: <LOW, MEDIUM or HIGH>\n")
	b.WriteString("ENTRY_PRICE: <number>\n")
	b.WriteString("REASONING: <one or two sentences>\n")
	return b.String()
}

var promptIndicators = []string{
	indicators.KeyRSI,
	indicators.KeySMA20,
	indicators.KeySMA50,
	indicators.KeySMA200,
	indicators.KeyMACD,
	indicators.KeyMACDSignal,
	indicators.KeyBBUpper,
	indicators.KeyBBLower,
	indicators.KeyATR,
	indicators.KeyADX,
}
