package signal

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/ai/sentiment"
	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/options"
	"equities-trading-bot/internal/scanner"
	"equities-trading-bot/internal/strategy"
)

type fakeLLM struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

type fakeSentiment struct {
	score float64
	err   error
}

func (f fakeSentiment) AnalyzeSymbolSentiment(ctx context.Context, symbol string) (*sentiment.SentimentScore, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sentiment.SentimentScore{Symbol: symbol, Overall: f.score}, nil
}

type fakeStrategies struct {
	verdict strategy.Verdict
	exit    strategy.ExitDecision
}

func (f fakeStrategies) AnalyzeAll(symbol string, bars []broker.Bar, price float64, extras strategy.Extras) strategy.Verdict {
	v := f.verdict
	v.Symbol = symbol
	return v
}

func (f fakeStrategies) CheckExits(pos strategy.Position, price float64, bars []broker.Bar) strategy.ExitDecision {
	return f.exit
}

func flatOpportunity(symbol string, price float64) scanner.Opportunity {
	bars := make([]broker.Bar, 60)
	for i := range bars {
		bars[i] = broker.Bar{Open: price, High: price, Low: price, Close: price, Volume: 1000}
	}
	return scanner.Opportunity{Symbol: symbol, CurrentPrice: price, Bars: bars, VolumeRatio: 1}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		rec        Recommendation
		confidence float64
		risk       strategy.RiskLevel
		price      float64
	}{
		{
			name:       "well formed",
			text:       "RECOMMENDATION: BUY_CALL\nCONFIDENCE: 82\nRISK_LEVEL: HIGH\nENTRY_PRICE: 192.50\nREASONING: breakout",
			rec:        RecBuyCall,
			confidence: 82,
			risk:       strategy.RiskHigh,
			price:      192.5,
		},
		{
			name:       "markdown and units",
			text:       "**RECOMMENDATION:** BUY_STOCK\n**CONFIDENCE:** 75%\nRISK_LEVEL: low\nENTRY_PRICE: $1,020.10",
			rec:        RecBuyStock,
			confidence: 75,
			risk:       strategy.RiskLow,
			price:      1020.10,
		},
		{
			name:       "malformed fields default",
			text:       "RECOMMENDATION: MAYBE\nCONFIDENCE: high\nENTRY_PRICE: n/a",
			rec:        RecHold,
			confidence: 50,
			risk:       strategy.RiskMedium,
			price:      0,
		},
		{
			name:       "empty",
			text:       "",
			rec:        RecHold,
			confidence: 50,
			risk:       strategy.RiskMedium,
			price:      0,
		},
		{
			name:       "confidence clamped",
			text:       "RECOMMENDATION: SELL\nCONFIDENCE: 140",
			rec:        RecSell,
			confidence: 100,
			risk:       strategy.RiskMedium,
			price:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseResponse(tt.text)
			if r.Recommendation != tt.rec {
				t.Errorf("Expected recommendation %s, got %s", tt.rec, r.Recommendation)
			}
			if r.Confidence != tt.confidence {
				t.Errorf("Expected confidence %.0f, got %.2f", tt.confidence, r.Confidence)
			}
			if r.RiskLevel != tt.risk {
				t.Errorf("Expected risk %s, got %s", tt.risk, r.RiskLevel)
			}
			if r.EntryPrice != tt.price {
				t.Errorf("Expected price %.2f, got %.2f", tt.price, r.EntryPrice)
			}
		})
	}
}

func TestSentimentAdjustment(t *testing.T) {
	tests := []struct {
		score    float64
		expected float64
	}{
		{0.8, 5},
		{0.5, 3},
		{0.4, 3},
		{0.3, 0},
		{0, 0},
		{-0.3, 0},
		{-0.4, -5},
		{-0.5, -5},
		{-0.9, -10},
	}
	for _, tt := range tests {
		if got := SentimentAdjustment(tt.score); got != tt.expected {
			t.Errorf("SentimentAdjustment(%.1f): Expected %.0f, got %.0f", tt.score, tt.expected, got)
		}
	}
	if ClampConfidence(104) != 100 || ClampConfidence(-3) != 0 {
		t.Error("Expected confidence to clamp to [0,100]")
	}
}

func TestClassifyTradeType(t *testing.T) {
	hot := TradeTypeInputs{Score: 80, Volatility: 2.5, VolumeRatio: 3, Momentum: -2}
	warm := TradeTypeInputs{Score: 60, Volatility: 1, VolumeRatio: 1.2, Momentum: 0.5}
	cold := TradeTypeInputs{Score: 20, Volatility: 0.5, VolumeRatio: 1, Momentum: 0.1}

	tests := []struct {
		name       string
		in         TradeTypeInputs
		aggressive bool
		interval   int
		expected   TradeType
	}{
		{"scalp", hot, true, 30, TradeScalp},
		{"day trade", warm, true, 60, TradeDayTrade},
		{"sentiment day trade", TradeTypeInputs{Sentiment: -0.6}, true, 60, TradeDayTrade},
		{"quiet aggressive", cold, true, 30, TradeSwing},
		{"not aggressive", hot, false, 30, TradeSwing},
		{"slow cadence", hot, true, 300, TradeSwing},
	}
	for _, tt := range tests {
		if got := ClassifyTradeType(tt.in, tt.aggressive, tt.interval); got != tt.expected {
			t.Errorf("%s: Expected %s, got %s", tt.name, tt.expected, got)
		}
	}
}

func TestInstrumentHandlersCoverEveryRecommendation(t *testing.T) {
	for _, r := range Recommendations {
		if _, ok := instrumentHandlers[r]; !ok {
			t.Errorf("Expected an instrument handler for %s", r)
		}
	}
	if len(instrumentHandlers) != len(Recommendations) {
		t.Errorf("Expected %d handlers, got %d", len(Recommendations), len(instrumentHandlers))
	}
}

func TestDecideInstrument(t *testing.T) {
	cfg := InstrumentConfig{MinConfidence: 70, StockTradingEnabled: true, OptionsTradingEnabled: true}

	tests := []struct {
		name       string
		cfg        InstrumentConfig
		sig        Signal
		instrument Instrument
		optionType options.Type
	}{
		{"stock", cfg, Signal{Recommendation: RecBuyStock, Confidence: 82}, InstrumentStock, ""},
		{"call", cfg, Signal{Recommendation: RecBuyCall, Confidence: 75}, InstrumentOption, options.Call},
		{"put", cfg, Signal{Recommendation: RecBuyPut, Confidence: 70}, InstrumentOption, options.Put},
		{"low confidence", cfg, Signal{Recommendation: RecBuyStock, Confidence: 69}, InstrumentNone, ""},
		{"hold", cfg, Signal{Recommendation: RecHold, Confidence: 90}, InstrumentNone, ""},
		{"condor", cfg, Signal{Recommendation: RecSellIronCondor, Confidence: 72}, InstrumentNone, ""},
		{"stock disabled", InstrumentConfig{MinConfidence: 70, OptionsTradingEnabled: true}, Signal{Recommendation: RecBuyStock, Confidence: 90}, InstrumentNone, ""},
		{"options disabled", InstrumentConfig{MinConfidence: 70, StockTradingEnabled: true}, Signal{Recommendation: RecBuyCall, Confidence: 90}, InstrumentNone, ""},
		{"unknown", cfg, Signal{Recommendation: "BUY_FUTURE", Confidence: 90}, InstrumentNone, ""},
	}
	for _, tt := range tests {
		d := DecideInstrument(tt.cfg, tt.sig)
		if d.Instrument != tt.instrument || d.OptionType != tt.optionType {
			t.Errorf("%s: Expected %s/%s, got %s/%s (%s)", tt.name, tt.instrument, tt.optionType, d.Instrument, d.OptionType, d.Reasoning)
		}
		if d.Reasoning == "" {
			t.Errorf("%s: Expected a reason", tt.name)
		}
	}
}

func testChain(now time.Time) *broker.OptionsChain {
	strikes := []float64{180, 185, 190, 195, 200, 205, 210}
	return &broker.OptionsChain{
		Underlying: "AAPL",
		Expirations: []broker.Expiration{
			{Date: now.AddDate(0, 0, -1), Strikes: strikes},
			{Date: now.AddDate(0, 0, 7), Strikes: strikes},
			{Date: now.AddDate(0, 0, 24), Strikes: strikes},
			{Date: now.AddDate(0, 0, 30), Strikes: strikes},
			{Date: now.AddDate(0, 0, 60), Strikes: strikes},
		},
	}
}

func TestSelectExpirationNearestMidpoint(t *testing.T) {
	now := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	exp, err := SelectExpiration(testChain(now), ContractConfig{MinDTE: 7, MaxDTE: 45}, now)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// midpoint 26: 24 is closer than 30
	if dte := exp.DTE(now); dte != 24 {
		t.Errorf("Expected DTE 24, got %d", dte)
	}

	past := &broker.OptionsChain{Expirations: []broker.Expiration{{Date: now.AddDate(0, 0, -3), Strikes: []float64{100}}}}
	if _, err := SelectExpiration(past, ContractConfig{MinDTE: 7, MaxDTE: 45}, now); !errors.Is(err, ErrNoContract) {
		t.Errorf("Expected ErrNoContract, got %v", err)
	}
}

func TestSelectStrike(t *testing.T) {
	strikes := []float64{180, 185, 190, 195, 200, 205, 210}
	tests := []struct {
		name     string
		typ      options.Type
		pref     StrikePreference
		offset   int
		expected float64
	}{
		{"atm call", options.Call, StrikeATM, 1, 190},
		{"first otm call", options.Call, StrikeOTM, 1, 195},
		{"second otm call", options.Call, StrikeOTM, 2, 200},
		{"otm call beyond chain", options.Call, StrikeOTM, 10, 210},
		{"first otm put", options.Put, StrikeOTM, 1, 190},
		{"second otm put", options.Put, StrikeOTM, 2, 185},
		{"itm call", options.Call, StrikeITM, 1, 190},
		{"itm put", options.Put, StrikeITM, 1, 195},
	}
	for _, tt := range tests {
		got, err := SelectStrike(strikes, 192.4, tt.typ, tt.pref, tt.offset)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if got != tt.expected {
			t.Errorf("%s: Expected %.0f, got %.0f", tt.name, tt.expected, got)
		}
	}

	// nothing above spot: OTM call falls back to ATM
	got, _ := SelectStrike([]float64{100, 105, 110}, 120, options.Call, StrikeOTM, 1)
	if got != 110 {
		t.Errorf("Expected ATM fallback 110, got %.0f", got)
	}
}

func TestSelectContract(t *testing.T) {
	now := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	c, dte, err := SelectContract(testChain(now), 192.4, options.Call, ContractConfig{MinDTE: 7, MaxDTE: 45, StrikePreference: StrikeOTM, OTMStrikeOffset: 1}, now)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c.Symbol() != "AAPL240627C00195000" {
		t.Errorf("Expected AAPL240627C00195000, got %s", c.Symbol())
	}
	if dte != 24 {
		t.Errorf("Expected DTE 24, got %d", dte)
	}
}

func TestAnalyzeQuantitativeShortCircuitsAI(t *testing.T) {
	llm := &fakeLLM{response: "RECOMMENDATION: BUY_PUT"}
	strategies := fakeStrategies{verdict: strategy.Verdict{
		Strategy:  strategy.NameMeanReversion,
		Action:    strategy.ActionBuy,
		Strength:  0.75,
		RiskLevel: strategy.RiskMedium,
		Reasons:   []string{"RSI oversold"},
	}}
	e := NewEngine(strategies, llm, fakeSentiment{score: 0.9}, DefaultConfig(), zerolog.Nop())

	sig := e.Analyze(context.Background(), flatOpportunity("AAPL", 100))
	if sig.Source != SourceQuantitative {
		t.Errorf("Expected quantitative source, got %s", sig.Source)
	}
	if sig.Confidence != 75 {
		t.Errorf("Expected confidence 75 on the 0-100 scale, got %.2f", sig.Confidence)
	}
	if sig.Recommendation != RecBuyStock {
		t.Errorf("Expected BUY_STOCK, got %s", sig.Recommendation)
	}
	if len(llm.prompts) != 0 {
		t.Errorf("Expected no LLM calls, got %d", len(llm.prompts))
	}
}

func TestAnalyzeMultiLegVerdict(t *testing.T) {
	strategies := fakeStrategies{verdict: strategy.Verdict{
		Strategy: strategy.NameIronCondor,
		Action:   strategy.ActionBuy,
		Strength: 0.7,
		Legs:     []strategy.Leg{{Quantity: -1}},
	}}

	tests := []struct {
		name     string
		llm      LLM
		expected Recommendation
		source   Source
	}{
		{"no provider keeps the structure", nil, RecSellIronCondor, SourceQuantitative},
		{"AI hold keeps the structure", &fakeLLM{response: "RECOMMENDATION: HOLD\nCONFIDENCE: 40"}, RecSellIronCondor, SourceQuantitative},
		{"AI call replaces the structure", &fakeLLM{response: "RECOMMENDATION: BUY_CALL\nCONFIDENCE: 80\nRISK_LEVEL: MEDIUM\nENTRY_PRICE: 500\nREASONING: breakout"}, RecBuyCall, SourceAI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(strategies, tt.llm, nil, DefaultConfig(), zerolog.Nop())
			sig := e.Analyze(context.Background(), flatOpportunity("SPY", 500))
			if sig.Recommendation != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, sig.Recommendation)
			}
			if sig.Source != tt.source {
				t.Errorf("Expected source %s, got %s", tt.source, sig.Source)
			}
		})
	}
}

func TestAnalyzeAIPathAppliesSentiment(t *testing.T) {
	llm := &fakeLLM{response: "RECOMMENDATION: BUY_STOCK\nCONFIDENCE: 82\nRISK_LEVEL: MEDIUM\nENTRY_PRICE: 100\nREASONING: steady accumulation"}
	hold := fakeStrategies{verdict: strategy.Verdict{Action: strategy.ActionHold}}

	tests := []struct {
		sentiment float64
		expected  float64
	}{
		{0, 82},
		{0.6, 87},
		{-0.7, 72},
	}
	for _, tt := range tests {
		e := NewEngine(hold, llm, fakeSentiment{score: tt.sentiment}, DefaultConfig(), zerolog.Nop())
		sig := e.Analyze(context.Background(), flatOpportunity("AAPL", 100))
		if sig.Source != SourceAI {
			t.Errorf("Expected AI source, got %s", sig.Source)
		}
		if sig.Action != strategy.ActionBuy || sig.Recommendation != RecBuyStock {
			t.Errorf("Expected BUY/BUY_STOCK, got %s/%s", sig.Action, sig.Recommendation)
		}
		if sig.Confidence != tt.expected {
			t.Errorf("Sentiment %.1f: Expected confidence %.0f, got %.2f", tt.sentiment, tt.expected, sig.Confidence)
		}
		if sig.TradeType != TradeSwing {
			t.Errorf("Expected swing, got %s", sig.TradeType)
		}
		if math.Abs(sig.StopPrice-98) > 1e-9 || math.Abs(sig.TargetPrice-105) > 1e-9 {
			t.Errorf("Expected stop 98 and target 105, got %.2f / %.2f", sig.StopPrice, sig.TargetPrice)
		}
	}

	last := llm.prompts[len(llm.prompts)-1]
	if !strings.Contains(last, "SWING") || !strings.Contains(last, "RECOMMENDATION:") {
		t.Errorf("Expected swing prompt with response format, got %q", last)
	}
}

func TestAnalyzeLLMFailureHolds(t *testing.T) {
	llm := &fakeLLM{err: errors.New("llm rate limited")}
	hold := fakeStrategies{verdict: strategy.Verdict{Action: strategy.ActionHold}}
	e := NewEngine(hold, llm, fakeSentiment{err: errors.New("down")}, DefaultConfig(), zerolog.Nop())

	sig := e.Analyze(context.Background(), flatOpportunity("AAPL", 100))
	if sig.Action != strategy.ActionHold || sig.Confidence != 0 {
		t.Errorf("Expected HOLD at 0, got %s at %.0f", sig.Action, sig.Confidence)
	}
	if !strings.Contains(sig.Reasoning, "AI analysis unavailable") {
		t.Errorf("Expected unavailable reasoning, got %q", sig.Reasoning)
	}
}

func TestExitOpinionDelegates(t *testing.T) {
	want := strategy.ExitDecision{Exit: true, Type: strategy.ExitStopLoss, Reason: "stop"}
	e := NewEngine(fakeStrategies{exit: want}, nil, nil, DefaultConfig(), zerolog.Nop())
	if got := e.ExitOpinion(strategy.Position{Symbol: "AAPL"}, 90, nil); got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}
