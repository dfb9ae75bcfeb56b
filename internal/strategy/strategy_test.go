package strategy

import (
	"strings"
	"testing"
	"time"

	"equities-trading-bot/internal/broker"
)

func barsFrom(closes []float64) []broker.Bar {
	bars := make([]broker.Bar, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = broker.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func repeat(n int, v float64) []float64 {
	return linear(n, v, 0)
}

func last(bars []broker.Bar) float64 {
	return bars[len(bars)-1].Close
}

func TestMeanReversion(t *testing.T) {
	s := NewMeanReversion(DefaultMeanReversionConfig())

	falling := barsFrom(append(repeat(10, 100), linear(20, 98, -1.5)...))
	v, err := s.Analyze("AAPL", falling, last(falling), Extras{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if v.Action != ActionBuy {
		t.Fatalf("Expected BUY on oversold dip, got %s (%s)", v.Action, v.Reason())
	}
	if v.Confidence() != 75 {
		t.Errorf("Expected confidence 75, got %.2f", v.Confidence())
	}
	price := last(falling)
	if !approx(v.StopPrice, price*0.98) || !approx(v.TargetPrice, price*1.05) {
		t.Errorf("Expected stop -2%% and target +5%%, got %.2f / %.2f", v.StopPrice, v.TargetPrice)
	}

	rising := barsFrom(linear(30, 100, 1))
	v, _ = s.Analyze("AAPL", rising, last(rising), Extras{})
	if v.Action != ActionHold {
		t.Fatalf("Expected HOLD on uptrend, got %s", v.Action)
	}
	if len(v.Reasons) != 2 || !strings.Contains(v.Reasons[0], "RSI") || !strings.Contains(v.Reasons[1], "SMA20") {
		t.Errorf("Expected both unmet conditions listed, got %v", v.Reasons)
	}

	v, _ = s.Analyze("AAPL", barsFrom(repeat(5, 100)), 100, Extras{})
	if v.Action != ActionHold || !strings.Contains(v.Reason(), "insufficient data") {
		t.Errorf("Expected insufficient data HOLD, got %s %q", v.Action, v.Reason())
	}
}

func TestMeanReversionExit(t *testing.T) {
	s := NewMeanReversion(DefaultMeanReversionConfig())
	bars := barsFrom(append(repeat(10, 100), linear(20, 98, -1.5)...))
	pos := Position{Symbol: "AAPL", EntryPrice: 100}

	tests := []struct {
		name  string
		price float64
		want  ExitType
	}{
		{"stop loss", 97.9, ExitStopLoss},
		{"take profit", 105.5, ExitTakeProfit},
	}
	for _, tt := range tests {
		d := s.CheckExit(pos, tt.price, bars)
		if !d.Exit || d.Type != tt.want {
			t.Errorf("%s: expected %s exit, got %+v", tt.name, tt.want, d)
		}
	}

	// price back above the SMA of an uptrend
	up := barsFrom(linear(30, 100, 0.1))
	d := s.CheckExit(Position{EntryPrice: 102}, 103, up)
	if !d.Exit || d.Type != ExitSignal {
		t.Errorf("Expected signal exit, got %+v", d)
	}
}

func TestMomentumBreakout(t *testing.T) {
	s := NewMomentumBreakout(DefaultMomentumBreakoutConfig())

	bars := barsFrom(linear(40, 100, 2))
	bars[len(bars)-1].Volume = 5000
	v, _ := s.Analyze("NVDA", bars, 185, Extras{})
	if v.Action != ActionBuy {
		t.Fatalf("Expected BUY on breakout, got %s (%s)", v.Action, v.Reason())
	}
	if v.StopPrice >= v.EntryPrice {
		t.Errorf("Expected ATR stop below entry, got %.2f", v.StopPrice)
	}
	if v.RiskLevel != RiskHigh {
		t.Errorf("Expected HIGH risk, got %s", v.RiskLevel)
	}

	quiet := barsFrom(linear(40, 100, 2))
	v, _ = s.Analyze("NVDA", quiet, 185, Extras{})
	if v.Action != ActionHold || !strings.Contains(v.Reason(), "volume") {
		t.Errorf("Expected HOLD citing volume, got %s %q", v.Action, v.Reason())
	}

	v, _ = s.Analyze("NVDA", bars, 150, Extras{})
	if v.Action != ActionHold || !strings.Contains(v.Reason(), "high") {
		t.Errorf("Expected HOLD citing range high, got %s %q", v.Action, v.Reason())
	}
}

func TestMomentumBreakoutTrailingStop(t *testing.T) {
	s := NewMomentumBreakout(DefaultMomentumBreakoutConfig())
	bars := barsFrom(linear(40, 100, 2))

	pos := Position{Symbol: "NVDA", EntryPrice: 150, HighWaterMark: 178}
	d := s.CheckExit(pos, 160, bars)
	if !d.Exit || d.Type != ExitTrailing {
		t.Errorf("Expected trailing stop exit, got %+v", d)
	}
	d = s.CheckExit(pos, 179, bars)
	if d.Exit {
		t.Errorf("Expected no exit at new high, got %+v", d)
	}
}

func crossoverBars(base, recent, final float64, finalVolume float64) []broker.Bar {
	closes := append(repeat(150, base), repeat(59, recent)...)
	closes = append(closes, final)
	bars := barsFrom(closes)
	bars[len(bars)-1].Volume = finalVolume
	return bars
}

func TestMACrossover(t *testing.T) {
	s := NewMACrossover(DefaultMACrossoverConfig())

	golden := crossoverBars(100, 90, 600, 5000)
	v, _ := s.Analyze("SPY", golden, 600, Extras{})
	if v.Action != ActionBuy {
		t.Fatalf("Expected BUY on golden cross, got %s (%s)", v.Action, v.Reason())
	}
	if !approx(v.StopPrice, 600*0.97) {
		t.Errorf("Expected 3%% stop, got %.2f", v.StopPrice)
	}

	weak := crossoverBars(100, 90, 600, 900)
	v, _ = s.Analyze("SPY", weak, 600, Extras{})
	if v.Action != ActionHold || !strings.Contains(v.Reason(), "volume confirmation") {
		t.Errorf("Expected HOLD without volume confirmation, got %s %q", v.Action, v.Reason())
	}

	death := crossoverBars(100, 101, 50, 1000)
	v, _ = s.Analyze("SPY", death, 50, Extras{})
	if v.Action != ActionSell {
		t.Errorf("Expected SELL on death cross, got %s (%s)", v.Action, v.Reason())
	}
	d := s.CheckExit(Position{EntryPrice: 45}, 50, death)
	if !d.Exit || d.Type != ExitSignal {
		t.Errorf("Expected death cross exit, got %+v", d)
	}

	flat := barsFrom(repeat(210, 100))
	v, _ = s.Analyze("SPY", flat, 100, Extras{})
	if v.Action != ActionHold || !strings.Contains(v.Reason(), "no crossover") {
		t.Errorf("Expected no crossover HOLD, got %s %q", v.Action, v.Reason())
	}
}

func TestIronCondor(t *testing.T) {
	s := NewIronCondor(DefaultIronCondorConfig())
	now := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	bars := barsFrom(repeat(30, 100))

	v, _ := s.Analyze("SPY", bars, 100, Extras{})
	if v.Action != ActionHold || !strings.Contains(v.Reason(), "IV rank") {
		t.Errorf("Expected HOLD without IV rank, got %s %q", v.Action, v.Reason())
	}
	v, _ = s.Analyze("SPY", bars, 100, Extras{IVRank: 40, HasIVRank: true})
	if v.Action != ActionHold {
		t.Errorf("Expected HOLD with low IV rank, got %s", v.Action)
	}

	v, _ = s.Analyze("SPY", bars, 100, Extras{IVRank: 65, HasIVRank: true})
	if v.Action != ActionBuy {
		t.Fatalf("Expected condor entry, got %s (%s)", v.Action, v.Reason())
	}
	if len(v.Legs) != 4 {
		t.Fatalf("Expected 4 legs, got %d", len(v.Legs))
	}
	wantStrikes := []float64{90, 95, 105, 110}
	for i, l := range v.Legs {
		if l.Contract.Strike != wantStrikes[i] {
			t.Errorf("Leg %d: expected strike %.0f, got %.2f", i, wantStrikes[i], l.Contract.Strike)
		}
	}
	if v.Credit <= 0 {
		t.Errorf("Expected positive credit, got %.4f", v.Credit)
	}
	if !approx(v.TargetPrice, v.Credit*0.5) || !approx(v.StopPrice, v.Credit*2) {
		t.Errorf("Expected target 50%% and stop 2x credit, got %.4f / %.4f", v.TargetPrice, v.StopPrice)
	}
}

func TestIronCondorExits(t *testing.T) {
	s := NewIronCondor(DefaultIronCondorConfig())
	now := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	bars := barsFrom(repeat(30, 100))

	position := func(dte int, price float64, credit float64) Position {
		exp := now.AddDate(0, 0, dte)
		legs := s.BuildLegs("SPY", 100, exp)
		if credit == 0 {
			credit = s.StructureValue(legs, price, dte, 0.30)
		}
		return Position{Symbol: "SPY", Legs: legs, Credit: credit, Expiration: exp}
	}

	tests := []struct {
		name  string
		pos   Position
		price float64
		exit  bool
		want  ExitType
	}{
		{"profit target", position(40, 100, 10), 100, true, ExitTakeProfit},
		{"stop at 2x credit", position(40, 100, 0.01), 100, true, ExitStopLoss},
		{"time exit", position(15, 100, 0), 100, true, ExitTime},
		{"adjustment flag", position(40, 104, 0), 104, false, ExitAdjustment},
		{"in range", position(40, 100, 0), 100, false, ExitNone},
	}
	for _, tt := range tests {
		d := s.CheckExit(tt.pos, tt.price, bars)
		if d.Exit != tt.exit || d.Type != tt.want {
			t.Errorf("%s: expected exit=%v %s, got %+v", tt.name, tt.exit, tt.want, d)
		}
	}
}

type fakeEvaluator struct {
	name   string
	action Action
	panics bool
}

func (f *fakeEvaluator) Name() string { return f.name }

func (f *fakeEvaluator) Analyze(symbol string, bars []broker.Bar, price float64, extras Extras) (Verdict, error) {
	if f.panics {
		panic("boom")
	}
	return Verdict{Strategy: f.name, Symbol: symbol, Action: f.action, Strength: 0.7, Reasons: []string{f.name + " says " + string(f.action)}}, nil
}

func (f *fakeEvaluator) CheckExit(pos Position, price float64, bars []broker.Bar) ExitDecision {
	if f.panics {
		panic("boom")
	}
	if f.action == ActionSell {
		return ExitDecision{Exit: true, Reason: "sell", Type: ExitSignal}
	}
	return ExitDecision{Type: ExitNone}
}

func (f *fakeEvaluator) PositionSize(accountValue, price, volatilityHint float64) float64 { return 1 }

func TestManagerSelection(t *testing.T) {
	tests := []struct {
		name       string
		evaluators []*fakeEvaluator
		rank       RankFunc
		wantName   string
		wantAction Action
	}{
		{
			name:       "buy beats earlier sell",
			evaluators: []*fakeEvaluator{{name: "a", action: ActionSell}, {name: "b", action: ActionBuy}},
			wantName:   "b",
			wantAction: ActionBuy,
		},
		{
			name:       "buy tie broken by registration order",
			evaluators: []*fakeEvaluator{{name: "a", action: ActionHold}, {name: "b", action: ActionBuy}, {name: "c", action: ActionBuy}},
			wantName:   "b",
			wantAction: ActionBuy,
		},
		{
			name:       "priority ranking overrides order",
			evaluators: []*fakeEvaluator{{name: "b", action: ActionBuy}, {name: "c", action: ActionBuy}},
			rank:       PriorityRanking([]string{"c"}),
			wantName:   "c",
			wantAction: ActionBuy,
		},
		{
			name:       "sell beats hold",
			evaluators: []*fakeEvaluator{{name: "a", action: ActionHold}, {name: "b", action: ActionSell}},
			wantName:   "b",
			wantAction: ActionSell,
		},
		{
			name:       "panicking evaluator is skipped",
			evaluators: []*fakeEvaluator{{name: "a", panics: true}, {name: "b", action: ActionBuy}},
			wantName:   "b",
			wantAction: ActionBuy,
		},
		{
			name:       "all hold gives combined hold",
			evaluators: []*fakeEvaluator{{name: "a", action: ActionHold}, {name: "b", action: ActionHold}},
			wantName:   NameCombined,
			wantAction: ActionHold,
		},
	}

	for _, tt := range tests {
		m := NewManager(zeroLogger(), tt.rank)
		for _, e := range tt.evaluators {
			m.Register(e)
		}
		v := m.AnalyzeAll("AAPL", nil, 100, Extras{})
		if v.Strategy != tt.wantName || v.Action != tt.wantAction {
			t.Errorf("%s: expected %s/%s, got %s/%s", tt.name, tt.wantName, tt.wantAction, v.Strategy, v.Action)
		}
	}
}

func TestManagerCombinedHoldBundlesReasons(t *testing.T) {
	m := NewManager(zeroLogger(), nil)
	m.Register(&fakeEvaluator{name: "a", action: ActionHold})
	m.Register(&fakeEvaluator{name: "b", panics: true})
	m.Register(&fakeEvaluator{name: "c", action: ActionHold})

	v := m.AnalyzeAll("AAPL", nil, 100, Extras{})
	if len(v.Reasons) != 3 {
		t.Fatalf("Expected 3 reasons, got %v", v.Reasons)
	}
	if !strings.HasPrefix(v.Reasons[0], "a:") || !strings.Contains(v.Reasons[1], "failed") || !strings.HasPrefix(v.Reasons[2], "c:") {
		t.Errorf("Unexpected reasons %v", v.Reasons)
	}
}

func TestManagerSetActive(t *testing.T) {
	m, err := NewDefaultManager(zeroLogger(), []string{NameMeanReversion, NameMACrossover}, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	active := m.Active()
	if len(active) != 2 || active[0].Name() != NameMeanReversion || active[1].Name() != NameMACrossover {
		t.Errorf("Expected mean_reversion and ma_crossover active, got %d", len(active))
	}
	if err := m.SetActive([]string{"bogus"}); err == nil {
		t.Error("Expected error for unknown strategy")
	}
}

func TestManagerCheckExits(t *testing.T) {
	m := NewManager(zeroLogger(), nil)
	m.Register(&fakeEvaluator{name: "a", panics: true})
	m.Register(&fakeEvaluator{name: "b", action: ActionHold})
	m.Register(&fakeEvaluator{name: "c", action: ActionSell})

	d := m.CheckExits(Position{Symbol: "AAPL"}, 100, nil)
	if !d.Exit || !strings.HasPrefix(d.Reason, "c:") {
		t.Errorf("Expected exit from c, got %+v", d)
	}
}

func TestPositionSizing(t *testing.T) {
	mr := NewMeanReversion(DefaultMeanReversionConfig())
	// 2% risk of 100k over a 2% stop on $100 => 1000 shares, capped at 25% allocation => 250
	if got := mr.PositionSize(100000, 100, 0); got != 250 {
		t.Errorf("Expected 250 shares, got %.0f", got)
	}
	mb := NewMomentumBreakout(DefaultMomentumBreakoutConfig())
	// 1% of 100k over 2*ATR(5) => 100 shares
	if got := mb.PositionSize(100000, 100, 5); got != 100 {
		t.Errorf("Expected 100 shares, got %.0f", got)
	}
	if got := mr.PositionSize(0, 100, 0); got != 0 {
		t.Errorf("Expected 0 shares without capital, got %.0f", got)
	}
}
