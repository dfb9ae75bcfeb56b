package options

import (
	"math"
	"testing"
	"time"
)

func TestContractSymbolRoundTrip(t *testing.T) {
	c := Contract{
		Underlying: "AAPL",
		Expiration: time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC),
		Strike:     192.5,
		Type:       Call,
	}
	sym := c.Symbol()
	if sym != "AAPL240621C00192500" {
		t.Fatalf("Expected AAPL240621C00192500, got %s", sym)
	}
	parsed, err := ParseSymbol(sym)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if parsed.Underlying != "AAPL" || parsed.Strike != 192.5 || parsed.Type != Call || !parsed.Expiration.Equal(c.Expiration) {
		t.Errorf("Expected %+v, got %+v", c, parsed)
	}
	if IsOptionSymbol("AAPL") {
		t.Error("Expected plain ticker not to parse as an option")
	}
}

func TestEstimatePutCallParity(t *testing.T) {
	in := Inputs{Spot: 100, Strike: 105, DTE: 30, Volatility: 0.3, Rate: 0.05}
	in.Type = Call
	call := Estimate(in)
	in.Type = Put
	put := Estimate(in)

	tYears := 30.0 / 365
	parity := 100 - 105*math.Exp(-0.05*tYears)
	if math.Abs((call.Price-put.Price)-parity) > 1e-9 {
		t.Errorf("Expected C-P = %.6f, got %.6f", parity, call.Price-put.Price)
	}
	if call.Delta <= 0 || call.Delta >= 1 {
		t.Errorf("Expected call delta in (0,1), got %.4f", call.Delta)
	}
	if put.Delta >= 0 || put.Delta <= -1 {
		t.Errorf("Expected put delta in (-1,0), got %.4f", put.Delta)
	}
	if math.Abs(call.Gamma-put.Gamma) > 1e-12 {
		t.Errorf("Expected equal gamma, got %.6f and %.6f", call.Gamma, put.Gamma)
	}
	if call.Theta >= 0 {
		t.Errorf("Expected negative call theta, got %.6f", call.Theta)
	}
}

func TestEstimateExpiredIsIntrinsic(t *testing.T) {
	g := Estimate(Inputs{Spot: 110, Strike: 100, DTE: 0, Volatility: 0.3, Type: Call})
	if g.Price != 10 || g.Delta != 1 {
		t.Errorf("Expected intrinsic 10 with delta 1, got %+v", g)
	}
	g = Estimate(Inputs{Spot: 110, Strike: 100, DTE: 0, Volatility: 0.3, Type: Put})
	if g.Price != 0 {
		t.Errorf("Expected worthless put, got %+v", g)
	}
}
