package broker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockGatewayBuyAndSell(t *testing.T) {
	ctx := context.Background()
	m := NewMockGateway(MockOptions{StartingCash: 10000})
	m.SetQuote(Quote{Symbol: "AAPL", Bid: 99.9, Ask: 100.1, Last: 100})

	if _, err := m.PlaceOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideBuy, Type: OrderTypeMarket, Quantity: 10}); err != nil {
		t.Fatalf("Expected buy to fill, got %v", err)
	}
	pos, _ := m.GetPosition(ctx, "AAPL")
	if pos == nil || pos.Quantity != 10 {
		t.Fatalf("Expected 10 shares held, got %+v", pos)
	}
	acct, _ := m.GetAccount(ctx)
	if acct.Cash != 9000 {
		t.Errorf("Expected cash 9000, got %.2f", acct.Cash)
	}

	_, err := m.PlaceOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideSell, Quantity: 11})
	if !errors.Is(err, ErrOrderRejected) {
		t.Errorf("Expected oversell rejection, got %v", err)
	}
	if _, err := m.PlaceOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideSell, Quantity: 10}); err != nil {
		t.Fatalf("Expected sell to fill, got %v", err)
	}
	if pos, _ := m.GetPosition(ctx, "AAPL"); pos != nil {
		t.Errorf("Expected position closed, got %+v", pos)
	}
	if got := len(m.Orders()); got != 2 {
		t.Errorf("Expected 2 recorded orders, got %d", got)
	}
}

func TestSyntheticBarsDeterministic(t *testing.T) {
	end := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	a := SyntheticBars("MSFT", 50, end)
	b := SyntheticBars("MSFT", 50, end)
	if len(a) != 50 {
		t.Fatalf("Expected 50 bars, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Expected identical bars at %d", i)
		}
		if a[i].High < a[i].Low {
			t.Errorf("Bar %d high below low", i)
		}
	}
	if !a[len(a)-1].Timestamp.Equal(end) {
		t.Errorf("Expected last bar at %v, got %v", end, a[len(a)-1].Timestamp)
	}
}

func TestExpirationDTE(t *testing.T) {
	now := time.Date(2024, 6, 3, 15, 30, 0, 0, time.UTC)
	e := Expiration{Date: time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC)}
	if got := e.DTE(now); got != 30 {
		t.Errorf("Expected 30 DTE, got %d", got)
	}
}
