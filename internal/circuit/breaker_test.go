package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/order"
	"equities-trading-bot/internal/state"
)

type failingTrades struct{}

func (failingTrades) TradesSince(ctx context.Context, since time.Time) ([]order.Trade, error) {
	return nil, errors.New("db down")
}

var testNow = time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)

func newTestBreaker(trades TradeSource, store state.Store) *CircuitBreaker {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{Enabled: true, DailyLossLimit: 1000, Timezone: "UTC"}, trades, store, zerolog.Nop())
	cb.now = func() time.Time { return testNow }
	return cb
}

func record(log *order.MemoryTradeLog, symbol string, side broker.OrderSide, value float64, at time.Time) {
	log.RecordTrade(context.Background(), order.Trade{Symbol: symbol, Side: side, Value: value, ExecutedAt: at})
}

func TestRealizedLossTripsBreaker(t *testing.T) {
	log := order.NewMemoryTradeLog()
	record(log, "AAPL", broker.SideBuy, 10000, testNow.Add(-3*time.Hour))
	record(log, "AAPL", broker.SideSell, 8800, testNow.Add(-time.Hour))

	store := state.NewMemoryStore()
	cb := newTestBreaker(log, store)

	var tripped *Status
	cb.OnTrip(func(s Status) { tripped = &s })

	status, err := cb.Check(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !status.Triggered || status.DailyLoss != 1200 {
		t.Errorf("Expected triggered with daily loss 1200, got %v / %.2f", status.Triggered, status.DailyLoss)
	}
	if tripped == nil {
		t.Error("Expected trip callback")
	}
	if v, _ := state.GetBool(context.Background(), store, state.KeyCircuitBreakerTriggered); !v {
		t.Error("Expected triggered flag to be persisted")
	}
}

func TestUnrealizedLossIgnored(t *testing.T) {
	log := order.NewMemoryTradeLog()
	record(log, "TSLA", broker.SideBuy, 20000, testNow.Add(-time.Hour))

	cb := newTestBreaker(log, nil)
	status, err := cb.Check(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if status.Triggered || status.DailyLoss != 0 {
		t.Errorf("Expected not triggered with daily loss 0, got %v / %.2f", status.Triggered, status.DailyLoss)
	}
}

func TestYesterdayTradesIgnored(t *testing.T) {
	log := order.NewMemoryTradeLog()
	record(log, "AAPL", broker.SideBuy, 10000, testNow.Add(-30*time.Hour))
	record(log, "AAPL", broker.SideSell, 5000, testNow.Add(-26*time.Hour))

	status, _ := newTestBreaker(log, nil).Check(context.Background())
	if status.Triggered {
		t.Error("Expected previous day's loss to be ignored")
	}
}

func TestBreakerLatchesUntilReset(t *testing.T) {
	log := order.NewMemoryTradeLog()
	record(log, "AAPL", broker.SideBuy, 10000, testNow.Add(-3*time.Hour))
	record(log, "AAPL", broker.SideSell, 8800, testNow.Add(-2*time.Hour))
	cb := newTestBreaker(log, state.NewMemoryStore())
	cb.Check(context.Background())

	// a winning trade brings the day back to profit but the latch holds
	record(log, "MSFT", broker.SideBuy, 1000, testNow.Add(-time.Hour))
	record(log, "MSFT", broker.SideSell, 3000, testNow.Add(-30*time.Minute))
	status, _ := cb.Check(context.Background())
	if !status.Triggered {
		t.Error("Expected breaker to stay latched")
	}
	if status.DailyLoss != -800 {
		t.Errorf("Expected daily loss -800, got %.2f", status.DailyLoss)
	}

	if err := cb.Reset(context.Background()); err != nil {
		t.Fatalf("Unexpected reset error: %v", err)
	}
	if cb.IsTriggered() {
		t.Error("Expected breaker cleared after reset")
	}
}

func TestRestoreOnlyForSameTradingDay(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	state.SetBool(ctx, store, state.KeyCircuitBreakerTriggered, true)
	state.SetFloat(ctx, store, state.KeyCircuitBreakerDailyLoss, 1500)
	store.Set(ctx, state.KeyCircuitBreakerDate, "2024-06-03")

	cb := newTestBreaker(order.NewMemoryTradeLog(), store)
	if err := cb.Restore(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !cb.IsTriggered() || cb.Status().DailyLoss != 1500 {
		t.Errorf("Expected restored trip with loss 1500, got %+v", cb.Status())
	}

	store.Set(ctx, state.KeyCircuitBreakerDate, "2024-05-31")
	stale := newTestBreaker(order.NewMemoryTradeLog(), store)
	stale.Restore(ctx)
	if stale.IsTriggered() {
		t.Error("Expected stale trip to be ignored")
	}
}

func TestCheckErrorKeepsState(t *testing.T) {
	cb := newTestBreaker(failingTrades{}, nil)
	if _, err := cb.Check(context.Background()); err == nil {
		t.Error("Expected error from trade source")
	}
	if cb.IsTriggered() {
		t.Error("Expected breaker to remain closed")
	}
}

// acceptedGateway acknowledges market orders without a fill price
type acceptedGateway struct {
	*broker.MockGateway
}

func (g acceptedGateway) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	res, err := g.MockGateway.PlaceOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	res.Status = "accepted"
	res.FilledAvgPrice = 0
	return res, nil
}

func TestUnfilledBuyStillTripsOnRealizedLoss(t *testing.T) {
	ctx := context.Background()
	mock := broker.NewMockGateway(broker.MockOptions{StartingCash: 50000})
	mock.SetQuote(broker.Quote{Symbol: "AAPL", Last: 100})
	log := order.NewMemoryTradeLog()
	exec := order.NewExecutor(acceptedGateway{mock}, log, nil, zerolog.Nop())

	if _, err := exec.ExecuteStock(ctx, order.StockOrder{Symbol: "AAPL", Side: broker.SideBuy, Quantity: 10, ReferencePrice: 100}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	mock.SetQuote(broker.Quote{Symbol: "AAPL", Last: 80})
	if _, err := exec.ClosePosition(ctx, "AAPL", "stop loss"); err != nil {
		t.Fatalf("Unexpected close error: %v", err)
	}

	cb := NewCircuitBreaker(&CircuitBreakerConfig{Enabled: true, DailyLossLimit: 150, Timezone: "UTC"}, log, state.NewMemoryStore(), zerolog.Nop())
	status, err := cb.Check(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if status.DailyLoss != 200 {
		t.Errorf("Expected daily loss 200, got %.2f", status.DailyLoss)
	}
	if !status.Triggered {
		t.Error("Expected breaker to trip on the realized loss")
	}
}
