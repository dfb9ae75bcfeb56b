package events

import (
	"errors"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
		return Event{}
	}
}

func TestSubscribeByType(t *testing.T) {
	bus := NewEventBus()
	trades := make(chan Event, 4)
	all := make(chan Event, 4)
	bus.Subscribe(EventTradeExecuted, func(e Event) { trades <- e })
	bus.SubscribeAll(func(e Event) { all <- e })

	bus.PublishTrade("run-1", "AAPL", "stock", "buy", 28, 100)
	bus.PublishRejection("run-1", "MSFT", "max positions reached")

	e := receive(t, trades)
	if e.Data["symbol"] != "AAPL" || e.RunID != "run-1" {
		t.Errorf("Expected AAPL trade for run-1, got %+v", e)
	}
	if e.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}

	seen := map[EventType]bool{}
	seen[receive(t, all).Type] = true
	seen[receive(t, all).Type] = true
	if !seen[EventTradeExecuted] || !seen[EventTradeRejected] {
		t.Errorf("Expected both events on the all-subscriber, got %v", seen)
	}

	select {
	case e := <-trades:
		t.Errorf("Expected no rejection on trade subscriber, got %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishError(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 1)
	bus.Subscribe(EventError, func(e Event) { ch <- e })

	bus.PublishError("run-2", "scan", errors.New("boom"))
	e := receive(t, ch)
	if e.Data["error"] != "boom" || e.Data["source"] != "scan" {
		t.Errorf("Expected scan/boom, got %+v", e.Data)
	}
}
