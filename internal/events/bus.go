// Package events is the in-process event bus that carries workflow activity to
// subscribers such as the websocket hub.
package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventStateChanged         EventType = "STATE_CHANGED"
	EventScanCompleted        EventType = "SCAN_COMPLETED"
	EventSignalGenerated      EventType = "SIGNAL_GENERATED"
	EventTradeRejected        EventType = "TRADE_REJECTED"
	EventTradeExecuted        EventType = "TRADE_EXECUTED"
	EventPositionClosed       EventType = "POSITION_CLOSED"
	EventPositionAlert        EventType = "POSITION_ALERT"
	EventCircuitBreakerUpdate EventType = "CIRCUIT_BREAKER_UPDATE"
	EventTradingPaused        EventType = "TRADING_PAUSED"
	EventTradingResumed       EventType = "TRADING_RESUMED"
	EventError                EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions. Subscribers run on their own
// goroutine and must not assume ordering across events.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
	now         func() time.Time
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		now:         time.Now,
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = eb.now()
	}

	for _, sub := range eb.subscribers[event.Type] {
		go sub(event)
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishStateChange publishes a workflow state transition
func (eb *EventBus) PublishStateChange(runID, from, to string) {
	eb.Publish(Event{
		Type:  EventStateChanged,
		RunID: runID,
		Data:  map[string]interface{}{"from": from, "to": to},
	})
}

// PublishTrade publishes an executed trade
func (eb *EventBus) PublishTrade(runID, symbol, instrument, side string, quantity, price float64) {
	eb.Publish(Event{
		Type:  EventTradeExecuted,
		RunID: runID,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"instrument": instrument,
			"side":       side,
			"quantity":   quantity,
			"price":      price,
		},
	})
}

// PublishRejection publishes a risk rejection
func (eb *EventBus) PublishRejection(runID, symbol, reason string) {
	eb.Publish(Event{
		Type:  EventTradeRejected,
		RunID: runID,
		Data:  map[string]interface{}{"symbol": symbol, "reason": reason},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(runID, source string, err error) {
	data := map[string]interface{}{"source": source}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{Type: EventError, RunID: runID, Data: data})
}
