package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventDecision      EventType = "DECISION"
	EventFillApplied   EventType = "FILL_APPLIED"
	EventPositionOpen  EventType = "POSITION_OPENED"
	EventPositionClose EventType = "POSITION_CLOSED"
	EventStopUpdated   EventType = "STOP_UPDATED"
	EventKillSwitch    EventType = "KILL_SWITCH"
	EventCandleStored  EventType = "CANDLE_STORED"
	EventHeartbeat     EventType = "HEARTBEAT"
	EventError         EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
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
		event.Timestamp = time.Now().UTC()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishDecision publishes the outcome of a poll cycle
func (eb *EventBus) PublishDecision(machineID, symbol, signal string, stopPrice float64, reason string, meta map[string]interface{}) {
	eb.Publish(Event{
		Type: EventDecision,
		Data: map[string]interface{}{
			"machine_id": machineID,
			"symbol":     symbol,
			"signal":     signal,
			"stop_price": stopPrice,
			"reason":     reason,
			"meta":       meta,
		},
	})
}

// PublishFillApplied publishes a processed execution report
func (eb *EventBus) PublishFillApplied(machineID, symbol, side string, qty, price float64) {
	eb.Publish(Event{
		Type: EventFillApplied,
		Data: map[string]interface{}{
			"machine_id": machineID,
			"symbol":     symbol,
			"side":       side,
			"qty":        qty,
			"price":      price,
		},
	})
}

// PublishPositionOpened publishes an entry-confirming fill
func (eb *EventBus) PublishPositionOpened(machineID, symbol, side string, qty, price, stopPrice float64) {
	eb.Publish(Event{
		Type: EventPositionOpen,
		Data: map[string]interface{}{
			"machine_id": machineID,
			"symbol":     symbol,
			"side":       side,
			"qty":        qty,
			"price":      price,
			"stop_price": stopPrice,
		},
	})
}

// PublishPositionClosed publishes a realized close with its P&L
func (eb *EventBus) PublishPositionClosed(machineID, symbol, side string, entryPrice, exitPrice, qty, pnlUSD float64) {
	eb.Publish(Event{
		Type: EventPositionClose,
		Data: map[string]interface{}{
			"machine_id":  machineID,
			"symbol":      symbol,
			"side":        side,
			"entry_price": entryPrice,
			"exit_price":  exitPrice,
			"qty":         qty,
			"pnl_usd":     pnlUSD,
		},
	})
}

// PublishStopUpdated publishes a trailing-stop tighten
func (eb *EventBus) PublishStopUpdated(machineID, symbol string, oldStop, newStop float64, reason string) {
	eb.Publish(Event{
		Type: EventStopUpdated,
		Data: map[string]interface{}{
			"machine_id": machineID,
			"symbol":     symbol,
			"old_stop":   oldStop,
			"new_stop":   newStop,
			"reason":     reason,
		},
	})
}

// PublishKillSwitch publishes a risk-halt trip or reset
func (eb *EventBus) PublishKillSwitch(machineID, cause string, engaged bool) {
	eb.Publish(Event{
		Type: EventKillSwitch,
		Data: map[string]interface{}{
			"machine_id": machineID,
			"cause":      cause,
			"engaged":    engaged,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
