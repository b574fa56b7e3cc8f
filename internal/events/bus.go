package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTradeCreated      EventType = "TRADE_CREATED"
	EventTradeUpdated      EventType = "TRADE_UPDATED"
	EventTradeDeleted      EventType = "TRADE_DELETED"
	EventCashflowCreated   EventType = "CASHFLOW_CREATED"
	EventCashflowUpdated   EventType = "CASHFLOW_UPDATED"
	EventCashflowDeleted   EventType = "CASHFLOW_DELETED"
	EventBindingRequested  EventType = "BINDING_REQUESTED"
	EventBindingResolved   EventType = "BINDING_RESOLVED"
	EventSnapshotRefreshed EventType = "SNAPSHOT_REFRESHED"
	EventPriceCacheCleared EventType = "PRICE_CACHE_CLEARED"
	EventError             EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	UserID    string                 `json:"user_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
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

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishTradeChange publishes a trade create, update or delete event
func (eb *EventBus) PublishTradeChange(eventType EventType, userID, tradeID, asset, category string) {
	eb.Publish(Event{
		Type:   eventType,
		UserID: userID,
		Data: map[string]interface{}{
			"trade_id": tradeID,
			"asset":    asset,
			"category": category,
		},
	})
}

// PublishCashflowChange publishes a cashflow create, update or delete event
func (eb *EventBus) PublishCashflowChange(eventType EventType, userID, cashflowID, flowType string, amount float64) {
	eb.Publish(Event{
		Type:   eventType,
		UserID: userID,
		Data: map[string]interface{}{
			"cashflow_id": cashflowID,
			"flow_type":   flowType,
			"amount":      amount,
		},
	})
}

// PublishBindingRequested publishes a binding request event targeted at the trader
func (eb *EventBus) PublishBindingRequested(traderID, investorID, bindingID string) {
	eb.Publish(Event{
		Type:   EventBindingRequested,
		UserID: traderID,
		Data: map[string]interface{}{
			"binding_id":  bindingID,
			"investor_id": investorID,
		},
	})
}

// PublishBindingResolved publishes the trader's decision back to the investor
func (eb *EventBus) PublishBindingResolved(investorID, bindingID, status string) {
	eb.Publish(Event{
		Type:   EventBindingResolved,
		UserID: investorID,
		Data: map[string]interface{}{
			"binding_id": bindingID,
			"status":     status,
		},
	})
}

// PublishSnapshotRefreshed publishes a completed valuation pass
func (eb *EventBus) PublishSnapshotRefreshed(userID, currency string, grandTotal float64, stale bool) {
	eb.Publish(Event{
		Type:   EventSnapshotRefreshed,
		UserID: userID,
		Data: map[string]interface{}{
			"currency":    currency,
			"grand_total": grandTotal,
			"stale":       stale,
		},
	})
}

// PublishPriceCacheCleared publishes a cache invalidation event
func (eb *EventBus) PublishPriceCacheCleared(userID string) {
	eb.Publish(Event{
		Type:   EventPriceCacheCleared,
		UserID: userID,
		Data:   map[string]interface{}{},
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
