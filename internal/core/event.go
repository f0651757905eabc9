package core

import (
	"sort"
	"sync"
	"time"

	"github.com/sliink/mensura/internal/model"
)

// Event represents a system event with metadata
type Event struct {
	Type      model.EventType
	SourceID  string
	Data      interface{}
	Timestamp time.Time
}

// NewEvent creates a new event
func NewEvent(eventType model.EventType, sourceID string, data interface{}) Event {
	return Event{
		Type:      eventType,
		SourceID:  sourceID,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// EventCallback is a function that is called when an event occurs.
// Callbacks run on the publishing goroutine and must be safe for concurrent use.
type EventCallback func(Event)

// EventBus handles event publication and subscription
type EventBus struct {
	subscribers map[model.EventType]map[string]EventCallback
	mutex       sync.RWMutex
	BaseComponent
}

// NewEventBus creates a running event bus
func NewEventBus() *EventBus {
	b := &EventBus{
		subscribers:   make(map[model.EventType]map[string]EventCallback),
		BaseComponent: NewBaseComponent("event_bus", "Event Bus"),
	}
	b.SetStatus(model.StatusRunning)
	return b
}

// Stop removes all subscribers and stops delivery
func (b *EventBus) Stop() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.subscribers = make(map[model.EventType]map[string]EventCallback)
	b.SetStatus(model.StatusStopped)
}

// Subscribe registers a callback for a specific event type
func (b *EventBus) Subscribe(eventType model.EventType, listenerID string, callback EventCallback) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[string]EventCallback)
	}

	b.subscribers[eventType][listenerID] = callback
}

// SubscribeAll registers the same callback for several event types
func (b *EventBus) SubscribeAll(listenerID string, callback EventCallback, eventTypes ...model.EventType) {
	for _, eventType := range eventTypes {
		b.Subscribe(eventType, listenerID, callback)
	}
}

// Unsubscribe removes a subscriber from a specific event type
func (b *EventBus) Unsubscribe(eventType model.EventType, listenerID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.subscribers[eventType] != nil {
		delete(b.subscribers[eventType], listenerID)
	}
}

// Publish delivers an event to all subscribers in listener ID order
func (b *EventBus) Publish(event Event) {
	if b == nil {
		return
	}

	b.mutex.RLock()
	if b.GetStatus() != model.StatusRunning {
		b.mutex.RUnlock()
		return
	}

	subscribers := b.subscribers[event.Type]
	ids := make([]string, 0, len(subscribers))
	for id := range subscribers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	callbacks := make([]EventCallback, 0, len(ids))
	for _, id := range ids {
		callbacks = append(callbacks, subscribers[id])
	}
	b.mutex.RUnlock()

	// Call the callbacks outside the lock
	for _, callback := range callbacks {
		callback(event)
	}
}
