package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sliink/tuner/internal/model"
)

// DefaultHistorySize is the number of events the bus retains
const DefaultHistorySize = 1000

// Event represents a system event with metadata
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Type      model.EventType        `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent creates a new event. The data map is copied.
func NewEvent(eventType model.EventType, source string, data map[string]interface{}) Event {
	payload := make(map[string]interface{}, len(data))
	for k, v := range data {
		payload[k] = v
	}
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Data:      payload,
	}
}

// EventHandler receives events it declares it can handle. Handlers are
// compared by identity, so implementations must be comparable (pointers).
type EventHandler interface {
	CanHandle(eventType model.EventType) bool
	Handle(event Event) error
}

// EventCallback is a function that is called when an event occurs
type EventCallback func(Event)

type callbackEntry struct {
	id string
	fn EventCallback
}

// EventBus handles event publication, subscription and history.
//
// Events are delivered one at a time in publish order. The mutex guards
// state only and is released while subscribers run, so a subscriber may
// publish or read history on the same bus. An event published during a
// delivery is queued and delivered by the publisher that is already
// dispatching, after the current event reaches every subscriber.
type EventBus struct {
	handlers    map[model.EventType][]EventHandler
	callbacks   map[model.EventType][]callbackEntry
	history     []Event
	maxHistory  int
	pending     []Event
	dispatching bool
	logger      zerolog.Logger
	mutex       sync.Mutex
	BaseComponent
}

// NewEventBus creates a new event bus with the default history size
func NewEventBus(logger zerolog.Logger) *EventBus {
	return NewEventBusWithHistory(logger, DefaultHistorySize)
}

// NewEventBusWithHistory creates a new event bus retaining up to maxHistory events
func NewEventBusWithHistory(logger zerolog.Logger, maxHistory int) *EventBus {
	if maxHistory <= 0 {
		maxHistory = DefaultHistorySize
	}
	return &EventBus{
		handlers:      make(map[model.EventType][]EventHandler),
		callbacks:     make(map[model.EventType][]callbackEntry),
		history:       make([]Event, 0, maxHistory),
		maxHistory:    maxHistory,
		logger:        logger.With().Str("component", "event_bus").Logger(),
		BaseComponent: NewBaseComponent("event_bus", "Event Bus"),
	}
}

// Initialize prepares the event bus for operation
func (b *EventBus) Initialize() bool {
	b.SetStatus(model.StatusInitialized)
	return true
}

// Start begins event bus operation
func (b *EventBus) Start() bool {
	b.SetStatus(model.StatusRunning)
	return true
}

// Stop halts event bus operation and drops every subscriber
func (b *EventBus) Stop() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.handlers = make(map[model.EventType][]EventHandler)
	b.callbacks = make(map[model.EventType][]callbackEntry)

	b.SetStatus(model.StatusStopped)
	return true
}

// Subscribe registers a handler for an event type. Subscribing the same
// handler twice has no effect.
func (b *EventBus) Subscribe(eventType model.EventType, handler EventHandler) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for _, h := range b.handlers[eventType] {
		if h == handler {
			return
		}
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Unsubscribe removes a handler from an event type
func (b *EventBus) Unsubscribe(eventType model.EventType, handler EventHandler) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	list := b.handlers[eventType]
	for i, h := range list {
		if h == handler {
			b.handlers[eventType] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// SubscribeCallback registers a callback under a listener ID. A second
// subscription with the same ID replaces the function in place.
func (b *EventBus) SubscribeCallback(eventType model.EventType, listenerID string, callback EventCallback) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	list := b.callbacks[eventType]
	for i := range list {
		if list[i].id == listenerID {
			list[i].fn = callback
			return
		}
	}
	b.callbacks[eventType] = append(list, callbackEntry{id: listenerID, fn: callback})
}

// UnsubscribeCallback removes the callback registered under a listener ID
func (b *EventBus) UnsubscribeCallback(eventType model.EventType, listenerID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	list := b.callbacks[eventType]
	for i := range list {
		if list[i].id == listenerID {
			b.callbacks[eventType] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish records the event in history and delivers it to every matching
// handler, then every callback, in subscription order. When no delivery is in
// progress it returns after its event, and any event queued meanwhile, has
// been delivered. Subscriber failures are logged and never reach the publisher.
func (b *EventBus) Publish(event Event) {
	b.mutex.Lock()
	b.recordLocked(event)
	b.pending = append(b.pending, event)
	if b.dispatching {
		b.mutex.Unlock()
		return
	}
	b.dispatching = true

	for len(b.pending) > 0 {
		next := b.pending[0]
		b.pending[0] = Event{}
		b.pending = b.pending[1:]
		handlers, callbacks := b.subscribersLocked(next.Type)
		b.mutex.Unlock()

		b.dispatch(next, handlers, callbacks)

		b.mutex.Lock()
	}
	b.pending = nil
	b.dispatching = false
	b.mutex.Unlock()
}

// recordLocked assumes the lock is held
func (b *EventBus) recordLocked(event Event) {
	if len(b.history) >= b.maxHistory {
		copy(b.history, b.history[1:])
		b.history = b.history[:len(b.history)-1]
	}
	b.history = append(b.history, event)
}

// subscribersLocked assumes the lock is held and returns copies
func (b *EventBus) subscribersLocked(eventType model.EventType) ([]EventHandler, []callbackEntry) {
	handlers := make([]EventHandler, len(b.handlers[eventType]))
	copy(handlers, b.handlers[eventType])
	callbacks := make([]callbackEntry, len(b.callbacks[eventType]))
	copy(callbacks, b.callbacks[eventType])
	return handlers, callbacks
}

func (b *EventBus) dispatch(event Event, handlers []EventHandler, callbacks []callbackEntry) {
	for _, h := range handlers {
		b.deliverHandler(h, event)
	}
	for _, c := range callbacks {
		b.deliverCallback(c, event)
	}
}

func (b *EventBus) deliverHandler(h EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event_type", string(event.Type)).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()

	if !h.CanHandle(event.Type) {
		return
	}
	if err := h.Handle(event); err != nil {
		b.logger.Error().
			Err(err).
			Str("event_type", string(event.Type)).
			Msg("event handler failed")
	}
}

func (b *EventBus) deliverCallback(c callbackEntry, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event_type", string(event.Type)).
				Str("listener", c.id).
				Interface("panic", r).
				Msg("event callback panicked")
		}
	}()

	c.fn(event)
}

// GetHistory returns up to limit of the most recent events, oldest first.
// An empty event type matches every event; a limit of zero or less returns
// everything retained.
func (b *EventBus) GetHistory(eventType model.EventType, limit int) []Event {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	var matched []Event
	if eventType == "" {
		matched = b.history
	} else {
		matched = make([]Event, 0)
		for _, e := range b.history {
			if e.Type == eventType {
				matched = append(matched, e)
			}
		}
	}

	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}

	out := make([]Event, len(matched))
	copy(out, matched)
	return out
}

// ClearHistory drops every retained event
func (b *EventBus) ClearHistory() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.history = make([]Event, 0, b.maxHistory)
}

// GetSubscriberCount returns the number of handlers and callbacks for an event type
func (b *EventBus) GetSubscriberCount(eventType model.EventType) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return len(b.handlers[eventType]) + len(b.callbacks[eventType])
}
