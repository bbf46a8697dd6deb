package eventbus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rai/storefront-triggers/modules/shared/events"
)

// ErrNilHandler is returned when subscribing a nil handler.
var ErrNilHandler = errors.New("nil event handler")

// HandlerRegistry provides access to registered event handlers.
type HandlerRegistry interface {
	// HandlersFor returns all handlers registered for the given event type.
	HandlersFor(eventType events.EventType) []events.Handler
}

// EventHandlerRegistry manages event handler subscriptions.
// It implements both events.Subscriber (for registering handlers) and
// HandlerRegistry (for retrieving handlers by event type).
//
// Modules subscribe during startup; the Kafka consumer publishes through
// InMemoryEventBus, which reads handlers from here.
type EventHandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[events.EventType][]events.Handler
	logger   *slog.Logger
}

// NewEventHandlerRegistry creates a new registry for event handlers.
func NewEventHandlerRegistry(logger *slog.Logger) *EventHandlerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandlerRegistry{
		handlers: make(map[events.EventType][]events.Handler),
		logger:   logger,
	}
}

// Subscribe implements events.Subscriber.
// It should be called once per event type per module at initialization.
// A nil handler is rejected.
func (r *EventHandlerRegistry) Subscribe(eventType events.EventType, handler events.Handler) error {
	if handler == nil {
		return fmt.Errorf("%w: %s", ErrNilHandler, eventType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[eventType] = append(r.handlers[eventType], handler)
	r.logger.Debug("subscribed to event", slog.String("event_type", eventType.String()))

	return nil
}

// HandlersFor implements HandlerRegistry.
// Returns a copy of the handlers slice to avoid race conditions.
func (r *EventHandlerRegistry) HandlersFor(eventType events.EventType) []events.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := r.handlers[eventType]
	result := make([]events.Handler, len(handlers))
	copy(result, handlers)
	return result
}

// EventTypes returns the event types that have at least one subscriber.
func (r *EventHandlerRegistry) EventTypes() []events.EventType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]events.EventType, 0, len(r.handlers))
	for eventType := range r.handlers {
		types = append(types, eventType)
	}
	return types
}

// Compile-time interface checks.
var (
	_ events.Subscriber = (*EventHandlerRegistry)(nil)
	_ HandlerRegistry   = (*EventHandlerRegistry)(nil)
)
