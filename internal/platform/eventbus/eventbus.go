// Package eventbus dispatches change-feed events to the modules subscribed to them.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/rai/storefront-triggers/modules/shared/events"
)

// InMemoryEventBus delivers each published event to every handler registered for its type.
// Handlers run concurrently and independently. A failing handler never prevents or
// aborts its siblings, and failures are logged once per event.
type InMemoryEventBus struct {
	registry HandlerRegistry
	logger   *slog.Logger
}

func New(registry HandlerRegistry, logger *slog.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventBus{
		registry: registry,
		logger:   logger,
	}
}

// Publish implements events.Publisher.
// It blocks until every handler has returned and always reports success to the caller.
func (b *InMemoryEventBus) Publish(ctx context.Context, event events.Event) error {
	handlers := b.registry.HandlersFor(event.EventType())

	b.logger.Debug("publishing event", slog.String("event_type", event.EventType().String()), slog.String("event_id", event.EventID()), slog.Int("handler_count", len(handlers)))

	var failed atomic.Int32
	var g errgroup.Group
	for _, handler := range handlers {
		g.Go(func() error {
			if err := handler.Handle(ctx, event); err != nil {
				failed.Add(1)
				return fmt.Errorf("%T: %w", handler, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		b.logger.Error("event handler failed",
			slog.String("event_type", event.EventType().String()),
			slog.String("event_id", event.EventID()),
			slog.Int("failed_handlers", int(failed.Load())),
			slog.Any("error", err),
		)
	}

	return nil
}

// HandlerFunc is an adapter to use ordinary functions as event handlers.
type HandlerFunc func(ctx context.Context, event events.Event) error

func (f HandlerFunc) Handle(ctx context.Context, event events.Event) error {
	return f(ctx, event)
}

// Compile-time interface checks.
var (
	_ events.Publisher = (*InMemoryEventBus)(nil)
	_ events.Handler   = HandlerFunc(nil)
)
