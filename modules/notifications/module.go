// Package notifications sends customer-facing messages in response to store events.
package notifications

import (
	"log/slog"

	"github.com/rai/storefront-triggers/modules/notifications/application/eventhandlers"
	"github.com/rai/storefront-triggers/modules/notifications/domain"
	"github.com/rai/storefront-triggers/modules/shared/events"
	"github.com/rai/storefront-triggers/modules/shared/events/contracts"
)

// Module represents the notification module entry point.
type Module struct{}

type Config struct {
	// EmailLookups are consulted in order: identity provider first, then the profile store.
	EmailLookups []domain.EmailLookup
	Renderer     domain.Renderer
	Mailer       domain.Mailer
	// DeliveryClaimer is optional; without it redelivered orders are emailed again.
	DeliveryClaimer domain.DeliveryClaimer
	// ProfileRecorder is optional; when set, user-created events fill it.
	ProfileRecorder domain.ProfileRecorder
	EventSubscriber events.Subscriber
	Logger          *slog.Logger
}

// New initializes the notification module and subscribes to events.
func New(cfg Config) *Module {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("module", "notifications")

	orderCreatedHandler := eventhandlers.NewOrderCreatedHandler(
		domain.NewRecipientResolver(cfg.EmailLookups...),
		cfg.Renderer,
		cfg.Mailer,
		cfg.DeliveryClaimer,
		logger,
	)

	if err := cfg.EventSubscriber.Subscribe(contracts.OrderCreatedEventType, orderCreatedHandler); err != nil {
		logger.Error("failed to subscribe to order created event", slog.Any("error", err))
	}

	if cfg.ProfileRecorder != nil {
		userCreatedHandler := eventhandlers.NewUserCreatedHandler(cfg.ProfileRecorder, logger)
		if err := cfg.EventSubscriber.Subscribe(contracts.UserCreatedEventType, userCreatedHandler); err != nil {
			logger.Error("failed to subscribe to user created event", slog.Any("error", err))
		}
	}

	return &Module{}
}
