// Package eventhandlers reacts to order events with customer notifications.
package eventhandlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/rai/storefront-triggers/internal/platform/tracing"
	"github.com/rai/storefront-triggers/modules/notifications/domain"
	"github.com/rai/storefront-triggers/modules/shared/events"
	"github.com/rai/storefront-triggers/modules/shared/events/contracts"
)

// OrderCreatedHandler sends the order confirmation email.
//
// It performs an external side effect and MUST NOT run within a database
// transaction. Each step's failure is logged and the event is dropped; at most
// one send is attempted per delivery. When a claimer is configured, repeated
// deliveries of the same order are skipped.
type OrderCreatedHandler struct {
	resolver *domain.RecipientResolver
	renderer domain.Renderer
	mailer   domain.Mailer
	claimer  domain.DeliveryClaimer
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewOrderCreatedHandler creates the handler. claimer may be nil.
func NewOrderCreatedHandler(resolver *domain.RecipientResolver, renderer domain.Renderer, mailer domain.Mailer, claimer domain.DeliveryClaimer, logger *slog.Logger) *OrderCreatedHandler {
	return &OrderCreatedHandler{
		resolver: resolver,
		renderer: renderer,
		mailer:   mailer,
		claimer:  claimer,
		logger:   logger,
		tracer:   tracing.Tracer("notifications"),
	}
}

func (h *OrderCreatedHandler) Handle(ctx context.Context, event events.Event) error {
	orderCreated, ok := event.(contracts.OrderCreatedEvent)
	if !ok {
		return fmt.Errorf("%w: %T", contracts.ErrUnexpectedEventType, event)
	}

	ctx, span := h.tracer.Start(ctx, "notifications.SendOrderConfirmation",
		trace.WithAttributes(tracing.EventAttributes(event.EventID(), event.EventType().String(), event.AggregateID())...))

	err := h.notify(ctx, orderCreated)
	logger := h.logger.With(slog.String("order_id", orderCreated.OrderID))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrMissingOrderData), errors.Is(err, errDuplicate):
		logger.Info("order confirmation skipped", slog.Any("reason", err))
		err = nil
	default:
		logger.Error("order confirmation not sent", slog.Any("error", err))
	}
	tracing.EndSpan(span, err)
	return nil
}

var errDuplicate = errors.New("confirmation already sent for this order")

func (h *OrderCreatedHandler) notify(ctx context.Context, event contracts.OrderCreatedEvent) error {
	order := event.Order
	if order == nil {
		return domain.ErrMissingOrderData
	}

	to, err := h.resolver.Resolve(ctx, order.UserID)
	if err != nil {
		return err
	}

	msg, err := h.renderer.Render(toConfirmation(event.OrderID, order))
	if err != nil {
		return err
	}
	msg.To = to

	if h.claimer != nil {
		first, err := h.claimer.Claim(ctx, domain.DeliveryKey(event.OrderID, event.EventID()))
		switch {
		case err != nil:
			h.logger.Warn("delivery claim unavailable, sending anyway",
				slog.String("order_id", event.OrderID), slog.Any("error", err))
		case !first:
			return errDuplicate
		}
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}

	h.logger.Info("order confirmation sent",
		slog.String("order_id", event.OrderID),
		slog.String("to", to),
		slog.String("subject", msg.Subject),
	)
	return nil
}

func toConfirmation(orderID string, order *contracts.Order) domain.Confirmation {
	c := domain.Confirmation{
		OrderID:  orderID,
		PlacedAt: order.CreatedAt,
		Total:    order.TotalAmount,
	}
	if addr := order.ShippingAddress; addr != nil {
		c.CustomerName = addr.Name
		c.Phone = addr.Phone
		c.Address = addr.Address
	}
	for _, item := range order.Items {
		c.Lines = append(c.Lines, domain.ConfirmationLine{
			Name:      domain.LineName(item.ProductID, item.Name),
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			LineTotal: item.LineTotal(),
		})
	}
	return c
}
