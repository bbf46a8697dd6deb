package eventhandlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/rai/storefront-triggers/internal/platform/tracing"
	"github.com/rai/storefront-triggers/modules/metrics/domain"
	"github.com/rai/storefront-triggers/modules/shared/events"
	"github.com/rai/storefront-triggers/modules/shared/events/contracts"
)

// OrderCreatedHandler adds a created order to the global, daily and product aggregates.
// Failures are logged and never returned; the event is not retried.
type OrderCreatedHandler struct {
	aggregator *Aggregator
	location   *time.Location
	now        func() time.Time
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewOrderCreatedHandler(aggregator *Aggregator, location *time.Location, now func() time.Time, logger *slog.Logger) *OrderCreatedHandler {
	return &OrderCreatedHandler{
		aggregator: aggregator,
		location:   location,
		now:        now,
		logger:     logger,
		tracer:     tracing.Tracer("metrics"),
	}
}

func (h *OrderCreatedHandler) Handle(ctx context.Context, event events.Event) error {
	orderCreated, ok := event.(contracts.OrderCreatedEvent)
	if !ok {
		return fmt.Errorf("%w: %T", contracts.ErrUnexpectedEventType, event)
	}

	ctx, span := h.tracer.Start(ctx, "metrics.AggregateOrder",
		trace.WithAttributes(tracing.EventAttributes(event.EventID(), event.EventType().String(), event.AggregateID())...))
	var spanErr error
	defer func() { tracing.EndSpan(span, spanErr) }()

	if orderCreated.Order == nil {
		h.logger.Info("order created without document, skipping aggregation", slog.String("order_id", orderCreated.OrderID))
		return nil
	}

	plan := domain.PlanOrder(toPlacedOrder(orderCreated), h.location)
	applied, err := h.aggregator.Apply(ctx, plan, h.now().UTC())
	if err != nil {
		spanErr = err
		h.logger.Error("failed to aggregate order",
			slog.String("order_id", orderCreated.OrderID),
			slog.Any("error", err),
		)
		return nil
	}
	if !applied {
		h.logger.Info("order already aggregated, skipping", slog.String("order_id", orderCreated.OrderID))
		return nil
	}

	h.logger.Info("aggregated order",
		slog.String("order_id", orderCreated.OrderID),
		slog.String("day", plan.Daily.Bucket.Key),
		slog.String("revenue", plan.Global.Revenue.String()),
		slog.Int("products", len(plan.Sales)),
	)
	return nil
}

func toPlacedOrder(event contracts.OrderCreatedEvent) domain.PlacedOrder {
	order := event.Order
	items := make([]domain.LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, domain.LineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
		})
	}
	return domain.PlacedOrder{
		ID:        event.OrderID,
		EventID:   event.EventID(),
		Total:     order.TotalAmount,
		CreatedAt: order.CreatedAt,
		Items:     items,
	}
}
