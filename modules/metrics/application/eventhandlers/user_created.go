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

// UserCreatedHandler counts a new registration in the global and today's aggregates.
type UserCreatedHandler struct {
	aggregator *Aggregator
	location   *time.Location
	now        func() time.Time
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewUserCreatedHandler(aggregator *Aggregator, location *time.Location, now func() time.Time, logger *slog.Logger) *UserCreatedHandler {
	return &UserCreatedHandler{
		aggregator: aggregator,
		location:   location,
		now:        now,
		logger:     logger,
		tracer:     tracing.Tracer("metrics"),
	}
}

func (h *UserCreatedHandler) Handle(ctx context.Context, event events.Event) error {
	userCreated, ok := event.(contracts.UserCreatedEvent)
	if !ok {
		return fmt.Errorf("%w: %T", contracts.ErrUnexpectedEventType, event)
	}

	ctx, span := h.tracer.Start(ctx, "metrics.AggregateUser",
		trace.WithAttributes(tracing.EventAttributes(event.EventID(), event.EventType().String(), event.AggregateID())...))
	var spanErr error
	defer func() { tracing.EndSpan(span, spanErr) }()

	now := h.now().UTC()
	plan := domain.PlanUser(userCreated.UserID, event.EventID(), now, h.location)
	applied, err := h.aggregator.Apply(ctx, plan, now)
	if err != nil {
		spanErr = err
		h.logger.Error("failed to aggregate user",
			slog.String("user_id", userCreated.UserID),
			slog.Any("error", err),
		)
		return nil
	}
	if !applied {
		h.logger.Info("user already aggregated, skipping", slog.String("user_id", userCreated.UserID))
		return nil
	}

	h.logger.Info("aggregated new user", slog.String("user_id", userCreated.UserID), slog.String("day", plan.Daily.Bucket.Key))
	return nil
}
