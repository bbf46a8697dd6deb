// Package metrics maintains the dashboard aggregates.
// This is the public API for the metrics bounded context.
package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rai/storefront-triggers/modules/metrics/application/eventhandlers"
	"github.com/rai/storefront-triggers/modules/metrics/application/queries"
	"github.com/rai/storefront-triggers/modules/metrics/domain"
	httphandler "github.com/rai/storefront-triggers/modules/metrics/infrastructure/http"
	"github.com/rai/storefront-triggers/modules/shared/events"
	"github.com/rai/storefront-triggers/modules/shared/events/contracts"
	"github.com/rai/storefront-triggers/modules/shared/transaction"
)

// Module is the public API for the metrics bounded context.
// External communication: HTTP API (RegisterRoutes)
// Cross-module communication: Domain Events (subscribed internally)
type Module interface {
	// RegisterRoutes registers the dashboard read routes to the given mux.
	RegisterRoutes(mux *http.ServeMux)
}

// Config holds the module configuration.
type Config struct {
	TransactionScope transaction.Scope
	Repository       domain.AggregateRepository
	Reader           domain.MetricsReader
	EventSubscriber  events.Subscriber
	// Location is the time zone of the daily buckets. Defaults to UTC.
	Location *time.Location
	// Dedupe suppresses repeated deliveries of the same document.
	Dedupe bool
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

type module struct {
	getGlobal       *queries.GetGlobalMetricsHandler
	getDaily        *queries.GetDailyStatsHandler
	listDaily       *queries.ListDailyStatsHandler
	getProductSales *queries.GetProductSalesHandler
}

// New creates the metrics module and subscribes its aggregators.
func New(cfg Config) Module {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("module", "metrics")

	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	aggregator := eventhandlers.NewAggregator(cfg.TransactionScope, cfg.Repository, cfg.Dedupe)

	if cfg.EventSubscriber != nil {
		orderCreatedHandler := eventhandlers.NewOrderCreatedHandler(aggregator, location, now, logger)
		if err := cfg.EventSubscriber.Subscribe(contracts.OrderCreatedEventType, orderCreatedHandler); err != nil {
			logger.Error("failed to subscribe to order created event", slog.Any("error", err))
		}

		userCreatedHandler := eventhandlers.NewUserCreatedHandler(aggregator, location, now, logger)
		if err := cfg.EventSubscriber.Subscribe(contracts.UserCreatedEventType, userCreatedHandler); err != nil {
			logger.Error("failed to subscribe to user created event", slog.Any("error", err))
		}
	}

	return &module{
		getGlobal:       queries.NewGetGlobalMetricsHandler(cfg.Reader),
		getDaily:        queries.NewGetDailyStatsHandler(cfg.Reader),
		listDaily:       queries.NewListDailyStatsHandler(cfg.Reader),
		getProductSales: queries.NewGetProductSalesHandler(cfg.Reader),
	}
}

func (m *module) RegisterRoutes(mux *http.ServeMux) {
	httphandler.RegisterRoutes(mux, m.getGlobal, m.getDaily, m.listDaily, m.getProductSales)
}
