// Package main is the entry point of the storefront triggers service.
// It consumes the order and user change feeds, dispatches them to the
// metrics and notifications modules, and serves the dashboard API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rai/storefront-triggers/internal/platform/config"
	"github.com/rai/storefront-triggers/internal/platform/eventbus"
	"github.com/rai/storefront-triggers/internal/platform/firebase"
	"github.com/rai/storefront-triggers/internal/platform/httpserver"
	"github.com/rai/storefront-triggers/internal/platform/kafka"
	"github.com/rai/storefront-triggers/internal/platform/mail"
	"github.com/rai/storefront-triggers/internal/platform/postgres"
	"github.com/rai/storefront-triggers/internal/platform/redis"
	"github.com/rai/storefront-triggers/internal/platform/spanner"
	"github.com/rai/storefront-triggers/modules/metrics"
	metricsdomain "github.com/rai/storefront-triggers/modules/metrics/domain"
	metricspersistence "github.com/rai/storefront-triggers/modules/metrics/infrastructure/persistence"
	"github.com/rai/storefront-triggers/modules/notifications"
	notificationsdomain "github.com/rai/storefront-triggers/modules/notifications/domain"
	"github.com/rai/storefront-triggers/modules/notifications/infrastructure/email"
	notificationspersistence "github.com/rai/storefront-triggers/modules/notifications/infrastructure/persistence"
	"github.com/rai/storefront-triggers/modules/shared/events/contracts"
	"github.com/rai/storefront-triggers/modules/shared/transaction"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize logger
	level, _ := cfg.LogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting storefront triggers", slog.String("store", cfg.Store.Driver))

	location, err := cfg.Location()
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	lookups, err := emailLookups(ctx, cfg, st.profiles)
	if err != nil {
		return err
	}

	sender, err := mail.NewSMTPSender(mail.Config{
		Host:        cfg.Mail.Host,
		Port:        cfg.Mail.Port,
		Username:    cfg.Mail.Username,
		Password:    cfg.Mail.Password,
		FromAddress: cfg.Mail.FromAddress,
		FromName:    cfg.Mail.FromName,
	})
	if err != nil {
		return err
	}

	var claimer notificationsdomain.DeliveryClaimer
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()
		claimer = redis.NewClaimStore(rdb, "notify:", cfg.Redis.NotifyTTL)
		logger.Info("notification dedupe enabled", slog.String("redis", cfg.Redis.Addr))
	}

	// Modules subscribe to the registry; the consumers publish through the bus.
	registry := eventbus.NewEventHandlerRegistry(logger)
	bus := eventbus.New(registry, logger)

	metricsModule := metrics.New(metrics.Config{
		TransactionScope: st.scope,
		Repository:       st.aggregates,
		Reader:           st.reader,
		EventSubscriber:  registry,
		Location:         location,
		Dedupe:           cfg.Metrics.Dedupe,
		Logger:           logger,
	})

	_ = notifications.New(notifications.Config{
		EmailLookups:    lookups,
		Renderer:        email.NewTemplateRenderer(email.StoreFront{Name: cfg.StoreFront.Name, OrderURL: cfg.StoreFront.OrderURL}, location, time.Now),
		Mailer:          email.NewMailer(sender),
		DeliveryClaimer: claimer,
		ProfileRecorder: st.recorder,
		EventSubscriber: registry,
		Logger:          logger,
	})

	for _, eventType := range registry.EventTypes() {
		logger.Info("event subscribed", slog.String("event_type", eventType.String()), slog.Int("handlers", len(registry.HandlersFor(eventType))))
	}

	consumers := []*kafka.Consumer{
		newConsumer(cfg, logger, cfg.Kafka.OrderTopic, contracts.DecodeOrderCreated, bus),
		newConsumer(cfg, logger, cfg.Kafka.UserTopic, contracts.DecodeUserCreated, bus),
	}

	router := buildRouter(metricsModule)
	handler := httpserver.Middleware(router, httpserver.Recovery(logger), httpserver.Logging(logger))
	server := httpserver.New(httpserver.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handler, logger)

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range consumers {
		g.Go(func() error { return c.Run(ctx) })
	}
	g.Go(func() error { return server.Run(ctx) })

	return g.Wait()
}

func newConsumer(cfg *config.Config, logger *slog.Logger, topic string, decode contracts.Decoder, bus *eventbus.InMemoryEventBus) *kafka.Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   topic,
		GroupID: cfg.Kafka.GroupFor(topic),
	})
	return kafka.NewConsumer(logger, reader, topic, decode, bus)
}

// stores bundles the storage backends selected by store.driver.
type stores struct {
	scope      transaction.Scope
	aggregates metricsdomain.AggregateRepository
	reader     metricsdomain.MetricsReader
	profiles   notificationsdomain.EmailLookup
	recorder   notificationsdomain.ProfileRecorder
	close      func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.DriverSpanner:
		spannerCfg := spanner.Config{
			ProjectID:  cfg.Spanner.ProjectID,
			InstanceID: cfg.Spanner.InstanceID,
			DatabaseID: cfg.Spanner.DatabaseID,
		}
		if cfg.Spanner.Migrate {
			ddl := append(append([]string{}, metricspersistence.SpannerDDL...), notificationspersistence.SpannerProfileDDL...)
			if err := spanner.ApplyDDL(ctx, spannerCfg, ddl); err != nil {
				return nil, err
			}
		}
		client, err := spanner.NewClient(ctx, spannerCfg)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to spanner", slog.String("dsn", spannerCfg.DSN()))

		repo := metricspersistence.NewSpannerRepository(client)
		return &stores{
			scope:      spanner.NewReadWriteTransactionScope(client, "metrics-aggregation"),
			aggregates: repo,
			reader:     repo,
			profiles:   notificationspersistence.NewSpannerProfileStore(client),
			close:      client.Close,
		}, nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		repo := metricspersistence.NewPostgresRepository(pool)
		profiles := notificationspersistence.NewPostgresProfileStore(pool)
		if cfg.Postgres.Migrate {
			if err := errors.Join(repo.Migrate(ctx), profiles.Migrate(ctx)); err != nil {
				pool.Close()
				return nil, err
			}
		}
		logger.Info("connected to postgres")

		return &stores{
			scope:      postgres.NewTransactionScope(pool),
			aggregates: repo,
			reader:     repo,
			profiles:   profiles,
			close:      pool.Close,
		}, nil

	case config.DriverMemory:
		store := metricspersistence.NewInMemoryStore()
		profiles := notificationspersistence.NewInMemoryProfileStore()
		return &stores{
			scope:      store,
			aggregates: store,
			reader:     store,
			profiles:   profiles,
			recorder:   profiles,
			close:      func() {},
		}, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}

// emailLookups orders the recipient sources: identity provider first, then profiles.
func emailLookups(ctx context.Context, cfg *config.Config, profiles notificationsdomain.EmailLookup) ([]notificationsdomain.EmailLookup, error) {
	if !cfg.Firebase.Enabled {
		return []notificationsdomain.EmailLookup{profiles}, nil
	}
	client, err := firebase.NewAuthClient(ctx, cfg.Firebase.ProjectID)
	if err != nil {
		return nil, err
	}
	return []notificationsdomain.EmailLookup{firebase.NewIdentityProvider(client), profiles}, nil
}

// buildRouter creates the main HTTP router with all module handlers.
func buildRouter(metricsModule metrics.Module) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	metricsModule.RegisterRoutes(mux)

	return mux
}
