package eventhandlers_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rai/storefront-triggers/modules/metrics/application/eventhandlers"
	"github.com/rai/storefront-triggers/modules/metrics/domain"
	"github.com/rai/storefront-triggers/modules/metrics/infrastructure/persistence"
	"github.com/rai/storefront-triggers/modules/shared/events"
	"github.com/rai/storefront-triggers/modules/shared/events/contracts"
)

// --- Mocks ---

type mockTransactionScope struct {
	executeFn func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTransactionScope) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.executeFn(ctx, fn)
}

type mockAggregateRepository struct {
	claimEventFn        func(ctx context.Context, key string, at time.Time) (bool, error)
	incrementGlobalFn   func(ctx context.Context, delta domain.GlobalDelta, at time.Time) error
	incrementDailyFn    func(ctx context.Context, delta domain.DailyDelta, at time.Time) error
	recordProductSaleFn func(ctx context.Context, sale domain.ProductSale, at time.Time) error
}

func (m *mockAggregateRepository) ClaimEvent(ctx context.Context, key string, at time.Time) (bool, error) {
	return m.claimEventFn(ctx, key, at)
}

func (m *mockAggregateRepository) IncrementGlobal(ctx context.Context, delta domain.GlobalDelta, at time.Time) error {
	return m.incrementGlobalFn(ctx, delta, at)
}

func (m *mockAggregateRepository) IncrementDaily(ctx context.Context, delta domain.DailyDelta, at time.Time) error {
	return m.incrementDailyFn(ctx, delta, at)
}

func (m *mockAggregateRepository) RecordProductSale(ctx context.Context, sale domain.ProductSale, at time.Time) error {
	return m.recordProductSaleFn(ctx, sale, at)
}

// --- Helpers ---

var fixedNow = time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func sampleOrder(id string, createdAt time.Time) contracts.OrderCreatedEvent {
	return contracts.NewOrderCreatedEvent(id, &contracts.Order{
		ID:          id,
		UserID:      "U1",
		TotalAmount: decimal.NewFromInt(150),
		CreatedAt:   createdAt,
		Items: []contracts.OrderItem{
			{ProductID: "P1", Name: "Widget", Price: decimal.NewNullDecimal(decimal.NewFromInt(50)), Quantity: 2},
			{ProductID: "P2", Name: "Gadget", Price: decimal.NewNullDecimal(decimal.NewFromInt(50)), Quantity: 1},
		},
	})
}

func newOrderHandler(store *persistence.InMemoryStore, dedupe bool) *eventhandlers.OrderCreatedHandler {
	agg := eventhandlers.NewAggregator(store, store, dedupe)
	return eventhandlers.NewOrderCreatedHandler(agg, time.UTC, clock, discardLogger())
}

func newUserHandler(store *persistence.InMemoryStore, dedupe bool) *eventhandlers.UserCreatedHandler {
	agg := eventhandlers.NewAggregator(store, store, dedupe)
	return eventhandlers.NewUserCreatedHandler(agg, time.UTC, clock, discardLogger())
}

// --- Order path ---

func TestOrderCreatedHandler_AggregatesOrder(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewInMemoryStore()
	handler := newOrderHandler(store, true)
	createdAt := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

	if err := handler.Handle(ctx, sampleOrder("O1", createdAt)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	global, err := store.GetGlobal(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if global.TotalOrders != 1 || !global.TotalRevenue.Equal(decimal.NewFromInt(150)) || global.TotalUsers != 0 {
		t.Errorf("unexpected global metrics %+v", global)
	}
	if !global.LastUpdated.Equal(fixedNow) {
		t.Errorf("LastUpdated = %v, want %v", global.LastUpdated, fixedNow)
	}

	daily, err := store.GetDaily(ctx, "2024-05-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if daily.OrdersCount != 1 || !daily.Revenue.Equal(decimal.NewFromInt(150)) {
		t.Errorf("unexpected daily stats %+v", daily)
	}
	if !daily.Timestamp.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("bucket timestamp = %v", daily.Timestamp)
	}

	p1, err := store.GetProductSales(ctx, "P1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1.TotalQuantitySold != 2 || p1.ProductName != "Widget" || !p1.LastSaleDate.Equal(createdAt) {
		t.Errorf("unexpected P1 summary %+v", p1)
	}
	p2, err := store.GetProductSales(ctx, "P2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p2.TotalQuantitySold != 1 {
		t.Errorf("expected P2 quantity 1, got %d", p2.TotalQuantitySold)
	}
}

func TestOrderCreatedHandler_BucketsOnCreationDate(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewInMemoryStore()
	handler := newOrderHandler(store, true)

	// The handler clock says 2024-05-01; the orders were created earlier.
	_ = handler.Handle(ctx, sampleOrder("A", time.Date(2024, 4, 28, 0, 0, 1, 0, time.UTC)))
	_ = handler.Handle(ctx, sampleOrder("B", time.Date(2024, 4, 28, 23, 59, 59, 0, time.UTC)))

	daily, err := store.GetDaily(ctx, "2024-04-28")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if daily.OrdersCount != 2 || !daily.Revenue.Equal(decimal.NewFromInt(300)) {
		t.Errorf("unexpected daily stats %+v", daily)
	}
	if _, err := store.GetDaily(ctx, "2024-05-01"); !errors.Is(err, domain.ErrDailyStatsNotFound) {
		t.Errorf("expected no bucket for the processing day, got %v", err)
	}
}

func TestOrderCreatedHandler_SkipsInvalidItems(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewInMemoryStore()
	handler := newOrderHandler(store, true)

	event := contracts.NewOrderCreatedEvent("O2", &contracts.Order{
		ID:          "O2",
		TotalAmount: decimal.NewFromInt(20),
		CreatedAt:   fixedNow,
		Items: []contracts.OrderItem{
			{ProductID: "", Name: "ghost", Quantity: 4},
			{ProductID: "P9", Name: "zero", Quantity: 0},
		},
	})
	if err := handler.Handle(ctx, event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := store.GetProductSales(ctx, "P9"); !errors.Is(err, domain.ErrProductSalesNotFound) {
		t.Errorf("expected P9 to be skipped, got %v", err)
	}
	global, _ := store.GetGlobal(ctx)
	if global.TotalOrders != 1 {
		t.Errorf("expected order still counted, got %d", global.TotalOrders)
	}
}

func TestOrderCreatedHandler_DedupeSuppressesRedelivery(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewInMemoryStore()
	handler := newOrderHandler(store, true)
	event := sampleOrder("O1", fixedNow)

	_ = handler.Handle(ctx, event)
	_ = handler.Handle(ctx, event)

	global, _ := store.GetGlobal(ctx)
	if global.TotalOrders != 1 || !global.TotalRevenue.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected a single count, got %+v", global)
	}
	p1, _ := store.GetProductSales(ctx, "P1")
	if p1.TotalQuantitySold != 2 {
		t.Errorf("expected P1 quantity 2, got %d", p1.TotalQuantitySold)
	}
}

func TestOrderCreatedHandler_WithoutDedupeCountsTwice(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewInMemoryStore()
	handler := newOrderHandler(store, false)
	event := sampleOrder("O1", fixedNow)

	_ = handler.Handle(ctx, event)
	_ = handler.Handle(ctx, event)

	global, _ := store.GetGlobal(ctx)
	if global.TotalOrders != 2 || !global.TotalRevenue.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected a double count, got %+v", global)
	}
}

func TestOrderCreatedHandler_MissingDocumentIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewInMemoryStore()
	handler := newOrderHandler(store, true)

	if err := handler.Handle(ctx, contracts.NewOrderCreatedEvent("O3", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.GetGlobal(ctx); !errors.Is(err, domain.ErrGlobalMetricsNotFound) {
		t.Errorf("expected no writes, got %v", err)
	}
}

func TestOrderCreatedHandler_FailureIsAtomicAndSwallowed(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewInMemoryStore()
	errWrite := errors.New("write failed")

	repo := &mockAggregateRepository{
		claimEventFn:        store.ClaimEvent,
		incrementGlobalFn:   store.IncrementGlobal,
		incrementDailyFn:    store.IncrementDaily,
		recordProductSaleFn: func(ctx context.Context, sale domain.ProductSale, at time.Time) error {
			if sale.ProductID == "P2" {
				return errWrite
			}
			return store.RecordProductSale(ctx, sale, at)
		},
	}
	handler := eventhandlers.NewOrderCreatedHandler(eventhandlers.NewAggregator(store, repo, true), time.UTC, clock, discardLogger())

	if err := handler.Handle(ctx, sampleOrder("O1", fixedNow)); err != nil {
		t.Fatalf("expected failure to be swallowed, got %v", err)
	}

	if _, err := store.GetGlobal(ctx); !errors.Is(err, domain.ErrGlobalMetricsNotFound) {
		t.Errorf("expected global increment rolled back, got %v", err)
	}
	if _, err := store.GetProductSales(ctx, "P1"); !errors.Is(err, domain.ErrProductSalesNotFound) {
		t.Errorf("expected P1 increment rolled back, got %v", err)
	}
}

func TestOrderCreatedHandler_UnexpectedEventType(t *testing.T) {
	handler := newOrderHandler(persistence.NewInMemoryStore(), true)

	err := handler.Handle(context.Background(), events.NewBaseEvent("other.Event", "X"))
	if !errors.Is(err, contracts.ErrUnexpectedEventType) {
		t.Errorf("expected ErrUnexpectedEventType, got %v", err)
	}
}

// --- User path ---

func TestUserCreatedHandler_AggregatesUser(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewInMemoryStore()
	handler := newUserHandler(store, true)

	if err := handler.Handle(ctx, contracts.NewUserCreatedEvent(contracts.UserRecord{UID: "U1", Email: "u1@example.com"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := handler.Handle(ctx, contracts.NewUserCreatedEvent(contracts.UserRecord{UID: "U2"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	global, err := store.GetGlobal(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if global.TotalUsers != 2 || global.TotalOrders != 0 {
		t.Errorf("unexpected global metrics %+v", global)
	}

	daily, err := store.GetDaily(ctx, "2024-05-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if daily.NewUsers != 2 {
		t.Errorf("expected 2 new users, got %d", daily.NewUsers)
	}
	if !daily.Timestamp.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("bucket timestamp = %v", daily.Timestamp)
	}
}

func TestUserCreatedHandler_TransactionFailureSwallowed(t *testing.T) {
	errAborted := errors.New("transaction aborted")
	scope := &mockTransactionScope{
		executeFn: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return errAborted
		},
	}
	repo := &mockAggregateRepository{}
	handler := eventhandlers.NewUserCreatedHandler(eventhandlers.NewAggregator(scope, repo, true), time.UTC, clock, discardLogger())

	if err := handler.Handle(context.Background(), contracts.NewUserCreatedEvent(contracts.UserRecord{UID: "U1"})); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestAggregator_ClaimsBeforeIncrementing(t *testing.T) {
	var calls []string
	repo := &mockAggregateRepository{
		claimEventFn: func(ctx context.Context, key string, at time.Time) (bool, error) {
			calls = append(calls, "claim:"+key)
			return false, nil
		},
		incrementGlobalFn: func(ctx context.Context, delta domain.GlobalDelta, at time.Time) error {
			calls = append(calls, "global")
			return nil
		},
	}
	scope := &mockTransactionScope{
		executeFn: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
	}

	applied, err := eventhandlers.NewAggregator(scope, repo, true).Apply(context.Background(), domain.PlanUser("U1", "evt-u1", fixedNow, time.UTC), fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied {
		t.Error("expected duplicate to be skipped")
	}
	if len(calls) != 1 || calls[0] != "claim:user:U1" {
		t.Errorf("unexpected calls %v", calls)
	}
}
