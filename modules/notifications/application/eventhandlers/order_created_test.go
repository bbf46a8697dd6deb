package eventhandlers_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rai/storefront-triggers/modules/notifications/application/eventhandlers"
	"github.com/rai/storefront-triggers/modules/notifications/domain"
	"github.com/rai/storefront-triggers/modules/notifications/infrastructure/email"
	"github.com/rai/storefront-triggers/modules/notifications/infrastructure/persistence"
	"github.com/rai/storefront-triggers/modules/shared/events"
	"github.com/rai/storefront-triggers/modules/shared/events/contracts"
)

// --- Mocks ---

type mockMailer struct {
	sendFn func(ctx context.Context, msg domain.Email) error
	sent   []domain.Email
}

func (m *mockMailer) Send(ctx context.Context, msg domain.Email) error {
	m.sent = append(m.sent, msg)
	if m.sendFn != nil {
		return m.sendFn(ctx, msg)
	}
	return nil
}

type mockLookup struct {
	lookupFn func(ctx context.Context, userID string) (string, bool, error)
}

func (m *mockLookup) Name() string { return "identity-provider" }

func (m *mockLookup) LookupEmail(ctx context.Context, userID string) (string, bool, error) {
	return m.lookupFn(ctx, userID)
}

type mockClaimer struct {
	claimFn func(ctx context.Context, key string) (bool, error)
}

func (m *mockClaimer) Claim(ctx context.Context, key string) (bool, error) {
	return m.claimFn(ctx, key)
}

// --- Helpers ---

func renderer() *email.TemplateRenderer {
	return email.NewTemplateRenderer(
		email.StoreFront{Name: "Example Shop", OrderURL: "https://shop.example.com/orders"},
		time.UTC,
		func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	)
}

func newHandler(mailer domain.Mailer, claimer domain.DeliveryClaimer, lookups ...domain.EmailLookup) *eventhandlers.OrderCreatedHandler {
	return eventhandlers.NewOrderCreatedHandler(
		domain.NewRecipientResolver(lookups...),
		renderer(),
		mailer,
		claimer,
		slog.New(slog.DiscardHandler),
	)
}

func sampleEvent() contracts.OrderCreatedEvent {
	return contracts.NewOrderCreatedEvent("O1ABCDEFGH", &contracts.Order{
		ID:              "O1ABCDEFGH",
		UserID:          "U1",
		ShippingAddress: &contracts.ShippingAddress{Name: "Ada", Phone: "555-0100", Address: "1 Main St"},
		TotalAmount:     decimal.NewFromInt(150),
		CreatedAt:       time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
		Items: []contracts.OrderItem{
			{ProductID: "P1", Name: "Widget", Price: decimal.NewNullDecimal(decimal.NewFromInt(50)), Quantity: 2},
			{ProductID: "abcdefgh", Price: decimal.NewNullDecimal(decimal.NewFromInt(50)), Quantity: 1},
		},
	})
}

func profilesWith(userID, addr string) *persistence.InMemoryProfileStore {
	store := persistence.NewInMemoryProfileStore()
	_ = store.RecordEmail(context.Background(), userID, addr)
	return store
}

// --- Tests ---

func TestOrderCreatedHandler_SendsConfirmation(t *testing.T) {
	mailer := &mockMailer{}
	idp := &mockLookup{lookupFn: func(ctx context.Context, userID string) (string, bool, error) {
		return "ada@example.com", true, nil
	}}
	handler := newHandler(mailer, nil, idp, profilesWith("U1", "profile@example.com"))

	if err := handler.Handle(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.To != "ada@example.com" {
		t.Errorf("expected identity provider address, got %q", msg.To)
	}
	if msg.Subject != "Order Confirmation #O1ABCDEF from Example Shop" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	for _, want := range []string{"#O1ABCDEFGH", "May 1, 2024 at 10:30 AM", "Product (ID: abcdef...)", "$100.00", "$150.00"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestOrderCreatedHandler_FallsBackToProfileStore(t *testing.T) {
	mailer := &mockMailer{}
	idp := &mockLookup{lookupFn: func(ctx context.Context, userID string) (string, bool, error) {
		return "", false, errors.New("user not found")
	}}
	handler := newHandler(mailer, nil, idp, profilesWith("U1", "profile@example.com"))

	_ = handler.Handle(context.Background(), sampleEvent())

	if len(mailer.sent) != 1 || mailer.sent[0].To != "profile@example.com" {
		t.Errorf("expected send to profile address, got %+v", mailer.sent)
	}
}

func TestOrderCreatedHandler_NoRecipientSendsNothing(t *testing.T) {
	mailer := &mockMailer{}
	idp := &mockLookup{lookupFn: func(ctx context.Context, userID string) (string, bool, error) {
		return "", false, nil
	}}
	handler := newHandler(mailer, nil, idp, persistence.NewInMemoryProfileStore())

	if err := handler.Handle(context.Background(), sampleEvent()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Errorf("expected no send, got %d", len(mailer.sent))
	}
}

func TestOrderCreatedHandler_MissingDocumentIsNoOp(t *testing.T) {
	mailer := &mockMailer{}
	handler := newHandler(mailer, nil, profilesWith("U1", "profile@example.com"))

	if err := handler.Handle(context.Background(), contracts.NewOrderCreatedEvent("O1", nil)); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Errorf("expected no send, got %d", len(mailer.sent))
	}
}

func TestOrderCreatedHandler_DeliveryFailureSwallowed(t *testing.T) {
	mailer := &mockMailer{sendFn: func(ctx context.Context, msg domain.Email) error {
		return errors.New("smtp 550")
	}}
	handler := newHandler(mailer, nil, profilesWith("U1", "profile@example.com"))

	if err := handler.Handle(context.Background(), sampleEvent()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Errorf("expected exactly one attempt, got %d", len(mailer.sent))
	}
}

func TestOrderCreatedHandler_ClaimerSkipsDuplicates(t *testing.T) {
	mailer := &mockMailer{}
	claimed := map[string]bool{}
	claimer := &mockClaimer{claimFn: func(ctx context.Context, key string) (bool, error) {
		if claimed[key] {
			return false, nil
		}
		claimed[key] = true
		return true, nil
	}}
	handler := newHandler(mailer, claimer, profilesWith("U1", "profile@example.com"))

	_ = handler.Handle(context.Background(), sampleEvent())
	_ = handler.Handle(context.Background(), sampleEvent())

	if len(mailer.sent) != 1 {
		t.Errorf("expected one send, got %d", len(mailer.sent))
	}
	if !claimed["order:O1ABCDEFGH"] {
		t.Errorf("expected claim key order:O1ABCDEFGH, got %v", claimed)
	}
}

func TestOrderCreatedHandler_OrdersWithoutIDClaimSeparately(t *testing.T) {
	mailer := &mockMailer{}
	claimed := map[string]bool{}
	claimer := &mockClaimer{claimFn: func(ctx context.Context, key string) (bool, error) {
		if claimed[key] {
			return false, nil
		}
		claimed[key] = true
		return true, nil
	}}
	handler := newHandler(mailer, claimer, profilesWith("U1", "profile@example.com"))

	for _, payload := range []string{
		`{"event_id":"e1","type":"orders.OrderCreated","data":{"userId":"U1","totalAmount":10}}`,
		`{"event_id":"e2","type":"orders.OrderCreated","data":{"userId":"U1","totalAmount":20}}`,
	} {
		event, err := contracts.DecodeOrderCreated([]byte(payload))
		if err != nil {
			t.Fatalf("decoding: %v", err)
		}
		_ = handler.Handle(context.Background(), event)
	}

	if len(mailer.sent) != 2 {
		t.Errorf("expected two sends, got %d", len(mailer.sent))
	}
	if !claimed["order-event:e1"] || !claimed["order-event:e2"] {
		t.Errorf("expected per-event claim keys, got %v", claimed)
	}
}

func TestOrderCreatedHandler_ClaimErrorStillSends(t *testing.T) {
	mailer := &mockMailer{}
	claimer := &mockClaimer{claimFn: func(ctx context.Context, key string) (bool, error) {
		return false, errors.New("redis unavailable")
	}}
	handler := newHandler(mailer, claimer, profilesWith("U1", "profile@example.com"))

	_ = handler.Handle(context.Background(), sampleEvent())

	if len(mailer.sent) != 1 {
		t.Errorf("expected one send, got %d", len(mailer.sent))
	}
}

func TestOrderCreatedHandler_UnexpectedEventType(t *testing.T) {
	handler := newHandler(&mockMailer{}, nil)

	err := handler.Handle(context.Background(), events.NewBaseEvent("other.Event", "X"))
	if !errors.Is(err, contracts.ErrUnexpectedEventType) {
		t.Errorf("expected ErrUnexpectedEventType, got %v", err)
	}
}
