package email_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rai/storefront-triggers/internal/platform/mail"
	"github.com/rai/storefront-triggers/modules/notifications/domain"
	"github.com/rai/storefront-triggers/modules/notifications/infrastructure/email"
)

func newRenderer() *email.TemplateRenderer {
	return email.NewTemplateRenderer(
		email.StoreFront{Name: "Example Shop", OrderURL: "https://shop.example.com/orders/"},
		time.UTC,
		func() time.Time { return time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC) },
	)
}

func sampleConfirmation() domain.Confirmation {
	return domain.Confirmation{
		OrderID:      "ORDER12345XYZ",
		CustomerName: "Ada",
		Phone:        "555-0100",
		Address:      "1 Main St",
		PlacedAt:     time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC),
		Lines: []domain.ConfirmationLine{
			{Name: "Widget", Quantity: 2, UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("50")), LineTotal: decimal.RequireFromString("100")},
			{Name: "Product (ID: abcdef...)", Quantity: 1, LineTotal: decimal.Zero},
		},
		Total: decimal.RequireFromString("150.5"),
	}
}

func TestTemplateRenderer_Subject(t *testing.T) {
	msg, err := newRenderer().Render(sampleConfirmation())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Subject != "Order Confirmation #ORDER123 from Example Shop" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	if msg.To != "" {
		t.Errorf("renderer must not set a recipient, got %q", msg.To)
	}
}

func TestTemplateRenderer_Body(t *testing.T) {
	msg, err := newRenderer().Render(sampleConfirmation())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Hello <strong>Ada</strong>",
		"#ORDER12345XYZ",
		"May 1, 2024 at 09:05 AM",
		"555-0100",
		"1 Main St",
		"$50.00",
		"$100.00",
		"N/A",
		"$0.00",
		"Grand Total: <span style=\"color: #D9534F;\">$150.50</span>",
		"https://shop.example.com/orders/ORDER12345XYZ",
		"2025 Example Shop",
	} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestTemplateRenderer_DefaultsAndEscaping(t *testing.T) {
	c := domain.Confirmation{
		OrderID:  "O1",
		PlacedAt: time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC),
		Lines:    []domain.ConfirmationLine{{Name: "<script>x</script>", Quantity: 1}},
	}

	msg, err := newRenderer().Render(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(msg.HTML, "Valued Customer") {
		t.Error("expected default customer name")
	}
	if strings.Count(msg.HTML, "N/A") < 3 {
		t.Error("expected N/A for phone, address and unit price")
	}
	if !strings.Contains(msg.HTML, "06:00 PM") {
		t.Error("expected 12-hour clock")
	}
	if strings.Contains(msg.HTML, "<script>") {
		t.Error("item names must be escaped")
	}
}

type mockSender struct {
	sendFn func(ctx context.Context, msg mail.Message) error
}

func (m *mockSender) Send(ctx context.Context, msg mail.Message) error {
	return m.sendFn(ctx, msg)
}

func TestMailer_Send(t *testing.T) {
	var sent mail.Message
	errSMTP := errors.New("smtp down")
	calls := 0
	mailer := email.NewMailer(&mockSender{sendFn: func(ctx context.Context, msg mail.Message) error {
		calls++
		sent = msg
		if calls > 1 {
			return errSMTP
		}
		return nil
	}})

	in := domain.Email{To: "a@example.com", Subject: "s", HTML: "<p>b</p>"}
	if err := mailer.Send(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent.To != in.To || sent.Subject != in.Subject || sent.HTML != in.HTML {
		t.Errorf("unexpected message %+v", sent)
	}
	if err := mailer.Send(context.Background(), in); !errors.Is(err, errSMTP) {
		t.Errorf("expected errSMTP, got %v", err)
	}
}
