package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultCustomerName = "Valued Customer"
	notAvailable        = "N/A"
)

// ConfirmationLine is one row of the line-item table.
type ConfirmationLine struct {
	Name      string
	Quantity  int64
	UnitPrice decimal.NullDecimal
	LineTotal decimal.Decimal
}

// Confirmation is everything the email shows about one order.
type Confirmation struct {
	OrderID      string
	CustomerName string
	Phone        string
	Address      string
	PlacedAt     time.Time
	Lines        []ConfirmationLine
	Total        decimal.Decimal
}

// ShortOrderID is the order number shown in the subject line.
func (c Confirmation) ShortOrderID() string {
	return truncate(c.OrderID, 8)
}

// ApplyDefaults fills the placeholders used when shipping details are absent.
func (c *Confirmation) ApplyDefaults() {
	if c.CustomerName == "" {
		c.CustomerName = defaultCustomerName
	}
	if c.Phone == "" {
		c.Phone = notAvailable
	}
	if c.Address == "" {
		c.Address = notAvailable
	}
}

// DeliveryKey identifies one confirmation for DeliveryClaimer. Orders without an
// identifier are keyed on their feed event so that they never share a claim.
func DeliveryKey(orderID, eventID string) string {
	if orderID != "" {
		return "order:" + orderID
	}
	return "order-event:" + eventID
}

// LineName returns the item name, or a placeholder derived from the product ID.
func LineName(productID, name string) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("Product (ID: %s...)", truncate(productID, 6))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Email is a rendered message ready for delivery.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// Renderer produces the confirmation email for an order.
type Renderer interface {
	Render(c Confirmation) (Email, error)
}

// Mailer delivers a rendered email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// DeliveryClaimer records that a confirmation was attempted for key.
// Claim reports false when key was already claimed.
type DeliveryClaimer interface {
	Claim(ctx context.Context, key string) (bool, error)
}
