package contracts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rai/storefront-triggers/modules/shared/events"
)

const (
	OrderCreatedEventType events.EventType = "orders.OrderCreated"
)

// ShippingAddress is the contact block captured at checkout.
type ShippingAddress struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// OrderItem is a single line of an order document.
// Price is optional; an absent price renders as "N/A" and counts as zero.
type OrderItem struct {
	ProductID string              `json:"productId"`
	Name      string              `json:"name"`
	Price     decimal.NullDecimal `json:"price"`
	Quantity  int64               `json:"quantity"`
}

// UnitPrice returns the price or zero when absent.
func (i OrderItem) UnitPrice() decimal.Decimal {
	if !i.Price.Valid {
		return decimal.Zero
	}
	return i.Price.Decimal
}

// LineTotal returns price × quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice().Mul(decimal.NewFromInt(i.Quantity))
}

// Order is the created order document. It is immutable once created.
type Order struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	ShippingAddress *ShippingAddress `json:"shippingAddress"`
	Items           []OrderItem      `json:"items"`
	TotalAmount     decimal.Decimal  `json:"totalAmount"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// OrderCreatedEvent is emitted by the change feed when an order document is created.
// Order is nil when the notification carried no document body.
type OrderCreatedEvent struct {
	events.BaseEvent
	OrderID string `json:"order_id"`
	Order   *Order `json:"order"`
}

func NewOrderCreatedEvent(orderID string, order *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		BaseEvent: events.NewBaseEvent(OrderCreatedEventType, orderID),
		OrderID:   orderID,
		Order:     order,
	}
}

// DecodeOrderCreated decodes a change-feed envelope into an OrderCreatedEvent.
func DecodeOrderCreated(payload []byte) (events.Event, error) {
	env, err := decodeEnvelope(payload, OrderCreatedEventType)
	if err != nil {
		return nil, err
	}

	var order *Order
	if env.hasData() {
		order = &Order{}
		if err := json.Unmarshal(env.Data, order); err != nil {
			return nil, fmt.Errorf("decoding order document: %w", err)
		}
		if order.CreatedAt.IsZero() {
			order.CreatedAt = env.OccurredAt
		}
	}

	orderID := env.DocumentID
	if orderID == "" && order != nil {
		orderID = order.ID
	}
	if order != nil && order.ID == "" {
		order.ID = orderID
	}

	return OrderCreatedEvent{
		BaseEvent: env.baseEvent(orderID),
		OrderID:   orderID,
		Order:     order,
	}, nil
}
