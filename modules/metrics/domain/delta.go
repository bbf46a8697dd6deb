package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GlobalDelta is the amount added to GlobalMetrics by one event.
type GlobalDelta struct {
	Users   int64
	Orders  int64
	Revenue decimal.Decimal
}

// DailyDelta is the amount added to one DailyStats record by one event.
type DailyDelta struct {
	Bucket   DayBucket
	NewUsers int64
	Orders   int64
	Revenue  decimal.Decimal
}

// ProductSale is the amount added to one ProductSalesSummary by one order line.
type ProductSale struct {
	ProductID   string
	ProductName string
	Quantity    int64
	SaleDate    time.Time
}

// LineItem is the part of an order line that aggregation reads.
type LineItem struct {
	ProductID string
	Name      string
	Quantity  int64
}

// PlacedOrder is the part of a created order that aggregation reads.
// EventID identifies the feed notification and keys the claim when ID is empty.
type PlacedOrder struct {
	ID        string
	EventID   string
	Total     decimal.Decimal
	CreatedAt time.Time
	Items     []LineItem
}

// Plan is the full set of increments one event applies in a single transaction.
// ClaimKey identifies the event for duplicate suppression.
type Plan struct {
	ClaimKey string
	Global   GlobalDelta
	Daily    DailyDelta
	Sales    []ProductSale
}

// UnknownProductName is recorded for sold lines that carry no product name.
const UnknownProductName = "Unknown Product"

// ClaimKey identifies an event for duplicate suppression. Documents without an
// identifier are keyed on their feed event instead, so two such documents never collide.
func ClaimKey(kind, documentID, eventID string) string {
	if documentID != "" {
		return kind + ":" + documentID
	}
	return kind + "-event:" + eventID
}

// PlanOrder computes the increments for a created order. The daily bucket is
// the order's own creation date. Lines without a product or with a
// non-positive quantity are skipped.
func PlanOrder(order PlacedOrder, loc *time.Location) Plan {
	plan := Plan{
		ClaimKey: ClaimKey("order", order.ID, order.EventID),
		Global:   GlobalDelta{Orders: 1, Revenue: order.Total},
		Daily: DailyDelta{
			Bucket:  NewDayBucket(order.CreatedAt, loc),
			Orders:  1,
			Revenue: order.Total,
		},
	}
	for _, item := range order.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			continue
		}
		name := item.Name
		if name == "" {
			name = UnknownProductName
		}
		plan.Sales = append(plan.Sales, ProductSale{
			ProductID:   item.ProductID,
			ProductName: name,
			Quantity:    item.Quantity,
			SaleDate:    order.CreatedAt,
		})
	}
	return plan
}

// PlanUser computes the increments for a newly registered user, bucketed on now.
func PlanUser(userID, eventID string, now time.Time, loc *time.Location) Plan {
	return Plan{
		ClaimKey: ClaimKey("user", userID, eventID),
		Global:   GlobalDelta{Users: 1, Revenue: decimal.Zero},
		Daily: DailyDelta{
			Bucket:   NewDayBucket(now, loc),
			NewUsers: 1,
			Revenue:  decimal.Zero,
		},
	}
}
