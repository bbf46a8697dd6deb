package domain

import (
	"context"
	"time"
)

// AggregateRepository applies increments. Every method must be called inside
// a transaction scope so that one event's increments commit together.
// Implementations increment in the store; they never read-modify-write.
type AggregateRepository interface {
	// ClaimEvent records key as processed and reports whether this call was the first.
	ClaimEvent(ctx context.Context, key string, at time.Time) (bool, error)
	IncrementGlobal(ctx context.Context, delta GlobalDelta, at time.Time) error
	IncrementDaily(ctx context.Context, delta DailyDelta, at time.Time) error
	RecordProductSale(ctx context.Context, sale ProductSale, at time.Time) error
}

// MetricsReader serves the dashboard.
type MetricsReader interface {
	GetGlobal(ctx context.Context) (*GlobalMetrics, error)
	GetDaily(ctx context.Context, date string) (*DailyStats, error)
	// ListDaily returns the existing records between from and to inclusive, ordered by date.
	ListDaily(ctx context.Context, from, to string) ([]*DailyStats, error)
	GetProductSales(ctx context.Context, productID string) (*ProductSalesSummary, error)
}
