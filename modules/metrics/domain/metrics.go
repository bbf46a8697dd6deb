// Package domain holds the dashboard aggregates and the pure rules that turn
// created documents into counter increments.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GlobalMetricsID is the key of the singleton GlobalMetrics record.
const GlobalMetricsID = "global"

// GlobalMetrics holds store-wide running totals.
type GlobalMetrics struct {
	TotalUsers   int64
	TotalOrders  int64
	TotalRevenue decimal.Decimal
	LastUpdated  time.Time
}

// DailyStats holds the counters of one calendar day.
// Date is the YYYY-MM-DD key; Timestamp is the start of that day.
type DailyStats struct {
	Date        string
	Timestamp   time.Time
	NewUsers    int64
	OrdersCount int64
	Revenue     decimal.Decimal
	LastUpdated time.Time
}

// ProductSalesSummary tracks units sold for one product.
type ProductSalesSummary struct {
	ProductID         string
	ProductName       string
	TotalQuantitySold int64
	LastSaleDate      time.Time
	LastUpdated       time.Time
}
