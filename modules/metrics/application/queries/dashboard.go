// Package queries contains the read use cases behind the dashboard.
package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rai/storefront-triggers/modules/metrics/domain"
)

// maxRangeDays bounds a daily-stats range query.
const maxRangeDays = 366

type GlobalMetricsDTO struct {
	TotalUsers   int64           `json:"totalUsers"`
	TotalOrders  int64           `json:"totalOrders"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	LastUpdated  time.Time       `json:"lastUpdated"`
}

type DailyStatsDTO struct {
	Date        string          `json:"date"`
	Timestamp   time.Time       `json:"timestamp"`
	NewUsers    int64           `json:"newUsers"`
	OrdersCount int64           `json:"ordersCount"`
	Revenue     decimal.Decimal `json:"revenue"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

type ProductSalesDTO struct {
	ProductID         string    `json:"productId"`
	ProductName       string    `json:"productName"`
	TotalQuantitySold int64     `json:"totalQuantitySold"`
	LastSaleDate      time.Time `json:"lastSaleDate"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

type GetGlobalMetricsHandler struct {
	reader domain.MetricsReader
}

func NewGetGlobalMetricsHandler(reader domain.MetricsReader) *GetGlobalMetricsHandler {
	return &GetGlobalMetricsHandler{reader: reader}
}

func (h *GetGlobalMetricsHandler) Handle(ctx context.Context) (*GlobalMetricsDTO, error) {
	m, err := h.reader.GetGlobal(ctx)
	if err != nil {
		return nil, err
	}
	return &GlobalMetricsDTO{
		TotalUsers:   m.TotalUsers,
		TotalOrders:  m.TotalOrders,
		TotalRevenue: m.TotalRevenue,
		LastUpdated:  m.LastUpdated,
	}, nil
}

// GetDailyStatsQuery selects one day by its YYYY-MM-DD key.
type GetDailyStatsQuery struct {
	Date string
}

type GetDailyStatsHandler struct {
	reader domain.MetricsReader
}

func NewGetDailyStatsHandler(reader domain.MetricsReader) *GetDailyStatsHandler {
	return &GetDailyStatsHandler{reader: reader}
}

func (h *GetDailyStatsHandler) Handle(ctx context.Context, query GetDailyStatsQuery) (*DailyStatsDTO, error) {
	if _, err := domain.ParseDayKey(query.Date); err != nil {
		return nil, err
	}
	stats, err := h.reader.GetDaily(ctx, query.Date)
	if err != nil {
		return nil, err
	}
	return toDailyStatsDTO(stats), nil
}

// ListDailyStatsQuery selects the days between From and To inclusive.
type ListDailyStatsQuery struct {
	From string
	To   string
}

type ListDailyStatsResult struct {
	Days []*DailyStatsDTO `json:"days"`
}

type ListDailyStatsHandler struct {
	reader domain.MetricsReader
}

func NewListDailyStatsHandler(reader domain.MetricsReader) *ListDailyStatsHandler {
	return &ListDailyStatsHandler{reader: reader}
}

func (h *ListDailyStatsHandler) Handle(ctx context.Context, query ListDailyStatsQuery) (*ListDailyStatsResult, error) {
	from, err := domain.ParseDayKey(query.From)
	if err != nil {
		return nil, err
	}
	to, err := domain.ParseDayKey(query.To)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is after %s", domain.ErrInvalidDateRange, query.From, query.To)
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return nil, fmt.Errorf("%w: at most %d days", domain.ErrInvalidDateRange, maxRangeDays)
	}

	stats, err := h.reader.ListDaily(ctx, query.From, query.To)
	if err != nil {
		return nil, err
	}

	days := make([]*DailyStatsDTO, len(stats))
	for i, s := range stats {
		days[i] = toDailyStatsDTO(s)
	}
	return &ListDailyStatsResult{Days: days}, nil
}

// GetProductSalesQuery selects one product's summary.
type GetProductSalesQuery struct {
	ProductID string
}

type GetProductSalesHandler struct {
	reader domain.MetricsReader
}

func NewGetProductSalesHandler(reader domain.MetricsReader) *GetProductSalesHandler {
	return &GetProductSalesHandler{reader: reader}
}

func (h *GetProductSalesHandler) Handle(ctx context.Context, query GetProductSalesQuery) (*ProductSalesDTO, error) {
	s, err := h.reader.GetProductSales(ctx, query.ProductID)
	if err != nil {
		return nil, err
	}
	return &ProductSalesDTO{
		ProductID:         s.ProductID,
		ProductName:       s.ProductName,
		TotalQuantitySold: s.TotalQuantitySold,
		LastSaleDate:      s.LastSaleDate,
		LastUpdated:       s.LastUpdated,
	}, nil
}

func toDailyStatsDTO(s *domain.DailyStats) *DailyStatsDTO {
	return &DailyStatsDTO{
		Date:        s.Date,
		Timestamp:   s.Timestamp,
		NewUsers:    s.NewUsers,
		OrdersCount: s.OrdersCount,
		Revenue:     s.Revenue,
		LastUpdated: s.LastUpdated,
	}
}
