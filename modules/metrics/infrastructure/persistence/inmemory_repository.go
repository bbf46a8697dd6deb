// Package persistence implements the metrics repositories.
package persistence

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rai/storefront-triggers/modules/metrics/domain"
	"github.com/rai/storefront-triggers/modules/shared/transaction"
)

type inMemoryTxKey struct{}

// InMemoryStore keeps aggregates in process memory. It is its own transaction
// scope: Execute serializes writers and restores a snapshot when fn fails.
type InMemoryStore struct {
	mu        sync.Mutex
	global    *domain.GlobalMetrics
	daily     map[string]domain.DailyStats
	products  map[string]domain.ProductSalesSummary
	processed map[string]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		daily:     make(map[string]domain.DailyStats),
		products:  make(map[string]domain.ProductSalesSummary),
		processed: make(map[string]time.Time),
	}
}

type snapshot struct {
	global    *domain.GlobalMetrics
	daily     map[string]domain.DailyStats
	products  map[string]domain.ProductSalesSummary
	processed map[string]time.Time
}

func (s *InMemoryStore) snapshot() snapshot {
	var global *domain.GlobalMetrics
	if s.global != nil {
		g := *s.global
		global = &g
	}
	return snapshot{
		global:    global,
		daily:     maps.Clone(s.daily),
		products:  maps.Clone(s.products),
		processed: maps.Clone(s.processed),
	}
}

func (s *InMemoryStore) restore(snap snapshot) {
	s.global = snap.global
	s.daily = snap.daily
	s.products = snap.products
	s.processed = snap.processed
}

// Execute runs fn with the store locked and rolls back every change if fn fails.
func (s *InMemoryStore) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, inMemoryTxKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(inMemoryTxKey{}).(bool)
	return v
}

// lock acquires the mutex unless the caller already holds it through Execute.
func (s *InMemoryStore) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *InMemoryStore) ClaimEvent(ctx context.Context, key string, at time.Time) (bool, error) {
	defer s.lock(ctx)()
	if _, ok := s.processed[key]; ok {
		return false, nil
	}
	s.processed[key] = at
	return true, nil
}

func (s *InMemoryStore) IncrementGlobal(ctx context.Context, delta domain.GlobalDelta, at time.Time) error {
	defer s.lock(ctx)()
	if s.global == nil {
		s.global = &domain.GlobalMetrics{TotalRevenue: decimal.Zero}
	}
	s.global.TotalUsers += delta.Users
	s.global.TotalOrders += delta.Orders
	s.global.TotalRevenue = s.global.TotalRevenue.Add(delta.Revenue)
	s.global.LastUpdated = at
	return nil
}

func (s *InMemoryStore) IncrementDaily(ctx context.Context, delta domain.DailyDelta, at time.Time) error {
	defer s.lock(ctx)()
	stats, ok := s.daily[delta.Bucket.Key]
	if !ok {
		stats = domain.DailyStats{
			Date:      delta.Bucket.Key,
			Timestamp: delta.Bucket.Start,
			Revenue:   decimal.Zero,
		}
	}
	stats.NewUsers += delta.NewUsers
	stats.OrdersCount += delta.Orders
	stats.Revenue = stats.Revenue.Add(delta.Revenue)
	stats.LastUpdated = at
	s.daily[delta.Bucket.Key] = stats
	return nil
}

func (s *InMemoryStore) RecordProductSale(ctx context.Context, sale domain.ProductSale, at time.Time) error {
	defer s.lock(ctx)()
	summary := s.products[sale.ProductID]
	summary.ProductID = sale.ProductID
	summary.ProductName = sale.ProductName
	summary.TotalQuantitySold += sale.Quantity
	summary.LastSaleDate = sale.SaleDate
	summary.LastUpdated = at
	s.products[sale.ProductID] = summary
	return nil
}

func (s *InMemoryStore) GetGlobal(ctx context.Context) (*domain.GlobalMetrics, error) {
	defer s.lock(ctx)()
	if s.global == nil {
		return nil, domain.ErrGlobalMetricsNotFound
	}
	g := *s.global
	return &g, nil
}

func (s *InMemoryStore) GetDaily(ctx context.Context, date string) (*domain.DailyStats, error) {
	defer s.lock(ctx)()
	stats, ok := s.daily[date]
	if !ok {
		return nil, domain.ErrDailyStatsNotFound
	}
	return &stats, nil
}

func (s *InMemoryStore) ListDaily(ctx context.Context, from, to string) ([]*domain.DailyStats, error) {
	defer s.lock(ctx)()
	var result []*domain.DailyStats
	for _, key := range slices.Sorted(maps.Keys(s.daily)) {
		if key < from || key > to {
			continue
		}
		stats := s.daily[key]
		result = append(result, &stats)
	}
	return result, nil
}

func (s *InMemoryStore) GetProductSales(ctx context.Context, productID string) (*domain.ProductSalesSummary, error) {
	defer s.lock(ctx)()
	summary, ok := s.products[productID]
	if !ok {
		return nil, domain.ErrProductSalesNotFound
	}
	return &summary, nil
}

var (
	_ transaction.Scope          = (*InMemoryStore)(nil)
	_ domain.AggregateRepository = (*InMemoryStore)(nil)
	_ domain.MetricsReader       = (*InMemoryStore)(nil)
)
