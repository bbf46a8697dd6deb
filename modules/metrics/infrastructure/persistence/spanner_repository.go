package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/spanner"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"

	platformspanner "github.com/rai/storefront-triggers/internal/platform/spanner"
	"github.com/rai/storefront-triggers/modules/metrics/domain"
)

// numericScale is the fractional precision of Spanner NUMERIC.
const numericScale = 9

// SpannerRepository stores aggregates in Cloud Spanner. Increments are issued
// as DML so concurrent transactions never overwrite each other's counts.
type SpannerRepository struct {
	client *spanner.Client
}

func NewSpannerRepository(client *spanner.Client) *SpannerRepository {
	return &SpannerRepository{client: client}
}

// withTx runs fn in the transaction carried by ctx, or in a new one.
func (r *SpannerRepository) withTx(ctx context.Context, fn func(ctx context.Context, tx *spanner.ReadWriteTransaction) error) error {
	if tx, ok := platformspanner.ReadWriteTxFromContext(ctx); ok {
		return fn(ctx, tx)
	}
	_, err := r.client.ReadWriteTransaction(ctx, fn)
	return err
}

func (r *SpannerRepository) reader(ctx context.Context) platformspanner.ReadTransaction {
	if tx, ok := platformspanner.ReadTransactionFromContext(ctx); ok {
		return tx
	}
	return r.client.Single()
}

func numeric(d decimal.Decimal) spanner.NullNumeric {
	return spanner.NullNumeric{Numeric: *d.Round(numericScale).Rat(), Valid: true}
}

func fromNumeric(n spanner.NullNumeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(spanner.NumericString(&n.Numeric))
}

func (r *SpannerRepository) ClaimEvent(ctx context.Context, key string, at time.Time) (bool, error) {
	var claimed bool
	err := r.withTx(ctx, func(ctx context.Context, tx *spanner.ReadWriteTransaction) error {
		count, err := tx.Update(ctx, spanner.Statement{
			SQL:    `INSERT OR IGNORE INTO ProcessedEvents (EventKey, ProcessedAt) VALUES (@key, @at)`,
			Params: map[string]interface{}{"key": key, "at": at},
		})
		if err != nil {
			return err
		}
		claimed = count == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to claim event %s: %w", key, err)
	}
	return claimed, nil
}

func (r *SpannerRepository) IncrementGlobal(ctx context.Context, delta domain.GlobalDelta, at time.Time) error {
	stmts := []spanner.Statement{
		{
			SQL: `INSERT OR IGNORE INTO DashboardMetrics (MetricsID, TotalUsers, TotalOrders, TotalRevenue, LastUpdated)
			      VALUES (@id, 0, 0, NUMERIC '0', @at)`,
			Params: map[string]interface{}{"id": domain.GlobalMetricsID, "at": at},
		},
		{
			SQL: `UPDATE DashboardMetrics
			      SET TotalUsers = TotalUsers + @users,
			          TotalOrders = TotalOrders + @orders,
			          TotalRevenue = TotalRevenue + @revenue,
			          LastUpdated = @at
			      WHERE MetricsID = @id`,
			Params: map[string]interface{}{
				"id":      domain.GlobalMetricsID,
				"users":   delta.Users,
				"orders":  delta.Orders,
				"revenue": numeric(delta.Revenue),
				"at":      at,
			},
		},
	}
	if err := r.batchUpdate(ctx, stmts); err != nil {
		return fmt.Errorf("failed to increment global metrics: %w", err)
	}
	return nil
}

func (r *SpannerRepository) IncrementDaily(ctx context.Context, delta domain.DailyDelta, at time.Time) error {
	stmts := []spanner.Statement{
		{
			SQL: `INSERT OR IGNORE INTO DailyStats (Date, Timestamp, NewUsers, OrdersCount, Revenue, LastUpdated)
			      VALUES (@date, @start, 0, 0, NUMERIC '0', @at)`,
			Params: map[string]interface{}{"date": delta.Bucket.Key, "start": delta.Bucket.Start, "at": at},
		},
		{
			SQL: `UPDATE DailyStats
			      SET NewUsers = NewUsers + @users,
			          OrdersCount = OrdersCount + @orders,
			          Revenue = Revenue + @revenue,
			          LastUpdated = @at
			      WHERE Date = @date`,
			Params: map[string]interface{}{
				"date":    delta.Bucket.Key,
				"users":   delta.NewUsers,
				"orders":  delta.Orders,
				"revenue": numeric(delta.Revenue),
				"at":      at,
			},
		},
	}
	if err := r.batchUpdate(ctx, stmts); err != nil {
		return fmt.Errorf("failed to increment daily stats %s: %w", delta.Bucket.Key, err)
	}
	return nil
}

func (r *SpannerRepository) RecordProductSale(ctx context.Context, sale domain.ProductSale, at time.Time) error {
	stmts := []spanner.Statement{
		{
			SQL: `INSERT OR IGNORE INTO ProductSalesSummary (ProductID, ProductName, TotalQuantitySold, LastSaleDate, LastUpdated)
			      VALUES (@id, @name, 0, @saleDate, @at)`,
			Params: map[string]interface{}{"id": sale.ProductID, "name": sale.ProductName, "saleDate": sale.SaleDate, "at": at},
		},
		{
			SQL: `UPDATE ProductSalesSummary
			      SET ProductName = @name,
			          TotalQuantitySold = TotalQuantitySold + @qty,
			          LastSaleDate = @saleDate,
			          LastUpdated = @at
			      WHERE ProductID = @id`,
			Params: map[string]interface{}{
				"id":       sale.ProductID,
				"name":     sale.ProductName,
				"qty":      sale.Quantity,
				"saleDate": sale.SaleDate,
				"at":       at,
			},
		},
	}
	if err := r.batchUpdate(ctx, stmts); err != nil {
		return fmt.Errorf("failed to record sale of %s: %w", sale.ProductID, err)
	}
	return nil
}

func (r *SpannerRepository) batchUpdate(ctx context.Context, stmts []spanner.Statement) error {
	return r.withTx(ctx, func(ctx context.Context, tx *spanner.ReadWriteTransaction) error {
		_, err := tx.BatchUpdate(ctx, stmts)
		return err
	})
}

func (r *SpannerRepository) GetGlobal(ctx context.Context) (*domain.GlobalMetrics, error) {
	row, err := r.reader(ctx).ReadRow(ctx, "DashboardMetrics",
		spanner.Key{domain.GlobalMetricsID},
		[]string{"TotalUsers", "TotalOrders", "TotalRevenue", "LastUpdated"},
	)
	if err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return nil, domain.ErrGlobalMetricsNotFound
		}
		return nil, fmt.Errorf("failed to read global metrics: %w", err)
	}

	var m domain.GlobalMetrics
	var revenue spanner.NullNumeric
	if err := row.Columns(&m.TotalUsers, &m.TotalOrders, &revenue, &m.LastUpdated); err != nil {
		return nil, fmt.Errorf("failed to scan global metrics: %w", err)
	}
	if m.TotalRevenue, err = fromNumeric(revenue); err != nil {
		return nil, fmt.Errorf("failed to parse total revenue: %w", err)
	}
	return &m, nil
}

var dailyColumns = []string{"Date", "Timestamp", "NewUsers", "OrdersCount", "Revenue", "LastUpdated"}

func scanDaily(row *spanner.Row) (*domain.DailyStats, error) {
	var s domain.DailyStats
	var revenue spanner.NullNumeric
	if err := row.Columns(&s.Date, &s.Timestamp, &s.NewUsers, &s.OrdersCount, &revenue, &s.LastUpdated); err != nil {
		return nil, fmt.Errorf("failed to scan daily stats: %w", err)
	}
	rev, err := fromNumeric(revenue)
	if err != nil {
		return nil, fmt.Errorf("failed to parse daily revenue: %w", err)
	}
	s.Revenue = rev
	return &s, nil
}

func (r *SpannerRepository) GetDaily(ctx context.Context, date string) (*domain.DailyStats, error) {
	row, err := r.reader(ctx).ReadRow(ctx, "DailyStats", spanner.Key{date}, dailyColumns)
	if err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return nil, domain.ErrDailyStatsNotFound
		}
		return nil, fmt.Errorf("failed to read daily stats: %w", err)
	}
	return scanDaily(row)
}

func (r *SpannerRepository) ListDaily(ctx context.Context, from, to string) ([]*domain.DailyStats, error) {
	iter := r.reader(ctx).Read(ctx, "DailyStats",
		spanner.KeyRange{
			Start: spanner.Key{from},
			End:   spanner.Key{to},
			Kind:  spanner.ClosedClosed,
		},
		dailyColumns,
	)
	defer iter.Stop()

	var result []*domain.DailyStats
	for {
		row, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list daily stats: %w", err)
		}
		stats, err := scanDaily(row)
		if err != nil {
			return nil, err
		}
		result = append(result, stats)
	}
	return result, nil
}

func (r *SpannerRepository) GetProductSales(ctx context.Context, productID string) (*domain.ProductSalesSummary, error) {
	row, err := r.reader(ctx).ReadRow(ctx, "ProductSalesSummary",
		spanner.Key{productID},
		[]string{"ProductID", "ProductName", "TotalQuantitySold", "LastSaleDate", "LastUpdated"},
	)
	if err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return nil, domain.ErrProductSalesNotFound
		}
		return nil, fmt.Errorf("failed to read product sales: %w", err)
	}

	var s domain.ProductSalesSummary
	var name spanner.NullString
	if err := row.Columns(&s.ProductID, &name, &s.TotalQuantitySold, &s.LastSaleDate, &s.LastUpdated); err != nil {
		return nil, fmt.Errorf("failed to scan product sales: %w", err)
	}
	s.ProductName = name.StringVal
	return &s, nil
}

var (
	_ domain.AggregateRepository = (*SpannerRepository)(nil)
	_ domain.MetricsReader       = (*SpannerRepository)(nil)
)

// SpannerDDL creates the aggregate tables.
var SpannerDDL = []string{
	`CREATE TABLE IF NOT EXISTS DashboardMetrics (
		MetricsID STRING(64) NOT NULL,
		TotalUsers INT64 NOT NULL,
		TotalOrders INT64 NOT NULL,
		TotalRevenue NUMERIC NOT NULL,
		LastUpdated TIMESTAMP NOT NULL,
	) PRIMARY KEY (MetricsID)`,
	`CREATE TABLE IF NOT EXISTS DailyStats (
		Date STRING(10) NOT NULL,
		Timestamp TIMESTAMP NOT NULL,
		NewUsers INT64 NOT NULL,
		OrdersCount INT64 NOT NULL,
		Revenue NUMERIC NOT NULL,
		LastUpdated TIMESTAMP NOT NULL,
	) PRIMARY KEY (Date)`,
	`CREATE TABLE IF NOT EXISTS ProductSalesSummary (
		ProductID STRING(MAX) NOT NULL,
		ProductName STRING(MAX),
		TotalQuantitySold INT64 NOT NULL,
		LastSaleDate TIMESTAMP NOT NULL,
		LastUpdated TIMESTAMP NOT NULL,
	) PRIMARY KEY (ProductID)`,
	`CREATE TABLE IF NOT EXISTS ProcessedEvents (
		EventKey STRING(MAX) NOT NULL,
		ProcessedAt TIMESTAMP NOT NULL,
	) PRIMARY KEY (EventKey)`,
}
