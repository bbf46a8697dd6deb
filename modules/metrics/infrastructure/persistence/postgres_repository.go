package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rai/storefront-triggers/internal/platform/postgres"
	"github.com/rai/storefront-triggers/modules/metrics/domain"
)

// Schema creates the aggregate tables when they do not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS dashboard_metrics (
	metrics_id    TEXT PRIMARY KEY,
	total_users   BIGINT NOT NULL DEFAULT 0,
	total_orders  BIGINT NOT NULL DEFAULT 0,
	total_revenue NUMERIC NOT NULL DEFAULT 0,
	last_updated  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_stats (
	date          TEXT PRIMARY KEY,
	bucket_start  TIMESTAMPTZ NOT NULL,
	new_users     BIGINT NOT NULL DEFAULT 0,
	orders_count  BIGINT NOT NULL DEFAULT 0,
	revenue       NUMERIC NOT NULL DEFAULT 0,
	last_updated  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS product_sales_summary (
	product_id          TEXT PRIMARY KEY,
	product_name        TEXT NOT NULL DEFAULT '',
	total_quantity_sold BIGINT NOT NULL DEFAULT 0,
	last_sale_date      TIMESTAMPTZ NOT NULL,
	last_updated        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS processed_events (
	event_key    TEXT PRIMARY KEY,
	processed_at TIMESTAMPTZ NOT NULL
);
`

// PostgresRepository stores aggregates in PostgreSQL using upsert increments.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate applies Schema.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate metrics schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) db(ctx context.Context) postgres.Querier {
	return postgres.QuerierFromContext(ctx, r.pool)
}

func (r *PostgresRepository) ClaimEvent(ctx context.Context, key string, at time.Time) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`INSERT INTO processed_events (event_key, processed_at) VALUES ($1, $2) ON CONFLICT (event_key) DO NOTHING`,
		key, at,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim event %s: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) IncrementGlobal(ctx context.Context, delta domain.GlobalDelta, at time.Time) error {
	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO dashboard_metrics (metrics_id, total_users, total_orders, total_revenue, last_updated)
		VALUES ($1, $2, $3, $4::numeric, $5)
		ON CONFLICT (metrics_id) DO UPDATE SET
			total_users   = dashboard_metrics.total_users + EXCLUDED.total_users,
			total_orders  = dashboard_metrics.total_orders + EXCLUDED.total_orders,
			total_revenue = dashboard_metrics.total_revenue + EXCLUDED.total_revenue,
			last_updated  = EXCLUDED.last_updated`,
		domain.GlobalMetricsID, delta.Users, delta.Orders, delta.Revenue.String(), at,
	)
	if err != nil {
		return fmt.Errorf("failed to increment global metrics: %w", err)
	}
	return nil
}

func (r *PostgresRepository) IncrementDaily(ctx context.Context, delta domain.DailyDelta, at time.Time) error {
	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO daily_stats (date, bucket_start, new_users, orders_count, revenue, last_updated)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		ON CONFLICT (date) DO UPDATE SET
			new_users    = daily_stats.new_users + EXCLUDED.new_users,
			orders_count = daily_stats.orders_count + EXCLUDED.orders_count,
			revenue      = daily_stats.revenue + EXCLUDED.revenue,
			last_updated = EXCLUDED.last_updated`,
		delta.Bucket.Key, delta.Bucket.Start, delta.NewUsers, delta.Orders, delta.Revenue.String(), at,
	)
	if err != nil {
		return fmt.Errorf("failed to increment daily stats %s: %w", delta.Bucket.Key, err)
	}
	return nil
}

func (r *PostgresRepository) RecordProductSale(ctx context.Context, sale domain.ProductSale, at time.Time) error {
	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO product_sales_summary (product_id, product_name, total_quantity_sold, last_sale_date, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id) DO UPDATE SET
			product_name        = EXCLUDED.product_name,
			total_quantity_sold = product_sales_summary.total_quantity_sold + EXCLUDED.total_quantity_sold,
			last_sale_date      = EXCLUDED.last_sale_date,
			last_updated        = EXCLUDED.last_updated`,
		sale.ProductID, sale.ProductName, sale.Quantity, sale.SaleDate, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record sale of %s: %w", sale.ProductID, err)
	}
	return nil
}

func (r *PostgresRepository) GetGlobal(ctx context.Context) (*domain.GlobalMetrics, error) {
	var m domain.GlobalMetrics
	err := r.db(ctx).QueryRow(ctx,
		`SELECT total_users, total_orders, total_revenue, last_updated FROM dashboard_metrics WHERE metrics_id = $1`,
		domain.GlobalMetricsID,
	).Scan(&m.TotalUsers, &m.TotalOrders, &m.TotalRevenue, &m.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGlobalMetricsNotFound
		}
		return nil, fmt.Errorf("failed to read global metrics: %w", err)
	}
	return &m, nil
}

const dailySelect = `SELECT date, bucket_start, new_users, orders_count, revenue, last_updated FROM daily_stats`

func (r *PostgresRepository) GetDaily(ctx context.Context, date string) (*domain.DailyStats, error) {
	var s domain.DailyStats
	err := r.db(ctx).QueryRow(ctx, dailySelect+` WHERE date = $1`, date).
		Scan(&s.Date, &s.Timestamp, &s.NewUsers, &s.OrdersCount, &s.Revenue, &s.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDailyStatsNotFound
		}
		return nil, fmt.Errorf("failed to read daily stats: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) ListDaily(ctx context.Context, from, to string) ([]*domain.DailyStats, error) {
	rows, err := r.db(ctx).Query(ctx, dailySelect+` WHERE date BETWEEN $1 AND $2 ORDER BY date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily stats: %w", err)
	}
	defer rows.Close()

	var result []*domain.DailyStats
	for rows.Next() {
		var s domain.DailyStats
		if err := rows.Scan(&s.Date, &s.Timestamp, &s.NewUsers, &s.OrdersCount, &s.Revenue, &s.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list daily stats: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) GetProductSales(ctx context.Context, productID string) (*domain.ProductSalesSummary, error) {
	var s domain.ProductSalesSummary
	err := r.db(ctx).QueryRow(ctx,
		`SELECT product_id, product_name, total_quantity_sold, last_sale_date, last_updated
		 FROM product_sales_summary WHERE product_id = $1`,
		productID,
	).Scan(&s.ProductID, &s.ProductName, &s.TotalQuantitySold, &s.LastSaleDate, &s.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductSalesNotFound
		}
		return nil, fmt.Errorf("failed to read product sales: %w", err)
	}
	return &s, nil
}

var (
	_ domain.AggregateRepository = (*PostgresRepository)(nil)
	_ domain.MetricsReader       = (*PostgresRepository)(nil)
)
