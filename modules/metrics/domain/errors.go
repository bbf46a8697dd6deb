package domain

import "errors"

var (
	ErrGlobalMetricsNotFound = errors.New("global metrics not found")
	ErrDailyStatsNotFound    = errors.New("daily stats not found")
	ErrProductSalesNotFound  = errors.New("product sales summary not found")
	ErrInvalidDate           = errors.New("date must be formatted as YYYY-MM-DD")
	ErrInvalidDateRange      = errors.New("invalid date range")
)
