package database

import "context"

// MetricsDatabase stores one ProxiedRequestMetric per request answered by the pipeline
type MetricsDatabase interface {
	SaveProxiedRequestMetric(ctx context.Context, prm *ProxiedRequestMetric) error
	DeleteProxiedRequestMetricsOlderThanNDays(ctx context.Context, days int) error
	HealthCheck() error
}
