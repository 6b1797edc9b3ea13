package database

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// ProxiedRequestMetric contains request metrics for
// a single request answered by the middleware pipeline
type ProxiedRequestMetric struct {
	bun.BaseModel `bun:"table:proxied_request_metrics,alias:prm"`

	ID                          int64 `bun:",pk,autoincrement"`
	MethodName                  string
	BlockNumber                 *int64
	ResponseLatencyMilliseconds int64
	RequestTime                 time.Time
	CacheHit                    bool
	Deduplicated                bool
	ErrorCode                   *int64
	Origin                      string
}

// SaveProxiedRequestMetric saves prm to
// the database, returning error (if any)
func (pg *PostgresClient) SaveProxiedRequestMetric(ctx context.Context, prm *ProxiedRequestMetric) error {
	_, err := pg.NewInsert().Model(prm).Exec(ctx)

	return err
}

// DeleteProxiedRequestMetricsOlderThanNDays deletes
// all proxied request metrics older than the specified
// days, returning error (if any)
func (pg *PostgresClient) DeleteProxiedRequestMetricsOlderThanNDays(ctx context.Context, days int) error {
	_, err := pg.NewDelete().
		Model((*ProxiedRequestMetric)(nil)).
		Where("request_time < now() - interval '1 day' * ?", days).
		Exec(ctx)

	return err
}

var _ MetricsDatabase = (*PostgresClient)(nil)
