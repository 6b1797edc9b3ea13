package noop

import (
	"context"

	"github.com/kava-labs/evm-rpc-middleware/clients/database"
)

// Noop is a metrics database that drops every metric,
// used when the metric database is disabled
type Noop struct{}

func New() *Noop {
	return &Noop{}
}

func (n *Noop) SaveProxiedRequestMetric(context.Context, *database.ProxiedRequestMetric) error {
	return nil
}

func (n *Noop) DeleteProxiedRequestMetricsOlderThanNDays(context.Context, int) error {
	return nil
}

func (n *Noop) HealthCheck() error {
	return nil
}

var _ database.MetricsDatabase = (*Noop)(nil)
