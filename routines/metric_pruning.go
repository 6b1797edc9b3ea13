// package routines provides configuration and logic
// for running background routines such as metric pruning
package routines

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kava-labs/evm-rpc-middleware/clients/database"
	"github.com/kava-labs/evm-rpc-middleware/logging"
)

var ErrNilDatabase = errors.New("metric pruning routine requires a database")

// MetricPruningRoutineConfig wraps values used
// for creating a new metric pruning routine
type MetricPruningRoutineConfig struct {
	Interval                     time.Duration
	StartDelay                   time.Duration
	MaxRequestMetricsHistoryDays int
	Database                     database.MetricsDatabase
	Logger                       *logging.ServiceLogger
}

// MetricPruningRoutine can be used to
// run a background routine on a configurable interval
// to prune historical request metrics
type MetricPruningRoutine struct {
	id                           string
	interval                     time.Duration
	startDelay                   time.Duration
	maxRequestMetricsHistoryDays int
	db                           database.MetricsDatabase
	*logging.ServiceLogger
}

// Run runs the metric pruning routine until ctx is done, returning an
// error channel which any errors encountered during running will be sent on.
// The channel is closed when the routine stops.
func (mpr *MetricPruningRoutine) Run(ctx context.Context) <-chan error {
	errorChannel := make(chan error, 1)

	go func() {
		defer close(errorChannel)

		select {
		case <-ctx.Done():
			return
		case <-time.After(mpr.startDelay):
		}

		ticker := time.NewTicker(mpr.interval)
		defer ticker.Stop()

		for {
			mpr.Trace().Str("routine_id", mpr.id).Msg("pruning request metrics")

			if err := mpr.db.DeleteProxiedRequestMetricsOlderThanNDays(ctx, mpr.maxRequestMetricsHistoryDays); err != nil {
				mpr.Error().Str("routine_id", mpr.id).Err(err).Msg("error pruning request metrics")

				// drop the error if nobody is reading
				select {
				case errorChannel <- err:
				default:
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return errorChannel
}

// NewMetricPruningRoutine creates a new metric pruning routine
// using the provided config, returning the routine and error (if any)
func NewMetricPruningRoutine(config MetricPruningRoutineConfig) (*MetricPruningRoutine, error) {
	if config.Database == nil {
		return nil, ErrNilDatabase
	}

	if config.Interval <= 0 {
		return nil, errors.New("metric pruning routine interval must be greater than zero")
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &MetricPruningRoutine{
		id:                           uuid.New().String(),
		interval:                     config.Interval,
		startDelay:                   config.StartDelay,
		maxRequestMetricsHistoryDays: config.MaxRequestMetricsHistoryDays,
		db:                           config.Database,
		ServiceLogger:                logger,
	}, nil
}
