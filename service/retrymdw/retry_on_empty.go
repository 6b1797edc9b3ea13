package retrymdw

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/kava-labs/evm-rpc-middleware/clients/blocktracker"
	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
	"github.com/kava-labs/evm-rpc-middleware/logging"
	"github.com/kava-labs/evm-rpc-middleware/metrics"
)

const (
	DefaultRetryOnEmptyMaxAttempts   = 10
	DefaultRetryOnEmptyRetryInterval = time.Second
)

var (
	ErrNilProvider = errors.New("retry on empty middleware requires a provider")
	// ErrRetriesExhausted is returned when every attempt came back empty
	ErrRetriesExhausted = decode.NewInternalError("retries exhausted", nil)

	errEmptyResult = errors.New("empty result")
)

// RetryOnEmptyConfig wraps values used for creating a new retry on empty middleware
type RetryOnEmptyConfig struct {
	MaxAttempts   int
	RetryInterval time.Duration
}

// NewRetryOnEmptyMiddleware returns middleware sending requests pinned to a block number
// at or below the head straight to provider, until the result is not empty or
// config.MaxAttempts is reached. Such requests end the chain, every other request is passed on.
func NewRetryOnEmptyMiddleware(
	provider engine.Provider,
	tracker blocktracker.BlockTracker,
	config RetryOnEmptyConfig,
	logger *logging.ServiceLogger,
) (engine.Middleware, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}

	if tracker == nil {
		return nil, blocktracker.ErrNilTracker
	}

	if logger == nil {
		logger = logging.Nop()
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultRetryOnEmptyMaxAttempts
	}

	retryInterval := config.RetryInterval
	if retryInterval < 0 {
		retryInterval = DefaultRetryOnEmptyRetryInterval
	}

	return func(next engine.Handler) engine.Handler {
		return engine.HandlerFunc(func(ctx context.Context, req *decode.EVMRPCRequestEnvelope, res *decode.JsonRpcResponse) error {
			blockNumber, ok := pinnedBlockNumber(req)
			if !ok {
				return next.HandleRPC(ctx, req, res)
			}

			head, err := tracker.LatestBlock(ctx)
			if err != nil {
				return err
			}

			// the block doesn't exist yet, so an empty result is the right answer
			if blockNumber > head {
				return next.HandleRPC(ctx, req, res)
			}

			child := req.Clone()

			var (
				childRes *decode.JsonRpcResponse
				attempt  int
			)

			policy := backoff.WithContext(
				backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), uint64(maxAttempts-1)),
				ctx,
			)

			err = backoff.RetryNotify(func() error {
				attempt++

				attemptRes, err := provider.SendRPC(ctx, child)
				if err != nil {
					return err
				}

				if attemptRes.IsResultEmpty() {
					return errEmptyResult
				}

				childRes = attemptRes

				return nil
			}, policy, func(err error, wait time.Duration) {
				metrics.RecordRetry("empty_result")
				logger.Debug().
					Str("method", req.Method).
					Uint64("block_number", blockNumber).
					Int("attempt", attempt).
					Dur("retry_in", wait).
					Err(err).
					Msg("retrying request")
			})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}

				logger.Error().
					Str("method", req.Method).
					Uint64("block_number", blockNumber).
					Int("attempts", attempt).
					Err(err).
					Msg("retries exhausted")

				return ErrRetriesExhausted.Clone()
			}

			res.CopyOutcome(childRes)

			return nil
		})
	}, nil
}

// pinnedBlockNumber returns the block number of requests whose block tag is a number
func pinnedBlockNumber(req *decode.EVMRPCRequestEnvelope) (uint64, bool) {
	if !req.HasBlockTagParam() {
		return 0, false
	}

	tag, err := req.BlockTag()
	if err != nil || decode.IsSymbolicBlockTag(tag) {
		return 0, false
	}

	blockNumber, err := decode.ParseBlockNumber(tag)
	if err != nil {
		return 0, false
	}

	return blockNumber, true
}
