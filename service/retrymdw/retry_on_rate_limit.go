package retrymdw

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
	"github.com/kava-labs/evm-rpc-middleware/logging"
	"github.com/kava-labs/evm-rpc-middleware/metrics"
)

const (
	DefaultRetryOnRateLimitMaxAttempts   = 5
	DefaultRetryOnRateLimitRetryInterval = 800 * time.Millisecond
)

// RetryOnRateLimitConfig wraps values used for creating a new retry on rate limit middleware
type RetryOnRateLimitConfig struct {
	MaxAttempts   int
	RetryInterval time.Duration
}

// NewRetryOnRateLimitMiddleware returns middleware passing requests on again while
// the rest of the chain fails with a limit exceeded error, up to config.MaxAttempts times.
// Any other outcome is returned as is.
func NewRetryOnRateLimitMiddleware(config RetryOnRateLimitConfig, logger *logging.ServiceLogger) engine.Middleware {
	if logger == nil {
		logger = logging.Nop()
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultRetryOnRateLimitMaxAttempts
	}

	retryInterval := config.RetryInterval
	if retryInterval < 0 {
		retryInterval = DefaultRetryOnRateLimitRetryInterval
	}

	return func(next engine.Handler) engine.Handler {
		return engine.HandlerFunc(func(ctx context.Context, req *decode.EVMRPCRequestEnvelope, res *decode.JsonRpcResponse) error {
			policy := backoff.WithContext(
				backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), uint64(maxAttempts-1)),
				ctx,
			)

			return backoff.RetryNotify(func() error {
				res.Result = nil
				res.JsonRpcError = nil

				err := next.HandleRPC(ctx, req, res)
				if err == nil || IsLimitExceeded(err) {
					return err
				}

				return backoff.Permanent(err)
			}, policy, func(err error, wait time.Duration) {
				metrics.RecordRetry("rate_limit")
				logger.Debug().
					Str("method", req.Method).
					Dur("retry_in", wait).
					Err(err).
					Msg("request rate limited, retrying")
			})
		})
	}
}

// IsLimitExceeded reports whether err is a limit exceeded json-rpc error,
// or an internal error wrapping one returned by the upstream
func IsLimitExceeded(err error) bool {
	var rpcErr *decode.JsonRpcError
	if !errors.As(err, &rpcErr) {
		return false
	}

	if rpcErr.Code == decode.ErrorCodeLimitExceeded {
		return true
	}

	var upstreamErr decode.JsonRpcError
	if len(rpcErr.Data) == 0 || json.Unmarshal(rpcErr.Data, &upstreamErr) != nil {
		return false
	}

	return upstreamErr.Code == decode.ErrorCodeLimitExceeded
}
