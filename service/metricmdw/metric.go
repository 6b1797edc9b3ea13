// package metricmdw provides the outermost middleware of the pipeline,
// recording every answered request to prometheus and the metrics database
package metricmdw

import (
	"context"
	"math"
	"time"

	"github.com/kava-labs/evm-rpc-middleware/clients/database"
	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
	"github.com/kava-labs/evm-rpc-middleware/logging"
	"github.com/kava-labs/evm-rpc-middleware/metrics"
)

const saveTimeout = 5 * time.Second

// NewMiddleware creates a middleware recording each request after the rest of
// the chain answered it, metrics are saved to db without blocking the request
func NewMiddleware(db database.MetricsDatabase, logger *logging.ServiceLogger) engine.Middleware {
	return func(next engine.Handler) engine.Handler {
		return engine.HandlerFunc(func(ctx context.Context, req *decode.EVMRPCRequestEnvelope, res *decode.JsonRpcResponse) error {
			info := engine.RequestInfoFromContext(ctx)
			if info == nil {
				ctx, info = engine.WithRequestInfo(ctx)
			}

			requestTime := time.Now()

			err := next.HandleRPC(ctx, req, res)

			latency := time.Since(requestTime)

			rpcErr := res.JsonRpcError
			if err != nil {
				rpcErr = engine.AsJsonRpcError(err)
			}

			metrics.RecordRequest(req.Method, rpcErr != nil, latency)
			if info.CacheHit() {
				metrics.RecordCacheHit(req.Method)
			}
			if info.Deduplicated() {
				metrics.RecordDeduplicated(req.Method)
			}

			metric := &database.ProxiedRequestMetric{
				MethodName:                  req.Method,
				BlockNumber:                 requestBlockNumber(req),
				ResponseLatencyMilliseconds: latency.Milliseconds(),
				RequestTime:                 requestTime,
				CacheHit:                    info.CacheHit(),
				Deduplicated:                info.Deduplicated(),
				Origin:                      req.Origin,
			}
			if rpcErr != nil {
				code := int64(rpcErr.Code)
				metric.ErrorCode = &code
			}

			go func() {
				saveCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
				defer cancel()

				if saveErr := db.SaveProxiedRequestMetric(saveCtx, metric); saveErr != nil {
					logger.Error().
						Str("method", metric.MethodName).
						Err(saveErr).
						Msg("error saving request metric")
				}
			}()

			return err
		})
	}
}

// requestBlockNumber reads the block tag after the chain ran,
// so tags resolved in place by block reference middleware are recorded as numbers
func requestBlockNumber(req *decode.EVMRPCRequestEnvelope) *int64 {
	tag, err := req.BlockTag()
	if err != nil || decode.IsSymbolicBlockTag(tag) {
		return nil
	}

	blockNumber, err := decode.ParseBlockNumber(tag)
	if err != nil || blockNumber > math.MaxInt64 {
		return nil
	}

	n := int64(blockNumber)

	return &n
}
