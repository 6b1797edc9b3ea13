package cachemdw

import (
	"context"
	"errors"

	"github.com/kava-labs/evm-rpc-middleware/clients/cache"
	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
)

// Middleware returns middleware which works in the following way:
// - requests which skip the cache or can't be cached are passed on
// - the block tag is resolved to a block number, resolving "latest" clears older blocks
// - on a hit the cached result answers the request and the chain ends
// - on a miss the request is passed on and a cacheable result is stored on the way back
func (c *ServiceCache) Middleware() engine.Middleware {
	return func(next engine.Handler) engine.Handler {
		return engine.HandlerFunc(func(ctx context.Context, req *decode.EVMRPCRequestEnvelope, res *decode.JsonRpcResponse) error {
			if req.SkipCache || !CanCacheRequest(req) {
				return next.HandleRPC(ctx, req, res)
			}

			blockNumber, ok, err := c.resolve(ctx, req)
			if err != nil {
				return err
			}
			if !ok {
				return next.HandleRPC(ctx, req, res)
			}

			cached, err := c.GetCachedResult(ctx, blockNumber, req)
			if err == nil {
				c.Logger.Trace().
					Str("method", req.Method).
					Uint64("block_number", blockNumber).
					Msg("cache hit")

				res.Result = cached
				engine.MarkCacheHit(ctx)

				return nil
			}
			if !errors.Is(err, cache.ErrNotFound) {
				// log unexpected error and treat it as a miss
				c.Logger.Error().
					Str("method", req.Method).
					Err(err).
					Msg("error during getting result from cache")
			}

			if err := next.HandleRPC(ctx, req, res); err != nil {
				return err
			}

			err = c.CacheResult(ctx, blockNumber, req, res)
			switch {
			case err == nil:
				c.Logger.Trace().
					Str("method", req.Method).
					Uint64("block_number", blockNumber).
					Msg("cached result")
			case errors.Is(err, ErrResponseIsNotCacheable):
				// empty results and errors are left uncached
			default:
				c.Logger.Error().
					Str("method", req.Method).
					Err(err).
					Msg("error during caching result")
			}

			return nil
		})
	}
}
