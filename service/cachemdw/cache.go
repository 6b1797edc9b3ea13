package cachemdw

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/kava-labs/evm-rpc-middleware/clients/blocktracker"
	"github.com/kava-labs/evm-rpc-middleware/clients/cache"
	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/logging"
	"github.com/kava-labs/evm-rpc-middleware/service/blockrefmdw"
)

// ServiceCache is responsible for caching EVM requests and provides corresponding middleware
// ServiceCache can work with any underlying storage which implements the cache.BlockCache interface
type ServiceCache struct {
	cacheClient cache.BlockCache
	resolver    *blockrefmdw.Resolver

	*logging.ServiceLogger
}

// NewServiceCache creates a ServiceCache storing results in cacheClient
// at the block numbers resolved by tracker
func NewServiceCache(
	cacheClient cache.BlockCache,
	tracker blocktracker.BlockTracker,
	logger *logging.ServiceLogger,
) (*ServiceCache, error) {
	if cacheClient == nil {
		return nil, ErrNilCache
	}

	if logger == nil {
		logger = logging.Nop()
	}

	c := &ServiceCache{
		cacheClient:   cacheClient,
		ServiceLogger: logger,
	}

	resolver, err := blockrefmdw.NewResolver(tracker, c.clearBefore, logger)
	if err != nil {
		return nil, err
	}
	c.resolver = resolver

	return c, nil
}

// clearBefore is called with the head every time "latest" is resolved
func (c *ServiceCache) clearBefore(ctx context.Context, blockNumber uint64) {
	if err := c.cacheClient.ClearBefore(ctx, blockNumber); err != nil {
		c.Logger.Error().
			Uint64("block_number", blockNumber).
			Err(err).
			Msg("error clearing blocks from cache")
	}
}

// GetCachedResult returns the result cached for req at blockNumber.
// cache.ErrNotFound is returned on a miss.
func (c *ServiceCache) GetCachedResult(
	ctx context.Context,
	blockNumber uint64,
	req *decode.EVMRPCRequestEnvelope,
) (json.RawMessage, error) {
	fingerprint, ok := GetFingerprint(req, true)
	if !ok || !CanCacheRequest(req) {
		return nil, ErrRequestIsNotCacheable
	}

	return c.cacheClient.Get(ctx, blockNumber, fingerprint)
}

// CacheResult stores the result of res for req at blockNumber.
// Error responses and results rejected by CanCacheResult are not stored.
func (c *ServiceCache) CacheResult(
	ctx context.Context,
	blockNumber uint64,
	req *decode.EVMRPCRequestEnvelope,
	res *decode.JsonRpcResponse,
) error {
	fingerprint, ok := GetFingerprint(req, true)
	if !ok || !CanCacheRequest(req) {
		return ErrRequestIsNotCacheable
	}

	if res.JsonRpcError != nil || !CanCacheResult(req, res.Result) {
		return ErrResponseIsNotCacheable
	}

	return c.cacheClient.Set(ctx, blockNumber, fingerprint, res.Result)
}

// resolve returns the block number req reads from and false when req
// can't be tied to a block and should pass the cache by
func (c *ServiceCache) resolve(ctx context.Context, req *decode.EVMRPCRequestEnvelope) (uint64, bool, error) {
	ref, err := c.resolver.Resolve(ctx, req)
	if errors.Is(err, decode.ErrInvalidBlockTag) {
		c.Logger.Debug().
			Str("method", req.Method).
			Err(err).
			Msg("can't resolve block tag, skipping cache")
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	if ref.Pending {
		return 0, false, nil
	}

	return ref.Number, true, nil
}

func (c *ServiceCache) Healthcheck(ctx context.Context) error {
	return c.cacheClient.Healthcheck(ctx)
}
