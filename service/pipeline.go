package service

import (
	"fmt"

	"github.com/kava-labs/evm-rpc-middleware/clients/blocktracker"
	"github.com/kava-labs/evm-rpc-middleware/clients/cache"
	"github.com/kava-labs/evm-rpc-middleware/clients/database"
	"github.com/kava-labs/evm-rpc-middleware/clients/database/noop"
	"github.com/kava-labs/evm-rpc-middleware/clients/transport"
	"github.com/kava-labs/evm-rpc-middleware/config"
	"github.com/kava-labs/evm-rpc-middleware/engine"
	"github.com/kava-labs/evm-rpc-middleware/logging"
	"github.com/kava-labs/evm-rpc-middleware/service/blockrefmdw"
	"github.com/kava-labs/evm-rpc-middleware/service/cachemdw"
	"github.com/kava-labs/evm-rpc-middleware/service/inflightmdw"
	"github.com/kava-labs/evm-rpc-middleware/service/inspectormdw"
	"github.com/kava-labs/evm-rpc-middleware/service/metricmdw"
	"github.com/kava-labs/evm-rpc-middleware/service/retrymdw"
)

// PipelineConfig wraps values used for creating a new Pipeline
type PipelineConfig struct {
	// BlockRefMode is one of the config.BLOCK_REF_MODE_* values
	BlockRefMode     string
	Fetch            transport.FetchConfig
	RetryOnEmpty     retrymdw.RetryOnEmptyConfig
	RetryOnRateLimit retrymdw.RetryOnRateLimitConfig
}

// Pipeline is the middleware chain answering every json-rpc request:
//
//	metric -> inflight -> cache -> block ref -> retry on empty -> inspector -> retry on rate limit -> fetch
//
// retry on empty sends its attempts straight to the upstream part of the chain.
type Pipeline struct {
	*engine.Engine
	// Cache is nil when no block cache is configured
	Cache        *cachemdw.ServiceCache
	Deduplicator *inflightmdw.Deduplicator
}

// NewPipelineConfig builds the pipeline config from the service config
func NewPipelineConfig(serviceConfig config.Config) PipelineConfig {
	return PipelineConfig{
		BlockRefMode: serviceConfig.BlockRefMode,
		Fetch: transport.FetchConfig{
			RPCURL:              serviceConfig.UpstreamRPCURL,
			OriginHTTPHeaderKey: serviceConfig.UpstreamOriginHeaderKey,
			MaxAttempts:         serviceConfig.FetchMaxAttempts,
			RetryInterval:       serviceConfig.FetchRetryInterval,
			Timeout:             serviceConfig.FetchTimeout,
		},
		RetryOnEmpty: retrymdw.RetryOnEmptyConfig{
			MaxAttempts:   serviceConfig.RetryOnEmptyMaxAttempts,
			RetryInterval: serviceConfig.RetryOnEmptyInterval,
		},
		RetryOnRateLimit: retrymdw.RetryOnRateLimitConfig{
			MaxAttempts:   serviceConfig.RetryOnRateLimitMaxAttempts,
			RetryInterval: serviceConfig.RetryOnRateLimitInterval,
		},
	}
}

// NewPipeline assembles the pipeline, blockCache may be nil to disable caching
func NewPipeline(
	pipelineConfig PipelineConfig,
	tracker blocktracker.BlockTracker,
	blockCache cache.BlockCache,
	db database.MetricsDatabase,
	logger *logging.ServiceLogger,
) (*Pipeline, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	if db == nil {
		db = noop.New()
	}

	fetch, err := transport.NewFetchMiddleware(pipelineConfig.Fetch, logger.Component("fetch"))
	if err != nil {
		return nil, err
	}

	upstream := engine.New(logger)
	upstream.Push(
		retrymdw.NewRetryOnRateLimitMiddleware(pipelineConfig.RetryOnRateLimit, logger.Component("retry_on_rate_limit")),
		fetch,
	)

	retryOnEmpty, err := retrymdw.NewRetryOnEmptyMiddleware(upstream, tracker, pipelineConfig.RetryOnEmpty, logger.Component("retry_on_empty"))
	if err != nil {
		return nil, err
	}

	inspector, err := inspectormdw.NewMiddleware(tracker, logger.Component("inspector"))
	if err != nil {
		return nil, err
	}

	downstream := engine.New(logger)
	downstream.Push(retryOnEmpty, inspector, engine.ProviderAsMiddleware(upstream))

	pipeline := &Pipeline{
		Engine:       engine.New(logger),
		Deduplicator: inflightmdw.NewDeduplicator(logger.Component("inflight")),
	}

	pipeline.Push(
		metricmdw.NewMiddleware(db, logger.Component("metric")),
		pipeline.Deduplicator.Middleware(),
	)

	if blockCache != nil {
		pipeline.Cache, err = cachemdw.NewServiceCache(blockCache, tracker, logger.Component("cache"))
		if err != nil {
			return nil, err
		}

		pipeline.Push(pipeline.Cache.Middleware())
	}

	switch pipelineConfig.BlockRefMode {
	case config.BLOCK_REF_MODE_REWRITE, "":
		rewrite, err := blockrefmdw.NewRewriteMiddleware(tracker, logger.Component("block_ref"))
		if err != nil {
			return nil, err
		}

		pipeline.Push(rewrite, engine.ProviderAsMiddleware(downstream))
	case config.BLOCK_REF_MODE_SHADOW:
		shadow, err := blockrefmdw.NewShadowMiddleware(downstream, tracker, logger.Component("block_ref"))
		if err != nil {
			return nil, err
		}

		// shadow answers latest requests itself, the rest reach downstream
		pipeline.Push(shadow, engine.ProviderAsMiddleware(downstream))
	case config.BLOCK_REF_MODE_NONE:
		pipeline.Push(engine.ProviderAsMiddleware(downstream))
	default:
		return nil, fmt.Errorf("unknown block ref mode %q", pipelineConfig.BlockRefMode)
	}

	return pipeline, nil
}
