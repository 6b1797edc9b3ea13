package batchmdw

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
	"github.com/kava-labs/evm-rpc-middleware/logging"
)

const (
	CacheHeaderKey          = "X-Evm-Rpc-Cache-Status"
	CacheHitHeaderValue     = "HIT"
	CacheMissHeaderValue    = "MISS"
	CachePartialHeaderValue = "PARTIAL"

	DefaultMaxConcurrency = 20
)

// RequestHandler answers a single request, satisfied by *engine.Engine
type RequestHandler interface {
	Handle(ctx context.Context, req *decode.EVMRPCRequestEnvelope) *decode.JsonRpcResponse
}

// BatchProcessor answers the requests of a batch concurrently
type BatchProcessor struct {
	handler        RequestHandler
	maxConcurrency int
	*logging.ServiceLogger
}

// BatchResult holds the responses of a batch in request order
// and the cache status of the batch as a whole
type BatchResult struct {
	Responses   []*decode.JsonRpcResponse
	CacheStatus string
}

func NewBatchProcessor(handler RequestHandler, maxConcurrency int, logger *logging.ServiceLogger) *BatchProcessor {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}

	if logger == nil {
		logger = logging.Nop()
	}

	return &BatchProcessor{
		handler:        handler,
		maxConcurrency: maxConcurrency,
		ServiceLogger:  logger,
	}
}

// Process runs every request of reqs through the handler, a nil entry
// (a `null` in the batch array) is answered with an invalid request error
func (bp *BatchProcessor) Process(ctx context.Context, reqs []*decode.EVMRPCRequestEnvelope) BatchResult {
	responses := make([]*decode.JsonRpcResponse, len(reqs))

	var cacheHits atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(bp.maxConcurrency)

	for i, req := range reqs {
		i, req := i, req

		if req == nil {
			responses[i] = &decode.JsonRpcResponse{
				Version:      "2.0",
				JsonRpcError: decode.NewJsonRpcError(decode.ErrorCodeInvalidRequest, "invalid request", nil),
			}
			continue
		}

		group.Go(func() error {
			reqCtx, info := engine.WithRequestInfo(groupCtx)

			responses[i] = bp.handler.Handle(reqCtx, req)

			if info.CacheHit() {
				cacheHits.Add(1)
			}

			return nil
		})
	}

	// handlers answer failures as json-rpc errors, the group never fails
	_ = group.Wait()

	bp.Debug().
		Int("size", len(reqs)).
		Int64("cache_hits", cacheHits.Load()).
		Msg("processed batch")

	return BatchResult{
		Responses:   responses,
		CacheStatus: CacheHitValue(len(reqs), int(cacheHits.Load())),
	}
}

// CacheHitValue handles the combined response's cache status header
func CacheHitValue(totalNum, cacheHits int) string {
	// totalNum should never be 0. if it is, this will indicate a cache MISS.
	if cacheHits == 0 || totalNum == 0 {
		// case 1. no results from cache => MISS
		return CacheMissHeaderValue
	} else if cacheHits == totalNum {
		// case 2: all results from cache => HIT
		return CacheHitHeaderValue
	}
	// case 3: some results from cache => PARTIAL
	return CachePartialHeaderValue
}
