package blockrefmdw

import (
	"context"

	"github.com/kava-labs/evm-rpc-middleware/clients/blocktracker"
	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
	"github.com/kava-labs/evm-rpc-middleware/logging"
)

// NewRewriteMiddleware returns middleware replacing a "latest" (or omitted)
// block tag with the head block number before passing the request on.
// The request is modified in place.
func NewRewriteMiddleware(tracker blocktracker.BlockTracker, logger *logging.ServiceLogger) (engine.Middleware, error) {
	resolver, err := NewResolver(tracker, nil, logger)
	if err != nil {
		return nil, err
	}

	return func(next engine.Handler) engine.Handler {
		return engine.HandlerFunc(func(ctx context.Context, req *decode.EVMRPCRequestEnvelope, res *decode.JsonRpcResponse) error {
			if !isLatestTag(req) {
				return next.HandleRPC(ctx, req, res)
			}

			ref, err := resolver.Resolve(ctx, req)
			if err != nil {
				return err
			}

			req.SetBlockTag(decode.EncodeBlockNumber(ref.Number))

			return next.HandleRPC(ctx, req, res)
		})
	}, nil
}
