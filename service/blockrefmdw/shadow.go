package blockrefmdw

import (
	"context"

	"github.com/kava-labs/evm-rpc-middleware/clients/blocktracker"
	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
	"github.com/kava-labs/evm-rpc-middleware/logging"
)

// NewShadowMiddleware returns middleware answering "latest" (or omitted) block tag
// requests by sending a copy pinned to the head block number to provider.
// The caller's request is left untouched and the chain ends with the copy's outcome,
// every other request is passed on.
func NewShadowMiddleware(
	provider engine.Provider,
	tracker blocktracker.BlockTracker,
	logger *logging.ServiceLogger,
) (engine.Middleware, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}

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

			child := req.Clone()
			child.SetBlockTag(decode.EncodeBlockNumber(ref.Number))

			childRes, err := provider.SendRPC(ctx, child)
			if childRes != nil {
				res.CopyOutcome(childRes)
			}

			return err
		})
	}, nil
}
