package engine

import (
	"context"

	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/logging"
)

// ProviderFunc adapts a function into a Provider
type ProviderFunc func(ctx context.Context, req *decode.EVMRPCRequestEnvelope) (*decode.JsonRpcResponse, error)

// SendRPC calls f(ctx, req)
func (f ProviderFunc) SendRPC(ctx context.Context, req *decode.EVMRPCRequestEnvelope) (*decode.JsonRpcResponse, error) {
	return f(ctx, req)
}

// ProviderAsMiddleware returns a terminal middleware answering every
// request with the outcome of provider
func ProviderAsMiddleware(provider Provider) Middleware {
	return func(_ Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *decode.EVMRPCRequestEnvelope, res *decode.JsonRpcResponse) error {
			providerRes, err := provider.SendRPC(ctx, req)
			if providerRes != nil {
				res.CopyOutcome(providerRes)
			}

			return err
		})
	}
}

// ProviderFromMiddleware returns a provider running requests through a single middleware
func ProviderFromMiddleware(middleware Middleware, logger *logging.ServiceLogger) Provider {
	e := New(logger)
	e.Push(middleware)

	return e
}
