// package engine provides the chaining contract every middleware of the
// pipeline is written against, and the engine which runs a chain of them
package engine

import (
	"context"
	"errors"

	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/logging"
)

// ErrNoResponse is returned when a chain ends with neither a result nor an error
var ErrNoResponse = decode.NewInternalError("middleware chain ended without a response", nil)

// Handler handles a single request, writing its outcome into res.
type Handler interface {
	HandleRPC(ctx context.Context, req *decode.EVMRPCRequestEnvelope, res *decode.JsonRpcResponse) error
}

// HandlerFunc adapts a function into a Handler
type HandlerFunc func(ctx context.Context, req *decode.EVMRPCRequestEnvelope, res *decode.JsonRpcResponse) error

// HandleRPC calls f(ctx, req, res)
func (f HandlerFunc) HandleRPC(ctx context.Context, req *decode.EVMRPCRequestEnvelope, res *decode.JsonRpcResponse) error {
	return f(ctx, req, res)
}

// Middleware wraps the rest of the chain.
// Calling next proceeds, and any code after it post-processes the response.
// Returning without calling next ends the chain, returning an error ends it with that error.
type Middleware func(next Handler) Handler

// Provider sends a request and returns its response.
// The returned error is the response's json-rpc error, if any.
type Provider interface {
	SendRPC(ctx context.Context, req *decode.EVMRPCRequestEnvelope) (*decode.JsonRpcResponse, error)
}

// Engine runs requests through an ordered chain of middleware
type Engine struct {
	middlewares []Middleware
	handler     Handler
	logger      *logging.ServiceLogger
}

// New creates an engine with no middleware
func New(logger *logging.ServiceLogger) *Engine {
	return &Engine{
		logger: logger,
	}
}

// Push appends middleware to the end of the chain.
// Middleware must be pushed before the engine handles its first request.
func (e *Engine) Push(middlewares ...Middleware) {
	e.middlewares = append(e.middlewares, middlewares...)
	e.handler = e.build()
}

func (e *Engine) build() Handler {
	// the end of the chain does nothing, whoever is first to
	// write a result or error is the one answering
	var handler Handler = HandlerFunc(func(context.Context, *decode.EVMRPCRequestEnvelope, *decode.JsonRpcResponse) error {
		return nil
	})

	for i := len(e.middlewares) - 1; i >= 0; i-- {
		handler = e.middlewares[i](handler)
	}

	return handler
}

func (e *Engine) chain() Handler {
	if e.handler == nil {
		return e.build()
	}

	return e.handler
}

// HandleRPC runs req through the chain, implementing Handler so an engine
// can be nested inside another chain
func (e *Engine) HandleRPC(ctx context.Context, req *decode.EVMRPCRequestEnvelope, res *decode.JsonRpcResponse) error {
	return e.chain().HandleRPC(ctx, req, res)
}

// Handle runs req through the chain and always returns a json-rpc shaped response
func (e *Engine) Handle(ctx context.Context, req *decode.EVMRPCRequestEnvelope) *decode.JsonRpcResponse {
	res := decode.NewResponseFor(req)

	err := e.HandleRPC(ctx, req, res)
	if err == nil && !res.HasOutcome() {
		err = ErrNoResponse
	}

	if err != nil {
		e.logger.Trace().
			Str("method", req.Method).
			Err(err).
			Msg("request ended with error")

		res.Result = nil
		res.JsonRpcError = AsJsonRpcError(err)
	}

	return res
}

// SendRPC implements Provider
func (e *Engine) SendRPC(ctx context.Context, req *decode.EVMRPCRequestEnvelope) (*decode.JsonRpcResponse, error) {
	res := e.Handle(ctx, req)

	return res, res.Error()
}

// AsJsonRpcError returns err when it is a *decode.JsonRpcError
// and wraps it in an internal error otherwise
func AsJsonRpcError(err error) *decode.JsonRpcError {
	var rpcErr *decode.JsonRpcError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	return decode.NewInternalError(err.Error(), nil)
}
