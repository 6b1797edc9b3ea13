// package inspectormdw provides middleware which asks the block tracker for a new head
// when a response refers to a block past the head it knows
package inspectormdw

import (
	"context"
	"encoding/json"

	"github.com/kava-labs/evm-rpc-middleware/clients/blocktracker"
	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
	"github.com/kava-labs/evm-rpc-middleware/logging"
)

// methods whose result carries the number of the block the transaction was included in
var futureBlockRefMethods = map[string]bool{
	"eth_getTransactionByHash":  true,
	"eth_getTransactionReceipt": true,
}

// NewMiddleware returns middleware inspecting the blockNumber of transaction results.
// A number past the tracker's current head triggers one head refresh,
// refresh errors are logged and never fail the request.
func NewMiddleware(tracker blocktracker.BlockTracker, logger *logging.ServiceLogger) (engine.Middleware, error) {
	if tracker == nil {
		return nil, blocktracker.ErrNilTracker
	}

	if logger == nil {
		logger = logging.Nop()
	}

	return func(next engine.Handler) engine.Handler {
		return engine.HandlerFunc(func(ctx context.Context, req *decode.EVMRPCRequestEnvelope, res *decode.JsonRpcResponse) error {
			if !futureBlockRefMethods[req.Method] {
				return next.HandleRPC(ctx, req, res)
			}

			if err := next.HandleRPC(ctx, req, res); err != nil {
				return err
			}

			blockNumber, ok := resultBlockNumber(res.Result)
			if !ok {
				return nil
			}

			// an unknown head is never refreshed from here, the tracker's own polling fetches it
			head, known := tracker.CurrentBlock()
			if !known || blockNumber <= head {
				return nil
			}

			logger.Debug().
				Str("method", req.Method).
				Uint64("block_number", blockNumber).
				Uint64("head", head).
				Msg("result refers to a block past the head, refreshing head")

			if _, err := tracker.CheckForLatestBlock(ctx); err != nil {
				logger.Error().
					Err(err).
					Msg("error refreshing head")
			}

			return nil
		})
	}, nil
}

// resultBlockNumber returns the string blockNumber field of an object result
func resultBlockNumber(result json.RawMessage) (uint64, bool) {
	var fields map[string]interface{}
	if err := json.Unmarshal(result, &fields); err != nil || fields == nil {
		return 0, false
	}

	raw, ok := fields["blockNumber"].(string)
	if !ok || raw == "" {
		return 0, false
	}

	blockNumber, err := decode.ParseBlockNumber(raw)
	if err != nil {
		return 0, false
	}

	return blockNumber, true
}
