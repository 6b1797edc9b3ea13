// package inflightmdw provides middleware collapsing concurrent identical requests
// into a single downstream call whose outcome is copied to every caller
package inflightmdw

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
	"github.com/kava-labs/evm-rpc-middleware/logging"
	"github.com/kava-labs/evm-rpc-middleware/service/cachemdw"
)

// Deduplicator tracks the requests currently in flight by fingerprint
type Deduplicator struct {
	mutex    sync.Mutex
	inFlight map[string]*call
	pending  atomic.Int64

	*logging.ServiceLogger
}

// call is a request in flight and the duplicates waiting on it, in arrival order
type call struct {
	waiters []*waiter
}

// waiter is a duplicate request, done is closed once its response is filled in
type waiter struct {
	ctx  context.Context
	req  *decode.EVMRPCRequestEnvelope
	res  *decode.JsonRpcResponse
	err  error
	done chan struct{}
}

// outcome is the response of the first request, shared read-only with every duplicate
type outcome struct {
	res *decode.JsonRpcResponse
	err error
}

func NewDeduplicator(logger *logging.ServiceLogger) *Deduplicator {
	if logger == nil {
		logger = logging.Nop()
	}

	return &Deduplicator{
		inFlight:      make(map[string]*call),
		ServiceLogger: logger,
	}
}

// Pending returns the number of requests waiting on a downstream call, first requests included
func (d *Deduplicator) Pending() int64 {
	return d.pending.Load()
}

// Middleware returns middleware which works in the following way:
// - requests which skip the cache or are never cached are passed on
// - the first request for a fingerprint is passed on, and forgotten as soon as it returns
// - requests arriving while it is outstanding wait for it and receive copies of its outcome,
// once the first request's own response is final and in the order they arrived
func (d *Deduplicator) Middleware() engine.Middleware {
	return func(next engine.Handler) engine.Handler {
		return engine.HandlerFunc(func(ctx context.Context, req *decode.EVMRPCRequestEnvelope, res *decode.JsonRpcResponse) error {
			if req.SkipCache {
				return next.HandleRPC(ctx, req, res)
			}

			fingerprint, ok := cachemdw.GetFingerprint(req, false)
			if !ok {
				return next.HandleRPC(ctx, req, res)
			}

			d.mutex.Lock()
			d.pending.Add(1)
			defer d.pending.Add(-1)

			if inFlight, found := d.inFlight[fingerprint]; found {
				w := &waiter{ctx: ctx, req: req, res: res, done: make(chan struct{})}
				inFlight.waiters = append(inFlight.waiters, w)
				d.mutex.Unlock()

				<-w.done

				return w.err
			}

			first := &call{}
			d.inFlight[fingerprint] = first
			d.mutex.Unlock()

			// duplicates must not fail because the first caller went away
			err := d.handleFirst(context.WithoutCancel(ctx), next, req, res)

			d.mutex.Lock()
			delete(d.inFlight, fingerprint)
			waiters := first.waiters
			d.mutex.Unlock()

			if len(waiters) > 0 {
				defer d.release(req, waiters, &outcome{res: res.Clone(), err: err})
			}

			return err
		})
	}
}

// release answers the waiters one at a time in arrival order
func (d *Deduplicator) release(req *decode.EVMRPCRequestEnvelope, waiters []*waiter, result *outcome) {
	d.Logger.Trace().
		Str("method", req.Method).
		Interface("id", req.ID).
		Int("waiters", len(waiters)).
		Msg("in-flight request resolved")

	for _, w := range waiters {
		w.err = d.deliver(w.ctx, w.req, w.res, result)
		close(w.done)
	}
}

// handleFirst runs the first request downstream, turning a panic into an error
// so it isn't raised again in every waiting duplicate
func (d *Deduplicator) handleFirst(
	ctx context.Context,
	next engine.Handler,
	req *decode.EVMRPCRequestEnvelope,
	res *decode.JsonRpcResponse,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.Logger.Error().
				Str("method", req.Method).
				Msgf("panic handling request: %v", r)
			err = decode.NewInternalError(fmt.Sprintf("panic handling request: %v", r), nil)
		}
	}()

	return next.HandleRPC(ctx, req, res)
}

// deliver copies the outcome of the first request onto the response of a duplicate
func (d *Deduplicator) deliver(
	ctx context.Context,
	req *decode.EVMRPCRequestEnvelope,
	res *decode.JsonRpcResponse,
	result *outcome,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.Logger.Error().
				Str("method", req.Method).
				Msgf("error delivering in-flight response: %v", r)
			err = decode.NewInternalError("failed to deliver in-flight response", nil)
		}
	}()

	d.Logger.Trace().
		Str("method", req.Method).
		Interface("id", req.ID).
		Msg("request answered by in-flight request")

	engine.MarkDeduplicated(ctx)
	res.CopyOutcome(result.res)

	if rpcErr, ok := result.err.(*decode.JsonRpcError); ok {
		return rpcErr.Clone()
	}

	return result.err
}
