package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
)

// Reply is what a RecordingProvider answers a request with
type Reply struct {
	Result json.RawMessage
	Error  *decode.JsonRpcError
}

// RecordingProvider answers requests from a reply function
// and records every request it receives
type RecordingProvider struct {
	mutex    sync.Mutex
	requests []*decode.EVMRPCRequestEnvelope
	reply    func(call int, req *decode.EVMRPCRequestEnvelope) Reply
	// Gate, when set, blocks every call until it is closed
	Gate chan struct{}
	// Started receives once per call before it blocks on Gate
	Started chan struct{}
}

var _ engine.Provider = (*RecordingProvider)(nil)

// NewRecordingProvider creates a provider answering with reply,
// call is the zero based index of the request
func NewRecordingProvider(reply func(call int, req *decode.EVMRPCRequestEnvelope) Reply) *RecordingProvider {
	return &RecordingProvider{reply: reply}
}

// NewResultProvider creates a provider answering every request with result
func NewResultProvider(result string) *RecordingProvider {
	return NewRecordingProvider(func(int, *decode.EVMRPCRequestEnvelope) Reply {
		return Reply{Result: json.RawMessage(result)}
	})
}

func (p *RecordingProvider) SendRPC(ctx context.Context, req *decode.EVMRPCRequestEnvelope) (*decode.JsonRpcResponse, error) {
	p.mutex.Lock()
	call := len(p.requests)
	p.requests = append(p.requests, req.Clone())
	p.mutex.Unlock()

	if p.Started != nil {
		p.Started <- struct{}{}
	}

	if p.Gate != nil {
		<-p.Gate
	}

	reply := p.reply(call, req)

	res := decode.NewResponseFor(req)
	res.Result = reply.Result
	res.JsonRpcError = reply.Error
	if reply.Error != nil {
		return res, reply.Error
	}

	return res, nil
}

// Middleware returns the provider as a terminal middleware
func (p *RecordingProvider) Middleware() engine.Middleware {
	return engine.ProviderAsMiddleware(p)
}

// Calls returns the number of requests received
func (p *RecordingProvider) Calls() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return len(p.requests)
}

// Requests returns copies of the requests received
func (p *RecordingProvider) Requests() []*decode.EVMRPCRequestEnvelope {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return append([]*decode.EVMRPCRequestEnvelope(nil), p.requests...)
}

// NewRequest builds a json-rpc 2.0 request with id 1
func NewRequest(method string, params ...interface{}) *decode.EVMRPCRequestEnvelope {
	if params == nil {
		params = []interface{}{}
	}

	return &decode.EVMRPCRequestEnvelope{
		JSONRPCVersion: "2.0",
		ID:             1,
		Method:         method,
		Params:         params,
	}
}
