package cachemdw_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/evm-rpc-middleware/clients/cache"
	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
	"github.com/kava-labs/evm-rpc-middleware/logging"
	"github.com/kava-labs/evm-rpc-middleware/service/cachemdw"
	"github.com/kava-labs/evm-rpc-middleware/testutil"
)

var testContext = context.Background()

type testPipeline struct {
	engine   *engine.Engine
	cache    *cache.InMemoryCache
	tracker  *testutil.StaticBlockTracker
	upstream *testutil.RecordingProvider
}

func newTestPipeline(t *testing.T, head uint64, upstream *testutil.RecordingProvider) *testPipeline {
	t.Helper()

	inMemoryCache := cache.NewInMemoryCache()
	tracker := testutil.NewStaticBlockTracker(head)

	serviceCache, err := cachemdw.NewServiceCache(inMemoryCache, tracker, logging.Nop())
	require.NoError(t, err)

	e := engine.New(logging.Nop())
	e.Push(serviceCache.Middleware(), upstream.Middleware())

	return &testPipeline{
		engine:   e,
		cache:    inMemoryCache,
		tracker:  tracker,
		upstream: upstream,
	}
}

func TestUnitTestNewServiceCacheRequiresCollaborators(t *testing.T) {
	_, err := cachemdw.NewServiceCache(nil, testutil.NewStaticBlockTracker(1), logging.Nop())
	require.ErrorIs(t, err, cachemdw.ErrNilCache)

	_, err = cachemdw.NewServiceCache(cache.NewInMemoryCache(), nil, logging.Nop())
	require.Error(t, err)
}

func TestUnitTestLatestBalanceServedFromCache(t *testing.T) {
	p := newTestPipeline(t, 0x100, testutil.NewResultProvider(`"0x3e8"`))

	ctx, info := engine.WithRequestInfo(testContext)
	first := p.engine.Handle(ctx, testutil.NewRequest("eth_getBalance", "0xabc", "latest"))
	require.Nil(t, first.JsonRpcError)
	require.False(t, info.CacheHit())

	// cached under the resolved head
	cached, err := p.cache.Get(testContext, 0x100, `eth_getBalance:["0xabc"]`)
	require.NoError(t, err)
	require.Equal(t, `"0x3e8"`, string(cached))

	ctx, info = engine.WithRequestInfo(testContext)
	second := testutil.NewRequest("eth_getBalance", "0xabc", "latest")
	second.ID = 2
	res := p.engine.Handle(ctx, second)

	require.Nil(t, res.JsonRpcError)
	require.Equal(t, `"0x3e8"`, string(res.Result))
	require.Equal(t, 2, res.ID)
	require.True(t, info.CacheHit())
	require.Equal(t, 1, p.upstream.Calls())

	// the same block by number is a hit as well
	res = p.engine.Handle(testContext, testutil.NewRequest("eth_getBalance", "0xabc", "0x100"))
	require.Equal(t, `"0x3e8"`, string(res.Result))
	require.Equal(t, 1, p.upstream.Calls())
}

func TestUnitTestNewHeadClearsOlderBlocks(t *testing.T) {
	p := newTestPipeline(t, 0x100, testutil.NewResultProvider(`"0x1"`))

	p.engine.Handle(testContext, testutil.NewRequest("eth_gasPrice"))
	// resolving latest again at the same head clears nothing
	p.engine.Handle(testContext, testutil.NewRequest("eth_gasPrice"))
	require.Equal(t, 1, p.upstream.Calls())

	p.engine.Handle(testContext, testutil.NewRequest("eth_getBlockByNumber", "0xff", false))
	require.Equal(t, 2, p.cache.BlockCount())

	p.tracker.SetHead(0x101)
	p.engine.Handle(testContext, testutil.NewRequest("eth_gasPrice"))
	require.Equal(t, 3, p.upstream.Calls())

	_, err := p.cache.Get(testContext, 0xff, `eth_getBlockByNumber:[false]`)
	require.ErrorIs(t, err, cache.ErrNotFound)
	_, err = p.cache.Get(testContext, 0x100, `eth_gasPrice:[]`)
	require.ErrorIs(t, err, cache.ErrNotFound)
	_, err = p.cache.Get(testContext, 0x101, `eth_gasPrice:[]`)
	require.NoError(t, err)
	require.Equal(t, 1, p.cache.BlockCount())
}

func TestUnitTestUnminedTransactionNotCached(t *testing.T) {
	zeroHashResult := `{"hash":"0x1","blockHash":"` + zeroHash + `","blockNumber":null}`
	p := newTestPipeline(t, 0x100, testutil.NewResultProvider(zeroHashResult))

	for i := 0; i < 2; i++ {
		res := p.engine.Handle(testContext, testutil.NewRequest("eth_getTransactionByHash", "0x1"))
		require.JSONEq(t, zeroHashResult, string(res.Result))
	}

	require.Equal(t, 2, p.upstream.Calls())
	require.Equal(t, 0, p.cache.BlockCount())
}

func TestUnitTestMinedTransactionCachedUnderHead(t *testing.T) {
	minedResult := `{"hash":"0x1","blockHash":"0x` + strings.Repeat("ab", 32) + `","blockNumber":"0x50"}`
	p := newTestPipeline(t, 0x100, testutil.NewResultProvider(minedResult))

	p.engine.Handle(testContext, testutil.NewRequest("eth_getTransactionByHash", "0x1"))
	res := p.engine.Handle(testContext, testutil.NewRequest("eth_getTransactionByHash", "0x1"))

	require.JSONEq(t, minedResult, string(res.Result))
	require.Equal(t, 1, p.upstream.Calls())

	// perma results are keyed under the head and cleared with it
	p.tracker.SetHead(0x101)
	p.engine.Handle(testContext, testutil.NewRequest("eth_getTransactionByHash", "0x1"))
	require.Equal(t, 2, p.upstream.Calls())
}

func TestUnitTestRequestsPassingTheCache(t *testing.T) {
	for _, tc := range []struct {
		desc string
		req  func() *decode.EVMRPCRequestEnvelope
	}{
		{
			desc: "pending",
			req:  func() *decode.EVMRPCRequestEnvelope { return testutil.NewRequest("eth_getBalance", "0xabc", "pending") },
		},
		{
			desc: "never cached method",
			req:  func() *decode.EVMRPCRequestEnvelope { return testutil.NewRequest("eth_sendRawTransaction", "0xf86c") },
		},
		{
			desc: "unresolvable tag",
			req:  func() *decode.EVMRPCRequestEnvelope { return testutil.NewRequest("eth_getBalance", "0xabc", "finalized") },
		},
		{
			desc: "skip cache",
			req: func() *decode.EVMRPCRequestEnvelope {
				req := testutil.NewRequest("eth_getBalance", "0xabc", "0x1")
				req.SkipCache = true
				return req
			},
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			p := newTestPipeline(t, 0x100, testutil.NewResultProvider(`"0x1"`))

			p.engine.Handle(testContext, tc.req())
			res := p.engine.Handle(testContext, tc.req())

			require.Equal(t, `"0x1"`, string(res.Result))
			require.Equal(t, 2, p.upstream.Calls())
			require.Equal(t, 0, p.cache.BlockCount())
		})
	}
}

func TestUnitTestUpstreamErrorsNotCached(t *testing.T) {
	upstream := testutil.NewRecordingProvider(func(call int, _ *decode.EVMRPCRequestEnvelope) testutil.Reply {
		if call == 0 {
			return testutil.Reply{Error: decode.NewInternalError("boom", nil)}
		}

		return testutil.Reply{Result: json.RawMessage(`"0x2"`)}
	})
	p := newTestPipeline(t, 0x100, upstream)

	res := p.engine.Handle(testContext, testutil.NewRequest("eth_getBalance", "0xabc", "0x1"))
	require.NotNil(t, res.JsonRpcError)
	require.Equal(t, "boom", res.JsonRpcError.Message)

	res = p.engine.Handle(testContext, testutil.NewRequest("eth_getBalance", "0xabc", "0x1"))
	require.Nil(t, res.JsonRpcError)
	require.Equal(t, `"0x2"`, string(res.Result))
	require.Equal(t, 2, upstream.Calls())
}

func TestUnitTestEmptyResultNotCached(t *testing.T) {
	p := newTestPipeline(t, 0x100, testutil.NewResultProvider(`null`))

	p.engine.Handle(testContext, testutil.NewRequest("eth_getBlockByNumber", "0x5", true))
	p.engine.Handle(testContext, testutil.NewRequest("eth_getBlockByNumber", "0x5", true))

	require.Equal(t, 2, p.upstream.Calls())
}
