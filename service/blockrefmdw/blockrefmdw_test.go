package blockrefmdw_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
	"github.com/kava-labs/evm-rpc-middleware/logging"
	"github.com/kava-labs/evm-rpc-middleware/service/blockrefmdw"
	"github.com/kava-labs/evm-rpc-middleware/testutil"
)

var testContext = context.Background()

func TestUnitTestNewResolverRequiresTracker(t *testing.T) {
	_, err := blockrefmdw.NewResolver(nil, nil, logging.Nop())
	require.ErrorIs(t, err, blockrefmdw.ErrNilBlockTracker)

	_, err = blockrefmdw.NewRewriteMiddleware(nil, logging.Nop())
	require.ErrorIs(t, err, blockrefmdw.ErrNilBlockTracker)

	_, err = blockrefmdw.NewShadowMiddleware(nil, testutil.NewStaticBlockTracker(1), logging.Nop())
	require.ErrorIs(t, err, blockrefmdw.ErrNilProvider)
}

func TestUnitTestResolve(t *testing.T) {
	testCases := []struct {
		name        string
		req         *decode.EVMRPCRequestEnvelope
		expected    blockrefmdw.BlockRef
		expectedErr error
		latestHooks int
	}{
		{
			name:        "latest",
			req:         testutil.NewRequest("eth_getBalance", "0xabc", "latest"),
			expected:    blockrefmdw.BlockRef{Number: 0x100, Latest: true},
			latestHooks: 1,
		},
		{
			name:        "omitted tag",
			req:         testutil.NewRequest("eth_getBalance", "0xabc"),
			expected:    blockrefmdw.BlockRef{Number: 0x100, Latest: true},
			latestHooks: 1,
		},
		{
			name:        "null tag",
			req:         testutil.NewRequest("eth_getBalance", "0xabc", nil),
			expected:    blockrefmdw.BlockRef{Number: 0x100, Latest: true},
			latestHooks: 1,
		},
		{
			name:        "method without block tag",
			req:         testutil.NewRequest("eth_gasPrice"),
			expected:    blockrefmdw.BlockRef{Number: 0x100, Latest: true},
			latestHooks: 1,
		},
		{
			name:     "earliest",
			req:      testutil.NewRequest("eth_getBalance", "0xabc", "earliest"),
			expected: blockrefmdw.BlockRef{Number: 0},
		},
		{
			name:     "pending",
			req:      testutil.NewRequest("eth_getBalance", "0xabc", "pending"),
			expected: blockrefmdw.BlockRef{Pending: true},
		},
		{
			name:     "concrete number",
			req:      testutil.NewRequest("eth_getBlockByNumber", "0x5", true),
			expected: blockrefmdw.BlockRef{Number: 5},
		},
		{
			name:        "not hex",
			req:         testutil.NewRequest("eth_getBlockByNumber", "12", true),
			expectedErr: decode.ErrInvalidBlockTag,
		},
		{
			name:        "finalized is not resolved",
			req:         testutil.NewRequest("eth_getBlockByNumber", "finalized", true),
			expectedErr: decode.ErrInvalidBlockTag,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var hooked []uint64
			resolver, err := blockrefmdw.NewResolver(
				testutil.NewStaticBlockTracker(0x100),
				func(_ context.Context, blockNumber uint64) { hooked = append(hooked, blockNumber) },
				logging.Nop(),
			)
			require.NoError(t, err)

			ref, err := resolver.Resolve(testContext, tc.req)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expected, ref)
			require.Len(t, hooked, tc.latestHooks)
		})
	}
}

func TestUnitTestResolveLatestIsIdempotent(t *testing.T) {
	resolver, err := blockrefmdw.NewResolver(testutil.NewStaticBlockTracker(0x100), nil, logging.Nop())
	require.NoError(t, err)

	req := testutil.NewRequest("eth_getBalance", "0xabc", "latest")

	first, err := resolver.Resolve(testContext, req)
	require.NoError(t, err)
	second, err := resolver.Resolve(testContext, req)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestUnitTestResolveTrackerError(t *testing.T) {
	tracker := testutil.NewStaticBlockTracker(1)
	tracker.SetError(errors.New("node down"))

	resolver, err := blockrefmdw.NewResolver(tracker, nil, logging.Nop())
	require.NoError(t, err)

	_, err = resolver.ResolveTag(testContext, decode.BlockTagLatest)
	require.Error(t, err)
}

func TestUnitTestRewriteMiddleware(t *testing.T) {
	testCases := []struct {
		name           string
		req            *decode.EVMRPCRequestEnvelope
		expectedParams []interface{}
	}{
		{
			name:           "latest is rewritten",
			req:            testutil.NewRequest("eth_getBalance", "0xabc", "latest"),
			expectedParams: []interface{}{"0xabc", "0x100"},
		},
		{
			name:           "omitted tag is filled in",
			req:            testutil.NewRequest("eth_getStorageAt", "0xabc"),
			expectedParams: []interface{}{"0xabc", nil, "0x100"},
		},
		{
			name:           "concrete number is kept",
			req:            testutil.NewRequest("eth_getBalance", "0xabc", "0x5"),
			expectedParams: []interface{}{"0xabc", "0x5"},
		},
		{
			name:           "pending is kept",
			req:            testutil.NewRequest("eth_getBalance", "0xabc", "pending"),
			expectedParams: []interface{}{"0xabc", "pending"},
		},
		{
			name:           "method without block tag is untouched",
			req:            testutil.NewRequest("eth_getTransactionByHash", "0xabc"),
			expectedParams: []interface{}{"0xabc"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			upstream := testutil.NewResultProvider(`"0x1"`)
			rewrite, err := blockrefmdw.NewRewriteMiddleware(testutil.NewStaticBlockTracker(0x100), logging.Nop())
			require.NoError(t, err)

			e := engine.New(logging.Nop())
			e.Push(rewrite, upstream.Middleware())

			res := e.Handle(testContext, tc.req)
			require.Nil(t, res.JsonRpcError)

			require.Equal(t, 1, upstream.Calls())
			require.Equal(t, tc.expectedParams, upstream.Requests()[0].Params)
			// rewritten in place
			require.Equal(t, tc.expectedParams, tc.req.Params)
		})
	}
}

func TestUnitTestShadowMiddlewareSendsPinnedCopy(t *testing.T) {
	shadowProvider := testutil.NewResultProvider(`"0x64"`)
	next := testutil.NewResultProvider(`"0xdead"`)

	shadow, err := blockrefmdw.NewShadowMiddleware(shadowProvider, testutil.NewStaticBlockTracker(0x100), logging.Nop())
	require.NoError(t, err)

	e := engine.New(logging.Nop())
	e.Push(shadow, next.Middleware())

	req := testutil.NewRequest("eth_getBalance", "0xabc", "latest")
	req.ID = 9

	res := e.Handle(testContext, req)

	require.Nil(t, res.JsonRpcError)
	require.Equal(t, `"0x64"`, string(res.Result))
	require.Equal(t, 9, res.ID)

	require.Equal(t, 1, shadowProvider.Calls())
	require.Equal(t, []interface{}{"0xabc", "0x100"}, shadowProvider.Requests()[0].Params)
	// the caller's request is untouched and the chain ended
	require.Equal(t, []interface{}{"0xabc", "latest"}, req.Params)
	require.Equal(t, 0, next.Calls())
}

func TestUnitTestShadowMiddlewareCopiesErrors(t *testing.T) {
	shadowProvider := testutil.NewRecordingProvider(func(int, *decode.EVMRPCRequestEnvelope) testutil.Reply {
		return testutil.Reply{Error: decode.NewJsonRpcError(-32000, "header not found", nil)}
	})

	shadow, err := blockrefmdw.NewShadowMiddleware(shadowProvider, testutil.NewStaticBlockTracker(0x100), logging.Nop())
	require.NoError(t, err)

	e := engine.New(logging.Nop())
	e.Push(shadow)

	res := e.Handle(testContext, testutil.NewRequest("eth_call", map[string]interface{}{"to": "0x1"}))

	require.NotNil(t, res.JsonRpcError)
	require.Equal(t, -32000, res.JsonRpcError.Code)
	require.Nil(t, res.Result)
}

func TestUnitTestShadowMiddlewarePassesOtherTags(t *testing.T) {
	shadowProvider := testutil.NewResultProvider(`"0x64"`)
	next := testutil.NewResultProvider(`"0x1"`)

	shadow, err := blockrefmdw.NewShadowMiddleware(shadowProvider, testutil.NewStaticBlockTracker(0x100), logging.Nop())
	require.NoError(t, err)

	e := engine.New(logging.Nop())
	e.Push(shadow, next.Middleware())

	res := e.Handle(testContext, testutil.NewRequest("eth_getBalance", "0xabc", "0x5"))

	require.Equal(t, `"0x1"`, string(res.Result))
	require.Equal(t, 0, shadowProvider.Calls())
	require.Equal(t, 1, next.Calls())
}
