package inspectormdw_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/evm-rpc-middleware/clients/blocktracker"
	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
	"github.com/kava-labs/evm-rpc-middleware/logging"
	"github.com/kava-labs/evm-rpc-middleware/service/inspectormdw"
	"github.com/kava-labs/evm-rpc-middleware/testutil"
)

var testContext = context.Background()

func TestUnitTestNewMiddlewareRequiresTracker(t *testing.T) {
	_, err := inspectormdw.NewMiddleware(nil, logging.Nop())
	require.ErrorIs(t, err, blocktracker.ErrNilTracker)
}

func TestUnitTestInspectorRefreshes(t *testing.T) {
	for _, tc := range []struct {
		desc              string
		tracker           func() *testutil.StaticBlockTracker
		req               *decode.EVMRPCRequestEnvelope
		result            string
		expectedRefreshes int
	}{
		{
			desc:              "block past the head",
			tracker:           func() *testutil.StaticBlockTracker { return testutil.NewStaticBlockTracker(0x40) },
			req:               testutil.NewRequest("eth_getTransactionReceipt", "0x1"),
			result:            `{"blockNumber":"0x50"}`,
			expectedRefreshes: 1,
		},
		{
			desc:              "transaction by hash past the head",
			tracker:           func() *testutil.StaticBlockTracker { return testutil.NewStaticBlockTracker(0x40) },
			req:               testutil.NewRequest("eth_getTransactionByHash", "0x1"),
			result:            `{"blockNumber":"0x41","hash":"0x1"}`,
			expectedRefreshes: 1,
		},
		{
			desc:    "block at the head",
			tracker: func() *testutil.StaticBlockTracker { return testutil.NewStaticBlockTracker(0x50) },
			req:     testutil.NewRequest("eth_getTransactionReceipt", "0x1"),
			result:  `{"blockNumber":"0x50"}`,
		},
		{
			desc:    "unknown head",
			tracker: testutil.NewUnknownBlockTracker,
			req:     testutil.NewRequest("eth_getTransactionReceipt", "0x1"),
			result:  `{"blockNumber":"0x50"}`,
		},
		{
			desc:    "pending transaction",
			tracker: func() *testutil.StaticBlockTracker { return testutil.NewStaticBlockTracker(0x40) },
			req:     testutil.NewRequest("eth_getTransactionByHash", "0x1"),
			result:  `{"blockNumber":null}`,
		},
		{
			desc:    "numeric block number",
			tracker: func() *testutil.StaticBlockTracker { return testutil.NewStaticBlockTracker(0x40) },
			req:     testutil.NewRequest("eth_getTransactionByHash", "0x1"),
			result:  `{"blockNumber":80}`,
		},
		{
			desc:    "null result",
			tracker: func() *testutil.StaticBlockTracker { return testutil.NewStaticBlockTracker(0x40) },
			req:     testutil.NewRequest("eth_getTransactionByHash", "0x1"),
			result:  `null`,
		},
		{
			desc:    "other methods are not inspected",
			tracker: func() *testutil.StaticBlockTracker { return testutil.NewStaticBlockTracker(0x40) },
			req:     testutil.NewRequest("eth_getBlockByNumber", "0x50", false),
			result:  `{"blockNumber":"0x50"}`,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			tracker := tc.tracker()
			inspector, err := inspectormdw.NewMiddleware(tracker, logging.Nop())
			require.NoError(t, err)

			e := engine.New(logging.Nop())
			e.Push(inspector, testutil.NewResultProvider(tc.result).Middleware())

			res := e.Handle(testContext, tc.req)

			require.Nil(t, res.JsonRpcError)
			require.Equal(t, tc.result, string(res.Result))
			require.Equal(t, tc.expectedRefreshes, tracker.Refreshes())
		})
	}
}

func TestUnitTestInspectorSwallowsRefreshErrors(t *testing.T) {
	tracker := testutil.NewStaticBlockTracker(0x40)
	tracker.SetError(errors.New("node down"))

	inspector, err := inspectormdw.NewMiddleware(tracker, logging.Nop())
	require.NoError(t, err)

	e := engine.New(logging.Nop())
	e.Push(inspector, testutil.NewResultProvider(`{"blockNumber":"0x50"}`).Middleware())

	res := e.Handle(testContext, testutil.NewRequest("eth_getTransactionReceipt", "0x1"))

	require.Nil(t, res.JsonRpcError)
	require.Equal(t, 1, tracker.Refreshes())
}
