package cachemdw_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/service/cachemdw"
	"github.com/kava-labs/evm-rpc-middleware/testutil"
)

func TestUnitTestGetFingerprint(t *testing.T) {
	for _, tc := range []struct {
		desc                string
		req                 *decode.EVMRPCRequestEnvelope
		skipBlockTag        bool
		expectedFingerprint string
		expectedOk          bool
	}{
		{
			desc:                "block tag kept",
			req:                 testutil.NewRequest("eth_getBalance", "0xabc", "0x10"),
			expectedFingerprint: `eth_getBalance:["0xabc","0x10"]`,
			expectedOk:          true,
		},
		{
			desc:                "block tag skipped",
			req:                 testutil.NewRequest("eth_getBalance", "0xabc", "0x10"),
			skipBlockTag:        true,
			expectedFingerprint: `eth_getBalance:["0xabc"]`,
			expectedOk:          true,
		},
		{
			desc:                "get block by number keeps the transactions flag",
			req:                 testutil.NewRequest("eth_getBlockByNumber", "0x5", true),
			skipBlockTag:        true,
			expectedFingerprint: `eth_getBlockByNumber:[true]`,
			expectedOk:          true,
		},
		{
			desc:                "block tag beyond params",
			req:                 testutil.NewRequest("eth_getStorageAt", "0xabc", "0x0"),
			skipBlockTag:        true,
			expectedFingerprint: `eth_getStorageAt:["0xabc","0x0"]`,
			expectedOk:          true,
		},
		{
			desc:                "no params",
			req:                 &decode.EVMRPCRequestEnvelope{Method: "eth_gasPrice"},
			expectedFingerprint: `eth_gasPrice:[]`,
			expectedOk:          true,
		},
		{
			desc:       "never cached method",
			req:        testutil.NewRequest("eth_sendRawTransaction", "0xf86c"),
			expectedOk: false,
		},
		{
			desc:       "nil request",
			req:        nil,
			expectedOk: false,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			fingerprint, ok := cachemdw.GetFingerprint(tc.req, tc.skipBlockTag)
			require.Equal(t, tc.expectedOk, ok)
			require.Equal(t, tc.expectedFingerprint, fingerprint)
		})
	}
}

func TestUnitTestGetFingerprintIgnoresKeyOrder(t *testing.T) {
	first := testutil.NewRequest("eth_call", map[string]interface{}{
		"to":   "0x1",
		"data": "0x2",
		"nested": map[string]interface{}{
			"b": 1,
			"a": []interface{}{map[string]interface{}{"y": 1, "x": 2}},
		},
	}, "latest")
	second := testutil.NewRequest("eth_call", map[string]interface{}{
		"nested": map[string]interface{}{
			"a": []interface{}{map[string]interface{}{"x": 2, "y": 1}},
			"b": 1,
		},
		"data": "0x2",
		"to":   "0x1",
	}, "latest")

	firstFingerprint, ok := cachemdw.GetFingerprint(first, false)
	require.True(t, ok)
	secondFingerprint, ok := cachemdw.GetFingerprint(second, false)
	require.True(t, ok)

	require.Equal(t, firstFingerprint, secondFingerprint)
	require.Equal(t, `eth_call:[{"data":"0x2","nested":{"a":[{"x":2,"y":1}],"b":1},"to":"0x1"},"latest"]`, firstFingerprint)
}

func TestUnitTestGetFingerprintBlockTagExclusion(t *testing.T) {
	atLatest := testutil.NewRequest("eth_getStorageAt", "0xabc", "0x0", "latest")
	atNumber := testutil.NewRequest("eth_getStorageAt", "0xabc", "0x0", "0x100")

	withTagLatest, _ := cachemdw.GetFingerprint(atLatest, false)
	withTagNumber, _ := cachemdw.GetFingerprint(atNumber, false)
	require.NotEqual(t, withTagLatest, withTagNumber)

	withoutTagLatest, _ := cachemdw.GetFingerprint(atLatest, true)
	withoutTagNumber, _ := cachemdw.GetFingerprint(atNumber, true)
	require.Equal(t, withoutTagLatest, withoutTagNumber)
}

func TestUnitTestGetFingerprintKeepsLargeIntegers(t *testing.T) {
	// 2^53 and 2^53+1 are the same float64
	low := testutil.NewRequest("eth_call", map[string]interface{}{"to": "0x1", "gas": uint64(9007199254740992)}, "0x1")
	high := testutil.NewRequest("eth_call", map[string]interface{}{"to": "0x1", "gas": uint64(9007199254740993)}, "0x1")

	lowFingerprint, ok := cachemdw.GetFingerprint(low, false)
	require.True(t, ok)
	highFingerprint, ok := cachemdw.GetFingerprint(high, false)
	require.True(t, ok)

	require.NotEqual(t, lowFingerprint, highFingerprint)
	require.Equal(t, `eth_call:[{"gas":9007199254740993,"to":"0x1"},"0x1"]`, highFingerprint)
}
