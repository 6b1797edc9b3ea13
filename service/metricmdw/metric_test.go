package metricmdw_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/evm-rpc-middleware/clients/database"
	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
	"github.com/kava-labs/evm-rpc-middleware/logging"
	"github.com/kava-labs/evm-rpc-middleware/service/metricmdw"
	"github.com/kava-labs/evm-rpc-middleware/testutil"
)

type recordingDatabase struct {
	saved chan *database.ProxiedRequestMetric
	err   error
}

func newRecordingDatabase(err error) *recordingDatabase {
	return &recordingDatabase{saved: make(chan *database.ProxiedRequestMetric, 1), err: err}
}

func (d *recordingDatabase) SaveProxiedRequestMetric(_ context.Context, prm *database.ProxiedRequestMetric) error {
	d.saved <- prm
	return d.err
}

func (d *recordingDatabase) DeleteProxiedRequestMetricsOlderThanNDays(context.Context, int) error {
	return nil
}

func (d *recordingDatabase) HealthCheck() error {
	return nil
}

func (d *recordingDatabase) next(t *testing.T) *database.ProxiedRequestMetric {
	select {
	case prm := <-d.saved:
		return prm
	case <-time.After(time.Second):
		t.Fatal("metric was not saved")
		return nil
	}
}

func TestUnitTestMetricMiddlewareSavesMetric(t *testing.T) {
	db := newRecordingDatabase(nil)

	e := engine.New(logging.Nop())
	e.Push(
		metricmdw.NewMiddleware(db, logging.Nop()),
		func(next engine.Handler) engine.Handler {
			return engine.HandlerFunc(func(ctx context.Context, req *decode.EVMRPCRequestEnvelope, res *decode.JsonRpcResponse) error {
				// stand in for the block reference rewrite
				req.SetBlockTag("0x10")
				engine.MarkCacheHit(ctx)
				return next.HandleRPC(ctx, req, res)
			})
		},
		testutil.NewResultProvider(`"0x1"`).Middleware(),
	)

	req := testutil.NewRequest("eth_getBalance", "0xabc", "latest")
	req.Origin = "https://example.com"

	res := e.Handle(context.Background(), req)
	require.Nil(t, res.JsonRpcError)

	prm := db.next(t)
	require.Equal(t, "eth_getBalance", prm.MethodName)
	require.NotNil(t, prm.BlockNumber)
	require.Equal(t, int64(16), *prm.BlockNumber)
	require.True(t, prm.CacheHit)
	require.False(t, prm.Deduplicated)
	require.Nil(t, prm.ErrorCode)
	require.Equal(t, "https://example.com", prm.Origin)
	require.False(t, prm.RequestTime.IsZero())
}

func TestUnitTestMetricMiddlewareRecordsErrors(t *testing.T) {
	db := newRecordingDatabase(errors.New("database down"))

	e := engine.New(logging.Nop())
	e.Push(
		metricmdw.NewMiddleware(db, logging.Nop()),
		func(engine.Handler) engine.Handler {
			return engine.HandlerFunc(func(context.Context, *decode.EVMRPCRequestEnvelope, *decode.JsonRpcResponse) error {
				return decode.NewJsonRpcError(decode.ErrorCodeLimitExceeded, "slow down", nil)
			})
		},
	)

	res := e.Handle(context.Background(), testutil.NewRequest("eth_blockNumber"))
	require.NotNil(t, res.JsonRpcError)
	require.Equal(t, decode.ErrorCodeLimitExceeded, res.JsonRpcError.Code)

	prm := db.next(t)
	require.Nil(t, prm.BlockNumber)
	require.NotNil(t, prm.ErrorCode)
	require.Equal(t, int64(decode.ErrorCodeLimitExceeded), *prm.ErrorCode)
}
