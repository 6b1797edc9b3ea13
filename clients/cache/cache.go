// package cache provides stores for results of EVM requests
// bucketed by the block number they were read at
package cache

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("value not found in the cache")

// BlockCache maps a block number to the results cached for that block,
// each result addressed by the fingerprint of the request that produced it.
type BlockCache interface {
	Get(ctx context.Context, blockNumber uint64, fingerprint string) ([]byte, error)
	Set(ctx context.Context, blockNumber uint64, fingerprint string, value []byte) error
	// ClearBefore removes every block strictly below blockNumber
	ClearBefore(ctx context.Context, blockNumber uint64) error
	Healthcheck(ctx context.Context) error
}
