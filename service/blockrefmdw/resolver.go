// package blockrefmdw provides middleware resolving the block tag of a request
// to a concrete block number, either rewriting the request in place or sending
// a copy of it pinned to the resolved number to a separate provider
package blockrefmdw

import (
	"context"
	"errors"

	"github.com/kava-labs/evm-rpc-middleware/clients/blocktracker"
	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/logging"
)

var (
	ErrNilBlockTracker = blocktracker.ErrNilTracker
	ErrNilProvider     = errors.New("block reference middleware requires a provider")
)

// BlockRef is the block a request reads from
type BlockRef struct {
	Number uint64
	// Pending requests read from a block which does not exist yet and carry no number
	Pending bool
	// Latest is set when Number was resolved from the head of the chain
	Latest bool
}

// LatestHook is called with the block number every time "latest" is resolved
type LatestHook func(ctx context.Context, blockNumber uint64)

// Resolver resolves block tags against a block tracker
type Resolver struct {
	tracker  blocktracker.BlockTracker
	onLatest LatestHook
	logger   *logging.ServiceLogger
}

// NewResolver creates a resolver backed by tracker, onLatest may be nil
func NewResolver(tracker blocktracker.BlockTracker, onLatest LatestHook, logger *logging.ServiceLogger) (*Resolver, error) {
	if tracker == nil {
		return nil, ErrNilBlockTracker
	}

	if logger == nil {
		logger = logging.Nop()
	}

	return &Resolver{
		tracker:  tracker,
		onLatest: onLatest,
		logger:   logger,
	}, nil
}

// Resolve returns the block req reads from.
// Requests without a block tag param, or with the param omitted or null, read from "latest".
func (r *Resolver) Resolve(ctx context.Context, req *decode.EVMRPCRequestEnvelope) (BlockRef, error) {
	tag, err := req.BlockTag()
	if err != nil {
		return BlockRef{}, err
	}

	return r.ResolveTag(ctx, tag)
}

// ResolveTag returns the block a tag refers to, concrete numbers must be 0x prefixed hex
func (r *Resolver) ResolveTag(ctx context.Context, tag string) (BlockRef, error) {
	switch tag {
	case decode.BlockTagEmpty, decode.BlockTagLatest:
		number, err := r.tracker.LatestBlock(ctx)
		if err != nil {
			return BlockRef{}, err
		}

		r.logger.Trace().
			Uint64("block_number", number).
			Msg("resolved latest block")

		if r.onLatest != nil {
			r.onLatest(ctx, number)
		}

		return BlockRef{Number: number, Latest: true}, nil
	case decode.BlockTagEarliest:
		return BlockRef{Number: 0}, nil
	case decode.BlockTagPending:
		return BlockRef{Pending: true}, nil
	}

	number, err := decode.ParseBlockNumber(tag)
	if err != nil {
		return BlockRef{}, err
	}

	return BlockRef{Number: number}, nil
}

// isLatestTag reports whether req reads from "latest", for methods which take a block tag
func isLatestTag(req *decode.EVMRPCRequestEnvelope) bool {
	if !req.HasBlockTagParam() {
		return false
	}

	tag, err := req.BlockTag()
	if err != nil {
		return false
	}

	return tag == decode.BlockTagLatest || tag == decode.BlockTagEmpty
}
