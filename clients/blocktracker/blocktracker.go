// package blocktracker provides the block head oracle consulted by
// the block reference middleware to resolve the "latest" block tag
package blocktracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kava-labs/evm-rpc-middleware/logging"
	"github.com/kava-labs/evm-rpc-middleware/metrics"
)

var (
	ErrNilClient  = errors.New("block tracker requires a block number client")
	ErrNilTracker = errors.New("middleware requires a block tracker")
)

// BlockTracker knows the head of the chain
type BlockTracker interface {
	// LatestBlock returns the known head, fetching one if none is known yet
	LatestBlock(ctx context.Context) (uint64, error)
	// CurrentBlock returns the known head without blocking, false when none is known
	CurrentBlock() (uint64, bool)
	// CheckForLatestBlock fetches the head from the node immediately
	CheckForLatestBlock(ctx context.Context) (uint64, error)
}

// BlockNumberGetter returns the head of the chain, satisfied by *ethclient.Client
type BlockNumberGetter interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// PollingBlockTrackerConfig wraps values used
// for creating a new polling block tracker
type PollingBlockTrackerConfig struct {
	Client       BlockNumberGetter
	PollInterval time.Duration
	Logger       *logging.ServiceLogger
}

// PollingBlockTracker tracks the head by polling a node on an interval
type PollingBlockTracker struct {
	id           string
	client       BlockNumberGetter
	pollInterval time.Duration
	logger       *logging.ServiceLogger

	mutex    sync.RWMutex
	head     uint64
	headSeen bool
}

var _ BlockTracker = (*PollingBlockTracker)(nil)

// NewPollingBlockTracker creates a new polling block tracker
// using the provided config, returning the tracker and error (if any)
func NewPollingBlockTracker(config PollingBlockTrackerConfig) (*PollingBlockTracker, error) {
	if config.Client == nil {
		return nil, ErrNilClient
	}

	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("block tracker poll interval must be positive, got %s", config.PollInterval)
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &PollingBlockTracker{
		id:           uuid.New().String(),
		client:       config.Client,
		pollInterval: config.PollInterval,
		logger:       logger,
	}, nil
}

// Run polls the node for the head until ctx is done
func (t *PollingBlockTracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.pollInterval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				t.logger.Debug().Str("tracker_id", t.id).Msg("block tracker stopped")
				return
			case tick := <-ticker.C:
				t.logger.Trace().Msg(fmt.Sprintf("%s tick at %+v", t.id, tick))

				if _, err := t.CheckForLatestBlock(ctx); err != nil {
					t.logger.Error().Str("tracker_id", t.id).Err(err).Msg("error polling for latest block")
				}
			}
		}
	}()
}

func (t *PollingBlockTracker) LatestBlock(ctx context.Context) (uint64, error) {
	if head, ok := t.CurrentBlock(); ok {
		return head, nil
	}

	return t.CheckForLatestBlock(ctx)
}

func (t *PollingBlockTracker) CurrentBlock() (uint64, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.head, t.headSeen
}

func (t *PollingBlockTracker) CheckForLatestBlock(ctx context.Context) (uint64, error) {
	number, err := t.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("error fetching latest block number: %w", err)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	// the head only moves forward
	if !t.headSeen || number > t.head {
		t.logger.Trace().
			Str("tracker_id", t.id).
			Uint64("block_number", number).
			Msg("new latest block")

		t.head = number
		t.headSeen = true

		metrics.SetLatestBlock(number)
	}

	return t.head, nil
}
