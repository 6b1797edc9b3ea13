// package testutil provides fakes of the pipeline's collaborators for tests
package testutil

import (
	"context"
	"sync"

	"github.com/kava-labs/evm-rpc-middleware/clients/blocktracker"
)

// StaticBlockTracker is a BlockTracker whose head is set by the test
type StaticBlockTracker struct {
	mutex sync.Mutex
	head  uint64
	known bool
	// next is the head returned by CheckForLatestBlock, when set
	next      *uint64
	err       error
	latest    int
	refreshes int
}

var _ blocktracker.BlockTracker = (*StaticBlockTracker)(nil)

// NewStaticBlockTracker creates a tracker which knows head
func NewStaticBlockTracker(head uint64) *StaticBlockTracker {
	return &StaticBlockTracker{head: head, known: true}
}

// NewUnknownBlockTracker creates a tracker which has not seen a head yet
func NewUnknownBlockTracker() *StaticBlockTracker {
	return &StaticBlockTracker{}
}

// SetHead moves the head
func (t *StaticBlockTracker) SetHead(head uint64) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.head = head
	t.known = true
}

// SetNextHead sets the head found by the next CheckForLatestBlock
func (t *StaticBlockTracker) SetNextHead(head uint64) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.next = &head
}

// SetError makes every fetching call fail with err
func (t *StaticBlockTracker) SetError(err error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.err = err
}

func (t *StaticBlockTracker) LatestBlock(context.Context) (uint64, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.latest++
	if t.err != nil {
		return 0, t.err
	}

	return t.head, nil
}

func (t *StaticBlockTracker) CurrentBlock() (uint64, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.head, t.known
}

func (t *StaticBlockTracker) CheckForLatestBlock(context.Context) (uint64, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.refreshes++
	if t.err != nil {
		return 0, t.err
	}

	if t.next != nil {
		t.head = *t.next
		t.known = true
		t.next = nil
	}

	return t.head, nil
}

// LatestCalls returns the number of LatestBlock calls
func (t *StaticBlockTracker) LatestCalls() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.latest
}

// Refreshes returns the number of CheckForLatestBlock calls
func (t *StaticBlockTracker) Refreshes() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.refreshes
}
