// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"sync"
)

// Exchange is a single-slot mailbox holding the most recent sample block.
// Producers overwrite the slot; a block that is replaced before it is taken
// is dropped. Safe for one producer and any number of consumers.
type Exchange struct {
	mu        sync.Mutex
	cond      *sync.Cond
	slot      []float64
	fresh     bool
	closed    bool
	published uint64
	dropped   uint64
}

// NewExchange returns an open exchange whose slot is preallocated for blocks
// of the given size. Larger blocks grow the slot once.
func NewExchange(blockSize int) *Exchange {
	e := &Exchange{slot: make([]float64, 0, max(blockSize, 0))}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Publish copies block into the slot, marks it fresh and wakes one waiter.
// It does not allocate once the slot has reached the block size.
func (e *Exchange) Publish(block []float64) {
	e.mu.Lock()
	if e.fresh {
		e.dropped++
	}
	e.slot = append(e.slot[:0], block...)
	e.fresh = true
	e.published++
	e.mu.Unlock()
	e.cond.Signal()
}

// TakeLatest returns a copy of the slot and clears the fresh flag. Without a
// new publish it returns the previous block again.
func (e *Exchange) TakeLatest() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fresh = false
	return append([]float64(nil), e.slot...)
}

// HasNewData reports whether a block was published since the last TakeLatest.
func (e *Exchange) HasNewData() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fresh
}

// WaitForNewData blocks until a fresh block is available. It returns false
// when the exchange is closed or ctx is done.
func (e *Exchange) WaitForNewData(ctx context.Context) bool {
	stop := context.AfterFunc(ctx, func() {
		e.mu.Lock()
		e.cond.Broadcast()
		e.mu.Unlock()
	})
	defer stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	for !e.fresh && !e.closed && ctx.Err() == nil {
		e.cond.Wait()
	}
	return e.fresh && !e.closed && ctx.Err() == nil
}

// Close wakes every waiter and makes further waits return false until the
// exchange is reopened. Closing twice is a no-op.
func (e *Exchange) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()
}

// open clears the closed flag so a restarted source can publish again.
func (e *Exchange) open() {
	e.mu.Lock()
	e.closed = false
	e.mu.Unlock()
}

// Closed reports whether Close has been called.
func (e *Exchange) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Dropped returns the number of blocks overwritten before being taken.
func (e *Exchange) Dropped() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Published returns the number of blocks published.
func (e *Exchange) Published() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.published
}
