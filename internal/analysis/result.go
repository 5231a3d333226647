// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"sync"
)

// result is the single-slot mailbox between the analysis loop and readers
// such as the renderer. Readers either poll ready() or block in wait().
type result struct {
	mu     sync.Mutex
	cond   *sync.Cond
	bands  []float64
	ready  bool
	closed bool
}

func newResult(bands int) *result {
	r := &result{bands: make([]float64, bands)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// publish replaces the slot, sets ready and wakes all readers.
func (r *result) publish(v []float64) {
	r.mu.Lock()
	copy(r.bands, v)
	r.ready = true
	r.mu.Unlock()
	r.cond.Broadcast()
}

// latest returns a copy of the slot and clears ready.
func (r *result) latest() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = false
	return append([]float64(nil), r.bands...)
}

// into copies the slot into dst without clearing ready.
func (r *result) into(dst []float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copy(dst, r.bands)
}

func (r *result) isReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// wait blocks until a result is ready, the mailbox is closed or ctx is done.
// It reports whether a result is ready.
func (r *result) wait(ctx context.Context) bool {
	stop := context.AfterFunc(ctx, func() {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	defer stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	for !r.ready && !r.closed && ctx.Err() == nil {
		r.cond.Wait()
	}
	return r.ready
}

// close wakes every waiter; wait returns immediately until reopen.
func (r *result) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cond.Broadcast()
}

func (r *result) reopen() {
	r.mu.Lock()
	r.closed = false
	r.mu.Unlock()
}
