// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeKeepsLatestBlock(t *testing.T) {
	ex := NewExchange(2)

	ex.Publish([]float64{1, 1})
	ex.Publish([]float64{2, 2})
	ex.Publish([]float64{3, 3})

	require.True(t, ex.HasNewData())
	assert.Equal(t, []float64{3, 3}, ex.TakeLatest())
	assert.False(t, ex.HasNewData())
	assert.Equal(t, uint64(2), ex.Dropped())
	assert.Equal(t, uint64(3), ex.Published())

	// Without a new publish the previous block is returned again.
	assert.Equal(t, []float64{3, 3}, ex.TakeLatest())
}

func TestExchangeTakeLatestCopies(t *testing.T) {
	ex := NewExchange(3)
	src := []float64{1, 2, 3}
	ex.Publish(src)
	src[0] = 99

	got := ex.TakeLatest()
	assert.Equal(t, []float64{1, 2, 3}, got)
	got[1] = 42
	assert.Equal(t, []float64{1, 2, 3}, ex.TakeLatest())
}

func TestExchangeWaitForNewData(t *testing.T) {
	ex := NewExchange(1)

	woke := make(chan bool)
	go func() { woke <- ex.WaitForNewData(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	ex.Publish([]float64{0.5})

	select {
	case ok := <-woke:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by Publish")
	}

	// Fresh data returns immediately.
	assert.True(t, ex.WaitForNewData(context.Background()))
}

func TestExchangeCloseWakesWaiters(t *testing.T) {
	ex := NewExchange(1)

	const waiters = 3
	woke := make(chan bool, waiters)
	for range waiters {
		go func() { woke <- ex.WaitForNewData(context.Background()) }()
	}

	time.Sleep(10 * time.Millisecond)
	ex.Close()
	ex.Close()

	for range waiters {
		select {
		case ok := <-woke:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("waiter was not woken by Close")
		}
	}
	assert.True(t, ex.Closed())

	ex.Publish([]float64{1})
	assert.False(t, ex.WaitForNewData(context.Background()), "closed exchange never reports data")

	ex.open()
	assert.True(t, ex.WaitForNewData(context.Background()))
}

func TestExchangeWaitContext(t *testing.T) {
	ex := NewExchange(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.False(t, ex.WaitForNewData(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExchangePublishNoAllocs(t *testing.T) {
	ex := NewExchange(testFrameSize)
	block := make([]float64, testFrameSize)

	allocs := testing.AllocsPerRun(100, func() {
		ex.Publish(block)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in Publish, got %.1f", allocs)
	}
}
