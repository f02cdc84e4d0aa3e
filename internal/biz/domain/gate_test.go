package domain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateSerializesPerTenant(t *testing.T) {
	gate := NewGate(1)
	ctx := context.Background()

	require.NoError(t, gate.Acquire(ctx, "chat-1"))

	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := gate.Acquire(blocked, "chat-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	gate.Release("chat-1")
	require.NoError(t, gate.Acquire(ctx, "chat-1"))
	gate.Release("chat-1")
}

func TestGateTenantsIndependent(t *testing.T) {
	gate := NewGate(1)
	ctx := context.Background()

	require.NoError(t, gate.Acquire(ctx, "chat-1"))
	require.NoError(t, gate.Acquire(ctx, "chat-2"), "other tenant must not be blocked")

	gate.Release("chat-1")
	gate.Release("chat-2")
}

func TestGateUnlimitedWhenZero(t *testing.T) {
	gate := NewGate(0)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, gate.Acquire(ctx, "chat-1"))
	}
}

func TestGateBoundsConcurrency(t *testing.T) {
	gate := NewGate(2)
	ctx := context.Background()

	var mu sync.Mutex
	inflight, peak := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, gate.Acquire(ctx, "chat-1"))
			defer gate.Release("chat-1")

			mu.Lock()
			inflight++
			if inflight > peak {
				peak = inflight
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inflight--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, 2)
}
