package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexSolari/botFramework-sub000/internal/eventbus"
)

// manualScheduler captures expiry callbacks so tests fire them explicitly.
type manualScheduler struct {
	mu        sync.Mutex
	scheduled []func(context.Context)
	delays    []time.Duration
}

func (m *manualScheduler) fn(name string, delay time.Duration, fn func(context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled = append(m.scheduled, fn)
	m.delays = append(m.delays, delay)
}

func (m *manualScheduler) fireAll() {
	m.mu.Lock()
	pending := m.scheduled
	m.scheduled = nil
	m.mu.Unlock()
	for _, fn := range pending {
		fn(context.Background())
	}
}

func newTestCache(t *testing.T) (*SharedCache, *manualScheduler) {
	t.Helper()
	sched := &manualScheduler{}
	bus := eventbus.NewBus(zerolog.Nop())
	return NewSharedCache(bus, zerolog.Nop(), sched.fn), sched
}

func TestGetOrBuildCachesValue(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	builds := 0
	builder := func(context.Context) (any, error) {
		builds++
		return "value", nil
	}

	v, err := cache.GetOrBuild(ctx, "k", time.Minute, builder)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = cache.GetOrBuild(ctx, "k", time.Minute, builder)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, 1, builds)
}

func TestGetOrBuildSingleFlight(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	var builds atomic.Int32
	release := make(chan struct{})
	builder := func(context.Context) (any, error) {
		builds.Add(1)
		<-release
		return "built", nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([]any, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.GetOrBuild(ctx, "k", time.Minute, builder)
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load(), "only one builder may run")
	for _, v := range results {
		assert.Equal(t, "built", v)
	}
}

func TestTTLEvictionRebuilds(t *testing.T) {
	cache, sched := newTestCache(t)
	ctx := context.Background()

	builds := 0
	builder := func(context.Context) (any, error) {
		builds++
		return builds, nil
	}

	v, err := cache.GetOrBuild(ctx, "k", 30*time.Second, builder)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	require.Len(t, sched.delays, 1)
	assert.Equal(t, 30*time.Second, sched.delays[0])

	sched.fireAll()

	v, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, v, "evicted key must be rebuilt on next read")
}

func TestGetUnknownKey(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.Get(context.Background(), "never-registered")
	assert.ErrorIs(t, err, ErrNoBuilder)
}

func TestBuilderErrorNotCached(t *testing.T) {
	cache, sched := newTestCache(t)
	ctx := context.Background()

	calls := 0
	failing := func(context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, assert.AnError
		}
		return "recovered", nil
	}

	_, err := cache.GetOrBuild(ctx, "k", time.Minute, failing)
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, sched.scheduled, "failed build must not schedule expiry")

	v, err := cache.GetOrBuild(ctx, "k", time.Minute, failing)
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
}

func TestZeroTTLNeverExpires(t *testing.T) {
	cache, sched := newTestCache(t)

	_, err := cache.GetOrBuild(context.Background(), "k", 0, func(context.Context) (any, error) {
		return "forever", nil
	})
	require.NoError(t, err)
	assert.Empty(t, sched.scheduled)
}
