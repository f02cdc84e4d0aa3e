package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexSolari/botFramework-sub000/internal/eventbus"
)

// ErrNoBuilder reports a configuration fault: a cache key was requested
// before any builder was registered for it.
var ErrNoBuilder = errors.New("no builder registered for cache key")

// CacheBuilder produces the value for one cache key.
type CacheBuilder func(ctx context.Context) (any, error)

// ExpirySchedulerFn schedules a one-shot callback after delay; the shared
// cache uses it to evict keys when their TTL elapses instead of scanning.
type ExpirySchedulerFn func(name string, delay time.Duration, fn func(context.Context))

type cacheEntry struct {
	mu      sync.Mutex
	has     bool
	value   any
	builder CacheBuilder
	ttl     time.Duration
}

// SharedCache is a process-wide keyed cache with per-key TTL eviction and
// an at-most-one-concurrent-builder guarantee per key.
type SharedCache struct {
	bus      *eventbus.Bus
	log      zerolog.Logger
	schedule ExpirySchedulerFn

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewSharedCache creates a cache that schedules evictions through the
// given scheduler (typically TimerService.OnceFunc).
func NewSharedCache(bus *eventbus.Bus, log zerolog.Logger, schedule ExpirySchedulerFn) *SharedCache {
	return &SharedCache{
		bus:      bus,
		log:      log.With().Str("component", "sharedcache").Logger(),
		schedule: schedule,
		entries:  make(map[string]*cacheEntry),
	}
}

func (c *SharedCache) entry(key string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	return e
}

// GetOrBuild returns the cached value for key, building it if absent. The
// per-key lock guarantees a single concurrent builder: callers arriving
// while a build is in flight block until it completes and then observe the
// built value. On a successful build a one-shot expiry is scheduled after
// ttl; a later request re-runs the builder.
func (c *SharedCache) GetOrBuild(ctx context.Context, key string, ttl time.Duration, builder CacheBuilder) (any, error) {
	if builder == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoBuilder, key)
	}
	e := c.entry(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	// Remember the builder so Get can rebuild after eviction.
	e.builder = builder
	e.ttl = ttl

	if e.has {
		return e.value, nil
	}
	return c.buildLocked(ctx, key, e)
}

// Get returns the value for a key whose builder was registered by a prior
// GetOrBuild, rebuilding it if the TTL evicted it. An unknown key is a
// programming error, reported immediately.
func (c *SharedCache) Get(ctx context.Context, key string) (any, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoBuilder, key)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.builder == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoBuilder, key)
	}
	if e.has {
		return e.value, nil
	}
	return c.buildLocked(ctx, key, e)
}

// buildLocked runs the entry's builder; caller holds e.mu.
func (c *SharedCache) buildLocked(ctx context.Context, key string, e *cacheEntry) (any, error) {
	c.bus.Publish(eventbus.Event{
		Kind:   eventbus.KindCacheBuildStarted,
		Detail: map[string]any{"key": key},
	})
	started := time.Now()

	value, err := e.builder(ctx)
	if err != nil {
		c.bus.Publish(eventbus.Event{
			Kind:   eventbus.KindError,
			Detail: map[string]any{"key": key, "error": err.Error()},
		})
		return nil, fmt.Errorf("build cache value for %q: %w", key, err)
	}

	e.value = value
	e.has = true
	if e.ttl > 0 {
		c.schedule("cache-expiry:"+key, e.ttl, func(context.Context) {
			c.evict(key)
		})
	}

	c.bus.Publish(eventbus.Event{
		Kind:   eventbus.KindCacheBuildFinished,
		Detail: map[string]any{"key": key, "elapsed": time.Since(started).String()},
	})
	return value, nil
}

func (c *SharedCache) evict(key string) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.has = false
	e.value = nil
	e.mu.Unlock()
	c.log.Debug().Str("key", key).Msg("cache entry expired")
}
