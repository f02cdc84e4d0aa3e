package domain

import (
	"context"
	"sync"
)

// Gate bounds simultaneous in-flight executions of one action per tenant.
// A counting semaphore is created lazily per tenant on first use and never
// removed. A limit of zero or less disables the gate entirely.
//
// The gate is not a rate limiter: it has no effect on cooldown timing.
type Gate struct {
	limit int

	mu   sync.Mutex
	sems map[string]chan struct{}
}

// NewGate creates a gate with the given per-tenant limit.
func NewGate(limit int) *Gate {
	return &Gate{
		limit: limit,
		sems:  make(map[string]chan struct{}),
	}
}

func (g *Gate) sem(tenantID string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sems[tenantID]
	if !ok {
		s = make(chan struct{}, g.limit)
		g.sems[tenantID] = s
	}
	return s
}

// Acquire blocks until a slot for the tenant is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context, tenantID string) error {
	if g == nil || g.limit <= 0 {
		return nil
	}
	select {
	case g.sem(tenantID) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot. It must be paired with a successful Acquire on
// every exit path, including handler panics.
func (g *Gate) Release(tenantID string) {
	if g == nil || g.limit <= 0 {
		return
	}
	select {
	case <-g.sem(tenantID):
	default:
	}
}
