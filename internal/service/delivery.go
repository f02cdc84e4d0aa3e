package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// QueueItem is one pending side-effect. Priority is the logical delivery
// timestamp in Unix milliseconds; the queue executes items in ascending
// priority order once they come due.
type QueueItem struct {
	Priority int64
	Run      func(ctx context.Context) error
}

// DeliveryQueue orders produced side-effects and drains them under a fixed
// minimum spacing between consecutive executions. A single drain loop is
// active at a time; items enqueued by callbacks running during a flush are
// observed by the same drain.
type DeliveryQueue struct {
	log        zerolog.Logger
	minSpacing time.Duration
	now        func() time.Time

	mu       sync.Mutex
	items    []*QueueItem
	flushing bool
	lastRun  time.Time
}

// NewDeliveryQueue creates a queue with the given minimum inter-item
// spacing (zero disables rate limiting).
func NewDeliveryQueue(minSpacing time.Duration, log zerolog.Logger) *DeliveryQueue {
	return &DeliveryQueue{
		log:        log.With().Str("component", "delivery").Logger(),
		minSpacing: minSpacing,
		now:        time.Now,
	}
}

// Enqueue inserts the item preserving ascending priority order. Appending
// is the fast path for the common monotonically increasing enqueue order;
// otherwise an O(n) insertion finds the slot, placing equal priorities
// after existing ones.
func (q *DeliveryQueue) Enqueue(item *QueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n := len(q.items); n == 0 || item.Priority >= q.items[n-1].Priority {
		q.items = append(q.items, item)
		return
	}
	for i, existing := range q.items {
		if item.Priority < existing.Priority {
			q.items = append(q.items, nil)
			copy(q.items[i+1:], q.items[i:])
			q.items[i] = item
			return
		}
	}
}

// Len reports the number of pending items.
func (q *DeliveryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Flush drains the queue. A call that finds a flush already in progress
// returns immediately. The drain executes one item at a time: it waits for
// the head item to come due, honors the rate limit, runs the callback to
// completion, then re-checks the queue, so it stops only when the queue is
// empty. A callback error propagates to the caller; items already executed
// are not restored.
func (q *DeliveryQueue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if q.flushing {
		q.mu.Unlock()
		return nil
	}
	q.flushing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.flushing = false
		q.mu.Unlock()
	}()

	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			return nil
		}
		head := q.items[0]
		q.mu.Unlock()

		// Idle until the head item comes due. New items may arrive while
		// waiting, so re-check the head afterwards.
		due := time.UnixMilli(head.Priority)
		if wait := due.Sub(q.now()); wait > 0 {
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
			continue
		}

		q.mu.Lock()
		spacing := q.minSpacing - q.now().Sub(q.lastRun)
		q.mu.Unlock()
		if spacing > 0 {
			if err := sleepCtx(ctx, spacing); err != nil {
				return err
			}
		}

		q.mu.Lock()
		// The head may have changed while waiting; take the current one.
		head = q.items[0]
		q.items = q.items[1:]
		q.lastRun = q.now()
		q.mu.Unlock()

		if err := head.Run(ctx); err != nil {
			q.log.Error().Err(err).Msg("delivery item failed")
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
