package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexSolari/botFramework-sub000/internal/eventbus"
)

func newTestTimers(t *testing.T) *TimerService {
	t.Helper()
	s := NewTimerService(eventbus.NewBus(zerolog.Nop()), zerolog.Nop())
	t.Cleanup(s.Stop)
	return s
}

func TestOnceFiresAfterDelay(t *testing.T) {
	timers := newTestTimers(t)

	fired := make(chan struct{})
	timers.Once("test-once", 10*time.Millisecond, func(context.Context) {
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("one-shot task did not fire")
	}
}

func TestScheduleRepeats(t *testing.T) {
	timers := newTestTimers(t)

	var runs atomic.Int32
	handle := timers.Schedule("test-repeat", 15*time.Millisecond, func(context.Context) {
		runs.Add(1)
	})

	require.Eventually(t, func() bool { return runs.Load() >= 3 },
		time.Second, 5*time.Millisecond)

	handle.Stop()
	settled := runs.Load()
	time.Sleep(60 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), settled+1, "task must stop after handle.Stop")
}

func TestHandleStopBeforeFire(t *testing.T) {
	timers := newTestTimers(t)

	fired := atomic.Bool{}
	handle := timers.Once("test-cancel", 50*time.Millisecond, func(context.Context) {
		fired.Store(true)
	})
	handle.Stop()
	handle.Stop() // idempotent

	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestStopWaitsForInflight(t *testing.T) {
	timers := NewTimerService(eventbus.NewBus(zerolog.Nop()), zerolog.Nop())

	started := make(chan struct{})
	done := atomic.Bool{}
	timers.Once("test-inflight", time.Millisecond, func(context.Context) {
		close(started)
		time.Sleep(30 * time.Millisecond)
		done.Store(true)
	})

	<-started
	timers.Stop()
	assert.True(t, done.Load(), "Stop must wait for the running callback")
}

func TestPanickingTaskIsolated(t *testing.T) {
	timers := newTestTimers(t)

	timers.Once("test-panic", time.Millisecond, func(context.Context) {
		panic("boom")
	})

	ok := make(chan struct{})
	timers.Once("test-after-panic", 20*time.Millisecond, func(context.Context) {
		close(ok)
	})

	select {
	case <-ok:
	case <-time.After(time.Second):
		t.Fatal("service died after a panicking task")
	}
}

func TestTaskLifecycleEvents(t *testing.T) {
	bus := eventbus.NewBus(zerolog.Nop())
	timers := NewTimerService(bus, zerolog.Nop())
	t.Cleanup(timers.Stop)

	created := make(chan eventbus.Event, 1)
	ran := make(chan eventbus.Event, 1)
	bus.Subscribe(eventbus.KindTaskCreated, func(e eventbus.Event) { created <- e })
	bus.Subscribe(eventbus.KindTaskRun, func(e eventbus.Event) { ran <- e })

	timers.Once("test-events", time.Millisecond, func(context.Context) {})

	select {
	case e := <-created:
		assert.Equal(t, "test-events", e.Detail["task"])
	case <-time.After(time.Second):
		t.Fatal("no task-created event")
	}
	select {
	case e := <-ran:
		assert.Equal(t, "test-events", e.Detail["task"])
	case <-time.After(time.Second):
		t.Fatal("no task-run event")
	}
}
