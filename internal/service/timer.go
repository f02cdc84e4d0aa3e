package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexSolari/botFramework-sub000/internal/eventbus"
)

// TimerService schedules repeating and one-shot callbacks and emits
// lifecycle events for each of them. Callbacks receive a context that is
// cancelled when the service stops.
type TimerService struct {
	bus *eventbus.Bus
	log zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// TimerHandle stops one scheduled task.
type TimerHandle struct {
	once sync.Once
	stop func()
}

// Stop cancels the task; safe to call more than once.
func (h *TimerHandle) Stop() {
	h.once.Do(h.stop)
}

// NewTimerService creates a running timer service.
func NewTimerService(bus *eventbus.Bus, log zerolog.Logger) *TimerService {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerService{
		bus:    bus,
		log:    log.With().Str("component", "timers").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Schedule registers a repeating task; the first run happens one interval
// after registration.
func (s *TimerService) Schedule(name string, interval time.Duration, fn func(context.Context)) *TimerHandle {
	taskCtx, taskCancel := context.WithCancel(s.ctx)
	s.announce(name, interval, true)

	s.run(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-taskCtx.Done():
				return
			case <-ticker.C:
				s.fire(taskCtx, name, fn)
			}
		}
	})

	return &TimerHandle{stop: taskCancel}
}

// Once registers a one-shot task fired after delay.
func (s *TimerService) Once(name string, delay time.Duration, fn func(context.Context)) *TimerHandle {
	taskCtx, taskCancel := context.WithCancel(s.ctx)
	s.announce(name, delay, false)

	s.run(func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-taskCtx.Done():
		case <-timer.C:
			s.fire(taskCtx, name, fn)
		}
	})

	return &TimerHandle{stop: taskCancel}
}

// OnceFunc is Once without the handle, matching the shared cache's expiry
// scheduler signature.
func (s *TimerService) OnceFunc(name string, delay time.Duration, fn func(context.Context)) {
	s.Once(name, delay, fn)
}

// Stop cancels every task and waits for in-flight callbacks to return.
func (s *TimerService) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.log.Debug().Msg("timer service stopped")
}

func (s *TimerService) run(loop func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		loop()
	}()
}

func (s *TimerService) announce(name string, interval time.Duration, repeating bool) {
	s.bus.Publish(eventbus.Event{
		Kind: eventbus.KindTaskCreated,
		Detail: map[string]any{
			"task":      name,
			"interval":  interval.String(),
			"repeating": repeating,
		},
	})
}

func (s *TimerService) fire(ctx context.Context, name string, fn func(context.Context)) {
	s.bus.Publish(eventbus.Event{
		Kind:   eventbus.KindTaskRun,
		Detail: map[string]any{"task": name},
	})
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("task", name).Interface("panic", r).Msg("timer task panicked")
			s.bus.Publish(eventbus.Event{
				Kind:   eventbus.KindError,
				Detail: map[string]any{"task": name, "panic": r},
			})
		}
	}()
	fn(ctx)
}
