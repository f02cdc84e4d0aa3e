package eventbus

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexSolari/botFramework-sub000/internal/idgen"
)

// Bus is an in-process typed publish/subscribe hub. Every component of the
// framework reports its lifecycle through the bus; subscribers are used for
// logging in production and for observation in tests.
type Bus struct {
	log zerolog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[Kind]map[int]Handler
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		log:  log,
		subs: make(map[Kind]map[int]Handler),
	}
}

// Subscribe registers a handler for one event kind. The returned function
// removes the subscription and is safe to call more than once.
func (b *Bus) Subscribe(kind Kind, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[int]Handler)
	}
	b.subs[kind][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[kind], id)
	}
}

// SubscribeAll registers a wildcard handler invoked for every event kind.
func (b *Bus) SubscribeAll(h Handler) func() {
	return b.Subscribe(KindAny, h)
}

// Publish delivers the event to all subscribers of its kind and to all
// wildcard subscribers. Missing At and CorrelationID fields are filled in.
// A panicking subscriber is isolated and logged; it does not affect other
// subscribers or the publisher.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.CorrelationID == "" {
		e.CorrelationID = idgen.Correlation()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[e.Kind])+len(b.subs[KindAny]))
	for _, h := range b.subs[e.Kind] {
		handlers = append(handlers, h)
	}
	for _, h := range b.subs[KindAny] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, e)
	}
}

func (b *Bus) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("kind", string(e.Kind)).
				Interface("panic", r).
				Msg("event subscriber panicked")
		}
	}()
	h(e)
}

// AttachLogger mirrors all bus traffic into the structured log at debug
// level, with errors raised to error level.
func (b *Bus) AttachLogger(log zerolog.Logger) func() {
	return b.SubscribeAll(func(e Event) {
		ev := log.Debug()
		if e.Kind == KindError {
			ev = log.Error()
		}
		ev.Str("kind", string(e.Kind)).
			Str("correlation_id", e.CorrelationID).
			Str("action", e.Action).
			Str("tenant", e.Tenant).
			Fields(e.Detail).
			Msg("bus event")
	})
}
