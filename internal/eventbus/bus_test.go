package eventbus

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	return NewBus(zerolog.Nop())
}

func TestSubscribeReceivesMatchingKind(t *testing.T) {
	bus := newTestBus()

	var got []Event
	bus.Subscribe(KindCommandExecutionStarted, func(e Event) {
		got = append(got, e)
	})

	bus.Publish(Event{Kind: KindCommandExecutionStarted, Action: "commands/ping"})
	bus.Publish(Event{Kind: KindCommandExecutionFinished, Action: "commands/ping"})

	require.Len(t, got, 1)
	assert.Equal(t, "commands/ping", got[0].Action)
}

func TestSubscribeAllSeesEverything(t *testing.T) {
	bus := newTestBus()

	var kinds []Kind
	bus.SubscribeAll(func(e Event) {
		kinds = append(kinds, e.Kind)
	})

	bus.Publish(Event{Kind: KindStateSaved})
	bus.Publish(Event{Kind: KindTaskRun})

	assert.Equal(t, []Kind{KindStateSaved, KindTaskRun}, kinds)
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()

	calls := 0
	unsub := bus.Subscribe(KindError, func(Event) { calls++ })

	bus.Publish(Event{Kind: KindError})
	unsub()
	unsub() // safe to call twice
	bus.Publish(Event{Kind: KindError})

	assert.Equal(t, 1, calls)
}

func TestPublishFillsMetadata(t *testing.T) {
	bus := newTestBus()

	var got Event
	bus.Subscribe(KindStateLoaded, func(e Event) { got = e })

	bus.Publish(Event{Kind: KindStateLoaded})

	assert.NotEmpty(t, got.CorrelationID)
	assert.False(t, got.At.IsZero())
}

func TestPanickingSubscriberIsolated(t *testing.T) {
	bus := newTestBus()

	bus.Subscribe(KindTaskRun, func(Event) { panic("boom") })

	delivered := false
	bus.Subscribe(KindTaskRun, func(Event) { delivered = true })

	require.NotPanics(t, func() {
		bus.Publish(Event{Kind: KindTaskRun})
	})
	assert.True(t, delivered)
}
