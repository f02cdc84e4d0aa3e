package domain

import (
	"context"
	"time"
)

// StateSnapshotFn loads a frozen view of another action's state records.
type StateSnapshotFn func(ctx context.Context, actionKey string) (map[string]*ActionState, error)

// CacheFn fetches or builds a shared cached value with single-flight
// semantics.
type CacheFn func(ctx context.Context, key string, ttl time.Duration, builder func(context.Context) (any, error)) (any, error)

// ExecutionContext is the surface handlers work against. State is a mutable
// working copy written back by the processor after a successful execution;
// responses accumulate in order with a running delay offset.
type ExecutionContext struct {
	TenantID      string
	CorrelationID string

	// Matches are the trigger capture groups that satisfied the check.
	Matches [][]string

	// Message is the inbound message for command and capture executions;
	// nil for scheduled runs.
	Message *IncomingMessage

	// Chat is the tenant's display context (name, recent history).
	Chat *ChatContext

	// State is the mutable working copy of this action's per-tenant record.
	State *ActionState

	responses []Response
	delay     time.Duration

	loadStateOf StateSnapshotFn
	cached      CacheFn
	setOverride func(time.Duration)
}

// NewExecutionContext wires an execution context; used by the processor and
// by tests that drive handlers directly.
func NewExecutionContext(
	tenantID, correlationID string,
	matches [][]string,
	msg *IncomingMessage,
	chat *ChatContext,
	state *ActionState,
	loadStateOf StateSnapshotFn,
	cached CacheFn,
	setOverride func(time.Duration),
) *ExecutionContext {
	return &ExecutionContext{
		TenantID:      tenantID,
		CorrelationID: correlationID,
		Matches:       matches,
		Message:       msg,
		Chat:          chat,
		State:         state,
		loadStateOf:   loadStateOf,
		cached:        cached,
		setOverride:   setOverride,
	}
}

// Reply queues a text response to the tenant's chat.
func (e *ExecutionContext) Reply(text string) {
	e.push(Response{Kind: ResponseText, Text: text})
}

// ReplyToMessage queues a text response quoting a specific message.
func (e *ExecutionContext) ReplyToMessage(messageID, text string) {
	e.push(Response{Kind: ResponseText, Text: text, ReplyTo: messageID})
}

// ReplyWithDelay queues a text response delivered d after the current
// offset, without shifting later responses.
func (e *ExecutionContext) ReplyWithDelay(text string, d time.Duration) {
	r := Response{Kind: ResponseText, Text: text, TenantID: e.TenantID, Delay: e.delay + d}
	e.responses = append(e.responses, r)
}

// Wait advances the logical delivery timestamp of every subsequent
// response by d.
func (e *ExecutionContext) Wait(d time.Duration) {
	if d > 0 {
		e.delay += d
	}
}

// SendMedia queues a media response.
func (e *ExecutionContext) SendMedia(kind, path string) {
	e.push(Response{Kind: ResponseMedia, MediaKind: kind, MediaPath: path})
}

// React queues a reaction toggle on a message.
func (e *ExecutionContext) React(messageID, emoji string) {
	e.push(Response{Kind: ResponseReaction, MessageID: messageID, Emoji: emoji})
}

// Pin queues a pin operation and records it in the working state.
func (e *ExecutionContext) Pin(messageID string) {
	e.State.Pin(messageID)
	e.push(Response{Kind: ResponsePin, MessageID: messageID})
}

// Unpin queues an unpin operation and removes it from the working state.
func (e *ExecutionContext) Unpin(messageID string) {
	e.State.Unpin(messageID)
	e.push(Response{Kind: ResponseUnpin, MessageID: messageID})
}

// SetCooldownOverride arms the action's one-shot cooldown override for the
// next eligibility check.
func (e *ExecutionContext) SetCooldownOverride(d time.Duration) {
	if e.setOverride != nil {
		e.setOverride(d)
	}
}

// LoadStateOf returns a frozen snapshot of another action's state records.
// Mutating the snapshot has no effect on the canonical copy.
func (e *ExecutionContext) LoadStateOf(ctx context.Context, actionKey string) (map[string]*ActionState, error) {
	return e.loadStateOf(ctx, actionKey)
}

// Cached fetches a process-wide cached value, building it at most once
// concurrently per key.
func (e *ExecutionContext) Cached(ctx context.Context, key string, ttl time.Duration, builder func(context.Context) (any, error)) (any, error) {
	return e.cached(ctx, key, ttl, builder)
}

// Responses returns the accumulated side-effects in production order.
func (e *ExecutionContext) Responses() []Response {
	return e.responses
}

func (e *ExecutionContext) push(r Response) {
	r.TenantID = e.TenantID
	r.Delay = e.delay
	e.responses = append(e.responses, r)
}
