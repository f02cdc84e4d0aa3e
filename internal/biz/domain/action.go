package domain

import (
	"context"
	"sync"
	"time"
)

// CommandHandler is the business logic of a command or scheduled action.
// It mutates the working state copy on the execution context and queues
// responses through it.
type CommandHandler func(ctx context.Context, exec *ExecutionContext) error

// InlineHandler answers an inline query with a result set. It must observe
// ctx: a superseding query from the same tenant cancels it.
type InlineHandler func(ctx context.Context, query *InlineQuery) ([]InlineResult, error)

// ActionBase carries the attributes shared by all action variants. Actions
// are created once at configuration time and immutable afterwards, except
// for per-tenant runtime bookkeeping held by the runtime types below.
type ActionBase struct {
	// Key is the globally unique, stable identity used as the storage and
	// lock namespace.
	Key  string
	Name string

	Triggers []Trigger

	// Active is re-evaluated on every eligibility check; nil means always
	// active.
	Active func() bool

	// Blacklist wins over Whitelist; an empty Whitelist allows all chats.
	Blacklist []string
	Whitelist []string

	// NewState constructs the default state record; nil means the zero
	// ActionState.
	NewState func() *ActionState
}

// StateKey implements the state-store addressing contract.
func (a *ActionBase) StateKey() string { return a.Key }

// FreshState returns the default-constructed state for this action.
func (a *ActionBase) FreshState() *ActionState {
	if a.NewState != nil {
		return a.NewState()
	}
	return NewActionState()
}

// AllowsChat checks blacklist then whitelist membership.
func (a *ActionBase) AllowsChat(chatID string) bool {
	for _, id := range a.Blacklist {
		if id == chatID {
			return false
		}
	}
	if len(a.Whitelist) == 0 {
		return true
	}
	for _, id := range a.Whitelist {
		if id == chatID {
			return true
		}
	}
	return false
}

// CheckTriggers evaluates every configured trigger in declaration order and
// merges the results.
func (a *ActionBase) CheckTriggers(msg *IncomingMessage) TriggerCheckResult {
	merged := EmptyTriggerCheckResult()
	for _, t := range a.Triggers {
		merged = merged.Merge(t.Check(msg))
	}
	return merged
}

// CommandAction executes in response to a matching inbound message.
type CommandAction struct {
	ActionBase

	// UserWhitelist restricts which senders may invoke the command; empty
	// allows all. Commands always require a sender identity.
	UserWhitelist []string

	Cooldown time.Duration

	// ConcurrencyLimit bounds simultaneous in-flight executions per tenant;
	// zero means unlimited.
	ConcurrencyLimit int

	// Condition is an optional custom predicate over (chat, state).
	Condition func(chat *ChatContext, state *ActionState) bool

	Handler CommandHandler

	gateOnce sync.Once
	gate     *Gate

	// cooldownOverride is the sticky one-shot override: a custom cooldown
	// requested during an execution replaces the configured one for exactly
	// one subsequent check, then reverts. The slot is shared by all tenants
	// of this action instance; kept as-is for compatibility with observed
	// behavior.
	overrideMu       sync.Mutex
	cooldownOverride *time.Duration
}

// Gate returns the per-tenant concurrency gate, created on first use.
func (a *CommandAction) Gate() *Gate {
	a.gateOnce.Do(func() {
		a.gate = NewGate(a.ConcurrencyLimit)
	})
	return a.gate
}

// AllowsUser checks the per-user whitelist; empty allows all.
func (a *CommandAction) AllowsUser(userID string) bool {
	if len(a.UserWhitelist) == 0 {
		return true
	}
	for _, id := range a.UserWhitelist {
		if id == userID {
			return true
		}
	}
	return false
}

// SetCooldownOverride arms the one-shot cooldown override.
func (a *CommandAction) SetCooldownOverride(d time.Duration) {
	a.overrideMu.Lock()
	defer a.overrideMu.Unlock()
	a.cooldownOverride = &d
}

// TakeCooldownOverride consumes the override, if armed.
func (a *CommandAction) TakeCooldownOverride() (time.Duration, bool) {
	a.overrideMu.Lock()
	defer a.overrideMu.Unlock()
	if a.cooldownOverride == nil {
		return 0, false
	}
	d := *a.cooldownOverride
	a.cooldownOverride = nil
	return d, true
}

// ScheduledAction executes on a timer for every chat in its Whitelist.
type ScheduledAction struct {
	ActionBase

	Interval time.Duration

	// Condition is an optional custom predicate over (chat, state).
	Condition func(chat *ChatContext, state *ActionState) bool

	Handler CommandHandler
}

// InlineQueryAction answers inline query events.
type InlineQueryAction struct {
	ActionBase

	Handler InlineHandler
}

// ReplyCaptureAction is an ephemeral action registered per outstanding
// prompt. It fires when a message replies to ParentMessageID and its
// triggers (if any) accept the reply text.
type ReplyCaptureAction struct {
	ActionBase

	ParentMessageID string
	Handler         CommandHandler
}

// InlineResult is one entry of an inline query answer.
type InlineResult struct {
	ID          string
	Title       string
	Description string
	Text        string
}
