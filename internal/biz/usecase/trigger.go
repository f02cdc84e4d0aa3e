package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexSolari/botFramework-sub000/internal/biz/domain"
)

// TriggerEngine evaluates whether an action should execute for an inbound
// event. It never fails for normal ineligibility: it always produces a
// verdict. Errors are reserved for state-store faults.
type TriggerEngine struct {
	store *StateStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewTriggerEngine creates an engine consulting the given state store for
// cooldown bookkeeping.
func NewTriggerEngine(store *StateStore, log zerolog.Logger) *TriggerEngine {
	return &TriggerEngine{
		store: store,
		log:   log.With().Str("component", "triggerengine").Logger(),
		now:   time.Now,
	}
}

func verdict(skip bool, reason domain.CheckReason) domain.TriggerCheckResult {
	return domain.TriggerCheckResult{SkipCooldown: skip, Reason: reason}
}

// CheckCommand produces the eligibility verdict for a command action.
// Evaluation short-circuits on the earliest terminal outcome; the ordering
// and reason codes are part of the engine's contract.
func (e *TriggerEngine) CheckCommand(ctx context.Context, action *domain.CommandAction, msg *domain.IncomingMessage, chat *domain.ChatContext) (domain.TriggerCheckResult, error) {
	if action.Active != nil && !action.Active() {
		return verdict(true, domain.ReasonActionDisabled), nil
	}
	if !action.AllowsChat(msg.ChatID) {
		return verdict(true, domain.ReasonChatForbidden), nil
	}

	matched := action.CheckTriggers(msg)
	if !matched.ShouldExecute {
		// A near-miss still respects cooldown bookkeeping upstream, so this
		// verdict does not carry skip-cooldown.
		return verdict(false, domain.ReasonTriggerNotSatisfied), nil
	}

	if msg.SenderID == "" {
		return verdict(true, domain.ReasonUserIDMissing), nil
	}
	if !action.AllowsUser(msg.SenderID) {
		return verdict(true, domain.ReasonUserForbidden), nil
	}

	state, err := e.store.GetState(ctx, action, msg.ChatID)
	if err != nil {
		return verdict(false, domain.ReasonOther), err
	}

	cooldown := action.Cooldown
	if override, ok := action.TakeCooldownOverride(); ok {
		cooldown = override
	}
	if cooldown > 0 && e.now().Sub(state.LastExecutedAt) < cooldown {
		// Cooldown violations must not reset the timer, so skip-cooldown
		// stays false here.
		return verdict(false, domain.ReasonOnCooldown), nil
	}

	if action.Condition != nil && !action.Condition(chat, state) {
		return verdict(true, domain.ReasonCustomConditionNotMet), nil
	}

	return matched, nil
}

// CheckScheduled produces the eligibility verdict for one scheduled run of
// an action in one chat.
func (e *TriggerEngine) CheckScheduled(ctx context.Context, action *domain.ScheduledAction, chatID string, chat *domain.ChatContext) (domain.TriggerCheckResult, error) {
	if action.Active != nil && !action.Active() {
		return verdict(true, domain.ReasonActionDisabled), nil
	}
	if !action.AllowsChat(chatID) {
		return verdict(true, domain.ReasonChatForbidden), nil
	}

	state, err := e.store.GetState(ctx, action, chatID)
	if err != nil {
		return verdict(false, domain.ReasonOther), err
	}
	if action.Condition != nil && !action.Condition(chat, state) {
		return verdict(true, domain.ReasonCustomConditionNotMet), nil
	}

	return domain.TriggerCheckResult{ShouldExecute: true, Reason: domain.ReasonSatisfied}, nil
}

// CheckCapture produces the verdict for an ephemeral reply capture: the
// inbound message must reply to the capture's parent message, and the
// capture's triggers (if any) must accept the reply.
func (e *TriggerEngine) CheckCapture(action *domain.ReplyCaptureAction, msg *domain.IncomingMessage) domain.TriggerCheckResult {
	if msg.ReplyToID == "" || msg.ReplyToID != action.ParentMessageID {
		return verdict(false, domain.ReasonTriggerNotSatisfied)
	}
	if len(action.Triggers) == 0 {
		return domain.TriggerCheckResult{ShouldExecute: true, Reason: domain.ReasonSatisfied}
	}
	matched := action.CheckTriggers(msg)
	if !matched.ShouldExecute {
		return verdict(false, domain.ReasonTriggerNotSatisfied)
	}
	return matched
}

// CheckInline produces the verdict for an inline query action.
func (e *TriggerEngine) CheckInline(action *domain.InlineQueryAction, query *domain.InlineQuery) domain.TriggerCheckResult {
	if action.Active != nil && !action.Active() {
		return verdict(true, domain.ReasonActionDisabled)
	}
	if query.ChatID != "" && !action.AllowsChat(query.ChatID) {
		return verdict(true, domain.ReasonChatForbidden)
	}
	if len(action.Triggers) == 0 {
		return domain.TriggerCheckResult{ShouldExecute: true, Reason: domain.ReasonSatisfied}
	}
	probe := &domain.IncomingMessage{Text: query.Text, Category: domain.CategoryText}
	matched := action.CheckTriggers(probe)
	if !matched.ShouldExecute {
		return verdict(false, domain.ReasonTriggerNotSatisfied)
	}
	return matched
}
