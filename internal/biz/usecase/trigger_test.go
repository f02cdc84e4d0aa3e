package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexSolari/botFramework-sub000/internal/biz/domain"
	"github.com/AlexSolari/botFramework-sub000/internal/eventbus"
)

func newTestEngine(t *testing.T) (*TriggerEngine, *StateStore) {
	t.Helper()
	bus := eventbus.NewBus(zerolog.Nop())
	store := NewStateStore(newMemoryRepo(), bus, zerolog.Nop())
	return NewTriggerEngine(store, zerolog.Nop()), store
}

func pingAction() *domain.CommandAction {
	return &domain.CommandAction{
		ActionBase: domain.ActionBase{
			Key:      "commands/ping",
			Name:     "ping",
			Triggers: []domain.Trigger{domain.TextTrigger("!ping")},
		},
	}
}

func pingMsg() *domain.IncomingMessage {
	return &domain.IncomingMessage{
		ChatID:    "chat-1",
		MessageID: "msg-1",
		Text:      "!ping",
		Category:  domain.CategoryText,
		SenderID:  "user-1",
	}
}

func TestCheckCommandSatisfied(t *testing.T) {
	engine, _ := newTestEngine(t)

	res, err := engine.CheckCommand(context.Background(), pingAction(), pingMsg(), nil)
	require.NoError(t, err)
	assert.True(t, res.ShouldExecute)
	assert.Equal(t, domain.ReasonSatisfied, res.Reason)
	assert.Equal(t, [][]string{{"!ping"}}, res.Matches)
}

func TestCheckCommandDisabled(t *testing.T) {
	engine, _ := newTestEngine(t)
	action := pingAction()
	action.Active = func() bool { return false }

	res, err := engine.CheckCommand(context.Background(), action, pingMsg(), nil)
	require.NoError(t, err)
	assert.False(t, res.ShouldExecute)
	assert.Equal(t, domain.ReasonActionDisabled, res.Reason)
	assert.True(t, res.SkipCooldown)
}

func TestCheckCommandChatForbidden(t *testing.T) {
	engine, _ := newTestEngine(t)
	action := pingAction()
	action.Blacklist = []string{"chat-1"}

	res, err := engine.CheckCommand(context.Background(), action, pingMsg(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonChatForbidden, res.Reason)
	assert.True(t, res.SkipCooldown)
}

func TestCheckCommandTriggerNotSatisfied(t *testing.T) {
	engine, _ := newTestEngine(t)
	msg := pingMsg()
	msg.Text = "hello"

	res, err := engine.CheckCommand(context.Background(), pingAction(), msg, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonTriggerNotSatisfied, res.Reason)
	assert.False(t, res.SkipCooldown)
}

func TestCheckCommandUserChecksAfterTriggerMatch(t *testing.T) {
	engine, _ := newTestEngine(t)

	action := pingAction()
	msg := pingMsg()
	msg.SenderID = ""
	res, err := engine.CheckCommand(context.Background(), action, msg, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonUserIDMissing, res.Reason)
	assert.True(t, res.SkipCooldown)

	action.UserWhitelist = []string{"someone-else"}
	res, err = engine.CheckCommand(context.Background(), action, pingMsg(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonUserForbidden, res.Reason)
	assert.True(t, res.SkipCooldown)

	// A non-matching message from a missing sender reports the trigger
	// mismatch, not the identity gap: triggers are checked first.
	miss := pingMsg()
	miss.Text = "hello"
	miss.SenderID = ""
	res, err = engine.CheckCommand(context.Background(), action, miss, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonTriggerNotSatisfied, res.Reason)
}

func TestCheckCommandCooldown(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	action := pingAction()
	action.Cooldown = time.Minute

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return base }

	state := domain.NewActionState()
	state.LastExecutedAt = base.Add(-30 * time.Second)
	require.NoError(t, store.Save(ctx, action, "chat-1", state))

	res, err := engine.CheckCommand(ctx, action, pingMsg(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonOnCooldown, res.Reason)
	assert.False(t, res.SkipCooldown, "cooldown rejections must not reset the timer")

	engine.now = func() time.Time { return base.Add(31 * time.Second) }
	res, err = engine.CheckCommand(ctx, action, pingMsg(), nil)
	require.NoError(t, err)
	assert.True(t, res.ShouldExecute)
}

func TestCooldownOverrideAppliesOnce(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	action := pingAction()
	action.Cooldown = time.Minute

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return base }

	state := domain.NewActionState()
	state.LastExecutedAt = base.Add(-30 * time.Second)
	require.NoError(t, store.Save(ctx, action, "chat-1", state))

	// Shorten the cooldown to 10s for exactly one check.
	action.SetCooldownOverride(10 * time.Second)

	res, err := engine.CheckCommand(ctx, action, pingMsg(), nil)
	require.NoError(t, err)
	assert.True(t, res.ShouldExecute, "override should admit the first check")

	res, err = engine.CheckCommand(ctx, action, pingMsg(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonOnCooldown, res.Reason, "second check reverts to the configured cooldown")
}

func TestCheckCommandCustomCondition(t *testing.T) {
	engine, _ := newTestEngine(t)

	action := pingAction()
	action.Condition = func(chat *domain.ChatContext, state *domain.ActionState) bool {
		return false
	}

	res, err := engine.CheckCommand(context.Background(), action, pingMsg(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonCustomConditionNotMet, res.Reason)
	assert.True(t, res.SkipCooldown)
}

func TestCheckScheduled(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	action := &domain.ScheduledAction{
		ActionBase: domain.ActionBase{Key: "scheduled/digest", Whitelist: []string{"chat-1"}},
		Interval:   time.Hour,
	}

	res, err := engine.CheckScheduled(ctx, action, "chat-1", nil)
	require.NoError(t, err)
	assert.True(t, res.ShouldExecute)

	res, err = engine.CheckScheduled(ctx, action, "chat-2", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonChatForbidden, res.Reason)
}

func TestCheckCapture(t *testing.T) {
	engine, _ := newTestEngine(t)

	action := &domain.ReplyCaptureAction{
		ActionBase: domain.ActionBase{
			Key:      "captures/confirm",
			Triggers: []domain.Trigger{domain.TextTrigger("yes")},
		},
		ParentMessageID: "parent-1",
	}

	reply := &domain.IncomingMessage{ChatID: "chat-1", Text: "YES", ReplyToID: "parent-1", SenderID: "user-1"}
	res := engine.CheckCapture(action, reply)
	assert.True(t, res.ShouldExecute)

	wrongParent := &domain.IncomingMessage{ChatID: "chat-1", Text: "yes", ReplyToID: "other", SenderID: "user-1"}
	assert.False(t, engine.CheckCapture(action, wrongParent).ShouldExecute)

	wrongText := &domain.IncomingMessage{ChatID: "chat-1", Text: "maybe", ReplyToID: "parent-1", SenderID: "user-1"}
	assert.False(t, engine.CheckCapture(action, wrongText).ShouldExecute)
}

func TestCheckInline(t *testing.T) {
	engine, _ := newTestEngine(t)

	action := &domain.InlineQueryAction{
		ActionBase: domain.ActionBase{
			Key:      "inline/search",
			Triggers: []domain.Trigger{domain.NewPatternTrigger(`^find (.+)$`, false)},
		},
	}

	res := engine.CheckInline(action, &domain.InlineQuery{Text: "find cats"})
	require.True(t, res.ShouldExecute)
	assert.Equal(t, "cats", res.Matches[0][1])

	assert.False(t, engine.CheckInline(action, &domain.InlineQuery{Text: "nothing"}).ShouldExecute)
}
