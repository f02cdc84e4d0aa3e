package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowsChatBlacklistWins(t *testing.T) {
	action := ActionBase{
		Key:       "commands/test",
		Whitelist: []string{"chat-1", "chat-2"},
		Blacklist: []string{"chat-2"},
	}

	assert.True(t, action.AllowsChat("chat-1"))
	assert.False(t, action.AllowsChat("chat-2"))
	assert.False(t, action.AllowsChat("chat-3"))
}

func TestAllowsChatEmptyWhitelistAllowsAll(t *testing.T) {
	action := ActionBase{Key: "commands/test"}
	assert.True(t, action.AllowsChat("anything"))
}

func TestAllowsUser(t *testing.T) {
	action := &CommandAction{UserWhitelist: []string{"user-1"}}
	assert.True(t, action.AllowsUser("user-1"))
	assert.False(t, action.AllowsUser("user-2"))

	open := &CommandAction{}
	assert.True(t, open.AllowsUser("anyone"))
}

func TestFreshStateUsesFactory(t *testing.T) {
	action := ActionBase{
		Key: "commands/test",
		NewState: func() *ActionState {
			s := NewActionState()
			s.Set("counter", 5)
			return s
		},
	}

	state := action.FreshState()
	assert.Equal(t, 5, state.Custom["counter"])

	plain := ActionBase{Key: "commands/plain"}
	assert.NotNil(t, plain.FreshState())
}

func TestCooldownOverrideConsumedOnce(t *testing.T) {
	action := &CommandAction{}

	_, ok := action.TakeCooldownOverride()
	assert.False(t, ok)

	action.SetCooldownOverride(42 * time.Second)

	d, ok := action.TakeCooldownOverride()
	require.True(t, ok)
	assert.Equal(t, 42*time.Second, d)

	_, ok = action.TakeCooldownOverride()
	assert.False(t, ok, "override must be cleared after one take")
}

func TestGateLazySingleton(t *testing.T) {
	action := &CommandAction{ConcurrencyLimit: 1}
	assert.Same(t, action.Gate(), action.Gate())
}
