package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatContextEmpty(t *testing.T) {
	chat := NewChatContext("chat-1", "General")
	assert.Empty(t, chat.Recent())
	assert.Nil(t, chat.Last())
}

func TestChatContextOrdering(t *testing.T) {
	chat := NewChatContext("chat-1", "General")
	for i := 0; i < 3; i++ {
		chat.Observe(textMsg(fmt.Sprintf("m%d", i)))
	}

	recent := chat.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "m0", recent[0].Text)
	assert.Equal(t, "m2", recent[2].Text)
	assert.Equal(t, "m2", chat.Last().Text)
}

func TestChatContextEvictsOldest(t *testing.T) {
	chat := NewChatContext("chat-1", "General")
	total := HistoryCapacity + 25
	for i := 0; i < total; i++ {
		chat.Observe(textMsg(fmt.Sprintf("m%d", i)))
	}

	recent := chat.Recent()
	require.Len(t, recent, HistoryCapacity)
	assert.Equal(t, fmt.Sprintf("m%d", total-HistoryCapacity), recent[0].Text)
	assert.Equal(t, fmt.Sprintf("m%d", total-1), recent[len(recent)-1].Text)
}
