package domain

import (
	"sync"
	"time"
)

// Category classifies an inbound message for categorical triggers.
type Category string

const (
	// CategoryAny matches every message category.
	CategoryAny Category = "any"

	CategoryText    Category = "text"
	CategoryMedia   Category = "media"
	CategorySticker Category = "sticker"
	CategoryService Category = "service"
)

// IncomingMessage is one inbound chat event as seen by the dispatcher.
type IncomingMessage struct {
	ChatID     string
	MessageID  string
	Text       string
	Category   Category
	SenderID   string
	SenderName string
	ReplyToID  string
	SentAt     time.Time
}

// InlineQuery is an inbound query event (e.g. an inline bot query).
type InlineQuery struct {
	QueryID  string
	ChatID   string
	SenderID string
	Text     string
}

// HistoryCapacity is the number of recent messages retained per chat for
// quoting and logging.
const HistoryCapacity = 100

// ChatContext carries denormalized display metadata for one chat: its name
// and a bounded ring of recently observed messages. It is owned by the
// message processor, not by the state model.
type ChatContext struct {
	ChatID string
	Name   string

	mu      sync.Mutex
	history []*IncomingMessage
	next    int
	full    bool
}

// NewChatContext creates a context for one chat.
func NewChatContext(chatID, name string) *ChatContext {
	return &ChatContext{
		ChatID:  chatID,
		Name:    name,
		history: make([]*IncomingMessage, HistoryCapacity),
	}
}

// Observe records a message in the ring, evicting the oldest entry once
// the ring is at capacity.
func (c *ChatContext) Observe(msg *IncomingMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history[c.next] = msg
	c.next = (c.next + 1) % len(c.history)
	if c.next == 0 {
		c.full = true
	}
}

// Recent returns the retained messages, oldest first.
func (c *ChatContext) Recent() []*IncomingMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*IncomingMessage
	if c.full {
		out = append(out, c.history[c.next:]...)
	}
	out = append(out, c.history[:c.next]...)
	return out
}

// Last returns the most recently observed message, or nil.
func (c *ChatContext) Last() *IncomingMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.next - 1
	if idx < 0 {
		if !c.full {
			return nil
		}
		idx = len(c.history) - 1
	}
	return c.history[idx]
}
