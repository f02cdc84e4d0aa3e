package repo

import (
	"context"

	"github.com/AlexSolari/botFramework-sub000/internal/biz/domain"
)

// MessageHandler receives inbound chat messages from the platform.
type MessageHandler func(msg *domain.IncomingMessage)

// InlineQueryHandler receives inbound query events from the platform.
type InlineQueryHandler func(query *domain.InlineQuery)

// PlatformRepo is the narrow contract the core needs from the external chat
// platform. Transport, authentication and wire format live behind it.
type PlatformRepo interface {
	// SendText sends a text message; replyTo quotes a message when not empty.
	SendText(ctx context.Context, chatID, text, replyTo string) error

	// SendMedia sends a media attachment of the given kind.
	SendMedia(ctx context.Context, chatID, kind, path string) error

	// ToggleReaction toggles an emoji reaction on a message.
	ToggleReaction(ctx context.Context, messageID, emoji string) error

	// Pin pins a message in its chat.
	Pin(ctx context.Context, messageID string) error

	// Unpin unpins a message in its chat.
	Unpin(ctx context.Context, messageID string) error

	// AnswerInline delivers an inline query result set.
	AnswerInline(ctx context.Context, queryID string, results []domain.InlineResult) error

	// OnMessage registers the inbound message subscription.
	OnMessage(handler MessageHandler)

	// OnInlineQuery registers the inbound query subscription.
	OnInlineQuery(handler InlineQueryHandler)

	// Start connects and blocks until ctx is done or the connection fails.
	Start(ctx context.Context) error

	// Stop disconnects.
	Stop()
}
