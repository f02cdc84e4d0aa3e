package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	larksdk "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/rs/zerolog"

	"github.com/AlexSolari/botFramework-sub000/internal/biz/domain"
	"github.com/AlexSolari/botFramework-sub000/internal/biz/repo"
)

// Client adapts the Lark open platform to the framework's PlatformRepo
// contract: a websocket subscription for inbound messages and the IM API
// for outbound effects. Lark has no inline query surface, so AnswerInline
// reports unsupported and the inline handler is never invoked.
type Client struct {
	appID     string
	appSecret string
	log       zerolog.Logger

	larkCli *larksdk.Client
	wsCli   *larkws.Client

	onMessage repo.MessageHandler
	onInline  repo.InlineQueryHandler

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates an adapter; the connection is established by Start.
func NewClient(appID, appSecret string, log zerolog.Logger) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		log:       log.With().Str("component", "lark").Logger(),
	}
}

// OnMessage registers the inbound message subscription.
func (c *Client) OnMessage(handler repo.MessageHandler) {
	c.onMessage = handler
}

// OnInlineQuery registers the inbound query subscription. Lark never
// produces these events; the registration is kept for contract symmetry.
func (c *Client) OnInlineQuery(handler repo.InlineQueryHandler) {
	c.onInline = handler
}

// Start connects via websocket and blocks until ctx is done or the
// connection fails.
func (c *Client) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.larkCli = larksdk.NewClient(c.appID, c.appSecret)

	// The dispatcher callback must return quickly so the SDK can ACK;
	// dispatch happens on a separate goroutine.
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.log.Info().Msg("starting websocket connection")
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	rawMsg := event.Event.Message
	if rawMsg == nil {
		return
	}

	// Ignore the bot's own messages to prevent dispatch loops.
	if event.Event.Sender != nil && event.Event.Sender.SenderType != nil {
		if *event.Event.Sender.SenderType == "app" {
			return
		}
	}

	msg := &domain.IncomingMessage{
		ChatID:    stringValue(rawMsg.ChatId),
		MessageID: stringValue(rawMsg.MessageId),
		Category:  categoryOf(stringValue(rawMsg.MessageType)),
		ReplyToID: stringValue(rawMsg.ParentId),
	}

	if rawMsg.CreateTime != nil {
		if ms, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.SentAt = time.UnixMilli(ms)
		}
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}

	if event.Event.Sender != nil && event.Event.Sender.SenderId != nil {
		msg.SenderID = stringValue(event.Event.Sender.SenderId.OpenId)
	}

	if msg.Category == domain.CategoryText && rawMsg.Content != nil {
		var textContent struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(*rawMsg.Content), &textContent); err != nil {
			c.log.Warn().Err(err).Msg("failed to parse message content")
			return
		}
		msg.Text = textContent.Text
	}

	c.log.Debug().Str("chat", msg.ChatID).Str("category", string(msg.Category)).Msg("message received")

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// SendText sends a text message; replyTo quotes a message when not empty.
func (c *Client) SendText(ctx context.Context, chatID, text, replyTo string) error {
	content, _ := json.Marshal(map[string]string{"text": text})

	if replyTo != "" {
		req := larkim.NewReplyMessageReqBuilder().
			MessageId(replyTo).
			Body(larkim.NewReplyMessageReqBodyBuilder().
				MsgType(larkim.MsgTypeText).
				Content(string(content)).
				Build()).
			Build()
		resp, err := c.larkCli.Im.Message.Reply(ctx, req)
		if err != nil {
			return fmt.Errorf("reply message failed: %w", err)
		}
		if !resp.Success() {
			return fmt.Errorf("reply message error: %s", resp.Msg)
		}
		return nil
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}
	return nil
}

// SendMedia sends a media attachment. Only images are supported by this
// adapter; other kinds fall back to a text placeholder.
func (c *Client) SendMedia(ctx context.Context, chatID, kind, path string) error {
	if kind != "image" {
		return c.SendText(ctx, chatID, fmt.Sprintf("[%s] %s", kind, path), "")
	}

	imageKey, err := c.uploadImage(ctx, path)
	if err != nil {
		return err
	}

	content, _ := json.Marshal(map[string]string{"image_key": imageKey})
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeImage).
			Content(string(content)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send image failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send image error: %s", resp.Msg)
	}
	return nil
}

func (c *Client) uploadImage(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	req := larkim.NewCreateImageReqBuilder().
		Body(larkim.NewCreateImageReqBodyBuilder().
			ImageType("message").
			Image(file).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Image.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("upload image failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("upload image error: %s", resp.Msg)
	}
	return stringValue(resp.Data.ImageKey), nil
}

// ToggleReaction adds an emoji reaction to a message.
func (c *Client) ToggleReaction(ctx context.Context, messageID, emoji string) error {
	req := larkim.NewCreateMessageReactionReqBuilder().
		MessageId(messageID).
		Body(larkim.NewCreateMessageReactionReqBodyBuilder().
			ReactionType(larkim.NewEmojiBuilder().EmojiType(emoji).Build()).
			Build()).
		Build()

	resp, err := c.larkCli.Im.MessageReaction.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("add reaction failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("add reaction error: %s", resp.Msg)
	}
	return nil
}

// Pin pins a message in its chat.
func (c *Client) Pin(ctx context.Context, messageID string) error {
	req := larkim.NewCreatePinReqBuilder().
		Body(larkim.NewCreatePinReqBodyBuilder().
			MessageId(messageID).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Pin.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("pin message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("pin message error: %s", resp.Msg)
	}
	return nil
}

// Unpin removes a pin.
func (c *Client) Unpin(ctx context.Context, messageID string) error {
	req := larkim.NewDeletePinReqBuilder().
		MessageId(messageID).
		Build()

	resp, err := c.larkCli.Im.Pin.Delete(ctx, req)
	if err != nil {
		return fmt.Errorf("unpin message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("unpin message error: %s", resp.Msg)
	}
	return nil
}

// AnswerInline is not supported by the Lark surface.
func (c *Client) AnswerInline(ctx context.Context, queryID string, results []domain.InlineResult) error {
	return fmt.Errorf("inline queries are not supported by the lark adapter")
}

func categoryOf(msgType string) domain.Category {
	switch msgType {
	case "text", "post":
		return domain.CategoryText
	case "image", "file", "audio", "media", "video":
		return domain.CategoryMedia
	case "sticker":
		return domain.CategorySticker
	default:
		return domain.CategoryService
	}
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
