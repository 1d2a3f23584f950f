package telegram

import (
	"context"
	"fmt"

	"github.com/xpanvictor/telly/pkg/render"
)

// ChatSink adapts one chat (plus reply/thread targeting) to the renderer's
// MessageSink. The renderer owns cadence and retries; the sink only maps
// calls onto the Bot API.
type ChatSink struct {
	client   *Client
	chatID   int64
	replyTo  int
	threadID int
}

func NewChatSink(client *Client, chatID int64, replyTo, threadID int) *ChatSink {
	return &ChatSink{client: client, chatID: chatID, replyTo: replyTo, threadID: threadID}
}

func (s *ChatSink) SendMessage(ctx context.Context, text string) (render.MessageRef, error) {
	msg, err := s.client.SendMessage(ctx, SendMessageParams{
		ChatID:           s.chatID,
		Text:             text,
		ReplyToMessageID: s.replyTo,
		MessageThreadID:  s.threadID,
	})
	if err != nil {
		return render.MessageRef{}, err
	}
	return render.MessageRef{ChatID: s.chatID, MessageID: msg.MessageID}, nil
}

func (s *ChatSink) EditMessage(ctx context.Context, ref render.MessageRef, text string) error {
	return s.client.EditMessageText(ctx, EditMessageTextParams{
		ChatID:    ref.ChatID,
		MessageID: ref.MessageID,
		Text:      text,
	})
}

func (s *ChatSink) DeleteMessage(ctx context.Context, ref render.MessageRef) error {
	return s.client.DeleteMessage(ctx, ref.ChatID, ref.MessageID)
}

// DeliverDirect hands a non-text deliverable to the Bot API. A payload with
// format "path" points at a local file the caller removes after delivery.
func (s *ChatSink) DeliverDirect(ctx context.Context, payload render.DirectResult) error {
	p := mediaParams{ChatID: s.chatID, ReplyToMessageID: s.replyTo, MessageThreadID: s.threadID}
	switch payload.Kind {
	case render.DirectPhoto:
		if payload.Format == render.FormatPath {
			return s.client.SendPhotoFile(ctx, p, payload.Value)
		}
		return s.client.SendPhotoURL(ctx, p, payload.Value)
	case render.DirectGif, render.DirectFile:
		if payload.Format == render.FormatPath {
			return s.client.SendDocumentFile(ctx, p, payload.Value)
		}
		return s.client.SendDocumentURL(ctx, p, payload.Value)
	case render.DirectDice:
		return s.client.SendDice(ctx, p, payload.Value)
	default:
		return fmt.Errorf("unknown direct result kind %q", payload.Kind)
	}
}
