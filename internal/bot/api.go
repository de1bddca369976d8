package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/keepmind9/miraibridge/internal/event"
	"github.com/keepmind9/miraibridge/internal/message"
)

// ErrUnsupportedEvent is returned by Send for events with no reply target
var ErrUnsupportedEvent = errors.New("cannot reply to this event type")

// Bot is the handle for one account. It stays valid across reconnects;
// calls fail with errs.ErrAPINotAvailable while the account is offline.
type Bot struct {
	account int64
	manager *Manager
}

func (b *Bot) SelfID() int64 { return b.account }

// Call runs a command with snake_case or wire-form names
func (b *Bot) Call(ctx context.Context, command string, content map[string]any) (json.RawMessage, error) {
	return b.manager.Call(ctx, b.account, command, SubcommandNone, content)
}

// CallSub runs a command with a get/update subcommand
func (b *Bot) CallSub(ctx context.Context, command string, sub Subcommand, content map[string]any) (json.RawMessage, error) {
	return b.manager.Call(ctx, b.account, command, sub, content)
}

// SendOptions tunes Send. Quote is the id of the message to reply to; zero
// means no quote.
type SendOptions struct {
	AtSender bool
	Quote    int64
}

// Send replies to the conversation ev came from and returns the new
// message id. AtSender only applies to group messages.
func (b *Bot) Send(ctx context.Context, ev event.Event, chain message.Chain, opts SendOptions) (int64, error) {
	switch e := ev.(type) {
	case *event.FriendMessage:
		return b.SendFriendMessage(ctx, e.Sender.ID, chain, opts.Quote)
	case *event.GroupMessage:
		if opts.AtSender {
			chain = append(message.NewChain(message.At(e.Sender.ID)), chain...)
		}
		return b.SendGroupMessage(ctx, e.Sender.Group.ID, chain, opts.Quote)
	case *event.TempMessage:
		return b.SendTempMessage(ctx, e.Sender.ID, e.Sender.Group.ID, chain, opts.Quote)
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedEvent, ev.EventType())
}

func (b *Bot) SendFriendMessage(ctx context.Context, target int64, chain message.Chain, quote int64) (int64, error) {
	return b.sendMessage(ctx, "send_friend_message", map[string]any{
		"target":        target,
		"message_chain": chain,
	}, quote)
}

func (b *Bot) SendGroupMessage(ctx context.Context, group int64, chain message.Chain, quote int64) (int64, error) {
	return b.sendMessage(ctx, "send_group_message", map[string]any{
		"target":        group,
		"message_chain": chain,
	}, quote)
}

// SendTempMessage messages a group member privately
func (b *Bot) SendTempMessage(ctx context.Context, qq, group int64, chain message.Chain, quote int64) (int64, error) {
	return b.sendMessage(ctx, "send_temp_message", map[string]any{
		"qq":            qq,
		"group":         group,
		"message_chain": chain,
	}, quote)
}

// Recall withdraws a message. target is the friend or group the message
// was sent in.
func (b *Bot) Recall(ctx context.Context, target, messageID int64) error {
	_, err := b.Call(ctx, "recall", map[string]any{
		"target":     target,
		"message_id": messageID,
	})
	return err
}

func (b *Bot) sendMessage(ctx context.Context, command string, content map[string]any, quote int64) (int64, error) {
	if quote != 0 {
		content["quote"] = quote
	}
	data, err := b.Call(ctx, command, content)
	if err != nil {
		return 0, err
	}
	var resp struct {
		MessageID int64 `json:"messageId"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("decode %s response: %w", command, err)
	}
	return resp.MessageID, nil
}
