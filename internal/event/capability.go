package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/keepmind9/miraibridge/internal/message"
)

// ErrNoUser is returned when an event has no user or session
var ErrNoUser = errors.New("event has no associated user")

// EventKind returns the category of ev
func EventKind(ev Event) Kind {
	return ev.Kind()
}

// UserID is the account that caused ev. For sync messages the bot itself
// sent the message, except private syncs which are keyed by the peer.
func UserID(ev Event) (string, error) {
	var id int64
	switch e := ev.(type) {
	case *GroupMessage:
		id = e.Sender.ID
	case *GroupSyncMessage:
		id = e.SelfID
	case *FriendMessage:
		id = e.Sender.ID
	case *FriendSyncMessage:
		id = e.Subject.ID
	case *TempMessage:
		id = e.Sender.ID
	case *TempSyncMessage:
		id = e.Subject.ID
	case *StrangerMessage:
		id = e.Sender.ID
	case *StrangerSyncMessage:
		id = e.SelfID
	case *OtherClientMessage:
		id = e.Sender.ID
	case *NudgeEvent:
		id = e.FromID
	case *NewFriendRequestEvent:
		id = e.FromID
	case *MemberJoinRequestEvent:
		id = e.FromID
	case *BotInvitedJoinGroupRequestEvent:
		id = e.FromID
	default:
		return "", fmt.Errorf("%s: %w", ev.EventType(), ErrNoUser)
	}
	return strconv.FormatInt(id, 10), nil
}

// SessionID identifies the conversation ev belongs to
func SessionID(ev Event) (string, error) {
	switch e := ev.(type) {
	case *GroupMessage:
		return fmt.Sprintf("group_%d_%d", e.Sender.Group.ID, e.Sender.ID), nil
	case *GroupSyncMessage:
		return fmt.Sprintf("groupSync_%d_%d", e.Subject.ID, e.SelfID), nil
	case *FriendMessage:
		return fmt.Sprintf("friend_%d", e.Sender.ID), nil
	case *FriendSyncMessage:
		return fmt.Sprintf("friendSync_%d", e.Subject.ID), nil
	case *TempMessage:
		return fmt.Sprintf("temp_%d_%d", e.Sender.Group.ID, e.Sender.ID), nil
	case *TempSyncMessage:
		return fmt.Sprintf("tempSync_%d_%d", e.Subject.Group.ID, e.Subject.ID), nil
	case *StrangerMessage:
		return fmt.Sprintf("stranger_%d", e.Sender.ID), nil
	case *StrangerSyncMessage:
		return fmt.Sprintf("strangerSync_%d", e.SelfID), nil
	case *OtherClientMessage:
		return fmt.Sprintf("other_%d", e.Sender.ID), nil
	}
	return "", fmt.Errorf("%s: %w", ev.EventType(), ErrNoUser)
}

// IsToMe reports whether ev is addressed to the bot. Private chats always are.
func IsToMe(ev Event) bool {
	switch e := ev.(type) {
	case *FriendMessage, *FriendSyncMessage, *TempMessage, *TempSyncMessage:
		return true
	case MessageEvent:
		return e.Msg().ToMe
	}
	return false
}

// Message returns the message chain of a message event
func Message(ev Event) (message.Chain, bool) {
	m, ok := ev.(MessageEvent)
	if !ok {
		return nil, false
	}
	return m.Msg().MessageChain, true
}

// PlainText is the concatenated text of a message event, or ""
func PlainText(ev Event) string {
	chain, ok := Message(ev)
	if !ok {
		return ""
	}
	return chain.PlainText()
}

// Description renders ev for logs
func Description(ev Event) string {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Sprintf("[%s]", ev.EventType())
	}
	if m, ok := ev.(MessageEvent); ok {
		return fmt.Sprintf("[%s] %s: %s", ev.EventType(), sender(ev), m.Msg().MessageChain.String())
	}
	return fmt.Sprintf("[%s] %s", ev.EventType(), b)
}

func sender(ev Event) string {
	if id, err := UserID(ev); err == nil {
		return id
	}
	return "?"
}
