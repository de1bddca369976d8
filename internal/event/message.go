package event

import (
	"github.com/keepmind9/miraibridge/internal/message"
)

// MessageSource is the extracted Source segment
type MessageSource struct {
	ID   int64 `json:"id"`
	Time int64 `json:"time"`
}

// MessageQuote is the extracted Quote segment
type MessageQuote struct {
	ID       int64         `json:"id"`
	GroupID  int64         `json:"groupId"`
	SenderID int64         `json:"senderId"`
	TargetID int64         `json:"targetId"`
	Origin   message.Chain `json:"origin"`
}

// MessageHeader is shared by all message-category variants. Source, Quote
// and ToMe are filled in by preprocessing, never by mirai.
type MessageHeader struct {
	Header
	MessageChain message.Chain  `json:"messageChain"`
	Source       *MessageSource `json:"source,omitempty"`
	Quote        *MessageQuote  `json:"quote,omitempty"`
	ToMe         bool           `json:"toMe,omitempty"`
}

func (*MessageHeader) Kind() Kind { return KindMessage }

// Msg exposes the shared header so callers can work on any message variant
func (m *MessageHeader) Msg() *MessageHeader { return m }

// MessageEvent is implemented by every message-category variant
type MessageEvent interface {
	Event
	Msg() *MessageHeader
}

// BaseMessage is the fallback for message events whose sender did not validate
type BaseMessage struct {
	MessageHeader
	Sender any `json:"sender,omitempty"`
}

type GroupMessage struct {
	MessageHeader
	Sender GroupChatInfo `json:"sender"`
}

// GroupSyncMessage echoes a group message the bot sent from another client
type GroupSyncMessage struct {
	MessageHeader
	Subject GroupInfo `json:"subject"`
}

type FriendMessage struct {
	MessageHeader
	Sender FriendInfo `json:"sender"`
}

type FriendSyncMessage struct {
	MessageHeader
	Subject FriendInfo `json:"subject"`
}

// TempMessage is a private chat started from a group
type TempMessage struct {
	MessageHeader
	Sender GroupChatInfo `json:"sender"`
}

type TempSyncMessage struct {
	MessageHeader
	Subject GroupChatInfo `json:"subject"`
}

type StrangerMessage struct {
	MessageHeader
	Sender FriendInfo `json:"sender"`
}

type StrangerSyncMessage struct {
	MessageHeader
	Subject FriendInfo `json:"subject"`
}

// OtherClientMessage comes from another client of the same account
type OtherClientMessage struct {
	MessageHeader
	Sender OtherClientInfo `json:"sender"`
}
