// Package event models mirai-api-http push events and decodes them.
//
// Events form a single-rooted hierarchy expressed as a static registry rather
// than a type hierarchy: every variant names its parent, and decoding walks
// from the most specific variant towards the root until one validates. See
// Registry.Decode.
//
// Concrete variants are plain structs embedding one of the category headers
// (MessageHeader, NoticeHeader, RequestHeader, MetaHeader). Behaviour that
// depends on the variant (user id, session id, addressed-to-self) lives in
// package-level functions that switch on the concrete type.
package event

import (
	"github.com/invopop/jsonschema"
)

// Kind is the coarse event category
type Kind string

const (
	KindMessage Kind = "message"
	KindNotice  Kind = "notice"
	KindRequest Kind = "request"
	KindMeta    Kind = "meta_event"
	KindUnknown Kind = "unknown"
)

// Event is implemented by every decoded variant
type Event interface {
	EventType() string
	SelfAccountID() int64
	Kind() Kind
}

// Header holds the fields common to every event. SelfID is not part of the
// mirai payload; the decoder injects the account the frame arrived on.
type Header struct {
	SelfID int64  `json:"selfId"`
	Type   string `json:"type"`
}

func (h *Header) EventType() string    { return h.Type }
func (h *Header) SelfAccountID() int64 { return h.SelfID }
func (h *Header) Kind() Kind           { return KindUnknown }

// BaseEvent is the root variant: only the common fields
type BaseEvent struct {
	Header
}

// Permission is a member's role inside a group
type Permission string

const (
	PermissionOwner         Permission = "OWNER"
	PermissionAdministrator Permission = "ADMINISTRATOR"
	PermissionMember        Permission = "MEMBER"
)

func (Permission) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "string",
		Enum: []any{string(PermissionOwner), string(PermissionAdministrator), string(PermissionMember)},
	}
}

// GroupInfo describes a group
type GroupInfo struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Permission Permission `json:"permission"`
}

// GroupChatInfo describes a member of a group
type GroupChatInfo struct {
	ID                 int64      `json:"id"`
	MemberName         string     `json:"memberName"`
	SpecialTitle       string     `json:"specialTitle,omitempty"`
	Permission         Permission `json:"permission"`
	JoinTimestamp      int64      `json:"joinTimestamp,omitempty"`
	LastSpeakTimestamp int64      `json:"lastSpeakTimestamp,omitempty"`
	MuteTimeRemaining  int64      `json:"muteTimeRemaining,omitempty"`
	Group              GroupInfo  `json:"group"`
}

// FriendInfo describes a friend or a stranger
type FriendInfo struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	Remark   string `json:"remark"`
}

// OtherClientInfo describes another client logged into the bot account
type OtherClientInfo struct {
	ID       int64  `json:"id"`
	Platform string `json:"platform"`
	Kind     int64  `json:"kind,omitempty"`
}
