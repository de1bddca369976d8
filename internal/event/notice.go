package event

import (
	"github.com/invopop/jsonschema"
	"github.com/keepmind9/miraibridge/internal/message"
)

// NoticeHeader marks notice-category variants
type NoticeHeader struct {
	Header
}

func (*NoticeHeader) Kind() Kind { return KindNotice }

type BaseNotice struct {
	NoticeHeader
}

// MuteEvent is the parent of the mute family
type MuteEvent struct {
	NoticeHeader
	Operator GroupChatInfo `json:"operator"`
}

type BotMuteEvent struct {
	NoticeHeader
	DurationSeconds int64         `json:"durationSeconds"`
	Operator        GroupChatInfo `json:"operator"`
}

type BotUnmuteEvent struct {
	NoticeHeader
	Operator GroupChatInfo `json:"operator"`
}

type MemberMuteEvent struct {
	NoticeHeader
	DurationSeconds int64          `json:"durationSeconds"`
	Member          GroupChatInfo  `json:"member"`
	Operator        *GroupChatInfo `json:"operator,omitempty"`
}

type MemberUnmuteEvent struct {
	NoticeHeader
	Member   GroupChatInfo  `json:"member"`
	Operator *GroupChatInfo `json:"operator,omitempty"`
}

type BotJoinGroupEvent struct {
	NoticeHeader
	Group   GroupInfo      `json:"group"`
	Invitor *GroupChatInfo `json:"invitor,omitempty"`
}

type BotLeaveEventActive struct {
	NoticeHeader
	Group GroupInfo `json:"group"`
}

type BotLeaveEventKick struct {
	NoticeHeader
	Group    GroupInfo      `json:"group"`
	Operator *GroupChatInfo `json:"operator,omitempty"`
}

// BotLeaveEventDisband fires when the owner dissolves the group
type BotLeaveEventDisband struct {
	NoticeHeader
	Group    GroupInfo      `json:"group"`
	Operator *GroupChatInfo `json:"operator,omitempty"`
}

type MemberJoinEvent struct {
	NoticeHeader
	Member  GroupChatInfo  `json:"member"`
	Invitor *GroupChatInfo `json:"invitor,omitempty"`
}

type MemberLeaveEventKick struct {
	NoticeHeader
	Member   GroupChatInfo  `json:"member"`
	Operator *GroupChatInfo `json:"operator,omitempty"`
}

type MemberLeaveEventQuit struct {
	NoticeHeader
	Member GroupChatInfo `json:"member"`
}

type GroupRecallEvent struct {
	NoticeHeader
	AuthorID  int64          `json:"authorId"`
	MessageID int64          `json:"messageId"`
	Time      int64          `json:"time"`
	Group     GroupInfo      `json:"group"`
	Operator  *GroupChatInfo `json:"operator,omitempty"`
}

// FriendRecallEvent carries the operator as a bare account id
type FriendRecallEvent struct {
	NoticeHeader
	AuthorID  int64 `json:"authorId"`
	MessageID int64 `json:"messageId"`
	Time      int64 `json:"time"`
	Operator  int64 `json:"operator"`
}

// GroupStateChangeEvent is the parent of group setting changes; Origin and
// Current are typed by the leaf variants.
type GroupStateChangeEvent struct {
	NoticeHeader
	Origin   any            `json:"origin,omitempty"`
	Current  any            `json:"current,omitempty"`
	Group    GroupInfo      `json:"group"`
	Operator *GroupChatInfo `json:"operator,omitempty"`
}

type GroupNameChangeEvent struct {
	NoticeHeader
	Origin   string         `json:"origin"`
	Current  string         `json:"current"`
	Group    GroupInfo      `json:"group"`
	Operator *GroupChatInfo `json:"operator,omitempty"`
}

type GroupEntranceAnnouncementChangeEvent struct {
	NoticeHeader
	Origin   string         `json:"origin"`
	Current  string         `json:"current"`
	Group    GroupInfo      `json:"group"`
	Operator *GroupChatInfo `json:"operator,omitempty"`
}

type GroupMuteAllEvent struct {
	NoticeHeader
	Origin   bool           `json:"origin"`
	Current  bool           `json:"current"`
	Group    GroupInfo      `json:"group"`
	Operator *GroupChatInfo `json:"operator,omitempty"`
}

type GroupAllowAnonymousChatEvent struct {
	NoticeHeader
	Origin   bool           `json:"origin"`
	Current  bool           `json:"current"`
	Group    GroupInfo      `json:"group"`
	Operator *GroupChatInfo `json:"operator,omitempty"`
}

type GroupAllowConfessTalkEvent struct {
	NoticeHeader
	Origin  bool      `json:"origin"`
	Current bool      `json:"current"`
	Group   GroupInfo `json:"group"`
	IsByBot bool      `json:"isByBot"`
}

type GroupAllowMemberInviteEvent struct {
	NoticeHeader
	Origin   bool           `json:"origin"`
	Current  bool           `json:"current"`
	Group    GroupInfo      `json:"group"`
	Operator *GroupChatInfo `json:"operator,omitempty"`
}

// MemberStateChangeEvent is the parent of member profile changes
type MemberStateChangeEvent struct {
	NoticeHeader
	Member   GroupChatInfo  `json:"member"`
	Operator *GroupChatInfo `json:"operator,omitempty"`
}

type MemberCardChangeEvent struct {
	NoticeHeader
	Origin   string         `json:"origin"`
	Current  string         `json:"current"`
	Member   GroupChatInfo  `json:"member"`
	Operator *GroupChatInfo `json:"operator,omitempty"`
}

type MemberSpecialTitleChangeEvent struct {
	NoticeHeader
	Origin  string        `json:"origin"`
	Current string        `json:"current"`
	Member  GroupChatInfo `json:"member"`
}

// BotGroupPermissionChangeEvent has no member: the subject is the bot itself
type BotGroupPermissionChangeEvent struct {
	NoticeHeader
	Origin  Permission `json:"origin"`
	Current Permission `json:"current"`
	Group   GroupInfo  `json:"group"`
}

type MemberPermissionChangeEvent struct {
	NoticeHeader
	Origin  Permission    `json:"origin"`
	Current Permission    `json:"current"`
	Member  GroupChatInfo `json:"member"`
}

// NudgeSubjectKind is where a nudge happened
type NudgeSubjectKind string

const (
	NudgeGroup  NudgeSubjectKind = "Group"
	NudgeFriend NudgeSubjectKind = "Friend"
)

func (NudgeSubjectKind) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Enum: []any{string(NudgeGroup), string(NudgeFriend)}}
}

type NudgeSubject struct {
	ID   int64            `json:"id"`
	Kind NudgeSubjectKind `json:"kind"`
}

type NudgeEvent struct {
	NoticeHeader
	FromID  int64        `json:"fromId"`
	Target  int64        `json:"target"`
	Action  string       `json:"action"`
	Suffix  string       `json:"suffix"`
	Subject NudgeSubject `json:"subject"`
}

type FriendInputStatusChangedEvent struct {
	NoticeHeader
	Friend    FriendInfo `json:"friend"`
	Inputting bool       `json:"inputting"`
}

type FriendNickChangedEvent struct {
	NoticeHeader
	Friend FriendInfo `json:"friend"`
	From   string     `json:"from"`
	To     string     `json:"to"`
}

// HonorAction is achieve or lose
type HonorAction string

func (HonorAction) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Enum: []any{"achieve", "lose"}}
}

type MemberHonorChangeEvent struct {
	NoticeHeader
	Member GroupChatInfo `json:"member"`
	Action HonorAction   `json:"action"`
	Honor  string        `json:"honor"`
}

type OtherClientOnlineEvent struct {
	NoticeHeader
	Client OtherClientInfo `json:"client"`
}

type OtherClientOfflineEvent struct {
	NoticeHeader
	Client OtherClientInfo `json:"client"`
}

// CommandExecutedEvent reports a mirai console command; Friend and Member
// are both absent when the console itself ran it.
type CommandExecutedEvent struct {
	NoticeHeader
	Name   string         `json:"name"`
	Friend *FriendInfo    `json:"friend,omitempty"`
	Member *GroupChatInfo `json:"member,omitempty"`
	Args   message.Chain  `json:"args"`
}
