package event

// RequestHeader marks request-category variants. Requests are answered with
// the resp_* commands using EventID, FromID and GroupID.
type RequestHeader struct {
	Header
}

func (*RequestHeader) Kind() Kind { return KindRequest }

type BaseRequest struct {
	RequestHeader
}

type NewFriendRequestEvent struct {
	RequestHeader
	EventID int64  `json:"eventId"`
	FromID  int64  `json:"fromId"`
	GroupID int64  `json:"groupId"`
	Nick    string `json:"nick"`
	Message string `json:"message"`
}

type MemberJoinRequestEvent struct {
	RequestHeader
	EventID   int64  `json:"eventId"`
	FromID    int64  `json:"fromId"`
	GroupID   int64  `json:"groupId"`
	GroupName string `json:"groupName"`
	Nick      string `json:"nick"`
	Message   string `json:"message"`
}

type BotInvitedJoinGroupRequestEvent struct {
	RequestHeader
	EventID   int64  `json:"eventId"`
	FromID    int64  `json:"fromId"`
	GroupID   int64  `json:"groupId"`
	GroupName string `json:"groupName"`
	Nick      string `json:"nick"`
	Message   string `json:"message"`
}

// MetaHeader marks bot lifecycle variants
type MetaHeader struct {
	Header
}

func (*MetaHeader) Kind() Kind { return KindMeta }

type BaseMeta struct {
	MetaHeader
}

type BotOnlineEvent struct {
	MetaHeader
	QQ int64 `json:"qq"`
}

type BotOfflineEventActive struct {
	MetaHeader
	QQ int64 `json:"qq"`
}

type BotOfflineEventForce struct {
	MetaHeader
	QQ int64 `json:"qq"`
}

type BotOfflineEventDropped struct {
	MetaHeader
	QQ int64 `json:"qq"`
}

type BotReloginEvent struct {
	MetaHeader
	QQ int64 `json:"qq"`
}
