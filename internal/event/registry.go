package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/keepmind9/miraibridge/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"
)

// RootType is the registry name of the root variant
const RootType = "Event"

type variant struct {
	name   string
	parent string
	schema *gojsonschema.Schema
	build  func(raw []byte) (Event, error)
}

// Registry maps event type names to their parent and validator.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	variants  map[string]*variant
	reflector *jsonschema.Reflector
}

// register adds the variant T under name. Its JSON schema is reflected from
// T's json tags: every field without omitempty is required.
func register[T any, PT interface {
	*T
	Event
}](r *Registry, name, parent string) error {
	if _, dup := r.variants[name]; dup {
		return fmt.Errorf("event variant %q registered twice", name)
	}
	schema, err := r.compile(new(T))
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", name, err)
	}
	r.variants[name] = &variant{
		name:   name,
		parent: parent,
		schema: schema,
		build: func(raw []byte) (Event, error) {
			v := PT(new(T))
			if err := json.Unmarshal(raw, v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
	return nil
}

func (r *Registry) compile(v any) (*gojsonschema.Schema, error) {
	s := r.reflector.Reflect(v)
	s.Version = ""
	s.ID = ""
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
}

// NewRegistry builds the registry of every known mirai event variant
func NewRegistry() (*Registry, error) {
	r := &Registry{
		variants: make(map[string]*variant),
		reflector: &jsonschema.Reflector{
			AllowAdditionalProperties: true,
			DoNotReference:            true,
			ExpandedStruct:            true,
		},
	}

	steps := []error{
		register[BaseEvent](r, RootType, ""),

		register[BaseMessage](r, "MessageEvent", RootType),
		register[GroupMessage](r, "GroupMessage", "MessageEvent"),
		register[GroupSyncMessage](r, "GroupSyncMessage", "MessageEvent"),
		register[FriendMessage](r, "FriendMessage", "MessageEvent"),
		register[FriendSyncMessage](r, "FriendSyncMessage", "MessageEvent"),
		register[TempMessage](r, "TempMessage", "MessageEvent"),
		register[TempSyncMessage](r, "TempSyncMessage", "MessageEvent"),
		register[StrangerMessage](r, "StrangerMessage", "MessageEvent"),
		register[StrangerSyncMessage](r, "StrangerSyncMessage", "MessageEvent"),
		register[OtherClientMessage](r, "OtherClientMessage", "MessageEvent"),

		register[BaseNotice](r, "NoticeEvent", RootType),
		register[MuteEvent](r, "MuteEvent", "NoticeEvent"),
		register[BotMuteEvent](r, "BotMuteEvent", "MuteEvent"),
		register[BotUnmuteEvent](r, "BotUnmuteEvent", "MuteEvent"),
		register[MemberMuteEvent](r, "MemberMuteEvent", "MuteEvent"),
		register[MemberUnmuteEvent](r, "MemberUnmuteEvent", "MuteEvent"),
		register[BotJoinGroupEvent](r, "BotJoinGroupEvent", "NoticeEvent"),
		register[BotLeaveEventActive](r, "BotLeaveEventActive", "NoticeEvent"),
		register[BotLeaveEventKick](r, "BotLeaveEventKick", "NoticeEvent"),
		register[BotLeaveEventDisband](r, "BotLeaveEventDisband", "NoticeEvent"),
		register[MemberJoinEvent](r, "MemberJoinEvent", "NoticeEvent"),
		register[MemberLeaveEventKick](r, "MemberLeaveEventKick", "NoticeEvent"),
		register[MemberLeaveEventQuit](r, "MemberLeaveEventQuit", "NoticeEvent"),
		register[GroupRecallEvent](r, "GroupRecallEvent", "NoticeEvent"),
		register[FriendRecallEvent](r, "FriendRecallEvent", "NoticeEvent"),
		register[GroupStateChangeEvent](r, "GroupStateChangeEvent", "NoticeEvent"),
		register[GroupNameChangeEvent](r, "GroupNameChangeEvent", "GroupStateChangeEvent"),
		register[GroupEntranceAnnouncementChangeEvent](r, "GroupEntranceAnnouncementChangeEvent", "GroupStateChangeEvent"),
		register[GroupMuteAllEvent](r, "GroupMuteAllEvent", "GroupStateChangeEvent"),
		register[GroupAllowAnonymousChatEvent](r, "GroupAllowAnonymousChatEvent", "GroupStateChangeEvent"),
		register[GroupAllowConfessTalkEvent](r, "GroupAllowConfessTalkEvent", "GroupStateChangeEvent"),
		register[GroupAllowMemberInviteEvent](r, "GroupAllowMemberInviteEvent", "GroupStateChangeEvent"),
		register[MemberStateChangeEvent](r, "MemberStateChangeEvent", "NoticeEvent"),
		register[MemberCardChangeEvent](r, "MemberCardChangeEvent", "MemberStateChangeEvent"),
		register[MemberSpecialTitleChangeEvent](r, "MemberSpecialTitleChangeEvent", "MemberStateChangeEvent"),
		register[BotGroupPermissionChangeEvent](r, "BotGroupPermissionChangeEvent", "MemberStateChangeEvent"),
		register[MemberPermissionChangeEvent](r, "MemberPermissionChangeEvent", "MemberStateChangeEvent"),
		register[NudgeEvent](r, "NudgeEvent", "NoticeEvent"),
		register[FriendInputStatusChangedEvent](r, "FriendInputStatusChangedEvent", "NoticeEvent"),
		register[FriendNickChangedEvent](r, "FriendNickChangedEvent", "NoticeEvent"),
		register[MemberHonorChangeEvent](r, "MemberHonorChangeEvent", "NoticeEvent"),
		register[OtherClientOnlineEvent](r, "OtherClientOnlineEvent", "NoticeEvent"),
		register[OtherClientOfflineEvent](r, "OtherClientOfflineEvent", "NoticeEvent"),
		register[CommandExecutedEvent](r, "CommandExecutedEvent", "NoticeEvent"),

		register[BaseRequest](r, "RequestEvent", RootType),
		register[NewFriendRequestEvent](r, "NewFriendRequestEvent", "RequestEvent"),
		register[MemberJoinRequestEvent](r, "MemberJoinRequestEvent", "RequestEvent"),
		register[BotInvitedJoinGroupRequestEvent](r, "BotInvitedJoinGroupRequestEvent", "RequestEvent"),

		register[BaseMeta](r, "MetaEvent", RootType),
		register[BotOnlineEvent](r, "BotOnlineEvent", "MetaEvent"),
		register[BotOfflineEventActive](r, "BotOfflineEventActive", "MetaEvent"),
		register[BotOfflineEventForce](r, "BotOfflineEventForce", "MetaEvent"),
		register[BotOfflineEventDropped](r, "BotOfflineEventDropped", "MetaEvent"),
		register[BotReloginEvent](r, "BotReloginEvent", "MetaEvent"),
	}
	for _, err := range steps {
		if err != nil {
			return nil, err
		}
	}

	for name, v := range r.variants {
		if v.parent != "" && r.variants[v.parent] == nil {
			return nil, fmt.Errorf("event variant %q has unknown parent %q", name, v.parent)
		}
	}
	return r, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry. The catalogue is static, so a
// construction failure is a programming error and panics.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := NewRegistry()
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Lineage lists name and its ancestors, most specific first
func (r *Registry) Lineage(name string) []string {
	var out []string
	for v := r.variants[name]; v != nil; v = r.variants[v.parent] {
		out = append(out, v.name)
	}
	return out
}

// Decode builds the most specific variant that validates against data,
// walking up the parent chain on failure. It never fails: unknown types and
// payloads no variant accepts yield a BaseEvent. The second result reports
// whether the event was represented by something other than its own type.
func (r *Registry) Decode(selfID int64, data map[string]any) (Event, bool) {
	doc := dropNulls(data)
	doc["selfId"] = selfID
	typ, _ := doc["type"].(string)

	raw, err := json.Marshal(doc)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"type":  typ,
			"error": err,
		}).Debug("event-payload-unencodable")
		return &BaseEvent{Header{SelfID: selfID, Type: typ}}, true
	}

	v, known := r.variants[typ]
	degraded := !known
	if !known {
		logger.WithField("type", typ).Debug("event-type-unknown-using-root")
		v = r.variants[RootType]
	}

	for ; v != nil; v = r.variants[v.parent] {
		ev, reason := v.try(raw)
		if ev == nil {
			logger.WithFields(logrus.Fields{
				"type":    typ,
				"variant": v.name,
				"parent":  v.parent,
				"reason":  reason,
			}).Debug("event-decode-degraded")
			degraded = true
			continue
		}
		return ev, degraded
	}
	return &BaseEvent{Header{SelfID: selfID, Type: typ}}, true
}

// DecodeJSON is Decode over a raw JSON object
func (r *Registry) DecodeJSON(selfID int64, raw []byte) (Event, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, false, fmt.Errorf("decode event payload: %w", err)
	}
	if data == nil {
		return nil, false, fmt.Errorf("decode event payload: not an object")
	}
	ev, degraded := r.Decode(selfID, data)
	return ev, degraded, nil
}

func (v *variant) try(raw []byte) (Event, string) {
	res, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, err.Error()
	}
	if !res.Valid() {
		reasons := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			reasons = append(reasons, e.String())
		}
		return nil, strings.Join(reasons, "; ")
	}
	ev, err := v.build(raw)
	if err != nil {
		return nil, err.Error()
	}
	return ev, ""
}

// dropNulls copies m without null members, recursively. mirai sends null
// for absent optional fields.
func dropNulls(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		if v == nil {
			continue
		}
		out[k] = dropNullValue(v)
	}
	return out
}

func dropNullValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return dropNulls(t)
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if e == nil {
				continue
			}
			out = append(out, dropNullValue(e))
		}
		return out
	default:
		return v
	}
}
