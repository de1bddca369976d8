// Package message models mirai-api-http message content.
//
// A message is an ordered Chain of typed Segments. Segments are treated as
// immutable values: code that needs a changed segment builds a new one.
// Order inside a Chain matters, identity does not.
//
// Segment field names follow the wire naming (lowerCamelCase), so a Segment
// round-trips as {"type": "Plain", "text": "..."} without translation.
package message

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

// SegmentType is the mirai message type tag
type SegmentType string

const (
	TypeSource     SegmentType = "Source"
	TypeQuote      SegmentType = "Quote"
	TypeAt         SegmentType = "At"
	TypeAtAll      SegmentType = "AtAll"
	TypeFace       SegmentType = "Face"
	TypePlain      SegmentType = "Plain"
	TypeImage      SegmentType = "Image"
	TypeFlashImage SegmentType = "FlashImage"
	TypeVoice      SegmentType = "Voice"
	TypeXML        SegmentType = "Xml"
	TypeJSON       SegmentType = "Json"
	TypeApp        SegmentType = "App"
	TypeDice       SegmentType = "Dice"
	TypePoke       SegmentType = "Poke"
	TypeMarketFace SegmentType = "MarketFace"
	TypeMusicShare SegmentType = "MusicShare"
	TypeForward    SegmentType = "Forward"
	TypeFile       SegmentType = "File"
	TypeMiraiCode  SegmentType = "MiraiCode"
)

// Segment is one typed unit of message content
type Segment struct {
	Type SegmentType
	Data map[string]any
}

// NewSegment builds a segment, dropping nil and empty-string fields so optional
// builder arguments never reach the wire.
func NewSegment(t SegmentType, data map[string]any) Segment {
	clean := make(map[string]any, len(data))
	for k, v := range data {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" && k != "text" {
			continue
		}
		clean[k] = v
	}
	return Segment{Type: t, Data: clean}
}

// IsText reports whether the segment is plain text
func (s Segment) IsText() bool {
	return s.Type == TypePlain
}

// Text returns the text of a plain segment, or "" for other types
func (s Segment) Text() string {
	if !s.IsText() {
		return ""
	}
	text, _ := s.Data["text"].(string)
	return text
}

// String renders plain segments as their text and others as [mirai:Type,k=v,...]
func (s Segment) String() string {
	if s.IsText() {
		return s.Text()
	}
	keys := make([]string, 0, len(s.Data))
	for k := range s.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, string(s.Type))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, s.Data[k]))
	}
	return "[mirai:" + strings.Join(parts, ",") + "]"
}

// Int64 reads a numeric field regardless of how the JSON decoder represented it
func (s Segment) Int64(key string) (int64, bool) {
	return toInt64(s.Data[key])
}

// Export returns the wire form {"type": ..., ...fields}
func (s Segment) Export() map[string]any {
	out := make(map[string]any, len(s.Data)+1)
	for k, v := range s.Data {
		out[k] = v
	}
	out["type"] = string(s.Type)
	return out
}

func (s Segment) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Export())
}

func (s *Segment) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode segment: %w", err)
	}
	t, ok := raw["type"].(string)
	if !ok || t == "" {
		return fmt.Errorf("segment has no type: %s", string(b))
	}
	delete(raw, "type")
	s.Type = SegmentType(t)
	s.Data = raw
	return nil
}

// JSONSchema describes a segment for the event decoder's validators: any
// object carrying a string type tag.
func (Segment) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set("type", &jsonschema.Schema{Type: "string"})
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   []string{"type"},
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// Source carries the platform message id and unix timestamp
func Source(id, time int64) Segment {
	return NewSegment(TypeSource, map[string]any{"id": id, "time": time})
}

// Quote builds a reply reference. groupID is 0 for friend messages.
func Quote(id, groupID, senderID, targetID int64, origin Chain) Segment {
	return NewSegment(TypeQuote, map[string]any{
		"id":       id,
		"groupId":  groupID,
		"senderId": senderID,
		"targetId": targetID,
		"origin":   origin.Export(),
	})
}

// At mentions a group member
func At(target int64) Segment {
	return NewSegment(TypeAt, map[string]any{"target": target})
}

// AtAll mentions everyone in the group
func AtAll() Segment {
	return NewSegment(TypeAtAll, nil)
}

// Face sends a built-in face by id (preferred) or by name. faceID < 0 means unset.
func Face(faceID int, name string) Segment {
	data := map[string]any{"name": name}
	if faceID >= 0 {
		data["faceId"] = faceID
	}
	return NewSegment(TypeFace, data)
}

// Plain is a text segment
func Plain(text string) Segment {
	return NewSegment(TypePlain, map[string]any{"text": text})
}

// Image references an uploaded image id, a URL, a local path or base64 data
func Image(imageID, url, path, base64 string) Segment {
	return NewSegment(TypeImage, map[string]any{
		"imageId": imageID,
		"url":     url,
		"path":    path,
		"base64":  base64,
	})
}

// FlashImage is an image that can be viewed once
func FlashImage(imageID, url, path string) Segment {
	return NewSegment(TypeFlashImage, map[string]any{
		"imageId": imageID,
		"url":     url,
		"path":    path,
	})
}

// Voice references an uploaded voice id, a URL or a local path
func Voice(voiceID, url, path string) Segment {
	return NewSegment(TypeVoice, map[string]any{
		"voiceId": voiceID,
		"url":     url,
		"path":    path,
	})
}

func XML(xml string) Segment {
	return NewSegment(TypeXML, map[string]any{"xml": xml})
}

func JSON(content string) Segment {
	return NewSegment(TypeJSON, map[string]any{"json": content})
}

func App(content string) Segment {
	return NewSegment(TypeApp, map[string]any{"content": content})
}

func Dice(value int) Segment {
	return NewSegment(TypeDice, map[string]any{"value": value})
}

// Poke names one of Poke, ShowLove, Like, Heartbroken, SixSixSix, FangDaZhao
func Poke(name string) Segment {
	return NewSegment(TypePoke, map[string]any{"name": name})
}

func MarketFace(id int64, name string) Segment {
	return NewSegment(TypeMarketFace, map[string]any{"id": id, "name": name})
}

// MusicShareCard holds the fields of a music share card
type MusicShareCard struct {
	Kind       string
	Title      string
	Summary    string
	JumpURL    string
	PictureURL string
	MusicURL   string
	Brief      string
}

func MusicShare(card MusicShareCard) Segment {
	return NewSegment(TypeMusicShare, map[string]any{
		"kind":       card.Kind,
		"title":      card.Title,
		"summary":    card.Summary,
		"jumpUrl":    card.JumpURL,
		"pictureUrl": card.PictureURL,
		"musicUrl":   card.MusicURL,
		"brief":      card.Brief,
	})
}

// ForwardNode is one message inside a forward bundle
type ForwardNode struct {
	SenderID     int64
	Time         int64
	SenderName   string
	MessageChain Chain
	MessageID    int64
}

func Forward(nodes ...ForwardNode) Segment {
	list := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		node := map[string]any{
			"senderId":   n.SenderID,
			"time":       n.Time,
			"senderName": n.SenderName,
		}
		if n.MessageID != 0 {
			node["messageId"] = n.MessageID
		} else {
			node["messageChain"] = n.MessageChain.Export()
		}
		list = append(list, node)
	}
	return NewSegment(TypeForward, map[string]any{"nodeList": list})
}

func File(id, name string, size int64) Segment {
	return NewSegment(TypeFile, map[string]any{"id": id, "name": name, "size": size})
}

func MiraiCode(code string) Segment {
	return NewSegment(TypeMiraiCode, map[string]any{"code": code})
}
