package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSegment_DropsEmptyOptionalFields(t *testing.T) {
	seg := Image("", "https://example.com/a.png", "", "")

	assert.Equal(t, TypeImage, seg.Type)
	assert.Equal(t, map[string]any{"url": "https://example.com/a.png"}, seg.Data)
}

func TestPlain_KeepsEmptyText(t *testing.T) {
	seg := Plain("")

	assert.True(t, seg.IsText())
	assert.Contains(t, seg.Data, "text")
	assert.Equal(t, "", seg.Text())
}

func TestSegment_String(t *testing.T) {
	assert.Equal(t, "hello", Plain("hello").String())
	assert.Equal(t, "[mirai:At,target=10001]", At(10001).String())
	assert.Equal(t, "[mirai:AtAll]", AtAll().String())
	assert.Equal(t, "[mirai:Face,faceId=1,name=jingya]", Face(1, "jingya").String())
}

func TestSegment_JSONRoundTripKeepsNumbers(t *testing.T) {
	raw := []byte(`{"type":"Quote","id":123,"groupId":456,"senderId":2468013579,"targetId":456,"origin":[]}`)

	var seg Segment
	require.NoError(t, json.Unmarshal(raw, &seg))

	assert.Equal(t, TypeQuote, seg.Type)
	senderID, ok := seg.Int64("senderId")
	require.True(t, ok)
	assert.Equal(t, int64(2468013579), senderID)
	assert.NotContains(t, seg.Data, "type")

	out, err := json.Marshal(seg)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(out))
}

func TestSegment_UnmarshalWithoutTypeFails(t *testing.T) {
	var seg Segment
	err := json.Unmarshal([]byte(`{"text":"hi"}`), &seg)
	assert.Error(t, err)
}

func TestChain_ExtractFirst(t *testing.T) {
	tests := []struct {
		name      string
		chain     Chain
		types     []SegmentType
		wantOK    bool
		wantType  SegmentType
		remaining int
	}{
		{"empty chain", Chain{}, []SegmentType{TypeSource}, false, "", 0},
		{"matching head", NewChain(Source(1, 2), Plain("x")), []SegmentType{TypeSource}, true, TypeSource, 1},
		{"non-matching head", NewChain(Plain("x"), Source(1, 2)), []SegmentType{TypeSource}, false, "", 2},
		{"one of several", NewChain(At(1), Plain("x")), []SegmentType{TypeQuote, TypeAt}, true, TypeAt, 1},
		{"no filter pops head", NewChain(Plain("x"), At(1)), nil, true, TypePlain, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.chain
			seg, ok := c.ExtractFirst(tt.types...)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantType, seg.Type)
			}
			assert.Len(t, c, tt.remaining)
		})
	}
}

func TestChain_InsertPopAppend(t *testing.T) {
	c := NewChain(Plain("b"))
	c.Prepend(Plain("a"))
	c.Append(Plain("d"))
	c.Insert(2, Plain("c"))
	c.Insert(99, Plain("e"))

	assert.Equal(t, "abcde", c.PlainText())

	seg, ok := c.Pop(1)
	require.True(t, ok)
	assert.Equal(t, "b", seg.Text())
	assert.Equal(t, "acde", c.PlainText())

	_, ok = c.Pop(10)
	assert.False(t, ok)
}

func TestChain_PopDoesNotAliasOriginal(t *testing.T) {
	original := NewChain(Plain("a"), Plain("b"), Plain("c"))
	c := original

	c.Pop(0)

	assert.Equal(t, "abc", original.PlainText())
	assert.Equal(t, "bc", c.PlainText())
}

func TestChain_StringAndPlainText(t *testing.T) {
	c := NewChain(At(42), Plain(" hi "), Face(-1, "smile"))

	assert.Equal(t, " hi ", c.PlainText())
	assert.Equal(t, "[mirai:At,target=42] hi [mirai:Face,name=smile]", c.String())
}

func TestChain_JSON(t *testing.T) {
	raw := []byte(`[{"type":"Source","id":1,"time":1700000000},{"type":"Plain","text":"hello"}]`)

	var c Chain
	require.NoError(t, json.Unmarshal(raw, &c))
	require.Len(t, c, 2)
	assert.Equal(t, TypeSource, c[0].Type)
	assert.Equal(t, "hello", c[1].Text())

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(out))
}

func TestQuote_ExportsOrigin(t *testing.T) {
	seg := Quote(7, 100, 200, 100, Text("original"))

	origin, ok := seg.Data["origin"].([]map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Plain", origin[0]["type"])
	assert.Equal(t, "original", origin[0]["text"])
}

func TestForward_UsesMessageIDWhenSet(t *testing.T) {
	seg := Forward(
		ForwardNode{SenderID: 1, Time: 2, SenderName: "a", MessageID: 99},
		ForwardNode{SenderID: 3, Time: 4, SenderName: "b", MessageChain: Text("hi")},
	)

	nodes := seg.Data["nodeList"].([]map[string]any)
	require.Len(t, nodes, 2)
	assert.Equal(t, int64(99), nodes[0]["messageId"])
	assert.NotContains(t, nodes[0], "messageChain")
	assert.Contains(t, nodes[1], "messageChain")
}
