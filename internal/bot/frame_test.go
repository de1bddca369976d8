package bot

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/keepmind9/miraibridge/internal/message"
	"github.com/keepmind9/miraibridge/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToWire(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"send_group_message", "sendGroupMessage"},
		{"message_chain", "messageChain"},
		{"SEND_friend_MESSAGE", "sendFriendMessage"},
		{"target", "target"},
		{"Target", "target"},
		{"messageChain", "messageChain"},
		{"member_info", "memberInfo"},
		{"a__b", "aB"},
		{"anno_list", "anno_list"},
		{"Anno_publish", "Anno_publish"},
		{"resp_newFriendRequestEvent", "resp_newFriendRequestEvent"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToWire(tt.in))
		})
	}
}

func TestWireContent_RenamesTopLevelOnly(t *testing.T) {
	nested := map[string]any{"inner_key": 1}
	out := wireContent(map[string]any{
		"message_chain": "x",
		"some_object":   nested,
	})
	assert.Equal(t, "x", out["messageChain"])
	assert.Equal(t, nested, out["someObject"])
	assert.Empty(t, wireContent(nil))
}

func TestRequest_Encoding(t *testing.T) {
	b, err := json.Marshal(request{
		SyncID:  "3",
		Command: "sendFriendMessage",
		Content: map[string]any{"target": 1, "messageChain": message.Text("hi")},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"syncId": "3",
		"command": "sendFriendMessage",
		"subcommand": null,
		"content": {"target": 1, "messageChain": [{"type": "Plain", "text": "hi"}]}
	}`, string(b))

	b, err = json.Marshal(request{SyncID: "4", Command: "sessionInfo", Subcommand: SubcommandGet, Content: map[string]any{}})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"subcommand":"get"`)
}

func TestSyncID_ResponseID(t *testing.T) {
	tests := []struct {
		frame  string
		wantID string
		isResp bool
	}{
		{`{"syncId":"5"}`, "5", true},
		{`{"syncId":5}`, "5", true},
		{`{"syncId":"0"}`, "0", true},
		{`{"syncId":"-1"}`, "", false},
		{`{"syncId":-1}`, "", false},
		{`{"syncId":""}`, "", false},
		{`{"syncId":null}`, "", false},
		{`{}`, "", false},
		{`{"syncId":"abc"}`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.frame, func(t *testing.T) {
			var f inbound
			require.NoError(t, json.Unmarshal([]byte(tt.frame), &f))
			id, ok := f.SyncID.ResponseID()
			assert.Equal(t, tt.isResp, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		wantData string
		wantCode int
		failed   bool
	}{
		{"code zero", `{"syncId":"1","data":{"code":0,"msg":"success","messageId":9}}`, `{"code":0,"msg":"success","messageId":9}`, 0, false},
		{"code absent", `{"syncId":"1","data":{"nickname":"bot"}}`, `{"nickname":"bot"}`, 0, false},
		{"array data", `{"syncId":"1","data":[1,2]}`, `[1,2]`, 0, false},
		{"non-zero code", `{"syncId":"1","data":{"code":1,"msg":"wrong verify key"}}`, "", 1, true},
		{"missing data", `{"syncId":"1"}`, "", -1, true},
		{"null data", `{"syncId":"1","data":null}`, "", -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := parseResult("cmd", json.RawMessage(tt.frame))
			if !tt.failed {
				require.NoError(t, err)
				assert.JSONEq(t, tt.wantData, string(data))
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrActionFailed))
			var af *errs.ActionFailedError
			require.ErrorAs(t, err, &af)
			assert.Equal(t, tt.wantCode, af.Code)
			assert.Equal(t, "cmd", af.Command)
			assert.NotEmpty(t, af.Raw)
		})
	}
}
