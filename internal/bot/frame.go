package bot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/keepmind9/miraibridge/pkg/errs"
)

// Subcommand selects the get/update flavour of a command; empty means none
type Subcommand string

const (
	SubcommandNone   Subcommand = ""
	SubcommandGet    Subcommand = "get"
	SubcommandUpdate Subcommand = "update"
)

func (s Subcommand) MarshalJSON() ([]byte, error) {
	if s == SubcommandNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// request is an outbound call frame
type request struct {
	SyncID     string         `json:"syncId"`
	Command    string         `json:"command"`
	Subcommand Subcommand     `json:"subcommand"`
	Content    map[string]any `json:"content"`
}

// SyncID is the correlation id of an inbound frame. mirai sends it as a
// string, but numbers are accepted too.
type SyncID struct {
	raw string
	set bool
}

func (s *SyncID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*s = SyncID{}
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = SyncID{raw: str, set: true}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("syncId: %w", err)
	}
	*s = SyncID{raw: n.String(), set: true}
	return nil
}

// ResponseID returns the normalised id when the frame answers a call, i.e.
// its syncId is a non-negative integer. Push events carry "-1" or nothing.
func (s SyncID) ResponseID() (string, bool) {
	if !s.set {
		return "", false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s.raw), 10, 64)
	if err != nil || n < 0 {
		return "", false
	}
	return strconv.FormatInt(n, 10), true
}

// inbound is any frame received from mirai
type inbound struct {
	SyncID SyncID          `json:"syncId"`
	Data   json.RawMessage `json:"data"`
}

type status struct {
	Code *int   `json:"code"`
	Msg  string `json:"msg"`
}

func hasData(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// parseResult extracts data from a response frame. A missing data member or
// a code other than 0 is an ActionFailedError.
func parseResult(command string, frame json.RawMessage) (json.RawMessage, error) {
	var f inbound
	if err := json.Unmarshal(frame, &f); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", command, err)
	}
	if !hasData(f.Data) {
		return nil, &errs.ActionFailedError{Command: command, Code: -1, Msg: "response has no data", Raw: frame}
	}

	var st status
	if err := json.Unmarshal(f.Data, &st); err != nil {
		// Not an object: there is no status code to check
		return f.Data, nil
	}
	if st.Code != nil && *st.Code != 0 {
		return nil, &errs.ActionFailedError{Command: command, Code: *st.Code, Msg: st.Msg, Raw: f.Data}
	}
	return f.Data, nil
}
