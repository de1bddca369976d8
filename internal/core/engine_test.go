package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/keepmind9/miraibridge/internal/bot"
	"github.com/keepmind9/miraibridge/internal/logger"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reverseAccount = int64(2024)

func reverseConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := ParseConfig([]byte(`
mirai:
  verify_key: engine-key
  reverse: true
  access_token: engine-token
superusers: ["77"]
metrics:
  enabled: true
`))
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	return cfg
}

// runEngine starts e and returns its base URL plus a stop func that waits
// for Run to return.
func runEngine(t *testing.T, e *Engine) (string, func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return e.Addr() != nil }, 2*time.Second, 5*time.Millisecond)
	var (
		once    sync.Once
		stopErr error
	)
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case stopErr = <-done:
			case <-time.After(5 * time.Second):
				stopErr = fmt.Errorf("engine did not stop")
			}
		})
		return stopErr
	}
	t.Cleanup(func() { _ = stop() })
	return "http://" + e.Addr().String(), stop
}

func getStatus(t *testing.T, base string) Status {
	t.Helper()
	resp, err := http.Get(base + StatusPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

// admit plays the mirai side of the reverse handshake
func admit(t *testing.T, base string, account int64) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("qq", fmt.Sprint(account))
	header.Set("access_token", "engine-token")
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+bot.ServerPath, header)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	answers := map[string]any{
		"botList": map[string]any{"code": 0, "data": []int64{account}},
		"verify":  map[string]any{"code": 0, "session": "s"},
		"about":   map[string]any{"code": 0, "data": map[string]any{"version": "2.10.0"}},
	}
	for _, want := range []string{"botList", "verify", "about"} {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		var req struct {
			SyncID  string `json:"syncId"`
			Command string `json:"command"`
		}
		require.NoError(t, ws.ReadJSON(&req))
		require.Equal(t, want, req.Command)
		require.NoError(t, ws.WriteJSON(map[string]any{"syncId": req.SyncID, "data": answers[want]}))
	}
	return ws
}

func TestEngine_ReverseModeEndToEnd(t *testing.T) {
	hook := logtest.NewLocal(logger.GetLogger())
	defer hook.Reset()

	e := NewEngine(reverseConfig(t))
	base, stop := runEngine(t, e)

	st := getStatus(t, base)
	assert.Equal(t, "server", st.Mode)
	assert.Empty(t, st.Accounts)

	ws := admit(t, base, reverseAccount)
	require.Eventually(t, func() bool {
		st := getStatus(t, base)
		return len(st.Accounts) == 1 && st.Accounts[0].State == "open"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.WriteJSON(map[string]any{
		"syncId": "-1",
		"data": map[string]any{
			"type":         "FriendMessage",
			"messageChain": []any{map[string]any{"type": "Plain", "text": "hi"}},
			"sender":       map[string]any{"id": 77, "nickname": "root", "remark": ""},
		},
	}))
	require.Eventually(t, func() bool {
		for _, entry := range hook.AllEntries() {
			if entry.Message == "event-received" && entry.Level == logrus.InfoLevel {
				return entry.Data["superuser"] == true && entry.Data["user"] == "77"
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(base + DefaultMetricsPath)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `miraibridge_connections_active{mode="server"} 1`)
	assert.Contains(t, string(body), `miraibridge_events_received_total{type="FriendMessage"} 1`)

	require.NoError(t, stop())
	assert.Empty(t, e.Manager().Connected())
}

func TestEngine_StatusListsConfiguredAccounts(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
mirai:
  verify_key: k
  host: 127.0.0.1
  port: 1
  qq: [5, 6]
  reconnect_interval: 50ms
`))
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	e := NewEngine(cfg)
	base, stop := runEngine(t, e)

	st := getStatus(t, base)
	assert.Equal(t, "client", st.Mode)
	require.Len(t, st.Accounts, 2)
	assert.Equal(t, int64(5), st.Accounts[0].Account)
	assert.Equal(t, int64(6), st.Accounts[1].Account)
	assert.NotEqual(t, "open", st.Accounts[0].State)

	// metrics are off unless enabled
	resp, err := http.Get(base + DefaultMetricsPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// reverse endpoint is not mounted in client mode
	resp, err = http.Get(base + bot.ServerPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, stop())
}

func TestEngine_StatusRejectsNonGet(t *testing.T) {
	e := NewEngine(reverseConfig(t))

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, StatusPath, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEngine_RunFailsWhenPortTaken(t *testing.T) {
	first := NewEngine(reverseConfig(t))
	runEngine(t, first)

	cfg := reverseConfig(t)
	cfg.Server.Port = first.Addr().(*net.TCPAddr).Port
	err := NewEngine(cfg).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
