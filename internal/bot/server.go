package bot

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/keepmind9/miraibridge/internal/logger"
	"github.com/keepmind9/miraibridge/pkg/constants"
	"github.com/keepmind9/miraibridge/pkg/errs"
	"github.com/sirupsen/logrus"
)

// ServerPath is where mirai-api-http's reverse adapter connects
const ServerPath = "/" + constants.AdapterName + "/ws"

// handshakeError is a rejected server-mode handshake. reason is sent to the
// peer in the close frame.
type handshakeError struct {
	reason string
	err    error
}

func (e *handshakeError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *handshakeError) Unwrap() error { return e.err }

// ServeHTTP accepts a reverse websocket from mirai-api-http. The socket is
// admitted only after the botList, verify, and about exchange succeeds.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	ctx := m.ctx
	running := ctx != nil && ctx.Err() == nil
	if running {
		m.sockets.Add(1)
	}
	m.mu.Unlock()
	if !running {
		http.Error(w, "bridge not running", http.StatusServiceUnavailable)
		return
	}
	defer m.sockets.Done()

	if !m.authorized(r) {
		m.metrics.HandshakeFailed(string(ModeServer), "access_token")
		logger.WithField("remote", r.RemoteAddr).Warn("reverse-websocket-unauthorized")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	account, err := strconv.ParseInt(r.Header.Get("qq"), 10, 64)
	if err != nil {
		m.metrics.HandshakeFailed(string(ModeServer), "qq_header")
		http.Error(w, "missing or invalid qq header", http.StatusBadRequest)
		return
	}

	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"remote": r.RemoteAddr,
			"error":  err,
		}).Warn("reverse-websocket-upgrade-failed")
		return
	}

	c := newConn(account, ModeServer, uuid.NewString(), ws)
	go c.closeOn(ctx)
	m.setState(account, StateConnecting)
	c.log.WithField("remote", r.RemoteAddr).Info("reverse-websocket-accepted")

	if err := m.serverHandshake(c); err != nil {
		if ctx.Err() != nil {
			c.log.WithField("error", err).Debug("reverse-websocket-handshake-cancelled")
			m.setState(account, StateClosed)
			return
		}
		reason := "handshake failed"
		var he *handshakeError
		if errors.As(err, &he) {
			reason = he.reason
		}
		c.log.WithField("error", err).Warn("reverse-websocket-rejected")
		m.metrics.HandshakeFailed(string(ModeServer), reason)
		m.setState(account, StateClosed)
		c.close(websocket.ClosePolicyViolation, reason)
		return
	}

	b := m.attach(c)
	err = m.receive(ctx, c, b)
	m.detach(c)
	c.close(websocket.CloseNormalClosure, "")
	c.log.WithField("error", err).Debug("reverse-websocket-finished")
}

func (m *Manager) authorized(r *http.Request) bool {
	if m.cfg.AccessToken == "" {
		return true
	}
	token := r.Header.Get("access_token")
	return subtle.ConstantTimeCompare([]byte(token), []byte(m.cfg.AccessToken)) == 1
}

// serverHandshake checks the account against mirai's roster, verifies the
// key, then logs the mirai-api-http version.
func (m *Manager) serverHandshake(c *conn) error {
	timeout := m.cfg.HandshakeTimeout

	data, err := c.roundTrip(ToWire("bot_list"), map[string]any{}, timeout)
	if err != nil {
		return &handshakeError{reason: "bot list unavailable", err: err}
	}
	roster, err := parseRoster(data)
	if err != nil {
		return &handshakeError{reason: "bot list malformed", err: err}
	}
	if !slices.Contains(roster, c.account) {
		return &handshakeError{
			reason: fmt.Sprintf("account %d is not logged in", c.account),
			err:    &errs.AuthError{AccountID: c.account, Code: -1, Msg: "not in bot list"},
		}
	}

	_, err = c.roundTrip("verify", wireContent(map[string]any{
		"verify_key": m.cfg.VerifyKey,
		"qq":         c.account,
	}), timeout)
	if err != nil {
		var af *errs.ActionFailedError
		if errors.As(err, &af) {
			err = &errs.AuthError{AccountID: c.account, Code: af.Code, Msg: af.Msg}
		}
		return &handshakeError{reason: "verification failed", err: err}
	}

	about, err := c.roundTrip("about", map[string]any{}, timeout)
	if err != nil {
		c.log.WithField("error", err).Warn("mirai-about-query-failed")
		return nil
	}
	c.log.WithField("version", aboutVersion(about)).Info("mirai-api-http-version")
	return nil
}

// parseRoster reads botList's data, which is either the id list itself or
// wrapped in a {"code","data"} envelope.
func parseRoster(data json.RawMessage) ([]int64, error) {
	var ids []int64
	if err := json.Unmarshal(data, &ids); err == nil {
		return ids, nil
	}
	var env struct {
		Data []int64 `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func aboutVersion(data json.RawMessage) string {
	var env struct {
		Data struct {
			Version string `json:"version"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil || env.Data.Version == "" {
		return "unknown"
	}
	return env.Data.Version
}
