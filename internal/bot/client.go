package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/keepmind9/miraibridge/internal/logger"
	"github.com/keepmind9/miraibridge/pkg/errs"
	"github.com/sirupsen/logrus"
)

// ClientPath is the mirai-api-http endpoint carrying both events and calls
const ClientPath = "/all"

// runClient keeps account connected until ctx ends or the handshake is
// rejected. Every other failure, including a refused dial, is retried after
// the reconnect interval.
func (m *Manager) runClient(ctx context.Context, account int64) error {
	log := logger.ForAccount(account)
	defer m.setState(account, StateClosed)

	for {
		m.setState(account, StateConnecting)
		err := m.connectClient(ctx, account)

		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !errs.IsRetryable(err) {
			log.WithField("error", err).Error("mirai-authentication-failed-giving-up")
			m.metrics.HandshakeFailed(string(ModeClient), "auth")
			return nil
		}

		log.WithFields(logrus.Fields{
			"error": err,
			"retry": m.cfg.ReconnectInterval.String(),
		}).Warn("mirai-connection-lost")
		m.setState(account, StateReconnecting)
		m.metrics.Reconnect(accountLabel(account))

		timer := time.NewTimer(m.cfg.ReconnectInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (m *Manager) clientURL() string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port)),
		Path:   ClientPath,
	}
	return u.String()
}

// connectClient runs one connection attempt to completion
func (m *Manager) connectClient(ctx context.Context, account int64) error {
	header := http.Header{}
	header.Set("verifyKey", m.cfg.VerifyKey)
	header.Set("qq", strconv.FormatInt(account, 10))

	ws, resp, err := m.dialer.DialContext(ctx, m.clientURL(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrConnectionRefused, err)
	}

	c := newConn(account, ModeClient, uuid.NewString(), ws)
	defer c.close(websocket.CloseNormalClosure, "")
	go c.closeOn(ctx)

	c.log.WithField("url", m.clientURL()).Debug("mirai-websocket-dialled")
	if err := m.clientHandshake(c); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	b := m.attach(c)
	defer m.detach(c)
	return m.receive(ctx, c, b)
}

// clientHandshake reads the first frame mirai sends after verifying the
// headers. A non-zero code there is terminal for the account.
func (m *Manager) clientHandshake(c *conn) error {
	if err := c.ws.SetReadDeadline(time.Now().Add(m.cfg.HandshakeTimeout)); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSocketClosed, err)
	}
	raw, err := c.read()
	if err != nil {
		return err
	}
	if err := c.ws.SetReadDeadline(time.Time{}); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSocketClosed, err)
	}

	var f inbound
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("%w: malformed handshake frame: %v", errs.ErrSocketClosed, err)
	}
	if hasData(f.Data) {
		var st status
		if err := json.Unmarshal(f.Data, &st); err == nil && st.Code != nil && *st.Code != 0 {
			return &errs.AuthError{AccountID: c.account, Code: *st.Code, Msg: st.Msg}
		}
	}
	c.log.Debug("mirai-handshake-accepted")
	return nil
}
