package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/keepmind9/miraibridge/internal/logger"
	"github.com/keepmind9/miraibridge/internal/syncid"
	"github.com/keepmind9/miraibridge/pkg/constants"
	"github.com/keepmind9/miraibridge/pkg/errs"
	"github.com/sirupsen/logrus"
)

// Mode is how a connection was established
type Mode string

const (
	ModeClient Mode = "client"
	ModeServer Mode = "server"
)

// State is the lifecycle state of an account's connection
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "closed"
	}
}

// conn is one live websocket to mirai-api-http for one account. Reads happen
// on a single goroutine; writes are serialised by writeMu.
type conn struct {
	account int64
	mode    Mode
	id      string
	ws      *websocket.Conn
	store   *syncid.Store
	log     *logrus.Entry

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newConn(account int64, mode Mode, id string, ws *websocket.Conn) *conn {
	ws.SetReadLimit(constants.MaxFrameSize)
	return &conn{
		account: account,
		mode:    mode,
		id:      id,
		ws:      ws,
		store:   syncid.New(),
		log: logger.ForAccount(account).WithFields(logrus.Fields{
			"mode":   mode,
			"socket": id,
		}),
		done: make(chan struct{}),
	}
}

func (c *conn) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(v); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSocketClosed, err)
	}
	return nil
}

func (c *conn) read() (json.RawMessage, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrSocketClosed, err)
	}
	return data, nil
}

// call sends one request and waits for the frame carrying its syncId
func (c *conn) call(ctx context.Context, command string, sub Subcommand, content map[string]any, timeout time.Duration) (json.RawMessage, error) {
	id, err := c.store.Reserve()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", command, err)
	}

	req := request{SyncID: id, Command: command, Subcommand: sub, Content: content}
	if err := c.send(req); err != nil {
		c.store.Release(id)
		return nil, fmt.Errorf("send %s: %w", command, err)
	}

	frame, err := c.store.Await(ctx, id, timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", command, err)
	}
	return parseResult(command, frame)
}

// roundTrip is call for use before the receive loop runs: it reads frames
// itself until the matching response arrives or the deadline passes. Frames
// that are not the response are dropped.
func (c *conn) roundTrip(command string, content map[string]any, timeout time.Duration) (json.RawMessage, error) {
	id, err := c.store.Reserve()
	if err != nil {
		return nil, err
	}
	defer c.store.Release(id)

	if err := c.send(request{SyncID: id, Command: command, Content: content}); err != nil {
		return nil, err
	}

	if timeout > 0 {
		if err := c.ws.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
		defer c.ws.SetReadDeadline(time.Time{})
	}

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, fmt.Errorf("%w: %s during handshake", errs.ErrTimeout, command)
			}
			return nil, fmt.Errorf("%w: %v", errs.ErrSocketClosed, err)
		}
		var f inbound
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		if got, ok := f.SyncID.ResponseID(); ok && got == id {
			return parseResult(command, raw)
		}
		c.log.WithField("command", command).Debug("frame-dropped-during-handshake")
	}
}

// close fails pending calls and closes the socket with a close frame
func (c *conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.store.Close()
		deadline := time.Now().Add(constants.CloseWriteTimeout)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
		close(c.done)
	})
}

// closeOn closes c once ctx is done. It returns when either happens.
func (c *conn) closeOn(ctx context.Context) {
	select {
	case <-ctx.Done():
		c.close(websocket.CloseGoingAway, "shutdown")
	case <-c.done:
	}
}
