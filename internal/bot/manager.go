// Package bot connects bot accounts to mirai-api-http over websockets.
//
// A Manager owns one connection per account. In client mode it dials
// ws://host:port/all for every configured account and reconnects with a
// fixed backoff; in server mode it is an http.Handler that accepts sockets
// opened by mirai-api-http's reverse websocket adapter.
//
// Each connection runs a single receive loop. Frames whose syncId is a
// non-negative integer are responses and complete the matching Call; every
// other frame is a push event, which is decoded, preprocessed, and handed to
// the Dispatcher on its own goroutine so a slow handler never stalls reads.
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/keepmind9/miraibridge/internal/event"
	"github.com/keepmind9/miraibridge/internal/logger"
	"github.com/keepmind9/miraibridge/internal/metrics"
	"github.com/keepmind9/miraibridge/internal/pipeline"
	"github.com/keepmind9/miraibridge/pkg/constants"
	"github.com/keepmind9/miraibridge/pkg/errs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Dispatcher receives every decoded push event. HandleEvent runs on its own
// goroutine per event and may block.
type Dispatcher interface {
	HandleEvent(ctx context.Context, bot *Bot, ev event.Event)
}

// DispatcherFunc adapts a function to Dispatcher
type DispatcherFunc func(ctx context.Context, bot *Bot, ev event.Event)

func (f DispatcherFunc) HandleEvent(ctx context.Context, bot *Bot, ev event.Event) {
	f(ctx, bot, ev)
}

// Config is the connection configuration of a Manager
type Config struct {
	VerifyKey string
	Host      string
	Port      int
	// Accounts to dial in client mode; in server mode the roster check is
	// done against mirai's botList instead.
	Accounts          []int64
	Reverse           bool
	AccessToken       string
	APITimeout        time.Duration
	ReconnectInterval time.Duration
	HandshakeTimeout  time.Duration
	Nicknames         []string
}

func (c *Config) applyDefaults() {
	if c.APITimeout == 0 {
		c.APITimeout = constants.DefaultAPITimeout
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = constants.DefaultReconnectInterval
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = constants.DefaultHandshakeTimeout
	}
}

// Option customises a Manager
type Option func(*Manager)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// Manager owns every connection and routes calls and events
type Manager struct {
	cfg        Config
	dispatcher Dispatcher
	registry   *event.Registry
	pipeline   *pipeline.Pipeline
	metrics    *metrics.Metrics
	dialer     *websocket.Dialer
	upgrader   websocket.Upgrader

	mu     sync.RWMutex
	conns  map[int64]*conn
	states map[int64]State
	bots   map[int64]*Bot

	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	sockets  sync.WaitGroup // server-mode sockets being served
	handlers sync.WaitGroup
}

// NewManager creates a Manager. Call Start before use.
func NewManager(cfg Config, dispatcher Dispatcher, opts ...Option) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		cfg:        cfg,
		dispatcher: dispatcher,
		registry:   event.Default(),
		pipeline:   pipeline.New(cfg.Nicknames),
		dialer:     &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		conns:      make(map[int64]*conn),
		states:     make(map[int64]State),
		bots:       make(map[int64]*Bot),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dispatcher == nil {
		m.dispatcher = DispatcherFunc(func(context.Context, *Bot, event.Event) {})
	}
	return m
}

// Start launches one connection task per account in client mode. In server
// mode it only arms the manager; sockets arrive through ServeHTTP.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.ctx != nil {
		m.mu.Unlock()
		return fmt.Errorf("manager already started")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(m.ctx)
	m.group = g
	m.mu.Unlock()

	if m.cfg.Reverse {
		logger.WithField("path", ServerPath).Info("mirai-reverse-websocket-ready")
		return nil
	}
	for _, account := range m.cfg.Accounts {
		account := account
		g.Go(func() error {
			return m.runClient(gctx, account)
		})
	}
	logger.WithField("accounts", len(m.cfg.Accounts)).Info("mirai-client-connections-started")
	return nil
}

// Stop cancels every connection task, closes every socket, fails pending
// calls, and waits for connection tasks and served sockets to exit. Event
// handlers already running are waited for up to
// constants.DefaultShutdownTimeout.
func (m *Manager) Stop() error {
	m.mu.Lock()
	cancel, g := m.cancel, m.group
	conns := make([]*conn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	m.mu.Lock()
	cancel()
	m.mu.Unlock()
	for _, c := range conns {
		m.setState(c.account, StateClosing)
		c.close(websocket.CloseGoingAway, "shutdown")
	}
	err := g.Wait()
	m.sockets.Wait()

	done := make(chan struct{})
	go func() {
		m.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(constants.DefaultShutdownTimeout):
		logger.Warn("event-handlers-still-running-at-shutdown")
	}
	return err
}

// Call sends command to account's connection and waits for its response data
func (m *Manager) Call(ctx context.Context, account int64, command string, sub Subcommand, content map[string]any) (json.RawMessage, error) {
	wire := ToWire(command)
	c := m.conn(account)
	if c == nil {
		m.metrics.APICall(wire, metrics.ResultUnavailable, 0)
		return nil, fmt.Errorf("%w: no connection for account %d", errs.ErrAPINotAvailable, account)
	}

	start := time.Now()
	data, err := c.call(ctx, wire, sub, wireContent(content), m.cfg.APITimeout)
	m.metrics.APICall(wire, resultLabel(err), time.Since(start))
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"command": wire,
			"error":   err,
		}).Debug("mirai-api-call-failed")
	}
	return data, err
}

// Bot returns the handle for account if it is currently connected
func (m *Manager) Bot(account int64) (*Bot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.conns[account]; !ok {
		return nil, false
	}
	return m.bots[account], true
}

// States reports the connection state of every account seen so far
func (m *Manager) States() map[int64]State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]State, len(m.states))
	for k, v := range m.states {
		out[k] = v
	}
	return out
}

// Connected lists accounts with a live connection, sorted
func (m *Manager) Connected() []int64 {
	m.mu.RLock()
	out := make([]int64, 0, len(m.conns))
	for id := range m.conns {
		out = append(out, id)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Manager) conn(account int64) *conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conns[account]
}

func (m *Manager) setState(account int64, s State) {
	m.mu.Lock()
	m.states[account] = s
	m.mu.Unlock()
}

// attach makes c the live connection of its account, replacing any older one
func (m *Manager) attach(c *conn) *Bot {
	m.mu.Lock()
	old := m.conns[c.account]
	m.conns[c.account] = c
	m.states[c.account] = StateOpen
	b, ok := m.bots[c.account]
	if !ok {
		b = &Bot{account: c.account, manager: m}
		m.bots[c.account] = b
	}
	m.mu.Unlock()

	if old != nil {
		old.log.Warn("mirai-connection-replaced")
		old.close(websocket.ClosePolicyViolation, "replaced by a newer connection")
	}
	m.metrics.ConnectionOpened(string(c.mode))
	c.log.Info("mirai-connection-open")
	return b
}

func (m *Manager) detach(c *conn) {
	m.mu.Lock()
	if m.conns[c.account] == c {
		delete(m.conns, c.account)
		m.states[c.account] = StateClosed
	}
	m.mu.Unlock()
	m.metrics.ConnectionClosed(string(c.mode))
	c.log.Info("mirai-connection-closed")
}

// receive runs the read loop of c until the socket fails. Callers close c
// when ctx ends.
func (m *Manager) receive(ctx context.Context, c *conn, b *Bot) error {
	for {
		raw, err := c.read()
		if err != nil {
			return err
		}
		m.handleFrame(ctx, c, b, raw)
	}
}

func (m *Manager) handleFrame(ctx context.Context, c *conn, b *Bot, raw json.RawMessage) {
	var f inbound
	if err := json.Unmarshal(raw, &f); err != nil {
		c.log.WithField("error", err).Warn("mirai-frame-malformed")
		return
	}

	if id, ok := f.SyncID.ResponseID(); ok {
		if !c.store.Resolve(id, raw) {
			c.log.WithField("sync_id", id).Debug("mirai-response-without-waiter")
		}
		return
	}

	data, err := decodeObject(f.Data)
	if err != nil {
		c.log.WithField("error", err).Debug("mirai-frame-without-event")
		return
	}

	ev, degraded := m.registry.Decode(c.account, data)
	typ, _ := data["type"].(string)
	m.metrics.EventReceived(typ, degraded)

	m.handlers.Add(1)
	go func() {
		defer m.handlers.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.WithFields(logrus.Fields{
					"type":  typ,
					"panic": r,
				}).Error("event-handler-panic")
			}
		}()
		ev = m.pipeline.Process(ev)
		c.log.WithField("event", event.Description(ev)).Debug("mirai-event-received")
		m.dispatcher.HandleEvent(ctx, b, ev)
	}()
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	if !hasData(raw) {
		return nil, fmt.Errorf("frame has no data")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, errs.ErrActionFailed):
		return metrics.ResultActionFailed
	case errors.Is(err, errs.ErrTimeout):
		return metrics.ResultTimeout
	case errors.Is(err, errs.ErrAPINotAvailable):
		return metrics.ResultUnavailable
	default:
		return metrics.ResultError
	}
}

func accountLabel(account int64) string {
	return strconv.FormatInt(account, 10)
}
