package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/keepmind9/miraibridge/internal/bot"
	"github.com/keepmind9/miraibridge/internal/event"
	"github.com/keepmind9/miraibridge/internal/logger"
	"github.com/keepmind9/miraibridge/internal/metrics"
	"github.com/keepmind9/miraibridge/pkg/constants"
	"github.com/sirupsen/logrus"
)

// StatusPath serves the account state report
const StatusPath = "/status"

// Engine runs the connection manager and the bridge's HTTP listener
type Engine struct {
	config     *Config
	manager    *bot.Manager
	metrics    *metrics.Metrics
	dispatcher bot.Dispatcher

	mu       sync.Mutex
	server   *http.Server
	addr     net.Addr
	stopOnce sync.Once
	stopErr  error
}

// EngineOption customises an Engine
type EngineOption func(*Engine)

// WithDispatcher replaces the default logging dispatcher
func WithDispatcher(d bot.Dispatcher) EngineOption {
	return func(e *Engine) { e.dispatcher = d }
}

// NewEngine creates a new Engine instance
func NewEngine(config *Config, opts ...EngineOption) *Engine {
	e := &Engine{config: config}
	for _, opt := range opts {
		opt(e)
	}
	if e.dispatcher == nil {
		e.dispatcher = bot.DispatcherFunc(e.logEvent)
	}
	if config.Metrics.Enabled {
		e.metrics = metrics.New()
	}
	e.manager = bot.NewManager(config.BotConfig(), e.dispatcher, bot.WithMetrics(e.metrics))
	return e
}

// Manager exposes the connection manager for issuing calls
func (e *Engine) Manager() *bot.Manager {
	return e.manager
}

// Handler is the bridge's HTTP surface
func (e *Engine) Handler() http.Handler {
	mux := http.NewServeMux()
	if e.config.Mirai.Reverse {
		mux.Handle(bot.ServerPath, e.manager)
	}
	if e.metrics != nil {
		mux.Handle(e.config.Metrics.Path, e.metrics.Handler())
	}
	mux.HandleFunc(StatusPath, e.handleStatus)
	return mux
}

// Run starts the manager and the HTTP listener, then blocks until ctx is
// cancelled or the listener fails. It always stops the engine before
// returning.
func (e *Engine) Run(ctx context.Context) error {
	logger.WithFields(logrus.Fields{
		"mode":       e.config.Mode(),
		"accounts":   len(e.config.Mirai.QQ),
		"verify_key": logger.MaskSecret(e.config.Mirai.VerifyKey),
	}).Info("starting-miraibridge-engine")

	ln, err := net.Listen("tcp", e.config.ListenAddr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", e.config.ListenAddr(), err)
	}

	if err := e.manager.Start(ctx); err != nil {
		ln.Close()
		return fmt.Errorf("failed to start connection manager: %w", err)
	}

	srv := &http.Server{
		Handler:           e.Handler(),
		ReadHeaderTimeout: constants.DefaultHandshakeTimeout,
	}
	e.mu.Lock()
	e.server = srv
	e.addr = ln.Addr()
	e.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("address", ln.Addr().String()).Info("http-server-listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("engine-context-done")
		return e.Stop()
	case err, ok := <-serveErr:
		stopErr := e.Stop()
		if ok && err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return stopErr
	}
}

// Addr is the listener's bound address once Run has started it
func (e *Engine) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addr
}

// Stop gracefully stops the engine
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() {
		logger.Info("stopping-miraibridge-engine")

		e.mu.Lock()
		srv := e.server
		e.mu.Unlock()

		// Upgraded sockets are hijacked, so Shutdown does not wait for them;
		// the manager closes those.
		if err := e.manager.Stop(); err != nil {
			logger.WithField("error", err).Error("failed-to-stop-connection-manager")
			e.stopErr = err
		}

		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.WithField("error", err).Error("failed-to-gracefully-stop-http-server")
				srv.Close()
			}
		}
		logger.Info("engine-stopped")
	})
	return e.stopErr
}

// Status snapshots the connection state of every known account
func (e *Engine) Status() Status {
	states := e.manager.States()
	seen := make(map[int64]bool)
	st := Status{Mode: e.config.Mode(), Accounts: []AccountStatus{}}

	for _, qq := range e.config.Mirai.QQ {
		seen[qq] = true
		st.Accounts = append(st.Accounts, AccountStatus{Account: qq, State: states[qq].String()})
	}
	// Reverse-mode accounts are only known once mirai connects
	for qq, s := range states {
		if !seen[qq] {
			st.Accounts = append(st.Accounts, AccountStatus{Account: qq, State: s.String()})
		}
	}
	return st
}

func (e *Engine) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(e.Status()); err != nil {
		logger.WithField("error", err).Warn("status-encode-failed")
	}
}

// logEvent is the dispatcher used when no host is attached
func (e *Engine) logEvent(_ context.Context, b *bot.Bot, ev event.Event) {
	fields := logrus.Fields{
		"account": b.SelfID(),
		"type":    ev.EventType(),
		"kind":    event.EventKind(ev),
		"to_me":   event.IsToMe(ev),
		"event":   event.Description(ev),
	}
	if uid, err := event.UserID(ev); err == nil {
		fields["user"] = uid
		fields["superuser"] = e.config.IsSuperuser(uid)
	}
	logger.WithFields(fields).Info("event-received")
}
