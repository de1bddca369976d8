package bot

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"
)

// wireRequest is an outbound call as the fake sees it
type wireRequest struct {
	SyncID     string                     `json:"syncId"`
	Command    string                     `json:"command"`
	Subcommand *string                    `json:"subcommand"`
	Content    map[string]json.RawMessage `json:"content"`
}

// fakeMirai imitates mirai-api-http's /all endpoint
type fakeMirai struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	// handshake returns the first frame for a dial; nil means accept
	handshake func(dial int32) any
	// reply returns the data member answering req, or nil for no answer
	reply func(req wireRequest) any
	// afterHandshake may close the socket right away to simulate drops
	afterHandshake func(dial int32) bool
	// silent withholds the handshake frame and just drains the socket
	silent bool

	dials    atomic.Int32
	requests chan wireRequest
	headers  chan http.Header

	mu    sync.Mutex
	peers []*fakePeer
}

type fakePeer struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (p *fakePeer) write(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ws.WriteJSON(v)
}

func newFakeMirai(t *testing.T) *fakeMirai {
	t.Helper()
	f := &fakeMirai{
		requests: make(chan wireRequest, 64),
		headers:  make(chan http.Header, 16),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.close)
	return f
}

func (f *fakeMirai) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != ClientPath {
		http.NotFound(w, r)
		return
	}
	dial := f.dials.Add(1)
	select {
	case f.headers <- r.Header.Clone():
	default:
	}

	ws, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	peer := &fakePeer{ws: ws}
	defer ws.Close()

	f.mu.Lock()
	f.peers = append(f.peers, peer)
	f.mu.Unlock()

	if f.silent {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}

	first := any(map[string]any{"syncId": "", "data": map[string]any{"code": 0, "session": "sess"}})
	if f.handshake != nil {
		if frame := f.handshake(dial); frame != nil {
			first = frame
		}
	}
	if err := peer.write(first); err != nil {
		return
	}
	if f.afterHandshake != nil && f.afterHandshake(dial) {
		return
	}

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var req wireRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			continue
		}
		select {
		case f.requests <- req:
		default:
		}
		if f.reply == nil {
			continue
		}
		if data := f.reply(req); data != nil {
			_ = peer.write(map[string]any{"syncId": req.SyncID, "data": data})
		}
	}
}

// push sends a frame to the most recent connection
func (f *fakeMirai) push(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.peers) == 0 {
		return net.ErrClosed
	}
	return f.peers[len(f.peers)-1].write(v)
}

func (f *fakeMirai) hostPort() (string, int) {
	addr := f.srv.Listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func (f *fakeMirai) close() {
	f.mu.Lock()
	for _, p := range f.peers {
		p.ws.Close()
	}
	f.mu.Unlock()
	f.srv.CloseClientConnections()
	f.srv.Close()
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}
