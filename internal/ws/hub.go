package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goonsradar/goonsradar/internal/query"
	"github.com/goonsradar/goonsradar/internal/store"
)

// Connection tuning. pingEvery stays below readWait so a healthy peer always
// answers in time.
const (
	writeWait  = 10 * time.Second
	readWait   = 60 * time.Second
	pingEvery  = 54 * time.Second
	queueDepth = 16
	maxInbound = 512
)

// Events sent to clients.
const (
	EventSnapshot = "snapshot"
	EventPending  = "pending"
)

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string          `json:"event"`
	Data  *query.Overview `json:"data"`
}

// Source renders the live snapshot. *query.Engine satisfies it.
type Source interface {
	Current() *query.Overview
}

// Hub pushes the overview to every connected client each time the store
// publishes a snapshot.
type Hub struct {
	src         Source
	updates     <-chan *store.Snapshot
	unsubscribe func()
	upgrader    websocket.Upgrader

	mu    sync.RWMutex
	peers map[*peer]struct{}
}

// peer is one connected client. out is closed exactly once, by stop.
type peer struct {
	conn *websocket.Conn
	out  chan []byte
	once sync.Once
}

func (p *peer) stop() { p.once.Do(func() { close(p.out) }) }

// New creates a Hub that renders from src and follows st. The subscription
// starts here, so snapshots published before Run starts are not missed.
func New(src Source, st *store.Store) *Hub {
	updates, unsubscribe := st.Subscribe()
	return &Hub{
		src:         src,
		updates:     updates,
		unsubscribe: unsubscribe,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origins are checked by the reverse proxy, if any.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		peers: make(map[*peer]struct{}),
	}
}

// Run broadcasts every published snapshot until ctx is cancelled or the
// subscription ends, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	defer h.unsubscribe()
	defer h.disconnectAll()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-h.updates:
			if !ok {
				return
			}
			h.broadcast()
		}
	}
}

// ServeHTTP upgrades the connection and serves the client. The current
// overview (or a "pending" event before the first fetch) is sent right away.
// Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already replied with an HTTP error
	}

	p := &peer{conn: conn, out: make(chan []byte, queueDepth)}
	if data, err := h.encode(); err == nil {
		p.out <- data
	}

	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
	defer h.drop(p)

	go p.writeLoop()
	p.readLoop()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *Hub) drop(p *peer) {
	h.mu.Lock()
	delete(h.peers, p)
	h.mu.Unlock()
	p.stop()
}

func (h *Hub) broadcast() {
	data, err := h.encode()
	if err != nil {
		slog.Warn("ws: encode message", "err", err)
		return
	}

	var lagging []*peer
	h.mu.RLock()
	for p := range h.peers {
		select {
		case p.out <- data:
		default:
			lagging = append(lagging, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range lagging {
		slog.Debug("ws: dropping slow client", "remote", p.conn.RemoteAddr().String())
		h.drop(p)
	}
}

func (h *Hub) encode() ([]byte, error) {
	ov := h.src.Current()
	if ov == nil {
		return json.Marshal(Message{Event: EventPending})
	}
	return json.Marshal(Message{Event: EventSnapshot, Data: ov})
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[*peer]struct{})
	h.mu.Unlock()

	for p := range peers {
		p.stop()
	}
}

// writeLoop drains out and keeps the connection alive with pings. A closed
// out channel sends a close frame and ends the connection.
func (p *peer) writeLoop() {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	defer p.conn.Close()

	for {
		var (
			kind = websocket.PingMessage
			data []byte
		)
		select {
		case msg, ok := <-p.out:
			if !ok {
				p.conn.SetWriteDeadline(time.Now().Add(writeWait))   //nolint:errcheck
				p.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			kind, data = websocket.TextMessage, msg
		case <-ping.C:
		}

		p.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
		if err := p.conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}

// readLoop discards inbound frames; it only exists to process pongs and to
// notice when the client goes away.
func (p *peer) readLoop() {
	defer p.conn.Close()
	p.conn.SetReadLimit(maxInbound)
	p.conn.SetReadDeadline(time.Now().Add(readWait)) //nolint:errcheck
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(readWait))
	})
	for {
		if _, _, err := p.conn.NextReader(); err != nil {
			return
		}
	}
}
