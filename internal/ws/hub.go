package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obsidianstack/envwatch/internal/pipeline"
)

const (
	writeDeadline = 10 * time.Second
	idleDeadline  = 60 * time.Second
	pingEvery     = idleDeadline * 9 / 10
	queueDepth    = 16
	maxInbound    = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string            `json:"event"`
	Data  pipeline.Snapshot `json:"data"`
}

// SnapshotFunc returns the snapshot to broadcast.
type SnapshotFunc func() pipeline.Snapshot

// Hub pushes the current snapshot to every connected peer, once on connect
// and then every interval.
type Hub struct {
	snapshot SnapshotFunc
	interval time.Duration

	mu    sync.RWMutex
	peers map[*peer]struct{}
}

// peer is one upgraded connection and its outbound queue. The queue is closed
// exactly once, by whoever removes the peer from the hub.
type peer struct {
	conn  *websocket.Conn
	queue chan []byte
}

// New creates a Hub broadcasting snapshot() every interval.
func New(snapshot SnapshotFunc, interval time.Duration) *Hub {
	return &Hub{
		snapshot: snapshot,
		interval: interval,
		peers:    make(map[*peer]struct{}),
	}
}

// Run broadcasts on every tick until ctx is cancelled, then hangs up on all
// peers.
func (h *Hub) Run(ctx context.Context) {
	tick := time.NewTicker(h.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for p := range h.peers {
				h.dropLocked(p)
			}
			h.mu.Unlock()
			return
		case <-tick.C:
			h.Broadcast()
		}
	}
}

// ServeHTTP upgrades the request and serves the peer until it goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	p := &peer{conn: conn, queue: make(chan []byte, queueDepth)}
	if frame, err := h.encode(); err == nil {
		p.queue <- frame
	}

	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
	defer h.drop(p)

	go p.write()
	p.read()
}

// Count returns the number of connected peers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Broadcast queues the current snapshot for every peer. Peers whose queue is
// full are disconnected.
func (h *Hub) Broadcast() {
	frame, err := h.encode()
	if err != nil {
		slog.Error("ws: encode snapshot", "err", err)
		return
	}

	var stalled []*peer
	h.mu.RLock()
	for p := range h.peers {
		select {
		case p.queue <- frame:
		default:
			stalled = append(stalled, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range stalled {
		slog.Warn("ws: dropping slow client", "remote", p.conn.RemoteAddr().String())
		h.drop(p)
	}
}

func (h *Hub) encode() ([]byte, error) {
	return json.Marshal(Message{Event: "snapshot", Data: h.snapshot()})
}

func (h *Hub) drop(p *peer) {
	h.mu.Lock()
	h.dropLocked(p)
	h.mu.Unlock()
}

func (h *Hub) dropLocked(p *peer) {
	if _, ok := h.peers[p]; !ok {
		return
	}
	delete(h.peers, p)
	close(p.queue)
}

// write drains the queue onto the connection and keeps it alive with pings.
// A closed queue sends a close frame.
func (p *peer) write() {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	defer p.conn.Close()

	for {
		var (
			kind    int
			payload []byte
		)
		select {
		case frame, ok := <-p.queue:
			if !ok {
				kind = websocket.CloseMessage
			} else {
				kind, payload = websocket.TextMessage, frame
			}
		case <-ping.C:
			kind = websocket.PingMessage
		}

		_ = p.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := p.conn.WriteMessage(kind, payload); err != nil || kind == websocket.CloseMessage {
			return
		}
	}
}

// read discards inbound frames so that pongs and close frames are processed.
// It returns once the connection fails or goes idle.
func (p *peer) read() {
	defer p.conn.Close()
	p.conn.SetReadLimit(maxInbound)
	extend := func(string) error { return p.conn.SetReadDeadline(time.Now().Add(idleDeadline)) }
	_ = extend("")
	p.conn.SetPongHandler(extend)
	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			return
		}
	}
}
