package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/neurotune/internal/control"
	"github.com/desertthunder/neurotune/internal/shared"
	"github.com/gorilla/websocket"
)

// State stream messages. Every frame is a JSON envelope {type, ts, data};
// a new client first receives "state_init", then one "state_changed" per update.
const (
	MessageStateInit    = "state_init"
	MessageStateChanged = "state_changed"
)

// Updates is a stream of control loop updates.
type Updates <-chan control.Update

type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func encodeEnvelope(kind string, data any) ([]byte, error) {
	now := time.Now().UTC()
	return json.Marshal(envelope{Type: kind, Ts: &now, Data: data})
}

// Hub tracks connected WebSocket clients and fans broadcasts out to them.
// A client whose send buffer is full is disconnected.
type Hub struct {
	logger *log.Logger

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size.
	SendBuf int
	// BroadcastBuf is the hub inbound broadcast queue size.
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *log.Logger, cfg HubConfig) *Hub {
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = 32
	}
	if cfg.BroadcastBuf <= 0 {
		cfg.BroadcastBuf = 128
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, cfg.BroadcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    cfg.SendBuf,
	}
}

// Run processes hub events until ctx is canceled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Debug("ws hub starting")
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			h.logger.Debug("ws hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "client", c.id, "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			var slow []*Client
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		h.logger.Info("ws client disconnected", "client", c.id, "reason", reason, "clients", n)
	}
}

// BroadcastBytes enqueues a serialized frame. It never blocks; when the hub queue is full the frame is dropped.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// Client is one WebSocket connection.
type Client struct {
	id         string
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	logger     *log.Logger
	closeOnce  sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *log.Logger) *Client {
	return &Client{
		id:         shared.GenerateID(),
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, hub.sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

// close ends the connection and signals writePump to exit.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		close(c.send)
	})
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Debug("ws pump exiting (close)", "pump", pump, "client", c.id, "code", code, "reason", text)
		return
	}
	c.logger.Debug("ws pump exiting", "pump", pump, "client", c.id, "error", err)
}

// writePump writes queued frames and pings. It exits on write error or when send is closed.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("write", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("ping", err)
				return
			}
		}
	}
}

// readPump discards incoming frames to detect disconnects, then unregisters the client.
func (c *Client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("read", err)
			c.hub.unregister <- c
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	// The API only listens on loopback by default.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StateSocket upgrades requests to the state stream.
type StateSocket struct {
	hub    *Hub
	ctl    Snapshotter
	logger *log.Logger
}

// Snapshotter provides the state sent on connect.
type Snapshotter interface {
	Snapshot() control.State
}

func NewStateSocket(hub *Hub, ctl Snapshotter, logger *log.Logger) *StateSocket {
	return &StateSocket{hub: hub, ctl: ctl, logger: logger}
}

func (s *StateSocket) Routes() []string { return []string{"/ws"} }

// ServeHTTP registers the client and queues state_init ahead of any broadcast it has not seen.
func (s *StateSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := newClient(s.hub, conn, r.RemoteAddr, s.logger)

	if msg, err := encodeEnvelope(MessageStateInit, s.ctl.Snapshot()); err == nil {
		client.send <- msg
	} else {
		s.logger.Error("ws snapshot encode failed", "error", err)
	}
	s.hub.register <- client

	// Pumps outlive the request; the hub and connection errors end them.
	go client.writePump()
	go client.readPump()
}

// RunBroadcaster forwards control loop updates to every hub client as state_changed frames.
func RunBroadcaster(ctx context.Context, hub *Hub, updates Updates, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				logger.Debug("ws broadcaster stopping (source ended)")
				return
			}
			msg, err := encodeEnvelope(MessageStateChanged, u.State)
			if err != nil {
				logger.Warn("ws broadcaster marshal failed", "error", err)
				continue
			}
			hub.BroadcastBytes(msg)
		}
	}
}
