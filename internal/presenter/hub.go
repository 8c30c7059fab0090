// Package presenter streams the simulation to live viewers over WebSocket.
// It only reads snapshots and replies; commands typed into a viewer go back
// through the command channel like any other source.
package presenter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dronelab/tellosim/internal/bus"
	"github.com/dronelab/tellosim/internal/command"
	"github.com/dronelab/tellosim/internal/drone"
	"github.com/dronelab/tellosim/internal/telemetry"
	"github.com/dronelab/tellosim/pkg/streaming"
)

const (
	outboxSize = 64
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Sender submits a command on behalf of a viewer.
type Sender interface {
	Send(raw string, cb command.Callback) error
}

// Config holds hub settings.
type Config struct {
	// MinInterval throttles snapshot broadcasts; zero sends every change.
	MinInterval time.Duration
	Hello       streaming.HelloPayload
}

type client struct {
	conn   *websocket.Conn
	outbox chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Hub fans snapshot and reply envelopes out to every connected viewer.
type Hub struct {
	cfg       Config
	sender    Sender
	telemetry *telemetry.Generator
	logger    *slog.Logger
	upgrader  websocket.Upgrader

	mu       sync.RWMutex
	clients  map[*client]struct{}
	lastSent time.Time
	dropped  int
}

// New creates a hub. sender and gen may be nil.
func New(cfg Config, sender Sender, gen *telemetry.Generator, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:       cfg,
		sender:    sender,
		telemetry: gen,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Attach subscribes the hub to state and reply topics.
func (h *Hub) Attach(b *bus.Bus) []*bus.Subscription {
	return []*bus.Subscription{
		bus.On(b, bus.TopicStateChanged, h.OnStateChanged),
		bus.On(b, bus.TopicCommandCompleted, h.OnCommandCompleted),
	}
}

// OnStateChanged broadcasts snap, and telemetry derived from it, unless the
// previous broadcast was less than MinInterval ago. A snapshot at rest is
// always sent so viewers see the final position.
func (h *Hub) OnStateChanged(snap drone.Snapshot) {
	now := time.Now()
	h.mu.Lock()
	if h.cfg.MinInterval > 0 && now.Sub(h.lastSent) < h.cfg.MinInterval && snap.Moving() {
		h.mu.Unlock()
		return
	}
	h.lastSent = now
	h.mu.Unlock()

	h.broadcast(streaming.TypeSnapshot, snap)
	if h.telemetry != nil {
		h.broadcast(streaming.TypeTelemetry, h.telemetry.Generate(snap).Map())
	}
}

// OnCommandCompleted broadcasts a reply.
func (h *Hub) OnCommandCompleted(c bus.CommandCompleted) {
	h.broadcast(streaming.TypeCommandCompleted, streaming.CommandCompletedPayload{
		Command:   c.Command,
		Result:    c.Result,
		LatencyMs: float64(c.Latency) / float64(time.Millisecond),
	})
}

func (h *Hub) broadcast(msgType string, payload any) {
	msg, err := streaming.Marshal(msgType, payload)
	if err != nil {
		h.logger.Error("Failed to marshal envelope", "type", msgType, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.outbox <- msg:
		default:
			// slow viewer, it catches up on the next snapshot
			h.dropped++
		}
	}
}

// Clients returns the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were skipped for slow viewers.
func (h *Hub) Dropped() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// ServeHTTP upgrades the request and serves the viewer until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
	}
	if hello, err := streaming.Marshal(streaming.TypeHello, h.cfg.Hello); err == nil {
		c.outbox <- hello
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("Viewer connected", "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
	h.logger.Info("Viewer disconnected", "remote", r.RemoteAddr)
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) readPump(c *client) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env streaming.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		h.handle(c, env)
	}
}

func (h *Hub) handle(c *client, env streaming.Envelope) {
	if env.Type != streaming.TypeSendCommand || h.sender == nil {
		h.logger.Debug("Ignoring viewer message", "type", env.Type)
		return
	}

	var p streaming.SendCommandPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.Command == "" {
		h.logger.Debug("Invalid send_command payload", "error", err)
		return
	}

	// the reply reaches every viewer, this one included, as command_completed
	if err := h.sender.Send(p.Command, nil); err != nil {
		h.logger.Error("Failed to send viewer command", "command", p.Command, "error", err)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case msg := <-c.outbox:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
