package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"scribe/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second

	// clientBuffer bounds per-client queued notes; slow consumers are
	// disconnected rather than backing up the hub.
	clientBuffer = 16
)

// initialState is the first frame a client receives: the replay of
// recent notes for its user.
type initialState struct {
	Type          string `json:"type"`
	Notifications []Note `json:"notifications"`
}

type client struct {
	userID string
	conn   *websocket.Conn

	// mu guards send against a close racing a queued delivery; only
	// shutdown ever closes the channel.
	mu     sync.Mutex
	closed bool
	send   chan Note
}

// trySend queues the note for delivery. It reports false only when the
// client is alive but its buffer is full.
func (c *client) trySend(note Note) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- note:
		return true
	default:
		return false
	}
}

func (c *client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub fans notes out to connected WebSocket clients grouped by user and
// keeps a bounded replay buffer per user.
type Hub struct {
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	replaySize int

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	replay  map[string][]Note
}

// NewHub creates a hub keeping replaySize recent notes per user.
func NewHub(replaySize int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	if replaySize < 0 {
		replaySize = 0
	}
	return &Hub{
		logger:     logging.NewComponentLogger(logger, "notifications"),
		upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		replaySize: replaySize,
		clients:    make(map[string]map[*client]struct{}),
		replay:     make(map[string][]Note),
	}
}

// Publish records the note in the user's replay buffer and delivers it
// to every connected client of that user.
func (h *Hub) Publish(ctx context.Context, userID string, note Note) {
	h.mu.Lock()
	if h.replaySize > 0 {
		buffer := append(h.replay[userID], note)
		if len(buffer) > h.replaySize {
			buffer = buffer[len(buffer)-h.replaySize:]
		}
		h.replay[userID] = buffer
	}
	targets := make([]*client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if !c.trySend(note) {
			h.logger.Warn("dropping slow notification client",
				logging.String("user_id", userID))
			h.removeClient(c)
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket session. The user is
// identified by the user_id query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}

	c := &client{userID: userID, conn: conn, send: make(chan Note, clientBuffer)}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	history := make([]Note, len(h.replay[userID]))
	copy(history, h.replay[userID])
	h.mu.Unlock()

	h.logger.Info("notification client connected", logging.String("user_id", userID))

	go h.writeLoop(c, history)
	go h.readLoop(c)
}

// Replay returns the buffered notes for a user, oldest first.
func (h *Hub) Replay(userID string) []Note {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Note, len(h.replay[userID]))
	copy(out, h.replay[userID])
	return out
}

// ClientCount reports connected clients for a user.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.shutdown()
	}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	set := h.clients[c.userID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()

	c.shutdown()
}

func (h *Hub) writeLoop(c *client, history []Note) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	state, err := json.Marshal(initialState{Type: "initialState", Notifications: history})
	if err == nil {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, state); err != nil {
			h.removeClient(c)
			return
		}
	}

	for {
		select {
		case note, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(note); err != nil {
				h.removeClient(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.removeClient(c)
				return
			}
		}
	}
}

func (h *Hub) readLoop(c *client) {
	defer h.removeClient(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
