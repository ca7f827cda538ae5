// Package ws holds the realtime notification channel: one hub per process,
// a connection registry keyed by user id, and a JSON ping/pong heartbeat.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// Connection is dropped after two missed heartbeats.
	heartbeatInterval = 30 * time.Second
	readWait          = 2*heartbeatInterval + 5*time.Second
	sendBuffer        = 16
)

type frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[uuid.UUID]map[*client]struct{}
}

func NewHub(log *slog.Logger, originAllowed func(r *http.Request) bool) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originAllowed,
		},
		conns: make(map[uuid.UUID]map[*client]struct{}),
	}
}

// Serve upgrades the request and blocks until the connection dies. The
// caller has already authenticated userID.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(userID, cl)
	h.log.Info("websocket connected", "user_id", userID)

	defer func() {
		h.unregister(userID, cl)
		conn.Close()
		h.log.Info("websocket disconnected", "user_id", userID)
	}()

	if msg, err := json.Marshal(frame{Type: "connected", Data: map[string]string{"user_id": userID.String()}}); err == nil {
		cl.send <- msg
	}

	go cl.writeLoop()
	cl.readLoop()
	return nil
}

// Push sends a JSON frame to every connection the user currently has.
// Delivery is best effort: a slow or dead connection is skipped, the
// notification stays queryable through the persisted store.
func (h *Hub) Push(userID uuid.UUID, typ string, data any) {
	msg, err := json.Marshal(frame{Type: typ, Data: data})
	if err != nil {
		h.log.Error("websocket payload marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.conns[userID] {
		select {
		case cl.send <- msg:
		default:
		}
	}
}

func (h *Hub) IsConnected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// ConnectedUsers counts distinct users with at least one live connection.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) register(userID uuid.UUID, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*client]struct{})
	}
	h.conns[userID][cl] = struct{}{}
}

func (h *Hub) unregister(userID uuid.UUID, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[userID]; ok {
		delete(set, cl)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
	close(cl.send)
}

// readLoop consumes client frames. Any readable frame counts as liveness;
// the deadline enforces the heartbeat timeout.
func (c *client) readLoop() {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readWait))

		var f frame
		if json.Unmarshal(msg, &f) != nil {
			continue
		}
		// pong and any other client chatter only refresh the deadline
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ping, _ := json.Marshal(frame{Type: "ping"})

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return
			}
		}
	}
}
