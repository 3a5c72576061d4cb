package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/securechat/securechat/internal/events"
	"github.com/securechat/securechat/internal/models"
)

const hubWriteTimeout = 10 * time.Second

// wsEvent is the frame pushed to connected clients.
type wsEvent struct {
	Type    string             `json:"type"`
	Message models.MessageView `json:"message"`
}

// hubConn pairs a connection with a write lock. Gorilla connections
// allow at most one concurrent writer, and notifications arrive on the
// goroutine of whichever request triggered them.
type hubConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *hubConn) write(event wsEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
	return c.conn.WriteJSON(event)
}

// Hub tracks WebSocket connections per user and pushes new-message
// notifications. Notifications carry metadata only, never plaintext.
type Hub struct {
	logger *events.Logger

	mu    sync.RWMutex
	conns map[int64]map[*websocket.Conn]*hubConn
}

// NewHub creates an empty hub.
func NewHub(logger *events.Logger) *Hub {
	return &Hub{
		logger: logger.WithField("component", "ws_hub"),
		conns:  make(map[int64]map[*websocket.Conn]*hubConn),
	}
}

func (h *Hub) register(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]*hubConn)
	}
	h.conns[userID][conn] = &hubConn{conn: conn}
}

func (h *Hub) unregister(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.conns[userID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
}

// NotifyNewMessage pushes a new-message event to the recipient's
// connections. Dead connections are dropped.
func (h *Hub) NotifyNewMessage(recipientID int64, view models.MessageView) {
	h.mu.RLock()
	conns := make([]*hubConn, 0, len(h.conns[recipientID]))
	for _, hc := range h.conns[recipientID] {
		conns = append(conns, hc)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return
	}

	event := wsEvent{Type: "message.new", Message: view}
	for _, hc := range conns {
		if err := hc.write(event); err != nil {
			h.logger.WithField("user_id", recipientID).WithError(err).Debug("Dropping dead WebSocket connection")
			h.unregister(recipientID, hc.conn)
			_ = hc.conn.Close()
		}
	}
}

// connectionCount reports open connections for a user (test hook).
func (h *Hub) connectionCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}
