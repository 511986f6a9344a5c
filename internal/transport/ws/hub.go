package ws

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrBufferFull is returned when a connection's send buffer is full.
var ErrBufferFull = errors.New("send buffer full")

const sendBuffer = 64

// Connection represents a single live socket bound to a call session.
type Connection struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	mu        sync.Mutex
}

// WriteMessage writes to the socket. gorilla allows one concurrent writer.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// Hub tracks live connections per session. A session may have more than one
// listener; agent replies go to all of them.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	sessions    map[string]map[string]*Connection
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		sessions:    make(map[string]map[string]*Connection),
	}
}

// NewConnection wraps ws for sessionID.
func (h *Hub) NewConnection(ws *websocket.Conn, sessionID string) *Connection {
	return &Connection{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Conn:      ws,
		Send:      make(chan []byte, sendBuffer),
	}
}

// Register adds a connection.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.ID] = conn
	if h.sessions[conn.SessionID] == nil {
		h.sessions[conn.SessionID] = make(map[string]*Connection)
	}
	h.sessions[conn.SessionID][conn.ID] = conn
}

// Unregister removes a connection and closes its send channel. Calling it
// twice is safe.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)
	if peers := h.sessions[conn.SessionID]; peers != nil {
		delete(peers, conn.ID)
		if len(peers) == 0 {
			delete(h.sessions, conn.SessionID)
		}
	}
	close(conn.Send)
}

// BroadcastJSON sends v to every connection of a session. Connections whose
// buffer is full are skipped.
func (h *Hub) BroadcastJSON(sessionID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.sessions[sessionID] {
		select {
		case conn.Send <- data:
		default:
		}
	}
	return nil
}

// SendJSON sends v to one connection.
func (h *Hub) SendJSON(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return nil
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SessionCount returns the number of sessions with a live listener.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
