package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/adam-a-i/ruya/internal/domain"
	"github.com/adam-a-i/ruya/internal/logger"
	"github.com/adam-a-i/ruya/internal/service"
	"github.com/adam-a-i/ruya/internal/transport/http/apierr"
)

const (
	maxMessageSize = 64 << 10
	readTimeout    = 90 * time.Second
	writeTimeout   = 10 * time.Second
	pingInterval   = 30 * time.Second
)

// Handler serves the live session socket.
type Handler struct {
	service  *service.Service
	hub      *Hub
	log      *logger.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a live session handler.
func NewHandler(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		hub:     NewHub(),
		log:     log.With("component", "live"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the socket route.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/v1/sessions/:session_id/live", h.Live)
}

// Hub returns the connection hub.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// liveCall is the per-connection conversation. History stays on the server so
// clients only send what the prospect said.
type liveCall struct {
	conn    *Connection
	history []domain.TurnMessage
	ctx     context.Context
}

// Live upgrades to a websocket bound to an existing, not yet ended session.
// GET /v1/sessions/:session_id/live
func (h *Handler) Live(c echo.Context) error {
	sessionID := c.Param("session_id")
	session, err := h.service.GetSession(c.Request().Context(), sessionID)
	if err != nil {
		return apierr.JSON(c, err)
	}
	if !session.State.IsLive() {
		return apierr.JSON(c, domain.ErrSessionEnded)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("failed to upgrade websocket", "session_id", sessionID, "error", err)
		return nil
	}
	ws.SetReadLimit(maxMessageSize)

	conn := h.hub.NewConnection(ws, sessionID)
	h.hub.Register(conn)
	h.log.Info("live connection opened", "session_id", sessionID, "conn_id", conn.ID)

	_ = h.hub.SendJSON(conn, ServerFrame{Type: TypeReady, Ts: time.Now().UnixMilli(), SessionID: sessionID})

	go h.writePump(conn)
	go h.readPump(conn)
	return nil
}

// readPump reads client frames and runs one turn at a time.
func (h *Handler) readPump(conn *Connection) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.hub.Unregister(conn)
		h.log.Info("live connection closed", "session_id", conn.SessionID, "conn_id", conn.ID)
	}()

	_ = conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	call := &liveCall{conn: conn, ctx: ctx}
	for {
		_, data, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read failed", "session_id", conn.SessionID, "error", err)
			}
			return
		}
		if done := h.handleFrame(call, data); done {
			return
		}
	}
}

// writePump drains the send channel and keeps the socket alive with pings.
func (h *Handler) writePump(conn *Connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			_ = conn.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.log.Warn("websocket write failed", "session_id", conn.SessionID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame dispatches one client frame. It reports true when the call is over.
func (h *Handler) handleFrame(call *liveCall, data []byte) bool {
	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.sendError(call.conn, ErrorCodeInvalidMessage, "invalid JSON frame")
		return false
	}

	switch frame.Type {
	case TypeOpen:
		return h.turn(call, domain.TurnRequest{Opening: true, History: call.history}, "")
	case TypeUser:
		return h.turn(call, domain.TurnRequest{Message: frame.Content, History: call.history}, frame.Content)
	case TypeHangup:
		if _, err := h.service.EndSession(call.ctx, call.conn.SessionID); err != nil {
			h.sendError(call.conn, errorCode(err), err.Error())
			return false
		}
		h.sendEnded(call.conn)
		return true
	default:
		h.sendError(call.conn, ErrorCodeInvalidMessage, "unknown frame type: "+frame.Type)
		return false
	}
}

func (h *Handler) turn(call *liveCall, req domain.TurnRequest, userText string) bool {
	sessionID := call.conn.SessionID
	resp, err := h.service.NextAgentTurn(call.ctx, sessionID, req)
	if err != nil {
		h.sendError(call.conn, errorCode(err), err.Error())
		return errorCode(err) == ErrorCodeSessionEnded
	}

	lines := make([]domain.TranscriptLineInput, 0, 2)
	if userText != "" {
		call.history = append(call.history, domain.TurnMessage{Role: "user", Content: userText})
		lines = append(lines, domain.TranscriptLineInput{Role: "user", Content: userText})
	}
	if resp.Text != "" {
		call.history = append(call.history, domain.TurnMessage{Role: "assistant", Content: resp.Text})
		lines = append(lines, domain.TranscriptLineInput{Role: "agent", Content: resp.Text})
	}
	if len(lines) > 0 {
		if _, err := h.service.AppendTranscript(call.ctx, sessionID, domain.AppendTranscriptRequest{Lines: lines}); err != nil {
			h.log.Error("failed to append live transcript", "session_id", sessionID, "error", err)
		}
	}

	_ = h.hub.BroadcastJSON(sessionID, ServerFrame{
		Type:    TypeAgent,
		Ts:      time.Now().UnixMilli(),
		Text:    resp.Text,
		EndCall: resp.EndCall,
	})
	if resp.EndCall {
		h.sendEnded(call.conn)
		return true
	}
	return false
}

func (h *Handler) sendEnded(conn *Connection) {
	_ = h.hub.BroadcastJSON(conn.SessionID, ServerFrame{Type: TypeEnded, Ts: time.Now().UnixMilli(), SessionID: conn.SessionID})
}

func (h *Handler) sendError(conn *Connection, code, message string) {
	if err := h.hub.SendJSON(conn, ServerFrame{Type: TypeError, Ts: time.Now().UnixMilli(), Code: code, Message: message}); err != nil {
		h.log.Warn("failed to send error frame", "session_id", conn.SessionID, "error", err)
	}
}
