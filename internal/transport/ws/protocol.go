// Package ws drives a call session over a websocket: the client sends what the
// prospect said, the server answers with the agent's reply.
package ws

import (
	"errors"

	"github.com/adam-a-i/ruya/internal/domain"
)

// Frame types from client to server.
const (
	TypeOpen   = "open"
	TypeUser   = "user"
	TypeHangup = "hangup"
)

// Frame types from server to client.
const (
	TypeReady = "ready"
	TypeAgent = "agent"
	TypeEnded = "ended"
	TypeError = "error"
)

// Error codes.
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeInvalidInput   = "invalid_input"
	ErrorCodeNotFound       = "not_found"
	ErrorCodeSessionEnded   = "session_ended"
	ErrorCodeTurnInFlight   = "turn_in_flight"
	ErrorCodeUnavailable    = "unavailable"
	ErrorCodeInternal       = "internal"
)

// ClientFrame is a frame sent by the client.
type ClientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// ServerFrame is a frame sent by the server.
type ServerFrame struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	EndCall   bool   `json:"end_call,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrorCodeNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return ErrorCodeInvalidInput
	case errors.Is(err, domain.ErrSessionEnded), errors.Is(err, domain.ErrInvalidTransition):
		return ErrorCodeSessionEnded
	case errors.Is(err, domain.ErrTurnInFlight):
		return ErrorCodeTurnInFlight
	case errors.Is(err, domain.ErrServiceUnavailable):
		return ErrorCodeUnavailable
	}
	return ErrorCodeInternal
}
