// Package wire defines the WebSocket protocol between an open settings
// panel in the browser and the service.
package wire

import "encoding/json"

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"` // "ping", "close"
	ID   string          `json:"id"`   // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// Server message types.
const (
	TypeSession  = "session"
	TypePong     = "pong"
	TypeBusy     = "busy"
	TypeMessage  = "message"
	TypeRendered = "rendered"
	TypeClosed   = "closed"
	TypeError    = "error"
)

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// SessionData is sent once after the connection is accepted.
type SessionData struct {
	SessionID string `json:"session_id"`
	EntityID  string `json:"entity_id"`
	Busy      bool   `json:"busy"`
}

// BusyData toggles the panel's busy overlay.
type BusyData struct {
	Busy bool `json:"busy"`
}

// MessageData carries a transient notification.
type MessageData struct {
	Text string `json:"text"`
}

// RenderedData tells the browser new panel content is available.
type RenderedData struct {
	Panel string `json:"panel"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
