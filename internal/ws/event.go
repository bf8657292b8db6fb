package ws

import "time"

// Event names pushed over the realtime channel.
const (
	EventStateChanged = "session.state_changed"
	EventQR           = "session.qr"
	EventPairingCode  = "session.pairing_code"
	EventAuthOK       = "session.authenticated"
	EventReady        = "session.ready"
	EventDisconnected = "session.disconnected"
	EventError        = "session.error"
	EventMessage      = "session.message"
)

// WsEvent is the envelope every realtime event travels in.
type WsEvent struct {
	Event     string      `json:"event"`
	SessionID string      `json:"sessionId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}
