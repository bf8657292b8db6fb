package session

import "time"

// MessageStatus is the delivery position of a relayed message.
type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
	MessageFailed    MessageStatus = "failed"
)

// Message is a transient relay record. The manager hands it to the caller
// or to subscribers and keeps no history.
type Message struct {
	ID        string        `json:"id"`
	SessionID string        `json:"sessionId"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Body      string        `json:"body"`
	Timestamp time.Time     `json:"timestamp"`
	FromMe    bool          `json:"fromMe"`
	Status    MessageStatus `json:"status"`
}
