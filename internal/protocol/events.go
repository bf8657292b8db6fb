package protocol

import "time"

// QRCode carries a fresh pairing QR string. The network rotates codes
// every few seconds while pairing is open; each event replaces the last.
type QRCode struct {
	Code string
}

// PairSuccess fires when the phone accepts the link, before the device
// handshake completes.
type PairSuccess struct{}

// Connected fires once the socket is fully authenticated and usable.
type Connected struct {
	JID         string
	PhoneNumber string
	PushName    string
}

// Disconnected is a transient socket close. The caller decides whether to
// retry; credentials stay valid.
type Disconnected struct {
	Reason string
}

// LoggedOut means the device was unlinked on the network side. Terminal:
// the stored credentials are dead and reconnecting is pointless.
type LoggedOut struct {
	Reason string
}

// StreamReplaced means another socket took over this device's stream.
// Treated as terminal so two processes don't fight over one device.
type StreamReplaced struct{}

// Message is an inbound text message.
type Message struct {
	ID        string
	From      string
	To        string
	Body      string
	Timestamp time.Time
	FromMe    bool
	PushName  string
}

// CredentialsUpdated fires after the client persisted rotated credentials
// through the store's save callback.
type CredentialsUpdated struct{}
