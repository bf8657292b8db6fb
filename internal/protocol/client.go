// Package protocol wraps the vendor messaging library behind a narrow
// interface so the session manager never touches it directly and tests can
// swap in a fake.
package protocol

import (
	"context"
	"time"

	"gowalink/internal/credstore"
)

// Client is one live socket to the messaging network. Implementations emit
// the event types in events.go to every registered handler, in the order
// the underlying socket produces them.
type Client interface {
	// Connect opens the socket. For an unpaired device this also starts
	// the QR pairing flow; QRCode events follow until the device is
	// linked or the flow times out.
	Connect(ctx context.Context) error

	// SendMessage delivers a text message to the recipient, which is
	// either a bare phone number or a full protocol address.
	SendMessage(ctx context.Context, to, body string) (SendResponse, error)

	// RequestPairingCode asks the network for a short alphanumeric code
	// the user types on their phone instead of scanning a QR.
	RequestPairingCode(ctx context.Context, phoneNumber string) (string, error)

	// Logout unlinks the device on the network side.
	Logout(ctx context.Context) error

	Disconnect()
	IsConnected() bool

	// AddEventHandler registers fn for all events produced by this
	// client. Handlers are invoked from the client's event loop.
	AddEventHandler(fn func(evt interface{}))
}

type SendResponse struct {
	ID        string
	Timestamp time.Time
}

// Dialer constructs clients. Construction is separate from Connect so the
// manager can apply its own bounded retry to construction failures, which
// are local (store open races) rather than network flaps.
type Dialer interface {
	Dial(ctx context.Context, sessionID, credDir string, save credstore.SaveFunc) (Client, error)
}
