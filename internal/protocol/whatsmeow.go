package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow/proto/waE2E"

	_ "github.com/mattn/go-sqlite3"

	"gowalink/internal/credstore"
)

const deviceDBFile = "device.db"

// WhatsmeowDialer builds whatsmeow-backed clients. Each session gets its
// own sqlite device store inside its credential directory, so erasing the
// directory on logout wipes everything the protocol library persisted.
type WhatsmeowDialer struct {
	LogLevel string
}

func (d *WhatsmeowDialer) Dial(ctx context.Context, sessionID, credDir string, save credstore.SaveFunc) (Client, error) {
	level := d.LogLevel
	if level == "" {
		level = "INFO"
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", filepath.Join(credDir, deviceDBFile))
	container, err := sqlstore.New(ctx, "sqlite3", dsn, waLog.Stdout("Store/"+sessionID, level, true))
	if err != nil {
		return nil, fmt.Errorf("protocol: open device store for %s: %w", sessionID, err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("protocol: get device for %s: %w", sessionID, err)
	}

	cli := whatsmeow.NewClient(device, waLog.Stdout("Client/"+sessionID, level, true))
	// The session manager schedules reconnects itself; the library must not
	// race it with its own retry loop.
	cli.EnableAutoReconnect = false
	return &waClient{sessionID: sessionID, cli: cli, save: save}, nil
}

type waClient struct {
	sessionID string
	cli       *whatsmeow.Client
	save      credstore.SaveFunc

	mu       sync.RWMutex
	handlers []func(evt interface{})
	wired    bool
}

func (c *waClient) AddEventHandler(fn func(evt interface{})) {
	c.mu.Lock()
	c.handlers = append(c.handlers, fn)
	if !c.wired {
		c.wired = true
		c.cli.AddEventHandler(c.translate)
	}
	c.mu.Unlock()
}

func (c *waClient) emit(evt interface{}) {
	c.mu.RLock()
	handlers := make([]func(interface{}), len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.RUnlock()

	for _, fn := range handlers {
		fn(evt)
	}
}

// translate maps whatsmeow events onto the adapter's event set. Events the
// session manager has no use for (receipts, presence, history sync) are
// dropped here.
func (c *waClient) translate(raw interface{}) {
	switch evt := raw.(type) {
	case *events.Connected:
		info := Connected{PushName: c.cli.Store.PushName}
		if id := c.cli.Store.ID; id != nil {
			info.JID = id.String()
			info.PhoneNumber = id.User
		}
		c.persistIdentity(info)
		c.emit(info)

	case *events.PairSuccess:
		c.emit(PairSuccess{})

	case *events.LoggedOut:
		c.emit(LoggedOut{Reason: fmt.Sprintf("device unlinked (reason %v)", evt.Reason)})

	case *events.StreamReplaced:
		c.emit(StreamReplaced{})

	case *events.Disconnected:
		c.emit(Disconnected{Reason: "connection closed"})

	case *events.Message:
		body := evt.Message.GetConversation()
		if body == "" {
			body = evt.Message.GetExtendedTextMessage().GetText()
		}
		if body == "" {
			return
		}
		msg := Message{
			ID:        string(evt.Info.ID),
			From:      evt.Info.Sender.User,
			To:        evt.Info.Chat.String(),
			Body:      body,
			Timestamp: evt.Info.Timestamp,
			FromMe:    evt.Info.IsFromMe,
			PushName:  evt.Info.PushName,
		}
		c.emit(msg)
	}
}

// persistIdentity snapshots the linked identity into the credential blob.
// The device keys themselves live in the sqlite store next to it; this
// blob lets the manager rehydrate phone number and push name at boot
// without opening the socket first.
func (c *waClient) persistIdentity(info Connected) {
	if c.save == nil {
		return
	}
	blob, err := json.Marshal(map[string]interface{}{
		"jid":          info.JID,
		"phone_number": info.PhoneNumber,
		"push_name":    info.PushName,
		"linked_at":    time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := c.save(blob); err == nil {
		c.emit(CredentialsUpdated{})
	}
}

func (c *waClient) Connect(ctx context.Context) error {
	// Already paired: plain reconnect off stored credentials.
	if c.cli.Store.ID != nil {
		if err := c.cli.Connect(); err != nil {
			return fmt.Errorf("protocol: connect %s: %w", c.sessionID, err)
		}
		return nil
	}

	// Fresh device: the QR channel must be acquired before Connect.
	qrChan, err := c.cli.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("protocol: qr channel for %s: %w", c.sessionID, err)
	}
	if err := c.cli.Connect(); err != nil {
		return fmt.Errorf("protocol: connect %s: %w", c.sessionID, err)
	}

	go c.pumpQR(qrChan)
	return nil
}

func (c *waClient) pumpQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch {
		case item.Event == "code":
			c.emit(QRCode{Code: item.Code})
		case item.Event == "success":
			// events.Connected follows from the main handler.
			return
		case item.Event == "timeout":
			c.emit(Disconnected{Reason: "pairing timed out"})
			return
		case strings.HasPrefix(item.Event, "err-"):
			c.emit(Disconnected{Reason: "pairing failed: " + item.Event})
			return
		}
	}
}

func (c *waClient) SendMessage(ctx context.Context, to, body string) (SendResponse, error) {
	recipient, err := toJID(to)
	if err != nil {
		return SendResponse{}, err
	}

	msg := &waE2E.Message{Conversation: proto.String(body)}
	resp, err := c.cli.SendMessage(ctx, recipient, msg)
	if err != nil {
		return SendResponse{}, fmt.Errorf("protocol: send from %s: %w", c.sessionID, err)
	}
	return SendResponse{ID: string(resp.ID), Timestamp: resp.Timestamp}, nil
}

func (c *waClient) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	code, err := c.cli.PairPhone(ctx, phoneNumber, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
	if err != nil {
		return "", fmt.Errorf("protocol: pair phone for %s: %w", c.sessionID, err)
	}
	return code, nil
}

func (c *waClient) Logout(ctx context.Context) error {
	return c.cli.Logout(ctx)
}

func (c *waClient) Disconnect() {
	c.cli.Disconnect()
}

func (c *waClient) IsConnected() bool {
	return c.cli.IsConnected()
}

func toJID(to string) (types.JID, error) {
	if strings.ContainsRune(to, '@') {
		jid, err := types.ParseJID(to)
		if err != nil {
			return types.JID{}, fmt.Errorf("protocol: invalid recipient %q: %w", to, err)
		}
		return jid, nil
	}
	return types.JID{User: to, Server: types.DefaultUserServer}, nil
}
