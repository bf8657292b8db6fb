package session

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"gowalink/internal/credstore"
	"gowalink/internal/protocol"
)

type fakeClient struct {
	mu        sync.Mutex
	handlers  []func(evt interface{})
	connected bool

	connectErr  error
	sendResp    protocol.SendResponse
	sendErr     error
	sendCalls   int
	lastTo      string
	lastBody    string
	pairCode    string
	loggedOut   bool
	disconnects int

	// connectStarted (if set) receives once per Connect call before
	// connectGate (if set) blocks the call until closed.
	connectStarted chan struct{}
	connectGate    chan struct{}
}

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	started := f.connectStarted
	gate := f.connectGate
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeClient) SendMessage(ctx context.Context, to, body string) (protocol.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	f.lastTo = to
	f.lastBody = body
	if f.sendErr != nil {
		return protocol.SendResponse{}, f.sendErr
	}
	return f.sendResp, nil
}

func (f *fakeClient) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pairCode == "" {
		return "", errors.New("pairing not supported")
	}
	return f.pairCode, nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = true
	return nil
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) AddEventHandler(fn func(evt interface{})) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, fn)
}

// emit pushes a protocol event through the registered handlers the way the
// real socket's event loop would.
func (f *fakeClient) emit(evt interface{}) {
	f.mu.Lock()
	handlers := make([]func(interface{}), len(f.handlers))
	copy(handlers, f.handlers)
	f.mu.Unlock()
	for _, fn := range handlers {
		fn(evt)
	}
}

func (f *fakeClient) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendCalls
}

func (f *fakeClient) disconnected() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

func (f *fakeClient) didLogout() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedOut
}

func (f *fakeClient) lastSend() (to, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastTo, f.lastBody
}

type fakeDialer struct {
	mu      sync.Mutex
	clients []*fakeClient
	// dialErrs[i] fails dial number i+1; dials past the slice succeed.
	dialErrs []error
	dials    int
	// setup (if set) runs on every freshly dialed client before it is
	// handed to the manager.
	setup func(*fakeClient)
}

func (d *fakeDialer) Dial(ctx context.Context, sessionID, credDir string, save credstore.SaveFunc) (protocol.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= len(d.dialErrs) && d.dialErrs[d.dials-1] != nil {
		return nil, d.dialErrs[d.dials-1]
	}
	c := &fakeClient{pairCode: "ABCD-1234", sendResp: protocol.SendResponse{ID: "wire-1", Timestamp: time.Unix(1700000000, 0)}}
	if d.setup != nil {
		d.setup(c)
	}
	d.clients = append(d.clients, c)
	return c, nil
}

// client waits for dial number n+1 and for the manager to finish wiring it
// (handler registered, Connect done), so emits cannot outrun the setup.
func (d *fakeDialer) client(t *testing.T, n int) *fakeClient {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d.mu.Lock()
		var c *fakeClient
		if len(d.clients) > n {
			c = d.clients[n]
		}
		d.mu.Unlock()
		if c != nil {
			c.mu.Lock()
			wired := len(c.handlers) > 0 && c.connected
			c.mu.Unlock()
			if wired {
				return c
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client %d never dialed and connected", n)
	return nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) clientCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

type collector struct {
	mu     sync.Mutex
	events []interface{}
}

func (c *collector) handle(evt interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *collector) all() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interface{}, len(c.events))
	copy(out, c.events)
	return out
}

func testConfig() Config {
	return Config{
		ReconnectBaseDelay:  time.Millisecond,
		ReconnectMaxDelay:   4 * time.Millisecond,
		ReconnectMaxRetries: 3,
		ConnectRetryDelay:   time.Millisecond,
		ConnectMaxRetries:   3,
		TombstoneTTL:        time.Minute,
	}
}

func newTestManager(t *testing.T, cfg Config, dialer protocol.Dialer) *Manager {
	t.Helper()
	return NewManager(cfg, credstore.New(t.TempDir()), dialer, nil)
}

func waitForState(t *testing.T, m *Manager, id string, want State) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var last Snapshot
	for time.Now().Before(deadline) {
		snap, ok := m.GetSession(id)
		if ok {
			last = snap
			if snap.State == want {
				return snap
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("session %s never reached %s (last: %s)", id, want, last.State)
	return Snapshot{}
}

func driveToReady(t *testing.T, m *Manager, d *fakeDialer, userID string) (Snapshot, *fakeClient) {
	t.Helper()
	next := d.clientCount()
	snap, err := m.CreateSession(context.Background(), userID)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if snap.State != StateInitializing {
		t.Fatalf("new session state = %s, want %s", snap.State, StateInitializing)
	}

	cli := d.client(t, next)
	cli.emit(protocol.Connected{JID: "628123@s.whatsapp.net", PhoneNumber: "628123", PushName: "Tester"})
	ready := waitForState(t, m, snap.ID, StateReady)
	return ready, cli
}

func TestQRPairingWalkToReady(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, testConfig(), d)
	col := &collector{}
	m.AddEventHandler(col.handle)

	snap, err := m.CreateSession(context.Background(), "alice")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if snap.PhoneNumber != "" {
		t.Fatalf("phone number set before ready: %q", snap.PhoneNumber)
	}

	cli := d.client(t, 0)
	cli.emit(protocol.QRCode{Code: "2@abcdef"})
	qr := waitForState(t, m, snap.ID, StateQRPending)
	if !strings.HasPrefix(qr.QRCode, "data:image/png;base64,") {
		t.Fatalf("QR artifact not rendered: %q", qr.QRCode)
	}
	if qr.PhoneNumber != "" {
		t.Fatalf("phone number set while pairing: %q", qr.PhoneNumber)
	}

	// Refreshed QR replaces the artifact without a state change.
	cli.emit(protocol.QRCode{Code: "2@ghijkl"})
	refreshed := waitForState(t, m, snap.ID, StateQRPending)
	if refreshed.QRCode == qr.QRCode {
		t.Fatal("QR refresh did not replace artifact")
	}

	cli.emit(protocol.PairSuccess{})
	waitForState(t, m, snap.ID, StateAuthenticating)

	cli.emit(protocol.Connected{PhoneNumber: "628123", PushName: "Alice"})
	ready := waitForState(t, m, snap.ID, StateReady)
	if ready.PhoneNumber != "628123" || ready.PushName != "Alice" {
		t.Fatalf("identity not captured: %+v", ready)
	}
	if ready.QRCode != "" || ready.PairingCode != "" {
		t.Fatal("pairing artifacts survived past pairing")
	}
	if ready.ReconnectAttempts != 0 {
		t.Fatalf("reconnect attempts = %d after clean connect", ready.ReconnectAttempts)
	}

	// StateChangedEvent precedes the specific event for each transition.
	var sawQRState, sawQREvent bool
	for _, evt := range col.all() {
		switch e := evt.(type) {
		case StateChangedEvent:
			if e.To == StateQRPending {
				sawQRState = true
			}
		case QREvent:
			if !sawQRState {
				t.Fatal("QREvent emitted before its StateChangedEvent")
			}
			sawQREvent = true
		}
	}
	if !sawQREvent {
		t.Fatal("no QREvent observed")
	}
}

func TestPairingCodeFlow(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, testConfig(), d)

	snap, err := m.CreateSession(context.Background(), "bob")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	d.client(t, 0) // wait for the dial so the socket exists

	code, err := m.RequestPairingCode(context.Background(), snap.ID, "628123456789")
	if err != nil {
		t.Fatalf("RequestPairingCode: %v", err)
	}
	if code != "ABCD-1234" {
		t.Fatalf("code = %q", code)
	}

	pending := waitForState(t, m, snap.ID, StateCodePending)
	if pending.PairingCode != "ABCD-1234" {
		t.Fatalf("pairing code not stored: %+v", pending)
	}

	// Once ready, pairing is no longer available.
	cli := d.client(t, 0)
	cli.emit(protocol.Connected{PhoneNumber: "628123456789"})
	waitForState(t, m, snap.ID, StateReady)
	if _, err := m.RequestPairingCode(context.Background(), snap.ID, "628123456789"); !errors.Is(err, ErrPairingUnavailable) {
		t.Fatalf("err = %v, want ErrPairingUnavailable", err)
	}
}

func TestTransientDisconnectReconnects(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, testConfig(), d)
	col := &collector{}
	m.AddEventHandler(col.handle)

	ready, cli := driveToReady(t, m, d, "carol")

	cli.emit(protocol.Disconnected{Reason: "connection closed"})

	// The backoff timer fires and a fresh socket is dialed.
	next := d.client(t, 1)
	next.emit(protocol.Connected{PhoneNumber: "628123", PushName: "Tester"})
	again := waitForState(t, m, ready.ID, StateReady)
	if again.ReconnectAttempts != 0 {
		t.Fatalf("attempts = %d after successful reconnect, want 0", again.ReconnectAttempts)
	}

	var sawAttempt bool
	for _, evt := range col.all() {
		if e, ok := evt.(DisconnectedEvent); ok && e.Attempt == 1 {
			sawAttempt = true
		}
	}
	if !sawAttempt {
		t.Fatal("no DisconnectedEvent with attempt 1")
	}
}

func TestReconnectGivesUpAfterBudget(t *testing.T) {
	cfg := testConfig()
	cfg.ReconnectMaxRetries = 1
	d := &fakeDialer{}
	m := newTestManager(t, cfg, d)

	ready, cli := driveToReady(t, m, d, "dave")

	cli.emit(protocol.Disconnected{Reason: "connection closed"})
	next := d.client(t, 1)
	// The retried socket drops too: budget exhausted.
	next.emit(protocol.Disconnected{Reason: "connection closed"})

	failed := waitForState(t, m, ready.ID, StateError)
	if failed.Error == "" {
		t.Fatal("terminal error has no reason")
	}
	if !strings.Contains(failed.Error, "gave up") {
		t.Fatalf("error = %q", failed.Error)
	}

	dials := d.dialCount()
	time.Sleep(20 * time.Millisecond)
	if d.dialCount() != dials {
		t.Fatal("reconnect attempted after terminal error")
	}
}

func TestConstructionFailureIsTerminal(t *testing.T) {
	boom := errors.New("store locked")
	d := &fakeDialer{dialErrs: []error{boom, boom, boom}}
	m := newTestManager(t, testConfig(), d)

	snap, err := m.CreateSession(context.Background(), "erin")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	failed := waitForState(t, m, snap.ID, StateError)
	if !strings.Contains(failed.Error, "store locked") {
		t.Fatalf("error = %q", failed.Error)
	}
	if d.dialCount() != 3 {
		t.Fatalf("dials = %d, want 3", d.dialCount())
	}
}

func TestSendMessage(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, testConfig(), d)

	ready, cli := driveToReady(t, m, d, "frank")

	msg, err := m.SendMessage(context.Background(), ready.ID, "628999", "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.ID != "wire-1" || !msg.FromMe || msg.Status != MessageSent {
		t.Fatalf("msg = %+v", msg)
	}
	if msg.From != "628123" {
		t.Fatalf("msg.From = %q", msg.From)
	}
	to, body := cli.lastSend()
	if to != "628999" || body != "hello" {
		t.Fatalf("socket got to=%q body=%q", to, body)
	}
}

func TestSendMessageRequiresReady(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, testConfig(), d)

	snap, err := m.CreateSession(context.Background(), "grace")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	cli := d.client(t, 0)

	if _, err := m.SendMessage(context.Background(), snap.ID, "628999", "hi"); !errors.Is(err, ErrSessionNotReady) {
		t.Fatalf("err = %v, want ErrSessionNotReady", err)
	}
	if cli.sent() != 0 {
		t.Fatal("socket send attempted while not ready")
	}

	if _, err := m.SendMessage(context.Background(), "missing", "628999", "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSendMessageWrapsSocketError(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, testConfig(), d)

	ready, cli := driveToReady(t, m, d, "heidi")
	cli.mu.Lock()
	cli.sendErr = errors.New("socket write failed")
	cli.mu.Unlock()

	_, err := m.SendMessage(context.Background(), ready.ID, "628999", "hi")
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("err = %v, want ErrSendFailed", err)
	}
	if !strings.Contains(err.Error(), "socket write failed") {
		t.Fatalf("cause lost: %v", err)
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, testConfig(), d)
	col := &collector{}
	m.AddEventHandler(col.handle)

	ready, cli := driveToReady(t, m, d, "ivan")

	m.DestroySession(ready.ID)
	m.DestroySession(ready.ID)

	snap, ok := m.GetSession(ready.ID)
	if !ok || snap.State != StateDestroyed {
		t.Fatalf("tombstone missing: ok=%v state=%s", ok, snap.State)
	}
	if _, ok := m.GetSessionByUserID("ivan"); ok {
		t.Fatal("destroyed session still resolvable by user")
	}
	if cli.disconnected() == 0 {
		t.Fatal("socket never disconnected")
	}

	destroys := 0
	for _, evt := range col.all() {
		if e, ok := evt.(StateChangedEvent); ok && e.To == StateDestroyed {
			destroys++
		}
	}
	if destroys != 1 {
		t.Fatalf("destroyed emitted %d times, want 1", destroys)
	}
}

func TestDestroyDuringConnectClosesSocket(t *testing.T) {
	started := make(chan struct{}, 1)
	gate := make(chan struct{})
	d := &fakeDialer{setup: func(c *fakeClient) {
		c.connectStarted = started
		c.connectGate = gate
	}}
	m := newTestManager(t, testConfig(), d)

	snap, err := m.CreateSession(context.Background(), "nina")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Park the connect attempt mid-flight, then destroy the session.
	<-started
	m.DestroySession(snap.ID)

	// The connect finishes after the destroy; the socket it brought up
	// must not be left running for a dead session.
	close(gate)

	d.mu.Lock()
	cli := d.clients[0]
	d.mu.Unlock()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cli.disconnected() >= 2 && !cli.IsConnected() {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if cli.IsConnected() {
		t.Fatal("destroyed session left its socket connected")
	}
	if got, ok := m.GetSession(snap.ID); !ok || got.State != StateDestroyed {
		t.Fatalf("session state = %s, want %s", got.State, StateDestroyed)
	}
	if d.dialCount() != 1 {
		t.Fatalf("dials = %d after destroy, want 1", d.dialCount())
	}
}

func TestCreateReusesReadyAndReplacesStale(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, testConfig(), d)

	ready, _ := driveToReady(t, m, d, "judy")

	// Ready session is reused as-is.
	again, err := m.CreateSession(context.Background(), "judy")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if again.ID != ready.ID {
		t.Fatalf("ready session replaced: %s != %s", again.ID, ready.ID)
	}

	// A non-ready holder gets destroyed and replaced.
	m.DestroySession(ready.ID)
	first, err := m.CreateSession(context.Background(), "judy")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	second, err := m.CreateSession(context.Background(), "judy")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("stale initializing session was not replaced")
	}
	old, ok := m.GetSession(first.ID)
	if !ok || old.State != StateDestroyed {
		t.Fatalf("replaced session not tombstoned: ok=%v state=%s", ok, old.State)
	}
}

func TestLogoutErasesCredentials(t *testing.T) {
	root := t.TempDir()
	d := &fakeDialer{}
	creds := credstore.New(root)
	m := NewManager(testConfig(), creds, d, nil)

	snap, err := m.CreateSession(context.Background(), "kate")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	cli := d.client(t, 0)
	cli.emit(protocol.Connected{PhoneNumber: "628123"})
	waitForState(t, m, snap.ID, StateReady)

	if _, err := os.Stat(creds.Dir(snap.ID)); err != nil {
		t.Fatalf("credential dir missing before logout: %v", err)
	}

	if err := m.LogoutSession(context.Background(), snap.ID); err != nil {
		t.Fatalf("LogoutSession: %v", err)
	}
	if !cli.didLogout() {
		t.Fatal("protocol logout never called")
	}
	if _, err := os.Stat(creds.Dir(snap.ID)); !os.IsNotExist(err) {
		t.Fatalf("credential dir survived logout: %v", err)
	}
	if _, ok := m.GetSession(snap.ID); ok {
		t.Fatal("no tombstone should survive logout")
	}

	// A fresh session can be created immediately.
	fresh, err := m.CreateSession(context.Background(), "kate")
	if err != nil {
		t.Fatalf("CreateSession after logout: %v", err)
	}
	if fresh.ID == snap.ID {
		t.Fatal("logout reused the old session id")
	}
}

func TestRestoreSession(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, testConfig(), d)

	snap, err := m.RestoreSession("luis", "luis-cafe1234")
	if err != nil {
		t.Fatalf("RestoreSession: %v", err)
	}
	if snap.ID != "luis-cafe1234" {
		t.Fatalf("restored id = %q", snap.ID)
	}

	cli := d.client(t, 0)
	cli.emit(protocol.Connected{PhoneNumber: "628123"})
	ready := waitForState(t, m, snap.ID, StateReady)
	if ready.PhoneNumber != "628123" {
		t.Fatalf("restored session identity = %+v", ready)
	}
}

func TestEventHandlerRemove(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, testConfig(), d)
	col := &collector{}

	id := m.AddEventHandler(col.handle)
	if !m.RemoveEventHandler(id) {
		t.Fatal("remove returned false for live handler")
	}
	if m.RemoveEventHandler(id) {
		t.Fatal("remove returned true twice")
	}

	if _, err := m.CreateSession(context.Background(), "mona"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	d.client(t, 0).emit(protocol.Connected{PhoneNumber: "628123"})
	time.Sleep(10 * time.Millisecond)
	if len(col.all()) != 0 {
		t.Fatalf("removed handler still received %d events", len(col.all()))
	}
}
