package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"gowalink/internal/credstore"
	"gowalink/internal/helper"
	"gowalink/internal/protocol"
)

// Config tunes the manager's retry behaviour and tombstone lifetime.
type Config struct {
	ReconnectBaseDelay  time.Duration
	ReconnectMaxDelay   time.Duration
	ReconnectMaxRetries int
	ConnectRetryDelay   time.Duration
	ConnectMaxRetries   int
	TombstoneTTL        time.Duration
}

// StatusRecord is the minimal per-session status persisted between
// restarts. No message history, just enough to resume at boot.
type StatusRecord struct {
	SessionID    string
	UserID       string
	State        State
	PhoneNumber  string
	LastActivity time.Time
}

// StatusStore persists status records. A nil store disables persistence.
type StatusStore interface {
	Upsert(rec StatusRecord) error
	Delete(sessionID string) error
}

// Manager owns every session: it creates them, drives their sockets
// through the pairing and authentication lifecycle, schedules reconnects
// and fans events out to subscribers.
type Manager struct {
	cfg       Config
	creds     *credstore.Store
	dialer    protocol.Dialer
	registry  *Registry
	status    StatusStore
	events    *dispatcher
	reconnect reconnectPolicy
	construct connectPolicy
}

func NewManager(cfg Config, creds *credstore.Store, dialer protocol.Dialer, status StatusStore) *Manager {
	return &Manager{
		cfg:      cfg,
		creds:    creds,
		dialer:   dialer,
		registry: NewRegistry(),
		status:   status,
		events:   newDispatcher(),
		reconnect: reconnectPolicy{
			Base:        cfg.ReconnectBaseDelay,
			Max:         cfg.ReconnectMaxDelay,
			MaxAttempts: cfg.ReconnectMaxRetries,
		},
		construct: connectPolicy{
			Delay:       cfg.ConnectRetryDelay,
			MaxAttempts: cfg.ConnectMaxRetries,
		},
	}
}

// AddEventHandler registers fn for all manager events and returns an id
// usable with RemoveEventHandler.
func (m *Manager) AddEventHandler(fn EventHandler) uint32 {
	return m.events.add(fn)
}

func (m *Manager) RemoveEventHandler(id uint32) bool {
	return m.events.remove(id)
}

// CreateSession starts a linked-device session for userID. A live ready
// session is reused as-is; a live non-ready one is destroyed and replaced.
// The returned snapshot is in the initializing state; progress arrives via
// events or by polling GetSession.
func (m *Manager) CreateSession(ctx context.Context, userID string) (Snapshot, error) {
	if userID == "" {
		return Snapshot{}, errors.New("session: user id is required")
	}

	for {
		s := newSession(newSessionID(userID), userID)
		holder, claimed := m.registry.Claim(s)
		if claimed {
			log.Printf("session %s: created for user %s", s.id, userID)
			m.persistStatus(s.Snapshot())
			go m.startSocket(s)
			return s.Snapshot(), nil
		}

		snap := holder.Snapshot()
		if snap.State == StateReady {
			return snap, nil
		}
		// Not ready: tear the stale one down and claim again.
		log.Printf("session %s: replacing non-ready session (state=%s) for user %s", snap.ID, snap.State, userID)
		m.DestroySession(snap.ID)
	}
}

// RestoreSession re-registers a session persisted from a previous run so
// it resumes off stored credentials without re-pairing.
func (m *Manager) RestoreSession(userID, sessionID string) (Snapshot, error) {
	if userID == "" || sessionID == "" {
		return Snapshot{}, errors.New("session: user id and session id are required")
	}

	s := newSession(sessionID, userID)
	if holder, claimed := m.registry.Claim(s); !claimed {
		return holder.Snapshot(), nil
	}

	log.Printf("session %s: restoring for user %s", sessionID, userID)
	m.persistStatus(s.Snapshot())
	go m.startSocket(s)
	return s.Snapshot(), nil
}

// GetSession looks a session up by id. Destroyed tombstones stay
// retrievable until their grace period expires.
func (m *Manager) GetSession(id string) (Snapshot, bool) {
	s, ok := m.registry.Get(id)
	if !ok {
		return Snapshot{}, false
	}
	return s.Snapshot(), true
}

// GetSessionByUserID returns the user's live session, never a tombstone.
func (m *Manager) GetSessionByUserID(userID string) (Snapshot, bool) {
	s, ok := m.registry.GetByUser(userID)
	if !ok {
		return Snapshot{}, false
	}
	return s.Snapshot(), true
}

// ListSessions returns snapshots of every registered session.
func (m *Manager) ListSessions() []Snapshot {
	records := m.registry.All()
	out := make([]Snapshot, 0, len(records))
	for _, s := range records {
		out = append(out, s.Snapshot())
	}
	return out
}

// SendMessage relays a text message through a ready session's socket.
func (m *Manager) SendMessage(ctx context.Context, sessionID, to, body string) (Message, error) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return Message{}, ErrSessionNotFound
	}

	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return Message{}, ErrSessionNotReady
	}
	client := s.client
	from := s.phoneNumber
	s.mu.Unlock()

	if client == nil {
		return Message{}, ErrSocketUnavailable
	}

	resp, err := client.SendMessage(ctx, to, body)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	id := resp.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := resp.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	msg := Message{
		ID:        id,
		SessionID: sessionID,
		From:      from,
		To:        to,
		Body:      body,
		Timestamp: ts,
		FromMe:    true,
		Status:    MessageSent,
	}

	s.mu.Lock()
	s.lastActivity = time.Now().UTC()
	s.mu.Unlock()

	m.events.emit(MessageEvent{SessionID: sessionID, Message: msg})
	return msg, nil
}

// RequestPairingCode switches an unpaired session to phone-number-based
// linking and returns the short code to type on the phone.
func (m *Manager) RequestPairingCode(ctx context.Context, sessionID, phoneNumber string) (string, error) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return "", ErrSessionNotFound
	}

	s.mu.Lock()
	if !pairingPhase(s.state) {
		s.mu.Unlock()
		return "", ErrPairingUnavailable
	}
	client := s.client
	s.mu.Unlock()

	if client == nil {
		return "", ErrSocketUnavailable
	}

	code, err := client.RequestPairingCode(ctx, phoneNumber)
	if err != nil {
		return "", fmt.Errorf("session %s: request pairing code: %w", sessionID, err)
	}

	s.mu.Lock()
	var changed *StateChangedEvent
	if pairingPhase(s.state) {
		if s.state != StateCodePending {
			from := s.state
			if s.setStateLocked(StateCodePending) {
				changed = &StateChangedEvent{SessionID: s.id, UserID: s.userID, From: from, To: StateCodePending}
			}
		}
		s.pairingCode = code
		s.lastActivity = time.Now().UTC()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if changed != nil {
		m.events.emit(*changed)
		m.persistStatus(snap)
	}
	m.events.emit(PairingCodeEvent{SessionID: sessionID, Code: code})
	return code, nil
}

// DestroySession tears a session down: pending reconnect cancelled, socket
// closed, record tombstoned. Idempotent; unknown or already-destroyed ids
// are a no-op and nothing is re-emitted.
func (m *Manager) DestroySession(id string) {
	s, ok := m.registry.Get(id)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return
	}
	from := s.state
	s.cancelTimersLocked()
	client := s.client
	s.client = nil
	s.state = StateDestroyed
	s.qrCode = ""
	s.pairingCode = ""
	s.lastActivity = time.Now().UTC()
	if m.cfg.TombstoneTTL > 0 {
		s.tombstoneTimer = time.AfterFunc(m.cfg.TombstoneTTL, func() {
			m.registry.Remove(id)
		})
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if client != nil {
		client.Disconnect()
	}
	m.registry.ReleaseUser(s)

	log.Printf("session %s: destroyed (was %s)", id, from)
	m.events.emit(StateChangedEvent{SessionID: id, UserID: snap.UserID, From: from, To: StateDestroyed})
	m.persistStatus(snap)
}

// LogoutSession unlinks the device on the network (best effort), destroys
// the session, erases its credentials and removes the record entirely —
// no tombstone survives a logout.
func (m *Manager) LogoutSession(ctx context.Context, id string) error {
	s, ok := m.registry.Get(id)
	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	if client != nil {
		if err := client.Logout(ctx); err != nil {
			log.Printf("session %s: protocol logout failed: %v", id, err)
		}
	}

	m.DestroySession(id)

	if err := m.creds.Erase(id); err != nil {
		return err
	}

	s.mu.Lock()
	if s.tombstoneTimer != nil {
		s.tombstoneTimer.Stop()
		s.tombstoneTimer = nil
	}
	s.mu.Unlock()

	m.registry.Remove(id)
	if m.status != nil {
		if err := m.status.Delete(id); err != nil {
			log.Printf("session %s: delete status row: %v", id, err)
		}
	}

	log.Printf("session %s: logged out and erased", id)
	return nil
}

func pairingPhase(s State) bool {
	return s == StateInitializing || s == StateQRPending || s == StateCodePending
}

// startSocket loads credentials, constructs the socket and connects,
// retrying construction failures on the short local-retry budget before
// declaring the session failed.
func (m *Manager) startSocket(s *Session) {
	ctx := context.Background()

	var lastErr error
	for attempt := 1; attempt <= m.construct.MaxAttempts; attempt++ {
		if s.Snapshot().State.Terminal() {
			return
		}

		client, err := m.buildClient(ctx, s)
		if err == nil {
			if err = client.Connect(ctx); err == nil {
				// A destroy may have raced the connect and already released
				// this client; a socket that came up for a dead session has
				// no owner left to close it, so close it here.
				s.mu.Lock()
				stale := s.state.Terminal() || s.client != client
				s.mu.Unlock()
				if stale && client.IsConnected() {
					client.Disconnect()
				}
				return
			}
			client.Disconnect()
		}
		if errors.Is(err, ErrSessionDestroyed) {
			return
		}

		lastErr = err
		log.Printf("session %s: socket attempt %d/%d failed: %v", s.id, attempt, m.construct.MaxAttempts, err)
		if attempt < m.construct.MaxAttempts {
			time.Sleep(m.construct.delay(attempt))
		}
	}

	m.failSession(s, fmt.Sprintf("socket construction failed after %d attempts: %v", m.construct.MaxAttempts, lastErr))
}

func (m *Manager) buildClient(ctx context.Context, s *Session) (protocol.Client, error) {
	_, save, err := m.creds.Load(s.id)
	if err != nil {
		return nil, err
	}

	client, err := m.dialer.Dial(ctx, s.id, m.creds.Dir(s.id), save)
	if err != nil {
		return nil, err
	}
	client.AddEventHandler(func(evt interface{}) {
		m.handleSocketEvent(s, evt)
	})

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		client.Disconnect()
		return nil, ErrSessionDestroyed
	}
	old := s.client
	s.client = client
	s.mu.Unlock()

	if old != nil {
		old.Disconnect()
	}
	return client, nil
}

// handleSocketEvent interprets adapter events into state transitions.
// Events arrive in socket order and only ever touch their own session's
// record, so per-session mutation stays serialized under the record mutex.
func (m *Manager) handleSocketEvent(s *Session, evt interface{}) {
	switch e := evt.(type) {
	case protocol.QRCode:
		m.onQR(s, e.Code)
	case protocol.PairSuccess:
		m.onPairSuccess(s)
	case protocol.Connected:
		m.onConnected(s, e)
	case protocol.Disconnected:
		m.onDisconnected(s, e.Reason)
	case protocol.LoggedOut:
		m.failSession(s, e.Reason)
	case protocol.StreamReplaced:
		m.failSession(s, "stream replaced by another client")
	case protocol.Message:
		m.onMessage(s, e)
	case protocol.CredentialsUpdated:
		log.Printf("session %s: credentials rotated", s.id)
	}
}

func (m *Manager) onQR(s *Session, code string) {
	uri, err := helper.QRDataURI(code)
	if err != nil {
		log.Printf("session %s: render QR: %v", s.id, err)
		return
	}

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	var changed *StateChangedEvent
	if s.state != StateQRPending {
		from := s.state
		if !s.setStateLocked(StateQRPending) {
			s.mu.Unlock()
			log.Printf("session %s: dropped QR in state %s", s.id, from)
			return
		}
		changed = &StateChangedEvent{SessionID: s.id, UserID: s.userID, From: from, To: StateQRPending}
	}
	// Artifact refresh just replaces the stored code and re-emits.
	s.qrCode = uri
	s.lastActivity = time.Now().UTC()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if changed != nil {
		m.events.emit(*changed)
		m.persistStatus(snap)
	}
	m.events.emit(QREvent{SessionID: s.id, Code: code, DataURI: uri})
}

func (m *Manager) onPairSuccess(s *Session) {
	s.mu.Lock()
	from := s.state
	if !s.setStateLocked(StateAuthenticating) {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	log.Printf("session %s: pairing accepted", s.id)
	m.events.emit(StateChangedEvent{SessionID: s.id, UserID: snap.UserID, From: from, To: StateAuthenticating})
	m.events.emit(AuthenticatedEvent{SessionID: s.id})
	m.persistStatus(snap)
}

func (m *Manager) onConnected(s *Session, e protocol.Connected) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	if s.state == StateReady {
		// Duplicate connected event: refresh identity, nothing else.
		s.phoneNumber = e.PhoneNumber
		s.pushName = e.PushName
		s.mu.Unlock()
		return
	}

	var events []interface{}
	if s.state != StateAuthenticating {
		from := s.state
		if !s.setStateLocked(StateAuthenticating) {
			s.mu.Unlock()
			log.Printf("session %s: dropped connect event in state %s", s.id, from)
			return
		}
		events = append(events,
			StateChangedEvent{SessionID: s.id, UserID: s.userID, From: from, To: StateAuthenticating},
			AuthenticatedEvent{SessionID: s.id},
		)
	}

	from := s.state
	if !s.setStateLocked(StateReady) {
		s.mu.Unlock()
		return
	}
	s.phoneNumber = e.PhoneNumber
	s.pushName = e.PushName
	s.reconnectAttempts = 0
	events = append(events,
		StateChangedEvent{SessionID: s.id, UserID: s.userID, From: from, To: StateReady},
		ReadyEvent{SessionID: s.id, PhoneNumber: e.PhoneNumber, PushName: e.PushName},
	)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	log.Printf("session %s: ready as %s", s.id, e.PhoneNumber)
	for _, evt := range events {
		m.events.emit(evt)
	}
	m.persistStatus(snap)
}

// onDisconnected handles a transient socket close: schedule a backoff
// retry while budget remains, otherwise give up and fail the session.
func (m *Manager) onDisconnected(s *Session, reason string) {
	s.mu.Lock()
	if s.state.Terminal() || s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	from := s.state
	if !s.setStateLocked(StateDisconnected) {
		s.mu.Unlock()
		return
	}

	var events []interface{}
	events = append(events, StateChangedEvent{SessionID: s.id, UserID: s.userID, From: from, To: StateDisconnected})

	if s.reconnectAttempts >= m.reconnect.MaxAttempts {
		events = append(events, DisconnectedEvent{SessionID: s.id, Reason: reason})
		msg := fmt.Sprintf("disconnected (%s); gave up after %d reconnect attempts", reason, s.reconnectAttempts)
		s.errReason = msg
		prev := s.state
		s.state = StateError
		s.cancelTimersLocked()
		events = append(events,
			StateChangedEvent{SessionID: s.id, UserID: s.userID, From: prev, To: StateError},
			ErrorEvent{SessionID: s.id, Reason: msg},
		)
	} else {
		s.reconnectAttempts++
		attempt := s.reconnectAttempts
		delay := m.reconnect.delay(attempt)
		s.cancelTimersLocked()
		s.reconnectTimer = time.AfterFunc(delay, func() {
			m.retryConnect(s)
		})
		events = append(events, DisconnectedEvent{SessionID: s.id, Reason: reason, Attempt: attempt})
		log.Printf("session %s: disconnected (%s), reconnect %d/%d in %s", s.id, reason, attempt, m.reconnect.MaxAttempts, delay)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	for _, evt := range events {
		m.events.emit(evt)
	}
	m.persistStatus(snap)
}

// retryConnect fires from the reconnect timer and re-runs socket
// initialization for the same session id.
func (m *Manager) retryConnect(s *Session) {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return
	}
	from := s.state
	if !s.setStateLocked(StateInitializing) {
		s.mu.Unlock()
		return
	}
	s.reconnectTimer = nil
	old := s.client
	s.client = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if old != nil {
		old.Disconnect()
	}

	m.events.emit(StateChangedEvent{SessionID: s.id, UserID: snap.UserID, From: from, To: StateInitializing})
	m.persistStatus(snap)
	m.startSocket(s)
}

// failSession is the terminal path: no retry, timers cancelled, socket
// closed, error string kept for callers.
func (m *Manager) failSession(s *Session, reason string) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	from := s.state
	s.state = StateError
	s.errReason = reason
	s.qrCode = ""
	s.pairingCode = ""
	s.lastActivity = time.Now().UTC()
	s.cancelTimersLocked()
	client := s.client
	s.client = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if client != nil {
		client.Disconnect()
	}

	log.Printf("session %s: failed: %s", s.id, reason)
	m.events.emit(StateChangedEvent{SessionID: s.id, UserID: snap.UserID, From: from, To: StateError})
	m.events.emit(ErrorEvent{SessionID: s.id, Reason: reason})
	m.persistStatus(snap)
}

func (m *Manager) onMessage(s *Session, e protocol.Message) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.lastActivity = time.Now().UTC()
	id := s.id
	s.mu.Unlock()

	msg := Message{
		ID:        e.ID,
		SessionID: id,
		From:      e.From,
		To:        e.To,
		Body:      e.Body,
		Timestamp: e.Timestamp,
		FromMe:    e.FromMe,
		Status:    MessageDelivered,
	}
	m.events.emit(MessageEvent{SessionID: id, Message: msg})
}

func (m *Manager) persistStatus(snap Snapshot) {
	if m.status == nil {
		return
	}
	rec := StatusRecord{
		SessionID:    snap.ID,
		UserID:       snap.UserID,
		State:        snap.State,
		PhoneNumber:  snap.PhoneNumber,
		LastActivity: snap.LastActivity,
	}
	if err := m.status.Upsert(rec); err != nil {
		log.Printf("session %s: persist status: %v", snap.ID, err)
	}
}
